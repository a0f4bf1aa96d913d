package k8s

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/cache"
	watchtools "k8s.io/client-go/tools/watch"

	"github.com/gati-framework/gati-operator/internal/logic/store"
)

const eventBufferSize = 64

// Watch lists current objects, replays them as ADDED events, and then
// follows changes from the list's resource version. RetryWatcher owns
// reconnection and backoff on stream termination.
func (a *adapter) Watch(ctx context.Context, kind store.Kind, namespace string) (<-chan store.Event, error) {
	gvr, err := resourceFor(kind)
	if err != nil {
		return nil, err
	}

	resource := a.client.Resource(gvr).Namespace(namespace)

	list, err := resource.List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, kind, namespace, "", "list")
	}

	watcher, err := watchtools.NewRetryWatcherWithContext(ctx, list.GetResourceVersion(), &cache.ListWatch{
		WatchFuncWithContext: func(ctx context.Context, options metav1.ListOptions) (watch.Interface, error) {
			return resource.Watch(ctx, options)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s in %s: %w", kind, namespace, err)
	}

	events := make(chan store.Event, eventBufferSize)

	go a.pump(ctx, kind, namespace, list.Items, watcher, events)

	return events, nil
}

func (a *adapter) pump(
	ctx context.Context,
	kind store.Kind,
	namespace string,
	initial []unstructured.Unstructured,
	watcher *watchtools.RetryWatcher,
	events chan<- store.Event,
) {
	defer close(events)
	defer watcher.Stop()

	for i := range initial {
		select {
		case <-ctx.Done():
			return
		case events <- store.Event{Type: store.Added, Resource: &initial[i]}:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-watcher.ResultChan():
			if !ok {
				a.logger.WarnContext(ctx, "watch channel closed",
					"kind", kind,
					"namespace", namespace,
				)

				return
			}

			event, ok := a.convert(ctx, raw)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case events <- event:
			}
		}
	}
}

// convert maps a raw watch event onto a store event; bookmark and error
// events carry no object state and are dropped.
func (a *adapter) convert(ctx context.Context, raw watch.Event) (store.Event, bool) {
	var eventType store.EventType

	switch raw.Type {
	case watch.Added:
		eventType = store.Added
	case watch.Modified:
		eventType = store.Modified
	case watch.Deleted:
		eventType = store.Deleted
	case watch.Bookmark:
		return store.Event{}, false
	case watch.Error:
		a.logger.WarnContext(ctx, "watch error event", "object", raw.Object)

		return store.Event{}, false
	default:
		return store.Event{}, false
	}

	obj, ok := raw.Object.(*unstructured.Unstructured)
	if !ok {
		a.logger.WarnContext(ctx, "watch event carries unexpected object type",
			"type", fmt.Sprintf("%T", raw.Object),
		)

		return store.Event{}, false
	}

	return store.Event{Type: eventType, Resource: obj}, true
}
