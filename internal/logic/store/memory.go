package store

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const watchBufferSize = 64

// MemoryBackend is an in-memory Backend. It backs the store in tests and
// serves as the reference for the error classification contract: absent
// objects yield NotFoundError, stale or duplicate writes yield ConflictError.
type MemoryBackend struct {
	// Intercept, when set, runs before every operation and may fail it.
	// Used by tests to inject transient and terminal errors.
	Intercept func(op string, key Key) error

	mu       sync.Mutex
	objects  map[Key]*unstructured.Unstructured
	nextRV   int64
	watchers []*memoryWatcher
}

type memoryWatcher struct {
	kind      Kind
	namespace string
	events    chan Event
	done      <-chan struct{}
	closeOnce sync.Once
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[Key]*unstructured.Unstructured),
		nextRV:  1,
	}
}

var _ Backend = (*MemoryBackend)(nil)

func (b *MemoryBackend) Create(ctx context.Context, obj *unstructured.Unstructured) error {
	key := objectKey(obj)

	if err := b.intercept("create", key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; exists {
		return &ConflictError{
			Kind:      key.Kind,
			Namespace: key.Namespace,
			Name:      key.Name,
			Err:       errAlreadyExists,
		}
	}

	stored := obj.DeepCopy()
	stored.SetResourceVersion(b.bumpRV())
	b.objects[key] = stored

	b.notifyLocked(Event{Type: Added, Resource: stored.DeepCopy()})

	return nil
}

func (b *MemoryBackend) Update(ctx context.Context, obj *unstructured.Unstructured) error {
	key := objectKey(obj)

	if err := b.intercept("update", key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, exists := b.objects[key]
	if !exists {
		return &NotFoundError{Kind: key.Kind, Namespace: key.Namespace, Name: key.Name}
	}

	if rv := obj.GetResourceVersion(); rv != "" && rv != existing.GetResourceVersion() {
		return &ConflictError{
			Kind:      key.Kind,
			Namespace: key.Namespace,
			Name:      key.Name,
			Err:       errStaleResourceVersion,
		}
	}

	stored := obj.DeepCopy()
	stored.SetResourceVersion(b.bumpRV())
	b.objects[key] = stored

	b.notifyLocked(Event{Type: Modified, Resource: stored.DeepCopy()})

	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error) {
	key := Key{Kind: kind, Namespace: namespace, Name: name}

	if err := b.intercept("get", key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, &NotFoundError{Kind: kind, Namespace: namespace, Name: name}
	}

	return obj.DeepCopy(), nil
}

func (b *MemoryBackend) Delete(ctx context.Context, kind Kind, namespace, name string) error {
	key := Key{Kind: kind, Namespace: namespace, Name: name}

	if err := b.intercept("delete", key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[key]
	if !exists {
		return &NotFoundError{Kind: kind, Namespace: namespace, Name: name}
	}

	delete(b.objects, key)

	b.notifyLocked(Event{Type: Deleted, Resource: obj.DeepCopy()})

	return nil
}

func (b *MemoryBackend) List(ctx context.Context, kind Kind, namespace, labelSelector string) ([]*unstructured.Unstructured, error) {
	if err := b.intercept("list", Key{Kind: kind, Namespace: namespace}); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	selector := parseSelector(labelSelector)

	result := make([]*unstructured.Unstructured, 0)

	for key, obj := range b.objects {
		if key.Kind != kind || key.Namespace != namespace {
			continue
		}

		if !selector.matches(obj.GetLabels()) {
			continue
		}

		result = append(result, obj.DeepCopy())
	}

	return result, nil
}

// Watch streams changes made after the subscription; existing objects are
// not replayed as ADDED the way the Kubernetes backend does. A watcher
// that stops draining loses events rather than blocking writers.
func (b *MemoryBackend) Watch(ctx context.Context, kind Kind, namespace string) (<-chan Event, error) {
	watcher := &memoryWatcher{
		kind:      kind,
		namespace: namespace,
		events:    make(chan Event, watchBufferSize),
		done:      ctx.Done(),
	}

	b.mu.Lock()
	b.watchers = append(b.watchers, watcher)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		defer b.mu.Unlock()

		for i, w := range b.watchers {
			if w == watcher {
				b.watchers = append(b.watchers[:i], b.watchers[i+1:]...)

				break
			}
		}

		watcher.closeOnce.Do(func() { close(watcher.events) })
	}()

	return watcher.events, nil
}

// Len returns the number of stored objects.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.objects)
}

func (b *MemoryBackend) intercept(op string, key Key) error {
	if b.Intercept == nil {
		return nil
	}

	return b.Intercept(op, key)
}

// bumpRV returns a fresh resource version. Caller holds b.mu.
func (b *MemoryBackend) bumpRV() string {
	rv := strconv.FormatInt(b.nextRV, 10)
	b.nextRV++

	return rv
}

// notifyLocked delivers an event to matching watchers. Caller holds b.mu.
// Watchers that stopped draining lose events rather than blocking writers.
func (b *MemoryBackend) notifyLocked(event Event) {
	key := event.Key()

	for _, w := range b.watchers {
		if w.kind != key.Kind || w.namespace != key.Namespace {
			continue
		}

		select {
		case <-w.done:
		case w.events <- event:
		default:
		}
	}
}

func objectKey(obj *unstructured.Unstructured) Key {
	return Key{
		Kind:      Kind(obj.GetKind()),
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}
}

// labelSelector is the equality subset of label selection, enough for the
// child-object queries the operator issues.
type labelSelector map[string]string

func parseSelector(raw string) labelSelector {
	if raw == "" {
		return nil
	}

	selector := make(labelSelector)

	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}

		selector[k] = v
	}

	return selector
}

func (s labelSelector) matches(labels map[string]string) bool {
	for k, v := range s {
		if labels[k] != v {
			return false
		}
	}

	return true
}
