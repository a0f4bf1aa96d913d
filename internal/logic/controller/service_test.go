package controller_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/gati-framework/gati-operator/internal/logic/controller"
	"github.com/gati-framework/gati-operator/internal/logic/reconcile"
	"github.com/gati-framework/gati-operator/internal/logic/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() store.RetryConfig {
	return store.RetryConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		MaxRetries:   3,
	}
}

func handlerResource(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "gati.dev/v1alpha1",
		"kind":       "GatiHandler",
		"metadata": map[string]any{
			"name":      name,
			"namespace": "default",
		},
		"spec": map[string]any{
			"handlerPath": "api/" + name,
			"replicas":    int64(2),
			"image":       "gati/" + name + ":v1",
			"port":        int64(3000),
		},
	}}
}

// fakeStore hands out captured event handlers so tests can inject
// notifications directly.
type fakeStore struct {
	mu       sync.Mutex
	handlers map[store.Kind]store.EventHandler
	listed   map[store.Kind][]*unstructured.Unstructured
	watchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		handlers: make(map[store.Kind]store.EventHandler),
		listed:   make(map[store.Kind][]*unstructured.Unstructured),
	}
}

func (f *fakeStore) Watch(_ context.Context, kind store.Kind, _ string, onEvent store.EventHandler) error {
	if f.watchErr != nil {
		return f.watchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[kind] = onEvent

	return nil
}

func (f *fakeStore) List(_ context.Context, kind store.Kind, _, _ string) ([]*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.listed[kind], nil
}

func (f *fakeStore) emit(kind store.Kind, event store.Event) {
	f.mu.Lock()
	handler := f.handlers[kind]
	f.mu.Unlock()

	handler(event)
}

// fakeReconciler records every call and delegates to an optional hook.
type fakeReconciler struct {
	mu    sync.Mutex
	calls []store.Event
	hook  func(event store.Event) error
}

func (f *fakeReconciler) Reconcile(_ context.Context, event store.Event) (reconcile.State, error) {
	f.mu.Lock()
	f.calls = append(f.calls, event)
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(event); err != nil {
			return reconcile.StateFailed, err
		}
	}

	return reconcile.StateApplied, nil
}

func (f *fakeReconciler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func (f *fakeReconciler) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.calls))
	for _, event := range f.calls {
		names = append(names, event.Resource.GetName())
	}

	return names
}

func startController(t *testing.T, s controller.Store, r controller.Reconciler) *controller.Service {
	t.Helper()

	svc := controller.New(testLogger(), s, r, "default", fastRetry())
	require.NoError(t, svc.Start(t.Context()))

	select {
	case <-svc.Ready():
	case <-time.After(time.Second):
		t.Fatal("controller did not become ready")
	}

	return svc
}

func TestService_Start(t *testing.T) {
	t.Parallel()

	t.Run("subscribes to both watched kinds", func(t *testing.T) {
		t.Parallel()

		fs := newFakeStore()
		svc := startController(t, fs, &fakeReconciler{})

		fs.mu.Lock()
		require.Contains(t, fs.handlers, store.KindGatiHandler)
		require.Contains(t, fs.handlers, store.KindGatiModule)
		fs.mu.Unlock()

		require.NoError(t, svc.Ping(t.Context()))
		require.NoError(t, svc.Shutdown(t.Context()))
	})

	t.Run("watch failure surfaces from start", func(t *testing.T) {
		t.Parallel()

		fs := newFakeStore()
		fs.watchErr = errors.New("api server unreachable")

		svc := controller.New(testLogger(), fs, &fakeReconciler{}, "default", fastRetry())
		require.Error(t, svc.Start(t.Context()))
		require.Error(t, svc.Ping(t.Context()))
	})
}

func TestService_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("notification reaches the reconciler", func(t *testing.T) {
		t.Parallel()

		fs := newFakeStore()
		fr := &fakeReconciler{}
		svc := startController(t, fs, fr)

		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("users")})

		require.Eventually(t, func() bool {
			return fr.callCount() == 1
		}, time.Second, time.Millisecond)

		require.NoError(t, svc.Shutdown(t.Context()))
	})

	t.Run("same key is serialized in arrival order", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})

		var active, maxActive int

		var mu sync.Mutex

		fr := &fakeReconciler{}
		fr.hook = func(store.Event) error {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			<-release

			mu.Lock()
			active--
			mu.Unlock()

			return nil
		}

		fs := newFakeStore()
		svc := startController(t, fs, fr)

		for range 3 {
			fs.emit(store.KindGatiHandler, store.Event{Type: store.Modified, Resource: handlerResource("users")})
		}

		require.Eventually(t, func() bool {
			return fr.callCount() == 1
		}, time.Second, time.Millisecond)

		// Queued notifications for the busy key must not start yet.
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, 1, fr.callCount())

		close(release)

		require.Eventually(t, func() bool {
			return fr.callCount() == 3
		}, time.Second, time.Millisecond)

		mu.Lock()
		require.Equal(t, 1, maxActive, "same-key reconciliations must never overlap")
		mu.Unlock()

		require.NoError(t, svc.Shutdown(t.Context()))
	})

	t.Run("different keys run concurrently", func(t *testing.T) {
		t.Parallel()

		entered := make(chan string, 2)
		release := make(chan struct{})

		fr := &fakeReconciler{}
		fr.hook = func(event store.Event) error {
			entered <- event.Resource.GetName()
			<-release

			return nil
		}

		fs := newFakeStore()
		svc := startController(t, fs, fr)

		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("users")})
		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("orders")})

		seen := map[string]bool{}

		for range 2 {
			select {
			case name := <-entered:
				seen[name] = true
			case <-time.After(time.Second):
				t.Fatal("second key never started while the first was in flight")
			}
		}

		require.True(t, seen["users"] && seen["orders"])

		close(release)
		require.NoError(t, svc.Shutdown(t.Context()))
	})
}

func TestService_Retry(t *testing.T) {
	t.Parallel()

	t.Run("persistent failure stops after max retries", func(t *testing.T) {
		t.Parallel()

		fr := &fakeReconciler{}
		fr.hook = func(store.Event) error {
			return errors.New("store unavailable")
		}

		fs := newFakeStore()
		svc := startController(t, fs, fr)

		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("users")})

		require.Eventually(t, func() bool {
			return fr.callCount() == fastRetry().MaxRetries+1
		}, time.Second, time.Millisecond)

		// No further attempts after exhaustion.
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, fastRetry().MaxRetries+1, fr.callCount())

		require.NoError(t, svc.Shutdown(t.Context()))
	})

	t.Run("success on a later attempt stops retrying", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		attempts := 0

		fr := &fakeReconciler{}
		fr.hook = func(store.Event) error {
			mu.Lock()
			defer mu.Unlock()

			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}

			return nil
		}

		fs := newFakeStore()
		svc := startController(t, fs, fr)

		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("users")})

		require.Eventually(t, func() bool {
			return fr.callCount() == 3
		}, time.Second, time.Millisecond)

		time.Sleep(20 * time.Millisecond)
		require.Equal(t, 3, fr.callCount())

		require.NoError(t, svc.Shutdown(t.Context()))
	})
}

func TestService_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("waits for in-flight reconciliation", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		release := make(chan struct{})

		fr := &fakeReconciler{}
		fr.hook = func(store.Event) error {
			close(started)
			<-release

			return nil
		}

		fs := newFakeStore()
		svc := startController(t, fs, fr)

		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("users")})
		<-started

		done := make(chan error, 1)

		go func() {
			done <- svc.Shutdown(context.Background())
		}()

		select {
		case <-done:
			t.Fatal("shutdown returned while a reconciliation was still in flight")
		case <-time.After(20 * time.Millisecond):
		}

		close(release)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("shutdown did not complete after the reconciliation finished")
		}
	})

	t.Run("drops notifications after shutdown", func(t *testing.T) {
		t.Parallel()

		fr := &fakeReconciler{}
		fs := newFakeStore()
		svc := startController(t, fs, fr)

		require.NoError(t, svc.Shutdown(t.Context()))

		fs.emit(store.KindGatiHandler, store.Event{Type: store.Added, Resource: handlerResource("users")})

		time.Sleep(20 * time.Millisecond)
		require.Zero(t, fr.callCount())
		require.Error(t, svc.Ping(t.Context()))
	})

	t.Run("notifications racing shutdown never start work after it returns", func(t *testing.T) {
		t.Parallel()

		for range 100 {
			fs := newFakeStore()

			var shutdownReturned atomic.Bool

			var lateStarts atomic.Int32

			fr := &fakeReconciler{}
			fr.hook = func(store.Event) error {
				if shutdownReturned.Load() {
					lateStarts.Add(1)
				}

				return nil
			}

			svc := startController(t, fs, fr)

			var emitters sync.WaitGroup

			start := make(chan struct{})

			for i := range 8 {
				emitters.Add(1)

				go func() {
					defer emitters.Done()

					<-start
					fs.emit(store.KindGatiHandler, store.Event{
						Type:     store.Modified,
						Resource: handlerResource(fmt.Sprintf("users-%d", i)),
					})
				}()
			}

			close(start)
			require.NoError(t, svc.Shutdown(t.Context()))
			shutdownReturned.Store(true)

			emitters.Wait()

			// Anything admitted before shutdown has drained by now; the
			// call count must not move anymore.
			drained := fr.callCount()
			time.Sleep(time.Millisecond)

			require.Zero(t, lateStarts.Load())
			require.Equal(t, drained, fr.callCount())
		}
	})

	t.Run("second shutdown is a no-op", func(t *testing.T) {
		t.Parallel()

		svc := startController(t, newFakeStore(), &fakeReconciler{})

		require.NoError(t, svc.Shutdown(t.Context()))
		require.NoError(t, svc.Shutdown(t.Context()))
	})
}

func TestService_Resync(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.listed[store.KindGatiHandler] = []*unstructured.Unstructured{
		handlerResource("users"),
		handlerResource("orders"),
	}

	fr := &fakeReconciler{}
	svc := startController(t, fs, fr)

	require.NoError(t, svc.Resync(t.Context()))

	require.Eventually(t, func() bool {
		return fr.callCount() == 2
	}, time.Second, time.Millisecond)

	require.ElementsMatch(t, []string{"users", "orders"}, fr.callNames())

	require.NoError(t, svc.Shutdown(t.Context()))
}

// TestService_EndToEnd wires the controller to the real store, reconciler,
// and in-memory backend: a created GatiHandler must materialize its children
// and a deletion must remove them again.
func TestService_EndToEnd(t *testing.T) {
	t.Parallel()

	backend := store.NewMemoryBackend()
	st := store.New(testLogger(), backend, fastRetry())
	rec := reconcile.New(testLogger(), st)
	svc := controller.New(testLogger(), st, rec, "default", fastRetry())

	require.NoError(t, svc.Start(t.Context()))

	handler := handlerResource("users")
	require.NoError(t, st.Apply(t.Context(), handler))

	require.Eventually(t, func() bool {
		dep, err := st.Get(t.Context(), store.KindDeployment, "default", "handler-users")

		return err == nil && dep != nil
	}, 2*time.Second, 5*time.Millisecond)

	dep, err := st.Get(t.Context(), store.KindDeployment, "default", "handler-users")
	require.NoError(t, err)

	replicas, found, err := unstructured.NestedInt64(dep.Object, "spec", "replicas")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(2), replicas)

	svcObj, err := st.Get(t.Context(), store.KindService, "default", "handler-users")
	require.NoError(t, err)
	require.NotNil(t, svcObj)

	ports, found, err := unstructured.NestedSlice(svcObj.Object, "spec", "ports")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, ports, 1)

	require.NoError(t, st.Delete(t.Context(), store.KindGatiHandler, "default", "users"))

	require.Eventually(t, func() bool {
		dep, err := st.Get(t.Context(), store.KindDeployment, "default", "handler-users")

		return err == nil && dep == nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Shutdown(t.Context()))
}
