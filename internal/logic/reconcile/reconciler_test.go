package reconcile_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/gati-framework/gati-operator/internal/logic/reconcile"
	"github.com/gati-framework/gati-operator/internal/logic/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(backend *store.MemoryBackend) *store.Store {
	return store.New(testLogger(), backend, store.RetryConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		MaxRetries:   3,
	})
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
			"version":     "v2",
			"replicas":    int64(2),
			"image":       "gati/" + name + ":v2",
			"port":        int64(3000),
			"env": map[string]any{
				"LOG_LEVEL": "debug",
			},
		},
	}}
}

func moduleResource(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "gati.dev/v1alpha1",
		"kind":       "GatiModule",
		"metadata": map[string]any{
			"name":      name,
			"namespace": "default",
		},
		"spec": map[string]any{
			"moduleName": name,
			"moduleType": "wasm",
			"runtime":    "wasmtime",
			"replicas":   int64(1),
			"image":      "gati/" + name + ":latest",
			"port":       int64(8080),
		},
	}}
}

func TestReconcile_Apply(t *testing.T) {
	t.Parallel()

	t.Run("added handler creates all three children", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		s := newStore(backend)
		r := reconcile.New(testLogger(), s)

		state, err := r.Reconcile(t.Context(), store.Event{
			Type:     store.Added,
			Resource: handlerResource("users"),
		})
		require.NoError(t, err)
		require.Equal(t, reconcile.StateApplied, state)

		dep, err := s.Get(t.Context(), store.KindDeployment, "default", "handler-users")
		require.NoError(t, err)
		require.NotNil(t, dep)

		replicas, found, err := unstructured.NestedInt64(dep.Object, "spec", "replicas")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, int64(2), replicas)

		svc, err := s.Get(t.Context(), store.KindService, "default", "handler-users")
		require.NoError(t, err)
		require.NotNil(t, svc)

		cm, err := s.Get(t.Context(), store.KindConfigMap, "default", "handler-users")
		require.NoError(t, err)
		require.NotNil(t, cm)
	})

	t.Run("module children use module naming", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		s := newStore(backend)
		r := reconcile.New(testLogger(), s)

		state, err := r.Reconcile(t.Context(), store.Event{
			Type:     store.Added,
			Resource: moduleResource("auth"),
		})
		require.NoError(t, err)
		require.Equal(t, reconcile.StateApplied, state)

		dep, err := s.Get(t.Context(), store.KindDeployment, "default", "module-auth")
		require.NoError(t, err)
		require.NotNil(t, dep)
	})

	t.Run("reconciling twice is idempotent", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		s := newStore(backend)
		r := reconcile.New(testLogger(), s)

		event := store.Event{Type: store.Added, Resource: handlerResource("users")}

		_, err := r.Reconcile(t.Context(), event)
		require.NoError(t, err)

		event.Type = store.Modified

		_, err = r.Reconcile(t.Context(), event)
		require.NoError(t, err)

		require.Equal(t, 3, backend.Len())
	})

	t.Run("modified resource updates children", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		s := newStore(backend)
		r := reconcile.New(testLogger(), s)

		_, err := r.Reconcile(t.Context(), store.Event{Type: store.Added, Resource: handlerResource("users")})
		require.NoError(t, err)

		updated := handlerResource("users")
		require.NoError(t, unstructured.SetNestedField(updated.Object, int64(5), "spec", "replicas"))

		_, err = r.Reconcile(t.Context(), store.Event{Type: store.Modified, Resource: updated})
		require.NoError(t, err)

		dep, err := s.Get(t.Context(), store.KindDeployment, "default", "handler-users")
		require.NoError(t, err)

		replicas, _, err := unstructured.NestedInt64(dep.Object, "spec", "replicas")
		require.NoError(t, err)
		require.Equal(t, int64(5), replicas)
	})

	t.Run("invalid spec fails without touching the store", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		r := reconcile.New(testLogger(), newStore(backend))

		broken := handlerResource("users")
		require.NoError(t, unstructured.SetNestedField(broken.Object, "", "spec", "image"))

		state, err := r.Reconcile(t.Context(), store.Event{Type: store.Added, Resource: broken})
		require.Error(t, err)
		require.ErrorIs(t, err, reconcile.ErrInvalidSpec)
		require.Equal(t, reconcile.StateFailed, state)
		require.Equal(t, 0, backend.Len())
	})

	t.Run("malformed quantity is rejected before generation", func(t *testing.T) {
		t.Parallel()

		r := reconcile.New(testLogger(), newStore(store.NewMemoryBackend()))

		broken := handlerResource("users")
		require.NoError(t, unstructured.SetNestedField(broken.Object, "lots", "spec", "resources", "requests", "cpu"))

		_, err := r.Reconcile(t.Context(), store.Event{Type: store.Added, Resource: broken})
		require.ErrorIs(t, err, reconcile.ErrInvalidSpec)
	})

	t.Run("unsupported kind is rejected", func(t *testing.T) {
		t.Parallel()

		r := reconcile.New(testLogger(), newStore(store.NewMemoryBackend()))

		obj := handlerResource("users")
		obj.SetKind("GatiVersion")

		state, err := r.Reconcile(t.Context(), store.Event{Type: store.Added, Resource: obj})
		require.ErrorIs(t, err, reconcile.ErrUnsupportedKind)
		require.Equal(t, reconcile.StateFailed, state)
	})
}

func TestReconcile_Delete(t *testing.T) {
	t.Parallel()

	t.Run("removes all children", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		s := newStore(backend)
		r := reconcile.New(testLogger(), s)

		_, err := r.Reconcile(t.Context(), store.Event{Type: store.Added, Resource: handlerResource("users")})
		require.NoError(t, err)
		require.Equal(t, 3, backend.Len())

		state, err := r.Reconcile(t.Context(), store.Event{Type: store.Deleted, Resource: handlerResource("users")})
		require.NoError(t, err)
		require.Equal(t, reconcile.StateAbsent, state)
		require.Equal(t, 0, backend.Len())
	})

	t.Run("delete with no children succeeds", func(t *testing.T) {
		t.Parallel()

		r := reconcile.New(testLogger(), newStore(store.NewMemoryBackend()))

		state, err := r.Reconcile(t.Context(), store.Event{Type: store.Deleted, Resource: handlerResource("ghost")})
		require.NoError(t, err)
		require.Equal(t, reconcile.StateAbsent, state)
	})

	t.Run("delete works even when the spec is malformed", func(t *testing.T) {
		t.Parallel()

		backend := store.NewMemoryBackend()
		s := newStore(backend)
		r := reconcile.New(testLogger(), s)

		_, err := r.Reconcile(t.Context(), store.Event{Type: store.Added, Resource: handlerResource("users")})
		require.NoError(t, err)

		broken := handlerResource("users")
		broken.Object["spec"] = map[string]any{}

		state, err := r.Reconcile(t.Context(), store.Event{Type: store.Deleted, Resource: broken})
		require.NoError(t, err)
		require.Equal(t, reconcile.StateAbsent, state)
		require.Equal(t, 0, backend.Len())
	})
}

func TestReconcile_UnknownEventType(t *testing.T) {
	t.Parallel()

	r := reconcile.New(testLogger(), newStore(store.NewMemoryBackend()))

	state, err := r.Reconcile(t.Context(), store.Event{Type: store.EventType("BOOKMARK"), Resource: handlerResource("users")})
	require.Error(t, err)
	require.Equal(t, reconcile.StateFailed, state)
	require.False(t, errors.Is(err, reconcile.ErrInvalidSpec))
}
