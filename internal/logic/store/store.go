package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Backend is the port interface for the underlying object store.
// Implementations are provided by adapters in the outbound layer; an
// in-memory backend is provided for tests.
//
// Get must return a NotFoundError-classified error for absent objects,
// and writes must return ConflictError-classified errors for concurrent
// modification. Watch must keep delivering events until ctx is done;
// stream reconnection is the backend's concern. Delivery detail beyond
// that is backend-specific: the Kubernetes backend replays the current
// object list as ADDED events before streaming changes, while the
// in-memory backend streams subsequent changes only and sheds events to
// a consumer that stops draining its buffer.
type Backend interface {
	Create(ctx context.Context, obj *unstructured.Unstructured) error
	Update(ctx context.Context, obj *unstructured.Unstructured) error
	Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, kind Kind, namespace, name string) error
	List(ctx context.Context, kind Kind, namespace, labelSelector string) ([]*unstructured.Unstructured, error)
	Watch(ctx context.Context, kind Kind, namespace string) (<-chan Event, error)
}

// RetryConfig bounds how long a single write may retry before surfacing
// an error.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
}

// DefaultRetryConfig returns the store-level retry policy defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		MaxRetries:   3,
	}
}

// Delay returns the backoff delay before the given retry, capped at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	delay := c.InitialDelay << attempt
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}

	return delay
}

// Store is the resource store: idempotent create/read/update/delete/list/watch
// over a Backend, parameterized by object kind and namespace.
type Store struct {
	logger  *slog.Logger
	backend Backend
	retry   RetryConfig
}

// New creates a resource store over the given backend.
func New(logger *slog.Logger, backend Backend, retry RetryConfig) *Store {
	return &Store{
		logger:  logger,
		backend: backend,
		retry:   retry,
	}
}

// Apply upserts obj: create when absent, replace when present. Applying the
// same object twice produces the same end state. Transient write failures are
// retried with exponential backoff; conflict and not-found failures surface
// immediately so the caller re-fetches instead of retrying a stale write.
func (s *Store) Apply(ctx context.Context, obj *unstructured.Unstructured) error {
	kind := Kind(obj.GetKind())
	if kind == "" {
		return fmt.Errorf("apply %s/%s: object has no kind", obj.GetNamespace(), obj.GetName())
	}

	existing, err := s.backend.Get(ctx, kind, obj.GetNamespace(), obj.GetName())
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("apply %s %s/%s: fetch current: %w", kind, obj.GetNamespace(), obj.GetName(), err)
	}

	write := func(ctx context.Context) error {
		if existing == nil {
			return s.backend.Create(ctx, obj)
		}

		// Replace requires the current resource version or the write is
		// rejected as stale.
		replacement := obj.DeepCopy()
		replacement.SetResourceVersion(existing.GetResourceVersion())

		return s.backend.Update(ctx, replacement)
	}

	err = s.withRetry(ctx, Key{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}, write)
	if err != nil {
		return fmt.Errorf("apply %s %s/%s: %w", kind, obj.GetNamespace(), obj.GetName(), err)
	}

	return nil
}

// Delete removes the object. An already-absent object is success: the
// desired end state holds.
func (s *Store) Delete(ctx context.Context, kind Kind, namespace, name string) error {
	err := s.backend.Delete(ctx, kind, namespace, name)
	if err != nil {
		if IsNotFound(err) {
			s.logger.DebugContext(ctx, "delete of absent object is a no-op",
				"kind", kind,
				"namespace", namespace,
				"name", name,
			)

			return nil
		}

		return fmt.Errorf("delete %s %s/%s: %w", kind, namespace, name, err)
	}

	return nil
}

// Get returns the object, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, kind Kind, namespace, name string) (*unstructured.Unstructured, error) {
	obj, err := s.backend.Get(ctx, kind, namespace, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("get %s %s/%s: %w", kind, namespace, name, err)
	}

	return obj, nil
}

// List returns all objects of the kind in the namespace, optionally filtered
// by label selector. An empty result is an empty slice, not an error.
func (s *Store) List(ctx context.Context, kind Kind, namespace, labelSelector string) ([]*unstructured.Unstructured, error) {
	objs, err := s.backend.List(ctx, kind, namespace, labelSelector)
	if err != nil {
		if IsNotFound(err) {
			return []*unstructured.Unstructured{}, nil
		}

		return nil, fmt.Errorf("list %s in %s: %w", kind, namespace, err)
	}

	return objs, nil
}

// Watch subscribes onEvent to change notifications for the kind in the
// namespace. It returns once the subscription is established; events are
// delivered sequentially from a background goroutine until ctx is done.
func (s *Store) Watch(ctx context.Context, kind Kind, namespace string, onEvent EventHandler) error {
	events, err := s.backend.Watch(ctx, kind, namespace)
	if err != nil {
		return fmt.Errorf("watch %s in %s: %w", kind, namespace, err)
	}

	go func() {
		for event := range events {
			onEvent(event)
		}

		s.logger.DebugContext(ctx, "watch stream closed",
			"kind", kind,
			"namespace", namespace,
		)
	}()

	return nil
}

// withRetry runs write with the store retry policy. Conflict and not-found
// failures are not transient and surface immediately.
func (s *Store) withRetry(ctx context.Context, key Key, write func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retry.Delay(attempt - 1)

			s.logger.DebugContext(ctx, "retrying write",
				"key", key.String(),
				"attempt", attempt,
				"delay", delay,
			)

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = write(ctx)
		if lastErr == nil {
			return nil
		}

		if IsConflict(lastErr) || IsNotFound(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", s.retry.MaxRetries+1, lastErr)
}
