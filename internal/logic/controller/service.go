// Package controller runs the top-level control loop: it subscribes to
// change notifications for the watched custom-resource kinds, serializes
// reconciliation per resource key, retries failed reconciles with bounded
// backoff, and drains in-flight work on shutdown.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gati-framework/gati-operator/internal/logic/store"
)

// watchedKinds are the custom-resource kinds the controller reconciles.
// GatiVersion is data-only and deliberately not here.
var watchedKinds = []store.Kind{store.KindGatiHandler, store.KindGatiModule}

// DefaultRetryConfig returns the controller-level retry policy defaults.
func DefaultRetryConfig() store.RetryConfig {
	return store.RetryConfig{
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		MaxRetries:   3,
	}
}

// Service is the controller. It holds no authoritative cache: the only
// shared state is the per-key in-flight map, and the cluster API remains
// the sole source of truth for object state.
type Service struct {
	logger     *slog.Logger
	store      Store
	reconciler Reconciler
	namespace  string
	retry      store.RetryConfig

	// workCtx outlives shutdown so in-flight reconciliations run to
	// completion instead of being aborted half-applied.
	workCtx     context.Context
	watchCancel context.CancelFunc

	mu       sync.Mutex
	inflight map[store.Key]*keyQueue

	wg         sync.WaitGroup
	ready      chan struct{}
	inShutdown atomic.Bool
}

// New creates the controller service.
func New(
	logger *slog.Logger,
	s Store,
	r Reconciler,
	namespace string,
	retry store.RetryConfig,
) *Service {
	return &Service{
		logger:     logger,
		store:      s,
		reconciler: r,
		namespace:  namespace,
		retry:      retry,
		inflight:   make(map[store.Key]*keyQueue),
		ready:      make(chan struct{}),
	}
}

// Name returns the name of the controller component.
func (s *Service) Name() string {
	return "gati-controller"
}

// Start establishes the watch subscriptions and returns once they are all
// up; the watches themselves run in the background until shutdown.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "controller is shutting down, skipping start")

		return nil
	}

	s.workCtx = context.WithoutCancel(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel

	g := new(errgroup.Group)

	for _, kind := range watchedKinds {
		g.Go(func() error {
			return s.store.Watch(watchCtx, kind, s.namespace, s.handleEvent)
		})
	}

	if err := g.Wait(); err != nil {
		cancel()

		return fmt.Errorf("establish watches: %w", err)
	}

	s.logger.InfoContext(ctx, "controller watching",
		"namespace", s.namespace,
		"kinds", watchedKinds,
	)

	close(s.ready)

	return nil
}

// Ready returns a channel that is closed once all watches are established.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping returns nil when the controller is watching and not shutting down.
func (s *Service) Ping(ctx context.Context) error {
	if s.inShutdown.Load() {
		return fmt.Errorf("controller is shutting down")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		return nil
	default:
		return fmt.Errorf("controller is not ready")
	}
}

// Shutdown stops accepting notifications, cancels the watch subscriptions,
// and waits for every in-flight reconciliation (and its queued successors)
// to finish. The drain is deliberately unbounded: aborting mid-reconcile
// could leave child objects half-applied.
func (s *Service) Shutdown(ctx context.Context) error {
	// The flag flips under s.mu so it serializes with notification intake:
	// once set, every wg.Add for admitted work has already happened and
	// wg.Wait below cannot miss a late dispatch.
	s.mu.Lock()
	swapped := s.inShutdown.CompareAndSwap(false, true)
	s.mu.Unlock()

	if !swapped {
		s.logger.ErrorContext(ctx, "controller is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "controller shut down")
	}()

	s.logger.InfoContext(ctx, "shutting down controller, draining in-flight reconciliations")

	if s.watchCancel != nil {
		s.watchCancel()
	}

	s.wg.Wait()

	return nil
}

// Resync lists every watched resource and re-enqueues it as a synthetic
// MODIFIED notification. This heals keys whose retries were exhausted and
// that would otherwise stay divergent until their next real notification.
func (s *Service) Resync(ctx context.Context) error {
	if s.inShutdown.Load() {
		return nil
	}

	enqueued := 0

	for _, kind := range watchedKinds {
		objs, err := s.store.List(ctx, kind, s.namespace, "")
		if err != nil {
			return fmt.Errorf("resync list %s: %w", kind, err)
		}

		for _, obj := range objs {
			s.handleEvent(store.Event{Type: store.Modified, Resource: obj})
			enqueued++
		}
	}

	s.logger.InfoContext(ctx, "resync sweep enqueued", "count", enqueued)

	return nil
}
