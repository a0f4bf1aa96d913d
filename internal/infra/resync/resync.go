// Package resync runs the optional periodic reconciliation sweep. Without
// it, a key whose retries were exhausted stays divergent until the next
// real watch notification; the sweep re-enqueues every watched resource on
// a cron schedule so such keys eventually heal.
package resync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Syncer re-enqueues every watched resource for reconciliation.
type Syncer interface {
	Resync(ctx context.Context) error
}

// Service triggers the sweep on each schedule occurrence.
type Service struct {
	logger     *slog.Logger
	schedule   *Schedule
	syncer     Syncer
	ready      chan struct{}
	doneCh     chan struct{}
	inShutdown atomic.Bool
}

// New creates a resync service.
func New(logger *slog.Logger, schedule *Schedule, syncer Syncer) *Service {
	return &Service{
		logger:   logger,
		schedule: schedule,
		syncer:   syncer,
		ready:    make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Name returns the name of the resync component.
func (s *Service) Name() string {
	return "resync-sweeper"
}

// Start starts the sweep loop in a goroutine.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "resync sweeper is shutting down, skipping start")

		return nil
	}

	go s.run(ctx)

	return nil
}

// Ready returns a channel that is closed when the sweep loop is running.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping returns nil when the sweep loop is running.
func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		return nil
	default:
		return fmt.Errorf("resync sweeper is not ready")
	}
}

// Shutdown stops the sweep loop.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "resync sweeper is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "resync sweeper shut down")
	}()

	s.logger.InfoContext(ctx, "shutting down resync sweeper")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before resync loop exited: %w", ctx.Err())
	case <-s.doneCh:
	}

	return nil
}

func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)

	logger := s.logger.With("component", "resync-run")

	close(s.ready)

	for {
		next := s.schedule.NextAfter(time.Now())

		logger.DebugContext(ctx, "next resync sweep scheduled", "at", next)

		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "terminating resync loop")

			return
		case <-time.After(time.Until(next)):
		}

		if s.inShutdown.Load() {
			logger.InfoContext(ctx, "terminating resync loop")

			return
		}

		if err := s.syncer.Resync(ctx); err != nil {
			logger.ErrorContext(ctx, "resync sweep failed", "reason", err)
		}
	}
}
