package controller

import (
	"context"
	"time"

	"github.com/gati-framework/gati-operator/internal/infra/metrics"
	"github.com/gati-framework/gati-operator/internal/logic/store"
)

// keyQueue holds notifications that arrived for a key while an earlier
// reconciliation for the same key was still in flight. Presence of the
// entry in the in-flight map is what marks the key busy; the entry is
// removed once the queue drains, so the map cannot grow unboundedly.
type keyQueue struct {
	pending []store.Event
}

// handleEvent dispatches one notification. Reconciliations for different
// keys run concurrently; for the same key they run strictly in arrival
// order, each waiting for the previous one's full attempt sequence.
func (s *Service) handleEvent(event store.Event) {
	key := event.Key()

	s.mu.Lock()

	// Checked under s.mu: Shutdown sets the flag under the same lock, so
	// intake that saw it unset has registered with the WaitGroup before
	// Shutdown can start draining.
	if s.inShutdown.Load() {
		s.mu.Unlock()

		s.logger.Warn("dropping notification during shutdown",
			"key", key.String(),
			"event", event.Type,
		)

		return
	}

	if queue, busy := s.inflight[key]; busy {
		queue.pending = append(queue.pending, event)
		s.mu.Unlock()

		return
	}

	s.inflight[key] = &keyQueue{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runKey(key, event)
}

// runKey processes the key's notifications until none are pending.
func (s *Service) runKey(key store.Key, event store.Event) {
	defer s.wg.Done()

	for {
		s.reconcileWithRetry(s.workCtx, key, event)

		s.mu.Lock()

		queue := s.inflight[key]
		if len(queue.pending) == 0 {
			delete(s.inflight, key)
			s.mu.Unlock()

			return
		}

		event = queue.pending[0]
		queue.pending = queue.pending[1:]

		s.mu.Unlock()
	}
}

// reconcileWithRetry runs the whole reconcile up to MaxRetries+1 times with
// exponential backoff. Exhaustion is terminal for this notification only:
// it is logged with full context and the key stays divergent until a new
// notification (or a resync sweep) re-triggers it.
func (s *Service) reconcileWithRetry(ctx context.Context, key store.Key, event store.Event) {
	metrics.InflightInc()
	defer metrics.InflightDec()

	start := time.Now()

	var lastErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordRetry(string(key.Kind))

			delay := s.retry.Delay(attempt - 1)

			s.logger.InfoContext(ctx, "retrying reconciliation",
				"kind", key.Kind,
				"namespace", key.Namespace,
				"name", key.Name,
				"attempt", attempt,
				"delay", delay,
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		state, err := s.reconciler.Reconcile(ctx, event)
		if err == nil {
			metrics.RecordReconcile(string(key.Kind), "success", time.Since(start).Seconds())

			s.logger.DebugContext(ctx, "reconciliation succeeded",
				"kind", key.Kind,
				"namespace", key.Namespace,
				"name", key.Name,
				"state", state,
				"attempts", attempt+1,
			)

			return
		}

		lastErr = err

		s.logger.WarnContext(ctx, "reconciliation attempt failed",
			"kind", key.Kind,
			"namespace", key.Namespace,
			"name", key.Name,
			"event", event.Type,
			"attempt", attempt+1,
			"reason", err,
		)
	}

	metrics.RecordReconcile(string(key.Kind), "failure", time.Since(start).Seconds())

	s.logger.ErrorContext(ctx, "reconciliation retries exhausted, giving up on this notification",
		"kind", key.Kind,
		"namespace", key.Namespace,
		"name", key.Name,
		"event", event.Type,
		"attempts", s.retry.MaxRetries+1,
		"reason", lastErr,
	)
}
