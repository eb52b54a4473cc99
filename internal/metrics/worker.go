package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PendingCounter reports how many imports are suspended.
type PendingCounter interface {
	Count(ctx context.Context) (int64, error)
}

// PendingWorker periodically refreshes the pending imports gauge.
type PendingWorker struct {
	source   PendingCounter
	metrics  *Metrics
	logger   zerolog.Logger
	interval time.Duration
}

func NewPendingWorker(source PendingCounter, m *Metrics, interval time.Duration, logger zerolog.Logger) *PendingWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PendingWorker{
		source:   source,
		metrics:  m,
		logger:   logger.With().Str("component", "pending_imports_worker").Logger(),
		interval: interval,
	}
}

// Run blocks until context cancellation.
func (w *PendingWorker) Run(ctx context.Context) error {
	if w.source == nil || w.metrics == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PendingWorker) tick(ctx context.Context) {
	n, err := w.source.Count(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("count pending imports failed")
		return
	}
	w.metrics.SetPending(n)
}
