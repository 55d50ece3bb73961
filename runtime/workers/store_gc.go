package workers

import (
	"chat-match/contract"
	"context"
	"log/slog"
	"time"
)

const gcDiscardRatio = 0.5

// StoreGCWorker periodically reclaims value log space left by expired and
// rewritten sessions.
type StoreGCWorker struct {
	log       *slog.Logger
	collector contract.IGarbageCollector
	interval  time.Duration
}

func NewStoreGCWorker(log *slog.Logger, collector contract.IGarbageCollector, interval time.Duration) *StoreGCWorker {
	return &StoreGCWorker{log: log, collector: collector, interval: interval}
}

func (w *StoreGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.collector.CollectGarbage(gcDiscardRatio); err != nil {
				w.log.Warn("Value log GC failed", "error", err)
				continue
			}
			w.log.Debug("Value log GC done")
		}
	}
}
