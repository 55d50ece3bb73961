package workers

import (
	"chat-match/contract"
	"chat-match/errors"
	"context"
	"log/slog"
	"time"
)

// KeepaliveWorker pushes back the expiry of every session whose connection is
// still registered, so that only abandoned records ever reach their TTL.
type KeepaliveWorker struct {
	log        *slog.Logger
	registry   contract.IRegistry
	repository contract.ISessionRepository
	interval   time.Duration
}

func NewKeepaliveWorker(log *slog.Logger, registry contract.IRegistry,
	repository contract.ISessionRepository, interval time.Duration) *KeepaliveWorker {
	return &KeepaliveWorker{
		log:        log,
		registry:   registry,
		repository: repository,
		interval:   interval,
	}
}

func (w *KeepaliveWorker) Run(ctx context.Context) error {
	w.log.Info("Starting session keepalive worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.touchAll(ctx)
		}
	}
}

func (w *KeepaliveWorker) touchAll(ctx context.Context) {
	touched := 0
	for _, id := range w.registry.ConnectionIDs() {
		err := w.repository.Touch(ctx, id)
		switch {
		case err == nil:
			touched++
		case errors.Is(err, errors.ErrSessionNotFound):
			// Connected but idle: nothing to keep alive.
		default:
			w.log.Warn("Unable to refresh session", "connection_id", id, "error", err)
		}
	}
	w.log.Debug("Sessions refreshed", "count", touched)
}
