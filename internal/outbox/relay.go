// Package outbox forwards committed wallet events from the event_outbox
// table to the message bus.
package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finmen/healcoin-wallet/internal/model"
)

// Store is the outbox side of the repository.
type Store interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

// Publisher delivers one event to the bus.
type Publisher interface {
	Publish(ctx context.Context, evt model.OutboxEvent) error
}

type Relay struct {
	store     Store
	publisher Publisher
	log       *zap.SugaredLogger
	batch     int
}

func NewRelay(store Store, publisher Publisher, logger *zap.SugaredLogger, batch int) *Relay {
	if batch <= 0 {
		batch = 100
	}
	return &Relay{store: store, publisher: publisher, log: logger, batch: batch}
}

// RunOnce publishes one batch in id order and returns how many events were
// sent. It stops at the first publish failure so per-wallet order holds; the
// failed event is retried on the next pass.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.PollOutbox(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("poll outbox: %w", err)
	}
	sent := 0
	for _, evt := range events {
		if err := r.publisher.Publish(ctx, evt); err != nil {
			return sent, fmt.Errorf("publish id=%d: %w", evt.ID, err)
		}
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			return sent, fmt.Errorf("mark processed id=%d: %w", evt.ID, err)
		}
		sent++
		r.log.Debugw("event sent", "id", evt.ID, "type", evt.EventType, "user_id", evt.AggregateID)
	}
	return sent, nil
}

// Run polls every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Infow("outbox relay started", "interval", interval.String(), "batch", r.batch)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Errorw("outbox relay pass failed", "sent", n, "error", err)
			}
		}
	}
}
