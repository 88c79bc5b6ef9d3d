package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/k1networth/servicedesk-lite/internal/shared/events"
)

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 5 * time.Minute
)

type RelayStore interface {
	ResetStuck(ctx context.Context, processingTimeout time.Duration) (int64, error)
	ClaimPending(ctx context.Context, batchSize int) ([]Event, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error
	MarkDead(ctx context.Context, id int64, errMsg string) error
	LagSeconds(ctx context.Context) (float64, error)
}

// Publisher is the broker side of the relay; kafkax.Producer implements it.
type Publisher interface {
	Produce(ctx context.Context, key []byte, value []byte, timeout time.Duration) error
}

type RelayConfig struct {
	BatchSize         int
	ProcessingTimeout time.Duration
	MaxAttempts       int
	PublishTimeout    time.Duration
}

type Relay struct {
	Store     RelayStore
	Publisher Publisher
	Metrics   *Metrics
	Log       *slog.Logger
	Config    RelayConfig

	now func() time.Time
}

// RetryDelay is the wait before the next publish attempt: 1s doubled per
// attempt already made, capped at 5m.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := baseRetryDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

// Run polls every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce requeues stuck rows, claims a batch and publishes it. It returns the
// number of events published.
func (r *Relay) RunOnce(ctx context.Context) int {
	r.Metrics.PollsTotal.Inc()

	if n, err := r.Store.ResetStuck(ctx, r.Config.ProcessingTimeout); err != nil {
		r.Metrics.StoreErrors.WithLabelValues("requeue").Inc()
		r.Log.Error("outbox_requeue_failed", slog.String("err", err.Error()))
	} else if n > 0 {
		r.Metrics.RequeuedTotal.Add(float64(n))
		r.Log.Warn("outbox_requeued_stuck", slog.Int64("count", n))
	}

	recs, err := r.Store.ClaimPending(ctx, r.Config.BatchSize)
	if err != nil {
		r.Metrics.StoreErrors.WithLabelValues("claim").Inc()
		r.Log.Error("outbox_claim_failed", slog.String("err", err.Error()))
		return 0
	}

	published := 0
	for _, rec := range recs {
		if r.publish(ctx, rec) {
			published++
		}
	}

	if lag, err := r.Store.LagSeconds(ctx); err != nil {
		r.Metrics.StoreErrors.WithLabelValues("lag").Inc()
	} else {
		r.Metrics.LagSeconds.Set(lag)
	}

	return published
}

func (r *Relay) publish(ctx context.Context, rec Event) bool {
	log := r.Log.With(
		slog.Int64("id", rec.ID),
		slog.String("event_id", rec.EventID),
		slog.String("event_type", rec.EventType),
		slog.String("aggregate_id", rec.AggregateID),
		slog.Int("attempts", rec.Attempts),
	)

	value, err := json.Marshal(events.Envelope{
		EventID:     rec.EventID,
		EventType:   rec.EventType,
		OccurredAt:  rec.CreatedAt.UTC(),
		Aggregate:   rec.Aggregate,
		AggregateID: rec.AggregateID,
		RequestID:   rec.RequestID,
		Payload:     rec.Payload,
	})
	if err == nil {
		err = r.Publisher.Produce(ctx, []byte(rec.AggregateID), value, r.Config.PublishTimeout)
	}

	if err != nil {
		r.Metrics.FailedTotal.WithLabelValues(rec.EventType).Inc()

		if r.Config.MaxAttempts > 0 && rec.Attempts >= r.Config.MaxAttempts {
			r.Metrics.DeadTotal.WithLabelValues(rec.EventType).Inc()
			log.Error("outbox_event_dead", slog.String("err", err.Error()))
			if markErr := r.Store.MarkDead(ctx, rec.ID, err.Error()); markErr != nil {
				r.Metrics.StoreErrors.WithLabelValues("mark_dead").Inc()
				log.Error("outbox_mark_dead_failed", slog.String("err", markErr.Error()))
			}
			return false
		}

		next := r.clock().Add(RetryDelay(rec.Attempts))
		log.Warn("outbox_publish_failed", slog.String("err", err.Error()), slog.Time("next_retry_at", next))
		if markErr := r.Store.MarkFailed(ctx, rec.ID, next, err.Error()); markErr != nil {
			r.Metrics.StoreErrors.WithLabelValues("mark_failed").Inc()
			log.Error("outbox_mark_failed_failed", slog.String("err", markErr.Error()))
		}
		return false
	}

	if err := r.Store.MarkSent(ctx, rec.ID); err != nil {
		// Published but not marked; the row will be requeued and published again.
		// Consumers deduplicate on event_id.
		r.Metrics.StoreErrors.WithLabelValues("mark_sent").Inc()
		log.Error("outbox_mark_sent_failed", slog.String("err", err.Error()))
		return false
	}

	r.Metrics.PublishedTotal.WithLabelValues(rec.EventType).Inc()
	log.Info("outbox_event_published")
	return true
}

func (r *Relay) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}
