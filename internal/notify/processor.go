package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/k1networth/servicedesk-lite/internal/shared/events"
)

// ErrMalformed marks a message that can never be processed. The offset is
// committed anyway so it does not block the partition.
var ErrMalformed = errors.New("notify: malformed event")

// Ledger is the dedup bookkeeping behind Processor.
type Ledger interface {
	StartProcessing(ctx context.Context, e ProcessedEvent) (bool, error)
	MarkDone(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, errMsg string) error
}

// Source is the subset of kafkax.Consumer the run loop needs.
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Reopen()
}

type Processor struct {
	Ledger  Ledger
	Log     *slog.Logger
	Metrics *Metrics

	// ReopenAfter is the number of consecutive fetch errors before the reader is rebuilt.
	ReopenAfter int
	// FetchBackoff is the pause after a failed fetch.
	FetchBackoff time.Duration
}

// ticketPayload is the part of the ticket JSON the notifier reads.
type ticketPayload struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Product string `json:"product"`
	Status  string `json:"status"`
}

// Handle processes one raw envelope. Already handled events are skipped.
func (p *Processor) Handle(ctx context.Context, value []byte) (eventType string, err error) {
	var env events.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return "unknown", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.EventID == "" || env.EventType == "" {
		return "unknown", fmt.Errorf("%w: missing event_id or event_type", ErrMalformed)
	}

	shouldProcess, err := p.Ledger.StartProcessing(ctx, ProcessedEvent{
		EventID:     env.EventID,
		EventType:   env.EventType,
		Aggregate:   env.Aggregate,
		AggregateID: env.AggregateID,
		Payload:     env.Payload,
	})
	if err != nil {
		return env.EventType, err
	}
	if !shouldProcess {
		p.Log.Info("event_skip_done", slog.String("event_id", env.EventID), slog.String("event_type", env.EventType))
		return env.EventType, nil
	}

	if err := p.notify(env); err != nil {
		_ = p.Ledger.MarkFailed(ctx, env.EventID, err.Error())
		return env.EventType, err
	}

	if err := p.Ledger.MarkDone(ctx, env.EventID); err != nil {
		_ = p.Ledger.MarkFailed(ctx, env.EventID, err.Error())
		return env.EventType, err
	}
	return env.EventType, nil
}

func (p *Processor) notify(env events.Envelope) error {
	if env.Aggregate != events.AggregateTicket {
		p.Log.Debug("event_ignored", slog.String("event_id", env.EventID), slog.String("aggregate", env.Aggregate))
		return nil
	}

	var t ticketPayload
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return fmt.Errorf("decode ticket payload: %w", err)
	}

	p.Log.Info("notify_owner",
		slog.String("event_id", env.EventID),
		slog.String("event_type", env.EventType),
		slog.String("request_id", env.RequestID),
		slog.String("ticket_id", t.ID),
		slog.String("owner", t.Owner),
		slog.String("product", t.Product),
		slog.String("status", t.Status),
	)
	return nil
}

// Run consumes src until ctx is done. Offsets are committed only after a
// message was handled, or when it is malformed.
func (p *Processor) Run(ctx context.Context, src Source) {
	reopenAfter := p.ReopenAfter
	if reopenAfter <= 0 {
		reopenAfter = 5
	}
	backoff := p.FetchBackoff
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}

	fetchErrors := 0
	for ctx.Err() == nil {
		msg, err := src.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fetchErrors++
			p.Log.Error("kafka_fetch_failed", slog.String("err", err.Error()), slog.Int("consecutive", fetchErrors))
			if fetchErrors >= reopenAfter {
				p.Log.Warn("kafka_reader_reopen")
				src.Reopen()
				p.Metrics.Reopens.Inc()
				fetchErrors = 0
			}
			sleep(ctx, backoff)
			continue
		}
		fetchErrors = 0

		eventType, err := p.Handle(ctx, msg.Value)
		status := "ok"
		switch {
		case errors.Is(err, ErrMalformed):
			status = "malformed"
			p.Log.Warn("message_malformed", slog.Int64("offset", msg.Offset), slog.String("err", err.Error()))
		case err != nil:
			status = "error"
			p.Log.Error("message_handle_failed", slog.String("event_type", eventType), slog.String("err", err.Error()))
		}
		p.Metrics.Processed.WithLabelValues(eventType, status).Inc()

		if status == "error" {
			continue
		}
		if err := src.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			p.Log.Error("kafka_commit_failed", slog.String("err", err.Error()))
		}
	}
	p.Log.Info("consumer_shutdown")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
