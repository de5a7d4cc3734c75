package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/metrics"
)

// Handler dispatches a validated event to its recipients.
type Handler interface {
	Handle(ctx context.Context, env *event.Envelope) error
}

// Deduper filters replayed events before they reach the handler.
// Fingerprints are recorded only after a successful dispatch, so an event
// whose processing never completed is redelivered, not filtered.
type Deduper interface {
	Seen(ctx context.Context, fingerprint string) (bool, error)
	Mark(ctx context.Context, fingerprint string) error
}

// Receiver is the queue side the worker consumes from.
type Receiver interface {
	ReceiveMessage(ctx context.Context) (*Message, string, error)
	DeleteMessage(ctx context.Context, receiptHandle string) error
}

type Worker struct {
	consumer Receiver
	deduper  Deduper
	handler  Handler
	logger   *zap.Logger
}

func NewWorker(consumer Receiver, deduper Deduper, handler Handler, logger *zap.Logger) *Worker {
	return &Worker{
		consumer: consumer,
		deduper:  deduper,
		handler:  handler,
		logger:   logger,
	}
}

// Start consumes events until the context is cancelled. ReceiveMessage long
// polls, so the loop blocks in SQS rather than spinning.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
			w.processOne(ctx)
		}
	}
}

func (w *Worker) processOne(ctx context.Context) {
	msg, receiptHandle, err := w.consumer.ReceiveMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("failed to receive message", zap.Error(err))
		time.Sleep(time.Second)
		return
	}
	if msg == nil {
		return
	}

	env := &msg.Event
	kind := string(env.Kind)
	fingerprint := env.Fingerprint()

	if err := env.Validate(); err != nil {
		// Malformed events can never succeed; drop them instead of cycling
		// through redelivery.
		w.logger.Error("dropping invalid event",
			zap.Error(err),
			zap.String("fingerprint", fingerprint),
		)
		metrics.RecordEventProcessed(kind, metrics.OutcomeFailed)
		w.deleteMessage(ctx, receiptHandle, fingerprint)
		return
	}

	if w.deduper != nil {
		seen, err := w.deduper.Seen(ctx, fingerprint)
		if err != nil {
			// Redis unavailable: proceed without the fast path. The unique
			// constraint on the notifications table still prevents duplicates.
			w.logger.Warn("dedup check failed, continuing",
				zap.Error(err),
				zap.String("fingerprint", fingerprint),
			)
		} else if seen {
			w.logger.Info("skipping duplicate event",
				zap.String("fingerprint", fingerprint),
			)
			metrics.RecordEventProcessed(kind, metrics.OutcomeSkipped)
			w.deleteMessage(ctx, receiptHandle, fingerprint)
			return
		}
	}

	if err := w.handler.Handle(ctx, env); err != nil {
		w.logger.Error("failed to dispatch event",
			zap.Error(err),
			zap.String("fingerprint", fingerprint),
			zap.Int("attempt", msg.Attempt+1),
		)
		metrics.RecordEventProcessed(kind, metrics.OutcomeFailed)

		// The message stays on the queue and becomes visible again after
		// the visibility timeout. The fingerprint was never marked, so the
		// redelivery is dispatched, not filtered.
		return
	}

	// Mark only after the event is fully handled. Marking first would let a
	// crash mid-dispatch turn the redelivery into a false duplicate and
	// lose the event.
	if w.deduper != nil {
		if err := w.deduper.Mark(ctx, fingerprint); err != nil {
			w.logger.Warn("failed to record fingerprint",
				zap.Error(err),
				zap.String("fingerprint", fingerprint),
			)
		}
	}

	metrics.RecordEventProcessed(kind, metrics.OutcomeDelivered)
	if !env.OccurredAt.IsZero() {
		metrics.RecordDispatchLatency(kind, time.Since(env.OccurredAt))
	}
	w.deleteMessage(ctx, receiptHandle, fingerprint)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle, fingerprint string) {
	if err := w.consumer.DeleteMessage(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete message",
			zap.Error(err),
			zap.String("fingerprint", fingerprint),
		)
	}
}
