package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// TopicVerificationRecorded carries outcomes from the external verification job.
const TopicVerificationRecorded = "member.verification.recorded"

type Message struct {
	Topic   string
	Payload []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// VerificationHandler is implemented by the application service.
type VerificationHandler interface {
	HandleVerificationRecorded(ctx context.Context, payload []byte) error
}

type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  VerificationHandler
	interval time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler VerificationHandler, interval time.Duration) *ConsumerWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{logger: logger, consumer: consumer, handler: handler, interval: interval}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) ProcessOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		switch msg.Topic {
		case TopicVerificationRecorded:
			if err := w.handler.HandleVerificationRecorded(ctx, msg.Payload); err != nil {
				w.logger.WarnContext(ctx, "failed to handle verification outcome",
					"module", "events.consumer_worker",
					"operation", "handle_verification_recorded",
					"outcome", "failure",
					"error", err,
				)
			}
		default:
			w.logger.DebugContext(ctx, "ignoring message", "topic", msg.Topic)
		}
	}
	return nil
}
