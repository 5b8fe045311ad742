package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/kafka"
	"github.com/google/uuid"
)

// Parser is the executor surface the worker needs.
type Parser interface {
	Execute(ctx context.Context, tokens, tags []string) (*executor.ParseResult, error)
}

// Worker wraps a Kafka consumer to drive the parse pipeline.
type Worker struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(consumer *kafka.Consumer) *Worker {
	return &Worker{
		consumer: consumer,
		logger:   slog.Default().With("component", "parse-worker"),
	}
}

// Start blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("parse worker starting")
	return w.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that parses each request and
// publishes its result. Undecodable messages are logged and committed. A
// parse failure is published as a result with Error set. Only a failed
// publish leaves the message uncommitted.
func HandleMessage(parser Parser, results kafka.Publisher) kafka.MessageHandler {
	logger := slog.Default().With("component", "parse-worker")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[ParseRequest](value)
		if err != nil {
			logger.Error("failed to decode parse request",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if req.ID == "" {
			req.ID = string(key)
		}
		if req.ID == "" {
			req.ID = uuid.New().String()
		}

		start := time.Now()
		parsed, err := parser.Execute(ctx, req.Tokens, req.Tags)
		result := ParseResult{
			ID:        req.ID,
			LatencyMs: time.Since(start).Milliseconds(),
			ParsedAt:  time.Now().UTC(),
		}
		if err != nil {
			logger.Warn("parse request failed", "id", req.ID, "tokens", len(req.Tokens), "error", err)
			result.Error = err.Error()
		} else {
			result.Arcs = parsed.Arcs
			result.Parser = parsed.Parser
			result.BeamSize = parsed.BeamSize
		}

		if err := results.Publish(ctx, kafka.Event{Key: req.ID, Value: result}); err != nil {
			return fmt.Errorf("publishing result %s: %w", req.ID, err)
		}
		logger.Debug("parse request processed",
			"id", req.ID,
			"tokens", len(req.Tokens),
			"latency_ms", result.LatencyMs,
		)
		return nil
	}
}
