package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting parse worker", "parser", cfg.Parser.Kind, "beam_size", cfg.Parser.BeamSize)

	m := metrics.New()
	store, err := model.Open(cfg.Model, model.WithMetrics(m))
	if err != nil {
		slog.Error("failed to open model store", "dir", cfg.Model.Dir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	exec, err := executor.New(store, cfg.Parser, m)
	if err != nil {
		slog.Error("failed to build parser", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ParseResults)
	defer producer.Close()

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.ParseRequests,
		worker.HandleMessage(exec, producer),
	)
	defer kafkaConsumer.Close()
	parseWorker := worker.New(kafkaConsumer)

	slog.Info("parse worker ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.ParseRequests,
		"results", cfg.Kafka.Topics.ParseResults,
		"group", cfg.Kafka.ConsumerGroup,
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return m.Serve(gctx, fmt.Sprintf(":%d", cfg.Metrics.Port))
		})
	}
	g.Go(func() error {
		return parseWorker.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("parse worker error", "error", err)
	}
	slog.Info("parse worker stopped")
}
