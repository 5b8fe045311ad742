package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/cache"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/handler"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/userdict"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/resilience"
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
	slog.Info("starting parse service",
		"port", cfg.Server.Port,
		"parser", cfg.Parser.Kind,
		"beam_size", cfg.Parser.BeamSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	var redisClient *pkgredis.Client
	var parseCache *cache.ParseCache
	var guarded *cache.GuardedBackend
	if cfg.Redis.Enabled {
		err = resilience.Retry(ctx, "redis connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			var err error
			redisClient, err = pkgredis.NewClient(cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, parse caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			guarded = cache.NewGuardedBackend(redisClient, cfg.Redis.OpTimeout, resilience.CircuitBreakerConfig{
				FailureThreshold: cfg.Redis.BreakerThreshold,
				ResetTimeout:     cfg.Redis.BreakerReset,
			})
			parseCache = cache.New(guarded, cfg.Redis.CacheTTL, m)
			slog.Info("parse cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var pg *postgres.Client
	var dictRepo *userdict.Repository
	if cfg.Postgres.Enabled {
		err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func() error {
			var err error
			pg, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		dictRepo = userdict.NewRepository(pg)
		if err := dictRepo.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare user dictionary table", "error", err)
			os.Exit(1)
		}
		entries, err := dictRepo.Load(ctx)
		if err != nil {
			slog.Error("failed to load user dictionary", "error", err)
			os.Exit(1)
		}
		if len(entries) > 0 {
			if err := store.SetUserDictionaryMap(entries); err != nil {
				slog.Error("failed to install user dictionary", "error", err)
				os.Exit(1)
			}
		}
		slog.Info("user dictionary storage enabled", "entries", len(entries))
	}

	checker := health.NewChecker(2 * time.Second)
	checker.Register("model_store", func(ctx context.Context) health.ComponentHealth {
		loaded := store.Loaded()
		for _, name := range loaded {
			if name == model.ResDependencyModel {
				return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d resources loaded", len(loaded))}
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "dependency model not loaded"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if state := guarded.State(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if pg != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pg.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	var dict handler.DictionaryRepository
	if dictRepo != nil {
		dict = dictRepo
	}
	h := handler.New(exec, store, parseCache, dict)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.HandlerTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return m.Serve(gctx, fmt.Sprintf(":%d", cfg.Metrics.Port))
		})
	}
	g.Go(func() error {
		slog.Info("parse service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("parse service error", "error", err)
		os.Exit(1)
	}
	slog.Info("parse service stopped")
}
