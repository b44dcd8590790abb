package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/anjeev1098/reservation-system/internal/cache"
	"github.com/anjeev1098/reservation-system/internal/config"
	"github.com/anjeev1098/reservation-system/internal/httpserver"
	"github.com/anjeev1098/reservation-system/internal/registration"
	"github.com/anjeev1098/reservation-system/internal/store"
	"github.com/anjeev1098/reservation-system/internal/tasks"
)

type backend interface {
	registration.Store
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run boots the service: config → store → schema → HTTP server.
func run() error {
	var configPath string
	var memory bool

	flagSet := pflag.NewFlagSet("api", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flagSet.BoolVar(&memory, "memory", false, "use the in-memory store instead of Postgres (local runs only)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st backend
	if memory {
		logger.Warn("using in-memory store; state is lost on exit")
		st = store.NewMemoryStore()
	} else {
		if err := cfg.RequireDB(); err != nil {
			return err
		}
		// Connect to durable storage (Postgres) using a connection pool.
		db, err := store.NewPostgresStore(cfg.DBURL)
		if err != nil {
			return err
		}
		defer db.Close()

		// Ensure required tables/indexes exist so `docker compose up --build` is enough.
		if err := db.EnsureSchema(); err != nil {
			return err
		}
		st = db
	}

	opts := registration.Options{
		Store:             st,
		Logger:            logger,
		ReservationWindow: cfg.ReservationWindow,
	}
	deps := httpserver.Deps{Store: st, Logger: logger}

	if !memory {
		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer queue.Close()
		dispatcher := tasks.NewDispatcher(queue, logger)
		opts.Notifier = dispatcher
		deps.Exporter = dispatcher

		if cfg.CatalogCacheTTL > 0 {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()
			catalog := cache.NewCatalog(rdb, st, cfg.CatalogCacheTTL, logger)
			opts.Catalog = catalog
			deps.Cache = catalog
		}
	}

	deps.Purchaser = registration.NewOrchestrator(opts)
	deps.Intake = registration.NewIntake(opts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpserver.NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.Addr, "memory", memory)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
