package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/anjeev1098/reservation-system/internal/config"
	"github.com/anjeev1098/reservation-system/internal/mailer"
	"github.com/anjeev1098/reservation-system/internal/registration"
	"github.com/anjeev1098/reservation-system/internal/store"
	"github.com/anjeev1098/reservation-system/internal/tasks"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run boots the background worker: config → DB → asynq server + scheduler.
func run() error {
	var configPath string

	flagSet := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
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
	if err := cfg.RequireDB(); err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(); err != nil {
		return err
	}

	h := tasks.NewHandlers(tasks.HandlerOptions{
		Catalog:   db,
		Attendees: db,
		Sweeper: registration.NewReservations(registration.Options{
			Store:             db,
			Logger:            logger,
			ReservationWindow: cfg.ReservationWindow,
		}),
		Mailer: mailer.NewSendGrid(cfg.Mail.SendGridURL, cfg.Mail.SendGridToken, cfg.Mail.From),
		Logger: logger,
	})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			tasks.QueueCritical: 6,
			tasks.QueueDefault:  3,
			tasks.QueueLow:      1,
		},
		Logger:   tasks.NewLogger(logger),
		LogLevel: tasks.LogLevel(level),
	})

	mux := asynq.NewServeMux()
	h.Register(mux)

	// Periodic release of expired reservations.
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: tasks.NewLogger(logger), LogLevel: tasks.LogLevel(level)})
	if _, err := scheduler.Register(cfg.SweepSchedule, tasks.NewReservationSweepTask()); err != nil {
		return fmt.Errorf("register sweep %q: %w", cfg.SweepSchedule, err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	logger.Info("worker started", "redis", cfg.RedisAddr, "sweep", cfg.SweepSchedule)
	// Run blocks until SIGTERM/SIGINT.
	return srv.Run(mux)
}
