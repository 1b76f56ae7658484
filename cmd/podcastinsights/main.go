package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"podcast-insights/pkg/config"
	"podcast-insights/pkg/db"
	"podcast-insights/pkg/discovery"
	"podcast-insights/pkg/insightservice"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/pipeline"
	"podcast-insights/pkg/scheduler"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Environment: cfg.Environment})
	log.WithFields(logrus.Fields{
		"backend": cfg.Storage.Backend,
		"model":   cfg.Gemini.Model,
		"query":   cfg.Search.Query,
	}).Info("starting podcast insights")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to open record store")
	}
	defer store.Close()

	ingest, err := pipeline.IngestionPipelineBuilder(ctx, cfg, store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	service := insightservice.New(
		discovery.FromConfig(cfg, log),
		ingest,
		insightservice.Settings{
			Query:      cfg.Search.Query,
			Window:     cfg.Window(),
			MaxResults: cfg.Search.MaxResults,
		},
		log,
	)

	if cfg.Schedule == "" {
		if err := runBatch(ctx, service, log); err != nil {
			store.Close()
			os.Exit(1)
		}
		return
	}

	sched, err := scheduler.NewScheduler(cfg.Timezone, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create scheduler")
	}
	err = sched.Schedule(cfg.Schedule, func(ctx context.Context) {
		_ = runBatch(ctx, service, log)
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule batch")
	}

	log.WithFields(logrus.Fields{
		"schedule": cfg.Schedule,
		"timezone": cfg.Timezone,
		"next_run": sched.Next().Format(time.RFC3339),
	}).Info("scheduler started")
	sched.Run(ctx)
	log.Info("shutting down")
}

func runBatch(ctx context.Context, service *insightservice.Service, log *logger.Logger) error {
	start := time.Now()
	summary, err := service.RunOnce(ctx)
	if err != nil {
		log.WithError(err).Error("batch failed")
		return err
	}
	log.WithFields(logrus.Fields{
		"completed": summary.Completed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"duration":  time.Since(start).Round(time.Millisecond).String(),
	}).Info("batch done")
	return nil
}
