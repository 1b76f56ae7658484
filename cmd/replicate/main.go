package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"podcast-insights/pkg/config"
	"podcast-insights/pkg/db"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/replication"
)

func main() {
	var (
		from = flag.String("from", config.BackendXLSX, "Backend to copy records from (supabase, postgres, mongo, sqlite, xlsx)")
		to   = flag.String("to", "", "Backend to copy records into (defaults to storage.backend from the config)")
	)
	flag.Parse()

	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Environment: cfg.Environment})

	if *to == "" {
		*to = cfg.Storage.Backend
	}
	if *from == *to {
		log.Fatalf("source and target backend are both %q", *from)
	}

	ctx := context.Background()

	sourceCfg := cfg.Storage
	sourceCfg.Backend = *from
	source, err := db.Open(ctx, sourceCfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open source store")
	}
	defer source.Close()

	targetCfg := cfg.Storage
	targetCfg.Backend = *to
	target, err := db.Open(ctx, targetCfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open target store")
	}
	defer target.Close()

	replicator, err := replication.NewReplicator(replication.Config{Source: source, Target: target, Log: log})
	if err != nil {
		log.WithError(err).Fatal("failed to create replicator")
	}

	start := time.Now()
	log.Infof("Replicating records from %s to %s", *from, *to)
	res, err := replicator.ReplicateRecords(ctx)
	if err != nil {
		log.WithError(err).Fatal("replication failed")
	}
	log.Infof("Done. Inserted %d of %d records. Duration: %s", res.Inserted, res.Processed, time.Since(start))
}
