package replication

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"podcast-insights/pkg/db"
	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/urls"
)

const batchSize = 100

// Config wires the replication dependencies.
type Config struct {
	Source db.RecordStore
	Target db.RecordStore
	Log    *logger.Logger
}

// Result tallies one replication pass.
type Result struct {
	Processed int
	Inserted  int
	Skipped   int
}

// Replicator copies ingest records from one backend into another,
// e.g. from the local spreadsheet fallback into Supabase once it is reachable.
//
// This is a one-shot, "copy everything" flow. Records whose canonical URL the
// target already has are skipped, so re-running it is safe.
type Replicator struct {
	source db.RecordStore
	target db.RecordStore
	log    *logger.Logger
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source store is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("target store is required")
	}
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Replicator{
		source: cfg.Source,
		target: cfg.Target,
		log:    log.WithComponent("replication"),
	}, nil
}

// ReplicateRecords reads every record from the source and inserts the ones the target lacks.
// It stops at the first target error; records inserted before it stay inserted.
func (r *Replicator) ReplicateRecords(ctx context.Context) (Result, error) {
	records, err := r.source.ListRecords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read source records: %w", err)
	}

	r.log.WithField("records", len(records)).Info("loaded source records, processing in batches")

	var res Result
	seen := make(map[string]bool, len(records))
	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := calculateBatchEnd(start, batchSize, len(records))

		if err := r.processBatch(ctx, records[start:end], seen, &res); err != nil {
			return res, fmt.Errorf("batch [%d:%d]: %w", start, end, err)
		}
		r.logProgress(res, len(records))
	}

	r.log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"inserted":  res.Inserted,
		"skipped":   res.Skipped,
	}).Info("replication complete")
	return res, nil
}

// calculateBatchEnd calculates the end index for a batch, ensuring it doesn't exceed the total length.
func calculateBatchEnd(start, size, totalLen int) int {
	end := start + size
	if end > totalLen {
		return totalLen
	}
	return end
}

// processBatch checks each record against the target and inserts the new ones
func (r *Replicator) processBatch(ctx context.Context, batch []domain.IngestRecord, seen map[string]bool, res *Result) error {
	for i := range batch {
		rec := batch[i]
		res.Processed++

		key := urls.Normalize(rec.YouTubeURL)
		if key == "" || seen[key] {
			res.Skipped++
			continue
		}
		seen[key] = true

		exists, err := r.target.URLExists(ctx, key)
		if err != nil {
			return fmt.Errorf("check %s: %w", key, err)
		}
		if exists {
			res.Skipped++
			continue
		}

		rec.YouTubeURL = key
		if err := r.target.InsertRecord(ctx, &rec); err != nil {
			return fmt.Errorf("insert %s: %w", key, err)
		}
		res.Inserted++
	}
	return nil
}

// logProgress logs every 1000 records and at completion
func (r *Replicator) logProgress(res Result, total int) {
	if res.Processed%1000 == 0 || res.Processed == total {
		r.log.Debugf("progress: processed %d/%d records, inserted %d", res.Processed, total, res.Inserted)
	}
}
