package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/record"
	"podcast-insights/pkg/urls"
)

// DedupStore gates work on previously persisted records
type DedupStore interface {
	// Exists reports whether a record for the canonical URL was saved. It does not fail.
	Exists(ctx context.Context, canonicalURL string) bool
	// Save inserts the record exactly once and reports write failures
	Save(ctx context.Context, rec domain.IngestRecord) error
}

// AudioAcquirer downloads the audio for a canonical URL
type AudioAcquirer interface {
	// Acquire returns metadata and a handle the caller must release
	Acquire(ctx context.Context, canonicalURL string) (*domain.SourceMetadata, *domain.AudioHandle, error)
}

// InsightExtractor derives the interviewee and insights.
// On failure both methods still return their sentinel value alongside the error.
type InsightExtractor interface {
	ExtractInterviewee(ctx context.Context, description string) (string, error)
	ExtractInsights(ctx context.Context, audio *domain.AudioHandle) (domain.InsightSet, error)
}

// Options tunes per-URL policy
type Options struct {
	// SkipWithoutDescription turns a missing description into Skipped(no-description).
	// When false the URL proceeds with an unknown interviewee.
	SkipWithoutDescription bool
}

// Pipeline processes candidate URLs one at a time
type Pipeline struct {
	dedup     DedupStore
	acquirer  AudioAcquirer
	extractor InsightExtractor
	opts      Options
	log       *logger.Logger
}

// NewPipeline creates a new pipeline from its collaborators
func NewPipeline(dedup DedupStore, acquirer AudioAcquirer, extractor InsightExtractor, opts Options, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		dedup:     dedup,
		acquirer:  acquirer,
		extractor: extractor,
		opts:      opts,
		log:       log,
	}
}

// Run processes candidates sequentially in input order.
// Cancelling ctx stops the batch between URLs; the URL in flight runs to completion.
func (p *Pipeline) Run(ctx context.Context, candidates []string) Summary {
	log := p.log.WithRun()
	log.WithField("candidates", len(candidates)).Info("ingestion run started")

	var summary Summary
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			log.WithField("remaining", len(candidates)-len(summary.Outcomes)).Warn("ingestion run cancelled")
			break
		}

		outcome := p.processWithLogger(context.WithoutCancel(ctx), candidate, log)
		summary.add(outcome)
		report(log, outcome)
	}

	log.WithFields(logrus.Fields{
		"completed": summary.Completed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("ingestion run finished")
	return summary
}

// ProcessURL runs one candidate through the per-URL state machine
func (p *Pipeline) ProcessURL(ctx context.Context, candidate string) Outcome {
	return p.processWithLogger(ctx, candidate, p.log)
}

func (p *Pipeline) processWithLogger(ctx context.Context, candidate string, log *logger.Logger) (out Outcome) {
	canonical := urls.Normalize(candidate)
	out = Outcome{URL: canonical, Status: StatusPending}

	defer func() {
		if r := recover(); r != nil {
			out = out.fail(fmt.Errorf("panic while processing: %v", r))
		}
	}()

	// 1. validate
	if err := urls.Validate(canonical); err != nil {
		return out.fail(err)
	}

	// 2. dedup gate
	if p.dedup.Exists(ctx, canonical) {
		return out.skip(SkipDuplicate)
	}

	// 3. acquire
	meta, audio, err := p.acquirer.Acquire(ctx, canonical)
	if err != nil {
		return out.fail(fmt.Errorf("acquire audio: %w", err))
	}
	defer func() {
		if err := audio.Release(); err != nil {
			log.WithURL(canonical).WithError(err).Warn("failed to remove temporary audio")
		}
	}()
	out.Title = meta.Title

	// 4. description policy
	if !meta.HasDescription() && p.opts.SkipWithoutDescription {
		return out.skip(SkipNoDescription)
	}

	// 5. extraction, each field independent
	interviewee, err := p.extractor.ExtractInterviewee(ctx, meta.DescriptionText())
	if err != nil {
		interviewee = domain.UnknownInterviewee
		out.Warnings = append(out.Warnings, err)
	}
	insights, err := p.extractor.ExtractInsights(ctx, audio)
	if err != nil {
		insights = domain.PlaceholderInsights()
		out.Warnings = append(out.Warnings, err)
	}

	// 6. build
	rec := record.Build(meta, canonical, interviewee, insights)

	// 7. persist
	if err := p.dedup.Save(ctx, rec); err != nil {
		return out.fail(err)
	}

	out.Record = &rec
	out.Status = StatusCompleted
	return out
}

// report emits the per-URL notice
func report(log *logger.Logger, o Outcome) {
	entry := log.WithURL(o.URL)
	for _, w := range o.Warnings {
		entry.WithError(w).Warn("extraction failed, stored sentinel value")
	}

	switch o.Status {
	case StatusSkipped:
		entry.WithField("reason", string(o.SkipReason)).Info("skipping URL")
	case StatusFailed:
		entry.WithError(o.Err).Warn("failed to process URL")
	case StatusCompleted:
		entry.WithFields(logrus.Fields{
			"title":        o.Title,
			"publish_date": o.Record.PublishDate,
			"interviewer":  o.Record.Interviewer,
			"interviewee":  o.Record.Interviewee,
			"insight_1":    o.Record.Insight1,
			"insight_2":    o.Record.Insight2,
			"insight_3":    o.Record.Insight3,
		}).Info("stored podcast insights")
	}
}
