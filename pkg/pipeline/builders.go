package pipeline

import (
	"context"
	"fmt"
	"time"

	"podcast-insights/pkg/audio"
	"podcast-insights/pkg/config"
	"podcast-insights/pkg/db"
	"podcast-insights/pkg/dedup"
	"podcast-insights/pkg/gemini"
	"podcast-insights/pkg/insights"
	"podcast-insights/pkg/logger"
)

// IngestionPipelineBuilder wires the production collaborators around a record backend
// Pipeline: URL → [Dedup] → [Audio Acquirer] → [Gemini Extractor] → [Record Store]
func IngestionPipelineBuilder(ctx context.Context, cfg *config.Config, store db.RecordStore, log *logger.Logger) (*Pipeline, error) {
	model, err := gemini.NewClient(ctx, cfg.Gemini.APIKey,
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithRateLimit(cfg.Gemini.RequestsPerMinute),
		gemini.WithPollTimeout(time.Duration(cfg.Gemini.FilePollTimeoutSecs)*time.Second),
		gemini.WithLogger(log.WithComponent("gemini")),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return NewPipeline(
		dedup.NewStore(store, log),
		audio.NewAcquirer(nil, cfg.MaxDuration(), cfg.Audio.TempDir),
		insights.NewExtractor(model, cfg.GeminiTimeout()),
		Options{SkipWithoutDescription: cfg.Pipeline.SkipWithoutDescription},
		log.WithComponent("pipeline"),
	), nil
}
