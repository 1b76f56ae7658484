package insightservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"podcast-insights/pkg/discovery"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/pipeline"
)

// ErrEmptyQuery is returned when no search term is configured
var ErrEmptyQuery = errors.New("search query is empty")

// Runner processes a batch of candidate URLs. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, candidates []string) pipeline.Summary
}

// Settings describes the discovery window of one batch
type Settings struct {
	Query      string
	Window     time.Duration
	MaxResults int
}

// Service discovers recent podcast videos and feeds them through the ingestion pipeline
type Service struct {
	discoverer discovery.Discoverer
	runner     Runner
	settings   Settings
	now        func() time.Time
	log        *logger.Logger
}

// New creates a new insight service
func New(discoverer discovery.Discoverer, runner Runner, settings Settings, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		discoverer: discoverer,
		runner:     runner,
		settings:   settings,
		now:        time.Now,
		log:        log.WithComponent("insightservice"),
	}
}

// Discover returns the candidates for the trailing window without processing them
func (s *Service) Discover(ctx context.Context) ([]discovery.Candidate, error) {
	if s.settings.Query == "" {
		return nil, ErrEmptyQuery
	}

	q := discovery.WindowQuery(s.settings.Query, s.settings.Window, s.settings.MaxResults, s.now())
	candidates, err := s.discoverer.Discover(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discover candidates: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"query":            q.Term,
		"published_after":  q.PublishedAfter.Format(time.RFC3339),
		"published_before": q.PublishedBefore.Format(time.RFC3339),
		"candidates":       len(candidates),
	}).Info("discovered candidates")
	return candidates, nil
}

// RunOnce discovers candidates and processes them in discovery order.
// Only discovery failures are returned; per-URL failures live in the summary.
func (s *Service) RunOnce(ctx context.Context) (pipeline.Summary, error) {
	candidates, err := s.Discover(ctx)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if len(candidates) == 0 {
		s.log.Info("no candidates in window, nothing to do")
		return pipeline.Summary{}, nil
	}
	return s.runner.Run(ctx, discovery.URLs(candidates)), nil
}
