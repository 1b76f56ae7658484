package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"podcast-insights/pkg/config"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/urls"
)

// ErrNoCandidateSources is returned when every configured source failed
var ErrNoCandidateSources = errors.New("all discovery sources failed")

// Multi concatenates several sources in order and drops repeated videos.
// A failing source is logged and skipped so the others still contribute.
type Multi struct {
	sources []Discoverer
	log     *logger.Logger
}

// NewMulti combines sources
func NewMulti(log *logger.Logger, sources ...Discoverer) *Multi {
	if log == nil {
		log = logger.Discard()
	}
	return &Multi{sources: sources, log: log.WithComponent("discovery")}
}

// FromConfig builds the sources enabled in cfg, in a fixed order: YouTube search, feeds, pages, sitemaps, seed file
func FromConfig(cfg *config.Config, log *logger.Logger) *Multi {
	var sources []Discoverer
	if cfg.YouTube.APIKey != "" {
		sources = append(sources, NewYouTubeSearch(cfg.YouTube.APIKey, cfg.YouTube.APIBase))
	}
	if len(cfg.Search.Feeds) > 0 {
		sources = append(sources, NewFeedDiscoverer(cfg.Search.Feeds...))
	}
	if len(cfg.Search.Pages) > 0 {
		sources = append(sources, NewPageDiscoverer(cfg.Search.Pages...))
	}
	if len(cfg.Search.Sitemaps) > 0 {
		sources = append(sources, NewSitemapDiscoverer(cfg.Search.Sitemaps...))
	}
	if cfg.Search.SeedFile != "" {
		sources = append(sources, NewSeedFile(cfg.Search.SeedFile))
	}
	return NewMulti(log, sources...)
}

// Discover runs every source and returns unique candidates by canonical URL
func (m *Multi) Discover(ctx context.Context, q Query) ([]Candidate, error) {
	var all []Candidate
	var errs []error
	for i, src := range m.sources {
		found, err := src.Discover(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.log.WithField("source", fmt.Sprintf("%T", src)).WithError(err).Warn("discovery source failed")
			errs = append(errs, err)
			continue
		}
		m.log.WithFields(logrus.Fields{"source_index": i, "found": len(found)}).Debug("discovery source finished")
		all = append(all, found...)
	}

	if len(m.sources) > 0 && len(errs) == len(m.sources) {
		return nil, fmt.Errorf("%w: %w", ErrNoCandidateSources, errors.Join(errs...))
	}
	return filterCandidates(ctx, all, urls.NewSeenFilter())
}
