package discovery

import (
	"context"
	"time"

	"podcast-insights/pkg/urls"
)

// Query describes what to look for and in which publish window
type Query struct {
	Term            string
	PublishedAfter  time.Time
	PublishedBefore time.Time
	MaxResults      int
}

// WindowQuery builds a query for the trailing window ending at now
func WindowQuery(term string, window time.Duration, maxResults int, now time.Time) Query {
	now = now.UTC().Truncate(time.Second)
	return Query{
		Term:            term,
		PublishedAfter:  now.Add(-window),
		PublishedBefore: now,
		MaxResults:      maxResults,
	}
}

// InWindow reports whether t falls inside the query window. A nil time is kept.
func (q Query) InWindow(t *time.Time) bool {
	if t == nil {
		return true
	}
	if !q.PublishedAfter.IsZero() && t.Before(q.PublishedAfter) {
		return false
	}
	if !q.PublishedBefore.IsZero() && t.After(q.PublishedBefore) {
		return false
	}
	return true
}

// Candidate is one discovered video
type Candidate struct {
	Title       string
	URL         string
	PublishedAt *time.Time
}

// Discoverer produces candidate videos in source order
type Discoverer interface {
	Discover(ctx context.Context, q Query) ([]Candidate, error)
}

// URLs returns the candidate URLs in order
func URLs(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.URL)
	}
	return out
}

// filterCandidates keeps the candidates whose URL passes every filter
func filterCandidates(ctx context.Context, in []Candidate, filters ...urls.UrlFilter) ([]Candidate, error) {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		keep := true
		for _, f := range filters {
			ok, err := f.ShouldKeep(ctx, c.URL)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out, nil
}
