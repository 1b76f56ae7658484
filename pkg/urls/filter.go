package urls

import (
	"context"
)

// UrlFilter defines the interface for URL filtering
type UrlFilter interface {
	ShouldKeep(ctx context.Context, url string) (bool, error)
}

// VideoURLFilter keeps only URLs that reference a YouTube video
type VideoURLFilter struct{}

// NewVideoURLFilter creates a new video URL filter
func NewVideoURLFilter() *VideoURLFilter {
	return &VideoURLFilter{}
}

// ShouldKeep returns false if the URL does not carry a video ID
func (f *VideoURLFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	return VideoID(urlStr) != "", nil
}

// SeenFilter drops URLs whose canonical form was already kept once.
// It is stateful and meant to live for a single discovery pass.
type SeenFilter struct {
	seen map[string]bool
}

// NewSeenFilter creates a new seen filter, optionally pre-seeded with URLs
func NewSeenFilter(seed ...string) *SeenFilter {
	f := &SeenFilter{seen: make(map[string]bool, len(seed))}
	for _, u := range seed {
		f.seen[Normalize(u)] = true
	}
	return f
}

// ShouldKeep returns true the first time a canonical URL is offered
func (f *SeenFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	key := Normalize(urlStr)
	if key == "" || f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}
