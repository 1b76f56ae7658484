package discovery

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"podcast-insights/pkg/httpclient"
	"podcast-insights/pkg/urls"
)

// FeedDiscoverer reads RSS/Atom feeds, e.g. https://www.youtube.com/feeds/videos.xml?channel_id=...
type FeedDiscoverer struct {
	feeds      []string
	feedParser *gofeed.Parser
}

// NewFeedDiscoverer creates a discoverer over the given feed URLs.
// Uses CloudflareClient by default to avoid 403 errors from protected feeds.
func NewFeedDiscoverer(feeds ...string) *FeedDiscoverer {
	parser := gofeed.NewParser()
	parser.Client = httpclient.NewClient(httpclient.CloudflareClient).StandardClient()
	return &FeedDiscoverer{feeds: feeds, feedParser: parser}
}

// Discover returns feed items that link to a video and were published inside the window
func (d *FeedDiscoverer) Discover(ctx context.Context, q Query) ([]Candidate, error) {
	var all []Candidate
	for _, feedURL := range d.feeds {
		items, err := d.parseFeed(ctx, feedURL, q)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return filterCandidates(ctx, all, urls.NewVideoURLFilter())
}

func (d *FeedDiscoverer) parseFeed(ctx context.Context, feedURL string, q Query) ([]Candidate, error) {
	feed, err := d.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := itemLink(item)
		if link == "" || !q.InWindow(item.PublishedParsed) {
			continue
		}
		candidates = append(candidates, Candidate{
			Title:       item.Title,
			URL:         link,
			PublishedAt: item.PublishedParsed,
		})
	}
	return candidates, nil
}

// itemLink prefers the item link, falling back to an enclosure or the first alternate link
func itemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	for _, enc := range item.Enclosures {
		if enc.URL != "" {
			return enc.URL
		}
	}
	if len(item.Links) > 0 {
		return item.Links[0]
	}
	return ""
}
