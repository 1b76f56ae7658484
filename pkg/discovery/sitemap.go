package discovery

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"podcast-insights/pkg/httpclient"
	"podcast-insights/pkg/urls"
)

const maxSitemapDepth = 3

// XML structures for parsing sitemap XML, including the Google video extension

// urlSet represents a regular sitemap structure
type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

// urlEntry represents a single URL entry in XML
type urlEntry struct {
	Location string       `xml:"loc"`
	LastMod  string       `xml:"lastmod,omitempty"`
	Videos   []videoEntry `xml:"video"`
}

// videoEntry is a <video:video> block
type videoEntry struct {
	Title           string `xml:"title"`
	PlayerLoc       string `xml:"player_loc"`
	ContentLoc      string `xml:"content_loc"`
	PublicationDate string `xml:"publication_date"`
}

// sitemapIndex represents a sitemap index structure
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

// sitemapRef represents a reference to another sitemap in an index
type sitemapRef struct {
	Location string `xml:"loc"`
}

// SitemapDiscoverer reads (video) sitemaps and sitemap indexes published by podcast sites
type SitemapDiscoverer struct {
	sitemaps []string
	client   *httpclient.HTTPClient
}

// NewSitemapDiscoverer creates a discoverer over the given sitemap URLs
func NewSitemapDiscoverer(sitemaps ...string) *SitemapDiscoverer {
	return &SitemapDiscoverer{
		sitemaps: sitemaps,
		client:   httpclient.NewClient(httpclient.CloudflareClient),
	}
}

// Discover returns the video entries inside the window, in sitemap order
func (d *SitemapDiscoverer) Discover(ctx context.Context, q Query) ([]Candidate, error) {
	var all []Candidate
	for _, sitemapURL := range d.sitemaps {
		found, err := d.parse(ctx, sitemapURL, q, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

func (d *SitemapDiscoverer) parse(ctx context.Context, sitemapURL string, q Query, depth int) ([]Candidate, error) {
	body, err := d.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap %s: %w", sitemapURL, err)
	}

	// Check if it's a sitemap index (contains <sitemapindex>)
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	if !bytes.Contains(head, []byte("sitemapindex")) {
		return parseVideoSitemap(body, q)
	}

	if depth >= maxSitemapDepth {
		return nil, fmt.Errorf("sitemap index %s nested deeper than %d levels", sitemapURL, maxSitemapDepth)
	}
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap index XML: %w", err)
	}

	var all []Candidate
	var lastErr error
	for _, ref := range index.Sitemaps {
		if ref.Location == "" {
			continue
		}
		found, err := d.parse(ctx, ref.Location, q, depth+1)
		if err != nil {
			// one broken child sitemap does not hide the others
			lastErr = err
			continue
		}
		all = append(all, found...)
	}
	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

func (d *SitemapDiscoverer) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	resp, err := d.client.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseVideoSitemap keeps entries that point at a YouTube video, via the video extension or the plain <loc>
func parseVideoSitemap(body []byte, q Query) ([]Candidate, error) {
	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap XML: %w", err)
	}

	var candidates []Candidate
	for _, entry := range set.URLs {
		if len(entry.Videos) == 0 {
			if urls.VideoID(entry.Location) != "" {
				c := Candidate{URL: entry.Location, PublishedAt: parseSitemapTime(entry.LastMod)}
				if q.InWindow(c.PublishedAt) {
					candidates = append(candidates, c)
				}
			}
			continue
		}

		for _, v := range entry.Videos {
			link := v.PlayerLoc
			if urls.VideoID(link) == "" {
				link = v.ContentLoc
			}
			if urls.VideoID(link) == "" {
				continue
			}
			published := parseSitemapTime(v.PublicationDate)
			if published == nil {
				published = parseSitemapTime(entry.LastMod)
			}
			if !q.InWindow(published) {
				continue
			}
			candidates = append(candidates, Candidate{Title: v.Title, URL: link, PublishedAt: published})
		}
	}
	return candidates, nil
}

// parseSitemapTime accepts the W3C datetime forms sitemaps use
func parseSitemapTime(raw string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
