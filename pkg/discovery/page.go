package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"podcast-insights/pkg/httpclient"
	"podcast-insights/pkg/urls"
)

// PageDiscoverer scans HTML pages (show notes, episode lists) for linked or embedded videos
type PageDiscoverer struct {
	pages  []string
	client *httpclient.HTTPClient
}

// NewPageDiscoverer creates a discoverer over the given page URLs.
// Uses BrowserClient to avoid 406 errors from sites that reject non-browser agents.
func NewPageDiscoverer(pages ...string) *PageDiscoverer {
	return NewPageDiscovererWithClient(httpclient.BrowserClient, pages...)
}

// NewPageDiscovererWithClient creates a page discoverer with a specific client type
func NewPageDiscovererWithClient(clientType httpclient.ClientType, pages ...string) *PageDiscoverer {
	return &PageDiscoverer{
		pages:  pages,
		client: httpclient.NewClient(clientType),
	}
}

// Discover returns every video linked from the pages in document order.
// Pages carry no publish date, so the window does not apply.
func (d *PageDiscoverer) Discover(ctx context.Context, q Query) ([]Candidate, error) {
	var all []Candidate
	for _, pageURL := range d.pages {
		html, err := d.fetchHTML(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch HTML from %s: %w", pageURL, err)
		}
		found, err := ExtractVideoLinks(html, pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to extract URLs from %s: %w", pageURL, err)
		}
		all = append(all, found...)
	}
	return all, nil
}

// fetchHTML fetches the HTML content from the given URL
func (d *PageDiscoverer) fetchHTML(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := d.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// ExtractVideoLinks finds YouTube links in anchors and embedded players.
// Relative hrefs are resolved against pageURL. Embedded players carry no link text,
// so they take the page title instead.
func ExtractVideoLinks(html []byte, pageURL string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var candidates []Candidate
	var pageTitle *string
	doc.Find("a[href], iframe[src]").Each(func(i int, s *goquery.Selection) {
		ref, _ := s.Attr("href")
		if goquery.NodeName(s) == "iframe" {
			ref, _ = s.Attr("src")
		}
		link := resolve(base, ref)
		if urls.VideoID(link) == "" {
			return
		}

		title := strings.TrimSpace(s.Text())
		if title == "" {
			title, _ = s.Attr("title")
		}
		if title == "" {
			if pageTitle == nil {
				t := extractTitle(html, doc, base)
				pageTitle = &t
			}
			title = *pageTitle
		}
		candidates = append(candidates, Candidate{Title: title, URL: link})
	})
	return candidates, nil
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// extractTitle tries readability first, then <title> and <h1>
func extractTitle(html []byte, doc *goquery.Document, base *url.URL) string {
	if article, err := readability.FromReader(bytes.NewReader(html), base); err == nil {
		if title := strings.TrimSpace(article.Title); title != "" {
			return title
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
