package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"podcast-insights/pkg/httpclient"
)

const (
	youtubeTimeLayout = "2006-01-02T15:04:05Z"
	watchURLPrefix    = "https://www.youtube.com/watch?v="
	maxSearchResults  = 50
)

// YouTubeSearch queries the YouTube Data API v3 search.list endpoint
type YouTubeSearch struct {
	client  *httpclient.HTTPClient
	apiKey  string
	baseURL string
}

// NewYouTubeSearch creates a search discoverer against baseURL (e.g. https://www.googleapis.com/youtube/v3)
func NewYouTubeSearch(apiKey, baseURL string) *YouTubeSearch {
	return &YouTubeSearch{
		client:  httpclient.NewClient(httpclient.APIClient),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		PublishedAt  string `json:"publishedAt"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

type searchError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Discover returns the videos matching q in the order the API ranks them
func (s *YouTubeSearch) Discover(ctx context.Context, q Query) ([]Candidate, error) {
	resp, err := s.client.Get(ctx, s.searchURL(q))
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr searchError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("youtube search: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("youtube search: unexpected status code: %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("youtube search: failed to decode response: %w", err)
	}

	candidates := make([]Candidate, 0, len(body.Items))
	for _, item := range body.Items {
		if item.ID.VideoID == "" {
			continue
		}
		c := Candidate{
			Title: item.Snippet.Title,
			URL:   watchURLPrefix + item.ID.VideoID,
		}
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			c.PublishedAt = &t
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *YouTubeSearch) searchURL(q Query) string {
	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("type", "video")
	params.Set("q", q.Term)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if !q.PublishedAfter.IsZero() {
		params.Set("publishedAfter", q.PublishedAfter.UTC().Format(youtubeTimeLayout))
	}
	if !q.PublishedBefore.IsZero() {
		params.Set("publishedBefore", q.PublishedBefore.UTC().Format(youtubeTimeLayout))
	}
	params.Set("key", s.apiKey)

	return s.baseURL + "/search?" + params.Encode()
}
