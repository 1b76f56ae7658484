package urls

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned by Validate for URLs that cannot identify a video.
var ErrInvalidURL = errors.New("invalid or unsupported URL")

var (
	schemeRE  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

const youtubeWatchPrefix = "https://youtube.com/watch?v="

// Normalize canonicalizes a video URL for dedup comparison.
//
// The result always uses the https scheme and never carries a "www." host prefix.
// YouTube video URLs (youtu.be, m.youtube.com, /shorts, /embed, /live, extra query
// parameters) collapse to https://youtube.com/watch?v=<id>.
// Normalize never fails and Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case schemeRE.MatchString(s):
		s = "https://" + s[strings.Index(s, "://")+3:]
	default:
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	u.Scheme = "https"
	u.Host = stripWWW(strings.ToLower(u.Host))
	if u.Host == "" {
		// String drops the "//" when host and path are both empty
		return "https://" + strings.TrimPrefix(strings.TrimPrefix(u.String(), "https:"), "//")
	}

	if id := youtubeVideoID(u); id != "" {
		return youtubeWatchPrefix + id
	}
	return u.String()
}

// VideoID returns the YouTube video ID referenced by raw, or "" if raw is not a YouTube video URL.
func VideoID(raw string) string {
	canonical := Normalize(raw)
	if !strings.HasPrefix(canonical, youtubeWatchPrefix) {
		return ""
	}
	return strings.TrimPrefix(canonical, youtubeWatchPrefix)
}

// Validate checks that a canonical URL is usable as a dedup key.
func Validate(canonical string) error {
	if canonical == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidURL, canonical)
	}
	return nil
}

func stripWWW(host string) string {
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	return host
}

func youtubeVideoID(u *url.URL) string {
	host := u.Hostname()
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && isVideoPathPrefix(segments[0]):
			id = segments[1]
		}
	}
	if id == "" || !videoIDRE.MatchString(id) {
		return ""
	}
	return id
}

func isVideoPathPrefix(segment string) bool {
	switch segment {
	case "shorts", "embed", "live", "v":
		return true
	}
	return false
}
