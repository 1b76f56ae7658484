package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kkdai/youtube/v2"

	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/urls"
)

var (
	// ErrDurationExceeded is returned for videos longer than the configured ceiling.
	ErrDurationExceeded = errors.New("video duration exceeds limit")

	// ErrNoAudioAvailable is returned when the video exposes no audio-only stream.
	ErrNoAudioAvailable = errors.New("no audio streams available")

	// ErrSourceUnavailable is returned when the video cannot be resolved or downloaded.
	ErrSourceUnavailable = errors.New("audio source unavailable")
)

// DefaultMaxDuration is the duration ceiling used when none is configured.
const DefaultMaxDuration = time.Hour

// Source resolves videos and opens their streams. *youtube.Client satisfies it.
type Source interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Acquirer downloads the audio track of a video to a temporary file.
type Acquirer struct {
	source      Source
	maxDuration time.Duration
	tempDir     string
}

// NewAcquirer creates an acquirer. A nil source uses a default YouTube client.
func NewAcquirer(source Source, maxDuration time.Duration, tempDir string) *Acquirer {
	if source == nil {
		source = &youtube.Client{}
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Acquirer{source: source, maxDuration: maxDuration, tempDir: tempDir}
}

// Acquire resolves canonicalURL, enforces the duration ceiling and downloads the audio.
// The caller owns the returned handle and must Release it.
func (a *Acquirer) Acquire(ctx context.Context, canonicalURL string) (*domain.SourceMetadata, *domain.AudioHandle, error) {
	id := urls.VideoID(canonicalURL)
	if id == "" {
		return nil, nil, fmt.Errorf("%w: %s is not a YouTube video URL", ErrSourceUnavailable, canonicalURL)
	}

	video, err := a.source.GetVideoContext(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: resolve %s: %w", ErrSourceUnavailable, id, err)
	}

	if video.Duration > a.maxDuration {
		return nil, nil, fmt.Errorf("%w: %s is %s, limit %s", ErrDurationExceeded, id, video.Duration, a.maxDuration)
	}

	format := pickAudioFormat(video.Formats)
	if format == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoAudioAvailable, id)
	}

	handle, err := a.download(ctx, video, format)
	if err != nil {
		return nil, nil, err
	}
	return metadataFor(video), handle, nil
}

func (a *Acquirer) download(ctx context.Context, video *youtube.Video, format *youtube.Format) (*domain.AudioHandle, error) {
	stream, _, err := a.source.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream for %s: %w", ErrSourceUnavailable, video.ID, err)
	}
	defer stream.Close()

	mimeType := baseMIMEType(format.MimeType)
	file, err := os.CreateTemp(a.tempDir, "podcast-"+uuid.NewString()+"-*"+extensionFor(mimeType))
	if err != nil {
		return nil, fmt.Errorf("create temp audio file: %w", err)
	}
	handle := &domain.AudioHandle{Path: file.Name(), MIMEType: mimeType}

	written, err := io.Copy(file, stream)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = errors.New("empty stream")
	}
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("%w: download %s: %w", ErrSourceUnavailable, video.ID, err)
	}

	handle.SizeBytes = written
	return handle, nil
}

// pickAudioFormat prefers audio-only mp4, then any audio-only stream, highest bitrate first
func pickAudioFormat(formats youtube.FormatList) *youtube.Format {
	var audioOnly []youtube.Format
	for _, f := range formats.WithAudioChannels() {
		if strings.HasPrefix(f.MimeType, "audio/") {
			audioOnly = append(audioOnly, f)
		}
	}
	if len(audioOnly) == 0 {
		return nil
	}

	sort.SliceStable(audioOnly, func(i, j int) bool {
		mi := strings.HasPrefix(audioOnly[i].MimeType, "audio/mp4")
		mj := strings.HasPrefix(audioOnly[j].MimeType, "audio/mp4")
		if mi != mj {
			return mi
		}
		return audioOnly[i].Bitrate > audioOnly[j].Bitrate
	})
	return &audioOnly[0]
}

func metadataFor(video *youtube.Video) *domain.SourceMetadata {
	meta := &domain.SourceMetadata{
		CanonicalURL:    urls.Normalize("https://youtube.com/watch?v=" + video.ID),
		Title:           video.Title,
		Author:          video.Author,
		ThumbnailURL:    thumbnailURL(video),
		DurationSeconds: int(video.Duration / time.Second),
	}
	if strings.TrimSpace(video.Description) != "" {
		desc := video.Description
		meta.Description = &desc
	}
	if !video.PublishDate.IsZero() {
		published := video.PublishDate
		meta.PublishDate = &published
	}
	return meta
}

func thumbnailURL(video *youtube.Video) string {
	var best youtube.Thumbnail
	for _, t := range video.Thumbnails {
		if t.Width*t.Height >= best.Width*best.Height {
			best = t
		}
	}
	if best.URL != "" {
		return best.URL
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", video.ID)
}

func baseMIMEType(raw string) string {
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		return mt
	}
	return strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/mp4":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	}
	return ".audio"
}
