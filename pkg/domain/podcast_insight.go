package domain

import (
	"errors"
	"os"
	"strings"
	"time"
)

const (
	// UnknownInterviewee is stored when no name could be inferred from the description.
	UnknownInterviewee = "Unknown"

	// UnknownPublishDate is stored when the source reports no publish date.
	UnknownPublishDate = "Unknown publish date"

	// InsightPlaceholder fills insight slots the model did not produce.
	InsightPlaceholder = "Insight not generated"

	// InsightSlots is the fixed width of an InsightSet.
	InsightSlots = 3
)

// SourceMetadata describes a video as reported by the audio source.
// Optional fields are nil when the source did not provide them.
type SourceMetadata struct {
	CanonicalURL    string
	Title           string
	Author          string
	Description     *string
	PublishDate     *time.Time
	ThumbnailURL    string
	DurationSeconds int
}

// HasDescription reports whether a non-blank description is present.
func (m *SourceMetadata) HasDescription() bool {
	return m != nil && m.Description != nil && strings.TrimSpace(*m.Description) != ""
}

// DescriptionText returns the description, or "" when absent.
func (m *SourceMetadata) DescriptionText() string {
	if m == nil || m.Description == nil {
		return ""
	}
	return *m.Description
}

// AudioHandle points at a downloaded audio payload on local disk.
// The owner must call Release once the payload is no longer needed.
type AudioHandle struct {
	Path      string
	MIMEType  string
	SizeBytes int64
}

// Release deletes the payload. It is safe to call more than once and on a nil handle.
func (h *AudioHandle) Release() error {
	if h == nil || h.Path == "" {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// InsightSet holds exactly three insights in extraction order.
type InsightSet [InsightSlots]string

// NewInsightSet keeps the first three non-blank items and pads the rest with InsightPlaceholder.
func NewInsightSet(items []string) InsightSet {
	var set InsightSet
	n := 0
	for _, item := range items {
		if n == InsightSlots {
			break
		}
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		set[n] = item
		n++
	}
	for ; n < InsightSlots; n++ {
		set[n] = InsightPlaceholder
	}
	return set
}

// PlaceholderInsights is the set stored when insight extraction failed entirely.
func PlaceholderInsights() InsightSet {
	return NewInsightSet(nil)
}

// IngestRecord is the persisted row for one processed video.
// Records are inserted once and never updated.
type IngestRecord struct {
	PublishDate  string `json:"publish_date" bson:"publish_date"`
	YouTubeURL   string `json:"youtube_url" bson:"youtube_url"`
	ThumbnailURL string `json:"thumbnail_url" bson:"thumbnail_url"`
	Interviewer  string `json:"interviewer" bson:"interviewer"`
	Interviewee  string `json:"interviewee" bson:"interviewee"`
	Insight1     string `json:"insight_1" bson:"insight_1"`
	Insight2     string `json:"insight_2" bson:"insight_2"`
	Insight3     string `json:"insight_3" bson:"insight_3"`
}

// RecordColumns lists the persisted field names in storage order.
var RecordColumns = []string{
	"publish_date",
	"youtube_url",
	"thumbnail_url",
	"interviewer",
	"interviewee",
	"insight_1",
	"insight_2",
	"insight_3",
}

// Values returns the field values in RecordColumns order.
func (r *IngestRecord) Values() []string {
	return []string{
		r.PublishDate,
		r.YouTubeURL,
		r.ThumbnailURL,
		r.Interviewer,
		r.Interviewee,
		r.Insight1,
		r.Insight2,
		r.Insight3,
	}
}

// Insights returns the three insight columns as an InsightSet.
func (r *IngestRecord) Insights() InsightSet {
	return InsightSet{r.Insight1, r.Insight2, r.Insight3}
}
