package record

import (
	"strings"

	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/urls"
)

// PublishDateLayout is the YYYY-MM-DD layout stored in publish_date.
const PublishDateLayout = "2006-01-02"

// Build assembles the persisted row from source metadata and extraction results.
// fallbackURL is used when the source did not report a canonical URL.
func Build(meta *domain.SourceMetadata, fallbackURL, interviewee string, insights domain.InsightSet) domain.IngestRecord {
	publishDate := domain.UnknownPublishDate
	if meta.PublishDate != nil && !meta.PublishDate.IsZero() {
		publishDate = meta.PublishDate.Format(PublishDateLayout)
	}

	youtubeURL := urls.Normalize(meta.CanonicalURL)
	if youtubeURL == "" {
		youtubeURL = urls.Normalize(fallbackURL)
	}

	interviewee = strings.TrimSpace(interviewee)
	if interviewee == "" {
		interviewee = domain.UnknownInterviewee
	}

	for i := range insights {
		if strings.TrimSpace(insights[i]) == "" {
			insights[i] = domain.InsightPlaceholder
		}
	}

	return domain.IngestRecord{
		PublishDate:  publishDate,
		YouTubeURL:   youtubeURL,
		ThumbnailURL: meta.ThumbnailURL,
		Interviewer:  meta.Author,
		Interviewee:  interviewee,
		Insight1:     insights[0],
		Insight2:     insights[1],
		Insight3:     insights[2],
	}
}
