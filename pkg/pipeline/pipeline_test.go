package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-insights/pkg/audio"
	"podcast-insights/pkg/dedup"
	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/insights"
	"podcast-insights/pkg/urls"
)

// memRecordStore is an in-memory db.RecordStore for testing
type memRecordStore struct {
	records     []domain.IngestRecord
	existsErr   error
	insertErr   error
	existsCalls int
	insertCalls int
}

func (m *memRecordStore) URLExists(ctx context.Context, youtubeURL string) (bool, error) {
	m.existsCalls++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, r := range m.records {
		if r.YouTubeURL == youtubeURL {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRecordStore) InsertRecord(ctx context.Context, rec *domain.IngestRecord) error {
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *memRecordStore) ListRecords(ctx context.Context) ([]domain.IngestRecord, error) {
	return m.records, nil
}

func (m *memRecordStore) Close() error { return nil }

// mockAcquirer writes a real temp file per call so release can be observed
type mockAcquirer struct {
	t         *testing.T
	metadata  map[string]*domain.SourceMetadata // canonical URL -> metadata
	errs      map[string]error
	panicOn   string
	onAcquire func(ctx context.Context)
	callCount int
	paths     []string
}

func (m *mockAcquirer) Acquire(ctx context.Context, canonicalURL string) (*domain.SourceMetadata, *domain.AudioHandle, error) {
	m.callCount++
	if m.onAcquire != nil {
		m.onAcquire(ctx)
	}
	if canonicalURL == m.panicOn {
		panic("stream decoder blew up")
	}
	if err, ok := m.errs[canonicalURL]; ok {
		return nil, nil, err
	}

	path := filepath.Join(m.t.TempDir(), fmt.Sprintf("audio-%d.m4a", m.callCount))
	require.NoError(m.t, os.WriteFile(path, []byte("audio"), 0o600))
	m.paths = append(m.paths, path)

	meta, ok := m.metadata[canonicalURL]
	if !ok {
		meta = &domain.SourceMetadata{
			CanonicalURL: canonicalURL,
			Title:        "Episode",
			Author:       "Host",
			Description:  strPtr("Today we talk with Jane Doe"),
		}
	}
	return meta, &domain.AudioHandle{Path: path, MIMEType: "audio/mp4", SizeBytes: 5}, nil
}

// mockExtractor is a mock implementation of InsightExtractor for testing
type mockExtractor struct {
	interviewee      string
	insights         domain.InsightSet
	intervieweeErr   error
	insightsErr      error
	intervieweeCalls int
	insightsCalls    int
}

func (m *mockExtractor) ExtractInterviewee(ctx context.Context, description string) (string, error) {
	m.intervieweeCalls++
	if m.intervieweeErr != nil {
		return domain.UnknownInterviewee, m.intervieweeErr
	}
	return m.interviewee, nil
}

func (m *mockExtractor) ExtractInsights(ctx context.Context, a *domain.AudioHandle) (domain.InsightSet, error) {
	m.insightsCalls++
	if m.insightsErr != nil {
		return domain.PlaceholderInsights(), m.insightsErr
	}
	return m.insights, nil
}

// mockModel is a mock implementation of insights.Model for testing
type mockModel struct {
	text      string
	audioText string
}

func (m *mockModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	return m.text, nil
}

func (m *mockModel) GenerateFromAudio(ctx context.Context, prompt, path, mimeType string) (string, error) {
	return m.audioText, nil
}

func strPtr(s string) *string { return &s }

func newExtractor() *mockExtractor {
	return &mockExtractor{
		interviewee: "Jane Doe",
		insights:    domain.InsightSet{"A.", "B.", "C."},
	}
}

func newTestPipeline(t *testing.T, store *memRecordStore, acq *mockAcquirer, ext InsightExtractor, opts Options) *Pipeline {
	t.Helper()
	acq.t = t
	return NewPipeline(dedup.NewStore(store, nil), acq, ext, opts, nil)
}

func assertReleased(t *testing.T, acq *mockAcquirer) {
	t.Helper()
	for _, p := range acq.paths {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), "audio %s was not released", p)
	}
}

// Test Case 1: TestPipeline_Run_EndToEnd
// Input: "youtube.com/watch?v=ABC" with a dated description naming Jane Doe,
// a model answering "Jane Doe" and "A.\n\nB.\n\nC."
// Expected Output: one Completed record with canonical URL and the three insights
func TestPipeline_Run_EndToEnd(t *testing.T) {
	published := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	store := &memRecordStore{}
	acq := &mockAcquirer{metadata: map[string]*domain.SourceMetadata{
		"https://youtube.com/watch?v=ABC": {
			CanonicalURL: "https://www.youtube.com/watch?v=ABC",
			Title:        "Building things",
			Author:       "The Host Show",
			Description:  strPtr("This week Jane Doe joins us to talk about databases."),
			PublishDate:  &published,
			ThumbnailURL: "https://i.ytimg.com/vi/ABC/maxresdefault.jpg",
		},
	}}
	ext := insights.NewExtractor(&mockModel{text: "Jane Doe", audioText: "A.\n\nB.\n\nC."}, time.Second)
	p := newTestPipeline(t, store, acq, ext, Options{})

	summary := p.Run(context.Background(), []string{"youtube.com/watch?v=ABC"})

	require.Len(t, summary.Outcomes, 1)
	out := summary.Outcomes[0]
	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "Building things", out.Title)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, 1, summary.Completed)

	require.Len(t, store.records, 1)
	assert.Equal(t, domain.IngestRecord{
		PublishDate:  "2024-03-05",
		YouTubeURL:   "https://youtube.com/watch?v=ABC",
		ThumbnailURL: "https://i.ytimg.com/vi/ABC/maxresdefault.jpg",
		Interviewer:  "The Host Show",
		Interviewee:  "Jane Doe",
		Insight1:     "A.",
		Insight2:     "B.",
		Insight3:     "C.",
	}, store.records[0])
	assert.Equal(t, store.records, summary.Records())
	assertReleased(t, acq)
}

// Test Case 2: TestPipeline_Run_DuplicateSkipsBeforeAcquire
// Input: a URL whose canonical form is already stored, given in a different spelling
// Expected Output: Skipped(duplicate), no acquire and no extraction calls
func TestPipeline_Run_DuplicateSkipsBeforeAcquire(t *testing.T) {
	store := &memRecordStore{records: []domain.IngestRecord{{YouTubeURL: "https://youtube.com/watch?v=ABC"}}}
	acq := &mockAcquirer{}
	ext := newExtractor()
	p := newTestPipeline(t, store, acq, ext, Options{})

	summary := p.Run(context.Background(), []string{"https://youtu.be/ABC?t=10"})

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StatusSkipped, summary.Outcomes[0].Status)
	assert.Equal(t, SkipDuplicate, summary.Outcomes[0].SkipReason)
	assert.Equal(t, 0, acq.callCount)
	assert.Equal(t, 0, ext.intervieweeCalls+ext.insightsCalls)
	assert.Equal(t, 0, store.insertCalls)
}

// Test Case 3: TestPipeline_Run_RerunIsIdempotent
// Input: the same batch run twice against the same store
// Expected Output: first run completes, second run skips everything, still one row per URL
func TestPipeline_Run_RerunIsIdempotent(t *testing.T) {
	store := &memRecordStore{}
	acq := &mockAcquirer{}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})
	batch := []string{"https://youtube.com/watch?v=A1", "https://youtube.com/watch?v=B2"}

	first := p.Run(context.Background(), batch)
	second := p.Run(context.Background(), batch)

	assert.Equal(t, 2, first.Completed)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Completed)
	assert.Len(t, store.records, 2)
	assert.Equal(t, 2, acq.callCount)
}

// Test Case 4: TestPipeline_Run_FailureIsIsolated
// Input: three URLs, the second exceeds the duration limit
// Expected Output: outcomes in input order; 1 and 3 Completed, 2 Failed with the duration error
func TestPipeline_Run_FailureIsIsolated(t *testing.T) {
	store := &memRecordStore{}
	acq := &mockAcquirer{errs: map[string]error{
		"https://youtube.com/watch?v=LONG": audio.ErrDurationExceeded,
	}}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	summary := p.Run(context.Background(), []string{
		"https://youtube.com/watch?v=ONE",
		"https://youtube.com/watch?v=LONG",
		"https://youtube.com/watch?v=THREE",
	})

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, StatusCompleted, summary.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, summary.Outcomes[1].Status)
	assert.ErrorIs(t, summary.Outcomes[1].Err, audio.ErrDurationExceeded)
	assert.Nil(t, summary.Outcomes[1].Record)
	assert.Equal(t, StatusCompleted, summary.Outcomes[2].Status)
	assert.Equal(t, "https://youtube.com/watch?v=THREE", summary.Outcomes[2].URL)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, store.records, 2)
}

// Test Case 5: TestPipeline_Run_PanicIsIsolated
// Input: the acquirer panics on the first URL
// Expected Output: first URL Failed, second still Completed
func TestPipeline_Run_PanicIsIsolated(t *testing.T) {
	store := &memRecordStore{}
	acq := &mockAcquirer{panicOn: "https://youtube.com/watch?v=BOOM"}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	summary := p.Run(context.Background(), []string{
		"https://youtube.com/watch?v=BOOM",
		"https://youtube.com/watch?v=OK",
	})

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, StatusFailed, summary.Outcomes[0].Status)
	assert.Contains(t, summary.Outcomes[0].Err.Error(), "panic")
	assert.Equal(t, StatusCompleted, summary.Outcomes[1].Status)
}

// Test Case 6: TestPipeline_ProcessURL_InvalidURL
// Input: a blank candidate
// Expected Output: Failed with ErrInvalidURL before touching the store
func TestPipeline_ProcessURL_InvalidURL(t *testing.T) {
	store := &memRecordStore{}
	acq := &mockAcquirer{}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	out := p.ProcessURL(context.Background(), "   ")

	assert.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, urls.ErrInvalidURL)
	assert.Equal(t, 0, store.existsCalls)
	assert.Equal(t, 0, acq.callCount)
}

// Test Case 7: TestPipeline_ProcessURL_PartialExtraction
// Input: interviewee extraction fails, then separately insight extraction fails
// Expected Output: Completed in both cases with the failing field replaced by its sentinel
func TestPipeline_ProcessURL_PartialExtraction(t *testing.T) {
	t.Run("interviewee fails", func(t *testing.T) {
		store := &memRecordStore{}
		ext := newExtractor()
		ext.intervieweeErr = insights.ErrExtractionTimeout
		p := newTestPipeline(t, store, &mockAcquirer{}, ext, Options{})

		out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

		require.Equal(t, StatusCompleted, out.Status)
		assert.Equal(t, domain.UnknownInterviewee, out.Record.Interviewee)
		assert.Equal(t, domain.InsightSet{"A.", "B.", "C."}, out.Record.Insights())
		require.Len(t, out.Warnings, 1)
		assert.ErrorIs(t, out.Warnings[0], insights.ErrExtractionTimeout)
		assert.Equal(t, 1, ext.insightsCalls)
	})

	t.Run("insights fail", func(t *testing.T) {
		store := &memRecordStore{}
		ext := newExtractor()
		ext.insightsErr = insights.ErrExtractionUnavailable
		p := newTestPipeline(t, store, &mockAcquirer{}, ext, Options{})

		out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

		require.Equal(t, StatusCompleted, out.Status)
		assert.Equal(t, "Jane Doe", out.Record.Interviewee)
		assert.Equal(t, domain.PlaceholderInsights(), out.Record.Insights())
		require.Len(t, out.Warnings, 1)
		assert.ErrorIs(t, out.Warnings[0], insights.ErrExtractionUnavailable)
	})

	t.Run("both fail", func(t *testing.T) {
		store := &memRecordStore{}
		ext := newExtractor()
		ext.intervieweeErr = insights.ErrExtractionUnavailable
		ext.insightsErr = insights.ErrExtractionTimeout
		p := newTestPipeline(t, store, &mockAcquirer{}, ext, Options{})

		out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

		require.Equal(t, StatusCompleted, out.Status)
		assert.Equal(t, domain.UnknownInterviewee, out.Record.Interviewee)
		assert.Equal(t, domain.PlaceholderInsights(), out.Record.Insights())
		assert.Len(t, out.Warnings, 2)
		assert.Len(t, store.records, 1)
	})
}

// Test Case 8: TestPipeline_ProcessURL_SaveFailure
// Input: the backend rejects the insert
// Expected Output: Failed with ErrPersistenceWrite, no record, audio released
func TestPipeline_ProcessURL_SaveFailure(t *testing.T) {
	store := &memRecordStore{insertErr: errors.New("connection reset")}
	acq := &mockAcquirer{}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

	assert.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, dedup.ErrPersistenceWrite)
	assert.Nil(t, out.Record)
	assert.Equal(t, 1, store.insertCalls)
	assertReleased(t, acq)
}

// Test Case 9: TestPipeline_ProcessURL_DedupReadErrorProceeds
// Input: the existence lookup errors
// Expected Output: the URL is treated as new and Completed
func TestPipeline_ProcessURL_DedupReadErrorProceeds(t *testing.T) {
	store := &memRecordStore{existsErr: errors.New("timeout")}
	acq := &mockAcquirer{}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, 1, acq.callCount)
}

// Test Case 10: TestPipeline_ProcessURL_MissingDescription
// Input: metadata without a description, with and without the skip option
// Expected Output: skip option yields Skipped(no-description); otherwise Completed with Unknown
func TestPipeline_ProcessURL_MissingDescription(t *testing.T) {
	bare := map[string]*domain.SourceMetadata{
		"https://youtube.com/watch?v=ABC": {CanonicalURL: "https://youtube.com/watch?v=ABC", Author: "Host"},
	}

	t.Run("skip enabled", func(t *testing.T) {
		store := &memRecordStore{}
		acq := &mockAcquirer{metadata: bare}
		ext := newExtractor()
		p := newTestPipeline(t, store, acq, ext, Options{SkipWithoutDescription: true})

		out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

		assert.Equal(t, StatusSkipped, out.Status)
		assert.Equal(t, SkipNoDescription, out.SkipReason)
		assert.Equal(t, 0, ext.intervieweeCalls+ext.insightsCalls)
		assert.Empty(t, store.records)
		assertReleased(t, acq)
	})

	t.Run("skip disabled", func(t *testing.T) {
		store := &memRecordStore{}
		acq := &mockAcquirer{metadata: bare}
		model := &mockModel{text: "Should not be asked", audioText: "A.\n\nB.\n\nC."}
		p := newTestPipeline(t, store, acq, insights.NewExtractor(model, time.Second), Options{})

		out := p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

		require.Equal(t, StatusCompleted, out.Status)
		assert.Equal(t, domain.UnknownInterviewee, out.Record.Interviewee)
		assert.Equal(t, domain.UnknownPublishDate, out.Record.PublishDate)
		assert.Equal(t, "A.", out.Record.Insight1)
	})
}

// Test Case 11: TestPipeline_ProcessURL_ReleasesAudioOnEveryPath
// Input: success, extraction failure and save failure
// Expected Output: no temp audio left behind in any case
func TestPipeline_ProcessURL_ReleasesAudioOnEveryPath(t *testing.T) {
	cases := map[string]func(*memRecordStore, *mockExtractor){
		"success":            func(*memRecordStore, *mockExtractor) {},
		"extraction failure": func(_ *memRecordStore, e *mockExtractor) { e.insightsErr = insights.ErrExtractionTimeout },
		"save failure":       func(s *memRecordStore, _ *mockExtractor) { s.insertErr = errors.New("disk full") },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			store := &memRecordStore{}
			acq := &mockAcquirer{}
			ext := newExtractor()
			setup(store, ext)
			p := newTestPipeline(t, store, acq, ext, Options{})

			p.ProcessURL(context.Background(), "https://youtube.com/watch?v=ABC")

			require.Len(t, acq.paths, 1)
			assertReleased(t, acq)
		})
	}
}

// Test Case 12: TestPipeline_Run_CancelStopsBetweenURLs
// Input: the context is cancelled while the first URL is being acquired
// Expected Output: the first URL finishes with a live context, the rest are not started
func TestPipeline_Run_CancelStopsBetweenURLs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inflightErr error
	store := &memRecordStore{}
	acq := &mockAcquirer{onAcquire: func(c context.Context) {
		cancel()
		inflightErr = c.Err()
	}}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	summary := p.Run(ctx, []string{
		"https://youtube.com/watch?v=ONE",
		"https://youtube.com/watch?v=TWO",
		"https://youtube.com/watch?v=THREE",
	})

	assert.NoError(t, inflightErr)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StatusCompleted, summary.Outcomes[0].Status)
	assert.Equal(t, 1, acq.callCount)
	assert.Len(t, store.records, 1)
}

// Test Case 13: TestPipeline_Run_AlreadyCancelled
// Input: a context cancelled before Run
// Expected Output: empty summary, nothing processed
func TestPipeline_Run_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acq := &mockAcquirer{}
	p := newTestPipeline(t, &memRecordStore{}, acq, newExtractor(), Options{})

	summary := p.Run(ctx, []string{"https://youtube.com/watch?v=ONE"})

	assert.Empty(t, summary.Outcomes)
	assert.Equal(t, 0, acq.callCount)
}

// Test Case 14: TestPipeline_Run_RecordURLPrefersSourceCanonical
// Input: candidate with tracking params, source reports a different canonical spelling
// Expected Output: stored youtube_url is the normalized source URL
func TestPipeline_Run_RecordURLPrefersSourceCanonical(t *testing.T) {
	store := &memRecordStore{}
	acq := &mockAcquirer{metadata: map[string]*domain.SourceMetadata{
		"https://youtube.com/watch?v=ABC": {
			CanonicalURL: "http://m.youtube.com/watch?v=ABC&feature=share",
			Description:  strPtr("guest"),
		},
	}}
	p := newTestPipeline(t, store, acq, newExtractor(), Options{})

	summary := p.Run(context.Background(), []string{"https://www.youtube.com/watch?v=ABC&si=track"})

	require.Len(t, store.records, 1)
	assert.Equal(t, "https://youtube.com/watch?v=ABC", store.records[0].YouTubeURL)
	assert.False(t, strings.Contains(summary.Outcomes[0].URL, "si="))
}
