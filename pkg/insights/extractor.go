package insights

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/httpclient"
)

var (
	// ErrExtractionTimeout is returned when the model call ran past its deadline.
	ErrExtractionTimeout = errors.New("extraction timed out")

	// ErrExtractionUnavailable is returned when the model call failed for any other reason.
	ErrExtractionUnavailable = errors.New("extraction unavailable")
)

// Model is the inference collaborator.
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateFromAudio(ctx context.Context, prompt, path, mimeType string) (string, error)
}

const intervieweePrompt = `Given the following YouTube description, identify just 1 thing: the name of the interviewee.
It is **imperative you only give the name of the interviewee, and nothing else**.
If the description does not name an interviewee, answer exactly: Unknown

Description:
%s`

const insightsPrompt = `Given the following audio file, **provide the 3 most interesting insights from this conversation**.
For each insight, provide 1 descriptive & meaningful sentence each, separated by 2 newline characters (\n\n) and nothing else.
Do not use any special characters to denote each point.`

const defaultTimeout = 5 * time.Minute

// Extractor derives the interviewee name and key insights using a Model.
type Extractor struct {
	model   Model
	timeout time.Duration
}

// NewExtractor creates an extractor. A zero timeout uses the default of five minutes per call.
func NewExtractor(model Model, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Extractor{model: model, timeout: timeout}
}

// ExtractInterviewee returns the interviewee named in description, or domain.UnknownInterviewee.
// On a model failure the sentinel is returned together with the classified error.
func (e *Extractor) ExtractInterviewee(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return domain.UnknownInterviewee, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.model.GenerateText(ctx, fmt.Sprintf(intervieweePrompt, description))
	if err != nil {
		return domain.UnknownInterviewee, classify("interviewee", err)
	}
	return sanitizeName(out), nil
}

// ExtractInsights returns exactly three insights for the audio payload.
// On a model failure the placeholder set is returned together with the classified error.
func (e *Extractor) ExtractInsights(ctx context.Context, audio *domain.AudioHandle) (domain.InsightSet, error) {
	if audio == nil || audio.Path == "" {
		return domain.PlaceholderInsights(), fmt.Errorf("%w: no audio payload", ErrExtractionUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.model.GenerateFromAudio(ctx, insightsPrompt, audio.Path, audio.MIMEType)
	if err != nil {
		return domain.PlaceholderInsights(), classify("insights", err)
	}
	return domain.NewInsightSet(splitInsights(out)), nil
}

func classify(op string, err error) error {
	if httpclient.IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrExtractionTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExtractionUnavailable, err)
}

var (
	namePrefixRE    = regexp.MustCompile(`(?i)^(?:the\s+)?(?:interviewee|guest|name)(?:\s+is|\s*:)\s*`)
	itemSeparatorRE = regexp.MustCompile(`\n[ \t]*\n`)
	bulletRE        = regexp.MustCompile(`^(?:[-*•]+\s*|\d+[.)]\s+|#+\s*)`)
	insightLabelRE  = regexp.MustCompile(`(?i)^(?:\*\*)?(?:key\s+)?insight\s*\d*\s*(?:\*\*)?\s*[:.\-]\s*(?:\*\*)?\s*`)

	// whole-phrase refusals; a name may still start with "I" or "No"
	refusalRE = regexp.MustCompile(`(?i)^(?:unknown|none|n/a|sorry|i'm|i am|` +
		`i (?:do not|don't|cannot|can't|could not|couldn't|was unable|have no)|` +
		`no (?:interviewee|guest|name|one|specific|information|individual|person|mention)|` +
		`not (?:mentioned|specified|provided|stated|available|clear|given|known)|` +
		`there (?:is|are|was|were)|the description)\b`)
)

const maxNameLen = 80

// sanitizeName constrains a model answer to a bare proper name
func sanitizeName(raw string) string {
	name := ""
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			name = line
			break
		}
	}

	name = namePrefixRE.ReplaceAllString(name, "")
	name = strings.Trim(name, "\"'`*_. ")

	if name == "" || utf8.RuneCountInString(name) > maxNameLen || len(strings.Fields(name)) > 6 {
		return domain.UnknownInterviewee
	}
	if refusalRE.MatchString(name) {
		return domain.UnknownInterviewee
	}
	return name
}

// splitInsights splits model output on blank lines and strips list markup
func splitInsights(raw string) []string {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	var items []string
	for _, chunk := range itemSeparatorRE.Split(text, -1) {
		chunk = strings.Join(strings.Fields(chunk), " ")
		chunk = bulletRE.ReplaceAllString(chunk, "")
		chunk = insightLabelRE.ReplaceAllString(chunk, "")
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			items = append(items, chunk)
		}
	}
	return items
}
