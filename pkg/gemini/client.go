package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"podcast-insights/pkg/httpclient"
	"podcast-insights/pkg/logger"
)

const (
	defaultModel   = "gemini-1.5-pro-latest"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("gemini returned no text")

	// ErrFileFailed is returned when an uploaded file could not be processed remotely.
	ErrFileFailed = errors.New("gemini file processing failed")
)

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini API error: status %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Client talks to the Gemini API through the genai SDK, which sends the key
// as a header so it never shows up in request URLs or transport errors.
type Client struct {
	genai        *genai.Client
	model        string
	limiter      *rate.Limiter
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          *logger.Logger
}

type options struct {
	model        string
	baseURL      string
	http         *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          *logger.Logger
}

// Option configures a Client.
type Option func(*options)

// WithModel sets the Gemini model to use.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = strings.TrimPrefix(model, "models/")
		}
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithRateLimit caps generateContent calls per minute. Zero disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(o *options) {
		if perMinute <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithPollInterval sets the first wait between file state checks.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithPollTimeout bounds how long an upload may stay in PROCESSING.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		o.pollTimeout = d
	}
}

// WithLogger attaches a logger for cleanup warnings.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	o := &options{
		model:        defaultModel,
		baseURL:      defaultBaseURL,
		http:         httpclient.NewClient(httpclient.APIClient, httpclient.WithTimeout(10*time.Minute)).StandardClient(),
		limiter:      rate.NewLimiter(rate.Every(6*time.Second), 1),
		pollInterval: 2 * time.Second,
		pollTimeout:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.http,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    o.baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai:        gc,
		model:        o.model,
		limiter:      o.limiter,
		pollInterval: o.pollInterval,
		pollTimeout:  o.pollTimeout,
		log:          o.log,
	}, nil
}

// GenerateText sends a text-only prompt and returns the model's answer.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []*genai.Part{{Text: prompt}})
}

func (c *Client) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", wrapError(ctx, "generate content", err)
	}
	return responseText(resp)
}

// wrapError maps SDK errors onto APIError and keeps context errors matchable
func wrapError(ctx context.Context, op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, &APIError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message})
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%s: %w: %v", op, ctxErr, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func responseText(r *genai.GenerateContentResponse) (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 || r.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	first := r.Candidates[0]
	var sb strings.Builder
	if first.Content != nil {
		for _, p := range first.Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: finish reason %q", ErrEmptyResponse, first.FinishReason)
	}
	return text, nil
}
