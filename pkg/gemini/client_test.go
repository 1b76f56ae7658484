package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}}},
		},
	}
}

func newTestClient(t *testing.T, apiKey, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(baseURL), WithRateLimit(0)}, opts...)
	c, err := NewClient(context.Background(), apiKey, opts...)
	require.NoError(t, err)
	return c
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "who is the guest?")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse("  Jane Doe \n"))
	}))
	defer server.Close()

	c := newTestClient(t, "test-key", server.URL, WithModel("models/gemini-pro"))
	got, err := c.GenerateText(context.Background(), "who is the guest?")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got)
}

func TestGenerateText_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, "k", server.URL)
	_, err := c.GenerateText(context.Background(), "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
	assert.Contains(t, apiErr.Error(), "quota exhausted")
}

func TestGenerateText_EmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no candidates", `{"candidates":[]}`},
		{"blank text", `{"candidates":[{"content":{"parts":[{"text":"  "}]},"finishReason":"SAFETY"}]}`},
		{"blocked", `{"promptFeedback":{"blockReason":"OTHER"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, "k", server.URL).GenerateText(context.Background(), "hi")
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestGenerateText_DeadlineErrorOmitsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, "SECRET-KEY-123", server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GenerateText(ctx, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

// fakeFilesAPI emulates resumable upload, polling, generation and deletion
type fakeFilesAPI struct {
	server       *httptest.Server
	pollsBefore  int32
	finalState   string
	polls        int32
	deleted      int32
	mu           sync.Mutex
	uploaded     strings.Builder
	generateBody string
}

func fileJSON(state string) map[string]any {
	return map[string]any{
		"name":     "files/abc",
		"uri":      "https://files.example/abc",
		"mimeType": "audio/mp4",
		"state":    state,
	}
}

func newFakeFilesAPI(t *testing.T, pollsBefore int32, finalState string) *fakeFilesAPI {
	f := &fakeFilesAPI{pollsBefore: pollsBefore, finalState: finalState}
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumable", r.Header.Get("X-Goog-Upload-Protocol"))
		assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
		assert.Equal(t, "audio/mp4", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		w.Header().Set("X-Goog-Upload-URL", f.server.URL+"/upload-session/1")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/upload-session/1", func(w http.ResponseWriter, r *http.Request) {
		command := r.Header.Get("X-Goog-Upload-Command")
		assert.Contains(t, command, "upload")
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploaded.Write(body)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !strings.Contains(command, "finalize") {
			w.Header().Set("X-Goog-Upload-Status", "active")
			w.Write([]byte(`{}`))
			return
		}
		w.Header().Set("X-Goog-Upload-Status", "final")
		json.NewEncoder(w).Encode(map[string]any{"file": fileJSON("PROCESSING")})
	})
	mux.HandleFunc("/v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			state := "PROCESSING"
			if atomic.AddInt32(&f.polls, 1) > f.pollsBefore {
				state = f.finalState
			}
			json.NewEncoder(w).Encode(fileJSON(state))
		case http.MethodDelete:
			atomic.AddInt32(&f.deleted, 1)
			w.Write([]byte(`{}`))
		}
	})
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.generateBody = string(body)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse("A.\n\nB.\n\nC."))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.m4a")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o600))
	return path
}

func TestGenerateFromAudio(t *testing.T) {
	api := newFakeFilesAPI(t, 2, "ACTIVE")
	c := newTestClient(t, "k", api.server.URL, WithPollInterval(time.Millisecond))

	got, err := c.GenerateFromAudio(context.Background(), "insights please", writeAudio(t), "audio/mp4")
	require.NoError(t, err)

	assert.Equal(t, "A.\n\nB.\n\nC.", got)
	assert.Equal(t, "audio", api.uploaded.String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&api.polls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.deleted))

	assert.Contains(t, api.generateBody, "insights please")
	assert.Contains(t, api.generateBody, "https://files.example/abc")
}

func TestGenerateFromAudio_FileFailed(t *testing.T) {
	api := newFakeFilesAPI(t, 0, "FAILED")
	c := newTestClient(t, "k", api.server.URL, WithPollInterval(time.Millisecond))

	_, err := c.GenerateFromAudio(context.Background(), "p", writeAudio(t), "audio/mp4")
	assert.ErrorIs(t, err, ErrFileFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.deleted))
}

func TestGenerateFromAudio_PollTimeout(t *testing.T) {
	api := newFakeFilesAPI(t, 1<<20, "ACTIVE")
	c := newTestClient(t, "k", api.server.URL,
		WithPollInterval(time.Millisecond), WithPollTimeout(20*time.Millisecond))

	_, err := c.GenerateFromAudio(context.Background(), "p", writeAudio(t), "audio/mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait for files/abc")
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.deleted))
}

func TestGenerateFromAudio_MissingFile(t *testing.T) {
	c := newTestClient(t, "k", "http://127.0.0.1:1")
	_, err := c.GenerateFromAudio(context.Background(), "p", filepath.Join(t.TempDir(), "nope.m4a"), "audio/mp4")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
