package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

var errFileNotReady = errors.New("file not ready")

// GenerateFromAudio uploads the audio at path, prompts the model with it, and deletes the upload.
func (c *Client) GenerateFromAudio(ctx context.Context, prompt, path, mimeType string) (string, error) {
	f, err := c.uploadFile(ctx, path, mimeType)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer c.deleteFile(f.Name)

	if f.State != genai.FileStateActive {
		if f, err = c.waitActive(ctx, f.Name); err != nil {
			return "", err
		}
	}

	if f.MIMEType != "" {
		mimeType = f.MIMEType
	}
	return c.generate(ctx, []*genai.Part{
		{Text: prompt},
		{FileData: &genai.FileData{FileURI: f.URI, MIMEType: mimeType}},
	})
}

func (c *Client) uploadFile(ctx context.Context, path, mimeType string) (*genai.File, error) {
	audio, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer audio.Close()

	f, err := c.genai.Files.Upload(ctx, audio, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return nil, wrapError(ctx, "send audio", err)
	}
	if f.Name == "" || f.URI == "" {
		return nil, fmt.Errorf("upload response missing file name or uri")
	}
	return f, nil
}

// waitActive polls the file until it leaves PROCESSING
func (c *Client) waitActive(ctx context.Context, name string) (*genai.File, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = c.pollTimeout

	var ready *genai.File
	op := func() error {
		f, err := c.genai.Files.Get(ctx, name, nil)
		if err != nil {
			err = wrapError(ctx, "get file", err)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		switch f.State {
		case genai.FileStateActive:
			ready = f
			return nil
		case genai.FileStateFailed:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrFileFailed, name))
		default:
			return errFileNotReady
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", name, err)
	}
	return ready, nil
}

// deleteFile removes an upload. It runs on its own deadline so cleanup survives a cancelled caller.
func (c *Client) deleteFile(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := c.genai.Files.Delete(ctx, name, nil); err != nil {
		c.log.WithError(err).WithField("file", name).Warn("failed to delete uploaded audio")
	}
}
