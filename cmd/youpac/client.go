package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/config"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/upload"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      apperr.RetryPolicy
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, err := config.ReadAPIToken(cfg)
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		retry:      apperr.DefaultRetry,
	}, nil
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Type    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *apiError) HTTPStatus() int { return e.Status }

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is youpac running? (%w)", err)
	}
	return resp, nil
}

// call sends one request and decodes the answer into out (which may be nil).
func (c *apiClient) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// mutate is call with the client retry policy. Only requests that are safe
// to repeat go through it.
func (c *apiClient) mutate(ctx context.Context, method, path string, body, out any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.call(ctx, method, path, body, out)
	})
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return &apiError{Status: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
		}
		var env struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return &apiError{Status: resp.StatusCode, Type: env.Error.Type, Message: env.Error.Message}
		}
		return &apiError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
	}
	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// --- upload.Backend ---

func (c *apiClient) RequestUpload(ctx context.Context, contentType string, size int64) (upload.Slot, error) {
	var slot upload.Slot
	err := c.mutate(ctx, http.MethodPost, "/uploads", map[string]any{
		"contentType": contentType,
		"size":        size,
	}, &slot)
	return slot, err
}

// CreateVideo is not retried: a lost response would otherwise leave a
// duplicate record.
func (c *apiClient) CreateVideo(ctx context.Context, v upload.NewVideo) (storage.Video, error) {
	var out storage.Video
	err := c.post(ctx, "/projects/"+url.PathEscape(v.ProjectID)+"/videos", v, &out)
	return out, err
}

func (c *apiClient) UpdateVideoMetadata(ctx context.Context, videoID string, md storage.VideoMetadata) error {
	return c.mutate(ctx, http.MethodPut, "/videos/"+url.PathEscape(videoID)+"/metadata", md, nil)
}

func (c *apiClient) ScheduleTranscription(ctx context.Context, videoID, provider string) error {
	var body any
	if provider != "" {
		body = map[string]string{"provider": provider}
	}
	return c.mutate(ctx, http.MethodPost, "/videos/"+url.PathEscape(videoID)+"/transcribe", body, nil)
}
