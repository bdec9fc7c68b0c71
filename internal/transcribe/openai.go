package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"

	// WhisperModel is the model id sent with every upload.
	WhisperModel = "whisper-1"

	// MaxOpenAIFileSize is the upload ceiling of the OpenAI endpoint.
	MaxOpenAIFileSize = 25 << 20
)

// OpenAI uploads the file bytes as multipart form data and reads back a
// plain-text transcript.
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates the provider. An empty baseURL uses the OpenAI endpoint.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Transcribe(ctx context.Context, m Media) (Result, error) {
	if p.apiKey == "" {
		return Result{}, missingKey("transcription.openai_api_key", "YOUPAC_OPENAI_API_KEY")
	}
	if m.Size > MaxOpenAIFileSize {
		return Result{}, tooLarge(m.Size)
	}

	data, err := download(ctx, m)
	if err != nil {
		return Result{}, err
	}
	if len(data) > MaxOpenAIFileSize {
		return Result{}, tooLarge(int64(len(data)))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName(m.Name))
	if err != nil {
		return Result{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return Result{}, fmt.Errorf("writing form file: %w", err)
	}
	if err := mw.WriteField("model", WhisperModel); err != nil {
		return Result{}, fmt.Errorf("writing model field: %w", err)
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return Result{}, fmt.Errorf("writing response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, requestError("OpenAI", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, statusError("OpenAI", resp)
	}
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, requestError("OpenAI", err)
	}
	return Result{Text: string(text)}, nil
}

func tooLarge(size int64) error {
	return apperr.New(apperr.Transcription, fmt.Sprintf(
		"File size (%.1f MB) exceeds the 25MB limit for OpenAI transcription. Use the elevenlabs provider for larger files.",
		float64(size)/(1<<20)))
}

// download reads the media bytes, giving up after DownloadTimeout.
func download(ctx context.Context, m Media) ([]byte, error) {
	if m.Open == nil {
		return nil, errors.New("media has no byte source")
	}
	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		rc, err := m.Open(ctx)
		if err != nil {
			ch <- result{err: err}
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, MaxOpenAIFileSize+1))
		ch <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.Network, ctx.Err(), "Downloading the video timed out after 30 seconds.")
		}
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, apperr.Wrap(apperr.Storage, r.err, "Could not read the uploaded video.")
		}
		return r.data, nil
	}
}

func fileName(name string) string {
	if name == "" {
		return "video.mp4"
	}
	return name
}
