package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

	// ScribeModel is the ElevenLabs speech-to-text model id.
	ScribeModel = "scribe_v1"
)

// ElevenLabs hands the provider a cloud-accessible URL instead of uploading
// bytes, so it has no local size ceiling.
type ElevenLabs struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabs creates the provider. An empty baseURL uses the public API.
func NewElevenLabs(apiKey, baseURL string) *ElevenLabs {
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	return &ElevenLabs{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	CloudStorageURL string `json:"cloud_storage_url"`
	ModelID         string `json:"model_id"`
}

type elevenLabsResponse struct {
	Text                string  `json:"text"`
	LanguageCode        string  `json:"language_code"`
	LanguageProbability float64 `json:"language_probability"`
	Words               []Word  `json:"words"`
}

func (p *ElevenLabs) Transcribe(ctx context.Context, m Media) (Result, error) {
	if p.apiKey == "" {
		return Result{}, missingKey("transcription.elevenlabs_api_key", "YOUPAC_ELEVENLABS_API_KEY")
	}
	if m.URL == nil {
		return Result{}, errors.New("media has no URL")
	}
	mediaURL, err := m.URL(ctx)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Storage, err, "Could not create a download link for the video.")
	}
	if err := p.preflight(ctx, mediaURL); err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(elevenLabsRequest{CloudStorageURL: mediaURL, ModelID: ScribeModel})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/speech-to-text", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Xi-Api-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, requestError("ElevenLabs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, statusError("ElevenLabs", resp)
	}
	var out elevenLabsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, apperr.Wrap(apperr.Transcription, err, "ElevenLabs returned an unreadable response.")
	}
	return Result{
		Text:                out.Text,
		Language:            out.LanguageCode,
		LanguageProbability: out.LanguageProbability,
		Words:               out.Words,
	}, nil
}

// preflight checks that the file exists at url before submitting it.
func (p *ElevenLabs) preflight(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("creating preflight request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Network, err, "The video file could not be reached for transcription.")
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.Transcription,
			fmt.Sprintf("The video file is not accessible for transcription (HTTP %d).", resp.StatusCode))
	}
	return nil
}
