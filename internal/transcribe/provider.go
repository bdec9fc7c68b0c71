// Package transcribe turns uploaded videos into transcript text through a
// hosted speech-to-text provider.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
)

// DownloadTimeout bounds fetching the media before it is sent to a provider.
const DownloadTimeout = 30 * time.Second

const maxErrorBody = 512

// ErrNoSpeech is returned when the provider produced only whitespace.
var ErrNoSpeech = errors.New("no speech detected")

// Media describes the uploaded file a provider transcribes. Providers pick
// whichever accessor suits them.
type Media struct {
	Name        string
	ContentType string
	Size        int64

	// Open streams the raw bytes.
	Open func(ctx context.Context) (io.ReadCloser, error)
	// URL returns a location the provider can fetch the file from.
	URL func(ctx context.Context) (string, error)
}

type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Type  string  `json:"type,omitempty"`
}

// Result is a finished transcript.
type Result struct {
	Text                string  `json:"text"`
	Language            string  `json:"language,omitempty"`
	LanguageProbability float64 `json:"languageProbability,omitempty"`
	Words               []Word  `json:"words,omitempty"`
}

// Provider is a speech-to-text backend.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, m Media) (Result, error)
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *APIError) HTTPStatus() int { return e.Status }

// missingKey reports an unset credential, naming the env var to set.
func missingKey(key, env string) error {
	return apperr.Wrap(apperr.Authentication,
		fmt.Errorf("missing required config: %s", key),
		fmt.Sprintf("Transcription is not configured: set %s.", env))
}

// statusError turns a failed provider response into a classified error with
// a readable message.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	ae := &APIError{Provider: provider, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	switch lower := strings.ToLower(ae.Body); {
	case ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden:
		return apperr.Wrap(apperr.Authentication, ae, fmt.Sprintf("%s rejected the API key.", provider))
	case ae.Status == http.StatusTooManyRequests:
		return apperr.Wrap(apperr.RateLimit, ae, fmt.Sprintf("%s rate limit reached. Try again later.", provider))
	case ae.Status == http.StatusRequestEntityTooLarge:
		return apperr.Wrap(apperr.Transcription, ae, fmt.Sprintf("The file is too large for %s.", provider))
	case ae.Status == http.StatusBadRequest && (strings.Contains(lower, "format") || strings.Contains(lower, "codec") || strings.Contains(lower, "decode")):
		return apperr.Wrap(apperr.Transcription, ae, "The audio format of this video is not supported.")
	}
	return apperr.Wrap(apperr.Transcription, ae, fmt.Sprintf("%s transcription failed (HTTP %d).", provider, ae.Status))
}

// requestError classifies a transport failure.
func requestError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Network, err, fmt.Sprintf("%s did not respond in time.", provider))
	}
	return apperr.Wrap(apperr.Network, err, fmt.Sprintf("Could not reach %s.", provider))
}

// FailureMessage returns the text persisted on a failed transcription.
func FailureMessage(err error) string {
	if errors.Is(err, ErrNoSpeech) {
		return ErrNoSpeech.Error()
	}
	return apperr.UserMessage(err)
}
