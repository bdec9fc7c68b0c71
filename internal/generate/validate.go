package generate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid generation request")

// Validation messages.
const (
	MsgMissingContext = "At least one of video title, transcription or manual transcription is required"
	MsgMissingFrames  = "Thumbnail generation requires at least one video frame"
)

type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

// Validate checks req before any model is called.
func Validate(req Request) ValidationResult {
	var errs []string
	if !req.AgentType.Valid() {
		errs = append(errs, fmt.Sprintf("Unknown agent type %q", req.AgentType))
	}
	if !hasContext(req.VideoData) {
		errs = append(errs, MsgMissingContext)
	}
	if req.AgentType == Thumbnail {
		frames := 0
		for _, f := range req.VideoFrames {
			if strings.TrimSpace(f.DataURL) != "" {
				frames++
			}
		}
		if frames == 0 {
			errs = append(errs, MsgMissingFrames)
		}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func hasContext(v VideoData) bool {
	if strings.TrimSpace(v.Title) != "" || strings.TrimSpace(v.Transcription) != "" {
		return true
	}
	for _, m := range v.ManualTranscriptions {
		if strings.TrimSpace(m.Text) != "" {
			return true
		}
	}
	return false
}

// Err converts a failed result into a classified error wrapping
// ErrInvalidRequest. It returns nil for a valid result.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return apperr.Wrap(apperr.Validation, ErrInvalidRequest, strings.Join(r.Errors, "; "))
}
