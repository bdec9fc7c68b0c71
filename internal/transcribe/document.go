package transcribe

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
)

// MaxDocumentSize caps imported scripts.
const MaxDocumentSize = 10 << 20

// ImportDocument extracts manual transcription text from a PDF or a plain
// text script.
func ImportDocument(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Validationf("document %q is empty", name)
	}
	if len(data) > MaxDocumentSize {
		return "", apperr.Validationf("document %q exceeds the 10MB limit", name)
	}

	var text string
	if strings.EqualFold(filepath.Ext(name), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-")) {
		t, err := pdfText(data)
		if err != nil {
			return "", apperr.Wrap(apperr.Validation, err, fmt.Sprintf("Could not read PDF %q.", name))
		}
		text = t
	} else {
		if !utf8.Valid(data) {
			return "", apperr.Validationf("document %q is not UTF-8 text or PDF", name)
		}
		text = string(data)
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return "", apperr.Validationf("document %q contains no text", name)
	}
	return text, nil
}

func pdfText(data []byte) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(b), nil
}
