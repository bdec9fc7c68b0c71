// Package media validates video files and extracts their metadata with
// ffprobe.
package media

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 100 << 20

var allowedTypes = map[string]bool{
	"video/mp4":         true,
	"video/quicktime":   true,
	"video/x-quicktime": true,
	"video/mov":         true,
	"video/x-msvideo":   true,
	"video/avi":         true,
	"video/webm":        true,
}

var extTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
}

// FileInfo describes a candidate upload.
type FileInfo struct {
	Name     string
	Size     int64
	MIMEType string
}

type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ValidateVideoFile checks the size limit and the MIME allow-list.
func ValidateVideoFile(f FileInfo) ValidationResult {
	var errs []string
	if f.Size > MaxFileSize {
		errs = append(errs, fmt.Sprintf("File size (%.1fMB) exceeds maximum allowed size of %dMB",
			float64(f.Size)/(1<<20), MaxFileSize>>20))
	}
	if f.Size <= 0 {
		errs = append(errs, "File is empty")
	}
	mt := normalizeType(f.MIMEType)
	if !allowedTypes[mt] {
		errs = append(errs, fmt.Sprintf("Invalid file type %q. Supported formats: MP4, MOV, AVI, WebM", f.MIMEType))
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// IsAllowedType reports whether the MIME type is an accepted video format.
func IsAllowedType(mimeType string) bool {
	return allowedTypes[normalizeType(mimeType)]
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "quicktime" {
		return "video/quicktime"
	}
	return t
}

// DetectType guesses a file's MIME type from its extension, falling back to
// content sniffing of the first bytes.
func DetectType(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return normalizeType(t)
	}
	if len(head) > 0 {
		return normalizeType(http.DetectContentType(head))
	}
	return "application/octet-stream"
}

// Extension returns the file extension for an accepted video MIME type,
// defaulting to ".mp4".
func Extension(mimeType string) string {
	switch normalizeType(mimeType) {
	case "video/quicktime", "video/x-quicktime", "video/mov":
		return ".mov"
	case "video/x-msvideo", "video/avi":
		return ".avi"
	case "video/webm":
		return ".webm"
	}
	return ".mp4"
}
