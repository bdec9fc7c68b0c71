// Package objects stores uploaded videos and generated images.
//
// Two backends exist: Local keeps files under the data directory and is
// served by the API at /blobs/{key}; MinIO talks to an S3 compatible bucket
// and hands out presigned URLs.
package objects

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that could escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

type Info struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is a blob store addressed by opaque keys.
type Store interface {
	// UploadURL returns a single-use URL the client PUTs raw bytes to.
	UploadURL(ctx context.Context, key, contentType string) (string, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Info, error)
	// URL returns a URL that external services can GET the object from.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key, keeping the extension of name.
func NewKey(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 8 || !validKey(ext[min(1, len(ext)):]) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
