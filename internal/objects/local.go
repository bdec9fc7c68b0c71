package objects

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const typeSuffix = ".content-type"

// Local stores objects as files in Dir. BaseURL is the public origin of the
// API that serves them.
type Local struct {
	Dir     string
	BaseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Content type sidecar files are not addressable as objects.
func localKey(key string) bool {
	return validKey(key) && !strings.HasSuffix(key, typeSuffix)
}

func (l *Local) path(key string) (string, error) {
	if !localKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.Dir, key), nil
}

func (l *Local) UploadURL(_ context.Context, key, _ string) (string, error) {
	if !localKey(key) {
		return "", ErrInvalidKey
	}
	return l.BaseURL + "/blobs/" + key, nil
}

func (l *Local) URL(ctx context.Context, key string) (string, error) {
	return l.UploadURL(ctx, key, "")
}

func (l *Local) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.Dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.WriteFile(p+typeSuffix, []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("writing content type: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *Local) Stat(_ context.Context, key string) (Info, error) {
	p, err := l.path(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(p)
	if os.IsNotExist(err) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	ct := "application/octet-stream"
	if b, err := os.ReadFile(p + typeSuffix); err == nil && len(b) > 0 {
		ct = string(b)
	}
	return Info{Key: key, Size: fi.Size(), ContentType: ct}, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	os.Remove(p + typeSuffix)
	return nil
}
