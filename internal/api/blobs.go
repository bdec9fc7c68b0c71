package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/media"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
)

const maxBlobSize = media.MaxFileSize

// handlePutBlob receives upload slot bytes for the local backend. Keys are
// write-once.
func handlePutBlob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		store := deps.Studio.Objects()

		if _, err := store.Stat(r.Context(), key); err == nil {
			httpError(w, http.StatusConflict, "invalid_request_error", "object %q already exists", key)
			return
		} else if errors.Is(err, objects.ErrInvalidKey) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid object key")
			return
		} else if !errors.Is(err, objects.ErrNotFound) {
			writeServiceError(w, err, "object")
			return
		}
		if r.ContentLength > maxBlobSize {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "object exceeds %dMB", maxBlobSize>>20)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBlobSize)
		defer r.Body.Close()

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := store.Put(r.Context(), key, r.Body, r.ContentLength, ct); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "object exceeds %dMB", maxBlobSize>>20)
				return
			}
			writeServiceError(w, err, "object")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"storageId": key})
	}
}

// handleGetBlob serves an object. Seekable backends get range support.
func handleGetBlob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		store := deps.Studio.Objects()

		info, err := store.Stat(r.Context(), key)
		if errors.Is(err, objects.ErrInvalidKey) {
			httpError(w, http.StatusNotFound, "not_found", "object not found")
			return
		}
		if err != nil {
			writeServiceError(w, err, "object")
			return
		}
		rc, err := store.Open(r.Context(), key)
		if err != nil {
			writeServiceError(w, err, "object")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", info.ContentType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, key, time.Time{}, rs)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		io.Copy(w, rc)
	}
}
