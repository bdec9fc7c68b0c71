package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/transcribe"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/upload"
)

type uploadRequest struct {
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"gt=0"`
}

type createVideoRequest struct {
	Title          string                `json:"title" validate:"max=200"`
	StorageID      string                `json:"storageId" validate:"max=100"`
	CanvasPosition canvas.Position       `json:"canvasPosition"`
	Metadata       storage.VideoMetadata `json:"metadata"`
}

type updateVideoRequest struct {
	Title          *string          `json:"title" validate:"omitempty,min=1,max=200"`
	CanvasPosition *canvas.Position `json:"canvasPosition"`
}

type transcribeRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=openai elevenlabs"`
}

func handleRequestUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		slot, err := deps.Studio.RequestUpload(r.Context(), req.ContentType, req.Size)
		if err != nil {
			writeServiceError(w, err, "upload")
			return
		}
		writeJSON(w, http.StatusOK, slot)
	}
}

// handleImportTranscription extracts script text from a multipart "file"
// (PDF or plain text) for a transcription node.
func handleImportTranscription(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, transcribe.MaxDocumentSize+1<<20)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "multipart field \"file\" is required")
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, transcribe.MaxDocumentSize+1))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading file: %v", err)
			return
		}
		name := filepath.Base(hdr.Filename)
		text, err := transcribe.ImportDocument(name, data)
		if err != nil {
			writeServiceError(w, err, "document")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"fileName": name, "text": text})
	}
}

func handleCreateVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createVideoRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		v, err := deps.Studio.CreateVideo(r.Context(), userID(r), upload.NewVideo{
			ProjectID:      chi.URLParam(r, "id"),
			Title:          req.Title,
			StorageID:      req.StorageID,
			CanvasPosition: req.CanvasPosition,
			Metadata:       req.Metadata,
		})
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

func handleGetVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Studio.GetVideo(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleUpdateVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateVideoRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		v, err := deps.Studio.UpdateVideo(userID(r), chi.URLParam(r, "id"), studio.VideoPatch{
			Title:          req.Title,
			CanvasPosition: req.CanvasPosition,
		})
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleDeleteVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Studio.DeleteVideo(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err, "video")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleUpdateVideoMetadata(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var md storage.VideoMetadata
		if !decodeJSON(w, r, &md) {
			return
		}
		v, err := deps.Studio.UpdateVideoMetadata(userID(r), chi.URLParam(r, "id"), md)
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleTranscribe(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transcribeRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}
		v, err := deps.Studio.ScheduleTranscription(r.Context(), userID(r), chi.URLParam(r, "id"), req.Provider)
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}
		writeJSON(w, http.StatusAccepted, v)
	}
}
