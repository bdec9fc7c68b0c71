package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxCanvasBodySize  = 8 << 20 // 8MB
)

type AppDeps struct {
	Studio *studio.Service
	Token  string
	// WatchInterval is how often /videos/{id}/watch polls the store.
	// Defaults to one second.
	WatchInterval time.Duration
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewAppHandler returns the HTTP API. Health, public shares and blobs are
// reachable without a token; everything else requires the bearer token and
// is scoped to the caller's user id.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.WatchInterval <= 0 {
		deps.WatchInterval = time.Second
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/share/{shareId}", handlePublicShare(deps))
	r.Post("/share/{shareId}/view", handleShareView(deps))
	r.Get("/blobs/{key}", handleGetBlob(deps))
	if _, ok := deps.Studio.Objects().(*objects.Local); ok {
		r.Put("/blobs/{key}", handlePutBlob(deps))
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Use(Identify)

		r.Post("/uploads", handleRequestUpload(deps))
		r.Post("/transcriptions/import", handleImportTranscription(deps))

		r.Post("/projects", handleCreateProject(deps))
		r.Get("/projects", handleListProjects(deps))
		r.Get("/projects/{id}", handleGetProject(deps))
		r.Patch("/projects/{id}", handleUpdateProject(deps))
		r.Delete("/projects/{id}", handleDeleteProject(deps))
		r.Post("/projects/{id}/archive", handleArchiveProject(deps))
		r.Post("/projects/{id}/restore", handleRestoreProject(deps))
		r.Get("/projects/{id}/canvas", handleGetCanvas(deps))
		r.Put("/projects/{id}/canvas", handleSaveCanvas(deps))
		r.Get("/projects/{id}/shares", handleListShares(deps))
		r.Post("/projects/{id}/shares", handleCreateShare(deps))
		r.Get("/projects/{id}/videos", handleListVideos(deps))
		r.Post("/projects/{id}/videos", handleCreateVideo(deps))

		r.Get("/videos/{id}", handleGetVideo(deps))
		r.Patch("/videos/{id}", handleUpdateVideo(deps))
		r.Delete("/videos/{id}", handleDeleteVideo(deps))
		r.Put("/videos/{id}/metadata", handleUpdateVideoMetadata(deps))
		r.Post("/videos/{id}/transcribe", handleTranscribe(deps))
		r.Get("/videos/{id}/watch", handleWatchVideo(deps))
		r.Get("/videos/{id}/agents", handleListAgents(deps))
		r.Post("/videos/{id}/agents", handleCreateAgent(deps))

		r.Get("/agents/{id}", handleGetAgent(deps))
		r.Patch("/agents/{id}", handleUpdateAgent(deps))
		r.Delete("/agents/{id}", handleDeleteAgent(deps))
		r.Post("/agents/{id}/generate", handleGenerateAgent(deps))
		r.Post("/agents/{id}/chat", handleChat(deps))

		r.Post("/generate", handleGenerate(deps))
		r.Post("/generate/batch", handleGenerateBatch(deps))

		r.Get("/profile", handleGetProfile(deps))
		r.Put("/profile", handlePutProfile(deps))

		r.Patch("/shares/{shareId}", handleUpdateShare(deps))
		r.Delete("/shares/{shareId}", handleRevokeShare(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, maxRequestBodySize, false)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, maxRequestBodySize, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, limit int64, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return false
		}
	}
	if reflect.Indirect(reflect.ValueOf(dst)).Kind() != reflect.Struct {
		return true
	}
	if err := validate.Struct(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "min", "gt":
			msgs = append(msgs, fmt.Sprintf("%s is too small", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a studio error onto the error envelope. Only
// sanitized messages reach the client; causes are logged.
func writeServiceError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, objects.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
		return
	}
	ae := apperr.Classify(err)
	status := ae.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		slog.Error("request failed", "what", what, "category", ae.Category, "error", err)
	}
	httpError(w, status, errorType(ae.Category), "%s", ae.Message)
}

func errorType(c apperr.Category) string {
	switch c {
	case apperr.Validation:
		return "invalid_request_error"
	case apperr.Authentication:
		return "authentication_error"
	case apperr.RateLimit:
		return "rate_limit_error"
	}
	return "api_error"
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
