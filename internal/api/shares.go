package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handlePublicShare serves the read-only snapshot. Reading does not count
// as a view; viewers POST /share/{shareId}/view once per visit.
func handlePublicShare(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := deps.Studio.PublicShare(chi.URLParam(r, "shareId"))
		if err != nil {
			writeServiceError(w, err, "share")
			return
		}
		writeJSON(w, http.StatusOK, link)
	}
}

func handleShareView(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := deps.Studio.RecordView(chi.URLParam(r, "shareId"))
		if err != nil {
			writeServiceError(w, err, "share")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"viewCount": views})
	}
}

func handleUpdateShare(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}
		link, err := deps.Studio.UpdateShare(userID(r), chi.URLParam(r, "shareId"), req.Title)
		if err != nil {
			writeServiceError(w, err, "share")
			return
		}
		writeJSON(w, http.StatusOK, link)
	}
}

func handleRevokeShare(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Studio.RevokeShare(userID(r), chi.URLParam(r, "shareId")); err != nil {
			writeServiceError(w, err, "share")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}
