package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
)

type createProjectRequest struct {
	Title       string                   `json:"title" validate:"required,max=200"`
	Description string                   `json:"description" validate:"max=5000"`
	Tags        []string                 `json:"tags" validate:"max=20,dive,max=50"`
	Category    string                   `json:"category" validate:"max=100"`
	Settings    *storage.ProjectSettings `json:"settings"`
}

type updateProjectRequest struct {
	Title       *string                  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string                  `json:"description" validate:"omitempty,max=5000"`
	Tags        *[]string                `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Category    *string                  `json:"category" validate:"omitempty,max=100"`
	Settings    *storage.ProjectSettings `json:"settings"`
}

type shareRequest struct {
	Title string `json:"title" validate:"max=200"`
}

func handleCreateProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := deps.Studio.CreateProject(userID(r), studio.ProjectInput{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Category:    req.Category,
			Settings:    req.Settings,
		})
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleListProjects(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Studio.ListProjects(userID(r), r.URL.Query().Get("status"))
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		if projects == nil {
			projects = []storage.Project{}
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

// handleGetProject also stamps lastOpenedAt unless ?touch=false.
func handleGetProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		get := deps.Studio.OpenProject
		if touch, err := strconv.ParseBool(r.URL.Query().Get("touch")); err == nil && !touch {
			get = deps.Studio.GetProject
		}
		p, err := get(userID(r), id)
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleUpdateProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := deps.Studio.UpdateProject(userID(r), chi.URLParam(r, "id"), studio.ProjectPatch{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Category:    req.Category,
			Settings:    req.Settings,
		})
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleDeleteProject soft deletes by default; ?hard=true removes the
// project with its videos, agents, canvas and shares.
func handleDeleteProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hard, _ := strconv.ParseBool(r.URL.Query().Get("hard"))
		if err := deps.Studio.DeleteProject(r.Context(), userID(r), chi.URLParam(r, "id"), hard); err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleArchiveProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Studio.ArchiveProject(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleRestoreProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Studio.RestoreProject(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetCanvas(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := deps.Studio.GetCanvas(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleSaveCanvas(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state canvas.State
		if !decode(w, r, &state, maxCanvasBodySize, false) {
			return
		}
		saved, err := deps.Studio.SaveCanvas(userID(r), chi.URLParam(r, "id"), state)
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleListShares(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shares, err := deps.Studio.ListShares(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, shares)
	}
}

func handleCreateShare(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}
		link, err := deps.Studio.CreateShare(userID(r), chi.URLParam(r, "id"), req.Title)
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusCreated, link)
	}
}

func handleListVideos(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := deps.Studio.ListVideos(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "project")
			return
		}
		if videos == nil {
			videos = []storage.Video{}
		}
		writeJSON(w, http.StatusOK, videos)
	}
}
