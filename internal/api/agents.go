package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
)

const maxGenerateBodySize = 16 << 20 // frames arrive as data URLs

type createAgentRequest struct {
	Type           string          `json:"type" validate:"required,oneof=title description thumbnail tweets blog linkedin"`
	CanvasPosition canvas.Position `json:"canvasPosition"`
	Connections    []string        `json:"connections" validate:"max=50"`
}

type updateAgentRequest struct {
	Draft          *string          `json:"draft" validate:"omitempty,max=20000"`
	Connections    *[]string        `json:"connections" validate:"omitempty,max=50"`
	CanvasPosition *canvas.Position `json:"canvasPosition"`
}

type generateAgentRequest struct {
	VideoFrames []generate.Frame `json:"videoFrames" validate:"max=10,dive"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type generateRequest struct {
	generate.Request
	AgentType string `json:"agentType" validate:"required,oneof=title description thumbnail tweets blog linkedin"`
}

type batchRequest struct {
	Requests []generateRequest `json:"requests" validate:"required,min=1,max=20,dive"`
}

func handleCreateAgent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAgentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		a, err := deps.Studio.CreateAgent(userID(r), chi.URLParam(r, "id"), studio.AgentInput{
			Type:           generate.AgentType(req.Type),
			CanvasPosition: req.CanvasPosition,
			Connections:    req.Connections,
		})
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func handleListAgents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agents, err := deps.Studio.ListAgents(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}
		if agents == nil {
			agents = []storage.Agent{}
		}
		writeJSON(w, http.StatusOK, agents)
	}
}

func handleGetAgent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := deps.Studio.GetAgent(userID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "agent")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleUpdateAgent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateAgentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		a, err := deps.Studio.UpdateAgent(userID(r), chi.URLParam(r, "id"), studio.AgentPatch{
			Draft:          req.Draft,
			Connections:    req.Connections,
			CanvasPosition: req.CanvasPosition,
		})
		if err != nil {
			writeServiceError(w, err, "agent")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleDeleteAgent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Studio.DeleteAgent(userID(r), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err, "agent")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleGenerateAgent answers 200 with the ready agent for text types and
// 202 with the generating agent for thumbnails, which render in the
// background.
func handleGenerateAgent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateAgentRequest
		if !decode(w, r, &req, maxGenerateBodySize, true) {
			return
		}
		a, err := deps.Studio.GenerateAgent(r.Context(), userID(r), chi.URLParam(r, "id"), req.VideoFrames)
		if err != nil {
			writeServiceError(w, err, "agent")
			return
		}
		code := http.StatusOK
		if a.Status == storage.AgentGenerating {
			code = http.StatusAccepted
		}
		writeJSON(w, code, a)
	}
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := deps.Studio.Chat(r.Context(), userID(r), chi.URLParam(r, "id"), req.Message)
		if err != nil {
			writeServiceError(w, err, "agent")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGenerate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if !decode(w, r, &req, maxGenerateBodySize, false) {
			return
		}
		resp, err := deps.Studio.Generate(r.Context(), userID(r), req.request())
		if err != nil {
			writeServiceError(w, err, "generation")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleGenerateBatch reports per-item results; a failed item never fails
// the request.
func handleGenerateBatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if !decode(w, r, &req, maxGenerateBodySize, false) {
			return
		}
		reqs := make([]generate.Request, len(req.Requests))
		for i, item := range req.Requests {
			reqs[i] = item.request()
		}
		writeJSON(w, http.StatusOK, deps.Studio.GenerateBatch(r.Context(), userID(r), reqs))
	}
}

func (g generateRequest) request() generate.Request {
	req := g.Request
	req.AgentType = generate.AgentType(g.AgentType)
	return req
}
