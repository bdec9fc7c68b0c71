package studio

import (
	"context"
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

type AgentInput struct {
	Type           generate.AgentType
	CanvasPosition canvas.Position
	Connections    []string
}

// AgentPatch changes the non-nil fields of an agent.
type AgentPatch struct {
	Draft          *string
	Connections    *[]string
	CanvasPosition *canvas.Position
}

func (s *Service) CreateAgent(userID, videoID string, in AgentInput) (storage.Agent, error) {
	if !in.Type.Valid() {
		return storage.Agent{}, apperr.Validationf("unknown agent type %q", in.Type)
	}
	v, err := s.ownedVideo(userID, videoID)
	if err != nil {
		return storage.Agent{}, err
	}
	a, err := s.store.CreateAgent(storage.Agent{
		ID:             s.newID(),
		UserID:         userID,
		VideoID:        v.ID,
		Type:           string(in.Type),
		Status:         storage.AgentIdle,
		Connections:    in.Connections,
		CanvasPosition: in.CanvasPosition,
	})
	if err != nil {
		return storage.Agent{}, fmt.Errorf("creating agent: %w", err)
	}
	s.refreshStats(v.ProjectID)
	return a, nil
}

func (s *Service) GetAgent(userID, id string) (storage.Agent, error) {
	return s.ownedAgent(userID, id)
}

func (s *Service) ListAgents(userID, videoID string) ([]storage.Agent, error) {
	if _, err := s.ownedVideo(userID, videoID); err != nil {
		return nil, err
	}
	return s.store.ListAgentsByVideo(videoID)
}

func (s *Service) UpdateAgent(userID, id string, patch AgentPatch) (storage.Agent, error) {
	a, err := s.ownedAgent(userID, id)
	if err != nil {
		return storage.Agent{}, err
	}
	if patch.Draft != nil {
		a.Draft = *patch.Draft
	}
	if patch.Connections != nil {
		a.Connections = *patch.Connections
	}
	if patch.CanvasPosition != nil {
		a.CanvasPosition = *patch.CanvasPosition
	}
	if err := s.store.UpdateAgent(a); err != nil {
		return storage.Agent{}, err
	}
	return s.store.GetAgent(id)
}

func (s *Service) DeleteAgent(userID, id string) error {
	a, err := s.ownedAgent(userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAgent(id); err != nil {
		return err
	}
	if v, err := s.store.GetVideo(a.VideoID); err == nil {
		s.refreshStats(v.ProjectID)
	}
	return nil
}

// GenerateAgent produces a draft for the agent from its video, its
// connected nodes and the creator profile. The agent moves to generating,
// then to ready with the draft or to error with a message. Thumbnails are
// rendered by a background job and the agent is returned still generating.
func (s *Service) GenerateAgent(ctx context.Context, userID, id string, frames []generate.Frame) (storage.Agent, error) {
	a, err := s.ownedAgent(userID, id)
	if err != nil {
		return storage.Agent{}, err
	}
	if a.Status == storage.AgentGenerating {
		return storage.Agent{}, apperr.Validationf("generation already in progress")
	}
	v, err := s.store.GetVideo(a.VideoID)
	if err != nil {
		return storage.Agent{}, fmt.Errorf("loading video: %w", err)
	}

	req, err := s.buildRequest(ctx, userID, a, v)
	if err != nil {
		return storage.Agent{}, err
	}
	req.VideoFrames = frames
	if err := generate.Validate(req).Err(); err != nil {
		return storage.Agent{}, err
	}

	if err := s.store.SetAgentStatus(a.ID, storage.AgentGenerating, ""); err != nil {
		return storage.Agent{}, err
	}

	if req.AgentType == generate.Thumbnail {
		if err := s.enqueueThumbnail(a, v, req); err != nil {
			s.failAgent(a.ID, err)
			return storage.Agent{}, err
		}
		return s.store.GetAgent(a.ID)
	}

	resp, err := s.gen.Generate(ctx, req)
	if err != nil {
		s.failAgent(a.ID, err)
		return storage.Agent{}, err
	}
	if err := s.store.SetAgentDraft(a.ID, resp.Content); err != nil {
		return storage.Agent{}, err
	}
	s.countGeneration(v.ProjectID)
	s.logger.Info("agent draft generated", "agent_id", a.ID, "type", a.Type)
	return s.store.GetAgent(a.ID)
}

// buildRequest gathers the generation context of an agent. Connections may
// name canvas nodes or agents directly; ids that resolve to nothing are
// skipped.
func (s *Service) buildRequest(ctx context.Context, userID string, a storage.Agent, v storage.Video) (generate.Request, error) {
	req := generate.Request{
		AgentType: generate.AgentType(a.Type),
		VideoData: generate.VideoData{
			Title:         v.Title,
			Transcription: v.Transcription,
			Duration:      v.Metadata.Duration,
			Resolution:    resolution(v.Metadata),
		},
		Profile: s.userProfile(userID),
	}

	state, err := s.loadCanvas(userID, v.ProjectID)
	if err != nil {
		return generate.Request{}, fmt.Errorf("loading canvas: %w", err)
	}
	graph := canvas.FromState(state)

	var agentIDs []string
	var refs []canvas.Reference
	for _, id := range a.Connections {
		n, ok := graph.Node(id)
		if !ok {
			agentIDs = append(agentIDs, id)
			continue
		}
		switch d := n.Data.(type) {
		case *canvas.AgentData:
			agentIDs = append(agentIDs, d.AgentID)
		case *canvas.TranscriptionData:
			if strings.TrimSpace(d.Text) != "" {
				req.VideoData.ManualTranscriptions = append(req.VideoData.ManualTranscriptions,
					generate.ManualTranscription{Title: d.Title, Text: d.Text})
			}
		case *canvas.MoodboardData:
			refs = append(refs, d.References...)
		}
	}

	connected, err := s.store.GetAgents(agentIDs)
	if err != nil {
		return generate.Request{}, fmt.Errorf("loading connected agents: %w", err)
	}
	for _, c := range connected {
		if c.ID == a.ID || c.UserID != userID || strings.TrimSpace(c.Draft) == "" {
			continue
		}
		req.ConnectedOutputs = append(req.ConnectedOutputs, generate.ConnectedOutput{
			Type:    generate.AgentType(c.Type),
			Content: c.Draft,
		})
	}

	if len(refs) > 0 && s.fetcher != nil {
		refs = s.fetcher.Resolve(ctx, refs)
	}
	req.MoodboardReferences = refs
	return req, nil
}

func (s *Service) failAgent(id string, cause error) {
	s.logger.Warn("agent generation failed", "agent_id", id, "error", cause)
	if err := s.store.SetAgentStatus(id, storage.AgentError, apperr.UserMessage(cause)); err != nil {
		s.logger.Error("failed to record agent failure", "agent_id", id, "error", err)
	}
}

func (s *Service) countGeneration(projectID string) {
	if err := s.store.IncrementGenerationCount(projectID); err != nil {
		s.logger.Warn("counting generation failed", "project_id", projectID, "error", err)
	}
}

func resolution(md storage.VideoMetadata) string {
	if md.Width <= 0 || md.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", md.Width, md.Height)
}
