package studio

import (
	"context"
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/refine"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

// ChatResult is the outcome of one refinement turn.
type ChatResult struct {
	Agent   storage.Agent `json:"agent"`
	Reply   string        `json:"reply"`
	Updated bool          `json:"updated"`
}

// Chat applies a free-text instruction to the agent's draft. The user
// message is stored before the draft changes and the model's reply after.
func (s *Service) Chat(ctx context.Context, userID, agentID, message string) (ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatResult{}, apperr.Validationf("message is required")
	}
	a, err := s.ownedAgent(userID, agentID)
	if err != nil {
		return ChatResult{}, err
	}
	v, err := s.store.GetVideo(a.VideoID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("loading video: %w", err)
	}

	history := a.ChatHistory
	if err := s.store.AppendChatMessage(a.ID, storage.ChatMessage{Role: "user", Message: message}); err != nil {
		return ChatResult{}, fmt.Errorf("saving message: %w", err)
	}

	t := generate.AgentType(a.Type)
	reply, err := s.gen.Chat(ctx, refine.BuildMessages(refine.Input{
		AgentType:     t,
		CurrentDraft:  a.Draft,
		History:       history,
		Transcription: v.Transcription,
		Message:       message,
	}), refine.Params)
	if err != nil {
		return ChatResult{}, fmt.Errorf("refining %s: %w", a.Type, err)
	}

	draft := refine.ExtractUpdatedDraft(reply, t, a.Draft)
	updated := draft != a.Draft
	if updated {
		if err := s.store.SetAgentDraft(a.ID, draft); err != nil {
			return ChatResult{}, fmt.Errorf("saving draft: %w", err)
		}
	}
	if err := s.store.AppendChatMessage(a.ID, storage.ChatMessage{Role: "ai", Message: reply}); err != nil {
		return ChatResult{}, fmt.Errorf("saving reply: %w", err)
	}

	a, err = s.store.GetAgent(a.ID)
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{Agent: a, Reply: reply, Updated: updated}, nil
}

// Generate runs a stateless generation. The stored creator profile is used
// when the request carries none, and mood board links are resolved.
func (s *Service) Generate(ctx context.Context, userID string, req generate.Request) (generate.Response, error) {
	s.enrich(ctx, userID, &req)
	return s.gen.Generate(ctx, req)
}

// GenerateBatch runs several stateless generations with bounded
// concurrency and per-item results.
func (s *Service) GenerateBatch(ctx context.Context, userID string, reqs []generate.Request) generate.BatchSummary {
	for i := range reqs {
		s.enrich(ctx, userID, &reqs[i])
	}
	return s.gen.GenerateMultiple(ctx, reqs, s.batchLimit)
}

func (s *Service) enrich(ctx context.Context, userID string, req *generate.Request) {
	if req.Profile == nil {
		req.Profile = s.userProfile(userID)
	}
	if len(req.MoodboardReferences) > 0 && s.fetcher != nil {
		req.MoodboardReferences = s.fetcher.Resolve(ctx, req.MoodboardReferences)
	}
}
