package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/jobs"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

const maxImageSize = 20 << 20 // 20MB

type thumbnailJob struct {
	AgentID   string           `json:"agent_id"`
	ProjectID string           `json:"project_id"`
	Request   generate.Request `json:"request"`
}

func (s *Service) enqueueThumbnail(a storage.Agent, v storage.Video, req generate.Request) error {
	jobID, err := jobs.Enqueue(s.store, TypeGenerateThumbnail, a.ID, thumbnailJob{
		AgentID:   a.ID,
		ProjectID: v.ProjectID,
		Request:   req,
	})
	if err != nil {
		return err
	}
	s.logger.Info("thumbnail scheduled", "agent_id", a.ID, "job_id", jobID)
	return nil
}

// handleThumbnail renders the thumbnail, copies the image into object
// storage and stores the concept as the agent's draft.
func (s *Service) handleThumbnail(ctx context.Context, raw json.RawMessage) error {
	var p thumbnailJob
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if err := s.renderThumbnail(ctx, p); err != nil {
		s.failAgent(p.AgentID, err)
		return err
	}
	return nil
}

func (s *Service) renderThumbnail(ctx context.Context, p thumbnailJob) error {
	resp, err := s.gen.Generate(ctx, p.Request)
	if err != nil {
		return err
	}
	url, err := s.storeImage(ctx, resp.ImageURL)
	if err != nil {
		return err
	}
	if err := s.store.SetAgentThumbnail(p.AgentID, url); err != nil {
		return fmt.Errorf("saving thumbnail url: %w", err)
	}
	if err := s.store.SetAgentDraft(p.AgentID, resp.Concept); err != nil {
		return fmt.Errorf("saving thumbnail concept: %w", err)
	}
	s.countGeneration(p.ProjectID)
	s.logger.Info("thumbnail generated", "agent_id", p.AgentID)
	return nil
}

// storeImage downloads a generated image, which the image API only keeps
// for a short time, and returns the URL it is served from.
func (s *Service) storeImage(ctx context.Context, src string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, imageDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("creating image request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Network, err, "Could not download the generated image.")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.New(apperr.AIGeneration, fmt.Sprintf("Could not download the generated image (HTTP %d).", resp.StatusCode))
	}

	ct := resp.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(ct)
	if !strings.HasPrefix(mt, "image/") {
		mt = "image/png"
	}
	key := objects.NewKey("thumbnail" + imageExt(mt))
	size := resp.ContentLength
	if size > maxImageSize {
		return "", apperr.New(apperr.AIGeneration, "The generated image is too large.")
	}
	if err := s.objects.Put(ctx, key, io.LimitReader(resp.Body, maxImageSize), size, mt); err != nil {
		return "", apperr.Wrap(apperr.Storage, err, "Could not store the generated image.")
	}
	return s.BlobURL(key), nil
}

// BlobURL is the stable public URL of an object, served by the API.
func (s *Service) BlobURL(key string) string {
	return strings.TrimRight(s.origin, "/") + "/blobs/" + key
}

func imageExt(mt string) string {
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}
