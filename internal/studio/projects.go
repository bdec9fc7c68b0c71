package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

type ProjectInput struct {
	Title       string
	Description string
	Tags        []string
	Category    string
	// Settings defaults to storage.DefaultProjectSettings.
	Settings *storage.ProjectSettings
}

// ProjectPatch changes the non-nil fields of a project.
type ProjectPatch struct {
	Title       *string
	Description *string
	Tags        *[]string
	Category    *string
	Settings    *storage.ProjectSettings
}

func (s *Service) CreateProject(userID string, in ProjectInput) (storage.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return storage.Project{}, apperr.Validationf("project title is required")
	}
	settings := storage.DefaultProjectSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	p, err := s.store.CreateProject(storage.Project{
		ID:          s.newID(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Settings:    settings,
		Tags:        cleanTags(in.Tags),
		Category:    in.Category,
	})
	if err != nil {
		return storage.Project{}, fmt.Errorf("creating project: %w", err)
	}
	s.logger.Info("project created", "project_id", p.ID, "user_id", userID)
	return p, nil
}

// ListProjects lists the user's projects with the given status. An empty
// status lists everything not deleted.
func (s *Service) ListProjects(userID, status string) ([]storage.Project, error) {
	switch status {
	case "", storage.ProjectActive, storage.ProjectArchived, storage.ProjectDeleted:
	default:
		return nil, apperr.Validationf("unknown project status %q", status)
	}
	return s.store.ListProjects(userID, status)
}

func (s *Service) GetProject(userID, id string) (storage.Project, error) {
	return s.ownedProject(userID, id)
}

// OpenProject returns the project and records that it was opened.
func (s *Service) OpenProject(userID, id string) (storage.Project, error) {
	if _, err := s.ownedProject(userID, id); err != nil {
		return storage.Project{}, err
	}
	if err := s.store.TouchProjectOpened(id); err != nil {
		return storage.Project{}, err
	}
	return s.store.GetProject(id)
}

func (s *Service) UpdateProject(userID, id string, patch ProjectPatch) (storage.Project, error) {
	p, err := s.ownedProject(userID, id)
	if err != nil {
		return storage.Project{}, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return storage.Project{}, apperr.Validationf("project title cannot be empty")
		}
		p.Title = t
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Tags != nil {
		p.Tags = cleanTags(*patch.Tags)
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Settings != nil {
		p.Settings = *patch.Settings
	}
	if err := s.store.UpdateProject(p); err != nil {
		return storage.Project{}, fmt.Errorf("updating project: %w", err)
	}
	return s.store.GetProject(id)
}

func (s *Service) ArchiveProject(userID, id string) (storage.Project, error) {
	return s.setProjectStatus(userID, id, storage.ProjectArchived)
}

// RestoreProject makes an archived or soft deleted project active again.
func (s *Service) RestoreProject(userID, id string) (storage.Project, error) {
	return s.setProjectStatus(userID, id, storage.ProjectActive)
}

func (s *Service) setProjectStatus(userID, id, status string) (storage.Project, error) {
	if _, err := s.ownedProject(userID, id); err != nil {
		return storage.Project{}, err
	}
	if err := s.store.SetProjectStatus(id, status); err != nil {
		return storage.Project{}, err
	}
	return s.store.GetProject(id)
}

// DeleteProject soft deletes a project, or removes it with its videos,
// agents, canvas and shares when hard is set. Uploaded files of a hard
// deleted project are removed best-effort.
func (s *Service) DeleteProject(ctx context.Context, userID, id string, hard bool) error {
	if _, err := s.ownedProject(userID, id); err != nil {
		return err
	}
	if !hard {
		return s.store.SetProjectStatus(id, storage.ProjectDeleted)
	}

	videos, err := s.store.ListVideos(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	for _, v := range videos {
		s.deleteBlob(ctx, v.StorageID)
	}
	s.logger.Info("project deleted", "project_id", id, "videos", len(videos))
	return nil
}

// ProjectStats recounts the project's videos and agents.
func (s *Service) ProjectStats(userID, id string) (storage.ProjectStats, error) {
	if _, err := s.ownedProject(userID, id); err != nil {
		return storage.ProjectStats{}, err
	}
	return s.store.RefreshProjectStats(id)
}

// GetCanvas returns the saved canvas of a project, or an empty one.
func (s *Service) GetCanvas(userID, projectID string) (canvas.State, error) {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return canvas.State{}, err
	}
	return s.loadCanvas(userID, projectID)
}

func (s *Service) loadCanvas(userID, projectID string) (canvas.State, error) {
	cs, err := s.store.GetCanvasState(userID, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return canvas.State{Nodes: []canvas.Node{}, Edges: []canvas.Edge{}, Viewport: canvas.DefaultViewport}, nil
	}
	if err != nil {
		return canvas.State{}, err
	}
	return cs.State, nil
}

// SaveCanvas overwrites the project's canvas. Concurrent saves are
// last-writer-wins.
func (s *Service) SaveCanvas(userID, projectID string, state canvas.State) (storage.CanvasState, error) {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return storage.CanvasState{}, err
	}
	// Normalizes typeless nodes and a zero viewport.
	state = canvas.FromState(state).Snapshot()
	return s.store.SaveCanvasState(userID, projectID, state)
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if key == "" || s.objects == nil {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("deleting object failed", "key", key, "error", err)
	}
}

func cleanTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
