package studio

import (
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

// ShareLink is a share with its public URL.
type ShareLink struct {
	storage.Share
	URL string `json:"url"`
}

// ShareURL returns the public address of a share.
func (s *Service) ShareURL(shareID string) string {
	return strings.TrimRight(s.origin, "/") + "/share/" + shareID
}

func (s *Service) link(sh storage.Share) ShareLink {
	return ShareLink{Share: sh, URL: s.ShareURL(sh.ShareID)}
}

// CreateShare snapshots the project's current canvas under a new random
// share id and marks the project public.
func (s *Service) CreateShare(userID, projectID, title string) (ShareLink, error) {
	p, err := s.ownedProject(userID, projectID)
	if err != nil {
		return ShareLink{}, err
	}
	state, err := s.loadCanvas(userID, projectID)
	if err != nil {
		return ShareLink{}, fmt.Errorf("loading canvas: %w", err)
	}
	if strings.TrimSpace(title) == "" {
		title = p.Title
	}

	sh, err := s.store.CreateShare(storage.Share{
		ShareID:   s.newID(),
		ProjectID: projectID,
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		Snapshot:  state,
	})
	if err != nil {
		return ShareLink{}, fmt.Errorf("creating share: %w", err)
	}

	p.IsPublic = true
	p.ShareID = sh.ShareID
	if err := s.store.UpdateProject(p); err != nil {
		return ShareLink{}, fmt.Errorf("marking project public: %w", err)
	}
	s.logger.Info("share created", "share_id", sh.ShareID, "project_id", projectID)
	return s.link(sh), nil
}

// ListShares returns the shares of a project, newest first.
func (s *Service) ListShares(userID, projectID string) ([]ShareLink, error) {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	shares, err := s.store.ListSharesByProject(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]ShareLink, 0, len(shares))
	for _, sh := range shares {
		out = append(out, s.link(sh))
	}
	return out, nil
}

// PublicShare returns a share for anonymous viewers. Reading does not count
// as a view.
func (s *Service) PublicShare(shareID string) (ShareLink, error) {
	sh, err := s.store.GetShare(shareID)
	if err != nil {
		return ShareLink{}, err
	}
	return s.link(sh), nil
}

// RecordView adds one view to the share and returns the new count.
func (s *Service) RecordView(shareID string) (int, error) {
	return s.store.IncrementShareViews(shareID)
}

// UpdateShare re-snapshots the current canvas into an existing share. An
// empty title keeps the old one.
func (s *Service) UpdateShare(userID, shareID, title string) (ShareLink, error) {
	sh, err := s.ownedShare(userID, shareID)
	if err != nil {
		return ShareLink{}, err
	}
	state, err := s.loadCanvas(userID, sh.ProjectID)
	if err != nil {
		return ShareLink{}, fmt.Errorf("loading canvas: %w", err)
	}
	if t := strings.TrimSpace(title); t != "" {
		sh.Title = t
	}
	if err := s.store.UpdateShareSnapshot(shareID, sh.Title, state); err != nil {
		return ShareLink{}, err
	}
	sh, err = s.store.GetShare(shareID)
	if err != nil {
		return ShareLink{}, err
	}
	return s.link(sh), nil
}

// RevokeShare deletes a share. The project stays public while other shares
// remain.
func (s *Service) RevokeShare(userID, shareID string) error {
	sh, err := s.ownedShare(userID, shareID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteShare(shareID); err != nil {
		return err
	}

	p, err := s.store.GetProject(sh.ProjectID)
	if err != nil {
		return err
	}
	remaining, err := s.store.ListSharesByProject(p.ID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		p.IsPublic, p.ShareID = false, ""
	} else if p.ShareID == shareID {
		p.ShareID = remaining[0].ShareID
	} else {
		return nil
	}
	return s.store.UpdateProject(p)
}

func (s *Service) ownedShare(userID, shareID string) (storage.Share, error) {
	sh, err := s.store.GetShare(shareID)
	if err != nil {
		return storage.Share{}, err
	}
	if sh.UserID != userID {
		return storage.Share{}, errOwner
	}
	return sh, nil
}
