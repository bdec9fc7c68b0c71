// Package studio implements the persisted creator flows on top of storage:
// projects, videos, agents with generation and chat refinement, canvas
// state and public shares.
package studio

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/jobs"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/moodboard"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/transcribe"
)

// TypeGenerateThumbnail is the job type for background thumbnail renders.
const TypeGenerateThumbnail = jobs.TypeGenerateThumbnail

const imageDownloadTimeout = 30 * time.Second

// interruptedGeneration is shown on agents whose generation was lost when
// the server stopped.
const interruptedGeneration = "Generation was interrupted before it finished. Please try again."

// errOwner reports records owned by another user as missing.
var errOwner = storage.ErrNotFound

// Deps holds the collaborators of a Service. Fetcher and HTTPClient are
// optional.
type Deps struct {
	Store        *storage.Store
	Objects      objects.Store
	Generator    *generate.Generator
	Transcriber  *transcribe.Manager
	Profiles     *profile.Manager
	Fetcher      *moodboard.Fetcher
	HTTPClient   *http.Client
	PublicOrigin string
	// BatchConcurrency bounds GenerateBatch. Zero uses 3.
	BatchConcurrency int
}

type Service struct {
	store       *storage.Store
	objects     objects.Store
	gen         *generate.Generator
	transcriber *transcribe.Manager
	profiles    *profile.Manager
	fetcher     *moodboard.Fetcher
	client      *http.Client
	origin      string
	batchLimit  int
	newID       func() string
	logger      *slog.Logger
}

func New(d Deps) *Service {
	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: imageDownloadTimeout}
	}
	limit := d.BatchConcurrency
	if limit <= 0 {
		limit = 3
	}
	return &Service{
		store:       d.Store,
		objects:     d.Objects,
		gen:         d.Generator,
		transcriber: d.Transcriber,
		profiles:    d.Profiles,
		fetcher:     d.Fetcher,
		client:      client,
		origin:      d.PublicOrigin,
		batchLimit:  limit,
		newID:       uuid.NewString,
		logger:      slog.Default(),
	}
}

// RegisterJobs installs the background handlers the service depends on.
func (s *Service) RegisterJobs(w *jobs.Worker) {
	if s.transcriber != nil {
		w.Handle(jobs.TypeTranscribeVideo, s.transcriber.Handle)
	}
	w.Handle(TypeGenerateThumbnail, s.handleThumbnail)
}

// Recover repairs the state a stopped server left behind: jobs it was
// running are failed, then videos and agents still waiting on lost work are
// marked failed so they can be scheduled again. Call it before w runs and
// before requests are served.
func (s *Service) Recover(w *jobs.Worker) error {
	if _, err := w.Recover(); err != nil {
		return fmt.Errorf("recovering jobs: %w", err)
	}
	if s.transcriber != nil {
		if _, err := s.transcriber.Recover(); err != nil {
			return err
		}
	}
	ids, err := s.store.FailOrphanedGenerations(TypeGenerateThumbnail, interruptedGeneration)
	if err != nil {
		return fmt.Errorf("recovering generations: %w", err)
	}
	for _, id := range ids {
		s.logger.Warn("interrupted generation marked failed", "agent_id", id)
	}
	return nil
}

// Profiles exposes the profile manager for the profile endpoints.
func (s *Service) Profiles() *profile.Manager { return s.profiles }

// Objects exposes the blob store for upload and download endpoints.
func (s *Service) Objects() objects.Store { return s.objects }

func (s *Service) ownedProject(userID, id string) (storage.Project, error) {
	p, err := s.store.GetProject(id)
	if err != nil {
		return storage.Project{}, err
	}
	if p.UserID != userID {
		return storage.Project{}, errOwner
	}
	return p, nil
}

func (s *Service) ownedVideo(userID, id string) (storage.Video, error) {
	v, err := s.store.GetVideo(id)
	if err != nil {
		return storage.Video{}, err
	}
	if v.UserID != userID {
		return storage.Video{}, errOwner
	}
	return v, nil
}

func (s *Service) ownedAgent(userID, id string) (storage.Agent, error) {
	a, err := s.store.GetAgent(id)
	if err != nil {
		return storage.Agent{}, err
	}
	if a.UserID != userID {
		return storage.Agent{}, errOwner
	}
	return a, nil
}

func (s *Service) refreshStats(projectID string) {
	if _, err := s.store.RefreshProjectStats(projectID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("refreshing project stats failed", "project_id", projectID, "error", err)
	}
}

func (s *Service) userProfile(userID string) *profile.Profile {
	if s.profiles == nil {
		return nil
	}
	p, err := s.profiles.GetProfile(userID)
	if err != nil {
		s.logger.Warn("loading creator profile failed", "user_id", userID, "error", err)
		return nil
	}
	if p.IsEmpty() {
		return nil
	}
	return &p
}
