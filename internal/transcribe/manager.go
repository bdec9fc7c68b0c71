package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/jobs"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/media"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

// VideoStore is the subset of storage the manager needs.
type VideoStore interface {
	GetVideo(id string) (storage.Video, error)
	SetTranscriptionStatus(id, status, errMsg string) error
	SaveTranscription(id, text string) error
	FailOrphanedTranscriptions(jobType, errMsg string) ([]string, error)
}

// interruptedMessage is shown on videos whose transcription was lost when
// the server stopped.
const interruptedMessage = "Transcription was interrupted before it finished. Please try again."

// Manager schedules transcription jobs and executes them on the worker.
type Manager struct {
	videos          VideoStore
	queue           jobs.Store
	objects         objects.Store
	providers       map[string]Provider
	defaultProvider string
	logger          *slog.Logger
}

// NewManager creates a Manager. defaultProvider names the provider used
// when Schedule is called without one.
func NewManager(videos VideoStore, queue jobs.Store, objs objects.Store, defaultProvider string, providers ...Provider) *Manager {
	m := &Manager{
		videos:          videos,
		queue:           queue,
		objects:         objs,
		providers:       make(map[string]Provider, len(providers)),
		defaultProvider: defaultProvider,
		logger:          slog.Default(),
	}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	return m
}

type jobPayload struct {
	VideoID  string `json:"video_id"`
	Provider string `json:"provider"`
}

// Schedule flips the video to processing and enqueues a single-attempt job.
// Failed transcriptions are not retried; callers schedule again. A video
// that is processing without a queued or running job may be rescheduled.
func (m *Manager) Schedule(ctx context.Context, userID, videoID, provider string) error {
	v, err := m.videos.GetVideo(videoID)
	if err != nil {
		return err
	}
	if v.UserID != userID {
		return storage.ErrNotFound
	}
	if v.StorageID == "" {
		return apperr.Validationf("video %s has no uploaded file", videoID)
	}
	if v.TranscriptionStatus == storage.TranscriptionProcessing {
		open, err := m.queue.HasOpenJob(jobs.TypeTranscribeVideo, videoID)
		if err != nil {
			return fmt.Errorf("checking transcription job: %w", err)
		}
		if open {
			return apperr.Validationf("transcription already in progress")
		}
	}
	if provider == "" {
		provider = m.defaultProvider
	}
	if _, ok := m.providers[provider]; !ok {
		return apperr.Validationf("unknown transcription provider %q", provider)
	}

	if err := m.videos.SetTranscriptionStatus(videoID, storage.TranscriptionProcessing, ""); err != nil {
		return fmt.Errorf("marking video processing: %w", err)
	}
	jobID, err := jobs.Enqueue(m.queue, jobs.TypeTranscribeVideo, videoID, jobPayload{VideoID: videoID, Provider: provider})
	if err != nil {
		m.fail(videoID, err)
		return err
	}
	m.logger.Info("transcription scheduled", "video_id", videoID, "provider", provider, "job_id", jobID)
	return nil
}

// Recover marks failed the videos whose transcription job was lost and
// returns their ids. Run it after jobs.Worker.Recover and before serving.
func (m *Manager) Recover() ([]string, error) {
	ids, err := m.videos.FailOrphanedTranscriptions(jobs.TypeTranscribeVideo, interruptedMessage)
	if err != nil {
		return nil, fmt.Errorf("recovering transcriptions: %w", err)
	}
	for _, id := range ids {
		m.logger.Warn("interrupted transcription marked failed", "video_id", id)
	}
	return ids, nil
}

// Handle is the jobs.Handler for transcription jobs.
func (m *Manager) Handle(ctx context.Context, raw json.RawMessage) error {
	var p jobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if err := m.run(ctx, p); err != nil {
		m.fail(p.VideoID, err)
		return err
	}
	return nil
}

func (m *Manager) run(ctx context.Context, p jobPayload) error {
	provider, ok := m.providers[p.Provider]
	if !ok {
		return apperr.New(apperr.Transcription, fmt.Sprintf("Transcription provider %q is not available.", p.Provider))
	}
	v, err := m.videos.GetVideo(p.VideoID)
	if err != nil {
		return fmt.Errorf("loading video %s: %w", p.VideoID, err)
	}

	info, err := m.objects.Stat(ctx, v.StorageID)
	if err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			return apperr.New(apperr.Storage, "The uploaded video file no longer exists.")
		}
		return apperr.Wrap(apperr.Storage, err, "Could not read the uploaded video.")
	}

	res, err := provider.Transcribe(ctx, Media{
		Name:        v.Title + media.Extension(info.ContentType),
		ContentType: info.ContentType,
		Size:        info.Size,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return m.objects.Open(ctx, v.StorageID)
		},
		URL: func(ctx context.Context) (string, error) {
			return m.objects.URL(ctx, v.StorageID)
		},
	})
	if err != nil {
		return err
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return ErrNoSpeech
	}
	if err := m.videos.SaveTranscription(p.VideoID, text); err != nil {
		return fmt.Errorf("saving transcription: %w", err)
	}
	m.logger.Info("transcription completed", "video_id", p.VideoID, "provider", p.Provider, "chars", len(text))
	return nil
}

func (m *Manager) fail(videoID string, cause error) {
	msg := FailureMessage(cause)
	m.logger.Warn("transcription failed", "video_id", videoID, "error", cause)
	if err := m.videos.SetTranscriptionStatus(videoID, storage.TranscriptionFailed, msg); err != nil {
		m.logger.Error("failed to record transcription failure", "video_id", videoID, "error", err)
	}
}
