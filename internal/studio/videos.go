package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/media"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/upload"
)

// VideoPatch changes the non-nil fields of a video.
type VideoPatch struct {
	Title          *string
	CanvasPosition *canvas.Position
}

// RequestUpload validates the announced file and hands out a single-use
// upload slot for it.
func (s *Service) RequestUpload(ctx context.Context, contentType string, size int64) (upload.Slot, error) {
	res := media.ValidateVideoFile(media.FileInfo{Name: "upload", Size: size, MIMEType: contentType})
	if !res.IsValid {
		return upload.Slot{}, apperr.Validationf("%s", strings.Join(res.Errors, "; "))
	}
	key := objects.NewKey("video" + media.Extension(contentType))
	u, err := s.objects.UploadURL(ctx, key, contentType)
	if err != nil {
		return upload.Slot{}, apperr.Wrap(apperr.Storage, err, "Could not prepare the upload.")
	}
	return upload.Slot{UploadURL: u, StorageID: key}, nil
}

// CreateVideo records an uploaded video in a project. When the project asks
// for automatic transcription it is scheduled right away.
func (s *Service) CreateVideo(ctx context.Context, userID string, in upload.NewVideo) (storage.Video, error) {
	p, err := s.ownedProject(userID, in.ProjectID)
	if err != nil {
		return storage.Video{}, err
	}
	if in.StorageID != "" {
		if _, err := s.objects.Stat(ctx, in.StorageID); err != nil {
			if errors.Is(err, objects.ErrNotFound) || errors.Is(err, objects.ErrInvalidKey) {
				return storage.Video{}, apperr.Validationf("uploaded file %q not found", in.StorageID)
			}
			return storage.Video{}, fmt.Errorf("checking upload: %w", err)
		}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled video"
	}

	v, err := s.store.CreateVideo(storage.Video{
		ID:                  s.newID(),
		UserID:              userID,
		ProjectID:           p.ID,
		Title:               title,
		StorageID:           in.StorageID,
		CanvasPosition:      in.CanvasPosition,
		Metadata:            in.Metadata,
		TranscriptionStatus: storage.TranscriptionIdle,
	})
	if err != nil {
		return storage.Video{}, fmt.Errorf("creating video: %w", err)
	}
	s.refreshStats(p.ID)
	s.logger.Info("video created", "video_id", v.ID, "project_id", p.ID)

	if p.Settings.Video.AutoTranscribe && v.StorageID != "" && s.transcriber != nil {
		if err := s.transcriber.Schedule(ctx, userID, v.ID, p.Settings.Video.TranscriptionProvider); err != nil {
			s.logger.Warn("auto transcription not scheduled", "video_id", v.ID, "error", err)
		} else {
			v.TranscriptionStatus = storage.TranscriptionProcessing
		}
	}
	return v, nil
}

func (s *Service) GetVideo(userID, id string) (storage.Video, error) {
	return s.ownedVideo(userID, id)
}

func (s *Service) ListVideos(userID, projectID string) ([]storage.Video, error) {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListVideos(projectID)
}

func (s *Service) UpdateVideo(userID, id string, patch VideoPatch) (storage.Video, error) {
	v, err := s.ownedVideo(userID, id)
	if err != nil {
		return storage.Video{}, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return storage.Video{}, apperr.Validationf("video title cannot be empty")
		}
		v.Title = t
	}
	if patch.CanvasPosition != nil {
		v.CanvasPosition = *patch.CanvasPosition
	}
	if err := s.store.UpdateVideo(v); err != nil {
		return storage.Video{}, err
	}
	return s.store.GetVideo(id)
}

// UpdateVideoMetadata replaces the stored metadata, typically after a full
// probe on the client.
func (s *Service) UpdateVideoMetadata(userID, id string, md storage.VideoMetadata) (storage.Video, error) {
	if _, err := s.ownedVideo(userID, id); err != nil {
		return storage.Video{}, err
	}
	if err := s.store.UpdateVideoMetadata(id, md); err != nil {
		return storage.Video{}, err
	}
	return s.store.GetVideo(id)
}

// DeleteVideo removes the video, its agents and its uploaded file.
func (s *Service) DeleteVideo(ctx context.Context, userID, id string) error {
	v, err := s.ownedVideo(userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVideo(id); err != nil {
		return err
	}
	s.deleteBlob(ctx, v.StorageID)
	s.refreshStats(v.ProjectID)
	return nil
}

// ScheduleTranscription starts a background transcription and returns the
// video in its processing state.
func (s *Service) ScheduleTranscription(ctx context.Context, userID, id, provider string) (storage.Video, error) {
	if s.transcriber == nil {
		return storage.Video{}, apperr.New(apperr.Transcription, "Transcription is not available.")
	}
	if err := s.transcriber.Schedule(ctx, userID, id, provider); err != nil {
		return storage.Video{}, err
	}
	return s.store.GetVideo(id)
}
