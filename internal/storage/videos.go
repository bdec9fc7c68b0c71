package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const videoColumns = `id, user_id, project_id, title, storage_id, position_x, position_y, metadata_json,
	transcription, transcription_status, transcription_error, created_at, updated_at`

func scanVideo(row rowScanner) (Video, error) {
	var v Video
	var metadata, createdAt, updatedAt string
	if err := row.Scan(&v.ID, &v.UserID, &v.ProjectID, &v.Title, &v.StorageID, &v.CanvasPosition.X, &v.CanvasPosition.Y,
		&metadata, &v.Transcription, &v.TranscriptionStatus, &v.TranscriptionError, &createdAt, &updatedAt); err != nil {
		return Video{}, err
	}
	if err := json.Unmarshal([]byte(metadata), &v.Metadata); err != nil {
		return Video{}, fmt.Errorf("decoding metadata for video %s: %w", v.ID, err)
	}
	var err error
	if v.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Video{}, err
	}
	if v.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Video{}, err
	}
	return v, nil
}

// CreateVideo inserts v with transcription status idle unless set.
func (s *Store) CreateVideo(v Video) (Video, error) {
	now := time.Now().UTC().Truncate(time.Second)
	v.CreatedAt, v.UpdatedAt = now, now
	if v.TranscriptionStatus == "" {
		v.TranscriptionStatus = TranscriptionIdle
	}
	md, err := json.Marshal(v.Metadata)
	if err != nil {
		return Video{}, err
	}
	_, err = s.db.Exec(`INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.ProjectID, v.Title, v.StorageID, v.CanvasPosition.X, v.CanvasPosition.Y, string(md),
		v.Transcription, v.TranscriptionStatus, v.TranscriptionError, formatTime(now), formatTime(now),
	)
	if err != nil {
		return Video{}, err
	}
	return v, nil
}

func (s *Store) GetVideo(id string) (Video, error) {
	v, err := scanVideo(s.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Video{}, ErrNotFound
	}
	return v, err
}

func (s *Store) ListVideos(projectID string) ([]Video, error) {
	rows, err := s.db.Query(`SELECT `+videoColumns+` FROM videos WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// UpdateVideo writes title, storage reference and canvas position.
func (s *Store) UpdateVideo(v Video) error {
	res, err := s.db.Exec(`UPDATE videos SET title = ?, storage_id = ?, position_x = ?, position_y = ?, updated_at = ? WHERE id = ?`,
		v.Title, v.StorageID, v.CanvasPosition.X, v.CanvasPosition.Y, formatTime(time.Now()), v.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) UpdateVideoMetadata(id string, md VideoMetadata) error {
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE videos SET metadata_json = ?, updated_at = ? WHERE id = ?`, string(b), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetTranscriptionStatus records a status change and its error message. The
// message is cleared for every status other than failed.
func (s *Store) SetTranscriptionStatus(id, status, errMsg string) error {
	if status != TranscriptionFailed {
		errMsg = ""
	}
	res, err := s.db.Exec(`UPDATE videos SET transcription_status = ?, transcription_error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// FailOrphanedTranscriptions marks failed every video left processing
// without an open job of jobType and returns their ids.
func (s *Store) FailOrphanedTranscriptions(jobType, errMsg string) ([]string, error) {
	return s.updateReturningIDs(`UPDATE videos SET transcription_status = ?, transcription_error = ?, updated_at = ?
		WHERE transcription_status = ? AND id NOT IN (`+openJobSubjects+`)
		RETURNING id`,
		TranscriptionFailed, errMsg, formatTime(time.Now()), TranscriptionProcessing, jobType)
}

// SaveTranscription stores transcript text and marks the video completed.
func (s *Store) SaveTranscription(id, text string) error {
	res, err := s.db.Exec(`UPDATE videos SET transcription = ?, transcription_status = ?, transcription_error = '', updated_at = ? WHERE id = ?`,
		text, TranscriptionCompleted, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteVideo removes a video and its agents.
func (s *Store) DeleteVideo(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM agents WHERE video_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
