package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
)

// --- Canvas states ---

// SaveCanvasState overwrites the (user, project) canvas wholesale.
func (s *Store) SaveCanvasState(userID, projectID string, state canvas.State) (CanvasState, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return CanvasState{}, fmt.Errorf("encoding canvas state: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	_, err = s.db.Exec(`
		INSERT INTO canvas_states (user_id, project_id, state_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, project_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		userID, projectID, string(b), formatTime(now),
	)
	if err != nil {
		return CanvasState{}, err
	}
	return CanvasState{UserID: userID, ProjectID: projectID, State: state, UpdatedAt: now}, nil
}

func (s *Store) GetCanvasState(userID, projectID string) (CanvasState, error) {
	var raw, updatedAt string
	err := s.db.QueryRow(`SELECT state_json, updated_at FROM canvas_states WHERE user_id = ? AND project_id = ?`,
		userID, projectID).Scan(&raw, &updatedAt)
	if err == sql.ErrNoRows {
		return CanvasState{}, ErrNotFound
	}
	if err != nil {
		return CanvasState{}, err
	}
	cs := CanvasState{UserID: userID, ProjectID: projectID}
	if err := json.Unmarshal([]byte(raw), &cs.State); err != nil {
		return CanvasState{}, fmt.Errorf("decoding canvas state: %w", err)
	}
	if cs.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return CanvasState{}, err
	}
	return cs, nil
}

// --- Shares ---

const shareColumns = `share_id, project_id, user_id, title, snapshot_json, view_count, created_at, updated_at`

func scanShare(row rowScanner) (Share, error) {
	var sh Share
	var snapshot, createdAt, updatedAt string
	if err := row.Scan(&sh.ShareID, &sh.ProjectID, &sh.UserID, &sh.Title, &snapshot, &sh.ViewCount, &createdAt, &updatedAt); err != nil {
		return Share{}, err
	}
	if err := json.Unmarshal([]byte(snapshot), &sh.Snapshot); err != nil {
		return Share{}, fmt.Errorf("decoding snapshot for share %s: %w", sh.ShareID, err)
	}
	var err error
	if sh.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Share{}, err
	}
	if sh.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Share{}, err
	}
	return sh, nil
}

func (s *Store) CreateShare(sh Share) (Share, error) {
	b, err := json.Marshal(sh.Snapshot)
	if err != nil {
		return Share{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	sh.CreatedAt, sh.UpdatedAt = now, now
	sh.ViewCount = 0
	_, err = s.db.Exec(`INSERT INTO shares (`+shareColumns+`) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		sh.ShareID, sh.ProjectID, sh.UserID, sh.Title, string(b), formatTime(now), formatTime(now))
	if err != nil {
		return Share{}, err
	}
	return sh, nil
}

func (s *Store) GetShare(shareID string) (Share, error) {
	sh, err := scanShare(s.db.QueryRow(`SELECT `+shareColumns+` FROM shares WHERE share_id = ?`, shareID))
	if err == sql.ErrNoRows {
		return Share{}, ErrNotFound
	}
	return sh, err
}

func (s *Store) ListSharesByProject(projectID string) ([]Share, error) {
	rows, err := s.db.Query(`SELECT `+shareColumns+` FROM shares WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Share
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sh)
	}
	return results, rows.Err()
}

// UpdateShareSnapshot replaces a share's snapshot and title. The view
// counter is kept.
func (s *Store) UpdateShareSnapshot(shareID, title string, snapshot canvas.State) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	res, err := s.db.Exec(`UPDATE shares SET title = ?, snapshot_json = ?, updated_at = ? WHERE share_id = ?`,
		title, string(b), formatTime(time.Now()), shareID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// IncrementShareViews adds one view and returns the new count.
func (s *Store) IncrementShareViews(shareID string) (int, error) {
	var count int
	err := s.db.QueryRow(`UPDATE shares SET view_count = view_count + 1 WHERE share_id = ? RETURNING view_count`, shareID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return count, err
}

func (s *Store) DeleteShare(shareID string) error {
	res, err := s.db.Exec(`DELETE FROM shares WHERE share_id = ?`, shareID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
