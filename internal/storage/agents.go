package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const agentColumns = `id, user_id, video_id, type, draft, status, error_message, connections_json, chat_history_json,
	position_x, position_y, thumbnail_url, created_at, updated_at`

func scanAgent(row rowScanner) (Agent, error) {
	var a Agent
	var conns, history, createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.VideoID, &a.Type, &a.Draft, &a.Status, &a.ErrorMessage, &conns, &history,
		&a.CanvasPosition.X, &a.CanvasPosition.Y, &a.ThumbnailURL, &createdAt, &updatedAt); err != nil {
		return Agent{}, err
	}
	if err := json.Unmarshal([]byte(conns), &a.Connections); err != nil {
		return Agent{}, fmt.Errorf("decoding connections for agent %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(history), &a.ChatHistory); err != nil {
		return Agent{}, fmt.Errorf("decoding chat history for agent %s: %w", a.ID, err)
	}
	var err error
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Agent{}, err
	}
	if a.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Agent{}, err
	}
	return a, nil
}

func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}

func (s *Store) CreateAgent(a Agent) (Agent, error) {
	now := time.Now().UTC().Truncate(time.Second)
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Status == "" {
		a.Status = AgentIdle
	}
	if a.Connections == nil {
		a.Connections = []string{}
	}
	if a.ChatHistory == nil {
		a.ChatHistory = []ChatMessage{}
	}
	conns, err := marshalList(a.Connections)
	if err != nil {
		return Agent{}, err
	}
	history, err := marshalList(a.ChatHistory)
	if err != nil {
		return Agent{}, err
	}
	_, err = s.db.Exec(`INSERT INTO agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.VideoID, a.Type, a.Draft, a.Status, a.ErrorMessage, conns, history,
		a.CanvasPosition.X, a.CanvasPosition.Y, a.ThumbnailURL, formatTime(now), formatTime(now),
	)
	if err != nil {
		return Agent{}, err
	}
	return a, nil
}

func (s *Store) GetAgent(id string) (Agent, error) {
	a, err := scanAgent(s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Agent{}, ErrNotFound
	}
	return a, err
}

func (s *Store) ListAgentsByVideo(videoID string) ([]Agent, error) {
	return s.queryAgents(`SELECT `+agentColumns+` FROM agents WHERE video_id = ? ORDER BY created_at ASC, id ASC`, videoID)
}

// GetAgents loads the agents with the given ids. Unknown ids are skipped.
func (s *Store) GetAgents(ids []string) ([]Agent, error) {
	var out []Agent
	for _, id := range ids {
		a, err := s.GetAgent(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) queryAgents(query string, args ...any) ([]Agent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// UpdateAgent writes the user-editable fields: draft, connections and
// canvas position.
func (s *Store) UpdateAgent(a Agent) error {
	conns, err := marshalList(a.Connections)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE agents SET draft = ?, connections_json = ?, position_x = ?, position_y = ?, updated_at = ? WHERE id = ?`,
		a.Draft, conns, a.CanvasPosition.X, a.CanvasPosition.Y, formatTime(time.Now()), a.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetAgentStatus records a status and, for the error status, its message.
func (s *Store) SetAgentStatus(id, status, errMsg string) error {
	if status != AgentError {
		errMsg = ""
	}
	res, err := s.db.Exec(`UPDATE agents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// FailOrphanedGenerations moves to the error status every agent left
// generating without an open job of jobType and returns their ids. Drafts
// other than thumbnails are generated inside a request, so call this only
// before the server accepts requests.
func (s *Store) FailOrphanedGenerations(jobType, errMsg string) ([]string, error) {
	return s.updateReturningIDs(`UPDATE agents SET status = ?, error_message = ?, updated_at = ?
		WHERE status = ? AND id NOT IN (`+openJobSubjects+`)
		RETURNING id`,
		AgentError, errMsg, formatTime(time.Now()), AgentGenerating, jobType)
}

// SetAgentDraft stores a generated draft and marks the agent ready.
func (s *Store) SetAgentDraft(id, draft string) error {
	res, err := s.db.Exec(`UPDATE agents SET draft = ?, status = ?, error_message = '', updated_at = ? WHERE id = ?`,
		draft, AgentReady, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) SetAgentThumbnail(id, url string) error {
	res, err := s.db.Exec(`UPDATE agents SET thumbnail_url = ?, updated_at = ? WHERE id = ?`, url, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// AppendChatMessage adds msg to the end of the agent's chat history.
func (s *Store) AppendChatMessage(id string, msg ChatMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow(`SELECT chat_history_json FROM agents WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var history []ChatMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return fmt.Errorf("decoding chat history for agent %s: %w", id, err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	history = append(history, msg)
	encoded, err := marshalList(history)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE agents SET chat_history_json = ?, updated_at = ? WHERE id = ?`, encoded, formatTime(time.Now()), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteAgent(id string) error {
	res, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
