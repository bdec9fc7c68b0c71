package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const projectColumns = `id, user_id, title, description, settings_json, stats_json, is_public, share_id,
	tags_json, category, status, created_at, updated_at, last_opened_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	var settings, stats, tags, createdAt, updatedAt, lastOpened string
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &settings, &stats, &p.IsPublic, &p.ShareID,
		&tags, &p.Category, &p.Status, &createdAt, &updatedAt, &lastOpened); err != nil {
		return Project{}, err
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return Project{}, fmt.Errorf("decoding settings for project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(stats), &p.Stats); err != nil {
		return Project{}, fmt.Errorf("decoding stats for project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return Project{}, fmt.Errorf("decoding tags for project %s: %w", p.ID, err)
	}
	var err error
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Project{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Project{}, err
	}
	if p.LastOpenedAt, err = parseTime("last_opened_at", lastOpened); err != nil {
		return Project{}, err
	}
	return p, nil
}

func encodeProject(p Project) (settings, stats, tags string, err error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	b, err := json.Marshal(p.Settings)
	if err != nil {
		return "", "", "", err
	}
	settings = string(b)
	if b, err = json.Marshal(p.Stats); err != nil {
		return "", "", "", err
	}
	stats = string(b)
	if b, err = json.Marshal(p.Tags); err != nil {
		return "", "", "", err
	}
	tags = string(b)
	return settings, stats, tags, nil
}

// CreateProject inserts p. Zero timestamps and an empty status are filled in.
func (s *Store) CreateProject(p Project) (Project, error) {
	now := time.Now().UTC().Truncate(time.Second)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.LastOpenedAt.IsZero() {
		p.LastOpenedAt = now
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	settings, stats, tags, err := encodeProject(p)
	if err != nil {
		return Project{}, err
	}
	_, err = s.db.Exec(`INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Description, settings, stats, p.IsPublic, p.ShareID,
		tags, p.Category, p.Status, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), formatTime(p.LastOpenedAt),
	)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *Store) GetProject(id string) (Project, error) {
	p, err := scanProject(s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	return p, err
}

// ListProjects returns a user's projects, most recently updated first. An
// empty status lists every project that is not deleted.
func (s *Store) ListProjects(userID, status string) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = ?`
	args := []any{userID}
	if status == "" {
		query += ` AND status != ?`
		args = append(args, ProjectDeleted)
	} else {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC, created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// UpdateProject writes the mutable fields of p.
func (s *Store) UpdateProject(p Project) error {
	settings, stats, tags, err := encodeProject(p)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE projects SET title = ?, description = ?, settings_json = ?, stats_json = ?,
		is_public = ?, share_id = ?, tags_json = ?, category = ?, status = ?, updated_at = ?, last_opened_at = ?
		WHERE id = ?`,
		p.Title, p.Description, settings, stats, p.IsPublic, p.ShareID, tags, p.Category, p.Status,
		formatTime(time.Now()), formatTime(p.LastOpenedAt), p.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetProjectStatus moves a project between active, archived and deleted.
func (s *Store) SetProjectStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`, status, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) TouchProjectOpened(id string) error {
	res, err := s.db.Exec(`UPDATE projects SET last_opened_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// RefreshProjectStats recounts videos and agents and records activity now.
// The generation counter is preserved.
func (s *Store) RefreshProjectStats(id string) (ProjectStats, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return ProjectStats{}, err
	}
	stats := p.Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM videos WHERE project_id = ?`, id).Scan(&stats.VideoCount); err != nil {
		return ProjectStats{}, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents WHERE video_id IN (SELECT id FROM videos WHERE project_id = ?)`, id).Scan(&stats.AgentCount); err != nil {
		return ProjectStats{}, err
	}
	stats.LastActivityAt = time.Now().UTC().Truncate(time.Second)
	b, err := json.Marshal(stats)
	if err != nil {
		return ProjectStats{}, err
	}
	if _, err := s.db.Exec(`UPDATE projects SET stats_json = ? WHERE id = ?`, string(b), id); err != nil {
		return ProjectStats{}, err
	}
	return stats, nil
}

// IncrementGenerationCount bumps the project's generation counter.
func (s *Store) IncrementGenerationCount(id string) error {
	p, err := s.GetProject(id)
	if err != nil {
		return err
	}
	p.Stats.GenerationCount++
	p.Stats.LastActivityAt = time.Now().UTC().Truncate(time.Second)
	b, err := json.Marshal(p.Stats)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE projects SET stats_json = ? WHERE id = ?`, string(b), id)
	return err
}

// DeleteProject removes a project and everything hanging off it: videos,
// their agents, canvas states and shares.
func (s *Store) DeleteProject(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	stmts := []string{
		`DELETE FROM agents WHERE video_id IN (SELECT id FROM videos WHERE project_id = ?)`,
		`DELETE FROM videos WHERE project_id = ?`,
		`DELETE FROM canvas_states WHERE project_id = ?`,
		`DELETE FROM shares WHERE project_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
