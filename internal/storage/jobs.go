package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Job statuses. A handler error or an interrupted run is terminal; the
// owner of the subject schedules new work instead of the queue retrying.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const jobColumns = `id, type, subject_id, payload_json, status, last_error, created_at, updated_at`

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var createdAt, updatedAt string
	if err := row.Scan(&j.ID, &j.Type, &j.SubjectID, &j.PayloadJSON, &j.Status, &j.LastError, &createdAt, &updatedAt); err != nil {
		return Job{}, err
	}
	var err error
	if j.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Job{}, err
	}
	if j.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Job{}, err
	}
	return j, nil
}

// EnqueueJob stores a pending job.
func (s *Store) EnqueueJob(job Job) error {
	if job.SubjectID == "" {
		return fmt.Errorf("job %s has no subject", job.ID)
	}
	now := formatTime(time.Now())
	_, err := s.db.Exec(`INSERT INTO jobs (id, type, subject_id, payload_json, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.SubjectID, job.PayloadJSON, JobPending, now, now)
	return err
}

// ClaimNextJob moves the oldest pending job of one of types to running and
// returns it, or nil when nothing is pending.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	args := []any{JobRunning, formatTime(time.Now()), JobPending}
	for _, t := range types {
		args = append(args, t)
	}
	query := `UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
			ORDER BY created_at ASC, rowid ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns

	j, err := scanJob(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return &j, nil
}

// CompleteJob marks a running job completed.
func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobCompleted, formatTime(time.Now()), id, JobRunning)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// FailJob marks a running job failed with errMsg.
func (s *Store) FailJob(id, errMsg string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobFailed, errMsg, formatTime(time.Now()), id, JobRunning)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// FailRunningJobs fails every job still marked running and returns them.
// Only one server owns the queue, so at startup a running job belongs to a
// process that stopped before finishing it.
func (s *Store) FailRunningJobs(errMsg string) ([]Job, error) {
	rows, err := s.db.Query(`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE status = ?
		RETURNING `+jobColumns,
		JobFailed, errMsg, formatTime(time.Now()), JobRunning)
	if err != nil {
		return nil, fmt.Errorf("failing running jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// HasOpenJob reports whether a pending or running job of jobType exists for
// subjectID.
func (s *Store) HasOpenJob(jobType, subjectID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE subject_id = ? AND type = ? AND status IN (?, ?)`,
		subjectID, jobType, JobPending, JobRunning).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// openJobSubjects is the subquery of subjects that still have work queued
// or running for one job type.
const openJobSubjects = `SELECT subject_id FROM jobs WHERE type = ? AND status IN ('pending', 'running')`

func (s *Store) updateReturningIDs(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
