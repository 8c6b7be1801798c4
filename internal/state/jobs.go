package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region create-job
// CreateJob stores a queued job and returns it.
func (s *Store) CreateJob(input JobInput) (JobRecord, error) {
	now := time.Now().UTC()
	rec := JobRecord{
		JobID:     uuid.New().String(),
		Status:    JobQueued,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return JobRecord{}, fmt.Errorf("marshal job input: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO jobs (job_id, status, progress, input_json, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)`,
		rec.JobID, string(rec.Status), string(inputJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return JobRecord{}, fmt.Errorf("insert job: %w", err)
	}
	return rec, nil
}
// #endregion create-job

// #region get-job
// GetJob reads one job. Unknown ids return ErrJobNotFound.
func (s *Store) GetJob(jobID string) (JobRecord, error) {
	row := s.db.QueryRow(
		`SELECT job_id, status, progress, message, input_json, story_id, error, created_at, updated_at
		 FROM jobs WHERE job_id = ?`, jobID,
	)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, fmt.Errorf("get job %s: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return rec, nil
}
// #endregion get-job

// #region list-jobs
// ListJobs returns the most recent jobs. A non-positive limit returns all.
func (s *Store) ListJobs(limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.Query(
		`SELECT job_id, status, progress, message, input_json, story_id, error, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-jobs

// #region transitions
// MarkRunning moves a queued job to running.
func (s *Store) MarkRunning(jobID string) error {
	return s.transition(jobID, JobQueued, JobRunning, `progress = 0, message = 'Starting'`)
}

// UpdateProgress records a progress checkpoint on a running job.
func (s *Store) UpdateProgress(jobID string, percent int, message string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET progress = ?, message = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
		percent, message, time.Now().UTC().Format(time.RFC3339Nano), jobID, string(JobRunning),
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks a running job completed with its saved story.
func (s *Store) CompleteJob(jobID, storyID string) error {
	return s.transition(jobID, JobRunning, JobCompleted,
		`progress = 100, message = 'Story complete', story_id = ?`, storyID)
}

// FailJob marks a queued or running job failed.
func (s *Store) FailJob(jobID, reason string) error {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE job_id = ? AND status IN (?, ?)`,
		string(JobFailed), reason, time.Now().UTC().Format(time.RFC3339Nano),
		jobID, string(JobQueued), string(JobRunning),
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return s.checkAffected(res, jobID)
}

func (s *Store) transition(jobID string, from, to JobStatus, set string, args ...any) error {
	query := `UPDATE jobs SET status = ?, updated_at = ?, ` + set + ` WHERE job_id = ? AND status = ?`
	params := []any{string(to), time.Now().UTC().Format(time.RFC3339Nano)}
	params = append(params, args...)
	params = append(params, jobID, string(from))

	res, err := s.db.Exec(query, params...)
	if err != nil {
		return fmt.Errorf("job %s -> %s: %w", jobID, to, err)
	}
	return s.checkAffected(res, jobID)
}

func (s *Store) checkAffected(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	cur, err := s.GetJob(jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s", jobID, cur.Status)
}
// #endregion transitions

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (JobRecord, error) {
	var rec JobRecord
	var status, inputJSON, createdStr, updatedStr string
	var message, storyID, errText sql.NullString

	if err := sc.Scan(&rec.JobID, &status, &rec.Progress, &message, &inputJSON,
		&storyID, &errText, &createdStr, &updatedStr); err != nil {
		return JobRecord{}, err
	}
	rec.Status = JobStatus(status)
	rec.Message = message.String
	rec.StoryID = storyID.String
	rec.Error = errText.String
	if err := json.Unmarshal([]byte(inputJSON), &rec.Input); err != nil {
		return JobRecord{}, fmt.Errorf("unmarshal job input: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
