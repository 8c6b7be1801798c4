package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a generation entry to the generation_log table.
func LogDecision(db *sql.DB, entry GenerationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO generation_log (job_id, scene_id, attempt, step, score, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID,
		entry.SceneID,
		entry.Attempt,
		entry.Step,
		nullIfNegative(entry.Score),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region list-entries
// ListEntries returns every entry of a job in insertion order.
func ListEntries(db *sql.DB, jobID string) ([]GenerationEntry, error) {
	rows, err := db.Query(
		`SELECT job_id, scene_id, attempt, step, score, reason, created_at
		 FROM generation_log WHERE job_id = ? ORDER BY id`, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []GenerationEntry
	for rows.Next() {
		var e GenerationEntry
		var score sql.NullFloat64
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.JobID, &e.SceneID, &e.Attempt, &e.Step, &score, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Score = -1
		if score.Valid {
			e.Score = score.Float64
		}
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// StepCounts tallies a job's entries by step.
func StepCounts(db *sql.DB, jobID string) (map[string]int, error) {
	rows, err := db.Query(
		`SELECT step, COUNT(*) FROM generation_log WHERE job_id = ? GROUP BY step`, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("step counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var step string
		var n int
		if err := rows.Scan(&step, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[step] = n
	}
	return counts, rows.Err()
}
// #endregion list-entries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNegative(f float64) interface{} {
	if f < 0 {
		return nil
	}
	return f
}
// #endregion helpers
