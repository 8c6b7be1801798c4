package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE generation_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id     TEXT NOT NULL,
		scene_id   TEXT NOT NULL,
		attempt    INTEGER NOT NULL,
		step       TEXT NOT NULL,
		score      REAL,
		reason     TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := GenerationEntry{
		JobID:     "job1",
		SceneID:   "L0_0",
		Attempt:   2,
		Step:      "accept",
		Score:     8.5,
		Reason:    "accepted: score=8.50",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := ListEntries(db, "job1")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 row, got %d", len(entries))
	}
	got := entries[0]
	if got.SceneID != "L0_0" || got.Attempt != 2 || got.Step != "accept" || got.Score != 8.5 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at mismatch: %v", got.CreatedAt)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogDecision(db, GenerationEntry{JobID: "j", SceneID: "L1_0", Attempt: 1, Step: "rewrite"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM generation_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogDecision(db, GenerationEntry{JobID: "j", SceneID: "L1_0", Attempt: 1, Step: "schema_error", Score: -1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var score sql.NullFloat64
	var reason sql.NullString
	db.QueryRow("SELECT score, reason FROM generation_log").Scan(&score, &reason)
	if score.Valid {
		t.Error("expected NULL score for negative value")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}

	entries, _ := ListEntries(db, "j")
	if entries[0].Score != -1 {
		t.Errorf("expected -1 score on read, got %f", entries[0].Score)
	}
}

func TestStepCounts(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for _, step := range []string{"regenerate", "regenerate", "accept", "accept_unreviewed"} {
		if err := LogDecision(db, GenerationEntry{JobID: "j", SceneID: "L0_0", Attempt: 1, Step: step}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}
	LogDecision(db, GenerationEntry{JobID: "other", SceneID: "L0_0", Attempt: 1, Step: "accept"})

	counts, err := StepCounts(db, "j")
	if err != nil {
		t.Fatalf("StepCounts: %v", err)
	}
	if counts["regenerate"] != 2 || counts["accept"] != 1 || counts["accept_unreviewed"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogDecision(db, GenerationEntry{JobID: "j", SceneID: "L0_0", Step: "accept"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region null-tests
func TestNullIfEmpty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

func TestNullIfNegative(t *testing.T) {
	if result := nullIfNegative(-1); result != nil {
		t.Errorf("expected nil for negative, got %v", result)
	}
	if result := nullIfNegative(0); result != 0.0 {
		t.Errorf("expected 0, got %v", result)
	}
}

// #endregion null-tests
