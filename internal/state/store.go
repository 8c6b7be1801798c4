package state

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id        TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	progress      INTEGER NOT NULL DEFAULT 0,
	message       TEXT,
	input_json    TEXT NOT NULL,
	story_id      TEXT,
	error         TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stories (
	story_id        TEXT PRIMARY KEY,
	job_id          TEXT,
	title           TEXT NOT NULL,
	genre           TEXT NOT NULL,
	mode            TEXT NOT NULL,
	inputs_json     TEXT NOT NULL,
	config_json     TEXT NOT NULL,
	world_json      TEXT,
	levels_json     TEXT NOT NULL,
	total_scenes    INTEGER NOT NULL,
	total_endings   INTEGER NOT NULL,
	total_words     INTEGER NOT NULL,
	metrics_json    TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scenes (
	story_id        TEXT NOT NULL,
	scene_id        TEXT NOT NULL,
	level           INTEGER NOT NULL,
	scene_type      TEXT NOT NULL,
	content         TEXT NOT NULL,
	is_ending       INTEGER NOT NULL DEFAULT 0,
	ending_quality  TEXT,
	ending_summary  TEXT,
	incoming_json   TEXT,
	word_count      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (story_id, scene_id),
	FOREIGN KEY (story_id) REFERENCES stories(story_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS decisions (
	story_id         TEXT NOT NULL,
	decision_id      TEXT NOT NULL,
	scene_id         TEXT NOT NULL,
	text             TEXT NOT NULL,
	consequence_hint TEXT,
	leads_to         TEXT NOT NULL,
	display_order    INTEGER NOT NULL,
	PRIMARY KEY (story_id, decision_id),
	FOREIGN KEY (story_id, scene_id) REFERENCES scenes(story_id, scene_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS generation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id        TEXT NOT NULL,
	scene_id      TEXT NOT NULL,
	attempt       INTEGER NOT NULL,
	step          TEXT NOT NULL,
	score         REAL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_generation_log_job ON generation_log(job_id, scene_id);
`
// #endregion schema

// #region store-struct
// Store persists jobs and completed stories in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// storePragmas are applied by the driver to every pooled connection, so
// concurrent jobs wait on each other instead of failing with SQLITE_BUSY.
// Write transactions take the lock up front to avoid lock-upgrade deadlocks.
const storePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", filepath.Clean(dbPath)+storePragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		db.Close()
		return nil, fmt.Errorf("pragma fk: foreign keys not enabled (%d, %v)", fk, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging, graph).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor
