package logging

import "time"

// #region generation-entry
// GenerationEntry is a single row in the generation_log table: one
// synthesizer attempt for one scene of one job.
type GenerationEntry struct {
	JobID     string
	SceneID   string
	Attempt   int
	Step      string  // "accept" | "rewrite" | "regenerate" | "schema_error" | ...
	Score     float64 // mean critic score, negative when no critic ran
	Reason    string
	CreatedAt time.Time
}
// #endregion generation-entry
