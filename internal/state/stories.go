package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region save-story
// SaveStory writes the story, its scenes and decisions in one transaction
// and returns the story id.
func (s *Store) SaveStory(rec StoryRecord) (string, error) {
	st := rec.State
	if st == nil {
		return "", errors.New("save story: nil state")
	}
	if rec.StoryID == "" {
		rec.StoryID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Title == "" {
		rec.Title = st.Title()
	}

	inputsJSON, err := json.Marshal(st.Inputs)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	configJSON, err := json.Marshal(st.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	levelsJSON, err := json.Marshal(st.ScenesByLevel)
	if err != nil {
		return "", fmt.Errorf("marshal levels: %w", err)
	}
	var worldJSON any
	if st.WorldRules != nil {
		b, err := json.Marshal(st.WorldRules)
		if err != nil {
			return "", fmt.Errorf("marshal world rules: %w", err)
		}
		worldJSON = string(b)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO stories (story_id, job_id, title, genre, mode, inputs_json, config_json, world_json,
		 levels_json, total_scenes, total_endings, total_words, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StoryID, nullIfEmpty(rec.JobID), rec.Title, st.Inputs.Genre, string(rec.Mode),
		string(inputsJSON), string(configJSON), worldJSON, string(levelsJSON),
		st.TotalScenes(), st.TotalEndings(), st.TotalWords,
		nullIfEmpty(rec.MetricsJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert story: %w", err)
	}

	for _, ids := range st.ScenesByLevel {
		for _, id := range ids {
			sc := st.Scenes[id]
			if sc == nil {
				continue
			}
			if err := insertScene(tx, rec.StoryID, sc); err != nil {
				return "", err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.StoryID, nil
}

func insertScene(tx *sql.Tx, storyID string, sc *story.Scene) error {
	incomingJSON, err := json.Marshal(sc.Incoming)
	if err != nil {
		return fmt.Errorf("marshal incoming: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO scenes (story_id, scene_id, level, scene_type, content, is_ending,
		 ending_quality, ending_summary, incoming_json, word_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		storyID, sc.ID, sc.Level, string(sc.Type), sc.Content, sc.IsEnding,
		nullIfEmpty(string(sc.EndingQuality)), nullIfEmpty(sc.EndingSummary),
		string(incomingJSON), sc.WordCount,
	)
	if err != nil {
		return fmt.Errorf("insert scene %s: %w", sc.ID, err)
	}
	for _, d := range sc.Decisions {
		_, err = tx.Exec(
			`INSERT INTO decisions (story_id, decision_id, scene_id, text, consequence_hint, leads_to, display_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			storyID, d.ID, sc.ID, d.Text, nullIfEmpty(d.ConsequenceHint), d.LeadsTo, d.Order,
		)
		if err != nil {
			return fmt.Errorf("insert decision %s: %w", d.ID, err)
		}
	}
	return nil
}
// #endregion save-story

// #region load-story
// LoadStory rebuilds a saved story graph. Unknown ids return ErrStoryNotFound.
func (s *Store) LoadStory(storyID string) (StoryRecord, error) {
	var rec StoryRecord
	var jobID, worldJSON, metricsJSON sql.NullString
	var mode, inputsJSON, configJSON, levelsJSON, createdStr string
	var totalWords int

	err := s.db.QueryRow(
		`SELECT story_id, job_id, title, mode, inputs_json, config_json, world_json, levels_json,
		 total_words, metrics_json, created_at
		 FROM stories WHERE story_id = ?`, storyID,
	).Scan(&rec.StoryID, &jobID, &rec.Title, &mode, &inputsJSON, &configJSON, &worldJSON, &levelsJSON,
		&totalWords, &metricsJSON, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return StoryRecord{}, fmt.Errorf("load story %s: %w", storyID, ErrStoryNotFound)
	}
	if err != nil {
		return StoryRecord{}, fmt.Errorf("load story %s: %w", storyID, err)
	}
	rec.JobID = jobID.String
	rec.Mode = story.Mode(mode)
	rec.MetricsJSON = metricsJSON.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	var inputs story.Inputs
	var cfg story.DiamondConfig
	if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
		return StoryRecord{}, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return StoryRecord{}, fmt.Errorf("unmarshal config: %w", err)
	}
	st := story.NewGenerationState(inputs, cfg)
	if worldJSON.Valid {
		var w story.WorldRules
		if err := json.Unmarshal([]byte(worldJSON.String), &w); err != nil {
			return StoryRecord{}, fmt.Errorf("unmarshal world rules: %w", err)
		}
		st.WorldRules = &w
	}
	if err := json.Unmarshal([]byte(levelsJSON), &st.ScenesByLevel); err != nil {
		return StoryRecord{}, fmt.Errorf("unmarshal levels: %w", err)
	}

	if err := s.loadScenes(st, storyID); err != nil {
		return StoryRecord{}, err
	}
	if err := s.loadDecisions(st, storyID); err != nil {
		return StoryRecord{}, err
	}
	st.TotalWords = totalWords
	rec.State = st
	return rec, nil
}

func (s *Store) loadScenes(st *story.GenerationState, storyID string) error {
	rows, err := s.db.Query(
		`SELECT scene_id, level, scene_type, content, is_ending, ending_quality, ending_summary,
		 incoming_json, word_count
		 FROM scenes WHERE story_id = ?`, storyID,
	)
	if err != nil {
		return fmt.Errorf("load scenes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sc := &story.Scene{Decisions: []story.Decision{}}
		var sceneType string
		var quality, summary, incomingJSON sql.NullString
		if err := rows.Scan(&sc.ID, &sc.Level, &sceneType, &sc.Content, &sc.IsEnding,
			&quality, &summary, &incomingJSON, &sc.WordCount); err != nil {
			return fmt.Errorf("scan scene: %w", err)
		}
		sc.Type = story.SceneType(sceneType)
		sc.EndingQuality = story.EndingQuality(quality.String)
		sc.EndingSummary = summary.String
		if incomingJSON.Valid {
			if err := json.Unmarshal([]byte(incomingJSON.String), &sc.Incoming); err != nil {
				return fmt.Errorf("unmarshal incoming for %s: %w", sc.ID, err)
			}
		}
		st.Scenes[sc.ID] = sc
	}
	return rows.Err()
}

func (s *Store) loadDecisions(st *story.GenerationState, storyID string) error {
	rows, err := s.db.Query(
		`SELECT decision_id, scene_id, text, consequence_hint, leads_to, display_order
		 FROM decisions WHERE story_id = ? ORDER BY scene_id, display_order`, storyID,
	)
	if err != nil {
		return fmt.Errorf("load decisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d story.Decision
		var sceneID string
		var hint sql.NullString
		if err := rows.Scan(&d.ID, &sceneID, &d.Text, &hint, &d.LeadsTo, &d.Order); err != nil {
			return fmt.Errorf("scan decision: %w", err)
		}
		d.ConsequenceHint = hint.String
		sc := st.Scenes[sceneID]
		if sc == nil {
			return fmt.Errorf("decision %s references missing scene %s", d.ID, sceneID)
		}
		sc.Decisions = append(sc.Decisions, d)
	}
	return rows.Err()
}
// #endregion load-story

// #region list-stories
// ListStories returns the most recent stories, newest first. A non-positive
// limit returns all of them.
func (s *Store) ListStories(limit int) ([]StorySummary, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.Query(
		`SELECT story_id, title, genre, mode, total_scenes, total_endings, total_words, created_at
		 FROM stories ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var out []StorySummary
	for rows.Next() {
		var sum StorySummary
		var mode, createdStr string
		if err := rows.Scan(&sum.StoryID, &sum.Title, &sum.Genre, &mode,
			&sum.TotalScenes, &sum.TotalEndings, &sum.TotalWords, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.Mode = story.Mode(mode)
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, sum)
	}
	return out, rows.Err()
}
// #endregion list-stories
