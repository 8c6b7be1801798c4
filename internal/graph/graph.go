package graph

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS story_edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    story_id    TEXT NOT NULL,
    source_id   TEXT NOT NULL,
    target_id   TEXT NOT NULL,
    decisions   INTEGER NOT NULL DEFAULT 1,
    weight      REAL NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    UNIQUE(story_id, source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_story_edges_source ON story_edges(story_id, source_id);
CREATE INDEX IF NOT EXISTS idx_story_edges_target ON story_edges(story_id, target_id);
`

// #endregion schema

// #region types
// Edge is the aggregated link between two scenes of one story. Weight is
// the share of the source's decisions that lead to the target.
type Edge struct {
	ID        int64
	StoryID   string
	SourceID  string
	TargetID  string
	Decisions int
	Weight    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalkResult holds an ordered path from a graph walk.
type WalkResult struct {
	IDs    []string  // scene IDs in walk order
	Scores []float64 // chance of the walk's path at each scene when choices are uniform
}

// Contains reports whether the walk visited id.
func (w WalkResult) Contains(id string) bool {
	for _, v := range w.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// GraphStore manages the story_edges table.
type GraphStore struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// #endregion types

// #region constructor
// NewGraphStore creates tables and returns a GraphStore.
func NewGraphStore(db *sql.DB) (*GraphStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &GraphStore{db: db}, nil
}

// #endregion constructor

// #region index-story
// IndexStory records every decision of st as an edge of storyID. Existing
// edges of the story are replaced in one transaction, so a failure leaves
// the previous index intact. Returns the number of edges written.
func (g *GraphStore) IndexStory(storyID string, st *story.GenerationState) (int, error) {
	tx, err := g.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := severStory(tx, storyID); err != nil {
		return 0, err
	}
	n := 0
	for _, ids := range st.ScenesByLevel {
		for _, id := range ids {
			sc := st.Scenes[id]
			if sc == nil || len(sc.Decisions) == 0 {
				continue
			}
			share := 1.0 / float64(len(sc.Decisions))
			for _, d := range sc.Decisions {
				if d.LeadsTo == "" {
					continue
				}
				created, err := incrementEdge(tx, storyID, sc.ID, d.LeadsTo, share)
				if err != nil {
					return 0, fmt.Errorf("index %s: %w", d.ID, err)
				}
				if created {
					n++
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// #endregion index-story

// #region increment-edge
// IncrementEdge adds one decision of the given share to the edge,
// creating it if needed. Reports whether the edge was new.
func (g *GraphStore) IncrementEdge(storyID, sourceID, targetID string, share float64) (bool, error) {
	return incrementEdge(g.db, storyID, sourceID, targetID, share)
}

func incrementEdge(q querier, storyID, sourceID, targetID string, share float64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	var decisions int
	err := q.QueryRow(
		`INSERT INTO story_edges (story_id, source_id, target_id, decisions, weight, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT(story_id, source_id, target_id) DO UPDATE SET
		   decisions = story_edges.decisions + 1,
		   weight = MIN(1.0, story_edges.weight + ?),
		   updated_at = ?
		 RETURNING decisions`,
		storyID, sourceID, targetID, share, now, now,
		share, now,
	).Scan(&decisions)
	if err != nil {
		return false, err
	}
	return decisions == 1, nil
}

// #endregion increment-edge

// #region get-neighbors
// GetNeighbors returns the edges leaving sceneID, heaviest first.
func (g *GraphStore) GetNeighbors(storyID, sceneID string) ([]Edge, error) {
	return g.queryEdges(
		`SELECT id, story_id, source_id, target_id, decisions, weight, created_at, updated_at
		 FROM story_edges
		 WHERE story_id = ? AND source_id = ?
		 ORDER BY weight DESC, target_id`,
		storyID, sceneID,
	)
}

// Inbound returns the edges entering sceneID.
func (g *GraphStore) Inbound(storyID, sceneID string) ([]Edge, error) {
	return g.queryEdges(
		`SELECT id, story_id, source_id, target_id, decisions, weight, created_at, updated_at
		 FROM story_edges
		 WHERE story_id = ? AND target_id = ?
		 ORDER BY source_id`,
		storyID, sceneID,
	)
}

func (g *GraphStore) queryEdges(query string, args ...any) ([]Edge, error) {
	rows, err := g.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.StoryID, &e.SourceID, &e.TargetID, &e.Decisions, &e.Weight, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// #endregion get-neighbors

// #region walk
// Walk performs a BFS from entryID up to maxDepth hops and maxNodes total.
// Non-positive limits mean unbounded. Returns scenes in visit order.
func (g *GraphStore) Walk(storyID, entryID string, maxDepth, maxNodes int) (WalkResult, error) {
	result := WalkResult{
		IDs:    []string{entryID},
		Scores: []float64{1.0},
	}
	visited := map[string]bool{entryID: true}

	// BFS queue: (sceneID, depth, cumulativeScore)
	type queueItem struct {
		id    string
		depth int
		score float64
	}
	queue := []queueItem{{entryID, 0, 1.0}}
	full := func() bool { return maxNodes > 0 && len(result.IDs) >= maxNodes }

	for len(queue) > 0 && !full() {
		current := queue[0]
		queue = queue[1:]

		if maxDepth > 0 && current.depth >= maxDepth {
			continue
		}

		neighbors, err := g.GetNeighbors(storyID, current.id)
		if err != nil {
			return result, fmt.Errorf("walk neighbors: %w", err)
		}

		for _, edge := range neighbors {
			if full() {
				break
			}
			if visited[edge.TargetID] {
				continue
			}
			visited[edge.TargetID] = true
			cumScore := current.score * edge.Weight
			result.IDs = append(result.IDs, edge.TargetID)
			result.Scores = append(result.Scores, cumScore)
			queue = append(queue, queueItem{edge.TargetID, current.depth + 1, cumScore})
		}
	}

	return result, nil
}

// #endregion walk

// #region path-count
// PathCount returns how many distinct decision sequences lead from entryID
// to a scene with no outgoing edges.
func (g *GraphStore) PathCount(storyID, entryID string) (int, error) {
	memo := make(map[string]int)
	var count func(id string) (int, error)
	count = func(id string) (int, error) {
		if n, ok := memo[id]; ok {
			return n, nil
		}
		edges, err := g.GetNeighbors(storyID, id)
		if err != nil {
			return 0, err
		}
		if len(edges) == 0 {
			memo[id] = 1
			return 1, nil
		}
		memo[id] = 0 // cycle guard
		total := 0
		for _, e := range edges {
			n, err := count(e.TargetID)
			if err != nil {
				return 0, err
			}
			total += n * e.Decisions
		}
		memo[id] = total
		return total, nil
	}
	return count(entryID)
}

// #endregion path-count

// #region sever
// SeverStory deletes every edge of storyID.
func (g *GraphStore) SeverStory(storyID string) error {
	return severStory(g.db, storyID)
}

func severStory(q querier, storyID string) error {
	_, err := q.Exec(`DELETE FROM story_edges WHERE story_id = ?`, storyID)
	return err
}

// #endregion sever
