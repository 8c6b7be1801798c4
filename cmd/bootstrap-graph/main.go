package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/config"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/graph"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	storyID := flag.String("story", "", "reindex one story (default: all)")
	flag.Parse()

	fmt.Println("=== Edge Index Bootstrap ===")
	fmt.Printf("  DB: %s\n", *dbPath)

	store, err := state.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	graphStore, err := graph.NewGraphStore(store.DB())
	if err != nil {
		log.Fatalf("failed to init graph store: %v", err)
	}

	ids := []string{*storyID}
	if *storyID == "" {
		stories, err := store.ListStories(0)
		if err != nil {
			log.Fatalf("list stories: %v", err)
		}
		ids = ids[:0]
		for _, s := range stories {
			ids = append(ids, s.StoryID)
		}
	}
	if len(ids) == 0 {
		fmt.Println("No stories to index. Done.")
		return
	}

	var edges, failed int
	for _, id := range ids {
		n, err := reindex(store, graphStore, id)
		if err != nil {
			log.Printf("story %s: %v", id, err)
			failed++
			continue
		}
		edges += n
		fmt.Printf("  %s: %d edges\n", id, n)
	}

	fmt.Printf("\nIndexed %d stories (%d edges), %d failed.\n", len(ids)-failed, edges, failed)
}

// #endregion main

// #region reindex
// reindex rebuilds the edge rows of one story and checks every ending is
// still reachable from the intro.
func reindex(store *state.Store, graphStore *graph.GraphStore, storyID string) (int, error) {
	rec, err := store.LoadStory(storyID)
	if err != nil {
		return 0, err
	}
	n, err := graphStore.IndexStory(storyID, rec.State)
	if err != nil {
		return 0, err
	}

	st := rec.State
	intro := st.Level(0)
	if len(intro) == 0 {
		return n, nil
	}
	walk, err := graphStore.Walk(storyID, intro[0], 0, 0)
	if err != nil {
		return n, err
	}
	for _, id := range st.Level(len(st.ScenesByLevel) - 1) {
		if !walk.Contains(id) {
			log.Printf("story %s: ending %s unreachable from %s", storyID, id, intro[0])
		}
	}
	return n, nil
}

// #endregion reindex
