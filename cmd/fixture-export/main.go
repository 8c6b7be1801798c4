package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/logging"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/replay"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to storyforge.db")
	storyID := flag.String("story", "", "story to export (default: most recent)")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--story id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *storyID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, storyID, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if storyID == "" {
		latest, err := store.ListStories(1)
		if err != nil {
			return fmt.Errorf("list stories: %w", err)
		}
		if len(latest) == 0 {
			return fmt.Errorf("no stories found")
		}
		storyID = latest[0].StoryID
	}

	rec, err := store.LoadStory(storyID)
	if err != nil {
		return fmt.Errorf("load story %s: %w", storyID, err)
	}
	fixture, err := replay.FromStory(rec)
	if err != nil {
		return err
	}

	// The recorded run's retries are informational only.
	if steps, err := logging.StepCounts(store.DB(), rec.JobID); err == nil && len(steps) > 0 {
		fixture.Description += fmt.Sprintf("; original run steps: %v", steps)
	}

	if err := fixture.Save(outPath); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s (%d scenes, shape %v)\n", outPath, len(fixture.Scenes), fixture.Expected.Shape)
	return nil
}

// #endregion extract
