package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/replay"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to storyforge.db (DB mode)")
	storyID := flag.String("story", "", "story to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	dbMode := *dbPath != "" && *storyID != ""
	if dbMode == (*fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/storyforge.db --story id")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var (
		f   *replay.Fixture
		err error
	)
	if dbMode {
		f, err = fixtureFromDB(*dbPath, *storyID)
	} else {
		f, err = replay.LoadFixture(*fixturePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(f))
}

// #endregion main

// #region db-extract

func fixtureFromDB(dbPath, storyID string) (*replay.Fixture, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	rec, err := store.LoadStory(storyID)
	if err != nil {
		return nil, err
	}
	return replay.FromStory(rec)
}

// #endregion db-extract

// #region output

func run(f *replay.Fixture) int {
	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}
	result, err := replay.Replay(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(replay.Summarize(result), f.Expected)
}

// printComparison outputs a comparison table and returns the exit code.
// Zero expected counters are shown but not compared.
func printComparison(s replay.ReplaySummary, exp replay.FixtureExpected) int {
	fmt.Printf("%-14s| %-15s| %-15s| %s\n", "Check", "Expected", "Replayed", "Match")
	fmt.Printf("%-14s+%-15s+%-15s+%s\n",
		"--------------", "----------------", "----------------", "------")

	row := func(name, want, got string, ok bool) {
		match := "DIFF"
		if ok {
			match = "OK"
		}
		fmt.Printf("%-14s| %-15s| %-15s| %s\n", name, want, got, match)
	}
	counter := func(name string, want, got int) {
		row(name, fmt.Sprint(want), fmt.Sprint(got), want == 0 || want == got)
	}

	row("shape", fmt.Sprint(exp.Shape), fmt.Sprint(s.Shape), len(exp.Shape) == 0 || slices.Equal(exp.Shape, s.Shape))
	counter("total_scenes", exp.TotalScenes, s.TotalScenes)
	counter("total_endings", exp.TotalEndings, s.TotalEndings)
	counter("reviews", exp.Reviews, s.Reviews)
	counter("attempts", exp.Attempts, s.Attempts)
	row("passed", fmt.Sprint(exp.Passed), fmt.Sprint(s.Passed), exp.Passed == s.Passed)

	steps := make([]string, 0, len(s.Steps))
	for step := range s.Steps {
		steps = append(steps, string(step))
	}
	sort.Strings(steps)
	fmt.Printf("\nSteps:\n")
	for _, step := range steps {
		fmt.Printf("  %-18s %d\n", step, s.Steps[synth.Step(step)])
	}

	diffs := replay.Check(s, exp)
	fmt.Printf("\nSummary: %d diverge\n", len(diffs))
	if len(diffs) > 0 {
		return 1
	}
	return 0
}

// #endregion output
