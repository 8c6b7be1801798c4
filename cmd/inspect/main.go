package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/graph"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/logging"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to storyforge.db")
	last := flag.Int("last", 20, "show N most recent stories or jobs")
	storyID := flag.String("story", "", "show single story detail")
	sceneID := flag.String("scene", "", "with --story, show one scene")
	jobsMode := flag.Bool("jobs", false, "list jobs instead of stories")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/storyforge.db [--last N] [--jobs] [--story id [--scene id]] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *storyID != "" && *sceneID != "":
		err = runSceneMode(store, *storyID, *sceneID, *jsonOut)
	case *storyID != "":
		err = runDetailMode(store, *storyID, *jsonOut)
	case *jobsMode:
		err = runJobsMode(store, *last, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *state.Store, last int, jsonOut bool) error {
	stories, err := store.ListStories(last)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		fmt.Fprintln(os.Stderr, "no stories found")
		return nil
	}
	if jsonOut {
		return printJSON(stories)
	}

	fmt.Printf("%-12s  %-28s  %-10s  %-8s  %6s  %7s  %6s  %s\n",
		"Story", "Title", "Genre", "Mode", "Scenes", "Endings", "Words", "Time")
	fmt.Printf("%-12s+-%-28s+-%-10s+-%-8s+-%6s+-%7s+-%6s+-%s\n",
		"------------", "----------------------------", "----------", "--------", "------", "-------", "------", "--------------------")
	for _, s := range stories {
		fmt.Printf("%-12s  %-28s  %-10s  %-8s  %6d  %7d  %6d  %s\n",
			shortID(s.StoryID), truncate(s.Title, 28), truncate(s.Genre, 10), s.Mode,
			s.TotalScenes, s.TotalEndings, s.TotalWords, s.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func runJobsMode(store *state.Store, last int, jsonOut bool) error {
	jobs, err := store.ListJobs(last)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(os.Stderr, "no jobs found")
		return nil
	}
	if jsonOut {
		return printJSON(jobs)
	}

	fmt.Printf("%-12s  %-10s  %4s  %-12s  %s\n", "Job", "Status", "Pct", "Story", "Message")
	fmt.Printf("%-12s+-%-10s+-%4s+-%-12s+-%s\n", "------------", "----------", "----", "------------", "--------------------")
	for _, j := range jobs {
		msg := j.Message
		if j.Status == state.JobFailed {
			msg = j.Error
		}
		fmt.Printf("%-12s  %-10s  %4d  %-12s  %s\n", shortID(j.JobID), j.Status, j.Progress, shortID(j.StoryID), msg)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type levelRow struct {
	Level   int `json:"level"`
	Scenes  int `json:"scenes"`
	Endings int `json:"endings"`
	Words   int `json:"words"`
}

type endingRow struct {
	SceneID string              `json:"scene_id"`
	Quality story.EndingQuality `json:"quality"`
	Summary string              `json:"summary"`
	Reached bool                `json:"reached"`
}

type detailOutput struct {
	StoryID   string          `json:"story_id"`
	JobID     string          `json:"job_id"`
	Title     string          `json:"title"`
	Mode      story.Mode      `json:"mode"`
	CreatedAt string          `json:"created_at"`
	Inputs    story.Inputs    `json:"inputs"`
	Scenes    int             `json:"scenes"`
	Words     int             `json:"words"`
	Levels    []levelRow      `json:"levels"`
	Endings   []endingRow     `json:"endings"`
	Reachable int             `json:"reachable"`
	Paths     int             `json:"paths"`
	Steps     map[string]int  `json:"steps"`
	Metrics   json.RawMessage `json:"metrics,omitempty"`
}

func runDetailMode(store *state.Store, storyID string, jsonOut bool) error {
	rec, err := store.LoadStory(storyID)
	if err != nil {
		return err
	}
	st := rec.State

	out := detailOutput{
		StoryID:   rec.StoryID,
		JobID:     rec.JobID,
		Title:     rec.Title,
		Mode:      rec.Mode,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Inputs:    st.Inputs,
		Scenes:    st.TotalScenes(),
		Words:     st.TotalWords,
	}
	if rec.MetricsJSON != "" {
		out.Metrics = json.RawMessage(rec.MetricsJSON)
	}

	for l := range st.ScenesByLevel {
		row := levelRow{Level: l}
		for _, id := range st.Level(l) {
			sc := st.Scenes[id]
			row.Scenes++
			row.Words += sc.WordCount
			if sc.IsEnding {
				row.Endings++
			}
		}
		out.Levels = append(out.Levels, row)
	}

	// Reachability over the indexed edges
	gs, err := graph.NewGraphStore(store.DB())
	if err != nil {
		return err
	}
	if intro := st.Level(0); len(intro) > 0 {
		walk, err := gs.Walk(rec.StoryID, intro[0], 0, 0)
		if err != nil {
			return err
		}
		out.Reachable = len(walk.IDs)
		if out.Paths, err = gs.PathCount(rec.StoryID, intro[0]); err != nil {
			return err
		}
		for _, id := range st.Level(len(st.ScenesByLevel) - 1) {
			sc := st.Scenes[id]
			out.Endings = append(out.Endings, endingRow{
				SceneID: id,
				Quality: sc.EndingQuality,
				Summary: sc.EndingSummary,
				Reached: walk.Contains(id),
			})
		}
	}

	if out.Steps, err = logging.StepCounts(store.DB(), rec.JobID); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Story:     %s\n", out.StoryID)
	fmt.Printf("Job:       %s\n", out.JobID)
	fmt.Printf("Title:     %s\n", out.Title)
	fmt.Printf("Mode:      %s\n", out.Mode)
	fmt.Printf("Created:   %s\n", out.CreatedAt)
	fmt.Printf("Genre:     %s (%s)\n", out.Inputs.Genre, out.Inputs.Tone)
	fmt.Printf("Scenes:    %d (%d reachable, %d paths)\n", out.Scenes, out.Reachable, out.Paths)
	fmt.Printf("Words:     %d\n", out.Words)

	fmt.Printf("\n%-6s  %6s  %7s  %6s\n", "Level", "Scenes", "Endings", "Words")
	fmt.Printf("%-6s+-%6s+-%7s+-%6s\n", "------", "------", "-------", "------")
	for _, r := range out.Levels {
		fmt.Printf("%-6d  %6d  %7d  %6d\n", r.Level, r.Scenes, r.Endings, r.Words)
	}

	if len(out.Endings) > 0 {
		fmt.Printf("\nEndings:\n")
		for _, e := range out.Endings {
			reached := "reached"
			if !e.Reached {
				reached = "UNREACHED"
			}
			fmt.Printf("  %-8s %-8s %-9s %s\n", e.SceneID, e.Quality, reached, e.Summary)
		}
	}

	if len(out.Steps) > 0 {
		fmt.Printf("\nGeneration steps:\n")
		names := make([]string, 0, len(out.Steps))
		for name := range out.Steps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-18s %d\n", name, out.Steps[name])
		}
	}
	return nil
}

// #endregion detail-mode

// #region scene-mode

func runSceneMode(store *state.Store, storyID, sceneID string, jsonOut bool) error {
	rec, err := store.LoadStory(storyID)
	if err != nil {
		return err
	}
	sc, ok := rec.State.Scenes[sceneID]
	if !ok {
		return fmt.Errorf("scene %s not in story %s", sceneID, storyID)
	}
	if jsonOut {
		return printJSON(sc)
	}

	fmt.Printf("Scene:     %s (%s, level %d)\n", sc.ID, sc.Type, sc.Level)
	fmt.Printf("Incoming:  %v\n", sc.Incoming)
	fmt.Printf("Words:     %d\n\n", sc.WordCount)
	fmt.Println(sc.Content)
	if sc.IsEnding {
		fmt.Printf("\nEnding (%s): %s\n", sc.EndingQuality, sc.EndingSummary)
		return nil
	}
	fmt.Printf("\nDecisions:\n")
	for _, d := range sc.Decisions {
		fmt.Printf("  %d. %s -> %s\n", d.Order, d.Text, d.LeadsTo)
	}
	return nil
}

// #endregion scene-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// #endregion output
