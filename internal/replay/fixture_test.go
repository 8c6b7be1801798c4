package replay

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region fixture-tests

// TestFixture_DiamondDraft loads the recorded draft run, replays it and
// compares the result against the recorded expectations. If retry, gate or
// topology behaviour changes, this catches drift.
func TestFixture_DiamondDraft(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "diamond_draft.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	result, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	summary := Summarize(result)
	for _, d := range Check(summary, f.Expected) {
		t.Error(d)
	}

	if summary.Steps["regenerate"] != 4 || summary.Steps["accept"] != 4 {
		t.Errorf("unexpected review steps: %v", summary.Steps)
	}
	if summary.Steps["accept_unreviewed"] != 7 {
		t.Errorf("expected 7 unreviewed scenes, got %d", summary.Steps["accept_unreviewed"])
	}

	st := result.Run.State
	if st.Title() != "The Keeper's Map" {
		t.Errorf("title = %q", st.Title())
	}
	want := []story.EndingQuality{story.EndingGood, story.EndingBad, story.EndingSecret}
	for i, id := range st.Level(3) {
		if q := st.Scenes[id].EndingQuality; q != want[i] {
			t.Errorf("%s quality = %s, want %s", id, q, want[i])
		}
	}
}

func TestParseFixtureDefaults(t *testing.T) {
	f, err := ParseFixture([]byte(`{"scenes": [{"narrative": "x", "decisions": ["a", "b"]}]}`))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}
	if f.Mode != story.ModeDraft {
		t.Errorf("mode = %q, want draft", f.Mode)
	}
	if f.Config.Diamond != story.DefaultDiamondConfig() {
		t.Errorf("diamond config not defaulted: %+v", f.Config.Diamond)
	}
	if f.Config.GateConfig.DraftThreshold != 6.0 || f.Config.GateConfig.PolishedThreshold != 7.5 {
		t.Errorf("gate config not defaulted: %+v", f.Config.GateConfig)
	}
}

func TestParseFixtureRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad json", `{`, "unexpected"},
		{"unknown mode", `{"mode": "final", "scenes": [{"narrative": "x"}]}`, "unknown mode"},
		{"no scenes", `{"mode": "draft"}`, "no scene outputs"},
	}
	for _, tt := range tests {
		_, err := ParseFixture([]byte(tt.data))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error containing %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFixtureSaveAndLoad(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "diamond_draft.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "copy.json")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	g, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture(copy): %v", err)
	}
	if len(g.Scenes) != len(f.Scenes) || len(g.Critiques) != len(f.Critiques) || g.Seed != f.Seed {
		t.Fatalf("copy differs: %d scenes, %d critiques, seed %d", len(g.Scenes), len(g.Critiques), g.Seed)
	}
}

// TestFromStoryReplays exports a finished run as a fixture and checks the
// export regenerates the same graph.
func TestFromStoryReplays(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "diamond_draft.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	first, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	st := first.Run.State

	exported, err := FromStory(state.StoryRecord{StoryID: "s-1", Title: st.Title(), Mode: story.ModeDraft, State: st})
	if err != nil {
		t.Fatalf("FromStory: %v", err)
	}
	if len(exported.Scenes) != st.TotalScenes() {
		t.Fatalf("exported %d scenes, want %d", len(exported.Scenes), st.TotalScenes())
	}

	second, err := Replay(context.Background(), exported)
	if err != nil {
		t.Fatalf("Replay(exported): %v", err)
	}
	for _, d := range Check(Summarize(second), exported.Expected) {
		t.Error(d)
	}
	for id, sc := range st.Scenes {
		again := second.Run.State.Scenes[id]
		if again == nil || again.Content != sc.Content {
			t.Errorf("scene %s content changed on replay", id)
		}
	}
	if second.Run.State.Title() != st.Title() {
		t.Errorf("title = %q, want %q", second.Run.State.Title(), st.Title())
	}
}

func TestFromStoryRejectsEmpty(t *testing.T) {
	if _, err := FromStory(state.StoryRecord{StoryID: "s-0"}); err == nil {
		t.Fatal("expected error for a record without a graph")
	}
	empty := story.NewGenerationState(story.Inputs{}, story.DefaultDiamondConfig())
	if _, err := FromStory(state.StoryRecord{StoryID: "s-0", State: empty}); err == nil {
		t.Fatal("expected error for a graph without scenes")
	}
}

// #endregion fixture-tests
