package replay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// helper: a fixture whose outputs fit every scene type.
func minimalFixture(mode story.Mode) *Fixture {
	return &Fixture{
		Inputs: story.Inputs{Genre: "mystery", Premise: "A locked greenhouse"},
		Mode:   mode,
		Config: FixtureConfig{
			Diamond:    story.DefaultDiamondConfig(),
			GateConfig: FixtureGateConfig{DraftThreshold: 6, PolishedThreshold: 7.5},
		},
		World: map[string]any{
			"setting":    "A glass estate",
			"characters": []any{map[string]any{"name": "Vera"}, map[string]any{"name": "Hal"}},
			"rules":      []any{"Glass holds heat", "Doors lock at dusk", "Plants remember"},
			"possible_endings": []any{
				map[string]any{"quality": "good", "summary": "Solved."},
				map[string]any{"quality": "bad", "summary": "Buried."},
			},
		},
		Scenes: []map[string]any{{
			"narrative":      "Condensation runs down the panes.",
			"decisions":      []any{"Open the vent", "Check the soil", "Call Hal"},
			"ending_summary": "The glass clears.",
		}},
	}
}

// 1. Recorded outputs wrap around once exhausted.
func TestFixtureGenerator_WrapsAround(t *testing.T) {
	gen := NewFixtureGenerator(nil, []map[string]any{{"narrative": "a"}, {"narrative": "b"}})
	schema := synth.SceneSchema(true, 2)
	var got []string
	for i := 0; i < 3; i++ {
		out, err := gen.Generate(context.Background(), "", "", schema)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		got = append(got, out["narrative"].(string))
	}
	if strings.Join(got, "") != "aba" {
		t.Fatalf("expected a, b, a; got %v", got)
	}
	if gen.SceneCalls != 3 || gen.WorldCalls != 0 {
		t.Errorf("calls: scene=%d world=%d", gen.SceneCalls, gen.WorldCalls)
	}
}

// 2. A world-rule schema is answered with the world output.
func TestFixtureGenerator_World(t *testing.T) {
	world := map[string]any{"setting": "here"}
	gen := NewFixtureGenerator(world, []map[string]any{{"narrative": "a"}})
	out, err := gen.Generate(context.Background(), "", "", synth.WorldRulesSchema(story.DefaultDiamondConfig()))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out["setting"] != "here" || gen.WorldCalls != 1 {
		t.Fatalf("unexpected world answer %v (calls=%d)", out, gen.WorldCalls)
	}
}

// 3. No scene outputs is a transport failure.
func TestFixtureGenerator_Empty(t *testing.T) {
	gen := NewFixtureGenerator(nil, nil)
	if _, err := gen.Generate(context.Background(), "", "", synth.SceneSchema(false, 2)); err == nil {
		t.Fatal("expected error with no scene outputs")
	}
}

// 4. The critic accepts everything when nothing is recorded.
func TestFixtureCritic_DefaultAccept(t *testing.T) {
	c := NewFixtureCritic(nil)
	crit, err := c.Evaluate(context.Background(), gate.ReviewInput{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if crit.Verdict != gate.VerdictAccept || gate.MeanScore(crit.Scores) < 7.5 {
		t.Fatalf("expected high-scoring accept, got %+v", crit)
	}
	if c.Calls != 1 {
		t.Errorf("calls = %d", c.Calls)
	}
}

// 5. Recorded critiques are served in order.
func TestFixtureCritic_Cycles(t *testing.T) {
	c := NewFixtureCritic([]FixtureCritique{
		{Verdict: "REWRITE", Instructions: "shorter"},
		{Verdict: "ACCEPT", Scores: map[string]float64{"prose": 8}},
	})
	want := []gate.Verdict{gate.VerdictRewrite, gate.VerdictAccept, gate.VerdictRewrite}
	for i, w := range want {
		crit, _ := c.Evaluate(context.Background(), gate.ReviewInput{})
		if crit.Verdict != w {
			t.Errorf("call %d: verdict %s, want %s", i, crit.Verdict, w)
		}
	}
}

// 6. Polished mode sends every scene through the critic.
func TestReplay_PolishedReviewsEveryScene(t *testing.T) {
	result, err := Replay(context.Background(), minimalFixture(story.ModePolished))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	s := Summarize(result)
	if s.Reviews != 11 || s.Attempts != 11 {
		t.Fatalf("expected 11 reviews and 11 attempts, got %d and %d", s.Reviews, s.Attempts)
	}
	if s.Steps[synth.StepAccept] != 11 {
		t.Errorf("steps = %v", s.Steps)
	}
	if !s.Passed {
		t.Errorf("structural check failed: %s", result.Run.Eval.Reason)
	}
}

// 7. Draft mode only reviews the intro and the endings.
func TestReplay_DraftReviewsIntroAndEndings(t *testing.T) {
	result, err := Replay(context.Background(), minimalFixture(story.ModeDraft))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	s := Summarize(result)
	if s.Reviews != 4 {
		t.Fatalf("expected 4 reviews, got %d", s.Reviews)
	}
	if s.Steps[synth.StepUnreviewed] != 7 {
		t.Errorf("expected 7 unreviewed scenes, got %v", s.Steps)
	}
}

// 8. A missing world output falls back to the default world.
func TestReplay_DefaultWorld(t *testing.T) {
	f := minimalFixture(story.ModeDraft)
	f.World = nil
	result, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.WorldCalls != synth.MaxAttempts {
		t.Errorf("expected %d world attempts, got %d", synth.MaxAttempts, result.WorldCalls)
	}
	if got := result.Run.State.Title(); got != story.DefaultTitle(f.Inputs) {
		t.Errorf("title = %q", got)
	}
}

// 9. Low scores below the threshold turn an accept into a rewrite.
func TestReplay_DowngradedAccept(t *testing.T) {
	f := minimalFixture(story.ModeDraft)
	f.Critiques = []FixtureCritique{
		{Verdict: "ACCEPT", Scores: map[string]float64{"prose": 4}},
		{Verdict: "ACCEPT", Scores: map[string]float64{"prose": 9}},
	}
	result, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	s := Summarize(result)
	if s.Steps[synth.StepRewrite] != 4 || s.Steps[synth.StepAccept] != 4 {
		t.Fatalf("steps = %v", s.Steps)
	}
	if s.Attempts != 15 {
		t.Errorf("attempts = %d, want 15", s.Attempts)
	}
}

// 10. A cancelled context aborts the replay.
func TestReplay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Replay(ctx, minimalFixture(story.ModeDraft))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// 11. Check reports every mismatch and ignores zero counters.
func TestCheck(t *testing.T) {
	s := ReplaySummary{Shape: []int{1, 2, 2}, TotalScenes: 5, TotalEndings: 2, Reviews: 3, Attempts: 6, Passed: true}
	if d := Check(s, FixtureExpected{Passed: true}); len(d) != 0 {
		t.Fatalf("expected no diffs, got %v", d)
	}
	d := Check(s, FixtureExpected{Shape: []int{1, 3, 2}, TotalScenes: 6, Reviews: 3, Passed: false})
	if len(d) != 3 {
		t.Fatalf("expected 3 diffs, got %v", d)
	}
	if !strings.HasPrefix(d[0], "shape") || !strings.HasPrefix(d[1], "total_scenes") || !strings.HasPrefix(d[2], "passed") {
		t.Errorf("unexpected diffs: %v", d)
	}
}

// 12. Summarize tolerates a result without a run.
func TestSummarize_NoRun(t *testing.T) {
	s := Summarize(ReplayResult{Attempts: []synth.AttemptRecord{{Step: synth.StepTransportError}}})
	if s.Steps[synth.StepTransportError] != 1 || s.TotalScenes != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
