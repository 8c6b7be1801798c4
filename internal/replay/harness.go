package replay

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/eval"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// #region types

// ReplayConfig bundles diamond, gate, and eval configs for a replay run.
type ReplayConfig struct {
	Diamond    story.DiamondConfig
	GateConfig gate.GateConfig
	EvalConfig eval.EvalConfig
}

// DefaultReplayConfig returns the defaults for all three stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Diamond:    story.DefaultDiamondConfig(),
		GateConfig: gate.DefaultGateConfig(),
		EvalConfig: eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures one replayed run.
type ReplayResult struct {
	Run      *orchestrator.RunResult
	Attempts []synth.AttemptRecord
	Reviews  int

	WorldCalls int
	SceneCalls int
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Shape        []int
	TotalScenes  int
	TotalEndings int
	Attempts     int
	Reviews      int
	Steps        map[synth.Step]int
	Passed       bool
}

// #endregion types

// #region fixture-generator

// FixtureGenerator serves recorded outputs instead of calling a model.
// World-rule requests get the world output; scene requests get the next
// scene output, wrapping around.
type FixtureGenerator struct {
	mu     sync.Mutex
	world  map[string]any
	scenes []map[string]any
	next   int

	WorldCalls int
	SceneCalls int
}

// NewFixtureGenerator builds a generator over recorded outputs.
func NewFixtureGenerator(world map[string]any, scenes []map[string]any) *FixtureGenerator {
	return &FixtureGenerator{world: world, scenes: scenes}
}

// Generate implements synth.Generator.
func (g *FixtureGenerator) Generate(ctx context.Context, _, _ string, schema map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["possible_endings"]; ok {
		g.WorldCalls++
		if g.world == nil {
			// forces the default world after the schema retries
			return map[string]any{}, nil
		}
		return g.world, nil
	}
	if len(g.scenes) == 0 {
		return nil, fmt.Errorf("fixture has no scene outputs")
	}
	g.SceneCalls++
	out := g.scenes[g.next%len(g.scenes)]
	g.next++
	return out, nil
}

// #endregion fixture-generator

// #region fixture-critic

// FixtureCritic answers reviews from recorded critiques, wrapping around.
// With none recorded it accepts every draft.
type FixtureCritic struct {
	mu        sync.Mutex
	critiques []gate.Critique
	next      int

	Calls int
}

// NewFixtureCritic builds a critic over recorded critiques.
func NewFixtureCritic(critiques []FixtureCritique) *FixtureCritic {
	c := &FixtureCritic{}
	for _, fc := range critiques {
		c.critiques = append(c.critiques, fc.ToCritique())
	}
	return c
}

// Evaluate implements gate.Critic.
func (c *FixtureCritic) Evaluate(ctx context.Context, _ gate.ReviewInput) (gate.Critique, error) {
	if err := ctx.Err(); err != nil {
		return gate.Critique{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if len(c.critiques) == 0 {
		return gate.Critique{Verdict: gate.VerdictAccept, Scores: map[string]float64{"prose": 9, "coherence": 9}}, nil
	}
	out := c.critiques[c.next%len(c.critiques)]
	c.next++
	return out, nil
}

// #endregion fixture-critic

// #region replay

// Replay runs the real engine against the fixture's recorded outputs.
// Operates entirely in-memory.
func Replay(ctx context.Context, f *Fixture) (ReplayResult, error) {
	config := f.Config.ToReplayConfig()
	gen := NewFixtureGenerator(f.World, f.Scenes)
	critic := NewFixtureCritic(f.Critiques)

	var result ReplayResult
	s := synth.NewSynthesizer(gen, gate.NewGate(critic, config.GateConfig))
	s.OnAttempt = func(rec synth.AttemptRecord) {
		result.Attempts = append(result.Attempts, rec)
	}

	rc := orchestrator.RunnerConfig{Eval: config.EvalConfig}
	if f.Seed != 0 {
		rc.Rand = rand.New(rand.NewSource(f.Seed))
	}
	runner := orchestrator.NewRunner(gen, s, rc)

	st := story.NewGenerationState(f.Inputs, config.Diamond)
	run, err := runner.Run(ctx, st, f.Mode)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	result.Run = run
	result.Reviews = critic.Calls
	result.WorldCalls = gen.WorldCalls
	result.SceneCalls = gen.SceneCalls
	return result, nil
}

// Summarize computes aggregate stats from a replay result.
func Summarize(r ReplayResult) ReplaySummary {
	s := ReplaySummary{
		Reviews: r.Reviews,
		Steps:   make(map[synth.Step]int),
	}
	for _, a := range r.Attempts {
		s.Steps[a.Step]++
	}
	if r.Run == nil {
		return s
	}
	st := r.Run.State
	for l := range st.ScenesByLevel {
		s.Shape = append(s.Shape, len(st.Level(l)))
	}
	s.TotalScenes = st.TotalScenes()
	s.TotalEndings = st.TotalEndings()
	s.Attempts = r.Run.Attempts()
	s.Passed = r.Run.Eval.Passed
	return s
}

// Check lists every way s differs from exp. An empty list means a match.
func Check(s ReplaySummary, exp FixtureExpected) []string {
	var diffs []string
	if len(exp.Shape) > 0 && !slices.Equal(s.Shape, exp.Shape) {
		diffs = append(diffs, fmt.Sprintf("shape: expected %v, got %v", exp.Shape, s.Shape))
	}
	counters := []struct {
		name      string
		want, got int
	}{
		{"total_scenes", exp.TotalScenes, s.TotalScenes},
		{"total_endings", exp.TotalEndings, s.TotalEndings},
		{"reviews", exp.Reviews, s.Reviews},
		{"attempts", exp.Attempts, s.Attempts},
	}
	for _, c := range counters {
		if c.want != 0 && c.want != c.got {
			diffs = append(diffs, fmt.Sprintf("%s: expected %d, got %d", c.name, c.want, c.got))
		}
	}
	if exp.Passed != s.Passed {
		diffs = append(diffs, fmt.Sprintf("passed: expected %t, got %t", exp.Passed, s.Passed))
	}
	return diffs
}

// #endregion replay
