package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/diamond"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/eval"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/progress"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// #region runner-struct

// Runner is the run controller: world rules, every level in order, then
// path validation and a structural check.
type Runner struct {
	gen      synth.Generator
	synth    *synth.Synthesizer
	harness  *eval.GraphHarness
	config   RunnerConfig
	progress progress.Func
}

// #endregion

// #region constructor

// NewRunner wires a runner. gen produces world rules; s produces scenes.
func NewRunner(gen synth.Generator, s *synth.Synthesizer, config RunnerConfig) *Runner {
	report := config.OnProgress
	if report == nil {
		report = progress.Nop
	}
	return &Runner{
		gen:      gen,
		synth:    s,
		harness:  eval.NewGraphHarness(config.Eval),
		config:   config,
		progress: report,
	}
}

// #endregion

// #region run

// Run builds the whole graph into st. st must be fresh: inputs and config
// set, no scenes. World rules already present are kept. The only errors
// are an invalid config, a cancelled context and generator transport
// failure; in every error case st must be discarded.
func (r *Runner) Run(ctx context.Context, st *story.GenerationState, mode story.Mode) (*RunResult, error) {
	if st == nil {
		return nil, errors.New("run: nil state")
	}
	if err := st.Config.Validate(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	if len(st.Scenes) > 0 {
		return nil, fmt.Errorf("run: state already holds %d scenes", len(st.Scenes))
	}
	if mode == "" {
		mode = story.ModeDraft
	}

	log.Printf("[RUN] start: genre=%q mode=%s shape=%v", st.Inputs.Genre, mode, diamond.Shape(st.Config))

	if st.WorldRules == nil {
		w, err := synth.GenerateWorldRules(ctx, r.gen, st)
		if err != nil {
			return nil, fmt.Errorf("run: %w", err)
		}
		st.WorldRules = &w
	}
	r.progress(10, "World rules ready")

	result := &RunResult{State: st, Mode: mode}
	levels := st.Config.MaxLevels
	for level := 0; level < levels; level++ {
		stats, err := r.BuildLevel(ctx, st, level, mode)
		if err != nil {
			return nil, fmt.Errorf("run: level %d: %w", level, err)
		}
		result.Levels = append(result.Levels, stats)
		r.progress(progress.LevelPercent(level, levels), fmt.Sprintf("Level %d of %d complete", level+1, levels))
	}

	result.Repairs = diamond.ValidatePaths(st)
	r.progress(95, "Paths validated")

	result.Eval = r.harness.Run(st)
	if !result.Eval.Passed {
		log.Printf("[RUN] structural check: %s", result.Eval.Reason)
	}

	log.Printf("[RUN] done: title=%q scenes=%d endings=%d words=%d attempts=%d repairs=%d",
		st.Title(), st.TotalScenes(), st.TotalEndings(), st.TotalWords, result.Attempts(), len(result.Repairs.Repairs))
	r.progress(100, "Story complete")
	return result, nil
}

// #endregion
