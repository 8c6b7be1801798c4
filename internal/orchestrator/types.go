package orchestrator

import (
	"math/rand"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/diamond"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/eval"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/progress"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// #region runner-config

// RunnerConfig wires the optional parts of a Runner.
type RunnerConfig struct {
	// Rand drives secondary topology links. nil disables them.
	Rand *rand.Rand
	// OnProgress receives checkpoints. It must not block.
	OnProgress progress.Func
	Eval       eval.EvalConfig
}

// #endregion

// #region level-stats

// LevelStats aggregates synthesizer outcomes for one level.
type LevelStats struct {
	Level        int
	Scenes       int
	Attempts     int
	Corrections  int
	Unaccepted   int // scenes that fell back to their latest draft
	Placeholders int
	Fallbacks    int // sources the connector had to point at the first scene
}

func (s *LevelStats) add(out synth.Outcome) {
	s.Scenes++
	s.Attempts += out.Attempts
	s.Corrections += out.Corrections
	if !out.Accepted {
		s.Unaccepted++
	}
	if out.Placeholder {
		s.Placeholders++
	}
}

// #endregion

// #region run-result

// RunResult is the finished graph plus what it took to build it.
type RunResult struct {
	State   *story.GenerationState
	Mode    story.Mode
	Levels  []LevelStats
	Repairs diamond.Report
	Eval    eval.EvalResult
}

// Attempts sums generation attempts over every level.
func (r *RunResult) Attempts() int {
	n := 0
	for _, l := range r.Levels {
		n += l.Attempts
	}
	return n
}

// #endregion
