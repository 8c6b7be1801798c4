package eval

import (
	"fmt"
	"slices"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/diamond"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region graph-harness
// GraphHarness checks a finished story graph. It never mutates the state.
type GraphHarness struct {
	config EvalConfig
}

// NewGraphHarness creates a harness with the given configuration.
func NewGraphHarness(config EvalConfig) *GraphHarness {
	return &GraphHarness{config: config}
}

// Run measures shape, closure, ending placement and reachability.
func (h *GraphHarness) Run(st *story.GenerationState) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Scene count against the computed shape
	want := diamond.TotalScenes(st.Config)
	got := st.TotalScenes()
	check("scene_count", float64(got), got == want,
		fmt.Sprintf("scene count %d, shape expects %d", got, want))

	// 2. Per-level counts
	shape := diamond.Shape(st.Config)
	match := len(shape) == len(st.ScenesByLevel)
	for l := 0; match && l < len(shape); l++ {
		match = len(st.ScenesByLevel[l]) == shape[l]
	}
	check("shape_match", boolValue(match), match, "level counts differ from shape")

	// 3. Decisions that point at nothing in the next level
	dangling := danglingRefs(st)
	check("dangling_refs", float64(dangling), dangling <= h.config.MaxDanglingRefs,
		fmt.Sprintf("%d dangling decisions", dangling))

	// 4. Endings outside the last level, or last-level scenes that are not endings
	misplaced := misplacedEndings(st)
	check("misplaced_endings", float64(misplaced), misplaced == 0,
		fmt.Sprintf("%d misplaced endings", misplaced))

	// 5. Non-ending scenes with no way forward
	dead := deadEnds(st)
	check("dead_ends", float64(dead), dead == 0, fmt.Sprintf("%d dead ends", dead))

	// 6. Reachability from the intro: informational unless configured as blocking
	unreached := len(st.Scenes) - len(Reachable(st))
	unreachedPass := unreached <= h.config.MaxUnreachable
	metrics = append(metrics, EvalMetric{Name: "unreachable_scenes", Value: float64(unreached), Pass: unreachedPass})
	if !unreachedPass && h.config.UnreachableBlocking {
		failReasons = append(failReasons, fmt.Sprintf("%d unreachable scenes", unreached))
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion graph-harness

// #region reachability
// Reachable returns the set of scene ids reachable from the level-0 scenes
// by following LeadsTo.
func Reachable(st *story.GenerationState) map[string]bool {
	seen := make(map[string]bool)
	queue := slices.Clone(st.Level(0))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		sc := st.Scenes[id]
		if sc == nil {
			continue
		}
		seen[id] = true
		for _, d := range sc.Decisions {
			if d.LeadsTo != "" && !seen[d.LeadsTo] {
				queue = append(queue, d.LeadsTo)
			}
		}
	}
	return seen
}

// #endregion reachability

// #region helpers
func danglingRefs(st *story.GenerationState) int {
	n := 0
	for level, ids := range st.ScenesByLevel {
		next := st.Level(level + 1)
		for _, id := range ids {
			sc := st.Scenes[id]
			if sc == nil {
				continue
			}
			for _, d := range sc.Decisions {
				if _, ok := st.Scenes[d.LeadsTo]; !ok || !slices.Contains(next, d.LeadsTo) {
					n++
				}
			}
		}
	}
	return n
}

func misplacedEndings(st *story.GenerationState) int {
	last := len(st.ScenesByLevel) - 1
	n := 0
	for level, ids := range st.ScenesByLevel {
		for _, id := range ids {
			sc := st.Scenes[id]
			if sc == nil {
				continue
			}
			if level == last {
				if !sc.IsEnding || len(sc.Decisions) > 0 {
					n++
				}
			} else if sc.IsEnding {
				n++
			}
		}
	}
	return n
}

func deadEnds(st *story.GenerationState) int {
	n := 0
	for _, sc := range st.Scenes {
		if !sc.IsEnding && len(sc.Decisions) == 0 {
			n++
		}
	}
	return n
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
