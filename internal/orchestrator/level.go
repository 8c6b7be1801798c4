package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/diamond"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// #region build-level

// BuildLevel synthesizes every scene of level in index order, then wires
// the previous level's decisions into it. Levels must be built in order.
func (r *Runner) BuildLevel(ctx context.Context, st *story.GenerationState, level int, mode story.Mode) (LevelStats, error) {
	stats := LevelStats{Level: level}
	if got := len(st.ScenesByLevel); got != level {
		return stats, fmt.Errorf("level %d built out of order (have %d levels)", level, got)
	}

	cfg := st.Config
	count := diamond.Shape(cfg)[level]
	prevIDs := st.Level(level - 1)

	for i := 0; i < count; i++ {
		req := synth.SceneRequest{
			State:    st,
			Level:    level,
			Index:    i,
			Type:     sceneType(level, cfg.MaxLevels),
			Incoming: diamond.Resolve(level, i, count, prevIDs, cfg, r.config.Rand),
			Mode:     mode,
		}
		if req.Type == story.SceneEnding {
			req.Ending = nextEnding(st, level)
		}

		sc, out, err := r.synth.Synthesize(ctx, req)
		if err != nil {
			return stats, err
		}
		st.AddScene(sc)
		stats.add(out)
	}

	if level > 0 {
		stats.Fallbacks = diamond.Connect(st, level)
	}

	log.Printf("[LEVEL] %d: scenes=%d attempts=%d corrections=%d unaccepted=%d fallbacks=%d",
		level, stats.Scenes, stats.Attempts, stats.Corrections, stats.Unaccepted, stats.Fallbacks)
	return stats, nil
}

// #endregion

// #region helpers

func sceneType(level, levels int) story.SceneType {
	switch level {
	case 0:
		return story.SceneIntro
	case levels - 1:
		return story.SceneEnding
	default:
		return story.SceneBranch
	}
}

// nextEnding cycles the planned endings by how many scenes the level
// already holds.
func nextEnding(st *story.GenerationState, level int) *story.PlannedEnding {
	if st.WorldRules == nil || len(st.WorldRules.PossibleEndings) == 0 {
		return nil
	}
	endings := st.WorldRules.PossibleEndings
	e := endings[len(st.Level(level))%len(endings)]
	return &e
}

// #endregion
