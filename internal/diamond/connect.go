package diamond

import (
	"log"
	"slices"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region connect
// Connect wires every decision of level-1 to a scene of level.
// Only LeadsTo fields change. Returns how many sources used the fallback target.
func Connect(st *story.GenerationState, level int) int {
	sources := st.Level(level - 1)
	targets := st.Level(level)
	if len(sources) == 0 || len(targets) == 0 {
		return 0
	}

	fallbacks := 0
	for _, srcID := range sources {
		src := st.Scenes[srcID]
		if src == nil || len(src.Decisions) == 0 {
			continue
		}

		leadingTo := leadingTo(st, srcID, targets)
		if len(leadingTo) == 0 {
			leadingTo = []string{targets[0]}
			fallbacks++
			log.Printf("[CONNECT] %s feeds no scene at level %d, falling back to %s", srcID, level, targets[0])
		}

		for i := range src.Decisions {
			src.Decisions[i].LeadsTo = leadingTo[i%len(leadingTo)]
		}
	}
	return fallbacks
}

// leadingTo lists, in level order, the targets whose incoming set contains srcID.
func leadingTo(st *story.GenerationState, srcID string, targets []string) []string {
	var out []string
	for _, tID := range targets {
		t := st.Scenes[tID]
		if t != nil && slices.Contains(t.Incoming, srcID) {
			out = append(out, tID)
		}
	}
	return out
}

// #endregion connect
