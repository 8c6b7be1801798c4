package diamond

import (
	"math/rand"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region constants

// SecondaryLinkChance is the probability that an expanding-phase scene
// also links to the neighbour before its primary predecessor.
const SecondaryLinkChance = 0.3

// #endregion

// #region resolve
// Resolve picks the previous-level scenes that feed scene (level, index).
// rng drives the optional secondary link in the expanding phase; nil disables it.
// Every scene after level 0 gets at least one predecessor when prevIDs is non-empty.
func Resolve(level, index, countAtLevel int, prevIDs []string, cfg story.DiamondConfig, rng *rand.Rand) []string {
	if level == 0 || len(prevIDs) == 0 || countAtLevel <= 0 {
		return nil
	}
	prevCount := len(prevIDs)

	var picked []int
	if isExpanding(cfg, level) {
		ratio := float64(prevCount) / float64(countAtLevel)
		primary := clamp(int(float64(index)*ratio), 0, prevCount-1)
		picked = append(picked, primary)
		if primary > 0 && rng != nil && rng.Float64() < SecondaryLinkChance {
			picked = append(picked, max(0, primary-1))
		}
	} else {
		ratio := float64(countAtLevel) / float64(prevCount)
		startPrev := max(0, int(float64(index)/ratio))
		endPrev := min(prevCount-1, int(float64(index+1)/ratio))
		for i := startPrev; i <= endPrev; i++ {
			picked = append(picked, i)
		}
	}

	seen := make(map[string]bool, len(picked))
	var out []string
	for _, i := range picked {
		id := prevIDs[i]
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		out = []string{prevIDs[0]}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion resolve
