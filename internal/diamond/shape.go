// Package diamond holds the structural algorithms of the branching graph:
// level sizing, predecessor selection, decision wiring, and the final
// path validation pass. Nothing here calls a collaborator.
package diamond

import (
	"math"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region shape
// Shape returns the scene count for every level of the diamond.
// len(result) == cfg.MaxLevels and result[0] == 1.
func Shape(cfg story.DiamondConfig) []int {
	levels := cfg.MaxLevels
	if levels <= 0 {
		return nil
	}
	counts := make([]int, levels)
	for level := range counts {
		counts[level] = levelCount(cfg, level)
	}
	return counts
}

// TotalScenes sums the shape vector.
func TotalScenes(cfg story.DiamondConfig) int {
	total := 0
	for _, c := range Shape(cfg) {
		total += c
	}
	return total
}

func levelCount(cfg story.DiamondConfig, level int) int {
	last := cfg.MaxLevels - 1
	mid := cfg.MaxLevels / 2

	switch {
	case level == 0:
		return 1
	case level == last:
		return terminalCount(cfg)
	case isExpanding(cfg, level):
		frac := float64(cfg.MaxWidth-1) * float64(level) / float64(mid)
		return min(cfg.MaxWidth, ceilInt(1+frac))
	}

	span := last - mid
	if span <= 0 {
		return terminalCount(cfg)
	}
	remaining := last - level
	frac := float64(cfg.MaxWidth-cfg.MinEndings) * float64(remaining) / float64(span)
	return ceilInt(float64(cfg.MinEndings) + frac)
}

func terminalCount(cfg story.DiamondConfig) int {
	return ceilInt(float64(cfg.MinEndings+cfg.MaxEndings) / 2)
}

// isExpanding reports whether level sits in the fan-out half of the diamond.
func isExpanding(cfg story.DiamondConfig, level int) bool {
	return level <= cfg.MaxLevels/2
}

// ceilInt rounds up after absorbing float noise such as 2.0000000004.
func ceilInt(v float64) int {
	return int(math.Ceil(v - 1e-9))
}

// #endregion shape
