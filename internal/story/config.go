package story

import (
	"errors"
	"fmt"
)

// #region errors
// ErrInvalidConfig wraps every DiamondConfig validation failure.
var ErrInvalidConfig = errors.New("invalid diamond config")

// #endregion errors

// #region diamond-config
// DiamondConfig bounds the shape of the generated graph. Immutable once a run starts.
type DiamondConfig struct {
	MaxLevels         int `json:"max_levels" yaml:"max_levels"`
	MaxWidth          int `json:"max_width" yaml:"max_width"`
	MinEndings        int `json:"min_endings" yaml:"min_endings"`
	MaxEndings        int `json:"max_endings" yaml:"max_endings"`
	DecisionsPerScene int `json:"decisions_per_scene" yaml:"decisions_per_scene"`
	MinWords          int `json:"min_words" yaml:"min_words"`
	MaxWords          int `json:"max_words" yaml:"max_words"`
}

// DefaultDiamondConfig returns a medium-sized diamond.
func DefaultDiamondConfig() DiamondConfig {
	return DiamondConfig{
		MaxLevels:         4,
		MaxWidth:          4,
		MinEndings:        2,
		MaxEndings:        3,
		DecisionsPerScene: 3,
		MinWords:          150,
		MaxWords:          300,
	}
}

// Validate checks every field against its allowed range.
func (c DiamondConfig) Validate() error {
	checks := []struct {
		name     string
		val      int
		min, max int
	}{
		{"max_levels", c.MaxLevels, 3, 6},
		{"max_width", c.MaxWidth, 2, 6},
		{"min_endings", c.MinEndings, 2, 4},
		{"max_endings", c.MaxEndings, 3, 8},
		{"decisions_per_scene", c.DecisionsPerScene, 2, 4},
	}
	for _, ch := range checks {
		if ch.val < ch.min || ch.val > ch.max {
			return fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrInvalidConfig, ch.name, ch.val, ch.min, ch.max)
		}
	}
	if c.MinEndings > c.MaxEndings {
		return fmt.Errorf("%w: min_endings %d > max_endings %d", ErrInvalidConfig, c.MinEndings, c.MaxEndings)
	}
	if c.MinWords <= 0 || c.MaxWords < c.MinWords {
		return fmt.Errorf("%w: word range [%d, %d]", ErrInvalidConfig, c.MinWords, c.MaxWords)
	}
	return nil
}

// #endregion diamond-config
