package gate

import (
	"context"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region verdict
// Verdict is the critic's instruction for the next step of the retry loop.
type Verdict string

const (
	VerdictAccept     Verdict = "ACCEPT"
	VerdictRewrite    Verdict = "REWRITE"
	VerdictRegenerate Verdict = "REGENERATE"
)

// #endregion verdict

// #region review-input
// ReviewInput is one draft handed to a critic.
type ReviewInput struct {
	SceneID   string
	SceneType story.SceneType
	Content   string
	Choices   []string
	Context   string
	MinWords  int
	MaxWords  int
	Mode      story.Mode
}

// #endregion review-input

// #region critique
// Critique is a critic's verdict on one draft. Scores use a 0-10 scale.
type Critique struct {
	Verdict       Verdict
	Scores        map[string]float64
	EditedContent string // optional tightened rewrite, only meaningful with ACCEPT
	Instructions  string // REWRITE guidance
	Reason        string // REGENERATE reason
}

// #endregion critique

// #region critic
// Critic reviews a draft scene.
type Critic interface {
	Evaluate(ctx context.Context, in ReviewInput) (Critique, error)
}

// #endregion critic

// #region gate-config
// GateConfig holds the acceptance thresholds per mode.
type GateConfig struct {
	DraftThreshold    float64
	PolishedThreshold float64
}

// DefaultGateConfig returns the standard thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		DraftThreshold:    6.0,
		PolishedThreshold: 7.5,
	}
}

// Threshold returns the minimum mean score for mode.
func (c GateConfig) Threshold(mode story.Mode) float64 {
	if mode == story.ModePolished {
		return c.PolishedThreshold
	}
	return c.DraftThreshold
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Verdict       Verdict
	Score         float64 // mean critic score, -1 when the critic gave none
	Threshold     float64
	Downgraded    bool // critic accepted but the score missed the threshold
	EditedContent string
	Feedback      string // text folded into the next attempt's prompt
	Reason        string
}

// #endregion gate-decision
