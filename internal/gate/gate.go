package gate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
)

// #region gate
// Gate turns a critic's verdict into a retry-loop decision, enforcing the
// mode's score threshold on top of the critic's own judgement.
type Gate struct {
	critic Critic
	config GateConfig
}

// NewGate creates a gate over critic with the given configuration.
func NewGate(critic Critic, config GateConfig) *Gate {
	return &Gate{critic: critic, config: config}
}

// Evaluate reviews one draft. A critic error is returned unchanged so the
// caller can decide how to degrade.
func (g *Gate) Evaluate(ctx context.Context, in ReviewInput) (GateDecision, error) {
	crit, err := g.critic.Evaluate(ctx, in)
	if err != nil {
		return GateDecision{}, err
	}

	threshold := g.config.Threshold(in.Mode)
	score := MeanScore(crit.Scores)
	decision := GateDecision{
		Verdict:   crit.Verdict,
		Score:     score,
		Threshold: threshold,
	}

	switch crit.Verdict {
	case VerdictAccept:
		if score >= 0 && score < threshold {
			weak := weakest(crit.Scores, threshold)
			decision.Verdict = VerdictRewrite
			decision.Downgraded = true
			decision.Reason = fmt.Sprintf("score %.2f below %s threshold %.2f", score, in.Mode, threshold)
			decision.Feedback = fmt.Sprintf("Improve these aspects, which scored below %.1f: %s.", threshold, strings.Join(weak, ", "))
			break
		}
		decision.EditedContent = strings.TrimSpace(crit.EditedContent)
		decision.Reason = fmt.Sprintf("accepted: score=%.2f", score)
	case VerdictRewrite:
		decision.Reason = "critic requested rewrite"
		decision.Feedback = crit.Instructions
		if decision.Feedback == "" {
			decision.Feedback = "Tighten the prose and make each choice lead somewhere distinct."
		}
	case VerdictRegenerate:
		reason := crit.Reason
		if reason == "" {
			reason = "the draft did not fit the story"
		}
		decision.Reason = "critic requested regeneration: " + reason
		decision.Feedback = "The previous draft was rejected outright because " + reason +
			". Write a completely new scene; do not reuse its wording."
	default:
		return GateDecision{}, fmt.Errorf("unknown verdict %q", crit.Verdict)
	}

	log.Printf("[GATE] scene=%s verdict=%s score=%.2f threshold=%.2f downgraded=%v",
		in.SceneID, decision.Verdict, score, threshold, decision.Downgraded)
	return decision, nil
}

// #endregion gate

// #region helpers
// MeanScore averages scores, returning -1 when there are none.
func MeanScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return -1
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// weakest lists score names below threshold, lowest first.
func weakest(scores map[string]float64, threshold float64) []string {
	type kv struct {
		name string
		val  float64
	}
	var low []kv
	for k, v := range scores {
		if v < threshold {
			low = append(low, kv{k, v})
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].val == low[j].val {
			return low[i].name < low[j].name
		}
		return low[i].val < low[j].val
	})
	names := make([]string, len(low))
	for i, e := range low {
		names[i] = e.name
	}
	if len(names) == 0 {
		names = []string{"overall quality"}
	}
	return names
}

// #endregion helpers
