package gate

import (
	"context"
	"fmt"
	"strings"
)

// #region leakage-patterns

// leakagePatterns catch the model stepping out of the fiction.
var leakagePatterns = []string{
	"as an ai",
	"as a language model",
	"i cannot",
	"i can't write",
	"here is the scene",
	"here's the scene",
	"word count",
	"the player can choose",
	"in this scene,",
	"choose your own adventure",
}

// #endregion

// #region heuristic-critic

// HeuristicCritic scores drafts with string analysis. No model call.
type HeuristicCritic struct{}

// NewHeuristicCritic returns the offline critic.
func NewHeuristicCritic() *HeuristicCritic {
	return &HeuristicCritic{}
}

// Evaluate scores length fit, repetition, voice, and choice distinctness.
func (h *HeuristicCritic) Evaluate(_ context.Context, in ReviewInput) (Critique, error) {
	trimmed := strings.TrimSpace(in.Content)
	lower := strings.ToLower(trimmed)

	if trimmed == "" {
		return Critique{Verdict: VerdictRegenerate, Reason: "the scene text was empty"}, nil
	}
	if leaks := countLeakage(lower); leaks >= 2 {
		return Critique{
			Verdict: VerdictRegenerate,
			Reason:  "the text broke the fourth wall with assistant or meta commentary",
			Scores:  map[string]float64{"voice": 0},
		}, nil
	}

	scores := map[string]float64{
		"length":     lengthScore(len(strings.Fields(trimmed)), in.MinWords, in.MaxWords),
		"repetition": repetitionScore(lower),
		"voice":      10 - 5*float64(countLeakage(lower)),
	}
	if len(in.Choices) > 0 {
		scores["choices"] = choiceScore(in.Choices)
	}

	mean := MeanScore(scores)
	if mean < 5 {
		return Critique{
			Verdict:      VerdictRewrite,
			Scores:       scores,
			Instructions: fmt.Sprintf("Rework the draft; weakest areas: %s.", strings.Join(weakest(scores, 5), ", ")),
		}, nil
	}
	return Critique{Verdict: VerdictAccept, Scores: scores}, nil
}

// #endregion heuristic-critic

// #region scoring

func countLeakage(lower string) int {
	n := 0
	for _, p := range leakagePatterns {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

// lengthScore is 10 inside [minWords, maxWords] and falls off linearly outside.
func lengthScore(words, minWords, maxWords int) float64 {
	if minWords <= 0 || maxWords < minWords {
		return 10
	}
	switch {
	case words < minWords:
		return 10 * float64(words) / float64(minWords)
	case words > maxWords:
		over := float64(words-maxWords) / float64(maxWords)
		return max(0, 10*(1-over))
	}
	return 10
}

// repetitionScore drops for each sentence repeated three or more times.
func repetitionScore(lower string) float64 {
	sentences := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	counts := make(map[string]int)
	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if len(trimmed) > 10 {
			counts[trimmed]++
		}
	}
	score := 10.0
	for _, c := range counts {
		if c >= 3 {
			score -= 4
		} else if c == 2 {
			score -= 1
		}
	}
	return max(0, score)
}

// choiceScore penalises duplicate and near-empty choices.
func choiceScore(choices []string) float64 {
	seen := make(map[string]bool)
	score := 10.0
	for _, ch := range choices {
		key := strings.ToLower(strings.TrimSpace(ch))
		if len(strings.Fields(key)) < 2 {
			score -= 2
		}
		if seen[key] {
			score -= 4
		}
		seen[key] = true
	}
	return max(0, score)
}

// #endregion scoring
