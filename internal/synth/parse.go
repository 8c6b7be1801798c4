package synth

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region constants

// MaxDecisions caps the choices kept from one scene.
const MaxDecisions = 4

// #endregion

// #region errors

// ErrSchema marks generator output that misses a required field.
var ErrSchema = errors.New("output does not match schema")

// #endregion

// #region draft
// Draft is one parsed generation result for a scene.
type Draft struct {
	Narrative     string
	Choices       []DraftChoice
	EndingSummary string
}

// DraftChoice is one candidate decision before wiring.
type DraftChoice struct {
	Text            string
	ConsequenceHint string
}

// ChoiceTexts lists the choice texts in order.
func (d Draft) ChoiceTexts() []string {
	out := make([]string, len(d.Choices))
	for i, c := range d.Choices {
		out[i] = c.Text
	}
	return out
}

// #endregion draft

// #region parse-scene
// ParseScene validates a scene result. narrative is required; decisions
// default to none and entries without text are dropped. Accepts either
// "decisions" or "choices" as the list key, and plain strings as entries.
func ParseScene(raw map[string]any) (Draft, error) {
	var d Draft
	d.Narrative = firstString(raw, "narrative", "content", "text")
	if d.Narrative == "" {
		return Draft{}, fmt.Errorf("%w: narrative is missing", ErrSchema)
	}
	d.EndingSummary = firstString(raw, "ending_summary")

	list, ok := raw["decisions"].([]any)
	if !ok {
		list, _ = raw["choices"].([]any)
	}
	for _, item := range list {
		var c DraftChoice
		switch v := item.(type) {
		case string:
			c.Text = strings.TrimSpace(v)
		case map[string]any:
			c.Text = firstString(v, "text", "choice", "label")
			c.ConsequenceHint = firstString(v, "consequence_hint", "consequence", "hint")
		}
		if c.Text == "" {
			continue
		}
		d.Choices = append(d.Choices, c)
		if len(d.Choices) == MaxDecisions {
			break
		}
	}
	return d, nil
}

// #endregion parse-scene

// #region parse-world
// ParseWorldRules validates a world-rule result against cfg. setting and at
// least one ending are required. Characters and rules are kept within
// MinCharacters..MaxCharacters and MinRules..MaxRules, padded from the
// default world; endings are truncated to MaxEndings or padded to MinEndings.
func ParseWorldRules(raw map[string]any, cfg story.DiamondConfig) (story.WorldRules, error) {
	var w story.WorldRules
	w.Setting = firstString(raw, "setting")
	if w.Setting == "" {
		return story.WorldRules{}, fmt.Errorf("%w: setting is missing", ErrSchema)
	}
	w.Title = firstString(raw, "title")

	chars, _ := raw["characters"].([]any)
	for _, item := range chars {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := story.Character{
			Name:         firstString(m, "name"),
			Role:         firstString(m, "role"),
			Relationship: firstString(m, "relationship"),
		}
		if c.Name == "" {
			continue
		}
		if c.Role == "" {
			c.Role = "supporting"
		}
		w.Characters = append(w.Characters, c)
		if len(w.Characters) == MaxCharacters {
			break
		}
	}

	rules, _ := raw["rules"].([]any)
	for _, item := range rules {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			w.Rules = append(w.Rules, strings.TrimSpace(s))
		}
		if len(w.Rules) == MaxRules {
			break
		}
	}

	endings, _ := raw["possible_endings"].([]any)
	for _, item := range endings {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		summary := firstString(m, "summary")
		if summary == "" {
			continue
		}
		quality, _ := story.ParseEndingQuality(firstString(m, "quality"))
		w.PossibleEndings = append(w.PossibleEndings, story.PlannedEnding{
			Quality:   quality,
			Condition: firstString(m, "condition"),
			Summary:   summary,
		})
		if len(w.PossibleEndings) == cfg.MaxEndings {
			break
		}
	}
	if len(w.PossibleEndings) == 0 {
		return story.WorldRules{}, fmt.Errorf("%w: possible_endings is empty", ErrSchema)
	}
	for i := len(w.PossibleEndings); i < cfg.MinEndings; i++ {
		w.PossibleEndings = append(w.PossibleEndings, defaultEnding(i))
	}
	padWorld(&w)
	return w, nil
}

// padWorld fills characters and rules up to their minimums, skipping
// defaults the model already supplied.
func padWorld(w *story.WorldRules) {
	for _, c := range defaultCharacters("the protagonist") {
		if len(w.Characters) >= MinCharacters {
			break
		}
		if !slices.ContainsFunc(w.Characters, func(have story.Character) bool {
			return strings.EqualFold(have.Name, c.Name)
		}) {
			w.Characters = append(w.Characters, c)
		}
	}
	for _, r := range defaultRules {
		if len(w.Rules) >= MinRules {
			break
		}
		if !slices.Contains(w.Rules, r) {
			w.Rules = append(w.Rules, r)
		}
	}
}

var defaultTiers = []story.EndingQuality{story.EndingBad, story.EndingNeutral, story.EndingGood, story.EndingBest}

func defaultEnding(i int) story.PlannedEnding {
	q := defaultTiers[i%len(defaultTiers)]
	return story.PlannedEnding{
		Quality:   q,
		Condition: "reached through the player's accumulated choices",
		Summary:   fmt.Sprintf("A %s resolution to the story.", q),
	}
}

// #endregion parse-world

// #region helpers
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// #endregion helpers
