package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/eval"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string         `json:"description"`
	Inputs      story.Inputs   `json:"inputs"`
	Mode        story.Mode     `json:"mode"`
	Seed        int64          `json:"seed"`
	Config      FixtureConfig  `json:"config"`
	World       map[string]any `json:"world"`
	// Scenes and Critiques are served in order and wrap around when exhausted.
	Scenes    []map[string]any  `json:"scenes"`
	Critiques []FixtureCritique `json:"critiques"`
	Expected  FixtureExpected   `json:"expected"`
}

// FixtureConfig bundles the diamond, gate, and eval configs.
type FixtureConfig struct {
	Diamond    story.DiamondConfig `json:"diamond"`
	GateConfig FixtureGateConfig   `json:"gate_config"`
	EvalConfig FixtureEvalConfig   `json:"eval_config"`
}

// FixtureGateConfig mirrors gate.GateConfig with JSON tags.
type FixtureGateConfig struct {
	DraftThreshold    float64 `json:"draft_threshold"`
	PolishedThreshold float64 `json:"polished_threshold"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	MaxDanglingRefs     int  `json:"max_dangling_refs"`
	MaxUnreachable      int  `json:"max_unreachable"`
	UnreachableBlocking bool `json:"unreachable_blocking"`
}

// FixtureCritique is one recorded critic answer.
type FixtureCritique struct {
	Verdict       string             `json:"verdict"`
	Scores        map[string]float64 `json:"scores"`
	EditedContent string             `json:"edited_content,omitempty"`
	Instructions  string             `json:"instructions,omitempty"`
	Reason        string             `json:"reason,omitempty"`
}

// FixtureExpected captures what the replayed run must produce.
// Zero-valued counters are not checked.
type FixtureExpected struct {
	Shape        []int `json:"shape"`
	TotalScenes  int   `json:"total_scenes"`
	TotalEndings int   `json:"total_endings"`
	Reviews      int   `json:"reviews"`
	Attempts     int   `json:"attempts"`
	Passed       bool  `json:"passed"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes a fixture. Missing configs fall back to defaults.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Config.Diamond == (story.DiamondConfig{}) {
		f.Config.Diamond = story.DefaultDiamondConfig()
	}
	if f.Config.GateConfig == (FixtureGateConfig{}) {
		d := gate.DefaultGateConfig()
		f.Config.GateConfig = FixtureGateConfig{DraftThreshold: d.DraftThreshold, PolishedThreshold: d.PolishedThreshold}
	}
	mode, err := story.ParseMode(string(f.Mode))
	if err != nil {
		return nil, err
	}
	f.Mode = mode
	if len(f.Scenes) == 0 {
		return nil, fmt.Errorf("fixture has no scene outputs")
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	return ReplayConfig{
		Diamond: fc.Diamond,
		GateConfig: gate.GateConfig{
			DraftThreshold:    fc.GateConfig.DraftThreshold,
			PolishedThreshold: fc.GateConfig.PolishedThreshold,
		},
		EvalConfig: eval.EvalConfig{
			MaxDanglingRefs:     fc.EvalConfig.MaxDanglingRefs,
			MaxUnreachable:      fc.EvalConfig.MaxUnreachable,
			UnreachableBlocking: fc.EvalConfig.UnreachableBlocking,
		},
	}
}

// ToCritique converts a recorded answer to a gate.Critique.
func (fc FixtureCritique) ToCritique() gate.Critique {
	return gate.Critique{
		Verdict:       gate.Verdict(fc.Verdict),
		Scores:        fc.Scores,
		EditedContent: fc.EditedContent,
		Instructions:  fc.Instructions,
		Reason:        fc.Reason,
	}
}

// #endregion fixture-loader

// #region fixture-export

// FromStory turns a saved story into a fixture that regenerates the same
// graph: world rules become the world output and scenes are served in
// level order. No critiques are recorded, so every review accepts on the
// first attempt.
func FromStory(rec state.StoryRecord) (*Fixture, error) {
	st := rec.State
	if st == nil {
		return nil, fmt.Errorf("story %s has no graph", rec.StoryID)
	}
	f := &Fixture{
		Description: fmt.Sprintf("exported from story %s (%s)", rec.StoryID, rec.Title),
		Inputs:      st.Inputs,
		Mode:        rec.Mode,
		Config: FixtureConfig{
			Diamond: st.Config,
			GateConfig: FixtureGateConfig{
				DraftThreshold:    gate.DefaultGateConfig().DraftThreshold,
				PolishedThreshold: gate.DefaultGateConfig().PolishedThreshold,
			},
		},
		Expected: FixtureExpected{
			TotalScenes:  st.TotalScenes(),
			TotalEndings: st.TotalEndings(),
			Attempts:     st.TotalScenes(),
			Reviews:      st.TotalScenes(),
			Passed:       true,
		},
	}
	if rec.Mode != story.ModePolished {
		// intro plus every ending
		f.Expected.Reviews = len(st.Level(0)) + st.TotalEndings()
	}
	if st.WorldRules != nil {
		f.World = worldOutput(*st.WorldRules)
	}
	for l := range st.ScenesByLevel {
		ids := st.Level(l)
		f.Expected.Shape = append(f.Expected.Shape, len(ids))
		for _, id := range ids {
			sc, ok := st.Scenes[id]
			if !ok {
				return nil, fmt.Errorf("story %s: scene %s listed but missing", rec.StoryID, id)
			}
			f.Scenes = append(f.Scenes, sceneOutput(sc))
		}
	}
	if len(f.Scenes) == 0 {
		return nil, fmt.Errorf("story %s has no scenes", rec.StoryID)
	}
	return f, nil
}

func worldOutput(w story.WorldRules) map[string]any {
	chars := make([]any, 0, len(w.Characters))
	for _, c := range w.Characters {
		chars = append(chars, map[string]any{"name": c.Name, "role": c.Role, "relationship": c.Relationship})
	}
	rules := make([]any, 0, len(w.Rules))
	for _, r := range w.Rules {
		rules = append(rules, r)
	}
	endings := make([]any, 0, len(w.PossibleEndings))
	for _, e := range w.PossibleEndings {
		endings = append(endings, map[string]any{
			"quality":   string(e.Quality),
			"condition": e.Condition,
			"summary":   e.Summary,
		})
	}
	return map[string]any{
		"title":            w.Title,
		"setting":          w.Setting,
		"characters":       chars,
		"rules":            rules,
		"possible_endings": endings,
	}
}

func sceneOutput(sc *story.Scene) map[string]any {
	out := map[string]any{"narrative": sc.Content}
	if sc.IsEnding {
		out["ending_summary"] = sc.EndingSummary
		return out
	}
	decisions := make([]any, 0, len(sc.Decisions))
	for _, d := range sc.Decisions {
		decisions = append(decisions, map[string]any{"text": d.Text, "consequence_hint": d.ConsequenceHint})
	}
	out["decisions"] = decisions
	return out
}

// #endregion fixture-export
