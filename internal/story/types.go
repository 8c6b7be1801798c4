package story

import (
	"fmt"
	"strings"
)

// #region scene-type
// SceneType classifies a scene's position in the diamond.
type SceneType string

const (
	SceneIntro       SceneType = "intro"
	SceneBranch      SceneType = "branch"
	SceneConsequence SceneType = "consequence" // reserved, not produced by the current topology
	SceneEnding      SceneType = "ending"
)

// #endregion scene-type

// #region ending-quality
// EndingQuality labels the narrative outcome of a terminal scene.
type EndingQuality string

const (
	EndingBad     EndingQuality = "bad"
	EndingNeutral EndingQuality = "neutral"
	EndingGood    EndingQuality = "good"
	EndingBest    EndingQuality = "best"
	EndingSecret  EndingQuality = "secret"
)

// ParseEndingQuality matches case-insensitively. Unknown values report ok=false.
func ParseEndingQuality(s string) (EndingQuality, bool) {
	switch EndingQuality(strings.ToLower(strings.TrimSpace(s))) {
	case EndingBad:
		return EndingBad, true
	case EndingNeutral:
		return EndingNeutral, true
	case EndingGood:
		return EndingGood, true
	case EndingBest:
		return EndingBest, true
	case EndingSecret:
		return EndingSecret, true
	}
	return EndingNeutral, false
}

// #endregion ending-quality

// #region mode
// Mode selects how strictly the quality gate reviews scenes.
type Mode string

const (
	ModeDraft    Mode = "draft"
	ModePolished Mode = "polished"
)

// ParseMode accepts "draft" or "polished" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDraft, "":
		return ModeDraft, nil
	case ModePolished:
		return ModePolished, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// #endregion mode

// #region decision
// Decision is one player choice. LeadsTo stays empty until the connector runs.
type Decision struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	ConsequenceHint string `json:"consequence_hint,omitempty"`
	LeadsTo         string `json:"leads_to"`
	Order           int    `json:"order"`
}

// #endregion decision

// #region scene
// Scene is a node of the narrative graph.
type Scene struct {
	ID            string        `json:"id"`
	Type          SceneType     `json:"type"`
	Level         int           `json:"level"`
	Content       string        `json:"content"`
	Decisions     []Decision    `json:"decisions"`
	IsEnding      bool          `json:"is_ending"`
	EndingQuality EndingQuality `json:"ending_quality,omitempty"`
	EndingSummary string        `json:"ending_summary,omitempty"`
	Incoming      []string      `json:"incoming"`
	WordCount     int           `json:"word_count"`
}

// SceneID derives the identifier for the scene at (level, index).
func SceneID(level, index int) string {
	return fmt.Sprintf("L%d_%d", level, index)
}

// DecisionID derives the identifier of the order-th decision of a scene.
func DecisionID(sceneID string, order int) string {
	return fmt.Sprintf("%s_d%d", sceneID, order)
}

// #endregion scene

// #region world-rules
// Character is a key figure of the story world.
type Character struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Relationship string `json:"relationship"`
}

// PlannedEnding is an ending the world rules commit to up front.
type PlannedEnding struct {
	Quality   EndingQuality `json:"quality"`
	Condition string        `json:"condition"`
	Summary   string        `json:"summary"`
}

// WorldRules is produced once per run and read-only afterwards.
type WorldRules struct {
	Title           string          `json:"title,omitempty"`
	Setting         string          `json:"setting"`
	Characters      []Character     `json:"characters"`
	Rules           []string        `json:"rules"`
	PossibleEndings []PlannedEnding `json:"possible_endings"`
}

// #endregion world-rules

// #region inputs
// Inputs are the user-supplied story parameters.
type Inputs struct {
	Genre         string `json:"genre"`
	Tone          string `json:"tone"`
	Difficulty    string `json:"difficulty"`
	Premise       string `json:"premise"`
	PlayerName    string `json:"player_name,omitempty"`
	PlayerDetails string `json:"player_details,omitempty"`
}

// #endregion inputs
