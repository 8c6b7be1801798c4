package story

import "strings"

// #region generation-state
// GenerationState is the graph under construction for a single run.
// It is owned by exactly one run and never shared.
type GenerationState struct {
	Inputs     Inputs        `json:"inputs"`
	Config     DiamondConfig `json:"config"`
	WorldRules *WorldRules   `json:"world_rules,omitempty"`

	Scenes        map[string]*Scene `json:"scenes"`
	ScenesByLevel [][]string        `json:"scenes_by_level"`

	TotalWords int `json:"total_words"`
}

// NewGenerationState creates an empty state for the given inputs and config.
func NewGenerationState(inputs Inputs, config DiamondConfig) *GenerationState {
	return &GenerationState{
		Inputs: inputs,
		Config: config,
		Scenes: make(map[string]*Scene),
	}
}

// AddScene appends sc to its level list and the scene map.
func (s *GenerationState) AddScene(sc *Scene) {
	for len(s.ScenesByLevel) <= sc.Level {
		s.ScenesByLevel = append(s.ScenesByLevel, nil)
	}
	s.ScenesByLevel[sc.Level] = append(s.ScenesByLevel[sc.Level], sc.ID)
	s.Scenes[sc.ID] = sc
	s.TotalWords += sc.WordCount
}

// Level returns the scene ids at level, or nil when the level is not built yet.
func (s *GenerationState) Level(level int) []string {
	if level < 0 || level >= len(s.ScenesByLevel) {
		return nil
	}
	return s.ScenesByLevel[level]
}

// TotalScenes counts scenes in the map.
func (s *GenerationState) TotalScenes() int {
	return len(s.Scenes)
}

// TotalEndings counts scenes flagged as endings.
func (s *GenerationState) TotalEndings() int {
	n := 0
	for _, sc := range s.Scenes {
		if sc.IsEnding {
			n++
		}
	}
	return n
}

// Title returns the world-rule title, or one derived from the inputs.
func (s *GenerationState) Title() string {
	if s.WorldRules != nil && s.WorldRules.Title != "" {
		return s.WorldRules.Title
	}
	return DefaultTitle(s.Inputs)
}

// #endregion generation-state

// #region title
// DefaultTitle builds a title from genre and the first words of the premise.
func DefaultTitle(in Inputs) string {
	words := strings.Fields(in.Premise)
	if len(words) > 6 {
		words = words[:6]
	}
	premise := strings.Join(words, " ")
	switch {
	case in.Genre != "" && premise != "":
		return in.Genre + ": " + premise
	case premise != "":
		return premise
	case in.Genre != "":
		return "Untitled " + in.Genre + " story"
	}
	return "Untitled story"
}

// #endregion title

// #region words
// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// #endregion words
