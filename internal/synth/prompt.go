package synth

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region constants

// excerptRunes bounds how much of each predecessor scene goes into a prompt.
const excerptRunes = 400

const sceneSystemPrompt = `You write one scene of a branching interactive story.
Stay inside the fiction: second person, present tense, no commentary about
the story, the player, or yourself. Respond with a single JSON object that
matches the provided schema and nothing else.`

const worldSystemPrompt = `You design the world of a branching interactive story.
Respond with a single JSON object that matches the provided schema and nothing else.`

// #endregion

// #region scene-prompt
// buildScenePrompt renders the user prompt for one scene attempt.
func buildScenePrompt(req SceneRequest, feedback []string) string {
	st := req.State
	var b strings.Builder

	writeStoryContext(&b, st.Inputs, st.WorldRules)

	if len(req.Incoming) > 0 {
		b.WriteString("\nPreviously, on the paths that lead here:\n")
		for _, id := range req.Incoming {
			prev := st.Scenes[id]
			if prev == nil {
				continue
			}
			fmt.Fprintf(&b, "- [%s] %s\n", id, excerpt(prev.Content, excerptRunes))
		}
	}

	cfg := st.Config
	fmt.Fprintf(&b, "\nWrite scene %s (level %d of %d), type %q.\n", req.SceneID(), req.Level, cfg.MaxLevels-1, req.Type)
	fmt.Fprintf(&b, "Length: %d to %d words.\n", cfg.MinWords, cfg.MaxWords)

	switch req.Type {
	case story.SceneIntro:
		b.WriteString("Open the story: establish the setting, the protagonist's situation, and the first real dilemma.\n")
	case story.SceneEnding:
		if e := req.Ending; e != nil {
			fmt.Fprintf(&b, "This is a %s ending. Condition: %s. It should resolve as: %s\n", e.Quality, e.Condition, e.Summary)
		}
		b.WriteString("Close the story. Return no decisions; include a one-sentence ending_summary.\n")
	default:
		b.WriteString("Advance the story from where the previous scenes left off.\n")
	}
	if req.Type != story.SceneEnding {
		fmt.Fprintf(&b, "Offer between %d and %d decisions. Each must lead somewhere meaningfully different.\n",
			cfg.DecisionsPerScene, MaxDecisions)
	}

	if len(feedback) > 0 {
		b.WriteString("\nConstraints from the previous attempt:\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

// #endregion scene-prompt

// #region world-prompt
func buildWorldPrompt(st *story.GenerationState, feedback []string) string {
	var b strings.Builder
	writeStoryContext(&b, st.Inputs, nil)
	cfg := st.Config
	fmt.Fprintf(&b, "\nDefine the setting, 2 to 4 key characters with their role and relationship to the protagonist, "+
		"3 to 5 rules of this world, and between %d and %d possible endings, each with a quality tier "+
		"(bad, neutral, good, best, secret), the condition that leads there, and a summary.\n",
		cfg.MinEndings, cfg.MaxEndings)
	b.WriteString("Give the story a short title.\n")
	if len(feedback) > 0 {
		b.WriteString("\nConstraints from the previous attempt:\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

// #endregion world-prompt

// #region helpers
func writeStoryContext(b *strings.Builder, in story.Inputs, w *story.WorldRules) {
	fmt.Fprintf(b, "Genre: %s\nTone: %s\nDifficulty: %s\nPremise: %s\n", in.Genre, in.Tone, in.Difficulty, in.Premise)
	if in.PlayerName != "" {
		fmt.Fprintf(b, "Protagonist: %s\n", in.PlayerName)
	}
	if in.PlayerDetails != "" {
		fmt.Fprintf(b, "Protagonist details: %s\n", in.PlayerDetails)
	}
	if w == nil {
		return
	}
	fmt.Fprintf(b, "Setting: %s\n", w.Setting)
	for _, c := range w.Characters {
		fmt.Fprintf(b, "Character: %s (%s) %s\n", c.Name, c.Role, c.Relationship)
	}
	for _, r := range w.Rules {
		fmt.Fprintf(b, "Rule: %s\n", r)
	}
}

// excerpt truncates s to n runes, marking the cut.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// #endregion helpers
