package synth

import (
	"context"
	"fmt"
	"log"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region world
// GenerateWorldRules produces the world rules for st, retrying schema
// failures with a corrective instruction. When every attempt fails schema
// validation the default world is used. Transport failures on every attempt
// are returned as an error.
func GenerateWorldRules(ctx context.Context, gen Generator, st *story.GenerationState) (story.WorldRules, error) {
	var (
		feedback  []string
		lastErr   error
		transport int
	)
	schema := WorldRulesSchema(st.Config)

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return story.WorldRules{}, err
		}
		raw, err := gen.Generate(ctx, worldSystemPrompt, buildWorldPrompt(st, feedback), schema)
		if err != nil {
			lastErr = err
			transport++
			log.Printf("[SYNTH] world attempt=%d generate error: %v", attempt, err)
			continue
		}
		w, err := ParseWorldRules(raw, st.Config)
		if err != nil {
			feedback = addFeedback(feedback, fmt.Sprintf(
				"Your previous response did not match the required JSON schema (%v). Return only the JSON object.", err))
			log.Printf("[SYNTH] world attempt=%d invalid: %v", attempt, err)
			continue
		}
		if w.Title == "" {
			w.Title = story.DefaultTitle(st.Inputs)
		}
		log.Printf("[SYNTH] world ready: title=%q endings=%d", w.Title, len(w.PossibleEndings))
		return w, nil
	}

	if transport == MaxAttempts {
		return story.WorldRules{}, fmt.Errorf("generate world rules: %w", lastErr)
	}
	log.Printf("[SYNTH] world rules unusable after %d attempts, using defaults", MaxAttempts)
	return DefaultWorldRules(st.Inputs, st.Config), nil
}

// World rule bounds.
const (
	MinCharacters = 2
	MaxCharacters = 4
	MinRules      = 3
	MaxRules      = 5
)

var defaultRules = []string{
	"Every choice has a cost.",
	"Trust is earned slowly and lost quickly.",
	"The past does not stay buried.",
}

func defaultCharacters(protagonist string) []story.Character {
	return []story.Character{
		{Name: "The Rival", Role: "antagonist", Relationship: "stands between " + protagonist + " and the goal"},
		{Name: "The Ally", Role: "companion", Relationship: "helps " + protagonist + " at a price"},
	}
}

// DefaultWorldRules is the fallback world sized for cfg.
func DefaultWorldRules(in story.Inputs, cfg story.DiamondConfig) story.WorldRules {
	protagonist := in.PlayerName
	if protagonist == "" {
		protagonist = "the protagonist"
	}
	w := story.WorldRules{
		Title:      story.DefaultTitle(in),
		Setting:    fmt.Sprintf("A %s world shaped by this premise: %s", in.Genre, in.Premise),
		Characters: defaultCharacters(protagonist),
		Rules:      append([]string(nil), defaultRules...),
	}
	for i := 0; i < cfg.MinEndings; i++ {
		w.PossibleEndings = append(w.PossibleEndings, defaultEnding(i))
	}
	return w
}

// #endregion world
