package synth

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region constants

// MaxAttempts is the per-scene generation budget.
const MaxAttempts = 3

const emptyDecisionsCorrection = "Your previous response was invalid: the decisions array was empty. " +
	"This scene is not an ending, so it must offer at least %d decisions, each with a non-empty text."

// #endregion

// #region types

// Generator is the generation collaborator. codec.CodecClient implements it.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, schema map[string]any) (map[string]any, error)
}

// SceneRequest describes one scene to synthesize. State is read, never written.
type SceneRequest struct {
	State    *story.GenerationState
	Level    int
	Index    int
	Type     story.SceneType
	Incoming []string
	Ending   *story.PlannedEnding
	Mode     story.Mode
}

// SceneID returns the deterministic id of the requested scene.
func (r SceneRequest) SceneID() string {
	return story.SceneID(r.Level, r.Index)
}

// Step names what happened on one attempt.
type Step string

const (
	StepTransportError Step = "transport_error"
	StepSchemaError    Step = "schema_error"
	StepEmptyDecisions Step = "empty_decisions"
	StepUnreviewed     Step = "accept_unreviewed"
	StepCriticError    Step = "critic_error"
	StepAccept         Step = "accept"
	StepRewrite        Step = "rewrite"
	StepRegenerate     Step = "regenerate"
)

// AttemptRecord is reported for every attempt through Synthesizer.OnAttempt.
type AttemptRecord struct {
	SceneID string
	Attempt int
	Step    Step
	Score   float64
	Reason  string
}

// Outcome summarizes how a scene was produced.
type Outcome struct {
	Attempts    int
	Corrections int  // schema and empty-decision retries
	Reviewed    bool // a critic saw at least one draft
	Accepted    bool // false when the scene fell back to the latest draft
	Placeholder bool // no draft parsed at all
	Steps       []Step
}

// #endregion types

// #region synthesizer

// Synthesizer produces scenes through the generate/evaluate retry loop.
type Synthesizer struct {
	gen  Generator
	gate *gate.Gate

	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(AttemptRecord)
}

// NewSynthesizer wires a generator and a quality gate.
func NewSynthesizer(gen Generator, g *gate.Gate) *Synthesizer {
	return &Synthesizer{gen: gen, gate: g}
}

// needsReview reports whether a scene goes through the critic.
func needsReview(t story.SceneType, mode story.Mode) bool {
	return t == story.SceneIntro || t == story.SceneEnding || mode == story.ModePolished
}

// #endregion synthesizer

// #region synthesize
// Synthesize runs GENERATE -> EVALUATE -> {ACCEPT, REWRITE, REGENERATE} for
// one scene, bounded by MaxAttempts. Exhaustion falls back to the latest
// draft. An error is returned when the context ends or a transport failure
// happened after the latest parsed draft; only schema-only exhaustion gets
// a placeholder.
func (s *Synthesizer) Synthesize(ctx context.Context, req SceneRequest) (*story.Scene, Outcome, error) {
	var (
		out      Outcome
		feedback []string
		latest   *Draft
		lastErr  error // transport failure since the latest parsed draft
	)
	id := req.SceneID()
	ending := req.Type == story.SceneEnding
	cfg := req.State.Config
	schema := SceneSchema(ending, cfg.DecisionsPerScene)
	review := needsReview(req.Type, req.Mode) && s.gate != nil

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, out, err
		}
		out.Attempts = attempt

		raw, err := s.gen.Generate(ctx, sceneSystemPrompt, buildScenePrompt(req, feedback), schema)
		if err != nil {
			lastErr = err
			s.record(&out, id, attempt, StepTransportError, -1, err.Error())
			log.Printf("[SYNTH] scene=%s attempt=%d generate error: %v", id, attempt, err)
			continue
		}

		draft, err := ParseScene(raw)
		if err != nil {
			out.Corrections++
			feedback = addFeedback(feedback, fmt.Sprintf(
				"Your previous response did not match the required JSON schema (%v). Return only the JSON object.", err))
			s.record(&out, id, attempt, StepSchemaError, -1, err.Error())
			continue
		}
		latest = &draft
		lastErr = nil

		if !ending && len(draft.Choices) == 0 {
			out.Corrections++
			feedback = addFeedback(feedback, fmt.Sprintf(emptyDecisionsCorrection, cfg.DecisionsPerScene))
			s.record(&out, id, attempt, StepEmptyDecisions, -1, "decisions array was empty")
			continue
		}

		if !review {
			s.record(&out, id, attempt, StepUnreviewed, -1, "")
			out.Accepted = true
			return buildScene(req, draft, draft.Narrative), out, nil
		}

		out.Reviewed = true
		decision, err := s.gate.Evaluate(ctx, gate.ReviewInput{
			SceneID:   id,
			SceneType: req.Type,
			Content:   draft.Narrative,
			Choices:   draft.ChoiceTexts(),
			Context:   reviewContext(req),
			MinWords:  cfg.MinWords,
			MaxWords:  cfg.MaxWords,
			Mode:      req.Mode,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, out, ctxErr
			}
			// Without a working critic the draft is the best we have.
			s.record(&out, id, attempt, StepCriticError, -1, err.Error())
			log.Printf("[SYNTH] scene=%s attempt=%d critic unavailable, accepting draft: %v", id, attempt, err)
			out.Accepted = true
			return buildScene(req, draft, draft.Narrative), out, nil
		}

		switch decision.Verdict {
		case gate.VerdictAccept:
			s.record(&out, id, attempt, StepAccept, decision.Score, decision.Reason)
			content := draft.Narrative
			if decision.EditedContent != "" {
				content = decision.EditedContent
			}
			out.Accepted = true
			return buildScene(req, draft, content), out, nil
		case gate.VerdictRewrite:
			s.record(&out, id, attempt, StepRewrite, decision.Score, decision.Reason)
			feedback = addFeedback(feedback, "Rewrite instructions: "+decision.Feedback)
		case gate.VerdictRegenerate:
			s.record(&out, id, attempt, StepRegenerate, decision.Score, decision.Reason)
			feedback = addFeedback(feedback, decision.Feedback)
		}
	}

	if lastErr != nil {
		return nil, out, fmt.Errorf("generate scene %s: %w", id, lastErr)
	}
	if latest != nil {
		log.Printf("[SYNTH] scene=%s budget exhausted after %d attempts, keeping latest draft", id, out.Attempts)
		return buildScene(req, *latest, latest.Narrative), out, nil
	}

	log.Printf("[SYNTH] scene=%s no parsable draft after %d attempts, using placeholder", id, out.Attempts)
	out.Placeholder = true
	return buildScene(req, placeholderDraft(req), ""), out, nil
}

func (s *Synthesizer) record(out *Outcome, sceneID string, attempt int, step Step, score float64, reason string) {
	out.Steps = append(out.Steps, step)
	if s.OnAttempt != nil {
		s.OnAttempt(AttemptRecord{SceneID: sceneID, Attempt: attempt, Step: step, Score: score, Reason: reason})
	}
}

// #endregion synthesize

// #region helpers

func addFeedback(feedback []string, f string) []string {
	if f == "" || slices.Contains(feedback, f) {
		return feedback
	}
	return append(feedback, f)
}

func reviewContext(req SceneRequest) string {
	in := req.State.Inputs
	ctx := fmt.Sprintf("%s story, %s tone. Scene %s is a %s scene.", in.Genre, in.Tone, req.SceneID(), req.Type)
	if req.Ending != nil {
		ctx += fmt.Sprintf(" Planned %s ending: %s", req.Ending.Quality, req.Ending.Summary)
	}
	return ctx
}

// buildScene assembles the scene. Decisions get ids and order; LeadsTo stays empty.
func buildScene(req SceneRequest, d Draft, content string) *story.Scene {
	if content == "" {
		content = d.Narrative
	}
	id := req.SceneID()
	sc := &story.Scene{
		ID:        id,
		Type:      req.Type,
		Level:     req.Level,
		Content:   content,
		Incoming:  append([]string(nil), req.Incoming...),
		WordCount: story.CountWords(content),
		Decisions: []story.Decision{},
	}
	if req.Type == story.SceneEnding {
		sc.IsEnding = true
		sc.EndingSummary = d.EndingSummary
		if req.Ending != nil {
			sc.EndingQuality = req.Ending.Quality
			if sc.EndingSummary == "" {
				sc.EndingSummary = req.Ending.Summary
			}
		}
		return sc
	}
	for i, c := range d.Choices {
		sc.Decisions = append(sc.Decisions, story.Decision{
			ID:              story.DecisionID(id, i+1),
			Text:            c.Text,
			ConsequenceHint: c.ConsequenceHint,
			Order:           i + 1,
		})
	}
	return sc
}

func placeholderDraft(req SceneRequest) Draft {
	if req.Type == story.SceneEnding && req.Ending != nil {
		return Draft{Narrative: req.Ending.Summary, EndingSummary: req.Ending.Summary}
	}
	return Draft{Narrative: "The story pauses here for a moment before moving on."}
}

// #endregion helpers
