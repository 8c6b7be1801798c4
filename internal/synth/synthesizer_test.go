package synth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// scriptedGen returns its responses in order, repeating the last one.
type scriptedGen struct {
	responses []map[string]any
	errs      []error
	prompts   []string
}

func (g *scriptedGen) Generate(_ context.Context, _, user string, _ map[string]any) (map[string]any, error) {
	i := len(g.prompts)
	g.prompts = append(g.prompts, user)
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if len(g.responses) == 0 {
		return nil, errors.New("no response scripted")
	}
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

// scriptedCritic returns its critiques in order, repeating the last one.
type scriptedCritic struct {
	critiques []gate.Critique
	err       error
	seen      []string
}

func (c *scriptedCritic) Evaluate(_ context.Context, in gate.ReviewInput) (gate.Critique, error) {
	c.seen = append(c.seen, in.Content)
	if c.err != nil {
		return gate.Critique{}, c.err
	}
	i := len(c.seen) - 1
	if i >= len(c.critiques) {
		i = len(c.critiques) - 1
	}
	return c.critiques[i], nil
}

func newTestState() *story.GenerationState {
	st := story.NewGenerationState(story.Inputs{
		Genre:   "mystery",
		Tone:    "tense",
		Premise: "A lighthouse keeper finds a letter addressed to her dead brother",
	}, story.DefaultDiamondConfig())
	st.WorldRules = &story.WorldRules{
		Setting: "A storm-bound island",
		PossibleEndings: []story.PlannedEnding{
			{Quality: story.EndingGood, Summary: "The truth comes out."},
			{Quality: story.EndingBad, Summary: "The island keeps its secret."},
		},
	}
	return st
}

func sceneOutput(narrative string, choices ...string) map[string]any {
	list := make([]any, len(choices))
	for i, c := range choices {
		list[i] = map[string]any{"text": c, "consequence_hint": "hint " + c}
	}
	return map[string]any{"narrative": narrative, "decisions": list}
}

var highScores = map[string]float64{"prose": 9, "coherence": 9}

func TestSynthesizeEmptyDecisionsRetried(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{
		sceneOutput("The corridor splits."),
		sceneOutput("The corridor splits again."),
		sceneOutput("The corridor splits three ways.", "Left", "Right", "Back"),
	}}
	s := NewSynthesizer(gen, nil)

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Index: 0, Type: story.SceneBranch,
		Incoming: []string{"L0_0"}, Mode: story.ModeDraft,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Attempts != 3 || out.Corrections != 2 {
		t.Fatalf("expected 3 attempts with 2 corrections, got %+v", out)
	}
	if len(sc.Decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(sc.Decisions))
	}
	for i, p := range gen.prompts[1:] {
		if !strings.Contains(p, "decisions array was empty") {
			t.Errorf("prompt %d missing corrective instruction", i+2)
		}
	}
	if strings.Contains(gen.prompts[0], "decisions array was empty") {
		t.Error("first prompt should carry no correction")
	}
}

func TestSynthesizeRegenerateThenAcceptUsesEdit(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{
		sceneOutput("Draft one.", "A", "B"),
		sceneOutput("Draft two.", "A", "B"),
		sceneOutput("Draft three.", "A", "B"),
	}}
	critic := &scriptedCritic{critiques: []gate.Critique{
		{Verdict: gate.VerdictRegenerate, Reason: "it contradicts the setting"},
		{Verdict: gate.VerdictRegenerate, Reason: "it breaks voice"},
		{Verdict: gate.VerdictAccept, Scores: highScores, EditedContent: "Draft three, tightened."},
	}}
	s := NewSynthesizer(gen, gate.NewGate(critic, gate.DefaultGateConfig()))

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 0, Index: 0, Type: story.SceneIntro, Mode: story.ModeDraft,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Attempts != 3 || !out.Accepted {
		t.Fatalf("expected acceptance on attempt 3, got %+v", out)
	}
	if sc.Content != "Draft three, tightened." {
		t.Fatalf("expected edited content, got %q", sc.Content)
	}
	if !strings.Contains(gen.prompts[1], "rejected outright because it contradicts the setting") {
		t.Errorf("regenerate feedback not folded into prompt 2:\n%s", gen.prompts[1])
	}
}

func TestSynthesizeAcceptWithoutEditKeepsNarrative(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{
		sceneOutput("First.", "A", "B"),
		sceneOutput("Second.", "A", "B"),
		sceneOutput("Third.", "A", "B"),
	}}
	critic := &scriptedCritic{critiques: []gate.Critique{
		{Verdict: gate.VerdictRegenerate},
		{Verdict: gate.VerdictRegenerate},
		{Verdict: gate.VerdictAccept, Scores: highScores},
	}}
	s := NewSynthesizer(gen, gate.NewGate(critic, gate.DefaultGateConfig()))

	sc, _, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Type: story.SceneIntro, Mode: story.ModeDraft,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sc.Content != "Third." {
		t.Fatalf("expected raw narrative of attempt 3, got %q", sc.Content)
	}
}

func TestSynthesizeExhaustionKeepsLatestDraft(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{
		sceneOutput("One.", "A", "B"),
		sceneOutput("Two.", "A", "B"),
		sceneOutput("Three.", "A", "B"),
	}}
	critic := &scriptedCritic{critiques: []gate.Critique{
		{Verdict: gate.VerdictRewrite, Instructions: "More tension."},
	}}
	s := NewSynthesizer(gen, gate.NewGate(critic, gate.DefaultGateConfig()))

	var records []AttemptRecord
	s.OnAttempt = func(r AttemptRecord) { records = append(records, r) }

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModePolished,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Accepted {
		t.Fatal("exhausted scene should not be marked accepted")
	}
	if sc.Content != "Three." {
		t.Fatalf("expected latest draft, got %q", sc.Content)
	}
	if len(records) != 3 || records[2].Step != StepRewrite {
		t.Fatalf("unexpected attempt records: %+v", records)
	}
	if !strings.Contains(gen.prompts[2], "More tension.") {
		t.Error("rewrite instructions missing from retry prompt")
	}
}

func TestSynthesizeDraftModeSkipsReviewForBranch(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{sceneOutput("Plain.", "A", "B")}}
	critic := &scriptedCritic{critiques: []gate.Critique{{Verdict: gate.VerdictRegenerate}}}
	s := NewSynthesizer(gen, gate.NewGate(critic, gate.DefaultGateConfig()))

	_, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Reviewed || len(critic.seen) != 0 {
		t.Fatal("branch scenes in draft mode should not be reviewed")
	}
}

func TestSynthesizeCriticFailureAcceptsDraft(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{sceneOutput("Only draft.", "A", "B")}}
	critic := &scriptedCritic{err: errors.New("critic offline")}
	s := NewSynthesizer(gen, gate.NewGate(critic, gate.DefaultGateConfig()))

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Type: story.SceneIntro, Mode: story.ModeDraft,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sc.Content != "Only draft." || out.Attempts != 1 {
		t.Fatalf("expected first draft accepted, got %q after %d attempts", sc.Content, out.Attempts)
	}
}

func TestSynthesizeTransportFailureIsFatal(t *testing.T) {
	boom := errors.New("connection refused")
	gen := &scriptedGen{errs: []error{boom, boom, boom}}
	s := NewSynthesizer(gen, nil)

	_, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if out.Attempts != MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", MaxAttempts, out.Attempts)
	}
}

func TestSynthesizeTransportAfterSchemaErrorIsFatal(t *testing.T) {
	boom := errors.New("connection refused")
	gen := &scriptedGen{
		errs:      []error{nil, boom, boom},
		responses: []map[string]any{{"summary": "no narrative here"}},
	}
	s := NewSynthesizer(gen, nil)

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if sc != nil || out.Placeholder {
		t.Fatalf("expected no scene, got %+v placeholder=%v", sc, out.Placeholder)
	}
	want := []Step{StepSchemaError, StepTransportError, StepTransportError}
	if !slices.Equal(out.Steps, want) {
		t.Fatalf("steps = %v, want %v", out.Steps, want)
	}
}

func TestSynthesizeTransportAfterDraftIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	gen := &scriptedGen{
		errs:      []error{nil, boom, boom},
		responses: []map[string]any{sceneOutput("No way forward.")},
	}
	s := NewSynthesizer(gen, nil)

	_, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if out.Steps[0] != StepEmptyDecisions {
		t.Fatalf("expected empty decisions first, got %v", out.Steps)
	}
}

func TestSynthesizeSchemaAfterTransportIsFatal(t *testing.T) {
	boom := errors.New("unavailable")
	gen := &scriptedGen{
		errs:      []error{boom},
		responses: []map[string]any{nil, {"summary": "no narrative here"}},
	}
	s := NewSynthesizer(gen, nil)

	_, _, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestSynthesizeTransientErrorRecovers(t *testing.T) {
	gen := &scriptedGen{
		errs:      []error{errors.New("unavailable")},
		responses: []map[string]any{nil, sceneOutput("Recovered.", "A", "B")},
	}
	s := NewSynthesizer(gen, nil)

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sc.Content != "Recovered." || out.Attempts != 2 {
		t.Fatalf("expected recovery on attempt 2, got %q after %d", sc.Content, out.Attempts)
	}
}

func TestSynthesizeSchemaExhaustionUsesPlaceholder(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{{"summary": "no narrative here"}}}
	s := NewSynthesizer(gen, nil)

	sc, out, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 3, Index: 1, Type: story.SceneEnding, Mode: story.ModeDraft,
		Ending: &story.PlannedEnding{Quality: story.EndingBad, Summary: "The island keeps its secret."},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !out.Placeholder {
		t.Fatal("expected placeholder outcome")
	}
	if !sc.IsEnding || sc.Content != "The island keeps its secret." {
		t.Fatalf("unexpected placeholder ending: %+v", sc)
	}
	if !strings.Contains(gen.prompts[1], "did not match the required JSON schema") {
		t.Error("schema correction missing from retry prompt")
	}
}

func TestSynthesizeEndingScene(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{{
		"narrative":      "The lamp goes dark for the last time.",
		"decisions":      []any{"should be dropped"},
		"ending_summary": "She leaves the island.",
	}}}
	critic := &scriptedCritic{critiques: []gate.Critique{{Verdict: gate.VerdictAccept, Scores: highScores}}}
	s := NewSynthesizer(gen, gate.NewGate(critic, gate.DefaultGateConfig()))

	sc, _, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 3, Index: 0, Type: story.SceneEnding, Mode: story.ModeDraft,
		Incoming: []string{"L2_0"},
		Ending:   &story.PlannedEnding{Quality: story.EndingGood, Summary: "The truth comes out."},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !sc.IsEnding || len(sc.Decisions) != 0 {
		t.Fatalf("ending must have no decisions: %+v", sc)
	}
	if sc.EndingQuality != story.EndingGood || sc.EndingSummary != "She leaves the island." {
		t.Fatalf("unexpected ending fields: %q %q", sc.EndingQuality, sc.EndingSummary)
	}
	if len(critic.seen) != 1 {
		t.Fatal("ending scenes are always reviewed")
	}
}

func TestSynthesizeDecisionIdentity(t *testing.T) {
	gen := &scriptedGen{responses: []map[string]any{sceneOutput("Fork.", "A", "B", "C", "D", "E")}}
	s := NewSynthesizer(gen, nil)

	sc, _, err := s.Synthesize(context.Background(), SceneRequest{
		State: newTestState(), Level: 2, Index: 1, Type: story.SceneBranch, Mode: story.ModeDraft,
		Incoming: []string{"L1_0", "L1_1"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sc.ID != "L2_1" || len(sc.Decisions) != MaxDecisions {
		t.Fatalf("unexpected scene %s with %d decisions", sc.ID, len(sc.Decisions))
	}
	for i, d := range sc.Decisions {
		if d.Order != i+1 || d.ID != story.DecisionID("L2_1", i+1) || d.LeadsTo != "" {
			t.Errorf("decision %d: %+v", i, d)
		}
	}
	if len(sc.Incoming) != 2 {
		t.Errorf("incoming not carried: %v", sc.Incoming)
	}
}

func TestSynthesizeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSynthesizer(&scriptedGen{}, nil)
	if _, _, err := s.Synthesize(ctx, SceneRequest{State: newTestState(), Type: story.SceneIntro}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
