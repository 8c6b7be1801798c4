package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/codec"
)

// ErrMalformedCritique is returned when a critic response has no usable verdict.
var ErrMalformedCritique = errors.New("malformed critique")

// #region remote-critic

// Critiquer is implemented by codec.CodecClient.
type Critiquer interface {
	Critique(ctx context.Context, in codec.CritiqueRequest) (map[string]any, error)
}

// RemoteCritic delegates review to the critic service.
type RemoteCritic struct {
	client Critiquer
}

// NewRemoteCritic wraps a critic service client.
func NewRemoteCritic(client Critiquer) *RemoteCritic {
	return &RemoteCritic{client: client}
}

// Evaluate sends the draft to the service and validates the reply.
func (c *RemoteCritic) Evaluate(ctx context.Context, in ReviewInput) (Critique, error) {
	raw, err := c.client.Critique(ctx, codec.CritiqueRequest{
		Content: in.Content,
		Choices: in.Choices,
		Context: in.Context,
		Mode:    string(in.Mode),
	})
	if err != nil {
		return Critique{}, err
	}
	return ParseCritique(raw)
}

// #endregion remote-critic

// #region parse
// ParseCritique validates a raw critic reply. The decision is required and
// matched case-insensitively; every other field falls back to its zero value.
func ParseCritique(raw map[string]any) (Critique, error) {
	var c Critique
	switch strings.ToUpper(strings.TrimSpace(stringField(raw, "decision"))) {
	case "ACCEPT":
		c.Verdict = VerdictAccept
	case "REWRITE":
		c.Verdict = VerdictRewrite
	case "REGENERATE":
		c.Verdict = VerdictRegenerate
	default:
		return Critique{}, fmt.Errorf("%w: decision %v", ErrMalformedCritique, raw["decision"])
	}

	if scores, ok := raw["scores"].(map[string]any); ok {
		c.Scores = make(map[string]float64, len(scores))
		for k, v := range scores {
			if f, ok := v.(float64); ok {
				c.Scores[k] = f
			}
		}
	}
	c.EditedContent = stringField(raw, "edited_content")
	c.Instructions = stringField(raw, "instructions")
	c.Reason = stringField(raw, "reason")
	return c, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// #endregion parse
