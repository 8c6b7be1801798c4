package synth

import "github.com/danielpatrickdp/storyforge/go-controller/internal/story"

// #region scene-schema
// SceneSchema describes the JSON object a scene generation must return.
func SceneSchema(ending bool, decisions int) map[string]any {
	props := map[string]any{
		"narrative": map[string]any{"type": "string"},
	}
	required := []any{"narrative"}
	if ending {
		props["ending_summary"] = map[string]any{"type": "string"}
	} else {
		props["decisions"] = map[string]any{
			"type":     "array",
			"minItems": float64(decisions),
			"maxItems": float64(MaxDecisions),
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":             map[string]any{"type": "string"},
					"consequence_hint": map[string]any{"type": "string"},
				},
				"required": []any{"text"},
			},
		}
		required = append(required, "decisions")
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// #endregion scene-schema

// #region world-schema
// WorldRulesSchema describes the world-rule object sized for cfg.
func WorldRulesSchema(cfg story.DiamondConfig) map[string]any {
	qualities := []any{}
	for _, q := range []story.EndingQuality{story.EndingBad, story.EndingNeutral, story.EndingGood, story.EndingBest, story.EndingSecret} {
		qualities = append(qualities, string(q))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":   map[string]any{"type": "string"},
			"setting": map[string]any{"type": "string"},
			"characters": map[string]any{
				"type": "array", "minItems": float64(2), "maxItems": float64(4),
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":         map[string]any{"type": "string"},
						"role":         map[string]any{"type": "string"},
						"relationship": map[string]any{"type": "string"},
					},
					"required": []any{"name", "role"},
				},
			},
			"rules": map[string]any{
				"type": "array", "minItems": float64(3), "maxItems": float64(5),
				"items": map[string]any{"type": "string"},
			},
			"possible_endings": map[string]any{
				"type": "array", "minItems": float64(cfg.MinEndings), "maxItems": float64(cfg.MaxEndings),
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"quality":   map[string]any{"type": "string", "enum": qualities},
						"condition": map[string]any{"type": "string"},
						"summary":   map[string]any{"type": "string"},
					},
					"required": []any{"quality", "summary"},
				},
			},
		},
		"required": []any{"setting", "characters", "rules", "possible_endings"},
	}
}

// #endregion world-schema
