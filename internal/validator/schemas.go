package validator

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// PlanSchema is the shape a planner response must have.
var PlanSchema = Schema{
	Name: "plan",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goal": map[string]any{"type": "string"},
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":           map[string]any{"type": "string", "minLength": 1},
						"type":         map[string]any{"type": "string"},
						"description":  map[string]any{"type": "string"},
						"tool_ids":     stringArray(),
						"dependencies": stringArray(),
						"model":        map[string]any{"type": "string"},
					},
					"required": []string{"id", "description"},
				},
			},
		},
		"required": []string{"actions"},
	},
}

// OutputSchema is the shape of an action draft.
var OutputSchema = Schema{
	Name: "action_output",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"primary_output":     map[string]any{"type": "string"},
			"supporting_details": map[string]any{"type": "string"},
		},
		"required": []string{"primary_output"},
	},
}

// ReflectionSchema is the shape of a quality evaluation.
var ReflectionSchema = Schema{
	Name: "reflection",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_successful": map[string]any{"type": "boolean"},
			"quality_score": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"issues":        stringArray(),
			"suggestions":   stringArray(),
			"summary":       map[string]any{"type": "string"},
		},
		"required": []string{"is_successful", "quality_score", "issues", "suggestions"},
	},
}

// ReviewSchema is the fixed shape of the final design review.
var ReviewSchema = Schema{
	Name: "design_review",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request_summary": map[string]any{"type": "string"},
			"work_summary":    map[string]any{"type": "string"},
			"steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action_id":     map[string]any{"type": "string"},
						"step_overview": map[string]any{"type": "string"},
						"strengths":     stringArray(),
						"improvements":  stringArray(),
					},
					"required": []string{"action_id", "step_overview", "strengths", "improvements"},
				},
			},
			"priorities": stringArray(),
		},
		"required": []string{"request_summary", "work_summary", "steps", "priorities"},
	},
}
