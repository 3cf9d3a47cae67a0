package interview

// JSONSchema returns the JSON Schema document for kind, in the draft form
// accepted by OpenAI json_schema response formats and Ollama's format field.
func JSONSchema(kind SchemaKind) map[string]any {
	switch kind {
	case SchemaReview:
		return reviewJSONSchema()
	default:
		return questionJSONSchema()
	}
}

func questionJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence": map[string]any{
				"type":        "integer",
				"description": "Question order, starting at 1.",
			},
			"next_question": map[string]any{
				"type":        "string",
				"description": "Reaction to the previous answer followed by the next interview question.",
			},
			"face": map[string]any{
				"type":        "string",
				"description": "Interviewer facial expression.",
				"enum":        ExpressionNames(),
			},
			"before_user_answer": map[string]any{
				"type":        []string{"string", "null"},
				"description": "The candidate's previous answer, copied verbatim.",
			},
			"is_followup": map[string]any{
				"type":        "boolean",
				"description": "True when probing the previous answer further, false for a new topic.",
			},
			"fin": map[string]any{
				"type":        "boolean",
				"description": "True only when the interview should end now.",
			},
		},
		"required": []string{"next_question", "face"},
	}
}

// ReviewScoreTypes are the score categories of an overall review.
var ReviewScoreTypes = []string{
	"OVERALL",
	"RESPONSE_ACCURACY",
	"SPEAKING_PACE",
	"VOCABULARY_QUALITY",
	"PRONUNCIATION_ACCURACY",
}

func reviewJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":      map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"evaluation": map[string]any{"type": "string"},
		},
		"required": []string{"score", "evaluation"},
	}
	scores := make(map[string]any, len(ReviewScoreTypes))
	for _, st := range ReviewScoreTypes {
		scores[st] = item
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_review": map[string]any{"type": "string"},
			"scores": map[string]any{
				"type":       "object",
				"properties": scores,
				"required":   ReviewScoreTypes,
			},
		},
		"required": []string{"overall_review", "scores"},
	}
}
