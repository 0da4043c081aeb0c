package prompt

// QuestionAnalysisSchema constrains a question+analysis reply. The analysis
// array length is pinned to the number of remaining candidates so a partial
// judgment cannot slip through.
func QuestionAnalysisSchema(candidateCount int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string"},
			"analysis": map[string]any{
				"type":     "array",
				"minItems": candidateCount,
				"maxItems": candidateCount,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"has_feature": map[string]any{"type": "boolean"},
					},
					"required": []string{"name", "has_feature"},
				},
			},
		},
		"required": []string{"question", "analysis"},
	}
}

// YesNoSchema constrains a single boolean answer.
func YesNoSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "boolean"},
		},
		"required": []string{"answer"},
	}
}
