package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Ответ оракула проверяется схемой ДО разбора в domain.Decision.
// Генеративные бэкенды часто возвращают почти-правильный JSON;
// такой ответ отклоняется на границе и до ядра не доходит.
const decisionSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "decision",
	"type": "object",
	"required": ["kind"],
	"properties": {
		"kind": {
			"type": "string",
			"enum": ["move", "speak", "pickup", "drop", "checkTasks"]
		},
		"parameters": {
			"type": "object"
		},
		"reasoning": {
			"type": "string"
		}
	},
	"additionalProperties": false
}`

var decisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchemaJSON)

// ValidateDecision прогоняет сырой ответ оракула через схему
func ValidateDecision(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decision is not valid JSON: %w", err)
	}
	if err := decisionSchema.Validate(v); err != nil {
		return fmt.Errorf("decision rejected by schema: %w", err)
	}
	return nil
}
