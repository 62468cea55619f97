package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Schema is a minimal JSON-Schema subset: object type with required fields,
// per-field type/enum/numeric-range constraints. It exists to validate
// agent output against spec.md's "declare outputs as immutable records"
// contract without pulling in a full JSON-Schema implementation for a
// handful of flat agent response shapes.
type Schema struct {
	Required   []string
	Properties map[string]FieldSchema
}

// FieldSchema constrains one field of a Schema.
type FieldSchema struct {
	Type string // "string", "number", "boolean", "object", "array"
	Enum []string
	Min  *float64
	Max  *float64
}

// Validate reports the first violation of s found in raw, or nil if raw
// satisfies every required field, type, enum, and range constraint.
func (s Schema) Validate(raw json.RawMessage) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("not a JSON object: %w", err)
	}

	for _, field := range s.Required {
		if _, ok := doc[field]; !ok {
			return fmt.Errorf("missing required field %q", field)
		}
	}

	for name, fs := range s.Properties {
		value, present := doc[name]
		if !present {
			continue
		}
		if err := fs.validate(name, value); err != nil {
			return err
		}
	}

	return nil
}

func (fs FieldSchema) validate(name string, value interface{}) error {
	switch fs.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q: expected string", name)
		}
		if len(fs.Enum) > 0 && !containsString(fs.Enum, str) {
			return fmt.Errorf("field %q: %q not in enum %v", name, str, fs.Enum)
		}
	case "number":
		num, ok := value.(float64)
		if !ok {
			return fmt.Errorf("field %q: expected number", name)
		}
		if fs.Min != nil && num < *fs.Min {
			return fmt.Errorf("field %q: %v below minimum %v", name, num, *fs.Min)
		}
		if fs.Max != nil && num > *fs.Max {
			return fmt.Errorf("field %q: %v above maximum %v", name, num, *fs.Max)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q: expected boolean", name)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("field %q: expected object", name)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("field %q: expected array", name)
		}
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// MaxRepairAttempts bounds the re-prompt round-trips InvokeStructured will
// spend asking the model to fix a schema violation before giving up.
const MaxRepairAttempts = 1

// InvokeStructured sends systemPrompt+userPrompt to client, validates the
// response against schema, and — on a single violation — re-prompts once
// with the validation error appended so the model can repair its own
// output, following spec.md §9's "an adapter validates or repairs"
// requirement.
func InvokeStructured(ctx context.Context, client LLMClient, systemPrompt, userPrompt string, schema Schema) (json.RawMessage, error) {
	content, err := client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("invoke structured: %w", err)
	}

	raw, parseErr := extractAndValidate(client, content, schema)
	if parseErr == nil {
		return raw, nil
	}

	for attempt := 0; attempt < MaxRepairAttempts; attempt++ {
		repairPrompt := fmt.Sprintf(
			"Your previous response did not satisfy the required schema: %s\n\nRespond again with a corrected JSON object only.",
			parseErr.Error(),
		)
		content, err = client.CompleteWithSystem(ctx, systemPrompt, userPrompt+"\n\n"+repairPrompt)
		if err != nil {
			return nil, fmt.Errorf("invoke structured: repair attempt failed: %w", err)
		}
		raw, parseErr = extractAndValidate(client, content, schema)
		if parseErr == nil {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("invoke structured: response failed schema validation after repair: %w", parseErr)
}

func extractAndValidate(client LLMClient, content string, schema Schema) (json.RawMessage, error) {
	var doc map[string]interface{}
	if err := client.ParseJSONResponse(content, &doc); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-marshal parsed response: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// DecisionSchema validates the shared Action/Confidence/Reasoning shape
// every intelligence agent's Decision is decoded from.
var DecisionSchema = Schema{
	Required: []string{"action", "confidence", "reasoning"},
	Properties: map[string]FieldSchema{
		"action":     {Type: "string", Enum: []string{"YES", "NO", "NO_OPINION"}},
		"confidence": {Type: "number", Min: floatPtr(0), Max: floatPtr(1)},
		"reasoning":  {Type: "string"},
	},
}

func floatPtr(f float64) *float64 { return &f }
