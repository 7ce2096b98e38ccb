package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// markEntrySchema describes one mark-keyed element. additionalProperties
// stays open: models report whatever columns the drawing shows.
func markEntrySchema(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mark": map[string]any{
					"type":        "string",
					"description": "Engineering mark identifier, e.g. B1, W18x106",
				},
			},
			"additionalProperties": true,
		},
	}
}

// ResponseSchema is the JSON schema the vision model is asked to follow.
// It doubles as the validation source for strictly parsed output.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schedules": map[string]any{
				"type":        "array",
				"description": "Schedule tables found on the sheet",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"schedule_type": map[string]any{
							"type":        "string",
							"description": "Schedule heading, e.g. BEAM SCHEDULE",
						},
						"rows": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "object"},
						},
					},
				},
			},
			"beams":       markEntrySchema("Beam callouts"),
			"columns":     markEntrySchema("Column callouts"),
			"joists":      markEntrySchema("Joist callouts"),
			"connections": markEntrySchema("Connection details"),
			"foundations": markEntrySchema("Foundation details"),
			"symbols":     markEntrySchema("Legend symbols"),
			"dimensions": map[string]any{
				"type":        "array",
				"description": "Dimension strings with their locations",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"location": map[string]any{"type": "string"},
						"value":    map[string]any{"type": "string"},
						"grid_ref": map[string]any{"type": "string"},
						"element":  map[string]any{"type": "string"},
					},
				},
			},
			"item_counts": map[string]any{
				"type":        "array",
				"description": "Counted item annotations, e.g. (12) 2x10",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"item":  map[string]any{"type": "string"},
						"mark":  map[string]any{"type": "string"},
						"count": map[string]any{"type": "integer"},
					},
				},
			},
		},
	}
}

// ResponseSchemaJSON renders the schema for transport to the runtime.
func ResponseSchemaJSON() json.RawMessage {
	raw, err := json.Marshal(ResponseSchema())
	if err != nil {
		panic(fmt.Sprintf("extraction schema does not serialize: %v", err))
	}
	return raw
}

var (
	compiledSchema     *jsonschema.Schema
	compileSchemaOnce  sync.Once
	compileSchemaError error
)

// Validate checks raw model output against the response schema. Callers use
// the result for logging and metrics only; a schema mismatch never rejects a
// decodable record.
func Validate(raw []byte) error {
	compileSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", bytes.NewReader(ResponseSchemaJSON())); err != nil {
			compileSchemaError = fmt.Errorf("failed to load extraction schema: %w", err)
			return
		}
		compiledSchema, compileSchemaError = compiler.Compile("extraction.json")
	})
	if compileSchemaError != nil {
		return compileSchemaError
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode output for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("output does not match extraction schema: %w", err)
	}
	return nil
}
