package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// BuildReceiptJSONSchema returns the JSON-Schema a serialized Receipt must satisfy.
func BuildReceiptJSONSchema() map[string]any {
	statuses := make([]any, 0, 3)
	for _, s := range constants.AllStatuses() {
		statuses = append(statuses, s)
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"unit_price":  decimalProp(),
			"quantity":    decimalProp(),
			"line_total":  decimalProp(),
			"suspicious":  map[string]any{"type": "boolean"},
			"confidence": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": probabilityProp(),
					"price":       probabilityProp(),
					"quantity":    probabilityProp(),
					"overall":     probabilityProp(),
				},
			},
		},
		"required": []string{"description", "unit_price", "quantity", "line_total", "suspicious"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":       map[string]any{"type": "string", "minLength": 36},
			"currency": map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
			"items":    map[string]any{"type": "array", "items": item},
			"totals": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"subtotal": nullableDecimalProp(),
					"tax":      nullableDecimalProp(),
					"total":    nullableDecimalProp(),
				},
			},
			"confidence_scores": map[string]any{
				"type":                 "object",
				"additionalProperties": probabilityProp(),
			},
			"overall_confidence": probabilityProp(),
			"processing_status":  map[string]any{"type": "string", "enum": statuses},
			"validation_notes":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"handler_used":       map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"id", "currency", "items", "totals", "overall_confidence", "processing_status", "handler_used"},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d+)?$`,
	}
}

func nullableDecimalProp() map[string]any {
	return map[string]any{
		"type":    []string{"string", "null"},
		"pattern": `^-?\d+(\.\d+)?$`,
	}
}

func probabilityProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Validate serializes r and checks it against the receipt schema.
func (r *Receipt) Validate() error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	return ValidateJSONAgainstSchema(BuildReceiptJSONSchema(), data)
}
