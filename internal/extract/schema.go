package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

// BuildJSONSchema returns the JSON Schema the model is asked to follow for a
// schema variant. It is deliberately looser than the normalizer: numbers may
// be strings and optional values may be null.
func BuildJSONSchema(schema rfq.Schema) map[string]any {
	text := map[string]any{"type": []any{"string", "null"}}
	number := map[string]any{"type": []any{"number", "string", "null"}}

	party := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"companyName": text, "name": text, "address": text, "phone": text,
			"email": text, "website": text, "taxId": text,
		},
	}

	metaProps := map[string]any{
		rfq.KeySupplier: party,
		rfq.KeyCustomer: party,
	}
	for _, f := range schema.Fields {
		metaProps[f.Key] = text
	}

	itemProps := map[string]any{
		"itemNumber":      map[string]any{"type": []any{"string", "number", "null"}},
		"description":     map[string]any{"type": "string", "minLength": 1},
		"richDescription": text,
		"quantity":        number,
		"unit":            text,
		"notes":           text,
	}
	props := map[string]any{
		"fullText": map[string]any{"type": "string", "minLength": 1},
		"metadata": map[string]any{"type": "object", "properties": metaProps},
		"items": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":       "object",
				"properties": itemProps,
				"required":   []any{"description"},
			},
		},
		"remarks": text,
	}
	if schema.Totals {
		itemProps["unitPrice"] = number
		itemProps["totalPrice"] = number
		props["totals"] = map[string]any{
			"type": []any{"object", "null"},
			"properties": map[string]any{
				"subtotal": number, "discount": number, "taxRate": number,
				"tax": number, "shipping": number, "total": number,
			},
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []any{"fullText", "items"},
	}
}

var compiled sync.Map // rfq.Variant -> *jsonschema.Schema

// ValidateJSON checks data against the JSON Schema of schema's variant.
func ValidateJSON(schema rfq.Schema, data []byte) error {
	s, err := compileSchema(schema)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schema rfq.Schema) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(schema.Variant); ok {
		return s.(*jsonschema.Schema), nil
	}
	b, err := json.Marshal(BuildJSONSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := string(schema.Variant) + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled.Store(schema.Variant, s)
	return s, nil
}
