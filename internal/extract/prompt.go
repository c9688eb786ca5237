package extract

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

const maxPromptText = 12000

// BuildSystemPrompt composes the instructions for one schema variant:
// the field list, number formatting rules and what to do with missing data.
func BuildSystemPrompt(schema rfq.Schema) string {
	keys := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		keys = append(keys, f.Key+" ("+f.Label+")")
	}

	kind := "request for quotation (RFQ)"
	if schema.Variant == rfq.VariantQuotation {
		kind = "supplier quotation"
	}

	parts := []string{
		"You read a " + kind + " and return ONLY a JSON object matching the provided JSON Schema.",
		"Put the complete plain text of the document in 'fullText'.",
		"Put every requested or quoted line into 'items'; each item needs a 'description'.",
		"Use 'richDescription' for long technical specifications and keep 'description' short.",
		"Known metadata keys: " + strings.Join(keys, ", ") + ".",
		"Put the issuing company under metadata.supplier and the addressee under metadata.customer.",
		"Copy numbers exactly as printed, including thousands separators and decimal commas.",
		"Never invent values. If a field is not present, omit it or use null.",
	}
	if schema.Totals {
		parts = append(parts,
			"Include 'unitPrice' and 'totalPrice' per item when printed.",
			"Put subtotal, discount, taxRate (percent), tax, shipping and total under 'totals'.",
		)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and, when no file is attached,
// the document's text layer.
func BuildUserPrompt(src Source, fileAttached bool) string {
	var b strings.Builder
	if name := strings.TrimSpace(src.Filename); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if fileAttached {
		b.WriteString("\nThe document is attached. Read every page.\n")
		return b.String()
	}

	text := strings.TrimSpace(src.Text)
	b.WriteString("\nDocument text:\n")
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

// SchemaPrompt renders the variant's JSON Schema for inclusion in a prompt.
func SchemaPrompt(schema rfq.Schema) string {
	b, _ := json.MarshalIndent(BuildJSONSchema(schema), "", "  ")
	return "JSON Schema:\n" + string(b)
}
