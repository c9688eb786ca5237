// Package rfq turns loosely typed extraction output into validated,
// defaulted RFQ and quotation documents.
package rfq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
)

// Result is the outcome of one normalization pass. Exactly one of Document
// and Violations is set. Warnings list soft misses that degraded to absent.
type Result struct {
	Document   *Document
	Violations []common.FieldError
	Warnings   []string
}

// OK reports whether the pass produced a document.
func (r Result) OK() bool {
	return r.Document != nil && len(r.Violations) == 0
}

// Err returns nil for a successful pass and a *common.ValidationError otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &common.ValidationError{Errors: r.Violations}
}

// Normalizer validates and defaults documents for one Schema.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	schema Schema
}

func NewNormalizer(schema Schema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Schema returns the schema the normalizer was built with.
func (n *Normalizer) Schema() Schema {
	return n.schema
}

// Normalize returns a valid document or a *common.ValidationError listing
// every violated invariant.
func (n *Normalizer) Normalize(raw any) (*Document, error) {
	res := n.Validate(raw)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Document, nil
}

// NormalizeJSON is Normalize for an encoded payload.
func (n *Normalizer) NormalizeJSON(b []byte) (*Document, error) {
	return n.Normalize(json.RawMessage(b))
}

// ValidateJSON is Validate for an encoded payload.
func (n *Normalizer) ValidateJSON(b []byte) Result {
	return n.Validate(json.RawMessage(b))
}

// Validate runs a full normalization pass. raw may be decoded JSON
// (map[string]any), encoded JSON ([]byte, json.RawMessage) or any value
// that marshals to JSON, such as a *Document.
func (n *Normalizer) Validate(raw any) Result {
	p := &pass{v: common.NewValidator()}

	generic, err := toGeneric(raw)
	if err != nil {
		p.v.Add("document", nil, "invalid JSON: "+err.Error())
		return p.result(nil)
	}
	root, ok := generic.(map[string]any)
	if !ok {
		p.v.Add("document", generic, "must be an object")
		return p.result(nil)
	}

	fullText, _ := root["fullText"].(string)
	if strings.TrimSpace(fullText) == "" {
		p.v.Add("fullText", root["fullText"], "must be a non-empty string")
	}

	meta := n.metadata(root["metadata"], p)
	items := n.items(root["items"], p)
	remarks := NormalizeText(root["remarks"])

	if p.v.HasErrors() {
		return p.result(nil)
	}

	doc := &Document{
		Variant:  n.schema.Variant,
		FullText: fullText,
		Metadata: meta,
		Items:    items,
		Remarks:  remarks,
	}
	if n.schema.Totals {
		doc.Totals = n.totals(root["totals"], items, p)
	} else if root["totals"] != nil {
		p.warnf("totals: not part of the %s variant, ignored", n.schema.Variant)
	}
	return p.result(doc)
}

func (n *Normalizer) metadata(raw any, p *pass) Metadata {
	m := Metadata{Terms: make(map[string]string, len(n.schema.Fields))}

	var obj map[string]any
	switch t := raw.(type) {
	case nil:
	case map[string]any:
		obj = t
	default:
		p.v.Add("metadata", raw, "must be an object")
	}

	m.Supplier = p.party("metadata."+KeySupplier, obj[KeySupplier])
	m.Customer = p.party("metadata."+KeyCustomer, obj[KeyCustomer])

	for _, f := range n.schema.Fields {
		if s := NormalizeText(obj[f.Key]); s != nil {
			m.Terms[f.Key] = *s
			continue
		}
		if !isBlank(obj[f.Key]) {
			p.warnf("metadata.%s: expected text, got %T", f.Key, obj[f.Key])
		}
		if f.Default != "" {
			m.Terms[f.Key] = f.Default
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if k == KeySupplier || k == KeyCustomer {
			continue
		}
		if _, known := n.schema.Field(k); !known {
			p.warnf("metadata.%s: not a recognized %s field, dropped", k, n.schema.Variant)
		}
	}
	return m
}

func (n *Normalizer) items(raw any, p *pass) []Item {
	list, ok := raw.([]any)
	switch {
	case raw == nil:
		p.v.Add("items", nil, "is required; at least one item must be provided")
		return nil
	case !ok:
		p.v.Add("items", raw, "must be an array of items")
		return nil
	case len(list) == 0:
		p.v.Add("items", list, "no item found; at least one item must be provided")
		return nil
	}

	out := make([]Item, 0, len(list))
	for i, rawItem := range list {
		field := fmt.Sprintf("items[%d]", i)
		obj, ok := rawItem.(map[string]any)
		if !ok {
			p.v.Add(field, rawItem, "must be an object")
			continue
		}
		desc := NormalizeText(obj["description"])
		if desc == nil {
			p.v.Add(field+".description", obj["description"], fmt.Sprintf("item %d has no description", i+1))
			continue
		}
		item := Item{
			ItemNumber:      NormalizeText(obj["itemNumber"]),
			Description:     *desc,
			RichDescription: NormalizeText(obj["richDescription"]),
			Quantity:        p.number(field+".quantity", obj["quantity"]),
			Unit:            NormalizeText(obj["unit"]),
			Notes:           NormalizeText(obj["notes"]),
		}
		if n.schema.Totals {
			item.UnitPrice = p.number(field+".unitPrice", obj["unitPrice"])
			item.TotalPrice = p.number(field+".totalPrice", obj["totalPrice"])
			deriveItemTotal(&item)
		}
		out = append(out, item)
	}
	return out
}

func (n *Normalizer) totals(raw any, items []Item, p *pass) *Totals {
	obj, ok := raw.(map[string]any)
	if !ok && raw != nil {
		p.warnf("totals: expected an object, got %T", raw)
	}
	t := &Totals{
		Subtotal: p.number("totals.subtotal", obj["subtotal"]),
		Discount: p.number("totals.discount", obj["discount"]),
		TaxRate:  p.number("totals.taxRate", obj["taxRate"]),
		Tax:      p.number("totals.tax", obj["tax"]),
		Shipping: p.number("totals.shipping", obj["shipping"]),
		Total:    p.number("totals.total", obj["total"]),
	}
	deriveTotals(t, items)
	if t.isEmpty() {
		return nil
	}
	return t
}

// pass carries the per-call validator and warnings.
type pass struct {
	v        *common.Validator
	warnings []string
}

func (p *pass) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *pass) number(field string, raw any) *float64 {
	f := CoerceNumber(raw)
	if f == nil && !isBlank(raw) {
		p.warnf("%s: %v is not a number", field, raw)
	}
	return f
}

func (p *pass) party(field string, raw any) *Party {
	if raw == nil {
		return nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		p.warnf("%s: expected an object, got %T", field, raw)
		return nil
	}
	party := &Party{
		CompanyName: NormalizeText(obj["companyName"]),
		Name:        NormalizeText(obj["name"]),
		Address:     NormalizeText(obj["address"]),
		Phone:       NormalizeText(obj["phone"]),
		Email:       NormalizeText(obj["email"]),
		Website:     NormalizeText(obj["website"]),
		TaxID:       NormalizeText(obj["taxId"]),
	}
	if party.IsEmpty() {
		return nil
	}
	return party
}

func (p *pass) result(doc *Document) Result {
	if p.v.HasErrors() {
		return Result{Violations: p.v.Errors(), Warnings: p.warnings}
	}
	return Result{Document: doc, Warnings: p.warnings}
}

func toGeneric(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, map[string]any, []any, string, bool, float64, json.Number:
		return v, nil
	case json.RawMessage:
		return decodeJSON(v)
	case []byte:
		return decodeJSON(v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return decodeJSON(b)
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
