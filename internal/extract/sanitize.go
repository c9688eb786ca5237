package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

var (
	rootSynonyms = map[string]string{
		"text":       "fullText",
		"full_text":  "fullText",
		"lineItems":  "items",
		"line_items": "items",
		"positions":  "items",
		"meta":       "metadata",
		"remark":     "remarks",
		"comments":   "remarks",
		"summary":    "totals",
	}
	metadataSynonyms = map[string]string{
		"supplierInfo":    rfq.KeySupplier,
		"vendor":          rfq.KeySupplier,
		"seller":          rfq.KeySupplier,
		"customerInfo":    rfq.KeyCustomer,
		"buyer":           rfq.KeyCustomer,
		"incoterms":       rfq.KeyDeliveryTerms,
		"payment":         rfq.KeyPaymentTerms,
		"warranty":        rfq.KeyGuarantee,
		"countryOfOrigin": rfq.KeyOrigin,
		"leadTime":        rfq.KeyDeliveryTime,
		"project":         rfq.KeyProject,
	}
	itemSynonyms = map[string]string{
		"qty":        "quantity",
		"uom":        "unit",
		"desc":       "description",
		"name":       "description",
		"pos":        "itemNumber",
		"position":   "itemNumber",
		"item_no":    "itemNumber",
		"price":      "unitPrice",
		"unit_price": "unitPrice",
		"total":      "totalPrice",
		"lineTotal":  "totalPrice",
		"remark":     "notes",
		"specs":      "richDescription",
	}
)

// Sanitize is a lenient pre-pass over model output. It strips Markdown code
// fences, moves party blocks the model put at the root into metadata and
// renames common synonyms to the wire names the normalizer reads. It never
// drops values; the normalizer decides what is usable. The returned slice
// lists every rename as "from->to".
func Sanitize(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(StripCodeFence(raw)))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	renamed := make([]string, 0, 4)
	rename(m, rootSynonyms, "", &renamed)

	meta, _ := m["metadata"].(map[string]any)
	for _, k := range []string{rfq.KeySupplier, rfq.KeyCustomer} {
		if v, ok := m[k]; ok {
			if meta == nil {
				meta = map[string]any{}
				m["metadata"] = meta
			}
			if _, exists := meta[k]; !exists {
				meta[k] = v
			}
			delete(m, k)
			renamed = append(renamed, k+"->metadata."+k)
		}
	}
	if meta != nil {
		rename(meta, metadataSynonyms, "metadata.", &renamed)
	}

	if items, ok := m["items"].([]any); ok {
		for i, it := range items {
			if obj, ok := it.(map[string]any); ok {
				rename(obj, itemSynonyms, fmt.Sprintf("items[%d].", i), &renamed)
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, renamed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(renamed) > 0 {
		logger.Warn("extract.sanitize.renamed", "renamed", renamed)
	}
	return out, renamed, nil
}

// rename moves synonym keys to their canonical name without overwriting a
// value already present under the canonical key.
func rename(m map[string]any, synonyms map[string]string, prefix string, renamed *[]string) {
	for _, from := range slices.Sorted(maps.Keys(synonyms)) {
		to := synonyms[from]
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[to]; exists {
			continue
		}
		m[to] = v
		delete(m, from)
		*renamed = append(*renamed, prefix+from+"->"+to)
	}
}

// StripCodeFence removes a surrounding ```json ... ``` block, if any.
func StripCodeFence(b []byte) []byte {
	s := bytes.TrimSpace(b)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = s[3:]
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = bytes.TrimPrefix(s, []byte("json"))
	}
	s = bytes.TrimSpace(s)
	s = bytes.TrimSuffix(s, []byte("```"))
	return bytes.TrimSpace(s)
}
