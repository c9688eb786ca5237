package rfq

import (
	"encoding/json"
)

// Document is a normalized RFQ or quotation. Optional values are nil when
// absent; they are never empty strings or non-finite numbers.
type Document struct {
	Variant  Variant  `json:"variant"`
	FullText string   `json:"fullText"`
	Metadata Metadata `json:"metadata"`
	Items    []Item   `json:"items"`
	Totals   *Totals  `json:"totals,omitempty"`
	Remarks  *string  `json:"remarks,omitempty"`
}

// Party is a supplier or customer contact block.
type Party struct {
	CompanyName *string `json:"companyName,omitempty"`
	Name        *string `json:"name,omitempty"`
	Address     *string `json:"address,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Website     *string `json:"website,omitempty"`
	TaxID       *string `json:"taxId,omitempty"`
}

// IsEmpty reports whether no field of the party is present.
func (p *Party) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, f := range []*string{p.CompanyName, p.Name, p.Address, p.Phone, p.Email, p.Website, p.TaxID} {
		if f != nil {
			return false
		}
	}
	return true
}

// Item is one requested or quoted line.
type Item struct {
	ItemNumber      *string  `json:"itemNumber,omitempty"`
	Description     string   `json:"description"`
	RichDescription *string  `json:"richDescription,omitempty"`
	Quantity        *float64 `json:"quantity,omitempty"`
	Unit            *string  `json:"unit,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	UnitPrice       *float64 `json:"unitPrice,omitempty"`
	TotalPrice      *float64 `json:"totalPrice,omitempty"`
}

// Totals is the money summary of a quotation.
type Totals struct {
	Subtotal *float64 `json:"subtotal,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
	TaxRate  *float64 `json:"taxRate,omitempty"`
	Tax      *float64 `json:"tax,omitempty"`
	Shipping *float64 `json:"shipping,omitempty"`
	Total    *float64 `json:"total,omitempty"`
}

func (t *Totals) isEmpty() bool {
	return t.Subtotal == nil && t.Discount == nil && t.TaxRate == nil &&
		t.Tax == nil && t.Shipping == nil && t.Total == nil
}

// Metadata holds the party blocks and the business terms of a document.
// Terms only contains present values, keyed by the schema's field keys.
type Metadata struct {
	Supplier *Party
	Customer *Party
	Terms    map[string]string
}

// Term returns the value of a business term and whether it is present.
func (m Metadata) Term(key string) (string, bool) {
	v, ok := m.Terms[key]
	return v, ok
}

// MarshalJSON flattens terms next to the party blocks, matching the wire
// shape the normalizer accepts.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Terms)+2)
	for k, v := range m.Terms {
		out[k] = v
	}
	if m.Supplier != nil {
		out[KeySupplier] = m.Supplier
	}
	if m.Customer != nil {
		out[KeyCustomer] = m.Customer
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. It performs no validation;
// untrusted input goes through a Normalizer instead.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Metadata{Terms: make(map[string]string, len(raw))}
	for k, v := range raw {
		switch k {
		case KeySupplier:
			if err := json.Unmarshal(v, &m.Supplier); err != nil {
				return err
			}
		case KeyCustomer:
			if err := json.Unmarshal(v, &m.Customer); err != nil {
				return err
			}
		default:
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				m.Terms[k] = s
			}
		}
	}
	return nil
}
