package rfq

import (
	"fmt"
	"strings"
)

// Variant names one of the document shapes a Normalizer can produce.
type Variant string

const (
	// VariantRFQ is an outgoing request for quotation: items without prices.
	VariantRFQ Variant = "rfq"
	// VariantQuotation is a supplier quotation: priced items plus a totals block.
	VariantQuotation Variant = "quotation"
)

// ParseVariant maps user input to a Variant. Blank input selects VariantRFQ.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(VariantRFQ):
		return VariantRFQ, nil
	case string(VariantQuotation), "quote":
		return VariantQuotation, nil
	}
	return "", fmt.Errorf("unknown document variant %q", s)
}

// Field is a recognized metadata key. Fields with a non-empty Default are
// always present on a normalized document.
type Field struct {
	Key     string
	Label   string
	Default string
}

// Schema parameterizes a Normalizer: which metadata keys are recognized,
// which of them carry defaults, and whether prices and totals are part of
// the document.
type Schema struct {
	Variant Variant
	Fields  []Field
	Totals  bool
}

// Metadata keys shared by both variants.
const (
	KeyRFQNumber        = "rfqNumber"
	KeyRFQDate          = "rfqDate"
	KeyResponseDeadline = "responseDeadline"
	KeyQuoteNumber      = "quoteNumber"
	KeyQuoteDate        = "quoteDate"
	KeyValidity         = "validity"
	KeySubject          = "subject"
	KeyProject          = "projectName"
	KeyReference        = "reference"
	KeyCurrency         = "currency"
	KeyDeliveryTerms    = "deliveryTerms"
	KeyDeliveryTime     = "deliveryTime"
	KeyPaymentTerms     = "paymentTerms"
	KeyPacking          = "packing"
	KeyGuarantee        = "guarantee"
	KeyOrigin           = "origin"
)

// Names of the party blocks inside metadata.
const (
	KeySupplier = "supplier"
	KeyCustomer = "customer"
)

var businessTerms = []Field{
	{Key: KeyCurrency, Label: "Currency", Default: "EUR"},
	{Key: KeyDeliveryTerms, Label: "Delivery terms", Default: "FCA (Incoterms 2020)"},
	{Key: KeyDeliveryTime, Label: "Delivery time"},
	{Key: KeyPaymentTerms, Label: "Payment terms", Default: "30 days net"},
	{Key: KeyPacking, Label: "Packing", Default: "Export seaworthy"},
	{Key: KeyGuarantee, Label: "Guarantee", Default: "12 months"},
	{Key: KeyOrigin, Label: "Origin", Default: "To be stated by supplier"},
}

// RFQSchema returns the request-for-quotation variant with its stock defaults.
func RFQSchema() Schema {
	fields := []Field{
		{Key: KeyRFQNumber, Label: "RFQ number"},
		{Key: KeyRFQDate, Label: "Date"},
		{Key: KeyResponseDeadline, Label: "Response deadline"},
		{Key: KeySubject, Label: "Subject"},
		{Key: KeyProject, Label: "Project"},
		{Key: KeyReference, Label: "Reference"},
	}
	return Schema{Variant: VariantRFQ, Fields: append(fields, businessTerms...)}
}

// QuotationSchema returns the quotation variant: RFQ terms plus prices and totals.
func QuotationSchema() Schema {
	fields := []Field{
		{Key: KeyQuoteNumber, Label: "Quotation number"},
		{Key: KeyQuoteDate, Label: "Date"},
		{Key: KeyValidity, Label: "Validity", Default: "30 days"},
		{Key: KeyRFQNumber, Label: "Your RFQ"},
		{Key: KeySubject, Label: "Subject"},
		{Key: KeyProject, Label: "Project"},
		{Key: KeyReference, Label: "Reference"},
	}
	return Schema{Variant: VariantQuotation, Fields: append(fields, businessTerms...), Totals: true}
}

// SchemaFor returns the stock schema for v.
func SchemaFor(v Variant) (Schema, error) {
	switch v {
	case VariantRFQ, "":
		return RFQSchema(), nil
	case VariantQuotation:
		return QuotationSchema(), nil
	}
	return Schema{}, fmt.Errorf("unknown document variant %q", v)
}

// WithDefaults returns a copy of s whose defaults are replaced by overrides.
// A blank override removes the default for that key; keys the schema does
// not recognize are ignored.
func (s Schema) WithDefaults(overrides map[string]string) Schema {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	for i, f := range fields {
		if v, ok := overrides[f.Key]; ok {
			fields[i].Default = strings.TrimSpace(v)
		}
	}
	s.Fields = fields
	return s
}

// Field looks up a recognized metadata key.
func (s Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults lists every key that carries a default, with its value.
func (s Schema) Defaults() map[string]string {
	out := make(map[string]string)
	for _, f := range s.Fields {
		if f.Default != "" {
			out[f.Key] = f.Default
		}
	}
	return out
}
