package rfq

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
)

func sampleRFQ() map[string]any {
	return map[string]any{
		"fullText": "doc",
		"metadata": map[string]any{
			"supplier": map[string]any{
				"companyName": "ACME Corp",
				"email":       "   ",
			},
			"rfqNumber": " RFQ-77 ",
			"packing":   "",
		},
		"items": []any{
			map[string]any{
				"description": "Widget",
				"quantity":    "1,250.50",
				"notes":       "   ",
			},
		},
		"remarks": "",
	}
}

func TestNormalize_EndToEnd(t *testing.T) {
	doc, err := NewNormalizer(RFQSchema()).Normalize(sampleRFQ())
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, VariantRFQ, doc.Variant)
	assert.Equal(t, "doc", doc.FullText)
	assert.Equal(t, "Export seaworthy", doc.Metadata.Terms[KeyPacking])
	assert.Equal(t, "RFQ-77", doc.Metadata.Terms[KeyRFQNumber])

	require.NotNil(t, doc.Metadata.Supplier)
	assert.Equal(t, "ACME Corp", *doc.Metadata.Supplier.CompanyName)
	assert.Nil(t, doc.Metadata.Supplier.Email)
	assert.Nil(t, doc.Metadata.Customer)

	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Widget", doc.Items[0].Description)
	require.NotNil(t, doc.Items[0].Quantity)
	assert.InDelta(t, 1250.5, *doc.Items[0].Quantity, 1e-9)
	assert.Nil(t, doc.Items[0].Notes)
	assert.Nil(t, doc.Remarks)
	assert.Nil(t, doc.Totals)
}

func TestNormalize_EmptyDocumentFails(t *testing.T) {
	raw := map[string]any{"fullText": "", "metadata": map[string]any{}, "items": []any{}}

	doc, err := NewNormalizer(RFQSchema()).Normalize(raw)
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, common.ErrValidation)

	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors, 2)
	assert.Equal(t, "fullText", ve.Errors[0].Field)
	assert.Equal(t, "items", ve.Errors[1].Field)
	assert.Contains(t, err.Error(), "fullText")
	assert.Contains(t, err.Error(), "no item found")
}

func TestNormalize_ReportsEveryViolation(t *testing.T) {
	raw := map[string]any{
		"fullText": "   ",
		"items": []any{
			map[string]any{"description": "  "},
			map[string]any{"description": "Valve"},
			"not an item",
			map[string]any{"quantity": 3},
		},
	}

	res := NewNormalizer(RFQSchema()).Validate(raw)
	assert.False(t, res.OK())
	assert.Nil(t, res.Document)

	fields := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		fields = append(fields, v.Field)
	}
	assert.Equal(t, []string{"fullText", "items[0].description", "items[2]", "items[3].description"}, fields)
	assert.Contains(t, res.Err().Error(), "item 4 has no description")
}

func TestNormalize_MissingItems(t *testing.T) {
	_, err := NewNormalizer(RFQSchema()).Normalize(map[string]any{"fullText": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items: is required")

	_, err = NewNormalizer(RFQSchema()).Normalize(map[string]any{"fullText": "x", "items": "Widget"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items: must be an array")
}

func TestNormalize_MetadataMustBeObject(t *testing.T) {
	raw := map[string]any{
		"fullText": "x",
		"metadata": []any{"packing"},
		"items":    []any{map[string]any{"description": "Widget"}},
	}
	_, err := NewNormalizer(RFQSchema()).Normalize(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata: must be an object")
}

func TestNormalize_DefaultsOnEmptyMetadata(t *testing.T) {
	schema := RFQSchema()
	for _, metadata := range []any{map[string]any{}, nil} {
		raw := map[string]any{
			"fullText": "x",
			"metadata": metadata,
			"items":    []any{map[string]any{"description": "Widget"}},
		}
		doc, err := NewNormalizer(schema).Normalize(raw)
		require.NoError(t, err)

		assert.Equal(t, schema.Defaults(), doc.Metadata.Terms)
		for _, key := range []string{KeyRFQNumber, KeyRFQDate, KeySubject, KeyResponseDeadline, KeyReference} {
			_, ok := doc.Metadata.Term(key)
			assert.False(t, ok, key)
		}
		assert.Nil(t, doc.Metadata.Supplier)
	}
}

func TestNormalize_CallerOverrideKept(t *testing.T) {
	raw := map[string]any{
		"fullText": "x",
		"metadata": map[string]any{
			"packing":  "  Wooden crates ",
			"currency": nil,
		},
		"items": []any{map[string]any{"description": "Widget"}},
	}
	doc, err := NewNormalizer(RFQSchema()).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Wooden crates", doc.Metadata.Terms[KeyPacking])
	assert.Equal(t, "EUR", doc.Metadata.Terms[KeyCurrency])
}

func TestNormalize_SoftMissesBecomeWarnings(t *testing.T) {
	raw := map[string]any{
		"fullText": "x",
		"metadata": map[string]any{
			"customer":  "ACME",
			"colour":    "red",
			"rfqNumber": true,
		},
		"items": []any{map[string]any{"description": "Widget", "quantity": "a few"}},
	}
	res := NewNormalizer(RFQSchema()).Validate(raw)
	require.True(t, res.OK())

	assert.Nil(t, res.Document.Items[0].Quantity)
	assert.Nil(t, res.Document.Metadata.Customer)
	_, ok := res.Document.Metadata.Term("colour")
	assert.False(t, ok)
	_, ok = res.Document.Metadata.Term(KeyRFQNumber)
	assert.False(t, ok)

	assert.Len(t, res.Warnings, 4)
	assert.Contains(t, res.Warnings, `items[0].quantity: a few is not a number`)
	assert.Contains(t, res.Warnings, `metadata.colour: not a recognized rfq field, dropped`)
}

func TestNormalize_BlankPartyIsAbsent(t *testing.T) {
	raw := map[string]any{
		"fullText": "x",
		"metadata": map[string]any{
			"supplier": map[string]any{"companyName": " ", "email": nil},
			"customer": map[string]any{"name": " Jane Doe ", "taxId": "DE123"},
		},
		"items": []any{map[string]any{"description": "Widget"}},
	}
	doc, err := NewNormalizer(RFQSchema()).Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, doc.Metadata.Supplier)
	require.NotNil(t, doc.Metadata.Customer)
	assert.Equal(t, "Jane Doe", *doc.Metadata.Customer.Name)
	assert.Equal(t, "DE123", *doc.Metadata.Customer.TaxID)
}

func TestNormalize_RFQIgnoresPrices(t *testing.T) {
	raw := map[string]any{
		"fullText": "x",
		"items":    []any{map[string]any{"description": "Widget", "unitPrice": "5", "itemNumber": 10}},
		"totals":   map[string]any{"total": 5},
	}
	res := NewNormalizer(RFQSchema()).Validate(raw)
	require.True(t, res.OK())
	assert.Nil(t, res.Document.Items[0].UnitPrice)
	assert.Equal(t, "10", *res.Document.Items[0].ItemNumber)
	assert.Nil(t, res.Document.Totals)
	assert.Contains(t, res.Warnings, "totals: not part of the rfq variant, ignored")
}

func TestNormalize_QuotationDerivesTotals(t *testing.T) {
	raw := map[string]any{
		"fullText": "quote",
		"items": []any{
			map[string]any{"description": "Pump", "quantity": "2", "unitPrice": "10,50"},
			map[string]any{"description": "Seal kit", "quantity": 1, "unitPrice": 5, "totalPrice": 4.99},
		},
		"totals": map[string]any{"taxRate": 19, "discount": "0.99", "shipping": "5"},
	}
	doc, err := NewNormalizer(QuotationSchema()).Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, VariantQuotation, doc.Variant)
	assert.Equal(t, "30 days", doc.Metadata.Terms[KeyValidity])
	assert.InDelta(t, 21.0, *doc.Items[0].TotalPrice, 1e-9)
	assert.InDelta(t, 4.99, *doc.Items[1].TotalPrice, 1e-9)

	require.NotNil(t, doc.Totals)
	assert.InDelta(t, 25.99, *doc.Totals.Subtotal, 1e-9)
	assert.InDelta(t, 4.75, *doc.Totals.Tax, 1e-9)
	assert.InDelta(t, 34.75, *doc.Totals.Total, 1e-9)
}

func TestNormalize_QuotationWithoutPrices(t *testing.T) {
	raw := map[string]any{
		"fullText": "quote",
		"items": []any{
			map[string]any{"description": "Pump", "unitPrice": "10"},
			map[string]any{"description": "Seal kit"},
		},
	}
	doc, err := NewNormalizer(QuotationSchema()).Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, doc.Items[0].TotalPrice)
	assert.Nil(t, doc.Totals)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []struct {
		name   string
		schema Schema
		raw    map[string]any
	}{
		{name: "rfq", schema: RFQSchema(), raw: sampleRFQ()},
		{
			name:   "quotation",
			schema: QuotationSchema(),
			raw: map[string]any{
				"fullText": "  keeps its own spacing ",
				"metadata": map[string]any{
					"supplier":    map[string]any{"companyName": "ACME", "phone": "+49 30 1234"},
					"quoteNumber": 2024,
				},
				"items": []any{
					map[string]any{"itemNumber": "1.1", "description": "Pump", "quantity": "3", "unitPrice": "1.234,56", "unit": "pcs"},
				},
				"totals":  map[string]any{"taxRate": "7", "shipping": 12.3},
				"remarks": " urgent ",
			},
		},
	}

	for _, tt := range inputs {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(tt.schema)
			first, err := n.Normalize(tt.raw)
			require.NoError(t, err)

			encoded, err := json.Marshal(first)
			require.NoError(t, err)

			second, err := n.NormalizeJSON(encoded)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			third, err := n.Normalize(second)
			require.NoError(t, err)
			assert.Equal(t, first, third)
		})
	}
}

func TestNormalizeJSON_ItemNumberKeepsLiteral(t *testing.T) {
	n := NewNormalizer(RFQSchema())

	doc, err := n.NormalizeJSON([]byte(`{"fullText": "doc", "items": [
		{"itemNumber": 1.10, "description": "Flange"},
		{"itemNumber": 12345678901234567890, "description": "Gasket"}
	]}`))
	require.NoError(t, err)
	require.Len(t, doc.Items, 2)
	require.NotNil(t, doc.Items[0].ItemNumber)
	require.NotNil(t, doc.Items[1].ItemNumber)
	assert.Equal(t, "1.10", *doc.Items[0].ItemNumber)
	assert.Equal(t, "12345678901234567890", *doc.Items[1].ItemNumber)
}

func TestNormalizeJSON_InvalidInput(t *testing.T) {
	n := NewNormalizer(RFQSchema())

	_, err := n.NormalizeJSON([]byte(`{"fullText": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document: invalid JSON")

	res := n.ValidateJSON([]byte(`[1, 2]`))
	require.False(t, res.OK())
	assert.Equal(t, "document", res.Violations[0].Field)
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	n := NewNormalizer(RFQSchema())
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := n.Normalize(sampleRFQ())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
