package rfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		input    string
		expected Variant
		wantErr  bool
	}{
		{input: "", expected: VariantRFQ},
		{input: " RFQ ", expected: VariantRFQ},
		{input: "quotation", expected: VariantQuotation},
		{input: "Quote", expected: VariantQuotation},
		{input: "invoice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVariant(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSchema_WithDefaults(t *testing.T) {
	base := RFQSchema()
	tenant := base.WithDefaults(map[string]string{
		KeyCurrency:      " USD ",
		KeyOrigin:        "  ",
		KeyDeliveryTime:  "6 weeks",
		"notAKnownField": "ignored",
	})

	assert.Equal(t, "EUR", base.Defaults()[KeyCurrency], "base schema must not change")

	defaults := tenant.Defaults()
	assert.Equal(t, "USD", defaults[KeyCurrency])
	assert.Equal(t, "6 weeks", defaults[KeyDeliveryTime])
	assert.NotContains(t, defaults, KeyOrigin)
	assert.NotContains(t, defaults, "notAKnownField")

	doc, err := NewNormalizer(tenant).Normalize(map[string]any{
		"fullText": "x",
		"items":    []any{map[string]any{"description": "Widget"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", doc.Metadata.Terms[KeyCurrency])
	_, ok := doc.Metadata.Term(KeyOrigin)
	assert.False(t, ok)
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor(VariantQuotation)
	require.NoError(t, err)
	assert.True(t, s.Totals)
	f, ok := s.Field(KeyValidity)
	require.True(t, ok)
	assert.Equal(t, "30 days", f.Default)

	s, err = SchemaFor(VariantRFQ)
	require.NoError(t, err)
	assert.False(t, s.Totals)
	_, ok = s.Field(KeyValidity)
	assert.False(t, ok)

	_, err = SchemaFor("invoice")
	assert.Error(t, err)
}
