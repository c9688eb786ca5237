package render

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

func quotation(t *testing.T, items int) *rfq.Document {
	t.Helper()
	list := make([]any, 0, items)
	for i := 0; i < items; i++ {
		list = append(list, map[string]any{
			"description":     "Centrifugal pump",
			"richDescription": "Stainless steel housing, 400 V, 50 Hz, flow 12 m³/h",
			"quantity":        2,
			"unit":            "pcs",
			"unitPrice":       "1.250,00",
		})
	}
	doc, err := rfq.NewNormalizer(rfq.QuotationSchema()).Normalize(map[string]any{
		"fullText": "quote",
		"metadata": map[string]any{
			"quoteNumber": "Q-2024-001",
			"supplier":    map[string]any{"companyName": "Nordic Pumps GmbH", "address": "Hafenstraße 1\n20457 Hamburg"},
			"customer":    map[string]any{"companyName": "ACME"},
		},
		"items":   list,
		"totals":  map[string]any{"taxRate": 19},
		"remarks": "Prices ex works.",
	})
	require.NoError(t, err)
	return doc
}

func pageCount(t *testing.T, b []byte) int {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	return r.NumPage()
}

func TestPDF_Render(t *testing.T) {
	r := NewPDF(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b, err := r.Render(context.Background(), quotation(t, 3), Brand{CompanyName: "Nordic Pumps GmbH", Footer: "Registered in Hamburg"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
	assert.Equal(t, 1, pageCount(t, b))
}

func TestPDF_RenderBreaksPages(t *testing.T) {
	b, err := NewPDF(nil).Render(context.Background(), quotation(t, 60), Brand{})
	require.NoError(t, err)
	assert.Greater(t, pageCount(t, b), 1)
}

func TestPDF_RenderRFQ(t *testing.T) {
	doc, err := rfq.NewNormalizer(rfq.RFQSchema()).Normalize(map[string]any{
		"fullText": "rfq",
		"items":    []any{map[string]any{"description": "Valve"}},
	})
	require.NoError(t, err)

	b, err := NewPDF(nil).Render(context.Background(), doc, Brand{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}

func TestPDF_RenderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDF(nil).Render(ctx, quotation(t, 1), Brand{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewPDF(nil).Render(context.Background(), nil, Brand{})
	assert.Error(t, err)
}
