package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSanitize_RenamesSynonyms(t *testing.T) {
	in := []byte("```json\n" + `{
		"text": "RFQ 42",
		"supplier": {"companyName": "ACME"},
		"metadata": {"incoterms": "DAP", "deliveryTerms": "EXW", "buyer": {"name": "Jane"}},
		"lineItems": [{"qty": "1.234,5", "desc": "Pump", "price": 10}],
		"items_extra": true
	}` + "\n```")

	out, renamed, err := Sanitize(in, quietLogger())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"fullText": "RFQ 42",
		"metadata": {
			"supplier": {"companyName": "ACME"},
			"customer": {"name": "Jane"},
			"incoterms": "DAP",
			"deliveryTerms": "EXW"
		},
		"items": [{"quantity": "1.234,5", "description": "Pump", "unitPrice": 10}],
		"items_extra": true
	}`, string(out))
	assert.ElementsMatch(t, []string{
		"text->fullText",
		"lineItems->items",
		"supplier->metadata.supplier",
		"metadata.buyer->customer",
		"items[0].desc->description",
		"items[0].price->unitPrice",
		"items[0].qty->quantity",
	}, renamed)
}

func TestSanitize_KeepsNumbersVerbatim(t *testing.T) {
	out, renamed, err := Sanitize([]byte(`{"items":[{"quantity":12345678901234567890}]}`), nil)
	require.NoError(t, err)
	assert.Empty(t, renamed)
	assert.Contains(t, string(out), "12345678901234567890")

	_, _, err = Sanitize([]byte(`not json`), nil)
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(StripCodeFence([]byte("```json\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(StripCodeFence([]byte("```{\"a\":1}```"))))
	assert.Equal(t, `{"a":1}`, string(StripCodeFence([]byte("  {\"a\":1}\n"))))
}

func TestValidateJSON(t *testing.T) {
	ok := []byte(`{"fullText":"x","metadata":{"currency":null},"items":[{"description":"Pump","quantity":"2"}]}`)
	assert.NoError(t, ValidateJSON(rfq.RFQSchema(), ok))

	missing := []byte(`{"fullText":"x","items":[]}`)
	assert.Error(t, ValidateJSON(rfq.RFQSchema(), missing))

	priced := []byte(`{"fullText":"x","items":[{"description":"Pump","unitPrice":"10,50"}],"totals":{"total":12}}`)
	assert.NoError(t, ValidateJSON(rfq.QuotationSchema(), priced))
	assert.Error(t, ValidateJSON(rfq.QuotationSchema(), []byte(`{`)))
}

func TestBuildPrompts(t *testing.T) {
	sys := BuildSystemPrompt(rfq.QuotationSchema())
	assert.Contains(t, sys, "supplier quotation")
	assert.Contains(t, sys, "unitPrice")
	assert.NotContains(t, BuildSystemPrompt(rfq.RFQSchema()), "unitPrice")

	user := BuildUserPrompt(Source{Filename: "rfq.pdf", Text: "Pump 2 pcs"}, false)
	assert.Contains(t, user, "Filename: rfq.pdf")
	assert.Contains(t, user, "Pump 2 pcs")
	assert.NotContains(t, BuildUserPrompt(Source{Text: "Pump"}, true), "Pump")
}

type countingExtractor struct {
	calls atomic.Int32
	err   error
}

func (c *countingExtractor) Extract(context.Context, Source) (Raw, error) {
	c.calls.Add(1)
	if c.err != nil {
		return Raw{}, c.err
	}
	return Raw{JSON: []byte(`{"fullText":"x"}`), Model: "test-model"}, nil
}

func TestWithCache(t *testing.T) {
	next := &countingExtractor{}
	ex := WithCache(next, NewMemoryCache(), time.Hour, quietLogger())
	ctx := context.Background()
	src := Source{Filename: "a.pdf", Data: []byte("pdf"), Variant: rfq.VariantRFQ}

	first, err := ex.Extract(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	renamed := src
	renamed.Filename = "copy-of-a.pdf"
	second, err := ex.Extract(ctx, renamed)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.JSON, second.JSON)
	assert.Equal(t, int32(1), next.calls.Load())

	quote := src
	quote.Variant = rfq.VariantQuotation
	_, err = ex.Extract(ctx, quote)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestWithCache_ErrorsAreNotCached(t *testing.T) {
	next := &countingExtractor{err: errors.New("upstream down")}
	ex := WithCache(next, NewMemoryCache(), time.Hour, quietLogger())
	for i := 0; i < 2; i++ {
		_, err := ex.Extract(context.Background(), Source{Data: []byte("x")})
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestWithRateLimit(t *testing.T) {
	next := &countingExtractor{}
	ex := WithRateLimit(next, rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := ex.Extract(context.Background(), Source{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ex.Extract(ctx, Source{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), next.calls.Load())

	assert.Equal(t, rate.Inf, PerMinute(0).Limit())
}
