package rfq

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// deriveItemTotal fills a missing line total from quantity and unit price.
func deriveItemTotal(it *Item) {
	if it.TotalPrice != nil || it.Quantity == nil || it.UnitPrice == nil {
		return
	}
	it.TotalPrice = money(dec(it.Quantity).Mul(dec(it.UnitPrice)))
}

// deriveTotals fills missing summary values. Values the caller supplied are
// never recomputed, so a second pass over the output changes nothing.
func deriveTotals(t *Totals, items []Item) {
	if t.Subtotal == nil && len(items) > 0 {
		sum := decimal.Zero
		complete := true
		for _, it := range items {
			if it.TotalPrice == nil {
				complete = false
				break
			}
			sum = sum.Add(dec(it.TotalPrice))
		}
		if complete {
			t.Subtotal = money(sum)
		}
	}
	if t.Subtotal == nil {
		return
	}

	base := dec(t.Subtotal).Sub(dec(t.Discount).Abs())
	if t.Tax == nil && t.TaxRate != nil {
		t.Tax = money(base.Mul(dec(t.TaxRate)).Div(hundred))
	}
	if t.Total == nil {
		t.Total = money(base.Add(dec(t.Tax)).Add(dec(t.Shipping)))
	}
}

func dec(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

func money(d decimal.Decimal) *float64 {
	f := d.Round(2).InexactFloat64()
	return &f
}
