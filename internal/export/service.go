package export

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

const (
	itemsSheet = "Items"
	termsSheet = "Terms"
)

// Service produces XLSX workbooks from normalized documents.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ItemsXLSX returns a workbook with one row per item on the "Items" sheet
// and the metadata terms and party blocks on the "Terms" sheet. Absent
// values are left as empty cells.
func (s *Service) ItemsXLSX(doc *rfq.Document) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(termsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	priced := doc.Variant == rfq.VariantQuotation
	headers := []string{"Item", "Description", "Quantity", "Unit", "Notes"}
	if priced {
		headers = append(headers, "Unit Price", "Total Price")
	}
	if err := writeRow(f, itemsSheet, 1, toAny(headers)); err != nil {
		return nil, err
	}

	for i, it := range doc.Items {
		row := []any{str(it.ItemNumber), it.Description, num(it.Quantity), str(it.Unit), str(it.Notes)}
		if priced {
			row = append(row, num(it.UnitPrice), num(it.TotalPrice))
		}
		if err := writeRow(f, itemsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if priced && doc.Totals != nil {
		row := len(doc.Items) + 3
		for _, tl := range []struct {
			label string
			value *float64
		}{
			{"Subtotal", doc.Totals.Subtotal},
			{"Discount", doc.Totals.Discount},
			{"Tax", doc.Totals.Tax},
			{"Shipping", doc.Totals.Shipping},
			{"Total", doc.Totals.Total},
		} {
			if tl.value == nil {
				continue
			}
			if err := writeRow(f, itemsSheet, row, []any{nil, nil, nil, nil, nil, tl.label, *tl.value}); err != nil {
				return nil, err
			}
			row++
		}
	}

	_ = f.SetColWidth(itemsSheet, "A", "A", 10)
	_ = f.SetColWidth(itemsSheet, "B", "B", 48)
	_ = f.SetColWidth(itemsSheet, "C", "D", 12)
	_ = f.SetColWidth(itemsSheet, "E", "E", 32)
	_ = f.SetColWidth(itemsSheet, "F", "G", 14)

	if err := s.writeTerms(f, doc); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"variant", doc.Variant,
		"items", len(doc.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeTerms(f *excelize.File, doc *rfq.Document) error {
	row := 1
	if err := writeRow(f, termsSheet, row, []any{"Field", "Value"}); err != nil {
		return err
	}

	schema, err := rfq.SchemaFor(doc.Variant)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(doc.Metadata.Terms))
	for _, fd := range schema.Fields {
		v, ok := doc.Metadata.Term(fd.Key)
		if !ok {
			continue
		}
		seen[fd.Key] = true
		row++
		if err := writeRow(f, termsSheet, row, []any{fd.Label, v}); err != nil {
			return err
		}
	}
	// Terms outside the stock schema, e.g. from a hand-edited document.
	extra := make([]string, 0)
	for k := range doc.Metadata.Terms {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		row++
		if err := writeRow(f, termsSheet, row, []any{k, doc.Metadata.Terms[k]}); err != nil {
			return err
		}
	}

	for _, p := range []struct {
		label string
		party *rfq.Party
	}{
		{"Supplier", doc.Metadata.Supplier},
		{"Customer", doc.Metadata.Customer},
	} {
		if p.party.IsEmpty() {
			continue
		}
		for _, line := range partyLines(p.party) {
			row++
			if err := writeRow(f, termsSheet, row, []any{p.label + " " + line[0], line[1]}); err != nil {
				return err
			}
		}
	}

	if doc.Remarks != nil {
		row++
		if err := writeRow(f, termsSheet, row, []any{"Remarks", *doc.Remarks}); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(termsSheet, "A", "A", 28)
	_ = f.SetColWidth(termsSheet, "B", "B", 60)
	return nil
}

func partyLines(p *rfq.Party) [][2]string {
	var out [][2]string
	for _, f := range []struct {
		label string
		value *string
	}{
		{"company", p.CompanyName},
		{"contact", p.Name},
		{"address", p.Address},
		{"phone", p.Phone},
		{"email", p.Email},
		{"website", p.Website},
		{"tax ID", p.TaxID},
	} {
		if f.value != nil {
			out = append(out, [2]string{f.label, *f.value})
		}
	}
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func str(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func num(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
