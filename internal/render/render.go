// Package render lays out normalized documents as PDF.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

// Brand is the letterhead printed on every page.
type Brand struct {
	CompanyName string
	Address     string
	Email       string
	Phone       string
	Footer      string
}

// Renderer turns a normalized document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, doc *rfq.Document, brand Brand) ([]byte, error)
}

// PDF renders A4 portrait documents with the core Helvetica font.
type PDF struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewPDF(logger *slog.Logger) *PDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{logger: logger, now: time.Now}
}

const (
	margin   = 15.0
	lineH    = 5.5
	fontName = "Helvetica"
)

// Render expects a document that already went through a Normalizer.
func (p *PDF) Render(ctx context.Context, doc *rfq.Document, brand Brand) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	start := p.now()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := "Request for Quotation"
	if doc.Variant == rfq.VariantQuotation {
		title = "Quotation"
	}
	pdf.SetTitle(title, true)
	if brand.CompanyName != "" {
		pdf.SetAuthor(brand.CompanyName, true)
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontName, "I", 8)
		footer := brand.Footer
		if footer != "" {
			footer += "  |  "
		}
		footer += fmt.Sprintf("Page %d/{nb}", pdf.PageNo())
		pdf.CellFormat(0, 8, tr(footer), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	p.header(pdf, tr, brand, title)
	p.parties(pdf, tr, doc.Metadata)
	p.terms(pdf, tr, doc)
	p.items(pdf, tr, doc)
	if doc.Totals != nil {
		p.totals(pdf, tr, doc.Totals, doc.Metadata.Terms[rfq.KeyCurrency])
	}
	if doc.Remarks != nil {
		pdf.Ln(4)
		pdf.SetFont(fontName, "B", 10)
		pdf.CellFormat(0, lineH, tr("Remarks"), "", 1, "L", false, 0, "")
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, lineH, tr(*doc.Remarks), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		p.logger.Error("render.pdf.error", "error", err)
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	p.logger.Info("render.pdf.ok",
		"variant", doc.Variant,
		"items", len(doc.Items),
		"pages", pdf.PageCount(),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (p *PDF) header(pdf *fpdf.Fpdf, tr func(string) string, brand Brand, title string) {
	if brand.CompanyName != "" {
		pdf.SetFont(fontName, "B", 14)
		pdf.CellFormat(0, 7, tr(brand.CompanyName), "", 1, "L", false, 0, "")
	}
	pdf.SetFont(fontName, "", 9)
	for _, line := range []string{brand.Address, joinNonEmpty("  ", brand.Phone, brand.Email)} {
		if line != "" {
			pdf.CellFormat(0, 4.5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)
	pdf.SetFont(fontName, "B", 18)
	pdf.CellFormat(0, 10, tr(title), "B", 1, "L", false, 0, "")
	pdf.Ln(3)
}

func (p *PDF) parties(pdf *fpdf.Fpdf, tr func(string) string, m rfq.Metadata) {
	blocks := []struct {
		label string
		party *rfq.Party
	}{{"Supplier", m.Supplier}, {"Customer", m.Customer}}

	w := (210 - 2*margin) / 2
	y := pdf.GetY()
	maxY := y
	for i, b := range blocks {
		if b.party.IsEmpty() {
			continue
		}
		pdf.SetXY(margin+float64(i)*w, y)
		pdf.SetFont(fontName, "B", 10)
		pdf.CellFormat(w, lineH, tr(b.label), "", 2, "L", false, 0, "")
		pdf.SetFont(fontName, "", 9)
		for _, line := range partyLines(b.party) {
			pdf.CellFormat(w, 4.5, tr(line), "", 2, "L", false, 0, "")
		}
		if pdf.GetY() > maxY {
			maxY = pdf.GetY()
		}
	}
	pdf.SetXY(margin, maxY)
	pdf.Ln(3)
}

func (p *PDF) terms(pdf *fpdf.Fpdf, tr func(string) string, doc *rfq.Document) {
	schema, err := rfq.SchemaFor(doc.Variant)
	if err != nil {
		return
	}
	for _, f := range schema.Fields {
		v, ok := doc.Metadata.Term(f.Key)
		if !ok {
			continue
		}
		pdf.SetFont(fontName, "B", 9)
		pdf.CellFormat(45, 4.8, tr(f.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(fontName, "", 9)
		pdf.MultiCell(0, 4.8, tr(v), "", "L", false)
	}
	pdf.Ln(3)
}

type column struct {
	title string
	width float64
	align string
}

func (p *PDF) items(pdf *fpdf.Fpdf, tr func(string) string, doc *rfq.Document) {
	priced := doc.Variant == rfq.VariantQuotation
	cols := []column{
		{"Pos.", 14, "L"},
		{"Description", 110, "L"},
		{"Qty", 18, "R"},
		{"Unit", 16, "L"},
	}
	if priced {
		cols[1].width = 66
		cols = append(cols, column{"Unit price", 22, "R"}, column{"Total", 22, "R"})
	}

	pdf.SetFont(fontName, "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, tr(c.title), "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontName, "", 9)
	for i, it := range doc.Items {
		pos := strconv.Itoa(i + 1)
		if it.ItemNumber != nil {
			pos = *it.ItemNumber
		}
		desc := it.Description
		if it.RichDescription != nil {
			desc += "\n" + *it.RichDescription
		}
		if it.Notes != nil {
			desc += "\n" + *it.Notes
		}
		cells := []string{pos, desc, formatNumber(it.Quantity), deref(it.Unit)}
		if priced {
			cells = append(cells, formatMoney(it.UnitPrice), formatMoney(it.TotalPrice))
		}

		descLines := pdf.SplitLines([]byte(tr(desc)), cols[1].width-2)
		h := float64(len(descLines)) * 4.8
		if h < 6 {
			h = 6
		}
		if pdf.GetY()+h > 297-25 {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		for ci, c := range cols {
			if ci == 1 {
				pdf.Rect(x, y, c.width, h, "D")
				pdf.MultiCell(c.width, 4.8, tr(cells[ci]), "", c.align, false)
				pdf.SetXY(x+c.width, y)
			} else {
				pdf.CellFormat(c.width, h, tr(cells[ci]), "1", 0, c.align, false, 0, "")
			}
			x += c.width
		}
		pdf.SetXY(margin, y+h)
	}
	pdf.Ln(2)
}

func (p *PDF) totals(pdf *fpdf.Fpdf, tr func(string) string, t *rfq.Totals, currency string) {
	rows := []struct {
		label string
		value *float64
	}{
		{"Subtotal", t.Subtotal},
		{"Discount", t.Discount},
		{"Tax", t.Tax},
		{"Shipping", t.Shipping},
		{"Total", t.Total},
	}
	if t.TaxRate != nil {
		rows[2].label = "Tax (" + formatNumber(t.TaxRate) + "%)"
	}
	for _, r := range rows {
		if r.value == nil {
			continue
		}
		style := ""
		if r.label == "Total" {
			style = "B"
		}
		pdf.SetFont(fontName, style, 10)
		pdf.CellFormat(140, lineH, tr(r.label), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, lineH, tr(joinNonEmpty(" ", formatMoney(r.value), currency)), "", 1, "R", false, 0, "")
	}
}

func partyLines(p *rfq.Party) []string {
	var out []string
	for _, v := range []*string{p.CompanyName, p.Name, p.Address, p.Phone, p.Email, p.Website} {
		if v != nil {
			out = append(out, strings.Split(*v, "\n")...)
		}
	}
	if p.TaxID != nil {
		out = append(out, "Tax ID: "+*p.TaxID)
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatNumber(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatMoney(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}
