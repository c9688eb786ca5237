// Package textextract identifies uploaded files and pulls the plain text
// layer out of PDFs.
package textextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/rfq-tracker/constants"
	"github.com/joseph-ayodele/rfq-tracker/internal/common"
)

// DetectMIME sniffs the content type from the file's leading bytes.
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// Kind maps a MIME type to the Format a source is processed as.
func Kind(mime string) (constants.Format, error) {
	base, _, _ := strings.Cut(mime, ";")
	switch {
	case base == "application/pdf":
		return constants.FormatPDF, nil
	case base == "image/png", base == "image/jpeg", base == "image/webp":
		return constants.FormatImage, nil
	case base == "application/json":
		return constants.FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", common.ErrUnsupported, mime)
}

// Identify returns the sniffed MIME type and Format of data.
func Identify(data []byte) (string, constants.Format, error) {
	mime := DetectMIME(data)
	kind, err := Kind(mime)
	return mime, kind, err
}

// PDFText returns the text layer of a PDF with runs of blank lines collapsed.
// Scanned PDFs yield an empty string and no error.
func PDFText(data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", r.NumPage(), fmt.Errorf("read pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", r.NumPage(), fmt.Errorf("read pdf text: %w", err)
	}
	return tidy(string(b)), r.NumPage(), nil
}

func tidy(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
