// Package extract asks a hosted model to read an RFQ or quotation file and
// return loosely structured JSON for the rfq normalizer.
package extract

import (
	"context"

	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

// Source is one document to read.
type Source struct {
	Filename string
	MIMEType string
	Data     []byte
	// Text is the PDF text layer, when one could be extracted.
	Text    string
	Variant rfq.Variant
}

// Raw is the model's answer before normalization.
type Raw struct {
	JSON  []byte
	Model string
	// Cached is set when the answer came from the extraction cache.
	Cached bool
}

// Extractor turns a source file into raw document JSON. Implementations do
// not retry; the caller's context bounds the call.
type Extractor interface {
	Extract(ctx context.Context, src Source) (Raw, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, src Source) (Raw, error)

func (f ExtractorFunc) Extract(ctx context.Context, src Source) (Raw, error) {
	return f(ctx, src)
}
