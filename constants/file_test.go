package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext      string
		expected Format
		ok       bool
	}{
		{ext: ".PDF", expected: FormatPDF, ok: true},
		{ext: "jpeg", expected: FormatImage, ok: true},
		{ext: ".png", expected: FormatImage, ok: true},
		{ext: ".docx", ok: false},
		{ext: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, ok := MapExtToFormat(tt.ext)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
