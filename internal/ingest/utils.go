package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/rfq-tracker/constants"
)

// AllowedExt reports whether files with this extension are picked up.
func AllowedExt(ext string) bool {
	_, ok := constants.MapExtToFormat(ext)
	return ok
}

// Allowed reports whether path names a file ingestion should pick up.
func Allowed(path string) bool {
	return !IsHidden(path) && AllowedExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
