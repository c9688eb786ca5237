package constants

import "strings"

// Format is the coarse kind of an uploaded source document.
type Format string

const (
	FormatPDF   Format = "PDF"
	FormatImage Format = "IMAGE"
	FormatJSON  Format = "JSON"
)

// Formats holds the values allowed in the format column of extract_job.
var Formats = []Format{FormatPDF, FormatImage, FormatJSON}

// AllowedExtensions holds the file extensions picked up by inbox ingestion.
var AllowedExtensions = map[string]Format{
	"pdf":  FormatPDF,
	"jpg":  FormatImage,
	"jpeg": FormatImage,
	"png":  FormatImage,
	"webp": FormatImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat resolves a file extension to its Format.
func MapExtToFormat(ext string) (Format, bool) {
	f, ok := AllowedExtensions[NormalizeExt(ext)]
	return f, ok
}
