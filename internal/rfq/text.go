package rfq

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns the trimmed, NFC-normalized form of an optional text
// value. Missing, null and whitespace-only values all come back as nil.
// Finite numbers are accepted: a json.Number keeps its literal, other numeric
// kinds are rendered in their shortest decimal form.
func NormalizeText(raw any) *string {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		if numericValue(v) == nil {
			return nil
		}
		s = v.String()
	default:
		n := numericValue(raw)
		if n == nil {
			return nil
		}
		s = strconv.FormatFloat(*n, 'f', -1, 64)
	}

	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return nil
	}
	return &s
}

func isBlank(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}
