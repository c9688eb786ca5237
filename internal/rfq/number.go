package rfq

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceNumber converts a loosely typed value into a finite float64.
// A nil result means the value is absent or could not be read as a number.
//
// Strings may carry currency symbols, spaces and either decimal convention.
// The rightmost separator decides: "1.234,56" is 1234.56, "2,500.75" is
// 2500.75. A lone period is always decimal, so "1.234" is 1.234.
func CoerceNumber(raw any) *float64 {
	if s, ok := raw.(string); ok {
		return parseLocaleNumber(s)
	}
	return numericValue(raw)
}

// numericValue handles already-numeric inputs; strings and anything else are absent.
func numericValue(raw any) *float64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return finite(f)
}

func parseLocaleNumber(s string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return nil
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	if lastComma > lastDot {
		// comma is the decimal separator, periods group thousands
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		i := strings.LastIndex(cleaned, ",")
		cleaned = cleaned[:i] + "." + cleaned[i+1:]
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
