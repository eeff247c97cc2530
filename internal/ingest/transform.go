package ingest

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Transformation helpers shared by the stage processors. The source mixes
// locale-formatted decimal strings, minor-unit integers (cents,
// milliseconds), and optional sub-objects; everything here maps absent or
// malformed input to nil rather than a zero that could pass for real data.

// ParseLocaleFloat parses a decimal that may use a comma separator
// ("3,4") and may arrive as either a JSON number or a string.
func ParseLocaleFloat(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return &x
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// CentsToEuros converts a minor-unit amount to euros.
func CentsToEuros(cents *int64) *float64 {
	if cents == nil {
		return nil
	}
	euros := float64(*cents) / 100.0
	return &euros
}

// MillisToSeconds converts a millisecond duration to seconds, keeping the
// sub-second part (trot times are quoted to the tenth).
func MillisToSeconds(ms *int64) *float64 {
	if ms == nil {
		return nil
	}
	s := float64(*ms) / 1000.0
	return &s
}

// UnixMillisToDate converts a millisecond epoch timestamp to a UTC
// calendar date.
func UnixMillisToDate(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

// TruncateString bounds a free-text value to the column width, logging the
// overflow instead of failing the row.
func TruncateString(field, value string, maxLen int) string {
	runes := []rune(value)
	if len(runes) <= maxLen {
		return value
	}
	zap.L().Warn("field overflow, truncating",
		zap.String("field", field),
		zap.Int("length", len(runes)),
		zap.Int("max", maxLen),
	)
	return string(runes[:maxLen])
}

// TruncatePtr is TruncateString for nullable columns: empty input maps
// to nil.
func TruncatePtr(field, value string, maxLen int) *string {
	if value == "" {
		return nil
	}
	s := TruncateString(field, value, maxLen)
	return &s
}

// NormalizeName canonicalizes a natural key (horse or actor name) so that
// differently-composed accented forms resolve to the same entity row.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// FirstLetterUpper reduces a sex label ("FEMELLES") to its one-letter code.
func FirstLetterUpper(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	c := strings.ToUpper(s[:1])
	return &c
}
