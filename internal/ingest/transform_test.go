package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	// Replace global logger with a no-op to avoid noise from truncation
	// warnings in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

func TestParseLocaleFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"nil", nil, nil},
		{"number", 3.4, f64(3.4)},
		{"comma string", "3,4", f64(3.4)},
		{"dot string", "12.75", f64(12.75)},
		{"integer string", "17", f64(17)},
		{"padded string", " 1,2 ", f64(1.2)},
		{"empty string", "", nil},
		{"garbage", "souple", nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLocaleFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestCentsToEuros(t *testing.T) {
	assert.Nil(t, CentsToEuros(nil))
	got := CentsToEuros(i64(152300))
	require.NotNil(t, got)
	assert.InDelta(t, 1523.0, *got, 1e-9)
}

func TestMillisToSeconds(t *testing.T) {
	assert.Nil(t, MillisToSeconds(nil))
	got := MillisToSeconds(i64(73400))
	require.NotNil(t, got)
	assert.InDelta(t, 73.4, *got, 1e-9)
}

func TestUnixMillisToDate(t *testing.T) {
	assert.Nil(t, UnixMillisToDate(nil))

	// 2025-11-05T14:30:00Z
	ms := int64(1762353000000)
	got := UnixMillisToDate(&ms)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), *got)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("f", "abc", 10))
	assert.Equal(t, "abcde", TruncateString("f", "abcdefgh", 5))
	// Rune-aware: accented names must not be cut mid-codepoint.
	assert.Equal(t, "ÉTOILÉ", TruncateString("f", "ÉTOILÉE DU NORD", 6))
}

func TestTruncatePtr(t *testing.T) {
	assert.Nil(t, TruncatePtr("f", "", 5))
	got := TruncatePtr("f", "ATTELE", 20)
	require.NotNil(t, got)
	assert.Equal(t, "ATTELE", *got)
}

func TestNormalizeName(t *testing.T) {
	// Decomposed E + combining acute vs precomposed É.
	assert.Equal(t, NormalizeName("ÉTOILE"), NormalizeName("ÉTOILE"))
	assert.Equal(t, "KALINE DU DONJON", NormalizeName("  KALINE DU DONJON "))
}

func TestFirstLetterUpper(t *testing.T) {
	assert.Nil(t, FirstLetterUpper(""))
	assert.Nil(t, FirstLetterUpper("  "))
	got := FirstLetterUpper("femelles")
	require.NotNil(t, got)
	assert.Equal(t, "F", *got)
}

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

func str(v string) *string { return &v }
