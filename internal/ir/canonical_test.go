package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"null", nil, "null"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"mixed array", []any{1.0, "a", nil, false}, `[1,"a",null,false]`},
		{"simple object", map[string]any{"a": 1.0}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNumbers(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-3, "-3"},
		{1.5, "1.5"},
		{0.1, "0.1"},
		{100, "100"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{0.000001, "0.000001"},
		{-2.5e-8, "-2.5e-8"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := MarshalCanonical(f)
		assert.ErrorContains(t, err, "non-finite")
	}

	_, err := MarshalCanonical(map[string]any{"x": []any{math.NaN()}})
	assert.ErrorContains(t, err, `value for key "x": array[0]`)
}

func TestMarshalCanonicalRejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")

	_, err = MarshalCanonical(float32(1))
	assert.Error(t, err)
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1.0,
		"alpha": 2.0,
		"beta":  map[string]any{"b": 1.0, "a": 2.0},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as surrogates 0xD800 0xDC00 and sorts before U+E000
	// in UTF-16, although its UTF-8 form sorts after.
	astral := string(rune(0x10000))
	private := string(rune(0xE000))
	obj := map[string]any{private: 1.0, astral: 2.0}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"`+astral+`":2,"`+private+`":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	decomposed := "e" + string(rune(0x0301))
	composed := string(rune(0x00E9))

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)

	keys, err := MarshalCanonical(map[string]any{decomposed: true})
	require.NoError(t, err)
	assert.Equal(t, `{"`+composed+`":true}`, string(keys))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	result, err := MarshalCanonical("quote\" back\\ tab\t nl\n")
	require.NoError(t, err)
	assert.Equal(t, `"quote\" back\\ tab\t nl\n"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsNotEscaped(t *testing.T) {
	ls := string(rune(0x2028))
	ps := string(rune(0x2029))

	result, err := MarshalCanonical("a" + ls + "b" + ps + "c")
	require.NoError(t, err)
	assert.Equal(t, `"a`+ls+`b`+ps+`c"`, string(result))
}

func TestMarshalCanonicalLiteralBackslashU2028(t *testing.T) {
	// The text backslash-u-2-0-2-8 is not a separator and stays escaped.
	input := `\` + "u2028"
	result, err := MarshalCanonical(input)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalIdempotency(t *testing.T) {
	obj := map[string]any{
		"variables": []any{map[string]any{"name": "x", "value": 0.25}},
		"n":         3.0,
	}
	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for range 10 {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
