package pager

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Token{
		{Kind: KindClientsView, Page: 0},
		{Kind: KindProducts, Page: 12},
		{Kind: KindOrdersByDate, FilterKey: "date", FilterValue: "2025-03-07", Page: 3},
		{Kind: KindSearchText, FilterKey: "q", FilterValue: "a:b:c", Page: 1},
		{Kind: KindSearchFilter, FilterKey: "city", FilterValue: "San José", Page: 2},
		{Kind: KindSearchText, FilterValue: "50% off + más", Page: 0},
		{Kind: KindSearchText, FilterValue: "@", Page: 4},
		{Kind: KindSearchText, FilterValue: "  espacios  ", Page: 9},
		{Kind: KindSearchText, FilterValue: "東京", Page: 1},
	}
	for _, tc := range cases {
		encoded := Encode(tc)
		decoded, ok := Decode(encoded)
		require.True(t, ok, encoded)
		assert.Equal(t, tc, decoded, encoded)
		assert.Equal(t, 4, strings.Count(encoded, ":"), "value must not leak the delimiter: %s", encoded)
	}
}

func TestDecodeInvalidPageDefaultsToZero(t *testing.T) {
	for _, raw := range []string{
		"pg:cv::",
		"pg:cv",
		"pg:cv::x:abc",
		"pg:pr:::1.5",
		"pg:pr:::",
	} {
		tok, ok := Decode(raw)
		require.True(t, ok, raw)
		assert.Equal(t, 0, tok.Page, raw)
	}
}

func TestDecodeRejectsForeignTokens(t *testing.T) {
	for _, raw := range []string{"", "menu:main", "order:view:12", "pgx:cv::0"} {
		_, ok := Decode(raw)
		assert.False(t, ok, raw)
	}
}

func TestDecodeKeepsMalformedEscapes(t *testing.T) {
	tok, ok := Decode("pg:st:q:%zz:2")
	require.True(t, ok)
	assert.Equal(t, "%zz", tok.FilterValue)
	assert.Equal(t, 2, tok.Page)
}

func TestEncodeFitFallsBackToSession(t *testing.T) {
	long := strings.Repeat("ñandú ", 20)
	token, stored := EncodeFit(Token{Kind: KindSearchText, FilterKey: "q", FilterValue: long, Page: 1})
	require.True(t, stored)
	assert.True(t, Fits(token))

	decoded, ok := Decode(token)
	require.True(t, ok)
	assert.True(t, decoded.FromSession)
	assert.Empty(t, decoded.FilterValue)
	assert.Equal(t, 1, decoded.Page)

	short, stored := EncodeFit(Token{Kind: KindSearchText, FilterKey: "q", FilterValue: "ana", Page: 0})
	assert.False(t, stored)
	assert.Equal(t, "pg:st:q:ana:0", short)
}

func TestWindowClamps(t *testing.T) {
	w := NewWindow(7, 20, 8)
	assert.Equal(t, 2, w.Page)
	assert.True(t, w.HasPrev)
	assert.False(t, w.HasNext)
	assert.Equal(t, 16, w.Offset())

	w = NewWindow(-3, 20, 8)
	assert.Equal(t, 0, w.Page)
	assert.False(t, w.HasPrev)
	assert.True(t, w.HasNext)

	w = NewWindow(0, 0, 8)
	assert.Equal(t, 0, w.Page)
	assert.Equal(t, 0, w.Last)
	assert.False(t, w.HasPrev)
	assert.False(t, w.HasNext)

	assert.Equal(t, 1, LastPage(16, 8))
	assert.Equal(t, 2, LastPage(17, 8))
}
