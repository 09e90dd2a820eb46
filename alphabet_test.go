package platenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabetLayout(t *testing.T) {

	a := Standard()

	require.Equal(t, 43, a.Len())
	assert.Equal(t, NumClasses, a.Len())

	tests := []struct {
		name  string
		chars []rune
		start int
		end   int
	}{
		{"province", provinceChars, 0, 9},
		{"digit", digitChars, 9, 19},
		{"letter", letterChars, 19, 43},
	}

	for _, tc := range tests {
		r, err := a.SubsetRange(tc.name)
		require.NoError(t, err)
		assert.Equal(t, Range{Start: tc.start, End: tc.end}, r, tc.name)

		for _, c := range tc.chars {
			idx, err := a.IndexOf(c)
			require.NoError(t, err)
			assert.True(t, r.Contains(idx), "%q index %d outside %s range", c, idx, tc.name)
		}
	}
}

func TestIndexOf(t *testing.T) {

	a := Standard()

	tests := []struct {
		char rune
		want int
	}{
		{'深', 0},
		{'松', 8},
		{'0', 9},
		{'9', 18},
		{'A', 19},
		{'H', 26},
		{'J', 27},
		{'P', 32},
		{'S', 35},
		{'Y', 41},
		{'Z', 42},
	}

	for _, tc := range tests {
		idx, err := a.IndexOf(tc.char)
		require.NoError(t, err)
		assert.Equal(t, tc.want, idx, "index of %q", tc.char)

		c, err := a.Char(idx)
		require.NoError(t, err)
		assert.Equal(t, tc.char, c)
	}

	for _, c := range []rune{'I', 'O', 'a', '沪', '-', ' '} {
		_, err := a.IndexOf(c)
		assert.ErrorIs(t, err, ErrUnknownCharacter, "%q", c)
	}

	_, err := a.Char(43)
	assert.ErrorIs(t, err, ErrUnknownCharacter)

	_, err = a.Char(-1)
	assert.ErrorIs(t, err, ErrUnknownCharacter)
}

func TestSubsetRangeUnknownName(t *testing.T) {
	_, err := Standard().SubsetRange("symbol")
	assert.Error(t, err)
}

func TestPolicySpans(t *testing.T) {

	a := Standard()
	p := Policy()

	require.Len(t, p, PlateLength)

	assert.Equal(t, Range{0, 9}, a.Span(p[0]))
	assert.Equal(t, Range{19, 43}, a.Span(p[1]))

	for pos := 2; pos < PlateLength; pos++ {
		assert.Equal(t, Range{9, 43}, a.Span(p[pos]), "position %d", pos)
		assert.False(t, p[pos].Allows(Province))
	}

	assert.Equal(t, "digit|letter", DigitOrLetter.String())
	assert.Equal(t, Range{}, a.Span(Rule(0)))
}

func TestPolicyIsCopied(t *testing.T) {

	p := Policy()
	p[0] = DigitOrLetter

	assert.Equal(t, ProvinceOnly, Policy()[0])
}
