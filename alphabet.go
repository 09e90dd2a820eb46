package platenet

import (
	"fmt"
)

// PlateLength is the fixed number of character positions on a plate
const PlateLength = 9

// Subset identifies one of the disjoint character classes making up the
// Alphabet
type Subset int

const (
	Province Subset = iota
	Digit
	Letter
	numSubsets
)

// String returns the subset name as accepted by SubsetRange
func (s Subset) String() string {
	switch s {
	case Province:
		return "province"
	case Digit:
		return "digit"
	case Letter:
		return "letter"
	default:
		return fmt.Sprintf("subset(%d)", int(s))
	}
}

var (
	provinceChars = []rune("深秦京海成南杭苏松")
	digitChars    = []rune("0123456789")
	letterChars   = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ")
)

// Range is a half open [Start, End) span of Alphabet indices
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether idx falls inside the range
func (r Range) Contains(idx int) bool {
	return idx >= r.Start && idx < r.End
}

// Alphabet is the ordered set of characters the classifier scores.  Subsets
// are concatenated in a fixed order so every subset occupies a contiguous
// index range.
type Alphabet struct {
	chars  []rune
	index  map[rune]int
	ranges [numSubsets]Range
}

// std is built once at init and only ever read
var std = newAlphabet(provinceChars, digitChars, letterChars)

// Standard returns the alphabet the plate model is trained with
func Standard() *Alphabet {
	return std
}

// newAlphabet concatenates the subsets in Subset order
func newAlphabet(subsets ...[]rune) *Alphabet {

	a := &Alphabet{
		index: make(map[rune]int),
	}

	for s, chars := range subsets {
		start := len(a.chars)

		for _, c := range chars {
			if _, dup := a.index[c]; dup {
				panic(fmt.Sprintf("character %q appears in more than one subset", c))
			}

			a.index[c] = len(a.chars)
			a.chars = append(a.chars, c)
		}

		a.ranges[s] = Range{Start: start, End: len(a.chars)}
	}

	return a
}

// Len returns the number of characters in the alphabet
func (a *Alphabet) Len() int {
	return len(a.chars)
}

// IndexOf returns the class index of the given character
func (a *Alphabet) IndexOf(c rune) (int, error) {

	idx, ok := a.index[c]

	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownCharacter, c)
	}

	return idx, nil
}

// Char returns the character at the given class index
func (a *Alphabet) Char(idx int) (rune, error) {

	if idx < 0 || idx >= len(a.chars) {
		return 0, fmt.Errorf("%w: index %d out of range [0-%d)",
			ErrUnknownCharacter, idx, len(a.chars))
	}

	return a.chars[idx], nil
}

// Range returns the index range occupied by the subset
func (a *Alphabet) Range(s Subset) Range {

	if s < 0 || s >= numSubsets {
		return Range{}
	}

	return a.ranges[s]
}

// SubsetRange returns the index range for the named subset, one of
// "province", "digit" or "letter"
func (a *Alphabet) SubsetRange(name string) (Range, error) {

	for s := Subset(0); s < numSubsets; s++ {
		if s.String() == name {
			return a.ranges[s], nil
		}
	}

	return Range{}, fmt.Errorf("unknown subset name %q", name)
}

// SubsetOf returns the subset that the class index belongs to
func (a *Alphabet) SubsetOf(idx int) (Subset, error) {

	for s := Subset(0); s < numSubsets; s++ {
		if a.ranges[s].Contains(idx) {
			return s, nil
		}
	}

	return -1, fmt.Errorf("%w: index %d out of range [0-%d)",
		ErrUnknownCharacter, idx, len(a.chars))
}

// Span returns the smallest index range covering every subset the rule
// allows.  Subsets are adjacent, so for the rules in the position policy the
// span holds no index the rule forbids.
func (a *Alphabet) Span(rule Rule) Range {

	span := Range{Start: -1}

	for s := Subset(0); s < numSubsets; s++ {
		if !rule.Allows(s) {
			continue
		}

		r := a.ranges[s]

		if span.Start == -1 || r.Start < span.Start {
			span.Start = r.Start
		}

		if r.End > span.End {
			span.End = r.End
		}
	}

	if span.Start == -1 {
		return Range{}
	}

	return span
}
