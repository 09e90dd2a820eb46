package platenet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Label is the training target for one plate, the alphabet index of each
// plate position
type Label [PlateLength]int

// Encode converts a plate string into its Label using the standard alphabet
func Encode(plate string) (Label, error) {
	return std.Encode(plate)
}

// Encode converts a plate string into its Label.  The plate must be exactly
// PlateLength characters and each character must belong to a subset the
// position policy allows at its position.
func (a *Alphabet) Encode(plate string) (Label, error) {

	var label Label

	if n := utf8.RuneCountInString(plate); n != PlateLength {
		return label, fmt.Errorf("%w: plate %q has %d characters, want %d",
			ErrInvalidPlateFormat, plate, n, PlateLength)
	}

	pos := 0

	for _, c := range plate {
		idx, err := a.IndexOf(c)

		if err != nil {
			return label, fmt.Errorf("plate %q position %d: %w", plate, pos, err)
		}

		// index is known to be valid so the subset lookup cannot fail
		subset, _ := a.SubsetOf(idx)

		if !policy[pos].Allows(subset) {
			return label, fmt.Errorf("%w: plate %q position %d has %s character %q, want %s",
				ErrInvalidPlateFormat, plate, pos, subset, c, policy[pos])
		}

		label[pos] = idx
		pos++
	}

	return label, nil
}

// Canonical renders a Label the way the decoder reports plates, with the
// first position as its province number and the remaining positions as
// glyphs
func Canonical(label Label) (string, error) {
	return std.Canonical(label)
}

// Canonical renders a Label in canonical form.  Each index must satisfy its
// position rule.
func (a *Alphabet) Canonical(label Label) (string, error) {

	var b strings.Builder

	for pos, idx := range label {
		subset, err := a.SubsetOf(idx)

		if err != nil {
			return "", fmt.Errorf("position %d: %w", pos, err)
		}

		if !policy[pos].Allows(subset) {
			return "", fmt.Errorf("%w: position %d has %s index %d, want %s",
				ErrInvalidPlateFormat, pos, subset, idx, policy[pos])
		}

		if pos == 0 {
			b.WriteString(strconv.Itoa(idx - a.ranges[Province].Start))
			continue
		}

		b.WriteRune(a.chars[idx])
	}

	return b.String(), nil
}

// CanonicalPlate validates a plate string and returns its canonical form
func CanonicalPlate(plate string) (string, error) {

	label, err := Encode(plate)

	if err != nil {
		return "", err
	}

	return Canonical(label)
}

// String returns the plate glyphs of the label, or "?" for any index outside
// the alphabet
func (l Label) String() string {

	var b strings.Builder

	for _, idx := range l {
		c, err := std.Char(idx)

		if err != nil {
			b.WriteByte('?')
			continue
		}

		b.WriteRune(c)
	}

	return b.String()
}
