package platenet

import (
	"strings"
)

// Rule is the set of alphabet subsets allowed at a plate position
type Rule uint8

// Rules used by the position policy
const (
	ProvinceOnly  Rule = 1 << Province
	LetterOnly    Rule = 1 << Letter
	DigitOrLetter Rule = 1<<Digit | 1<<Letter
)

// Allows reports whether characters of the subset may appear under the rule
func (r Rule) Allows(s Subset) bool {
	return s >= 0 && s < numSubsets && r&(1<<s) != 0
}

// String lists the allowed subset names joined by "|"
func (r Rule) String() string {

	var names []string

	for s := Subset(0); s < numSubsets; s++ {
		if r.Allows(s) {
			names = append(names, s.String())
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}

// policy holds the rule for each plate position
var policy = [PlateLength]Rule{
	ProvinceOnly,
	LetterOnly,
	DigitOrLetter,
	DigitOrLetter,
	DigitOrLetter,
	DigitOrLetter,
	DigitOrLetter,
	DigitOrLetter,
	DigitOrLetter,
}

// Policy returns the position policy.  The array is returned by value so
// callers cannot alter the shared copy.
func Policy() [PlateLength]Rule {
	return policy
}
