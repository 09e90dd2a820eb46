package platenet

import (
	"errors"
)

// Errors returned when encoding labels or decoding predictions.  They are
// wrapped with context, so compare with errors.Is.
var (
	// ErrUnknownCharacter is returned for a character outside the alphabet
	ErrUnknownCharacter = errors.New("unknown character")
	// ErrInvalidPlateFormat is returned when a plate has the wrong length or
	// a character not permitted at its position
	ErrInvalidPlateFormat = errors.New("invalid plate format")
	// ErrShapeMismatch is returned when image or probability dimensions do
	// not match what the model expects
	ErrShapeMismatch = errors.New("shape mismatch")
)
