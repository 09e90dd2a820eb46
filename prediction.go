package platenet

import (
	"fmt"
)

// NumClasses is the size of each head output, one score per alphabet
// character
const NumClasses = 43

// Prediction holds one probability vector per plate position, each of
// NumClasses entries
type Prediction [][]float64

// Validate checks the prediction has PlateLength vectors of NumClasses
// entries each
func (p Prediction) Validate() error {

	if len(p) != PlateLength {
		return fmt.Errorf("%w: prediction has %d positions, want %d",
			ErrShapeMismatch, len(p), PlateLength)
	}

	for pos, vec := range p {
		if len(vec) != NumClasses {
			return fmt.Errorf("%w: prediction position %d has %d classes, want %d",
				ErrShapeMismatch, pos, len(vec), NumClasses)
		}
	}

	return nil
}

// Layout describes how a flat model output buffer orders plate positions
type Layout int

const (
	// HeadMajor stores every image's row for head 0, then head 1 and so
	// on.  This is the order produced by concatenating the heads along the
	// batch axis.
	HeadMajor Layout = iota
	// PlateMajor stores the 9 rows of image 0, then image 1 and so on
	PlateMajor
)

// SplitPredictions slices a flat output buffer of batch*PlateLength*NumClasses
// values into one Prediction per image.  The returned vectors alias buf.
func SplitPredictions(buf []float64, batch int, layout Layout) ([]Prediction, error) {

	want := batch * PlateLength * NumClasses

	if batch <= 0 || len(buf) != want {
		return nil, fmt.Errorf("%w: output has %d values, want %d for batch %d",
			ErrShapeMismatch, len(buf), want, batch)
	}

	preds := make([]Prediction, batch)

	for i := range preds {
		preds[i] = make(Prediction, PlateLength)

		for pos := 0; pos < PlateLength; pos++ {
			var row int

			if layout == HeadMajor {
				row = pos*batch + i
			} else {
				row = i*PlateLength + pos
			}

			preds[i][pos] = buf[row*NumClasses : (row+1)*NumClasses]
		}
	}

	return preds, nil
}
