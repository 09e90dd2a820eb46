package postprocess

import (
	"fmt"

	"github.com/swdee/go-platenet"
	"gonum.org/v1/gonum/floats"
)

// ArgMax flattens a batch of predictions into the unmasked arg-max class of
// every head, plate by plate
func ArgMax(preds []platenet.Prediction) ([]int, error) {

	out := make([]int, 0, len(preds)*platenet.PlateLength)

	for i, pred := range preds {
		if err := pred.Validate(); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}

		for _, vec := range pred {
			out = append(out, floats.MaxIdx(vec))
		}
	}

	return out, nil
}

// FlattenLabels flattens a batch of labels, plate by plate, into the layout
// ArgMax produces
func FlattenLabels(labels []platenet.Label) []int {

	out := make([]int, 0, len(labels)*platenet.PlateLength)

	for _, l := range labels {
		out = append(out, l[:]...)
	}

	return out
}

// checkFlat validates two flattened label sequences have the same whole
// number of plates
func checkFlat(pred, truth []int) (int, error) {

	if len(pred) != len(truth) {
		return 0, fmt.Errorf("%w: %d predicted classes for %d true classes",
			platenet.ErrShapeMismatch, len(pred), len(truth))
	}

	if len(pred) == 0 || len(pred)%platenet.PlateLength != 0 {
		return 0, fmt.Errorf("%w: %d classes is not a whole number of plates",
			platenet.ErrShapeMismatch, len(pred))
	}

	return len(pred) / platenet.PlateLength, nil
}

// Accuracy returns the fraction of plates where every one of the nine
// positions is predicted correctly.  pred and truth hold plate i at
// [9i, 9i+9).
func Accuracy(pred, truth []int) (float64, error) {

	plates, err := checkFlat(pred, truth)

	if err != nil {
		return 0, err
	}

	hit := 0

	for i := 0; i < plates; i++ {
		ok := true

		for j := 0; j < platenet.PlateLength; j++ {
			k := i*platenet.PlateLength + j

			if pred[k] != truth[k] {
				ok = false
				break
			}
		}

		if ok {
			hit++
		}
	}

	return float64(hit) / float64(plates), nil
}

// CharAccuracy returns the fraction of individual plate positions predicted
// correctly
func CharAccuracy(pred, truth []int) (float64, error) {

	if _, err := checkFlat(pred, truth); err != nil {
		return 0, err
	}

	hit := 0

	for k := range pred {
		if pred[k] == truth[k] {
			hit++
		}
	}

	return float64(hit) / float64(len(pred)), nil
}
