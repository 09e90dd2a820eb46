package platenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPredictions(t *testing.T) {

	const batch = 2

	// tag each row with image*100 + position so the layout can be checked
	headMajor := make([]float64, batch*PlateLength*NumClasses)
	plateMajor := make([]float64, batch*PlateLength*NumClasses)

	for img := 0; img < batch; img++ {
		for pos := 0; pos < PlateLength; pos++ {
			tag := float64(img*100 + pos)
			headMajor[(pos*batch+img)*NumClasses] = tag
			plateMajor[(img*PlateLength+pos)*NumClasses] = tag
		}
	}

	for _, tc := range []struct {
		layout Layout
		buf    []float64
	}{
		{HeadMajor, headMajor},
		{PlateMajor, plateMajor},
	} {
		preds, err := SplitPredictions(tc.buf, batch, tc.layout)
		require.NoError(t, err)
		require.Len(t, preds, batch)

		for img, p := range preds {
			require.NoError(t, p.Validate())

			for pos, vec := range p {
				assert.Equal(t, float64(img*100+pos), vec[0])
			}
		}
	}
}

func TestSplitPredictionsShape(t *testing.T) {

	_, err := SplitPredictions(make([]float64, 10), 1, HeadMajor)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = SplitPredictions(nil, 0, HeadMajor)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPredictionValidate(t *testing.T) {

	p := make(Prediction, PlateLength-1)
	assert.ErrorIs(t, p.Validate(), ErrShapeMismatch)

	p = make(Prediction, PlateLength)
	for i := range p {
		p[i] = make([]float64, NumClasses)
	}
	assert.NoError(t, p.Validate())

	p[4] = p[4][:NumClasses-1]
	assert.ErrorIs(t, p.Validate(), ErrShapeMismatch)
}
