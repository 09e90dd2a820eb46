package serve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-platenet"
	"github.com/swdee/go-platenet/preprocess"
)

// fakePreprocessor returns a fixed input for anything but "bad"
type fakePreprocessor struct{}

func (fakePreprocessor) Preprocess(data []byte) ([]float64, error) {

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", preprocess.ErrDecode)
	}

	if string(data) == "bad" {
		return nil, fmt.Errorf("%w: corrupt", preprocess.ErrDecode)
	}

	return []float64{1, 2, 3}, nil
}

// fakePredictor returns a prediction peaked on a fixed label
type fakePredictor struct {
	label platenet.Label
	err   error
}

func (f fakePredictor) Predict(ctx context.Context, input []float64) (platenet.Prediction, error) {

	if f.err != nil {
		return nil, f.err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := make(platenet.Prediction, platenet.PlateLength)

	for pos := range p {
		p[pos] = make([]float64, platenet.NumClasses)

		for j := range p[pos] {
			p[pos][j] = 0.2 / (platenet.NumClasses - 1)
		}

		p[pos][f.label[pos]] = 0.8
	}

	return p, nil
}

func newTestService(t *testing.T, predErr error) *Service {
	t.Helper()

	label, err := platenet.Encode("深SY123456")
	require.NoError(t, err)

	return NewService(fakePreprocessor{}, fakePredictor{label: label, err: predErr},
		30, 120, NewMetrics())
}

func TestRecognize(t *testing.T) {

	svc := newTestService(t, nil)

	res, err := svc.Recognize(context.Background(), []byte("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, "0SY123456", res.Plate)
	require.Len(t, res.Confidence, platenet.PlateLength)

	for _, c := range res.Confidence {
		assert.InDelta(t, 0.8, c, 1e-9)
	}
}

func TestRecognizeErrors(t *testing.T) {

	svc := newTestService(t, nil)

	_, err := svc.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
	assert.True(t, IsClientError(err))

	_, err = svc.Recognize(context.Background(), []byte("bad"))
	assert.ErrorIs(t, err, preprocess.ErrDecode)
	assert.True(t, IsClientError(err))

	broken := newTestService(t, errors.New("device lost"))

	_, err = broken.Recognize(context.Background(), []byte("jpeg"))
	assert.ErrorContains(t, err, "device lost")
	assert.False(t, IsClientError(err))

	_, err = svc.Postprocess(platenet.Prediction{{1}})
	assert.ErrorIs(t, err, platenet.ErrShapeMismatch)
}

func TestPingAndSignature(t *testing.T) {

	svc := newTestService(t, nil)

	assert.Equal(t, Version, svc.Ping())

	sig := svc.Signature()
	assert.Equal(t, []int{1, 3, 30, 120}, sig.InputShape)
	assert.Equal(t, []int{platenet.PlateLength, platenet.NumClasses}, sig.OutputShape)
}
