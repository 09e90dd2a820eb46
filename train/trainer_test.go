package train

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-platenet"
	"github.com/swdee/go-platenet/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func tinyModel(t *testing.T) *model.Classifier {
	t.Helper()

	c, err := model.New(model.Config{
		Height:  8,
		Width:   12,
		Filters: 2,
		Kernels: []int{3},
		Hidden:  8,
	})
	require.NoError(t, err)

	return c
}

// tinyDataset builds n examples sized for tinyModel with distinct inputs
func tinyDataset(t *testing.T, c *model.Classifier, n int) *Dataset {
	t.Helper()

	size := c.Config().InputSize()
	examples := make([]Example, n)

	for i := range examples {
		label, err := platenet.Encode(testPlates[i%len(testPlates)])
		require.NoError(t, err)

		in := make([]float64, size)

		for j := range in {
			in[j] = float64((j*(i+3))%17) / 17
		}

		examples[i] = Example{Label: label, Input: in}
	}

	ds, err := NewDataset(examples)
	require.NoError(t, err)

	return ds
}

func TestParamsValidate(t *testing.T) {

	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 20, p.BatchSize)
	assert.Equal(t, 10, p.Epochs)

	bad := p
	bad.BatchSize = 0
	assert.Error(t, bad.Validate())

	bad = p
	bad.Momentum = 1
	assert.Error(t, bad.Validate())

	_, err := NewTrainer(nil, bad, nil)
	assert.Error(t, err)
}

func TestFit(t *testing.T) {

	c := tinyModel(t)
	ds := tinyDataset(t, c, 8)
	train, eval := ds.Split(6)

	core, logs := observer.New(zapcore.InfoLevel)

	p := DefaultParams()
	p.Epochs = 2
	p.BatchSize = 2
	p.LearnRate = 0.01
	p.LogInterval = 1
	p.Shuffle = true
	p.Checkpoint = filepath.Join(t.TempDir(), "plate.ckpt")

	tr, err := NewTrainer(c, p, zap.New(core).Sugar())
	require.NoError(t, err)

	m, err := tr.Fit(context.Background(), train, eval)
	require.NoError(t, err)

	assert.Greater(t, m.Loss, 0.0)
	assert.Equal(t, 2, m.Samples)
	assert.GreaterOrEqual(t, m.CharAccuracy, 0.0)
	assert.LessOrEqual(t, m.CharAccuracy, 1.0)

	// three batches per epoch each logging speed
	assert.Equal(t, 6, logs.FilterMessageSnippet("samples/sec").Len())
	assert.Equal(t, 2, logs.FilterMessageSnippet("Validation-accuracy").Len())

	loaded, err := model.LoadFile(p.Checkpoint)
	require.NoError(t, err)

	for _, param := range c.Params().List() {
		q, ok := loaded.Params().Get(param.Name)
		require.True(t, ok)
		assert.Equal(t, param.Data, q.Data)
	}
}

func TestFitErrors(t *testing.T) {

	c := tinyModel(t)
	ds := tinyDataset(t, c, 3)

	p := DefaultParams()
	p.BatchSize = 4

	tr, err := NewTrainer(c, p, nil)
	require.NoError(t, err)

	_, err = tr.Fit(context.Background(), ds, nil)
	assert.Error(t, err)

	p.BatchSize = 1
	tr, err = NewTrainer(c, p, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tr.Fit(ctx, ds, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluatePartialBatch(t *testing.T) {

	c := tinyModel(t)
	ds := tinyDataset(t, c, 5)

	// 5 examples in batches of 2 covers every example once
	m, err := Evaluate(context.Background(), c, ds, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Samples)

	single, err := Evaluate(context.Background(), c, ds, 1)
	require.NoError(t, err)
	assert.InDelta(t, single.CharAccuracy, m.CharAccuracy, 1e-9)
	assert.InDelta(t, single.Accuracy, m.Accuracy, 1e-9)

	_, err = Evaluate(context.Background(), c, nil, 2)
	assert.Error(t, err)
}

func TestScore(t *testing.T) {

	labels := []platenet.Label{}
	preds := []platenet.Prediction{}

	for _, plate := range []string{"深A1234B5C", "京Z0000000"} {
		l, err := platenet.Encode(plate)
		require.NoError(t, err)
		labels = append(labels, l)

		pred := make(platenet.Prediction, platenet.PlateLength)

		for pos := range pred {
			pred[pos] = make([]float64, platenet.NumClasses)
			pred[pos][l[pos]] = 1
		}

		preds = append(preds, pred)
	}

	// break one position of the second plate
	preds[1][4][labels[1][4]] = 0
	preds[1][4][20] = 1

	m, err := Score(preds, labels)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Samples)
	assert.InDelta(t, 0.5, m.Accuracy, 1e-9)
	assert.InDelta(t, 17.0/18.0, m.CharAccuracy, 1e-9)
	assert.InDelta(t, 0.5, m.DecodedAccuracy, 1e-9)
}
