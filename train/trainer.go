package train

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/swdee/go-platenet"
	"github.com/swdee/go-platenet/model"
	"github.com/swdee/go-platenet/postprocess"
	"go.uber.org/zap"
)

// Params defines the training hyper parameters
type Params struct {
	Epochs      int     `yaml:"epochs"`
	BatchSize   int     `yaml:"batch_size"`
	LearnRate   float64 `yaml:"learn_rate"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
	// LogInterval is the number of batches between speed reports
	LogInterval int `yaml:"log_interval"`
	// Shuffle the training order each epoch using Seed
	Shuffle bool  `yaml:"shuffle"`
	Seed    int64 `yaml:"seed"`
	// Checkpoint is the path written after every epoch, empty to disable
	Checkpoint string `yaml:"checkpoint"`
	// HalfPrecision stores checkpoints as float16
	HalfPrecision bool `yaml:"half_precision"`
}

// DefaultParams returns the hyper parameters the plate model is trained
// with
func DefaultParams() Params {
	return Params{
		Epochs:      10,
		BatchSize:   20,
		LearnRate:   0.001,
		Momentum:    0.9,
		WeightDecay: 1e-5,
		LogInterval: 50,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {

	if p.Epochs < 1 {
		return fmt.Errorf("invalid epochs %d", p.Epochs)
	}

	if p.BatchSize < 1 {
		return fmt.Errorf("invalid batch size %d", p.BatchSize)
	}

	if p.LearnRate <= 0 {
		return fmt.Errorf("invalid learn rate %f", p.LearnRate)
	}

	if p.Momentum < 0 || p.Momentum >= 1 {
		return fmt.Errorf("invalid momentum %f", p.Momentum)
	}

	if p.WeightDecay < 0 {
		return fmt.Errorf("invalid weight decay %f", p.WeightDecay)
	}

	return nil
}

// Metrics summarises a pass over a dataset
type Metrics struct {
	// Samples is the number of plates evaluated
	Samples int
	// Loss is the mean training loss per batch, zero for evaluation
	Loss float64
	// Accuracy is the fraction of plates with every position correct
	Accuracy float64
	// CharAccuracy is the fraction of positions correct
	CharAccuracy float64
	// DecodedAccuracy is the fraction of plates whose position constrained
	// decoding equals the canonical label
	DecodedAccuracy float64
}

// Trainer fits a classifier with momentum SGD
type Trainer struct {
	classifier *model.Classifier
	params     Params
	log        *zap.SugaredLogger
}

// NewTrainer returns a trainer for the classifier
func NewTrainer(c *model.Classifier, p Params, log *zap.SugaredLogger) (*Trainer, error) {

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training params: %w", err)
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Trainer{
		classifier: c,
		params:     p,
		log:        log,
	}, nil
}

// Fit trains over the training set for the configured number of epochs,
// evaluating on eval after each epoch when it is not nil.  It returns the
// metrics of the last epoch.
func (t *Trainer) Fit(ctx context.Context, train, eval *Dataset) (Metrics, error) {

	var last Metrics

	if train == nil || train.Len() < t.params.BatchSize {
		return last, fmt.Errorf("training set is smaller than one batch of %d",
			t.params.BatchSize)
	}

	ts, err := t.classifier.NewTrainSession(t.params.BatchSize, model.SolverParams{
		LearnRate:   t.params.LearnRate,
		Momentum:    t.params.Momentum,
		WeightDecay: t.params.WeightDecay,
	})

	if err != nil {
		return last, err
	}

	defer ts.Close()

	var rng *rand.Rand

	if t.params.Shuffle {
		rng = rand.New(rand.NewSource(t.params.Seed))
	}

	for epoch := 0; epoch < t.params.Epochs; epoch++ {

		start := time.Now()
		m, err := t.epoch(ctx, ts, train, rng, epoch)

		if err != nil {
			return last, err
		}

		t.log.Infof("Epoch[%d] Train-loss=%f", epoch, m.Loss)
		t.log.Infof("Epoch[%d] Time cost=%.3f", epoch, time.Since(start).Seconds())

		if eval != nil {
			em, err := Evaluate(ctx, t.classifier, eval, t.params.BatchSize)

			if err != nil {
				return last, fmt.Errorf("epoch %d evaluation: %w", epoch, err)
			}

			m.Accuracy = em.Accuracy
			m.CharAccuracy = em.CharAccuracy
			m.DecodedAccuracy = em.DecodedAccuracy
			m.Samples = em.Samples

			t.log.Infof("Epoch[%d] Validation-accuracy=%f char-accuracy=%f decoded-accuracy=%f",
				epoch, em.Accuracy, em.CharAccuracy, em.DecodedAccuracy)
		}

		if t.params.Checkpoint != "" {
			if err := t.saveCheckpoint(); err != nil {
				return last, err
			}

			t.log.Infof("Saved checkpoint to \"%s\"", t.params.Checkpoint)
		}

		last = m
	}

	return last, nil
}

// epoch runs one pass over the training set and logs throughput every
// LogInterval batches
func (t *Trainer) epoch(ctx context.Context, ts *model.TrainSession, train *Dataset,
	rng *rand.Rand, epoch int) (Metrics, error) {

	var (
		m         Metrics
		total     float64
		batches   int
		window    float64
		tic       = time.Now()
		batchSize = t.params.BatchSize
	)

	err := train.Each(ctx, batchSize, rng, func(b *Batch) error {

		loss, err := ts.Step(b.Input(), b.Labels())

		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, batches, err)
		}

		total += loss
		window += loss
		batches++
		m.Samples += b.Len()

		if t.params.LogInterval > 0 && batches%t.params.LogInterval == 0 {
			elapsed := time.Since(tic).Seconds()
			speed := float64(t.params.LogInterval*batchSize) / elapsed

			t.log.Infof("Epoch[%d] Batch [%d]\tSpeed: %.2f samples/sec\tloss=%f",
				epoch, batches, speed, window/float64(t.params.LogInterval))

			window = 0
			tic = time.Now()
		}

		return nil
	})

	if err != nil {
		return m, err
	}

	if batches > 0 {
		m.Loss = total / float64(batches)
	}

	return m, nil
}

// saveCheckpoint writes the classifier to the configured path
func (t *Trainer) saveCheckpoint() error {

	var opts []model.SaveOption

	if t.params.HalfPrecision {
		opts = append(opts, model.WithHalfPrecision())
	}

	if err := model.SaveFile(t.params.Checkpoint, t.classifier, opts...); err != nil {
		return fmt.Errorf("error saving checkpoint: %w", err)
	}

	return nil
}

// Evaluate runs every example of the dataset through the classifier in
// batches and scores the predictions.  A trailing partial batch is padded
// with its last example and the padding is discarded.
func Evaluate(ctx context.Context, c *model.Classifier, ds *Dataset, batchSize int) (Metrics, error) {

	var m Metrics

	if ds == nil || ds.Len() == 0 {
		return m, fmt.Errorf("evaluation set is empty")
	}

	if batchSize > ds.Len() {
		batchSize = ds.Len()
	}

	sess, err := c.NewSession(batchSize)

	if err != nil {
		return m, err
	}

	defer sess.Close()

	examples := ds.Examples()
	preds := make([]platenet.Prediction, 0, len(examples))
	labels := make([]platenet.Label, 0, len(examples))
	b := NewBatch(batchSize, ds.InputSize())

	for start := 0; start < len(examples); start += batchSize {

		if err := ctx.Err(); err != nil {
			return m, err
		}

		end := start + batchSize

		if end > len(examples) {
			end = len(examples)
		}

		for i := 0; i < batchSize; i++ {
			e := examples[end-1]

			if start+i < end {
				e = examples[start+i]
			}

			if err := b.AddAt(i, e); err != nil {
				return m, err
			}
		}

		out, err := sess.Forward(b.Input())

		if err != nil {
			return m, err
		}

		for i := 0; i < end-start; i++ {
			preds = append(preds, out[i])
			labels = append(labels, examples[start+i].Label)
		}
	}

	return Score(preds, labels)
}

// Score compares predictions with their labels
func Score(preds []platenet.Prediction, labels []platenet.Label) (Metrics, error) {

	m := Metrics{Samples: len(labels)}

	flat, err := postprocess.ArgMax(preds)

	if err != nil {
		return m, err
	}

	truth := postprocess.FlattenLabels(labels)

	if m.Accuracy, err = postprocess.Accuracy(flat, truth); err != nil {
		return m, err
	}

	if m.CharAccuracy, err = postprocess.CharAccuracy(flat, truth); err != nil {
		return m, err
	}

	dec := postprocess.NewDecoder(postprocess.DecoderParams{})
	decoded, err := dec.DecodeBatch(preds)

	if err != nil {
		return m, err
	}

	hits := 0

	for i, plate := range decoded {
		want, err := platenet.Canonical(labels[i])

		if err != nil {
			return m, fmt.Errorf("label %d: %w", i, err)
		}

		if plate == want {
			hits++
		}
	}

	m.DecodedAccuracy = float64(hits) / float64(len(decoded))

	return m, nil
}
