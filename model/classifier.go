package model

import (
	"context"
	"fmt"
	"math"

	"github.com/swdee/go-platenet"
	"gorgonia.org/gorgonia"
)

// Classifier is the multi-head plate classifier.  It owns the parameters;
// sessions built from it run the network.  Training writes the parameters in
// place, so do not run a TrainSession at the same time as other sessions of
// the same Classifier.
type Classifier struct {
	cfg    Config
	params *Params
}

// New returns a classifier with freshly initialised weights
func New(cfg Config) (*Classifier, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	c := &Classifier{
		cfg:    cfg,
		params: newParams(cfg),
	}

	c.params.initXavier()

	return c, nil
}

// Config returns the network topology
func (c *Classifier) Config() Config {
	return c.cfg
}

// Params returns the network parameters
func (c *Classifier) Params() *Params {
	return c.params
}

// Session runs inference for a fixed batch size.  It is not safe for
// concurrent use.
type Session struct {
	net *network
}

// NewSession builds an inference session for batches of the given size
func (c *Classifier) NewSession(batch int) (*Session, error) {

	net, err := buildNetwork(c.cfg, c.params, batch, false)

	if err != nil {
		return nil, fmt.Errorf("error building inference network: %w", err)
	}

	return &Session{net: net}, nil
}

// Batch returns the number of images each Forward call takes
func (s *Session) Batch() int {
	return s.net.batch
}

// Forward runs the network on exactly Batch() images laid out as
// (batch, channels, height, width) and returns one Prediction per image
func (s *Session) Forward(input []float64) ([]platenet.Prediction, error) {

	probs, err := s.net.forward(input)

	if err != nil {
		return nil, err
	}

	return platenet.SplitPredictions(probs, s.net.batch, platenet.HeadMajor)
}

// Predict runs a single image through a batch size one session
func (s *Session) Predict(ctx context.Context, input []float64) (platenet.Prediction, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.net.batch != 1 {
		return nil, fmt.Errorf("%w: Predict needs a batch size 1 session, have %d",
			platenet.ErrShapeMismatch, s.net.batch)
	}

	preds, err := s.Forward(input)

	if err != nil {
		return nil, err
	}

	return preds[0], nil
}

// Close releases the session
func (s *Session) Close() error {
	return s.net.close()
}

// SolverParams configures the momentum SGD optimiser
type SolverParams struct {
	LearnRate   float64
	Momentum    float64
	WeightDecay float64
}

// TrainSession runs training steps for a fixed batch size
type TrainSession struct {
	net    *network
	solver gorgonia.Solver
	params *Params
	// onehot is the reusable target buffer
	onehot []float64
}

// NewTrainSession builds a training session for batches of the given size
func (c *Classifier) NewTrainSession(batch int, sp SolverParams) (*TrainSession, error) {

	if sp.LearnRate <= 0 {
		return nil, fmt.Errorf("invalid learn rate %f", sp.LearnRate)
	}

	net, err := buildNetwork(c.cfg, c.params, batch, true)

	if err != nil {
		return nil, fmt.Errorf("error building training network: %w", err)
	}

	opts := []gorgonia.SolverOpt{
		gorgonia.WithLearnRate(sp.LearnRate),
		gorgonia.WithBatchSize(float64(batch)),
	}

	if sp.Momentum > 0 {
		opts = append(opts, gorgonia.WithMomentum(sp.Momentum))
	}

	if sp.WeightDecay > 0 {
		opts = append(opts, gorgonia.WithL2Reg(sp.WeightDecay))
	}

	return &TrainSession{
		net:    net,
		solver: gorgonia.NewMomentum(opts...),
		params: c.params,
		onehot: make([]float64, platenet.PlateLength*batch*platenet.NumClasses),
	}, nil
}

// Batch returns the number of images each Step takes
func (t *TrainSession) Batch() int {
	return t.net.batch
}

// Step runs one forward and backward pass over the batch and updates the
// trunk and every head.  It returns the summed cross entropy of the nine
// heads averaged over the batch.
func (t *TrainSession) Step(input []float64, labels []platenet.Label) (float64, error) {

	defer t.net.vm.Reset()

	cost, err := t.run(input, labels)

	if err != nil {
		return 0, err
	}

	if err := t.solver.Step(gorgonia.NodesToValueGrads(t.net.params)); err != nil {
		return 0, fmt.Errorf("error updating weights: %w", err)
	}

	if err := t.syncParams(); err != nil {
		return 0, err
	}

	loss := cost / float64(t.net.batch)

	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("training diverged, loss is %f", loss)
	}

	return loss, nil
}

// run binds the batch and the classifier's weights, executes the forward and
// backward pass and returns the summed cost.  Gradients are left on the
// parameter nodes for the solver.
func (t *TrainSession) run(input []float64, labels []platenet.Label) (float64, error) {

	if len(labels) != t.net.batch {
		return 0, fmt.Errorf("%w: %d labels for batch %d",
			platenet.ErrShapeMismatch, len(labels), t.net.batch)
	}

	if err := t.net.setInput(input); err != nil {
		return 0, err
	}

	if err := t.setTarget(labels); err != nil {
		return 0, err
	}

	if err := t.net.bindParams(); err != nil {
		return 0, err
	}

	if err := t.net.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("error running training step: %w", err)
	}

	if t.net.costVal == nil {
		return 0, fmt.Errorf("training step produced no cost")
	}

	cost, ok := t.net.costVal.Data().(float64)

	if !ok {
		return 0, fmt.Errorf("unexpected cost type %T", t.net.costVal.Data())
	}

	return cost, nil
}

// setTarget writes the one hot encoding of the labels, one (batch, classes)
// block per head, and binds each block to its head
func (t *TrainSession) setTarget(labels []platenet.Label) error {

	for i := range t.onehot {
		t.onehot[i] = 0
	}

	batch := t.net.batch

	for img, label := range labels {
		for pos, idx := range label {
			if idx < 0 || idx >= platenet.NumClasses {
				return fmt.Errorf("%w: label %d position %d has class %d",
					platenet.ErrShapeMismatch, img, pos, idx)
			}

			row := pos*batch + img
			t.onehot[row*platenet.NumClasses+idx] = 1
		}
	}

	block := batch * platenet.NumClasses

	for pos, y := range t.net.y {
		data := t.onehot[pos*block : (pos+1)*block]

		if err := gorgonia.Let(y, denseOf(y.Shape().Clone(), data)); err != nil {
			return fmt.Errorf("error binding target of head %d: %w", pos, err)
		}
	}

	return nil
}

// syncParams copies the updated weights back into the classifier's
// parameter storage
func (t *TrainSession) syncParams() error {

	for i, node := range t.net.params {
		data, ok := node.Value().Data().([]float64)

		if !ok {
			return fmt.Errorf("unexpected value type for %s", node.Name())
		}

		copy(t.params.list[i].Data, data)
	}

	return nil
}

// Close releases the session
func (t *TrainSession) Close() error {
	return t.net.close()
}
