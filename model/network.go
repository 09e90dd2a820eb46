package model

import (
	"fmt"

	"github.com/swdee/go-platenet"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// head is one output branch of the network, a dense layer scoring every
// alphabet class for a single plate position
type head struct {
	weight *gorgonia.Node
	bias   *gorgonia.Node
}

// network is the expression graph of the classifier for a fixed batch size
type network struct {
	cfg   Config
	batch int
	g     *gorgonia.ExprGraph
	// x is the (batch, channels, height, width) input
	x *gorgonia.Node
	// params are the parameter nodes in Params order and values the tensors
	// bound to them
	params []*gorgonia.Node
	values []*tensor.Dense
	// heads are indexed by plate position
	heads [platenet.PlateLength]head
	// logits are the (batch, NumClasses) scores of each head
	logits [platenet.PlateLength]*gorgonia.Node
	// probs is the (PlateLength*batch, NumClasses) head major softmax output,
	// built for inference only
	probs    *gorgonia.Node
	probsVal gorgonia.Value
	// y holds the (batch, NumClasses) one hot target of each head
	y       [platenet.PlateLength]*gorgonia.Node
	cost    *gorgonia.Node
	costVal gorgonia.Value
	vm      gorgonia.VM
}

// buildNetwork constructs the graph over the given parameters.  When train
// is set the cross entropy cost and its gradients are added as well.
func buildNetwork(cfg Config, params *Params, batch int, train bool) (*network, error) {

	if batch < 1 {
		return nil, fmt.Errorf("invalid batch size %d", batch)
	}

	g := gorgonia.NewGraph()

	n := &network{
		cfg:   cfg,
		batch: batch,
		g:     g,
	}

	n.x = gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(batch, Channels, cfg.Height, cfg.Width),
		gorgonia.WithName("data"))

	byName := make(map[string]*gorgonia.Node, len(params.list))

	for _, p := range params.list {
		val := p.dense()
		node := gorgonia.NewTensor(g, tensor.Float64, len(p.Shape),
			gorgonia.WithShape(p.Shape...),
			gorgonia.WithName(p.Name),
			gorgonia.WithValue(val))

		n.params = append(n.params, node)
		n.values = append(n.values, val)
		byName[p.Name] = node
	}

	// trunk
	h := n.x

	for i, k := range cfg.Kernels {
		var err error

		h, err = convBlock(h, byName[convName(i+1, "weight")], byName[convName(i+1, "bias")], k)

		if err != nil {
			return nil, fmt.Errorf("convolution block %d: %w", i+1, err)
		}
	}

	fh, fw := cfg.featureSize()

	flat, err := gorgonia.Reshape(h, tensor.Shape{batch, cfg.Filters * fh * fw})

	if err != nil {
		return nil, fmt.Errorf("error flattening features: %w", err)
	}

	fc, err := dense(flat, byName["fc1_weight"], byName["fc1_bias"])

	if err != nil {
		return nil, fmt.Errorf("fc1: %w", err)
	}

	// heads
	for i := range n.heads {
		n.heads[i] = head{
			weight: byName[headName(i, "weight")],
			bias:   byName[headName(i, "bias")],
		}

		n.logits[i], err = dense(fc, n.heads[i].weight, n.heads[i].bias)

		if err != nil {
			return nil, fmt.Errorf("head %d: %w", i, err)
		}
	}

	if !train {
		if err := n.addOutput(); err != nil {
			return nil, err
		}

		n.vm = gorgonia.NewTapeMachine(g)
		return n, nil
	}

	if err := n.addCost(); err != nil {
		return nil, err
	}

	n.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(n.params...))

	return n, nil
}

// convBlock applies convolution with bias, max pooling and ReLU
func convBlock(x, w, b *gorgonia.Node, k int) (*gorgonia.Node, error) {

	c, err := gorgonia.Conv2d(x, w, tensor.Shape{k, k}, []int{0, 0}, []int{1, 1}, []int{1, 1})

	if err != nil {
		return nil, fmt.Errorf("convolution failed: %w", err)
	}

	// bias is (1, filters, 1, 1)
	if c, err = gorgonia.BroadcastAdd(c, b, nil, []byte{0, 2, 3}); err != nil {
		return nil, fmt.Errorf("convolution bias failed: %w", err)
	}

	p, err := gorgonia.MaxPool2D(c, tensor.Shape{2, 2}, []int{0, 0}, []int{1, 1})

	if err != nil {
		return nil, fmt.Errorf("max pooling failed: %w", err)
	}

	a, err := gorgonia.Rectify(p)

	if err != nil {
		return nil, fmt.Errorf("activation failed: %w", err)
	}

	return a, nil
}

// dense computes x·w + b with b of shape (1, out) broadcast over the batch
func dense(x, w, b *gorgonia.Node) (*gorgonia.Node, error) {

	xw, err := gorgonia.Mul(x, w)

	if err != nil {
		return nil, fmt.Errorf("matmul failed: %w", err)
	}

	out, err := gorgonia.BroadcastAdd(xw, b, nil, []byte{0})

	if err != nil {
		return nil, fmt.Errorf("bias failed: %w", err)
	}

	return out, nil
}

// addOutput concatenates the heads along the batch axis and applies the
// softmax per row
func (n *network) addOutput() error {

	all, err := gorgonia.Concat(0, n.logits[:]...)

	if err != nil {
		return fmt.Errorf("error concatenating heads: %w", err)
	}

	if n.probs, err = gorgonia.SoftMax(all); err != nil {
		return fmt.Errorf("error applying softmax: %w", err)
	}

	gorgonia.Read(n.probs, &n.probsVal)

	return nil
}

// addCost adds the softmax cross entropy of every head against its one hot
// target, summed over heads and images, and the gradients of every
// parameter.  Each head's loss is logsumexp(z) - z[label] so gradients reach
// every head through the primitive ops alone.
func (n *network) addCost() error {

	var total *gorgonia.Node

	for i, z := range n.logits {
		n.y[i] = gorgonia.NewMatrix(n.g, tensor.Float64,
			gorgonia.WithShape(n.batch, platenet.NumClasses),
			gorgonia.WithName(fmt.Sprintf("head%d_label", i)))

		loss, err := headLoss(z, n.y[i])

		if err != nil {
			return fmt.Errorf("error building cost of head %d: %w", i, err)
		}

		if total == nil {
			total = loss
			continue
		}

		if total, err = gorgonia.Add(total, loss); err != nil {
			return fmt.Errorf("error building cost: %w", err)
		}
	}

	var err error

	if n.cost, err = gorgonia.Sum(total); err != nil {
		return fmt.Errorf("error building cost: %w", err)
	}

	gorgonia.Read(n.cost, &n.costVal)

	if _, err = gorgonia.Grad(n.cost, n.params...); err != nil {
		return fmt.Errorf("error computing gradients: %w", err)
	}

	return nil
}

// headLoss returns the per image cross entropy of logits z, shape
// (batch, classes), against the one hot target y
func headLoss(z, y *gorgonia.Node) (*gorgonia.Node, error) {

	e, err := gorgonia.Exp(z)

	if err != nil {
		return nil, err
	}

	s, err := gorgonia.Sum(e, 1)

	if err != nil {
		return nil, err
	}

	lse, err := gorgonia.Log(s)

	if err != nil {
		return nil, err
	}

	zy, err := gorgonia.HadamardProd(z, y)

	if err != nil {
		return nil, err
	}

	picked, err := gorgonia.Sum(zy, 1)

	if err != nil {
		return nil, err
	}

	return gorgonia.Sub(lse, picked)
}

// bindParams binds the classifier's current weights to the parameter nodes
func (n *network) bindParams() error {

	for i, node := range n.params {
		if err := gorgonia.Let(node, n.values[i]); err != nil {
			return fmt.Errorf("error binding %s: %w", node.Name(), err)
		}
	}

	return nil
}

// setInput binds a flat (batch, channels, height, width) input
func (n *network) setInput(input []float64) error {

	if want := n.batch * n.cfg.InputSize(); len(input) != want {
		return fmt.Errorf("%w: input has %d values, want %d for batch %d",
			platenet.ErrShapeMismatch, len(input), want, n.batch)
	}

	x := denseOf(tensor.Shape{n.batch, Channels, n.cfg.Height, n.cfg.Width}, input)

	if err := gorgonia.Let(n.x, x); err != nil {
		return fmt.Errorf("error setting input: %w", err)
	}

	return nil
}

// forward runs the inference graph and returns a copy of the head major
// probabilities
func (n *network) forward(input []float64) ([]float64, error) {

	if err := n.setInput(input); err != nil {
		return nil, err
	}

	if err := n.bindParams(); err != nil {
		return nil, err
	}

	defer n.vm.Reset()

	if err := n.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("error running model: %w", err)
	}

	return n.readProbs()
}

// readProbs copies the softmax output out of the graph
func (n *network) readProbs() ([]float64, error) {

	if n.probsVal == nil {
		return nil, fmt.Errorf("model produced no output")
	}

	data, ok := n.probsVal.Data().([]float64)

	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", n.probsVal.Data())
	}

	out := make([]float64, len(data))
	copy(out, data)

	return out, nil
}

// close releases the machine
func (n *network) close() error {
	return n.vm.Close()
}

// denseOf wraps a flat slice as a tensor of the given shape
func denseOf(shape tensor.Shape, data []float64) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}
