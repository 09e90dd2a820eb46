package model

import (
	"fmt"
	"math"

	"github.com/swdee/go-platenet"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// xavierMagnitude is the Xavier "in" magnitude the weights are drawn with
const xavierMagnitude = 2.34

// Param is a named, trainable weight or bias
type Param struct {
	Name  string
	Shape tensor.Shape
	// Data is the row major parameter storage.  Sessions created from the
	// Classifier read it directly.
	Data []float64
	// bias parameters are zero initialised
	bias bool
}

// Params is the ordered set of network parameters
type Params struct {
	list   []*Param
	byName map[string]*Param
}

// convName returns the parameter name for convolution block i, counting
// from 1
func convName(i int, kind string) string {
	return fmt.Sprintf("conv%d_%s", i, kind)
}

// headName returns the parameter name for output head i, counting from 0
func headName(i int, kind string) string {
	return fmt.Sprintf("head%d_%s", i, kind)
}

// newParams allocates zeroed parameters for the topology
func newParams(cfg Config) *Params {

	p := &Params{
		byName: make(map[string]*Param),
	}

	in := Channels

	for i, k := range cfg.Kernels {
		p.add(convName(i+1, "weight"), false, cfg.Filters, in, k, k)
		p.add(convName(i+1, "bias"), true, 1, cfg.Filters, 1, 1)
		in = cfg.Filters
	}

	h, w := cfg.featureSize()

	p.add("fc1_weight", false, cfg.Filters*h*w, cfg.Hidden)
	p.add("fc1_bias", true, 1, cfg.Hidden)

	for i := 0; i < platenet.PlateLength; i++ {
		p.add(headName(i, "weight"), false, cfg.Hidden, platenet.NumClasses)
		p.add(headName(i, "bias"), true, 1, platenet.NumClasses)
	}

	return p
}

// add appends a zeroed parameter of the given shape
func (p *Params) add(name string, bias bool, shape ...int) {

	param := &Param{
		Name:  name,
		Shape: tensor.Shape(shape),
		Data:  make([]float64, tensor.Shape(shape).TotalSize()),
		bias:  bias,
	}

	p.list = append(p.list, param)
	p.byName[name] = param
}

// List returns the parameters in network order
func (p *Params) List() []*Param {
	return p.list
}

// Get returns the named parameter
func (p *Params) Get(name string) (*Param, bool) {
	param, ok := p.byName[name]
	return param, ok
}

// Count returns the total number of trainable values
func (p *Params) Count() int {

	n := 0

	for _, param := range p.list {
		n += len(param.Data)
	}

	return n
}

// fanIn returns the number of inputs feeding each output unit of a weight.
// Convolution weights are (out, in, k, k) and dense weights (in, out).
func (param *Param) fanIn() int {

	if len(param.Shape) == 4 {
		return param.Shape[1] * param.Shape[2] * param.Shape[3]
	}

	return param.Shape[0]
}

// initXavier draws weights uniformly from [-s, s] with
// s = sqrt(magnitude / fanIn) and zeroes biases
func (p *Params) initXavier() {

	for _, param := range p.list {
		if param.bias {
			for i := range param.Data {
				param.Data[i] = 0
			}
			continue
		}

		s := math.Sqrt(xavierMagnitude / float64(param.fanIn()))
		dist := distuv.Uniform{Min: -s, Max: s}

		for i := range param.Data {
			param.Data[i] = dist.Rand()
		}
	}
}

// dense returns a tensor view over the parameter storage
func (param *Param) dense() *tensor.Dense {
	return denseOf(param.Shape, param.Data)
}
