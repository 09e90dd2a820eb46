package model

import (
	"fmt"
)

// Channels is the number of colour planes of the model input
const Channels = 3

// Config describes the network topology.  The trunk is one block per
// kernel of convolution, 2x2 stride 1 max pooling and ReLU, followed by a
// single fully connected layer shared by all heads.
type Config struct {
	// Height and Width of the input image
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
	// Filters is the number of convolution filters in every block
	Filters int `yaml:"filters"`
	// Kernels holds the square kernel size of each convolution block
	Kernels []int `yaml:"kernels"`
	// Hidden is the width of the shared fully connected layer
	Hidden int `yaml:"hidden"`
}

// DefaultConfig returns the topology the plate model is trained with
func DefaultConfig() Config {
	return Config{
		Height:  30,
		Width:   120,
		Filters: 32,
		Kernels: []int{5, 5, 3, 3},
		Hidden:  120,
	}
}

// InputSize returns the number of values of a single input image
func (c Config) InputSize() int {
	return Channels * c.Height * c.Width
}

// featureSize returns the spatial size of the trunk output.  An unpadded
// k x k convolution shrinks each side by k-1 and the 2x2 stride 1 pooling
// by one more.
func (c Config) featureSize() (int, int) {

	h, w := c.Height, c.Width

	for _, k := range c.Kernels {
		h -= k
		w -= k
	}

	return h, w
}

// Validate checks the topology produces a non empty feature map
func (c Config) Validate() error {

	if c.Height <= 0 || c.Width <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.Width, c.Height)
	}

	if c.Filters <= 0 || c.Hidden <= 0 {
		return fmt.Errorf("invalid filters %d or hidden size %d", c.Filters, c.Hidden)
	}

	if len(c.Kernels) == 0 {
		return fmt.Errorf("at least one convolution block is required")
	}

	for i, k := range c.Kernels {
		if k <= 0 {
			return fmt.Errorf("invalid kernel size %d for block %d", k, i+1)
		}
	}

	if h, w := c.featureSize(); h <= 0 || w <= 0 {
		return fmt.Errorf("input %dx%d is too small for kernels %v",
			c.Width, c.Height, c.Kernels)
	}

	return nil
}

// equal reports whether two configs describe the same topology
func (c Config) equal(o Config) bool {

	if c.Height != o.Height || c.Width != o.Width || c.Filters != o.Filters ||
		c.Hidden != o.Hidden || len(c.Kernels) != len(o.Kernels) {
		return false
	}

	for i := range c.Kernels {
		if c.Kernels[i] != o.Kernels[i] {
			return false
		}
	}

	return true
}
