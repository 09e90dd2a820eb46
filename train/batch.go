package train

import (
	"fmt"

	"github.com/swdee/go-platenet"
)

// Batch concatenates the inputs of several examples into a single
// (batch, channels, height, width) buffer for a model step
type Batch struct {
	// input is the concatenated image buffer
	input []float64
	// labels holds the label of each image added
	labels []platenet.Label
	// size of the batch
	size int
	// imgSize is the number of values in a single image
	imgSize int
	// cnt is a counter for how many examples have been added with Add()
	cnt int
}

// NewBatch creates a batch for size images of imgSize values each
func NewBatch(size, imgSize int) *Batch {
	return &Batch{
		input:   make([]float64, size*imgSize),
		labels:  make([]platenet.Label, size),
		size:    size,
		imgSize: imgSize,
	}
}

// Add an example to the batch
func (b *Batch) Add(e Example) error {

	if b.cnt >= b.size {
		return fmt.Errorf("batch full")
	}

	if err := b.AddAt(b.cnt, e); err != nil {
		return err
	}

	b.cnt++
	return nil
}

// AddAt places an example at the specific index location
func (b *Batch) AddAt(idx int, e Example) error {

	if idx < 0 || idx >= b.size {
		return fmt.Errorf("index %d out of range [0-%d)", idx, b.size)
	}

	if len(e.Input) != b.imgSize {
		return fmt.Errorf("%w: image has %d values, batch expects %d",
			platenet.ErrShapeMismatch, len(e.Input), b.imgSize)
	}

	copy(b.input[idx*b.imgSize:], e.Input)
	b.labels[idx] = e.Label

	return nil
}

// Full reports whether every slot has been filled by Add
func (b *Batch) Full() bool {
	return b.cnt == b.size
}

// Len returns the number of examples added
func (b *Batch) Len() int {
	return b.cnt
}

// Size returns the batch capacity
func (b *Batch) Size() int {
	return b.size
}

// Input returns the concatenated image buffer
func (b *Batch) Input() []float64 {
	return b.input
}

// Labels returns the labels of the batch in image order
func (b *Batch) Labels() []platenet.Label {
	return b.labels
}

// Clear the batch so it can be reused again.  The buffers are overwritten
// by the next Add calls.
func (b *Batch) Clear() {
	b.cnt = 0
}
