package train

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/swdee/go-platenet"
	"golang.org/x/sync/errgroup"
)

// ImageLoader turns an image file into a model input
type ImageLoader interface {
	File(path string) ([]float64, error)
}

// Example is one decoded training sample
type Example struct {
	Sample platenet.Sample
	Label  platenet.Label
	// Input is the preprocessed (channels, height, width) image
	Input []float64
}

// Dataset is an ordered set of examples sharing one input size
type Dataset struct {
	examples  []Example
	inputSize int
}

// LoadDataset encodes every sample's plate and loads its image from
// imageDir using up to workers goroutines.  Any bad plate or image fails the
// whole load.
func LoadDataset(ctx context.Context, samples []platenet.Sample, imageDir string,
	loader ImageLoader, workers int) (*Dataset, error) {

	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to load")
	}

	if workers < 1 {
		workers = 1
	}

	examples := make([]Example, len(samples))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, s := range samples {
		i, s := i, s

		g.Go(func() error {

			if err := ctx.Err(); err != nil {
				return err
			}

			label, err := platenet.Encode(s.Plate)

			if err != nil {
				return fmt.Errorf("sample %s: %w", s.File, err)
			}

			input, err := loader.File(filepath.Join(imageDir, s.File))

			if err != nil {
				return fmt.Errorf("sample %s: %w", s.File, err)
			}

			examples[i] = Example{
				Sample: s,
				Label:  label,
				Input:  input,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewDataset(examples)
}

// NewDataset wraps already loaded examples.  Every input must be the same
// size.
func NewDataset(examples []Example) (*Dataset, error) {

	if len(examples) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	size := len(examples[0].Input)

	for i, e := range examples {
		if len(e.Input) != size || size == 0 {
			return nil, fmt.Errorf("%w: example %d has %d input values, want %d",
				platenet.ErrShapeMismatch, i, len(e.Input), size)
		}
	}

	return &Dataset{
		examples:  examples,
		inputSize: size,
	}, nil
}

// Len returns the number of examples
func (d *Dataset) Len() int {
	return len(d.examples)
}

// InputSize returns the number of values of each example's input
func (d *Dataset) InputSize() int {
	return d.inputSize
}

// Examples returns the examples in order
func (d *Dataset) Examples() []Example {
	return d.examples
}

// Split returns the first n examples and the remainder.  Either side may be
// nil when n is zero or not less than Len.
func (d *Dataset) Split(n int) (*Dataset, *Dataset) {

	if n <= 0 {
		return nil, d
	}

	if n >= len(d.examples) {
		return d, nil
	}

	return d.slice(0, n), d.slice(n, len(d.examples))
}

// Head returns at most the first n examples
func (d *Dataset) Head(n int) *Dataset {

	if n <= 0 || n >= len(d.examples) {
		return d
	}

	return d.slice(0, n)
}

func (d *Dataset) slice(from, to int) *Dataset {
	return &Dataset{
		examples:  d.examples[from:to],
		inputSize: d.inputSize,
	}
}

// Each calls fn with consecutive full batches of size examples.  A trailing
// remainder smaller than size is skipped.  When rng is not nil the order is
// shuffled first.  The batch passed to fn is reused between calls.
func (d *Dataset) Each(ctx context.Context, size int, rng *rand.Rand,
	fn func(b *Batch) error) error {

	if size < 1 {
		return fmt.Errorf("invalid batch size %d", size)
	}

	order := make([]int, len(d.examples))

	for i := range order {
		order[i] = i
	}

	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	b := NewBatch(size, d.inputSize)

	for _, idx := range order {

		if err := b.Add(d.examples[idx]); err != nil {
			return err
		}

		if !b.Full() {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(b); err != nil {
			return err
		}

		b.Clear()
	}

	return nil
}
