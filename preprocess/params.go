package preprocess

import (
	"errors"
	"fmt"
	"image"
)

// ErrDecode is returned when image data is empty or cannot be decoded
var ErrDecode = errors.New("error decoding image")

// Tensor input size of the plate model
const (
	InputChannels = 3
	InputHeight   = 30
	InputWidth    = 120
)

// Params defines how a plate image is turned into a model input tensor
type Params struct {
	// Width and Height of the model input
	Width  int
	Height int
	// Intermediate is an optional size the image is first resized to before
	// the final resize.  The serving path of the trained model resized to
	// 292x72 first, zero value skips the step.
	Intermediate image.Point
	// Scale multiplies every pixel value, 1/255 maps pixels into [0,1]
	Scale float64
}

// DefaultParams returns the parameters the model is trained with
func DefaultParams() Params {
	return Params{
		Width:  InputWidth,
		Height: InputHeight,
		Scale:  1.0 / 255.0,
	}
}

// ServingParams returns the parameters of the serving path, which resizes via
// the intermediate 292x72 canvas
func ServingParams() Params {
	p := DefaultParams()
	p.Intermediate = image.Pt(292, 72)
	return p
}

// Size returns the number of values in one input tensor
func (p Params) Size() int {
	return InputChannels * p.Height * p.Width
}

// validate checks the parameters describe a usable input
func (p Params) validate() error {

	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", p.Width, p.Height)
	}

	if p.Intermediate.X < 0 || p.Intermediate.Y < 0 ||
		(p.Intermediate.X == 0) != (p.Intermediate.Y == 0) {
		return fmt.Errorf("invalid intermediate size %dx%d",
			p.Intermediate.X, p.Intermediate.Y)
	}

	if p.Scale <= 0 {
		return fmt.Errorf("invalid pixel scale %f", p.Scale)
	}

	return nil
}

// hwcToCHW converts interleaved 8 bit pixels into a planar float tensor.
// order gives the source byte offset within a pixel for each output
// channel, stride is the number of bytes between rows.
func hwcToCHW(pix []uint8, stride, pixelSize int, order [InputChannels]int,
	width, height int, scale float64) []float64 {

	plane := width * height
	out := make([]float64, InputChannels*plane)

	for y := 0; y < height; y++ {
		row := pix[y*stride:]

		for x := 0; x < width; x++ {
			px := row[x*pixelSize:]

			for c := 0; c < InputChannels; c++ {
				out[c*plane+y*width+x] = float64(px[order[c]]) * scale
			}
		}
	}

	return out
}
