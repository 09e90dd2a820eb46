package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"os"

	// image formats accepted by DrawPreprocessor
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// rgbaToBGR maps the RGBA byte layout of image.RGBA onto BGR planes
var rgbaToBGR = [InputChannels]int{2, 1, 0}

// DrawPreprocessor is a pure Go preprocessor for hosts without OpenCV.  It
// decodes with the standard library and x/image codecs and resizes with
// bilinear interpolation, producing the same tensor layout as Preprocessor.
type DrawPreprocessor struct {
	params Params
}

// NewDrawPreprocessor returns a preprocessor that does not depend on OpenCV
func NewDrawPreprocessor(p Params) (*DrawPreprocessor, error) {

	if err := p.validate(); err != nil {
		return nil, err
	}

	return &DrawPreprocessor{params: p}, nil
}

// Params returns the preprocessing parameters
func (d *DrawPreprocessor) Params() Params {
	return d.params
}

// Preprocess decodes an encoded image and returns the CHW input tensor
func (d *DrawPreprocessor) Preprocess(data []byte) ([]float64, error) {

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return d.Image(img)
}

// File reads an image file and returns the CHW input tensor
func (d *DrawPreprocessor) File(path string) ([]float64, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading image from %s: %w", path, err)
	}

	return d.Preprocess(data)
}

// Image resizes a decoded image and returns the CHW input tensor
func (d *DrawPreprocessor) Image(img image.Image) ([]float64, error) {

	if img.Bounds().Empty() {
		return nil, fmt.Errorf("error source image is empty")
	}

	src := img

	if d.params.Intermediate != (image.Point{}) {
		mid := image.NewRGBA(image.Rect(0, 0, d.params.Intermediate.X, d.params.Intermediate.Y))
		draw.BiLinear.Scale(mid, mid.Bounds(), img, img.Bounds(), draw.Src, nil)
		src = mid
	}

	dst := image.NewRGBA(image.Rect(0, 0, d.params.Width, d.params.Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return hwcToCHW(dst.Pix, dst.Stride, 4, rgbaToBGR,
		d.params.Width, d.params.Height, d.params.Scale), nil
}
