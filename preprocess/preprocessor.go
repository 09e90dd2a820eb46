package preprocess

import (
	"fmt"
	"image"

	"github.com/swdee/go-platenet"
	"gocv.io/x/gocv"
)

// bgrOrder keeps OpenCV's native BGR channel order, which is what the model
// is trained on
var bgrOrder = [InputChannels]int{0, 1, 2}

// Preprocessor uses OpenCV to decode and resize plate images into model
// input tensors.  It holds no Mats between calls so is safe for concurrent
// use.
type Preprocessor struct {
	params Params
}

// NewPreprocessor returns a gocv backed preprocessor
func NewPreprocessor(p Params) (*Preprocessor, error) {

	if err := p.validate(); err != nil {
		return nil, err
	}

	return &Preprocessor{params: p}, nil
}

// Params returns the preprocessing parameters
func (p *Preprocessor) Params() Params {
	return p.params
}

// Preprocess decodes an encoded image (jpeg, png, ...) and returns the CHW
// input tensor
func (p *Preprocessor) Preprocess(data []byte) ([]float64, error) {

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrDecode)
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("%w: unsupported or corrupt data", ErrDecode)
	}

	return p.Mat(img)
}

// File reads an image file and returns the CHW input tensor
func (p *Preprocessor) File(path string) ([]float64, error) {

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("error reading image from: %s", path)
	}

	return p.Mat(img)
}

// Mat resizes an already decoded image and returns the CHW input tensor.
// Grayscale and BGRA images are converted to BGR first.
func (p *Preprocessor) Mat(img gocv.Mat) ([]float64, error) {

	if img.Empty() {
		return nil, fmt.Errorf("error source Mat is empty")
	}

	bgr := gocv.NewMat()
	defer bgr.Close()

	switch img.Channels() {
	case 1:
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
	case 3:
		img.CopyTo(&bgr)
	case 4:
		gocv.CvtColor(img, &bgr, gocv.ColorBGRAToBGR)
	default:
		return nil, fmt.Errorf("%w: unsupported channel count %d",
			platenet.ErrShapeMismatch, img.Channels())
	}

	if bgr.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: unsupported Mat type %d",
			platenet.ErrShapeMismatch, int(bgr.Type()))
	}

	src := bgr

	if p.params.Intermediate != (image.Point{}) {
		mid := gocv.NewMat()
		defer mid.Close()

		gocv.Resize(bgr, &mid, p.params.Intermediate, 0, 0, gocv.InterpolationLinear)
		src = mid
	}

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Resize(src, &dst, image.Pt(p.params.Width, p.params.Height),
		0, 0, gocv.InterpolationLinear)

	// make mat continuous
	if !dst.IsContinuous() {
		cont := dst.Clone()
		defer cont.Close()
		dst = cont
	}

	pix, err := dst.DataPtrUint8()

	if err != nil {
		return nil, fmt.Errorf("error getting data pointer to Mat: %w", err)
	}

	return hwcToCHW(pix, p.params.Width*InputChannels, InputChannels, bgrOrder,
		p.params.Width, p.params.Height, p.params.Scale), nil
}
