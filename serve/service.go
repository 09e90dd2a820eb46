package serve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swdee/go-platenet"
	"github.com/swdee/go-platenet/postprocess"
	"github.com/swdee/go-platenet/preprocess"
)

// Version is reported by Ping as the engine version
const Version = "platenet/1.0"

// Predictor runs one preprocessed image through a plate model
type Predictor interface {
	Predict(ctx context.Context, input []float64) (platenet.Prediction, error)
}

// Preprocessor decodes an encoded image into a model input
type Preprocessor interface {
	Preprocess(data []byte) ([]float64, error)
}

// Request errors
var (
	// ErrEmptyImage is returned when a request carries no image data
	ErrEmptyImage = errors.New("empty image")
	// ErrImageTooLarge is returned when an image exceeds the upload limit
	ErrImageTooLarge = errors.New("image too large")
)

// Result is the recognised plate of one image
type Result struct {
	// Plate is the decoded plate with the province as its number
	Plate string `json:"plate"`
	// Confidence is the probability of the chosen character at each position
	Confidence []float64 `json:"confidence"`
}

// Signature describes the model input the service expects
type Signature struct {
	InputName  string `json:"input_name"`
	InputShape []int  `json:"input_shape"`
	OutputName string `json:"output_name"`
	// OutputShape is positions x classes
	OutputShape []int `json:"output_shape"`
}

// Service chains preprocessing, inference and decoding for single images
type Service struct {
	pre       Preprocessor
	predictor Predictor
	decoder   *postprocess.Decoder
	metrics   *Metrics
	signature Signature
}

// NewService returns a service over the given backend.  metrics may be nil.
func NewService(pre Preprocessor, predictor Predictor, height, width int,
	metrics *Metrics) *Service {

	return &Service{
		pre:       pre,
		predictor: predictor,
		decoder:   postprocess.NewDecoder(postprocess.DecoderParams{}),
		metrics:   metrics,
		signature: Signature{
			InputName:   "images",
			InputShape:  []int{1, 3, height, width},
			OutputName:  "softmax",
			OutputShape: []int{platenet.PlateLength, platenet.NumClasses},
		},
	}
}

// Preprocess decodes the image and prepares the model input
func (s *Service) Preprocess(data []byte) ([]float64, error) {

	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	defer s.observe("preprocess", time.Now())

	input, err := s.pre.Preprocess(data)

	if err != nil {
		return nil, fmt.Errorf("preprocess failed: %w", err)
	}

	return input, nil
}

// Inference runs the model on a preprocessed image
func (s *Service) Inference(ctx context.Context, input []float64) (platenet.Prediction, error) {

	defer s.observe("inference", time.Now())

	pred, err := s.predictor.Predict(ctx, input)

	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return pred, nil
}

// Postprocess decodes the prediction into a plate and its per position
// confidence
func (s *Service) Postprocess(pred platenet.Prediction) (Result, error) {

	defer s.observe("postprocess", time.Now())

	label, err := s.decoder.Indices(pred)

	if err != nil {
		return Result{}, fmt.Errorf("postprocess failed: %w", err)
	}

	plate, err := s.decoder.Decode(pred)

	if err != nil {
		return Result{}, fmt.Errorf("postprocess failed: %w", err)
	}

	res := Result{
		Plate:      plate,
		Confidence: make([]float64, platenet.PlateLength),
	}

	for pos, idx := range label {
		res.Confidence[pos] = pred[pos][idx]
	}

	return res, nil
}

// Recognize runs all three stages on an encoded image
func (s *Service) Recognize(ctx context.Context, data []byte) (Result, error) {

	input, err := s.Preprocess(data)

	if err != nil {
		return Result{}, err
	}

	pred, err := s.Inference(ctx, input)

	if err != nil {
		return Result{}, err
	}

	return s.Postprocess(pred)
}

// Ping reports the engine version to show the service is healthy
func (s *Service) Ping() string {
	return Version
}

// Signature returns the model input and output description
func (s *Service) Signature() Signature {
	return s.signature
}

// observe records a stage latency
func (s *Service) observe(stage string, start time.Time) {

	if s.metrics == nil {
		return
	}

	s.metrics.stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IsClientError reports whether err was caused by a bad request rather than
// a fault in the service
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyImage) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, platenet.ErrShapeMismatch) ||
		errors.Is(err, platenet.ErrInvalidPlateFormat) ||
		errors.Is(err, platenet.ErrUnknownCharacter) ||
		errors.Is(err, preprocess.ErrDecode)
}
