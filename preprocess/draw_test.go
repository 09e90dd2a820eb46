package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidPNG returns a PNG encoded image filled with a single color
func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {

	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func TestDrawPreprocessorLayout(t *testing.T) {

	for _, params := range []Params{DefaultParams(), ServingParams()} {
		pre, err := NewDrawPreprocessor(params)
		require.NoError(t, err)

		// pure red, the R plane is the last of the BGR planes
		data := solidPNG(t, 440, 140, color.RGBA{R: 255, G: 51, B: 0, A: 255})

		out, err := pre.Preprocess(data)
		require.NoError(t, err)
		require.Len(t, out, params.Size())

		plane := InputHeight * InputWidth

		for i := 0; i < plane; i++ {
			assert.InDelta(t, 0.0, out[i], 1e-9)
			assert.InDelta(t, 0.2, out[plane+i], 1e-9)
			assert.InDelta(t, 1.0, out[2*plane+i], 1e-9)
		}
	}
}

func TestDrawPreprocessorErrors(t *testing.T) {

	pre, err := NewDrawPreprocessor(DefaultParams())
	require.NoError(t, err)

	_, err = pre.Preprocess(nil)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = pre.Preprocess([]byte("not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = pre.File("/nonexistent/plate.png")
	assert.Error(t, err)
}

func TestParamsValidate(t *testing.T) {

	tests := []struct {
		name   string
		params Params
		ok     bool
	}{
		{"default", DefaultParams(), true},
		{"serving", ServingParams(), true},
		{"zero size", Params{Scale: 1}, false},
		{"half intermediate", Params{Width: 4, Height: 4, Scale: 1, Intermediate: image.Pt(10, 0)}, false},
		{"no scale", Params{Width: 4, Height: 4}, false},
	}

	for _, tc := range tests {
		_, err := NewDrawPreprocessor(tc.params)
		assert.Equal(t, tc.ok, err == nil, tc.name)
	}
}
