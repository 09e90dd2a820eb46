package npu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/x448/float16"
)

func TestChwToHWC(t *testing.T) {

	// 2 channels of a 1x3 image
	in := []float32{1, 2, 3, 10, 20, 30}

	assert.Equal(t, []float32{1, 10, 2, 20, 3, 30}, chwToHWC(in, 2, 1, 3))
}

func TestAppendFloat(t *testing.T) {

	out := appendFloat32(nil, []float32{0.5, 0.25})
	assert.Equal(t, []float64{0.5, 0.25}, out)

	bits := []uint16{
		float16.Fromfloat32(0.125).Bits(),
		float16.Fromfloat32(1).Bits(),
	}

	out = appendFloat16(out, bits)
	assert.Equal(t, []float64{0.5, 0.25, 0.125, 1}, out)

	assert.Equal(t, []float32{1, 0.5}, toFloat32([]float64{1, 0.5}))
}
