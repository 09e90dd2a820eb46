package npu

import (
	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16LookupTable[i] = float16.Frombits(uint16(i)).Float32()
	}
}

// toFloat32 converts a model input to the float32 buffer the NPU takes
func toFloat32(in []float64) []float32 {

	out := make([]float32, len(in))

	for i, v := range in {
		out[i] = float32(v)
	}

	return out
}

// chwToHWC reorders planar channel data into interleaved pixels
func chwToHWC(in []float32, channels, height, width int) []float32 {

	out := make([]float32, len(in))
	plane := height * width

	for c := 0; c < channels; c++ {
		for i := 0; i < plane; i++ {
			out[i*channels+c] = in[c*plane+i]
		}
	}

	return out
}

// appendFloat32 widens float32 outputs onto dst
func appendFloat32(dst []float64, vals []float32) []float64 {

	for _, v := range vals {
		dst = append(dst, float64(v))
	}

	return dst
}

// appendFloat16 widens half precision outputs onto dst
func appendFloat16(dst []float64, bits []uint16) []float64 {

	for _, b := range bits {
		dst = append(dst, float64(f16LookupTable[b]))
	}

	return dst
}
