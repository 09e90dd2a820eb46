//go:build rknn

package npu

/*
#include "rknn_api.h"
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"context"
	"fmt"
	"unsafe"

	"github.com/swdee/go-platenet"
)

// Predict runs one preprocessed (channels, height, width) image through the
// model.  The outputs are read in index order, either a single concatenated
// softmax or one output per plate position.
func (r *Runtime) Predict(ctx context.Context, input []float64) (platenet.Prediction, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(input) != int(r.input.NElems) {
		return nil, fmt.Errorf("%w: input has %d values, model expects %d",
			platenet.ErrShapeMismatch, len(input), r.input.NElems)
	}

	buf := toFloat32(input)

	if r.input.Fmt == TensorNHWC {
		dims := r.input.Dims
		buf = chwToHWC(buf, int(dims[3]), int(dims[1]), int(dims[2]))
	}

	if err := r.setInput(buf); err != nil {
		return nil, fmt.Errorf("error setting inputs: %w", err)
	}

	ret := C.rknn_run(r.ctx, nil)

	if ret < 0 {
		return nil, fmt.Errorf("C.rknn_run failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	probs, err := r.readOutputs()

	if err != nil {
		return nil, err
	}

	preds, err := platenet.SplitPredictions(probs, 1, platenet.HeadMajor)

	if err != nil {
		return nil, err
	}

	return preds[0], nil
}

// setInput wraps C.rknn_inputs_set for the single float32 input
func (r *Runtime) setInput(buf []float32) error {

	fmtC := C.RKNN_TENSOR_NCHW

	if r.input.Fmt == TensorNHWC {
		fmtC = C.RKNN_TENSOR_NHWC
	}

	// the input is copied into C memory so Go memory is not retained by C
	size := C.size_t(len(buf) * 4)
	cBuf := C.malloc(size)
	defer C.free(cBuf)

	C.memcpy(cBuf, unsafe.Pointer(&buf[0]), size)

	var in C.rknn_input
	in.index = 0
	in.buf = cBuf
	in.size = C.uint32_t(size)
	in.pass_through = 0
	in._type = C.RKNN_TENSOR_FLOAT32
	in.fmt = C.rknn_tensor_format(fmtC)

	ret := C.rknn_inputs_set(r.ctx, 1, &in)

	if ret != 0 {
		return fmt.Errorf("C.rknn_inputs_set failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return nil
}

// readOutputs copies every output as float64 into one buffer and releases
// the C outputs
func (r *Runtime) readOutputs() ([]float64, error) {

	n := len(r.outputs)
	cOutputs := make([]C.rknn_output, n)

	for i := range cOutputs {
		cOutputs[i].index = C.uint32_t(i)
		cOutputs[i].want_float = 1
	}

	ret := C.rknn_outputs_get(r.ctx, C.uint32_t(n), &cOutputs[0], nil)

	if ret < 0 {
		return nil, fmt.Errorf("C.rknn_outputs_get failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	defer C.rknn_outputs_release(r.ctx, C.uint32_t(n), &cOutputs[0])

	probs := make([]float64, 0, r.outputSize)

	for i, out := range cOutputs {
		if out.want_float == 1 {
			vals := unsafe.Slice((*float32)(out.buf), int(out.size)/4)
			probs = appendFloat32(probs, vals)
			continue
		}

		// the runtime left the output in its native half precision
		if r.outputs[i].Type != TensorFloat16 {
			return nil, fmt.Errorf("output %d has unsupported type %d", i, r.outputs[i].Type)
		}

		bits := unsafe.Slice((*uint16)(out.buf), int(out.size)/2)
		probs = appendFloat16(probs, bits)
	}

	if len(probs) != r.outputSize {
		return nil, fmt.Errorf("%w: read %d output values, want %d",
			platenet.ErrShapeMismatch, len(probs), r.outputSize)
	}

	return probs, nil
}
