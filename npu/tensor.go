//go:build rknn

package npu

/*
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/swdee/go-platenet"
)

// TensorFormat wraps C.rknn_tensor_format
type TensorFormat int

const (
	TensorNCHW TensorFormat = C.RKNN_TENSOR_NCHW
	TensorNHWC TensorFormat = C.RKNN_TENSOR_NHWC
)

// TensorType wraps C.rknn_tensor_type
type TensorType int

const (
	TensorFloat32 TensorType = C.RKNN_TENSOR_FLOAT32
	TensorFloat16 TensorType = C.RKNN_TENSOR_FLOAT16
)

// TensorAttr holds the fields of C.rknn_tensor_attr the plate model needs
type TensorAttr struct {
	Index  uint32
	Name   string
	Dims   []uint32
	NElems uint32
	Fmt    TensorFormat
	Type   TensorType
}

// String returns the attributes formatted for logging
func (a TensorAttr) String() string {
	return fmt.Sprintf("index=%d, name=%s, dims=%v, n_elems=%d, fmt=%d, type=%d",
		a.Index, a.Name, a.Dims, a.NElems, a.Fmt, a.Type)
}

// convertTensorAttr converts a C.rknn_tensor_attr to a Go TensorAttr
func convertTensorAttr(cAttr *C.rknn_tensor_attr) TensorAttr {

	name := C.GoStringN(&cAttr.name[0], C.RKNN_MAX_NAME_LEN)

	// trim the string at the first null character
	if i := strings.IndexByte(name, 0); i != -1 {
		name = name[:i]
	}

	dims := make([]uint32, int(cAttr.n_dims))

	for i := range dims {
		dims[i] = uint32(cAttr.dims[i])
	}

	return TensorAttr{
		Index:  uint32(cAttr.index),
		Name:   name,
		Dims:   dims,
		NElems: uint32(cAttr.n_elems),
		Fmt:    TensorFormat(cAttr.fmt),
		Type:   TensorType(cAttr._type),
	}
}

// queryModel caches the input and output tensor attributes and checks they
// match a single image plate model
func (r *Runtime) queryModel() error {

	var cIONum C.rknn_input_output_num

	ret := C.rknn_query(r.ctx, C.RKNN_QUERY_IN_OUT_NUM,
		unsafe.Pointer(&cIONum), C.uint(C.sizeof_rknn_input_output_num))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("rknn_query failed with return code %d", int(ret))
	}

	if cIONum.n_input != 1 {
		return fmt.Errorf("%w: model has %d inputs, want 1",
			platenet.ErrShapeMismatch, int(cIONum.n_input))
	}

	var in C.rknn_tensor_attr
	in.index = 0

	ret = C.rknn_query(r.ctx, C.RKNN_QUERY_INPUT_ATTR,
		unsafe.Pointer(&in), C.uint(unsafe.Sizeof(in)))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_query RKNN_QUERY_INPUT_ATTR failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	r.input = convertTensorAttr(&in)
	r.outputs = make([]TensorAttr, int(cIONum.n_output))
	r.outputSize = 0

	for i := range r.outputs {
		var out C.rknn_tensor_attr
		out.index = C.uint32_t(i)

		ret := C.rknn_query(r.ctx, C.RKNN_QUERY_OUTPUT_ATTR,
			unsafe.Pointer(&out), C.uint(unsafe.Sizeof(out)))

		if ret != C.RKNN_SUCC {
			return fmt.Errorf("rknn_query RKNN_QUERY_OUTPUT_ATTR failed with code %d, error: %s",
				int(ret), ErrorCodes(ret).String())
		}

		r.outputs[i] = convertTensorAttr(&out)
		r.outputSize += int(r.outputs[i].NElems)
	}

	if r.outputSize != platenet.PlateLength*platenet.NumClasses {
		return fmt.Errorf("%w: model outputs %d values, want %d",
			platenet.ErrShapeMismatch, r.outputSize, platenet.PlateLength*platenet.NumClasses)
	}

	return nil
}

// InputAttr returns the model input tensor attributes
func (r *Runtime) InputAttr() TensorAttr {
	return r.input
}

// OutputAttrs returns the model output tensor attributes
func (r *Runtime) OutputAttrs() []TensorAttr {
	return r.outputs
}
