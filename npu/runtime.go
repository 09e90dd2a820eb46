//go:build rknn

package npu

/*
#cgo LDFLAGS: -lrknnrt
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"os"
	"unsafe"
)

// CoreMask wraps C.rknn_core_mask
type CoreMask int

// rknn_core_mask values used to target which cores on the NPU the model is
// run on.  Auto picks an idle core.
const (
	NPUCoreAuto    CoreMask = C.RKNN_NPU_CORE_AUTO
	NPUCore0       CoreMask = C.RKNN_NPU_CORE_0
	NPUCore1       CoreMask = C.RKNN_NPU_CORE_1
	NPUCore2       CoreMask = C.RKNN_NPU_CORE_2
	NPUSkipSetCore CoreMask = 9999
)

// platformCores lists the NPU cores of each Rockchip platform, one runtime
// is pinned to each by NewPool
var platformCores = map[string][]CoreMask{
	"rk3588": {NPUCore0, NPUCore1, NPUCore2},
	"rk3582": {NPUCore0, NPUCore1, NPUCore2},
	"rk3576": {NPUCore0, NPUCore1},
	"rk3568": {NPUSkipSetCore},
	"rk3566": {NPUSkipSetCore},
	"rk3562": {NPUSkipSetCore},
}

// ErrorCodes wraps the return codes of the C API
type ErrorCodes int

// error code values returned by the C API
const (
	Success              ErrorCodes = C.RKNN_SUCC
	ErrFail              ErrorCodes = C.RKNN_ERR_FAIL
	ErrTimeout           ErrorCodes = C.RKNN_ERR_TIMEOUT
	ErrDeviceUnavailable ErrorCodes = C.RKNN_ERR_DEVICE_UNAVAILABLE
	ErrMallocFail        ErrorCodes = C.RKNN_ERR_MALLOC_FAIL
	ErrParamInvalid      ErrorCodes = C.RKNN_ERR_PARAM_INVALID
	ErrModelInvalid      ErrorCodes = C.RKNN_ERR_MODEL_INVALID
	ErrCtxInvalid        ErrorCodes = C.RKNN_ERR_CTX_INVALID
	ErrInputInvalid      ErrorCodes = C.RKNN_ERR_INPUT_INVALID
	ErrOutputInvalid     ErrorCodes = C.RKNN_ERR_OUTPUT_INVALID
	ErrPlatformMismatch  ErrorCodes = C.RKNN_ERR_TARGET_PLATFORM_UNMATCH
)

// String returns a readable description of the error code
func (e ErrorCodes) String() string {
	switch e {
	case Success:
		return "execution successful"
	case ErrFail:
		return "execution failed"
	case ErrTimeout:
		return "execution timed out"
	case ErrDeviceUnavailable:
		return "device is unavailable"
	case ErrMallocFail:
		return "C memory allocation failed"
	case ErrParamInvalid:
		return "parameter is invalid"
	case ErrModelInvalid:
		return "model file is invalid"
	case ErrCtxInvalid:
		return "context is invalid"
	case ErrInputInvalid:
		return "input is invalid"
	case ErrOutputInvalid:
		return "output is invalid"
	case ErrPlatformMismatch:
		return "the RKNN model target platform is not compatible with the current platform"
	default:
		return fmt.Sprintf("unknown error code %d", e)
	}
}

// Runtime runs a plate model compiled to RKNN format on the Rockchip NPU.
// It is not safe for concurrent use, use a Pool to share the NPU cores.
type Runtime struct {
	// ctx is the C runtime context
	ctx C.rknn_context
	// input and output caches the tensor attributes of the model
	input   TensorAttr
	outputs []TensorAttr
	// outputSize is the total number of values across all outputs
	outputSize int
}

// NewRuntime loads the RKNN compiled model file and pins it to the NPU core
func NewRuntime(modelFile string, core CoreMask) (*Runtime, error) {

	r := &Runtime{}

	if err := r.init(modelFile); err != nil {
		return nil, err
	}

	// setCoreMask is only supported on multi core NPUs
	if core != NPUSkipSetCore {
		if err := r.setCoreMask(core); err != nil {
			r.Close()
			return nil, err
		}
	}

	if err := r.queryModel(); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

// init wraps C.rknn_init which initializes the RKNN context with the given
// model
func (r *Runtime) init(modelFile string) error {

	// check file exists in Go, before passing to C
	info, err := os.Stat(modelFile)

	if err != nil {
		return fmt.Errorf("model file does not exist at %s, error: %w",
			modelFile, err)
	}

	if info.IsDir() {
		return fmt.Errorf("model file is a directory")
	}

	cModelFile := C.CString(modelFile)
	defer C.free(unsafe.Pointer(cModelFile))

	ret := C.rknn_init(&r.ctx, unsafe.Pointer(cModelFile), 0, 0, nil)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_init call failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// setCoreMask wraps C.rknn_set_core_mask
func (r *Runtime) setCoreMask(mask CoreMask) error {

	ret := C.rknn_set_core_mask(r.ctx, C.rknn_core_mask(mask))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_set_core_mask failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// Close wraps C.rknn_destroy which unloads the model and releases all C
// resources
func (r *Runtime) Close() error {

	ret := C.rknn_destroy(r.ctx)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_destroy failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// SDKVersion returns the RKNN API and driver versions
func (r *Runtime) SDKVersion() (string, string, error) {

	var cSdkVer C.rknn_sdk_version

	ret := C.rknn_query(r.ctx, C.RKNN_QUERY_SDK_VERSION,
		unsafe.Pointer(&cSdkVer), C.uint(C.sizeof_rknn_sdk_version))

	if ret != C.RKNN_SUCC {
		return "", "", fmt.Errorf("rknn_query failed with return code %d", int(ret))
	}

	return C.GoString(&(cSdkVer.api_version[0])),
		C.GoString(&(cSdkVer.drv_version[0])), nil
}
