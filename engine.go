package yolov5

/*
#cgo CFLAGS: -I${SRCDIR}/csrc -I/usr/local/cuda/include
#cgo LDFLAGS: -L${SRCDIR}/csrc -L/usr/local/cuda/lib64 -ltrtshim -lnvinfer -lcudart -lstdc++
#include "trt_shim.h"
#include "trt_preprocess.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// TensorRT tensor data types, matching nvinfer1::DataType
const (
	dataTypeFloat32 = 0
	dataTypeFloat16 = 1
)

// trtRuntime wraps the TensorRT runtime handle used to deserialize
// engines.  TensorRT's own log messages are forwarded to the registered
// Logger through the shim's log callback
type trtRuntime struct {
	handle unsafe.Pointer
	cookie uintptr
}

// newTRTRuntime creates a TensorRT runtime forwarding its log output to
// the given logger
func newTRTRuntime(logger Logger) (*trtRuntime, error) {

	cookie := registerLogSink(logger)

	handle := C.trt_runtime_create(C.uintptr_t(cookie))

	if handle == nil {
		unregisterLogSink(cookie)
		return nil, fmt.Errorf("create tensorrt runtime: %w", ErrTensorRT)
	}

	return &trtRuntime{
		handle: handle,
		cookie: cookie,
	}, nil
}

// setLogger redirects the runtime's forwarded log output
func (r *trtRuntime) setLogger(logger Logger) {
	updateLogSink(r.cookie, logger)
}

// deserialize builds an engine from a serialized engine blob
func (r *trtRuntime) deserialize(data []byte) (*trtEngine, error) {

	if len(data) == 0 {
		return nil, fmt.Errorf("empty engine data: %w", ErrInvalidInput)
	}

	handle := C.trt_engine_deserialize(r.handle,
		unsafe.Pointer(&data[0]), C.size_t(len(data)))

	if handle == nil {
		return nil, fmt.Errorf("deserialize engine: %w", ErrTensorRT)
	}

	return &trtEngine{handle: handle}, nil
}

// close destroys the runtime and releases its C resources
func (r *trtRuntime) close() {
	C.trt_runtime_destroy(r.handle)
	unregisterLogSink(r.cookie)
}

// trtEngine wraps a deserialized TensorRT engine handle
type trtEngine struct {
	handle unsafe.Pointer
}

// numBindings returns the number of i/o bindings of the engine
func (e *trtEngine) numBindings() int {
	return int(C.trt_engine_num_bindings(e.handle))
}

// bindingIndex returns the tensor index of the named binding, or -1 if no
// such binding exists
func (e *trtEngine) bindingIndex(name string) int {

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	return int(C.trt_engine_binding_index(e.handle, cName))
}

// bindingName returns the name of the binding at the given index, or an
// empty string if the index is out of range
func (e *trtEngine) bindingName(index int) string {

	cName := C.trt_engine_binding_name(e.handle, C.int(index))

	if cName == nil {
		return ""
	}

	return C.GoString(cName)
}

// bindingIsInput indicates whether the binding at the given index is an
// input
func (e *trtEngine) bindingIsInput(index int) bool {
	return C.trt_engine_binding_is_input(e.handle, C.int(index)) != 0
}

// bindingDims returns the shape of the binding at the given index
func (e *trtEngine) bindingDims(index int) []int32 {

	var cDims [8]C.int32_t

	n := C.trt_engine_binding_dims(e.handle, C.int(index), &cDims[0], 8)

	if n <= 0 {
		return nil
	}

	dims := make([]int32, int(n))

	for i := range dims {
		dims[i] = int32(cDims[i])
	}

	return dims
}

// bindingDataType returns the tensor data type of the binding at the
// given index
func (e *trtEngine) bindingDataType(index int) int {
	return int(C.trt_engine_binding_data_type(e.handle, C.int(index)))
}

// newContext creates an execution context for the engine
func (e *trtEngine) newContext() (*trtContext, error) {

	handle := C.trt_context_create(e.handle)

	if handle == nil {
		return nil, fmt.Errorf("create execution context: %w", ErrTensorRT)
	}

	return &trtContext{handle: handle}, nil
}

// close destroys the engine and releases its C resources
func (e *trtEngine) close() {
	C.trt_engine_destroy(e.handle)
}

// trtContext wraps a TensorRT execution context
type trtContext struct {
	handle unsafe.Pointer
}

// enqueue queues the inference for asynchronous execution on the given
// stream.  bindings is the raw device pointer table of the engine's
// bindings
func (c *trtContext) enqueue(bindings unsafe.Pointer, stream C.cudaStream_t) error {

	if C.trt_context_enqueue(c.handle, (*unsafe.Pointer)(bindings), stream) == 0 {
		return fmt.Errorf("enqueue inference: %w", ErrTensorRT)
	}

	return nil
}

// close destroys the execution context and releases its C resources
func (c *trtContext) close() {
	C.trt_context_destroy(c.handle)
}

// cudaAvailable reports whether a usable CUDA device is present
func cudaAvailable() bool {
	return C.trtpre_device_available() != 0
}
