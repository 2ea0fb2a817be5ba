package yolov5

/*
#include <cuda_runtime_api.h>
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// deviceMemory owns one CUDA allocation per engine binding, each sized to
// the binding's element volume in float32.  The allocation set always
// matches the currently loaded engine's bindings and is never resized in
// place.  A deviceMemory is exclusively owned by one Detector and must not
// be copied
type deviceMemory struct {
	ptrs []unsafe.Pointer
}

// newDeviceMemory allocates one device buffer per binding of the given
// engine.  On any allocation failure all buffers allocated so far are
// released and an error is returned, so no partial set ever escapes
func newDeviceMemory(engine *trtEngine, logger Logger) (deviceMemory, error) {

	var m deviceMemory

	n := engine.numBindings()

	for i := 0; i < n; i++ {

		volume := dimsVolume(engine.bindingDims(i))

		var ptr unsafe.Pointer
		rc := C.cudaMalloc(&ptr, C.size_t(volume*4))

		if rc != C.cudaSuccess || ptr == nil {
			m.close()

			if logger != nil {
				logger.Logf(LogError, "[deviceMemory] setup failure: could not "+
					"allocate device memory: %s", cudaErrString(rc))
			}
			return deviceMemory{}, fmt.Errorf("allocate device buffer for binding %d: %w",
				i, ErrCUDA)
		}

		m.ptrs = append(m.ptrs, ptr)
	}

	return m, nil
}

// begin returns the start of the raw pointer table, suitable for passing
// to the inference call as its bindings argument
func (m *deviceMemory) begin() unsafe.Pointer {
	return unsafe.Pointer(&m.ptrs[0])
}

// at returns the device pointer for the given binding index
func (m *deviceMemory) at(index int) unsafe.Pointer {
	return m.ptrs[index]
}

// isSet indicates whether the allocation set is populated
func (m *deviceMemory) isSet() bool {
	return len(m.ptrs) > 0
}

// close releases every owned device buffer
func (m *deviceMemory) close() {

	for _, ptr := range m.ptrs {
		if ptr != nil {
			C.cudaFree(ptr)
		}
	}

	m.ptrs = nil
}

// cudaErrString returns the readable description of a CUDA error code
func cudaErrString(rc C.cudaError_t) string {
	return C.GoString(C.cudaGetErrorString(rc))
}
