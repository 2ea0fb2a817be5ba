package yolov5

import "errors"

// Error kinds returned by the library.  Every public method returns one of
// these values, possibly wrapped with additional context, so callers can
// classify failures with errors.Is.
var (
	// ErrInvalidInput indicates a caller supplied argument violates a
	// precondition.  This typically points to a programming error in the
	// calling software
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotInitialized indicates Init() has not been called yet
	ErrNotInitialized = errors.New("not initialized")

	// ErrNotLoaded indicates no inference engine has been loaded yet
	ErrNotLoaded = errors.New("no engine loaded")

	// ErrModel indicates the loaded model does not match the expected
	// binding contract, for example a missing or dynamically shaped tensor
	ErrModel = errors.New("model error")

	// ErrCUDAUnavailable indicates the CUDA pre-processor was explicitly
	// requested but no CUDA capable device or library support is present
	ErrCUDAUnavailable = errors.New("cuda support unavailable")

	// ErrFilesystem indicates a file could not be opened or read
	ErrFilesystem = errors.New("filesystem error")

	// ErrCUDA indicates a CUDA device allocation, transfer or execution
	// failure
	ErrCUDA = errors.New("cuda error")

	// ErrTensorRT indicates an internal TensorRT failure, such as engine
	// deserialization or execution context creation
	ErrTensorRT = errors.New("tensorrt error")

	// ErrOpenCV indicates an internal OpenCV failure during image
	// processing
	ErrOpenCV = errors.New("opencv error")

	// ErrAlloc indicates host side memory exhaustion
	ErrAlloc = errors.New("memory allocation error")

	// ErrOther is an uncategorized failure
	ErrOther = errors.New("detector error")
)
