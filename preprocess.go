package yolov5

/*
#include <cuda_runtime_api.h>
*/
import "C"
import (
	"fmt"
	"image"
	"unsafe"

	"gocv.io/x/gocv"
)

// Flags accepted by Detector.Init, Detect and DetectBatch
const (
	// InputBGR indicates input images are in BGR channel order, the
	// OpenCV default
	InputBGR = 1
	// InputRGB indicates input images are in RGB channel order
	InputRGB = 2
	// PreprocessorCUDA forces the CUDA pre-processor.  Init fails if no
	// CUDA device support is available
	PreprocessorCUDA = 4
	// PreprocessorCPU forces the CPU pre-processor
	PreprocessorCPU = 8
)

// colorOrder is the channel order of input image data
type colorOrder int

const (
	orderUnset colorOrder = iota - 1
	orderBGR
	orderRGB
)

// orderFromFlags extracts the requested color order from detect flags.
// BGR is the default.  Specifying both orders at once is an input error
func orderFromFlags(flags int) (colorOrder, error) {

	if flags&InputBGR != 0 && flags&InputRGB != 0 {
		return orderUnset, fmt.Errorf("both InputBGR and InputRGB flags specified: %w",
			ErrInvalidInput)
	}

	if flags&InputRGB != 0 {
		return orderRGB, nil
	}

	return orderBGR, nil
}

// letterbox holds the geometry of scaling an image into the fixed network
// input size while preserving its aspect ratio
type letterbox struct {
	// f is the uniform scale factor
	f float64
	// scaledW and scaledH are the image dimensions after scaling
	scaledW int
	scaledH int
	// padding added on each edge to reach the network size
	top    int
	bottom int
	left   int
	right  int
}

// computeLetterbox works out the scale factor and symmetric padding needed
// to fit an image of the given size into the network input size
func computeLetterbox(srcWidth, srcHeight, netWidth, netHeight int) letterbox {

	f := float64(netHeight) / float64(srcHeight)

	if w := float64(netWidth) / float64(srcWidth); w < f {
		f = w
	}

	scaledW := int(float64(srcWidth) * f)
	scaledH := int(float64(srcHeight) * f)

	dh := netHeight - scaledH
	dw := netWidth - scaledW

	return letterbox{
		f:       f,
		scaledW: scaledW,
		scaledH: scaledH,
		top:     dh / 2,
		bottom:  dh - dh/2,
		left:    dw / 2,
		right:   dw - dw/2,
	}
}

// preprocessor converts a batch of arbitrarily sized images into the
// planar, normalized, letterboxed float tensor the network expects,
// resident in device memory, and records one geometric transform per
// image for mapping detections back to input coordinates.  Exactly one
// implementation is selected at Init time and cached for the lifetime of
// the Detector
type preprocessor interface {
	// setLogger replaces the logging sink
	setLogger(logger Logger)

	// setup configures the pre-processor for the engine input dimensions,
	// detect flags and batch size, writing into the given device input
	// buffer.  Calling it again with the same color order and batch size
	// is a no-op
	setup(inputDims []int32, flags int, batchSize int, deviceInput unsafe.Pointer) error

	// reset forces the next setup call to reconfigure internal buffers,
	// used after an engine reload
	reset()

	// process converts one image into batch slot index.  last marks the
	// final image of the batch so pending work can be flushed
	process(index int, img gocv.Mat, last bool) error

	// processImage is the pure Go input path for a standard image.Image
	processImage(index int, img image.Image, last bool) error

	// stream returns the CUDA stream all asynchronous work is issued on
	stream() C.cudaStream_t

	// synchronize blocks until all work queued on the stream has finished
	synchronize() error

	// transformBbox maps a network space box for the image in batch slot
	// index back to its original image coordinates
	transformBbox(index int, box image.Rectangle) image.Rectangle

	// transformAt returns the transform recorded for batch slot index
	transformAt(index int) transform

	// close releases the CUDA stream and any scratch buffers
	close()
}

// preprocessorBase carries the state shared by both pre-processor
// implementations: the logging sink and the per batch slot transform list.
// The transform list is an arena reused across calls, slots are
// overwritten and never accumulate
type preprocessorBase struct {
	logger     Logger
	transforms []transform
}

func (p *preprocessorBase) setLogger(logger Logger) {
	p.logger = logger
}

// ensureSlot grows the transform arena so slot index exists
func (p *preprocessorBase) ensureSlot(index int) {
	for len(p.transforms) < index+1 {
		p.transforms = append(p.transforms, transform{})
	}
}

// setTransform records the transform for batch slot index
func (p *preprocessorBase) setTransform(index int, t transform) {
	p.transforms[index] = t
}

func (p *preprocessorBase) transformBbox(index int, box image.Rectangle) image.Rectangle {
	return p.transforms[index].transformBbox(box)
}

func (p *preprocessorBase) transformAt(index int) transform {
	return p.transforms[index]
}

func (p *preprocessorBase) logf(level LogLevel, format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Logf(level, format, args...)
	}
}
