package yolov5

/*
#include <cuda_runtime_api.h>
#include "trt_preprocess.h"
*/
import "C"
import (
	"fmt"
	"image"
	"unsafe"

	"gocv.io/x/gocv"
)

// cudaPreprocessor uploads the raw interleaved image bytes to a device
// scratch buffer and performs scaling, padding, channel reordering and
// normalization in a single CUDA kernel writing directly into the engine
// input buffer.  The scratch buffer is reused between images, so
// processing a new batch slot first waits for the previous kernel to
// finish
type cudaPreprocessor struct {
	preprocessorBase

	cudaStream    C.cudaStream_t
	streamCreated bool

	lastOrder colorOrder
	lastBatch int

	order       colorOrder
	netRows     int
	netCols     int
	deviceInput unsafe.Pointer

	scratch     unsafe.Pointer
	scratchSize int

	// staging buffer for the pure Go image input path
	packed []byte
}

// newCUDAPreprocessor returns an unconfigured CUDA pre-processor
func newCUDAPreprocessor() *cudaPreprocessor {
	return &cudaPreprocessor{
		lastOrder: orderUnset,
		lastBatch: -1,
	}
}

func (p *cudaPreprocessor) setup(inputDims []int32, flags int, batchSize int,
	deviceInput unsafe.Pointer) error {

	order, err := orderFromFlags(flags)

	if err != nil {
		p.logf(LogError, "[cudaPreprocessor] setup failure: %v", err)
		return err
	}

	if !p.streamCreated {

		rc := C.cudaStreamCreate(&p.cudaStream)

		if rc != C.cudaSuccess {
			p.logf(LogError, "[cudaPreprocessor] setup failure: could not "+
				"create CUDA stream: %s", cudaErrString(rc))
			return fmt.Errorf("create cuda stream: %w", ErrCUDA)
		}

		p.streamCreated = true
	}

	p.deviceInput = deviceInput

	if order == p.lastOrder && batchSize == p.lastBatch {
		return nil
	}

	p.order = order
	p.netRows = int(inputDims[2])
	p.netCols = int(inputDims[3])

	p.lastOrder = order
	p.lastBatch = batchSize

	return nil
}

func (p *cudaPreprocessor) reset() {
	p.lastOrder = orderUnset
	p.lastBatch = -1
}

func (p *cudaPreprocessor) process(index int, img gocv.Mat, last bool) error {

	if img.Empty() {
		return fmt.Errorf("empty input image: %w", ErrInvalidInput)
	}

	if img.Channels() != 3 {
		return fmt.Errorf("input image has %d channels, expected 3: %w",
			img.Channels(), ErrInvalidInput)
	}

	src := img

	if !img.IsContinuous() {
		src = img.Clone()
		defer src.Close()
	}

	data, err := src.DataPtrUint8()

	if err != nil {
		return fmt.Errorf("access image data: %w", ErrOpenCV)
	}

	return p.processPacked(index, data, src.Cols(), src.Rows(),
		p.order == orderBGR)
}

func (p *cudaPreprocessor) processImage(index int, img image.Image, last bool) error {

	if img == nil {
		return fmt.Errorf("nil input image: %w", ErrInvalidInput)
	}

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	if srcW == 0 || srcH == 0 {
		return fmt.Errorf("empty input image: %w", ErrInvalidInput)
	}

	need := srcW * srcH * 3

	if cap(p.packed) < need {
		p.packed = make([]byte, need)
	}
	p.packed = p.packed[:need]

	// pack the image into interleaved RGB bytes
	i := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {

			r, g, b, _ := img.At(x, y).RGBA()

			p.packed[i] = uint8(r >> 8)
			p.packed[i+1] = uint8(g >> 8)
			p.packed[i+2] = uint8(b >> 8)
			i += 3
		}
	}

	return p.processPacked(index, p.packed, srcW, srcH, false)
}

// processPacked uploads interleaved 3-channel bytes to the device scratch
// buffer and launches the letterbox kernel into batch slot index
func (p *cudaPreprocessor) processPacked(index int, data []byte,
	srcW, srcH int, srcIsBGR bool) error {

	p.ensureSlot(index)

	// the scratch buffer is shared between batch slots, wait for the
	// previous slot's kernel before overwriting it
	if index >= 1 {
		if err := p.synchronize(); err != nil {
			return err
		}
	}

	if err := p.growScratch(len(data)); err != nil {
		return err
	}

	rc := C.cudaMemcpyAsync(p.scratch, unsafe.Pointer(&data[0]),
		C.size_t(len(data)), C.cudaMemcpyHostToDevice, p.cudaStream)

	if rc != C.cudaSuccess {
		p.logf(LogError, "[cudaPreprocessor] process failure: could not "+
			"copy image to device: %s", cudaErrString(rc))
		return fmt.Errorf("copy image to device: %w", ErrCUDA)
	}

	var lb letterbox

	if srcW == p.netCols && srcH == p.netRows {
		lb = letterbox{f: 1.0, scaledW: srcW, scaledH: srcH}
	} else {
		lb = computeLetterbox(srcW, srcH, p.netCols, p.netRows)
	}

	area := p.netRows * p.netCols
	dst := unsafe.Add(p.deviceInput, index*3*area*4)

	bgr := C.int(0)

	if srcIsBGR {
		bgr = 1
	}

	rc = C.trtpre_letterbox((*C.uint8_t)(p.scratch),
		C.int(srcW), C.int(srcH), bgr,
		(*C.float)(dst), C.int(p.netCols), C.int(p.netRows),
		C.int(lb.scaledW), C.int(lb.scaledH),
		C.int(lb.left), C.int(lb.top), p.cudaStream)

	if rc != C.cudaSuccess {
		p.logf(LogError, "[cudaPreprocessor] process failure: letterbox "+
			"kernel failed: %s", cudaErrString(rc))
		return fmt.Errorf("launch letterbox kernel: %w", ErrCUDA)
	}

	p.setTransform(index, newTransform(srcW, srcH, lb.f, lb.left, lb.top))

	return nil
}

// growScratch ensures the device scratch buffer holds at least size bytes
func (p *cudaPreprocessor) growScratch(size int) error {

	if p.scratchSize >= size {
		return nil
	}

	if p.scratch != nil {
		C.cudaFree(p.scratch)
		p.scratch = nil
		p.scratchSize = 0
	}

	rc := C.cudaMalloc(&p.scratch, C.size_t(size))

	if rc != C.cudaSuccess {
		p.logf(LogError, "[cudaPreprocessor] process failure: could not "+
			"allocate scratch memory: %s", cudaErrString(rc))
		return fmt.Errorf("allocate device scratch buffer: %w", ErrCUDA)
	}

	p.scratchSize = size

	return nil
}

func (p *cudaPreprocessor) stream() C.cudaStream_t {
	return p.cudaStream
}

func (p *cudaPreprocessor) synchronize() error {

	rc := C.cudaStreamSynchronize(p.cudaStream)

	if rc != C.cudaSuccess {
		p.logf(LogError, "[cudaPreprocessor] synchronize failure: %s",
			cudaErrString(rc))
		return fmt.Errorf("synchronize cuda stream: %w", ErrCUDA)
	}

	return nil
}

func (p *cudaPreprocessor) close() {

	if p.scratch != nil {
		C.cudaFree(p.scratch)
		p.scratch = nil
		p.scratchSize = 0
	}

	if p.streamCreated {
		C.cudaStreamDestroy(p.cudaStream)
		p.streamCreated = false
	}

	p.deviceInput = nil
}
