package yolov5

/*
#include <cuda_runtime_api.h>
*/
import "C"
import (
	"fmt"
	"image"
	"image/color"
	"unsafe"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// cpuPreprocessor letterboxes and normalizes images on the host with
// OpenCV, staging the planar tensor in page-ordinary host memory and
// uploading the whole batch to the device in a single asynchronous copy
// when the last image of the batch has been processed
type cpuPreprocessor struct {
	preprocessorBase

	cudaStream    C.cudaStream_t
	streamCreated bool

	// configuration of the last successful setup, used to skip
	// reconfiguration between detect calls
	lastOrder colorOrder
	lastBatch int

	order       colorOrder
	netRows     int
	netCols     int
	host        []float32
	deviceInput unsafe.Pointer
}

// newCPUPreprocessor returns an unconfigured CPU pre-processor
func newCPUPreprocessor() *cpuPreprocessor {
	return &cpuPreprocessor{
		lastOrder: orderUnset,
		lastBatch: -1,
	}
}

func (p *cpuPreprocessor) setup(inputDims []int32, flags int, batchSize int,
	deviceInput unsafe.Pointer) error {

	order, err := orderFromFlags(flags)

	if err != nil {
		p.logf(LogError, "[cpuPreprocessor] setup failure: %v", err)
		return err
	}

	if !p.streamCreated {

		rc := C.cudaStreamCreate(&p.cudaStream)

		if rc != C.cudaSuccess {
			p.logf(LogError, "[cpuPreprocessor] setup failure: could not "+
				"create CUDA stream: %s", cudaErrString(rc))
			return fmt.Errorf("create cuda stream: %w", ErrCUDA)
		}

		p.streamCreated = true
	}

	// the device input pointer can change on engine reload, track it even
	// when the rest of the configuration is unchanged
	p.deviceInput = deviceInput

	if order == p.lastOrder && batchSize == p.lastBatch {
		return nil
	}

	p.order = order
	p.netRows = int(inputDims[2])
	p.netCols = int(inputDims[3])
	p.host = make([]float32, dimsVolume(inputDims))

	p.lastOrder = order
	p.lastBatch = batchSize

	return nil
}

func (p *cpuPreprocessor) reset() {
	p.lastOrder = orderUnset
	p.lastBatch = -1
}

func (p *cpuPreprocessor) process(index int, img gocv.Mat, last bool) error {

	if img.Empty() {
		return fmt.Errorf("empty input image: %w", ErrInvalidInput)
	}

	if img.Channels() != 3 {
		return fmt.Errorf("input image has %d channels, expected 3: %w",
			img.Channels(), ErrInvalidInput)
	}

	p.ensureSlot(index)

	srcW := img.Cols()
	srcH := img.Rows()

	floatImg := gocv.NewMat()
	defer floatImg.Close()

	if srcW == p.netCols && srcH == p.netRows {
		// already network sized, normalize in place
		img.ConvertToWithParams(&floatImg, gocv.MatTypeCV32FC3, 1.0/255.0, 0)
		p.setTransform(index, identityTransform(srcW, srcH))

	} else {
		lb := computeLetterbox(srcW, srcH, p.netCols, p.netRows)

		resized := gocv.NewMat()
		gocv.Resize(img, &resized, image.Pt(lb.scaledW, lb.scaledH),
			0, 0, gocv.InterpolationLinear)

		bordered := gocv.NewMat()
		gocv.CopyMakeBorder(resized, &bordered, lb.top, lb.bottom,
			lb.left, lb.right, gocv.BorderConstant, color.RGBA{})
		resized.Close()

		bordered.ConvertToWithParams(&floatImg, gocv.MatTypeCV32FC3,
			1.0/255.0, 0)
		bordered.Close()

		p.setTransform(index, newTransform(srcW, srcH, lb.f, lb.left, lb.top))
	}

	// scatter the interleaved channels into the planar R,G,B tensor slot
	area := p.netRows * p.netCols
	base := index * 3 * area

	planes := gocv.Split(floatImg)

	for ch := 0; ch < len(planes); ch++ {

		data, err := planes[ch].DataPtrFloat32()

		if err != nil {
			for _, plane := range planes {
				plane.Close()
			}
			return fmt.Errorf("access channel plane data: %w", ErrOpenCV)
		}

		plane := ch

		if p.order == orderBGR {
			plane = 2 - ch
		}

		copy(p.host[base+plane*area:base+(plane+1)*area], data)
	}

	for _, plane := range planes {
		plane.Close()
	}

	if last {
		return p.flush(index + 1)
	}

	return nil
}

func (p *cpuPreprocessor) processImage(index int, img image.Image, last bool) error {

	if img == nil {
		return fmt.Errorf("nil input image: %w", ErrInvalidInput)
	}

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	if srcW == 0 || srcH == 0 {
		return fmt.Errorf("empty input image: %w", ErrInvalidInput)
	}

	p.ensureSlot(index)

	lb := computeLetterbox(srcW, srcH, p.netCols, p.netRows)

	// the zeroed canvas provides the black padding border
	canvas := image.NewRGBA(image.Rect(0, 0, p.netCols, p.netRows))

	draw.BiLinear.Scale(canvas,
		image.Rect(lb.left, lb.top, lb.left+lb.scaledW, lb.top+lb.scaledH),
		img, bounds, draw.Src, nil)

	area := p.netRows * p.netCols
	base := index * 3 * area

	for y := 0; y < p.netRows; y++ {
		for x := 0; x < p.netCols; x++ {

			c := canvas.RGBAAt(x, y)
			idx := y*p.netCols + x

			p.host[base+idx] = float32(c.R) / 255.0
			p.host[base+area+idx] = float32(c.G) / 255.0
			p.host[base+2*area+idx] = float32(c.B) / 255.0
		}
	}

	p.setTransform(index, newTransform(srcW, srcH, lb.f, lb.left, lb.top))

	if last {
		return p.flush(index + 1)
	}

	return nil
}

// flush uploads the staged host tensor for the given number of batch
// slots to the device input buffer
func (p *cpuPreprocessor) flush(numImages int) error {

	area := p.netRows * p.netCols
	size := numImages * 3 * area * 4

	rc := C.cudaMemcpyAsync(p.deviceInput, unsafe.Pointer(&p.host[0]),
		C.size_t(size), C.cudaMemcpyHostToDevice, p.cudaStream)

	if rc != C.cudaSuccess {
		p.logf(LogError, "[cpuPreprocessor] process failure: could not "+
			"copy input to device: %s", cudaErrString(rc))
		return fmt.Errorf("copy input tensor to device: %w", ErrCUDA)
	}

	return nil
}

func (p *cpuPreprocessor) stream() C.cudaStream_t {
	return p.cudaStream
}

func (p *cpuPreprocessor) synchronize() error {

	rc := C.cudaStreamSynchronize(p.cudaStream)

	if rc != C.cudaSuccess {
		p.logf(LogError, "[cpuPreprocessor] synchronize failure: %s",
			cudaErrString(rc))
		return fmt.Errorf("synchronize cuda stream: %w", ErrCUDA)
	}

	return nil
}

func (p *cpuPreprocessor) close() {

	if p.streamCreated {
		C.cudaStreamDestroy(p.cudaStream)
		p.streamCreated = false
	}

	p.host = nil
	p.deviceInput = nil
}
