package yolov5

/*
#include <cuda_runtime_api.h>
*/
import "C"
import (
	"fmt"
	"image"
	"os"
	"unsafe"

	"gocv.io/x/gocv"
)

// Engine binding names of the standard YOLOv5 TensorRT export
const (
	inputBindingName  = "images"
	outputBindingName = "output"
)

// Default detection thresholds
const (
	DefaultScoreThreshold = 0.4
	DefaultNMSThreshold   = 0.4
)

// Detector performs YOLOv5 object detection through a TensorRT engine.
// Usage is Init once, LoadEngine once or more, then any number of Detect
// calls.  A Detector is not safe for concurrent use, use a Pool to share
// work across goroutines
type Detector struct {
	logger      Logger
	initialized bool

	runtime *trtRuntime
	engine  *trtEngine
	context *trtContext

	inputBinding  engineBinding
	outputBinding engineBinding
	memory        deviceMemory

	outputHost   []float32
	outputRaw    []uint16
	outputIsFP16 bool

	pre     preprocessor
	classes *Classes

	scoreThreshold float64
	nmsThreshold   float64
}

// NewDetector returns a Detector with default thresholds.  Init must be
// called before loading an engine
func NewDetector() *Detector {
	return &Detector{
		classes:        NewClasses(),
		scoreThreshold: DefaultScoreThreshold,
		nmsThreshold:   DefaultNMSThreshold,
	}
}

func (d *Detector) logf(level LogLevel, format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Logf(level, format, args...)
	}
}

// Init sets up the TensorRT runtime and selects the pre-processor.  By
// default the CUDA pre-processor is used when a CUDA device is available,
// falling back to the CPU pre-processor otherwise; the PreprocessorCUDA
// and PreprocessorCPU flags force the choice.  Calling Init again on an
// initialized Detector has no effect
func (d *Detector) Init(flags int) error {

	if d.logger == nil {
		d.logger = NewConsoleLogger()
	}

	d.classes.SetLogger(d.logger)

	if d.initialized {
		return nil
	}

	if flags&PreprocessorCUDA != 0 && flags&PreprocessorCPU != 0 {
		d.logf(LogError, "[Detector] init failure: both PreprocessorCUDA "+
			"and PreprocessorCPU flags specified")
		return fmt.Errorf("both PreprocessorCUDA and PreprocessorCPU flags "+
			"specified: %w", ErrInvalidInput)
	}

	useCUDA := false

	switch {
	case flags&PreprocessorCUDA != 0:
		if !cudaAvailable() {
			d.logger.Log(LogError, "[Detector] init failure: CUDA "+
				"pre-processor requested but no CUDA device is available")
			return fmt.Errorf("cuda preprocessor requested: %w",
				ErrCUDAUnavailable)
		}
		useCUDA = true

	case flags&PreprocessorCPU != 0:
		useCUDA = false

	default:
		useCUDA = cudaAvailable()
	}

	if useCUDA {
		d.logger.Log(LogInfo, "[Detector] using CUDA pre-processor")
		d.pre = newCUDAPreprocessor()
	} else {
		d.logger.Log(LogInfo, "[Detector] using CPU pre-processor")
		d.pre = newCPUPreprocessor()
	}

	d.pre.setLogger(d.logger)

	if d.runtime == nil {

		runtime, err := newTRTRuntime(d.logger)

		if err != nil {
			return err
		}

		d.runtime = runtime
	}

	d.initialized = true

	return nil
}

// IsInitialized indicates whether Init completed successfully
func (d *Detector) IsInitialized() bool {
	return d.initialized
}

// IsEngineLoaded indicates whether an inference engine is loaded
func (d *Detector) IsEngineLoaded() bool {
	return d.engine != nil
}

// LoadEngine reads a serialized TensorRT engine from the given file and
// loads it
func (d *Detector) LoadEngine(path string) error {

	data, err := os.ReadFile(path)

	if err != nil {
		d.logf(LogError, "[Detector] loadEngine failure: could not read "+
			"engine file '%s': %v", path, err)
		return fmt.Errorf("read engine file '%s': %v: %w", path, err,
			ErrFilesystem)
	}

	return d.LoadEngineData(data)
}

// LoadEngineData deserializes and loads a TensorRT engine from memory.
// On success any previously loaded engine is replaced; on failure the
// previous engine, if any, remains loaded and usable
func (d *Detector) LoadEngineData(data []byte) error {

	if !d.initialized {
		d.logf(LogError, "[Detector] loadEngine failure: not initialized")
		return fmt.Errorf("detector not initialized: %w", ErrNotInitialized)
	}

	d.logger.Logf(LogInfo, "[Detector] deserializing engine (%d bytes)",
		len(data))

	engine, err := d.runtime.deserialize(data)

	if err != nil {
		d.logf(LogError, "[Detector] loadEngine failure: could not "+
			"deserialize engine: %v", err)
		return err
	}

	context, err := engine.newContext()

	if err != nil {
		d.logf(LogError, "[Detector] loadEngine failure: could not create "+
			"execution context: %v", err)
		engine.close()
		return err
	}

	d.printBindings(engine)

	input, output, err := validateBindings(engine)

	if err != nil {
		d.logger.Logf(LogError, "[Detector] engine load failure: %v", err)
		context.close()
		engine.close()
		return err
	}

	memory, err := newDeviceMemory(engine, d.logger)

	if err != nil {
		context.close()
		engine.close()
		return err
	}

	fp16 := engine.bindingDataType(output.index) == dataTypeFloat16

	// everything validated and allocated, swap out the old engine state
	d.unloadEngine()

	d.engine = engine
	d.context = context
	d.inputBinding = input
	d.outputBinding = output
	d.memory = memory
	d.outputIsFP16 = fp16
	d.outputHost = make([]float32, output.volume)

	if fp16 {
		d.outputRaw = make([]uint16, output.volume)
	} else {
		d.outputRaw = nil
	}

	d.pre.reset()

	d.logger.Logf(LogInfo, "[Detector] engine loaded: input %s, output %s",
		dimsString(input.dims), dimsString(output.dims))

	return nil
}

// validateBindings looks up the input and output bindings of the engine
// and checks them against the contract the pipeline expects
func validateBindings(engine *trtEngine) (engineBinding, engineBinding, error) {

	var none engineBinding

	input, err := bindingByName(engine, inputBindingName)

	if err != nil {
		return none, none, err
	}

	output, err := bindingByName(engine, outputBindingName)

	if err != nil {
		return none, none, err
	}

	err = checkBindingContract(input, output,
		engine.bindingDataType(input.index))

	if err != nil {
		return none, none, err
	}

	return input, output, nil
}

// checkBindingContract verifies the binding shapes and the input tensor
// data type.  The preprocessors write float32 tensor data, so an input
// binding of any other type is a model error; the output may additionally
// be float16, converted during the host copy
func checkBindingContract(input, output engineBinding, inputType int) error {

	if len(input.dims) != 4 {
		return fmt.Errorf("input binding has %d dimensions, expected 4: %w",
			len(input.dims), ErrModel)
	}

	if input.isDynamic() {
		return fmt.Errorf("input binding has dynamic dimensions: %w", ErrModel)
	}

	if inputType != dataTypeFloat32 {
		return fmt.Errorf("input binding has data type %d, expected "+
			"float32: %w", inputType, ErrModel)
	}

	if len(output.dims) != 3 {
		return fmt.Errorf("output binding has %d dimensions, expected 3: %w",
			len(output.dims), ErrModel)
	}

	if output.isDynamic() {
		return fmt.Errorf("output binding has dynamic dimensions: %w", ErrModel)
	}

	return nil
}

// printBindings logs the binding table of a freshly deserialized engine
func (d *Detector) printBindings(engine *trtEngine) {

	n := engine.numBindings()

	for i := 0; i < n; i++ {

		binding, err := bindingByIndex(engine, i)

		if err != nil {
			continue
		}

		d.logger.Logf(LogDebug, "[Detector] engine binding %d:  %v", i, binding)
	}
}

// unloadEngine releases the loaded engine and everything derived from it
func (d *Detector) unloadEngine() {

	if d.context != nil {
		d.context.close()
		d.context = nil
	}

	if d.engine != nil {
		d.engine.close()
		d.engine = nil
	}

	d.memory.close()
}

// Detect runs object detection on a single OpenCV image.  flags select
// the input color order, InputBGR being the default.  The first calls
// after loading an engine are slower while the pipeline warms up, so
// discard them when benchmarking
func (d *Detector) Detect(img gocv.Mat, flags int) ([]Detection, error) {

	if err := d.beginDetect(flags); err != nil {
		return nil, err
	}

	if err := d.pre.process(0, img, true); err != nil {
		return nil, err
	}

	if err := d.inference(); err != nil {
		return nil, err
	}

	return d.decodeOutput(0)
}

// DetectImage runs object detection on a standard library image.  The
// image is processed with RGB semantics, the color order flags are
// ignored
func (d *Detector) DetectImage(img image.Image, flags int) ([]Detection, error) {

	if err := d.beginDetect(flags); err != nil {
		return nil, err
	}

	if err := d.pre.processImage(0, img, true); err != nil {
		return nil, err
	}

	if err := d.inference(); err != nil {
		return nil, err
	}

	return d.decodeOutput(0)
}

// DetectBatch runs object detection on up to BatchSize images in a single
// inference pass, returning one detection list per input image
func (d *Detector) DetectBatch(imgs []gocv.Mat, flags int) ([][]Detection, error) {

	if !d.IsEngineLoaded() {
		d.logf(LogError, "[Detector] detectBatch failure: no engine loaded")
		return nil, fmt.Errorf("no engine loaded: %w", ErrNotLoaded)
	}

	batchSize := int(d.inputBinding.dims[0])

	if len(imgs) == 0 || len(imgs) > batchSize {
		d.logf(LogError, "[Detector] detectBatch failure: %d images does "+
			"not fit batch size %d", len(imgs), batchSize)
		return nil, fmt.Errorf("batch of %d images does not fit batch size "+
			"%d: %w", len(imgs), batchSize, ErrInvalidInput)
	}

	if err := d.beginDetect(flags); err != nil {
		return nil, err
	}

	for i, img := range imgs {
		if err := d.pre.process(i, img, i == len(imgs)-1); err != nil {
			return nil, err
		}
	}

	if err := d.inference(); err != nil {
		return nil, err
	}

	results := make([][]Detection, len(imgs))

	for i := range imgs {

		dets, err := d.decodeOutput(i)

		if err != nil {
			return nil, err
		}

		results[i] = dets
	}

	return results, nil
}

// beginDetect checks the engine state and configures the pre-processor
// for the given detect flags
func (d *Detector) beginDetect(flags int) error {

	if !d.IsEngineLoaded() {
		d.logf(LogError, "[Detector] detect failure: no engine loaded")
		return fmt.Errorf("no engine loaded: %w", ErrNotLoaded)
	}

	return d.pre.setup(d.inputBinding.dims, flags,
		int(d.inputBinding.dims[0]), d.memory.at(d.inputBinding.index))
}

// inference enqueues the network execution on the pre-processor's stream,
// copies the output tensor back to the host and waits for completion
func (d *Detector) inference() error {

	if err := d.context.enqueue(d.memory.begin(), d.pre.stream()); err != nil {
		d.logger.Log(LogError, "[Detector] inference failure: could not "+
			"enqueue inference")
		return err
	}

	var (
		dst  unsafe.Pointer
		size int
	)

	if d.outputIsFP16 {
		dst = unsafe.Pointer(&d.outputRaw[0])
		size = d.outputBinding.volume * 2
	} else {
		dst = unsafe.Pointer(&d.outputHost[0])
		size = d.outputBinding.volume * 4
	}

	rc := C.cudaMemcpyAsync(dst, d.memory.at(d.outputBinding.index),
		C.size_t(size), C.cudaMemcpyDeviceToHost, d.pre.stream())

	if rc != C.cudaSuccess {
		d.logger.Logf(LogError, "[Detector] inference failure: could not "+
			"copy output to host: %s", cudaErrString(rc))
		return fmt.Errorf("copy output tensor to host: %w", ErrCUDA)
	}

	if err := d.pre.synchronize(); err != nil {
		return err
	}

	if d.outputIsFP16 {
		for i, v := range d.outputRaw {
			d.outputHost[i] = f16LookupTable[v]
		}
	}

	return nil
}

// SetScoreThreshold sets the minimum detection score.  Values outside
// [0, 1] are rejected and the previous threshold is kept
func (d *Detector) SetScoreThreshold(v float64) error {

	if v < 0 || v > 1 {
		d.logf(LogError, "[Detector] setScoreThreshold failure: value %v "+
			"outside [0, 1]", v)
		return fmt.Errorf("score threshold %v outside [0, 1]: %w", v,
			ErrInvalidInput)
	}

	d.scoreThreshold = v

	return nil
}

// ScoreThreshold returns the current minimum detection score
func (d *Detector) ScoreThreshold() float64 {
	return d.scoreThreshold
}

// SetNMSThreshold sets the IoU threshold used by non-maximum suppression.
// Values outside [0, 1] are rejected and the previous threshold is kept
func (d *Detector) SetNMSThreshold(v float64) error {

	if v < 0 || v > 1 {
		d.logf(LogError, "[Detector] setNmsThreshold failure: value %v "+
			"outside [0, 1]", v)
		return fmt.Errorf("nms threshold %v outside [0, 1]: %w", v,
			ErrInvalidInput)
	}

	d.nmsThreshold = v

	return nil
}

// NMSThreshold returns the current non-maximum suppression threshold
func (d *Detector) NMSThreshold() float64 {
	return d.nmsThreshold
}

// BatchSize returns the number of images the loaded engine processes per
// inference pass
func (d *Detector) BatchSize() (int, error) {

	if !d.IsEngineLoaded() {
		d.logf(LogError, "[Detector] batchSize failure: no engine loaded")
		return 0, fmt.Errorf("no engine loaded: %w", ErrNotLoaded)
	}

	return int(d.inputBinding.dims[0]), nil
}

// NumClasses returns the number of object classes of the loaded engine
func (d *Detector) NumClasses() (int, error) {

	if !d.IsEngineLoaded() {
		d.logf(LogError, "[Detector] numClasses failure: no engine loaded")
		return 0, fmt.Errorf("no engine loaded: %w", ErrNotLoaded)
	}

	return int(d.outputBinding.dims[2]) - 5, nil
}

// InferenceSize returns the network input size of the loaded engine as
// (width, height)
func (d *Detector) InferenceSize() (image.Point, error) {

	if !d.IsEngineLoaded() {
		d.logf(LogError, "[Detector] inferenceSize failure: no engine loaded")
		return image.Point{}, fmt.Errorf("no engine loaded: %w", ErrNotLoaded)
	}

	return image.Pt(int(d.inputBinding.dims[3]),
		int(d.inputBinding.dims[2])), nil
}

// SetClasses loads the class names used to label detections
func (d *Detector) SetClasses(names []string) error {
	return d.classes.Load(names)
}

// LoadClasses loads class names from a text file, one name per line
func (d *Detector) LoadClasses(path string) error {
	return d.classes.LoadFromFile(path)
}

// SetLogger replaces the logging sink of the detector and everything it
// owns
func (d *Detector) SetLogger(logger Logger) error {

	if logger == nil {
		return fmt.Errorf("nil logger: %w", ErrInvalidInput)
	}

	d.logger = logger
	d.classes.SetLogger(logger)

	if d.pre != nil {
		d.pre.setLogger(logger)
	}

	if d.runtime != nil {
		d.runtime.setLogger(logger)
	}

	return nil
}

// Close releases all TensorRT and CUDA resources held by the detector.
// The detector must not be used afterwards
func (d *Detector) Close() error {

	d.unloadEngine()

	if d.pre != nil {
		d.pre.close()
		d.pre = nil
	}

	if d.runtime != nil {
		d.runtime.close()
		d.runtime = nil
	}

	d.initialized = false

	return nil
}
