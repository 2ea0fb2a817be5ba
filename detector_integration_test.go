//go:build integration

package yolov5

import (
	"errors"
	"os"
	"testing"

	"gocv.io/x/gocv"
)

// These tests exercise the full pipeline against real hardware and
// require a serialized TensorRT engine.  Set the following environment
// variables to run them:
//
//	YOLOV5_ENGINE  - path to a serialized yolov5 TensorRT engine
//	YOLOV5_IMAGE   - path to a test image containing detectable objects
//	YOLOV5_CLASSES - optional path to a class name file
//
// Run with: go test -tags integration

func integrationEngine(t *testing.T) string {

	path := os.Getenv("YOLOV5_ENGINE")

	if path == "" {
		t.Skip("YOLOV5_ENGINE not set")
	}

	return path
}

func integrationImage(t *testing.T) gocv.Mat {

	path := os.Getenv("YOLOV5_IMAGE")

	if path == "" {
		t.Skip("YOLOV5_IMAGE not set")
	}

	img := gocv.IMRead(path, gocv.IMReadColor)

	if img.Empty() {
		t.Fatalf("could not read image %s", path)
	}

	return img
}

func TestIntegrationDetect(t *testing.T) {

	d := NewDetector()

	if err := d.Init(0); err != nil {
		t.Fatalf("init: %v", err)
	}

	defer d.Close()

	if err := d.LoadEngine(integrationEngine(t)); err != nil {
		t.Fatalf("load engine: %v", err)
	}

	if classes := os.Getenv("YOLOV5_CLASSES"); classes != "" {
		if err := d.LoadClasses(classes); err != nil {
			t.Fatalf("load classes: %v", err)
		}
	}

	img := integrationImage(t)
	defer img.Close()

	dets, err := d.Detect(img, 0)

	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if len(dets) == 0 {
		t.Fatal("no detections in test image")
	}

	bounds := img.Cols()

	for _, det := range dets {

		if det.Score < 0 || det.Score > 1 {
			t.Errorf("detection score %v outside [0, 1]", det.Score)
		}

		if det.Box.Min.X < 0 || det.Box.Max.X > bounds {
			t.Errorf("detection box %v outside image", det.Box)
		}
	}

	// a second detect on the same frame must yield identical results
	again, err := d.Detect(img, 0)

	if err != nil {
		t.Fatalf("second detect: %v", err)
	}

	if len(again) != len(dets) {
		t.Errorf("detect not deterministic: %d vs %d detections",
			len(dets), len(again))
	}
}

func TestIntegrationDetectCPUPreprocessor(t *testing.T) {

	d := NewDetector()

	if err := d.Init(PreprocessorCPU); err != nil {
		t.Fatalf("init: %v", err)
	}

	defer d.Close()

	if err := d.LoadEngine(integrationEngine(t)); err != nil {
		t.Fatalf("load engine: %v", err)
	}

	img := integrationImage(t)
	defer img.Close()

	if _, err := d.Detect(img, 0); err != nil {
		t.Fatalf("detect: %v", err)
	}
}

func TestIntegrationInitIdempotent(t *testing.T) {

	d := NewDetector()

	if err := d.Init(0); err != nil {
		t.Fatalf("init: %v", err)
	}

	defer d.Close()

	// calling Init again has no effect
	if err := d.Init(0); err != nil {
		t.Fatalf("second init: %v", err)
	}

	if !d.IsInitialized() {
		t.Fatal("detector not initialized")
	}
}

func TestIntegrationReloadKeepsEngine(t *testing.T) {

	d := NewDetector()

	if err := d.Init(0); err != nil {
		t.Fatalf("init: %v", err)
	}

	defer d.Close()

	if err := d.LoadEngine(integrationEngine(t)); err != nil {
		t.Fatalf("load engine: %v", err)
	}

	batch, err := d.BatchSize()

	if err != nil {
		t.Fatalf("batch size: %v", err)
	}

	// loading garbage must fail and keep the previous engine usable
	if err := d.LoadEngineData([]byte("not an engine")); err == nil {
		t.Fatal("expected error loading invalid engine data")
	}

	if !d.IsEngineLoaded() {
		t.Fatal("engine unloaded after failed reload")
	}

	if got, err := d.BatchSize(); err != nil || got != batch {
		t.Errorf("batch size after failed reload = %d, %v, want %d",
			got, err, batch)
	}

	img := integrationImage(t)
	defer img.Close()

	if _, err := d.Detect(img, 0); err != nil {
		t.Fatalf("detect after failed reload: %v", err)
	}
}

func TestIntegrationQueries(t *testing.T) {

	d := NewDetector()

	if err := d.Init(0); err != nil {
		t.Fatalf("init: %v", err)
	}

	defer d.Close()

	if err := d.LoadEngine(integrationEngine(t)); err != nil {
		t.Fatalf("load engine: %v", err)
	}

	batch, err := d.BatchSize()

	if err != nil || batch < 1 {
		t.Errorf("BatchSize = %d, %v", batch, err)
	}

	classes, err := d.NumClasses()

	if err != nil || classes < 1 {
		t.Errorf("NumClasses = %d, %v", classes, err)
	}

	size, err := d.InferenceSize()

	if err != nil || size.X < 1 || size.Y < 1 {
		t.Errorf("InferenceSize = %v, %v", size, err)
	}
}

func TestIntegrationDetectBatchTooLarge(t *testing.T) {

	d := NewDetector()

	if err := d.Init(0); err != nil {
		t.Fatalf("init: %v", err)
	}

	defer d.Close()

	if err := d.LoadEngine(integrationEngine(t)); err != nil {
		t.Fatalf("load engine: %v", err)
	}

	batch, err := d.BatchSize()

	if err != nil {
		t.Fatalf("batch size: %v", err)
	}

	img := integrationImage(t)
	defer img.Close()

	// one image past the model's batch size is an input error, never a
	// truncation
	imgs := make([]gocv.Mat, batch+1)

	for i := range imgs {
		imgs[i] = img
	}

	if _, err := d.DetectBatch(imgs, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("DetectBatch(batch+1) = %v, want ErrInvalidInput", err)
	}
}
