package yolov5

import (
	"testing"
)

func TestPoolReturnFull(t *testing.T) {

	p := &Pool{
		detectors: make(chan *Detector, 1),
		size:      1,
	}

	d1 := NewDetector()
	d2 := NewDetector()

	p.Return(d1)

	// returning to a full pool drops the detector instead of blocking
	p.Return(d2)

	if got := p.Get(); got != d1 {
		t.Errorf("Get() = %p, want first returned detector %p", got, d1)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {

	p := &Pool{
		detectors: make(chan *Detector, 1),
		size:      1,
	}

	p.Return(NewDetector())

	p.Close()

	// closing again must not panic or double close
	p.Close()
}
