package yolov5

import (
	"sync"
)

// Pool holds multiple detectors loaded with the same engine so inference
// can be shared across goroutines
type Pool struct {
	// pool of detectors
	detectors chan *Detector
	// size of pool
	size  int
	close sync.Once
}

// NewPool creates a pool of size detectors, each initialized with the
// given flags and loaded with the given engine file
func NewPool(size int, engineFile string, flags int) (*Pool, error) {
	p := &Pool{
		detectors: make(chan *Detector, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		d := NewDetector()

		if err := d.Init(flags); err != nil {
			// close any instances that may have been created before
			// receiving the error
			p.Close()
			return nil, err
		}

		if err := d.LoadEngine(engineFile); err != nil {
			d.Close()
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(d)
	}

	return p, nil
}

// Gets a detector from the pool
func (p *Pool) Get() *Detector {
	return <-p.detectors
}

// Return a detector to the pool
func (p *Pool) Return(d *Detector) {
	select {
	case p.detectors <- d:
	default:
		// pool is full or closed
	}
}

// Close the pool and all detectors in it.  No detector may be returned
// to the pool after Close
func (p *Pool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.detectors)

		// close all detectors
		for next := range p.detectors {
			_ = next.Close()
		}
	})
}
