package yolov5

import (
	"fmt"
	"strings"
)

// engineBinding stores the relevant properties of one named engine
// binding: its tensor index, shape, element volume and direction.  It
// holds no memory or i/o state.  Bindings are created when an engine is
// loaded and immutable afterwards; a reload replaces them wholesale
type engineBinding struct {
	index   int
	name    string
	dims    []int32
	volume  int
	isInput bool
}

// dimsVolume returns the product of all dimensions, or 0 for an empty
// shape
func dimsVolume(dims []int32) int {

	if len(dims) == 0 {
		return 0
	}

	v := 1

	for _, d := range dims {
		v *= int(d)
	}

	return v
}

// dimsString formats a shape as "(1,3,640,640)"
func dimsString(dims []int32) string {

	parts := make([]string, len(dims))

	for i, d := range dims {
		parts[i] = fmt.Sprintf("%d", d)
	}

	return "(" + strings.Join(parts, ",") + ")"
}

// isDynamic indicates whether any dimension of the binding is dynamic
func (b engineBinding) isDynamic() bool {

	for _, d := range b.dims {
		if d == -1 {
			return true
		}
	}

	return false
}

// String returns the binding's attributes formatted as a string
func (b engineBinding) String() string {
	return fmt.Sprintf("name: '%s' ;  dims: %s ;  isInput: %t ;  dynamic: %t",
		b.name, dimsString(b.dims), b.isInput, b.isDynamic())
}

// bindingByName looks up an engine binding by its tensor name
func bindingByName(engine *trtEngine, name string) (engineBinding, error) {

	index := engine.bindingIndex(name)

	if index < 0 {
		return engineBinding{}, fmt.Errorf("no binding with name '%s': %w",
			name, ErrModel)
	}

	return bindingByIndex(engine, index)
}

// bindingByIndex looks up an engine binding by its tensor index
func bindingByIndex(engine *trtEngine, index int) (engineBinding, error) {

	name := engine.bindingName(index)

	if name == "" {
		return engineBinding{}, fmt.Errorf("no binding at index %d: %w",
			index, ErrModel)
	}

	dims := engine.bindingDims(index)

	return engineBinding{
		index:   index,
		name:    name,
		dims:    dims,
		volume:  dimsVolume(dims),
		isInput: engine.bindingIsInput(index),
	}, nil
}
