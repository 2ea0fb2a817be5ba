package yolov5

import (
	"image"
)

// Detection describes a single object detected in an image.  Instances are
// produced by Detect and DetectBatch with the bounding box already
// transformed back into the coordinate space of the original input image
type Detection struct {
	// ClassID is the class index the model assigned to the object, or -1
	// if unset
	ClassID int
	// Box is the bounding box of the object in original image pixel
	// coordinates
	Box image.Rectangle
	// Score is the combined objectness and class confidence, in [0, 1]
	Score float64
	// ClassName is the human readable name of the class, or empty if no
	// class table is loaded
	ClassName string
}

// NewDetection returns a Detection with the given class id, bounding box
// and score.  It exists mainly for constructing test fixtures and
// visualization inputs by hand
func NewDetection(classID int, box image.Rectangle, score float64) Detection {
	return Detection{
		ClassID: classID,
		Box:     box,
		Score:   score,
	}
}
