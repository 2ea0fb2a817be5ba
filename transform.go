package yolov5

import (
	"image"
)

// transform records the letterbox parameters applied to one image during
// pre-processing: the original image size, the uniform scale factor and
// the left/top padding.  It is used to map bounding boxes produced in
// network space back to coordinates in the original input image
type transform struct {
	// srcWidth and srcHeight are the dimensions of the original image
	srcWidth  int
	srcHeight int
	// f is the uniform scale factor applied during letterboxing
	f float64
	// leftPad and topPad are the padding offsets added on the left and
	// top edges
	leftPad int
	topPad  int
}

// newTransform returns a transform for the given source size and letterbox
// parameters
func newTransform(srcWidth, srcHeight int, f float64, leftPad, topPad int) transform {
	return transform{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		f:         f,
		leftPad:   leftPad,
		topPad:    topPad,
	}
}

// identityTransform returns the transform of an image that was fed to the
// network without resizing or padding
func identityTransform(srcWidth, srcHeight int) transform {
	return newTransform(srcWidth, srcHeight, 1.0, 0, 0)
}

// transformBbox maps a bounding box from network pixel space back to the
// original image space.  The result is clamped so the rectangle lies
// within the original image bounds
func (t transform) transformBbox(box image.Rectangle) image.Rectangle {

	x := int((float64(box.Min.X) - float64(t.leftPad)) / t.f)
	x = clampInt(x, 0, t.srcWidth-1)

	y := int((float64(box.Min.Y) - float64(t.topPad)) / t.f)
	y = clampInt(y, 0, t.srcHeight-1)

	w := int(float64(box.Dx()) / t.f)
	if x+w > t.srcWidth {
		w = t.srcWidth - x
	}

	h := int(float64(box.Dy()) / t.f)
	if y+h > t.srcHeight {
		h = t.srcHeight - y
	}

	return image.Rect(x, y, x+w, y+h)
}

// clampInt restricts v to the range [min, max]
func clampInt(v, min, max int) int {

	if v < min {
		return min
	}

	if v > max {
		return max
	}

	return v
}
