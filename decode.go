package yolov5

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// decodeOutput decodes the output tensor slot of the given batch index
// into a list of detections in original image coordinates
func (d *Detector) decodeOutput(index int) ([]Detection, error) {

	numBoxes := int(d.outputBinding.dims[1])
	rowSize := int(d.outputBinding.dims[2])

	start := index * numBoxes * rowSize
	data := d.outputHost[start : start+numBoxes*rowSize]

	return decodeTensor(data, numBoxes, rowSize, d.scoreThreshold,
		d.nmsThreshold, d.pre.transformAt(index), d.classes)
}

// decodeTensor decodes one image's raw YOLOv5 output rows.  Each row is
// [x, y, w, h, objectness, class scores...] with the box center and size
// in network pixel space.  Candidate boxes passing the score threshold go
// through non-maximum suppression, and the surviving boxes are mapped
// back to original image coordinates through tf
func decodeTensor(data []float32, numBoxes, rowSize int, scoreThreshold,
	nmsThreshold float64, tf transform, classes *Classes) ([]Detection, error) {

	nrClasses := rowSize - 5

	if nrClasses <= 0 {
		return nil, fmt.Errorf("output row size %d leaves no class scores: %w",
			rowSize, ErrModel)
	}

	var (
		boxes    []image.Rectangle
		scores   []float32
		classIDs []int
		fulls    []float64
	)

	classScores := make([]float64, nrClasses)

	for i := 0; i < numBoxes; i++ {

		row := data[i*rowSize : (i+1)*rowSize]

		objectness := float64(row[4])

		if objectness < scoreThreshold {
			continue
		}

		for c := 0; c < nrClasses; c++ {
			classScores[c] = float64(row[5+c])
		}

		classID := floats.MaxIdx(classScores)
		score := objectness * classScores[classID]

		if score < scoreThreshold {
			continue
		}

		// center and size to corner coordinates, truncated like the
		// network space is integral
		w := float64(row[2])
		h := float64(row[3])
		x := float64(row[0]) - w/2
		y := float64(row[1]) - h/2

		ix, iy := int(x), int(y)
		iw, ih := int(w), int(h)

		boxes = append(boxes, image.Rect(ix, iy, ix+iw, iy+ih))
		scores = append(scores, float32(score))
		classIDs = append(classIDs, classID)
		fulls = append(fulls, score)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, float32(scoreThreshold),
		float32(nmsThreshold))

	detections := make([]Detection, 0, len(indices))

	for _, idx := range indices {

		score := fulls[idx]

		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}

		det := Detection{
			ClassID: classIDs[idx],
			Box:     tf.transformBbox(boxes[idx]),
			Score:   score,
		}

		if classes.IsLoaded() {
			// a missing name leaves the detection unlabeled
			det.ClassName, _ = classes.GetName(det.ClassID)
		}

		detections = append(detections, det)
	}

	return detections, nil
}
