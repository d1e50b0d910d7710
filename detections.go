package bytetrack

import (
	"fmt"
	"math"
)

// DetectionSchema tags the column layout of a raw detector output row, per
// the "dynamic input shape -> tagged input variant" design note: decoded
// once at the boundary rather than branched on deep in the pipeline.
type DetectionSchema int

const (
	// SchemaScoreOnly is 5 columns: (x1, y1, x2, y2, score).
	SchemaScoreOnly DetectionSchema = iota
	// SchemaObjectnessClass is >= 6 columns: (x1, y1, x2, y2, objectness, class_conf, ...);
	// score = objectness * class_conf.
	SchemaObjectnessClass
)

// detection is an ephemeral per-frame observation: a box plus a confidence
// score. It does not outlive the Update call that produced it, except when
// promoted into a Track.
type detection struct {
	box   Box
	score float64
}

// decodeDetections converts a raw detector output matrix into detections,
// undoing the detector's letterbox scaling. outputResults rows have either
// 5 columns (SchemaScoreOnly) or >= 6 columns (SchemaObjectnessClass);
// ragged rows or fewer than 5 columns are rejected.
func decodeDetections(outputResults [][]float64, imgInfo, imgSize [2]float64) ([]detection, error) {
	if len(outputResults) == 0 {
		return nil, nil
	}

	numCols := len(outputResults[0])
	if numCols < 5 {
		return nil, fmt.Errorf("%w: need at least 5 columns, got %d", ErrInvalidDetectionShape, numCols)
	}
	schema := SchemaScoreOnly
	if numCols >= 6 {
		schema = SchemaObjectnessClass
	}

	scaleX := imgSize[1] / imgInfo[1]
	scaleY := imgSize[0] / imgInfo[0]
	scale := math.Min(scaleX, scaleY)
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: invalid img_info/img_size scale", ErrNonFiniteInput)
	}
	inv := 1.0 / scale

	dets := make([]detection, 0, len(outputResults))
	for rowIdx, row := range outputResults {
		if len(row) != numCols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidDetectionShape, rowIdx, len(row), numCols)
		}

		var score float64
		switch schema {
		case SchemaScoreOnly:
			score = row[4]
		case SchemaObjectnessClass:
			score = row[4] * row[5]
		}

		box := Box{X1: row[0] * inv, Y1: row[1] * inv, X2: row[2] * inv, Y2: row[3] * inv}
		if !isFiniteBox(box) || math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("%w: row %d has non-finite box or score", ErrNonFiniteInput, rowIdx)
		}

		dets = append(dets, detection{box: box, score: score})
	}
	return dets, nil
}
