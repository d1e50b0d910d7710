package bytetrack

import "github.com/pkg/errors"

// ErrInvalidConfig is returned by NewTracker when a configuration field is
// out of range (non-positive frame rate/track buffer, track threshold
// outside (0, 1), match threshold outside (0, 1]).
var ErrInvalidConfig = errors.New("bytetrack: invalid configuration")

// ErrInvalidDetectionShape is returned by Tracker.Update when the detection
// matrix has fewer than 5 columns or ragged rows.
var ErrInvalidDetectionShape = errors.New("bytetrack: invalid detection shape")

// ErrNonFiniteInput is returned when a detection box or score is NaN/Inf.
var ErrNonFiniteInput = errors.New("bytetrack: non-finite input")

// Invalid gating metric errors are reported by the kalman package directly
// (kalman.ErrUnknownMetric); the root package has no operation that calls
// GatingDistance, so it does not re-export a sentinel for it.
