package bytetrack

import (
	"math"

	"github.com/LdDl/bytetrack/kalman"
	"gonum.org/v1/gonum/mat"
)

// TrackState is the lifecycle state of a Track (spec section 3).
type TrackState int

const (
	// StateNew is a just-constructed track that has not yet been activated.
	StateNew TrackState = iota
	// StateTracked is an actively matched track.
	StateTracked
	// StateLost is a track that failed to match this frame but is still
	// within its retention window.
	StateLost
	// StateRemoved is a terminal state; the track will never reappear.
	StateRemoved
)

// String implements fmt.Stringer for readable logging/test failures.
func (s TrackState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateTracked:
		return "Tracked"
	case StateLost:
		return "Lost"
	case StateRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Track is a persistent tracked object: the Kalman state machine wrapping
// its box geometry, plus the bookkeeping the tracker's lifecycle needs
// (spec section 4.4). There is a single concrete Track type here -- unlike
// the teacher's generic Blob[Self] interface, which existed to let three
// interchangeable tracker algorithms share one blob shape, ByteTrack's
// cascade has exactly one track representation, so the activate/predict/
// update "trait" lives directly as Track's methods rather than behind an
// interface with a single implementer.
type Track struct {
	id          int
	state       TrackState
	isActivated bool
	score       float64
	startFrame  int
	frameID     int
	trackletLen int

	mean *mat.VecDense // nil until Activate
	cov  *mat.SymDense

	initialTLWH Rectangle
	location    Point

	kf *kalman.Filter
}

// NewTrack constructs an unactivated track from a detection box and score.
// It is not yet part of any tracker list and has no track_id until Activate
// is called.
func NewTrack(box Rectangle, score float64) *Track {
	return &Track{
		state:       StateNew,
		score:       score,
		initialTLWH: box,
		location:    Point{X: math.Inf(1), Y: math.Inf(1)},
	}
}

// ID returns the track's identifier. Zero until Activate has run.
func (t *Track) ID() int { return t.id }

// State returns the track's current lifecycle state.
func (t *Track) State() TrackState { return t.state }

// IsActivated reports whether the track has been matched in a frame other
// than its birth frame, or was born in frame 1.
func (t *Track) IsActivated() bool { return t.isActivated }

// Score returns the last observed detection score.
func (t *Track) Score() float64 { return t.score }

// StartFrame returns the first frame this track appeared in.
func (t *Track) StartFrame() int { return t.startFrame }

// FrameID returns the most recent frame this track was activated or matched
// in. Predict does not change it.
func (t *Track) FrameID() int { return t.frameID }

// TrackletLen returns the number of successful updates since Activate.
// ReActivate adds one to the count; it does not reset it.
func (t *Track) TrackletLen() int { return t.trackletLen }

// Age returns how many frames have elapsed since this track's birth,
// relative to the tracker's current frame id.
func (t *Track) Age(currentFrameID int) int { return currentFrameID - t.startFrame }

// Location returns the reserved multi-camera location field (unused by the
// core algorithm), initialized to (+Inf, +Inf).
func (t *Track) Location() Point { return t.location }

// SetLocation sets the reserved multi-camera location field.
func (t *Track) SetLocation(p Point) { t.location = p }

// TLWH returns the track's box in top-left/width-height form: read from the
// Kalman mean once established, else from the box the track was
// constructed with.
func (t *Track) TLWH() Rectangle {
	if t.mean == nil {
		return t.initialTLWH
	}
	cx, cy, a, h := t.mean.AtVec(0), t.mean.AtVec(1), t.mean.AtVec(2), t.mean.AtVec(3)
	w := a * h
	return Rectangle{X: cx - w/2.0, Y: cy - h/2.0, Width: w, Height: h}
}

// TLBR returns the track's box in (x1, y1, x2, y2) form.
func (t *Track) TLBR() Box {
	return t.TLWH().ToBox()
}

// xyah converts a tlwh Rectangle into the Kalman filter's (cx, cy, a, h) measurement form.
func xyah(r Rectangle) kalman.Measurement {
	center := r.Center()
	a := 0.0
	if r.Height != 0 {
		a = r.Width / r.Height
	}
	return kalman.Measurement{center.X, center.Y, a, r.Height}
}

// Activate assigns the track its id, initiates its Kalman state from the
// box it was constructed with, and transitions it to Tracked.
func (t *Track) Activate(kf *kalman.Filter, frameID int, id int) {
	t.id = id
	t.kf = kf
	t.mean, t.cov = kf.Initiate(xyah(t.initialTLWH))
	t.state = StateTracked
	t.trackletLen = 0
	t.isActivated = frameID == 1
	t.startFrame = frameID
	t.frameID = frameID
}

// Predict advances the track's Kalman state by one step. If the track is
// not currently Tracked, the height velocity (index 7) is zeroed in the
// working copy before predicting, suppressing vertical drift for
// non-tracked states. A track with no Kalman state yet (never activated) is
// a no-op.
func (t *Track) Predict() {
	if t.mean == nil {
		return
	}
	working := mat.VecDenseCopyOf(t.mean)
	if t.state != StateTracked {
		working.SetVec(7, 0)
	}
	t.mean, t.cov = t.kf.Predict(working, t.cov)
}

// MultiPredict is the batched form of Predict over several tracks sharing
// filter kf, yielding the same result as calling Predict on each
// individually. Tracks with no Kalman state yet are skipped.
func MultiPredict(kf *kalman.Filter, tracks []*Track) {
	idx := make([]int, 0, len(tracks))
	means := make([]*mat.VecDense, 0, len(tracks))
	covs := make([]*mat.SymDense, 0, len(tracks))
	for i, tr := range tracks {
		if tr.mean == nil {
			continue
		}
		working := mat.VecDenseCopyOf(tr.mean)
		if tr.state != StateTracked {
			working.SetVec(7, 0)
		}
		idx = append(idx, i)
		means = append(means, working)
		covs = append(covs, tr.cov)
	}
	if len(idx) == 0 {
		return
	}
	newMeans, newCovs := kf.MultiPredict(means, covs)
	for k, i := range idx {
		tracks[i].mean = newMeans[k]
		tracks[i].cov = newCovs[k]
	}
}

// reactivate is the shared implementation behind ReActivate and Update: a
// Kalman correction using the matched detection's box, bumping
// tracklet_len, restoring Tracked/activated state. A Cholesky failure
// inside the filter leaves the track's previous state untouched and is
// propagated to the caller, who may still mark it lost through the normal
// lifecycle (spec section 7 propagation policy).
func (t *Track) reactivate(matched *Track, frameID int, newID bool, id int) error {
	newMean, newCov, err := t.kf.Update(t.mean, t.cov, xyah(matched.TLWH()))
	if err != nil {
		return err
	}
	t.mean, t.cov = newMean, newCov
	t.trackletLen++
	t.state = StateTracked
	t.isActivated = true
	if newID {
		t.id = id
	}
	t.score = matched.score
	t.frameID = frameID
	return nil
}

// ReActivate re-activates a Lost or unconfirmed track with a newly matched
// detection. If newID is true, a fresh track_id is assigned (id); otherwise
// the track keeps its existing id.
func (t *Track) ReActivate(matched *Track, frameID int, newID bool, id int) error {
	return t.reactivate(matched, frameID, newID, id)
}

// Update corrects an already-Tracked track with a newly matched detection;
// it is ReActivate without the option to take a new id.
func (t *Track) Update(matched *Track, frameID int) error {
	return t.reactivate(matched, frameID, false, 0)
}

// MarkLost transitions the track to Lost.
func (t *Track) MarkLost() { t.state = StateLost }

// MarkRemoved transitions the track to Removed, its terminal state.
func (t *Track) MarkRemoved() { t.state = StateRemoved }
