package bytetrack

import (
	"github.com/LdDl/bytetrack/kalman"
)

// lowConfFloor is the lower bound (exclusive) for low-confidence detections
// eligible for the second association stage (spec section 2: "0.1 < score
// <= track_thresh").
const lowConfFloor = 0.1

// secondStageThresh gates the low-confidence rescue association (spec 4.5 step 7).
const secondStageThresh = 0.5

// unconfirmedStageThresh gates the unconfirmed-track association (spec 4.5 step 8).
const unconfirmedStageThresh = 0.7

// dedupIoUThresh is the overlap above which tracked/lost duplicates are
// resolved (spec 4.5 step 12): IoU > 0.85, i.e. cost/distance < 0.15.
const dedupIoUThresh = 0.85

// Tracker is the per-video-stream ByteTrack orchestrator (spec sections 3
// and 4.5). It is single-threaded and sequential: concurrent calls into the
// same instance are unsupported, callers must serialize (spec section 5).
type Tracker struct {
	cfg Config

	frameID int

	tracked []*Track
	lost    []*Track
	removed []*Track

	kf *kalman.Filter

	// idCounter is the instance-local track_id counter. It is scoped per
	// Tracker (not a process-wide class counter as in the reference
	// implementation) so that concurrently live trackers never collide
	// (spec section 5 / design note on the shared mutable class counter).
	idCounter int
}

// NewTracker validates cfg and constructs a Tracker with an empty active
// set and a fresh identity counter.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		cfg: cfg,
		kf:  kalman.NewFilter(),
	}, nil
}

// Reset clears the tracker's active/lost/removed sets and its identity
// counter in place, as if freshly constructed with the same Config.
func (tr *Tracker) Reset() {
	tr.frameID = 0
	tr.tracked = nil
	tr.lost = nil
	tr.removed = nil
	tr.idCounter = 0
}

func (tr *Tracker) nextID() int {
	tr.idCounter++
	return tr.idCounter
}

// Introspect returns read-only snapshots of the tracked/lost/removed lists,
// for property tests that need to check list membership directly (spec
// section 8, "introspection hook in tests"). The returned slices are copies
// of the list, not of the Track objects themselves.
func (tr *Tracker) Introspect() (tracked, lost, removed []*Track) {
	tracked = append([]*Track(nil), tr.tracked...)
	lost = append([]*Track(nil), tr.lost...)
	removed = append([]*Track(nil), tr.removed...)
	return
}

// FrameID returns the tracker's current frame counter.
func (tr *Tracker) FrameID() int { return tr.frameID }

// Update runs one frame of the ByteTrack cascade (spec 4.5 steps 1-13) and
// returns the ordered list of currently activated tracks. Structural errors
// (bad detection shape, non-finite input) are surfaced without mutating
// tracker state; per-track Kalman failures are recovered locally.
func (tr *Tracker) Update(outputResults [][]float64, imgInfo, imgSize [2]float64) ([]*Track, error) {
	dets, err := decodeDetections(outputResults, imgInfo, imgSize)
	if err != nil {
		return nil, err
	}

	tr.frameID++

	high, low := splitByConfidence(dets, tr.cfg.TrackThresh)

	unconfirmed, confirmed := splitByActivation(tr.tracked)

	pool := unionByID(confirmed, tr.lost)
	MultiPredict(tr.kf, pool)

	// Step 6: first association (high-confidence).
	highCost := costMatrix(tlbrOf(pool), boxesOf(high))
	matches1, unmatchedPool1, unmatchedHigh1 := assign(highCost, len(high), tr.cfg.MatchThresh)

	refound := make([]*Track, 0)
	for _, m := range matches1 {
		track := pool[m.Row]
		wasTracked := track.State() == StateTracked
		if applyMatch(track, high[m.Col], tr.frameID) == nil && !wasTracked {
			refound = append(refound, track)
		}
	}

	// Step 7: second association (low-confidence rescue).
	rescueCandidates := make([]*Track, 0, len(unmatchedPool1))
	for _, i := range unmatchedPool1 {
		if pool[i].State() == StateTracked {
			rescueCandidates = append(rescueCandidates, pool[i])
		}
	}
	lowCost := costMatrix(tlbrOf(rescueCandidates), boxesOf(low))
	matches2, unmatchedRescue, _ := assign(lowCost, len(low), secondStageThresh)

	for _, m := range matches2 {
		track := rescueCandidates[m.Row]
		applyMatch(track, low[m.Col], tr.frameID)
	}
	for _, i := range unmatchedRescue {
		rescueCandidates[i].MarkLost()
	}

	// Step 8: unconfirmed association against detections still unmatched from step 6.
	remainingHigh := make([]detection, 0, len(unmatchedHigh1))
	for _, j := range unmatchedHigh1 {
		remainingHigh = append(remainingHigh, high[j])
	}

	unconfirmedCost := costMatrix(tlbrOf(unconfirmed), boxesOf(remainingHigh))
	matches3, _, unmatchedRemainingHigh := assign(unconfirmedCost, len(remainingHigh), unconfirmedStageThresh)

	for _, m := range matches3 {
		track := unconfirmed[m.Row]
		track.Update(detTrack(remainingHigh[m.Col]), tr.frameID)
	}
	for i, track := range unconfirmed {
		if !matchedInRow(matches3, i) {
			track.MarkRemoved()
		}
	}

	// Step 9: spawn new tracks for detections still unmatched, above det_thresh.
	activated := make([]*Track, 0)
	for _, j := range unmatchedRemainingHigh {
		det := remainingHigh[j]
		if det.score >= tr.cfg.detThresh() {
			track := NewTrack(det.box.ToRectangle(), det.score)
			track.Activate(tr.kf, tr.frameID, tr.nextID())
			activated = append(activated, track)
		}
	}

	// Step 10: expire lost tracks past retention.
	maxLost := tr.cfg.maxTimeLost()
	newlyRemoved := make([]*Track, 0)
	for _, track := range unconfirmed {
		if track.State() == StateRemoved {
			newlyRemoved = append(newlyRemoved, track)
		}
	}
	for _, track := range tr.lost {
		if tr.frameID-track.FrameID() > maxLost {
			track.MarkRemoved()
			newlyRemoved = append(newlyRemoved, track)
		}
	}

	// Step 11: merge lists.
	stillTracked := make([]*Track, 0, len(tr.tracked))
	for _, t := range tr.tracked {
		if t.State() == StateTracked {
			stillTracked = append(stillTracked, t)
		}
	}
	newTracked := unionByID(stillTracked, unionByID(activated, refound))

	newlyLost := make([]*Track, 0, len(rescueCandidates))
	for _, i := range unmatchedRescue {
		newlyLost = append(newlyLost, rescueCandidates[i])
	}

	newLost := differenceByID(tr.lost, newTracked)
	newLost = unionByID(newLost, newlyLost)
	newLost = differenceByID(newLost, newlyRemoved)

	newRemoved := unionByID(tr.removed, newlyRemoved)

	// Step 12: de-duplicate tracked vs lost by IoU.
	newTracked, newLost = deduplicate(newTracked, newLost, tr.frameID)

	tr.tracked = newTracked
	tr.lost = newLost
	tr.removed = newRemoved

	// Step 13: emit activated tracks, preserving tracked-list order.
	out := make([]*Track, 0, len(tr.tracked))
	for _, t := range tr.tracked {
		if t.IsActivated() {
			out = append(out, t)
		}
	}
	return out, nil
}

// applyMatch applies a first/second-stage match: Update if the track is
// currently Tracked, ReActivate (without a new id) otherwise. Returns the
// error from the underlying Kalman correction, if any; on error the track
// is left in its previous state (spec section 7).
func applyMatch(track *Track, det detection, frameID int) error {
	matched := detTrack(det)
	if track.State() == StateTracked {
		return track.Update(matched, frameID)
	}
	return track.ReActivate(matched, frameID, false, 0)
}

// detTrack wraps a raw detection as an ephemeral *Track so it can be passed
// to Track.Update/ReActivate, which read a matched detection's box and
// score through the same Track accessors used for persistent tracks.
func detTrack(d detection) *Track {
	return NewTrack(d.box.ToRectangle(), d.score)
}

func splitByConfidence(dets []detection, trackThresh float64) (high, low []detection) {
	for _, d := range dets {
		switch {
		case d.score > trackThresh:
			high = append(high, d)
		case d.score > lowConfFloor && d.score <= trackThresh:
			low = append(low, d)
		}
	}
	return
}

func splitByActivation(tracked []*Track) (unconfirmed, confirmed []*Track) {
	for _, t := range tracked {
		if t.IsActivated() {
			confirmed = append(confirmed, t)
		} else {
			unconfirmed = append(unconfirmed, t)
		}
	}
	return
}

func tlbrOf(tracks []*Track) []Box {
	boxes := make([]Box, len(tracks))
	for i, t := range tracks {
		boxes[i] = t.TLBR()
	}
	return boxes
}

func boxesOf(dets []detection) []Box {
	boxes := make([]Box, len(dets))
	for i, d := range dets {
		boxes[i] = d.box
	}
	return boxes
}

// assign wraps Assign, additionally handling the zero-rows case: Assign
// itself cannot report unmatched columns when the cost matrix has no rows
// (there is no row to read a column count from), so when there are no
// candidate rows, every column index is reported unmatched directly.
func assign(cost [][]float64, numCols int, thresh float64) (matches []Match, unmatchedRows, unmatchedCols []int) {
	if len(cost) == 0 {
		if numCols == 0 {
			return nil, nil, nil
		}
		unmatchedCols = make([]int, numCols)
		for j := range unmatchedCols {
			unmatchedCols[j] = j
		}
		return nil, nil, unmatchedCols
	}
	return Assign(cost, thresh)
}

// costMatrix is 1-IoU between two box sets, the cost the assignment kernel
// minimizes (spec 4.1/4.5).
func costMatrix(as, bs []Box) [][]float64 {
	ious := IoUMatrix(as, bs)
	cost := make([][]float64, len(ious))
	for i, row := range ious {
		costRow := make([]float64, len(row))
		for j, v := range row {
			costRow[j] = 1 - v
		}
		cost[i] = costRow
	}
	return cost
}

// matchedInRow reports whether row appears as a Row in matches.
func matchedInRow(matches []Match, row int) bool {
	for _, m := range matches {
		if m.Row == row {
			return true
		}
	}
	return false
}

// unionByID stably merges track lists, keeping the first occurrence of each
// track_id.
func unionByID(lists ...[]*Track) []*Track {
	seen := make(map[int]struct{})
	out := make([]*Track, 0)
	for _, list := range lists {
		for _, t := range list {
			if _, ok := seen[t.ID()]; ok {
				continue
			}
			seen[t.ID()] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// differenceByID returns the elements of a whose track_id is absent from b.
func differenceByID(a, b []*Track) []*Track {
	exclude := make(map[int]struct{}, len(b))
	for _, t := range b {
		exclude[t.ID()] = struct{}{}
	}
	out := make([]*Track, 0, len(a))
	for _, t := range a {
		if _, ok := exclude[t.ID()]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// deduplicate resolves tracked/lost pairs whose IoU exceeds dedupIoUThresh
// by dropping the younger track; ties drop from the lost list (spec 4.5
// step 12).
func deduplicate(tracked, lost []*Track, currentFrameID int) ([]*Track, []*Track) {
	dropTracked := make(map[int]struct{})
	dropLost := make(map[int]struct{})

	for _, a := range tracked {
		for _, b := range lost {
			if IoU(a.TLBR(), b.TLBR()) <= dedupIoUThresh {
				continue
			}
			ageA, ageB := a.Age(currentFrameID), b.Age(currentFrameID)
			if ageA < ageB {
				dropTracked[a.ID()] = struct{}{}
			} else {
				dropLost[b.ID()] = struct{}{}
			}
		}
	}

	outTracked := make([]*Track, 0, len(tracked))
	for _, t := range tracked {
		if _, ok := dropTracked[t.ID()]; !ok {
			outTracked = append(outTracked, t)
		}
	}
	outLost := make([]*Track, 0, len(lost))
	for _, t := range lost {
		if _, ok := dropLost[t.ID()]; !ok {
			outLost = append(outLost, t)
		}
	}
	return outTracked, outLost
}
