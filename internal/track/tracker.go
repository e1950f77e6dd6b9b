package track

import (
	"math"
	"sort"
	"sync"
)

// Tracker is the per-frame driver: camera-motion compensation,
// two-stage matching, lifecycle transitions, potential-track promotion,
// de-duplication, and bounded-size housekeeping.
//
// A tracker instance exclusively owns its track collections. Update is
// frame-sequential and must complete before the next frame's detections
// are submitted; callers serialize access. The internal lock exists so
// read-only consumers (status handlers) can snapshot safely while the
// processing goroutine runs.
type Tracker struct {
	mu  sync.RWMutex
	cfg TrackerConfig

	frame  int
	nextID int

	active     []*Track
	lost       []*Track
	potentials *potentialArena

	// Camera-motion estimator state.
	prevCenters []Point
	motion      Point

	created int // tracks ever activated, for diagnostics
}

// NewTracker creates a tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		cfg:        cfg,
		nextID:     1,
		potentials: newPotentialArena(cfg.MaxPotentialTracks),
	}
}

// Config returns a copy of the tracker's configuration.
func (t *Tracker) Config() TrackerConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Reset clears all collections and history and restarts the identity
// generator. Used to begin a fresh counting session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tr := range t.active {
		tr.MarkRemoved()
		tr.Cleanup()
	}
	for _, tr := range t.lost {
		tr.MarkRemoved()
		tr.Cleanup()
	}
	t.active = nil
	t.lost = nil
	t.potentials.reset()
	t.prevCenters = nil
	t.motion = Point{}
	t.frame = 0
	t.nextID = 1
	t.created = 0
}

// Update processes one frame of detections and returns the active track
// list. An empty or nil detection slice degrades to "no detections this
// frame": existing tracks burn TTL and lost-timeouts as usual.
func (t *Tracker) Update(dets []Detection) []*Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Step 1: frame advance and optional identity-generator reset.
	t.frame++
	if t.cfg.IDResetInterval > 0 && t.frame%t.cfg.IDResetInterval == 0 {
		// Opt-in safety valve only: colliding identities are possible if
		// a live track outlasts the reset boundary.
		t.nextID = 1
	}

	// Step 2: enforce caps before processing.
	t.enforceCaps()

	// Step 3: camera-motion estimate from raw detection centers.
	t.estimateMotion(dets)

	// Step 4: predict and motion-compensate active tracks.
	for _, tr := range t.active {
		tr.Predict()
		tr.compensate(t.motion)
	}

	// Step 5: stage 1 — IoU matching of active tracks to detections,
	// biased toward historically matched pairs.
	cost := iouDistance(t.active, dets)
	for i, tr := range t.active {
		for j, d := range dets {
			if tr.hasMatched(d) {
				cost[i][j] = math.Max(cost[i][j]-t.cfg.HistoryBias, t.cfg.HistoryBiasFloor)
			}
		}
	}
	stage1 := t.solve(cost, len(dets), t.cfg.Stage1MatchThreshold)

	var matched []*Track
	for _, m := range stage1.Matches {
		tr := t.active[m[0]]
		tr.Update(dets[m[1]], t.frame)
		matched = append(matched, tr)
	}

	var unmatchedTracks []*Track
	for _, i := range stage1.UnmatchedRows {
		unmatchedTracks = append(unmatchedTracks, t.active[i])
	}
	remaining := make([]Detection, 0, len(stage1.UnmatchedCols))
	for _, j := range stage1.UnmatchedCols {
		remaining = append(remaining, dets[j])
	}

	// Step 6: stage 2 — reactivate lost tracks against the leftovers
	// using position distance with velocity/flow alignment bonuses.
	for _, tr := range t.lost {
		tr.Predict()
		tr.compensate(t.motion)
	}
	cost = positionDistance(t.lost, remaining)
	for i, tr := range t.lost {
		for j, d := range remaining {
			cost[i][j] = t.biasAlignment(cost[i][j], tr, d)
		}
	}
	stage2 := t.solve(cost, len(remaining), t.cfg.Stage2MatchThreshold)

	var reactivated []*Track
	for _, m := range stage2.Matches {
		tr := t.lost[m[0]]
		tr.Reactivate(remaining[m[1]], t.frame)
		reactivated = append(reactivated, tr)
	}
	residual := make([]Detection, 0, len(stage2.UnmatchedCols))
	for _, j := range stage2.UnmatchedCols {
		residual = append(residual, remaining[j])
	}

	// Step 7: lifecycle transitions for the unmatched.
	var survivors []*Track
	for _, tr := range unmatchedTracks {
		if tr.DecreaseTTL() {
			survivors = append(survivors, tr)
			continue
		}
		tr.MarkLost()
		t.lost = append(t.lost, tr)
	}
	var stillLost []*Track
	for _, tr := range t.lost {
		// Reactivated tracks flipped back to tracked above.
		if tr.State != StateLost {
			continue
		}
		if t.frame-tr.EndFrame >= t.cfg.MaxTimeLost {
			tr.MarkRemoved()
			tr.Cleanup()
			continue
		}
		stillLost = append(stillLost, tr)
	}
	t.lost = stillLost

	// Step 8: route residual detections into the potential buffer and
	// promote entries that earned a real identity.
	promoted := t.updatePotentials(residual)

	// Step 9: rebuild the active set, de-duplicate, re-enforce caps.
	next := make([]*Track, 0, len(matched)+len(survivors)+len(reactivated)+len(promoted))
	next = append(next, matched...)
	next = append(next, survivors...)
	next = append(next, reactivated...)
	next = append(next, promoted...)
	t.active = filterDuplicateTracks(next, t.cfg.DedupIoUThreshold)
	t.enforceCaps()

	out := make([]*Track, len(t.active))
	copy(out, t.active)
	return out
}

// solve dispatches to the configured assignment solver.
func (t *Tracker) solve(cost [][]float64, cols int, threshold float64) assignResult {
	if t.cfg.UseExactSolver {
		return exactAssignment(cost, cols, threshold)
	}
	return greedyAssignment(cost, cols, threshold)
}

// biasAlignment reduces a stage-2 cost when the displacement from the
// lost track to the detection points the way the track was moving, with
// a larger bonus when it also follows the configured counting direction.
func (t *Tracker) biasAlignment(c float64, tr *Track, d Detection) float64 {
	disp := d.Center().Sub(tr.Position)
	dispNorm := disp.Norm()
	if dispNorm == 0 {
		return c
	}
	vel := tr.Velocity()
	velNorm := vel.Norm()
	if velNorm > 0 {
		cos := (disp.X*vel.X + disp.Y*vel.Y) / (dispNorm * velNorm)
		if cos > 0 {
			c -= cos * t.cfg.AlignmentBonus
		}
	}
	flow := t.cfg.FlowDirection
	if flowNorm := flow.Norm(); flowNorm > 0 {
		cos := (disp.X*flow.X + disp.Y*flow.Y) / (dispNorm * flowNorm)
		if cos > 0 {
			c -= cos * t.cfg.FlowAlignmentBonus
		}
	}
	if c < 0 {
		c = 0
	}
	return c
}

// estimateMotion updates the camera-motion estimate: nearest-neighbour
// match of current against previous detection centers within the match
// radius, averaged and exponentially smoothed; decayed toward zero when
// no matches exist.
func (t *Tracker) estimateMotion(dets []Detection) {
	centers := make([]Point, len(dets))
	for i, d := range dets {
		centers[i] = d.Center()
	}

	var sum Point
	n := 0
	for _, c := range centers {
		best := -1
		bestDist := t.cfg.MotionMatchRadius
		for i, p := range t.prevCenters {
			if dist := c.Dist(p); dist <= bestDist {
				bestDist = dist
				best = i
			}
		}
		if best >= 0 {
			delta := c.Sub(t.prevCenters[best])
			sum.X += delta.X
			sum.Y += delta.Y
			n++
		}
	}

	if n > 0 {
		avg := Point{sum.X / float64(n), sum.Y / float64(n)}
		a := t.cfg.MotionSmoothing
		t.motion = Point{
			X: a*avg.X + (1-a)*t.motion.X,
			Y: a*avg.Y + (1-a)*t.motion.Y,
		}
	} else {
		t.motion = Point{t.motion.X * t.cfg.MotionDecay, t.motion.Y * t.cfg.MotionDecay}
	}

	t.prevCenters = centers
}

// updatePotentials feeds unmatched detections into the potential arena
// and returns tracks promoted this frame.
func (t *Tracker) updatePotentials(dets []Detection) []*Track {
	// Camera shake widens the matching distance: a moving camera shifts
	// every unconfirmed candidate between frames.
	maxDist := t.cfg.MaxMatchingDistance + t.motion.Norm()

	for _, d := range dets {
		if d.Score < t.cfg.MinPotentialScore {
			continue
		}
		if e := t.potentials.nearest(d.Center(), maxDist); e != nil {
			t.potentials.observe(e, d, t.frame)
			continue
		}
		t.potentials.add(d, t.frame)
	}

	var promoted []*Track
	for _, e := range t.potentials.promotable(t.cfg.RequiredFramesForTrack) {
		tr := newTrack(t.allocID(), e.det, t.frame, t.cfg)
		promoted = append(promoted, tr)
		t.potentials.remove(e.handle)
		t.created++
	}

	t.potentials.evictStale(t.frame, t.cfg.MaxUnmatchedFrames)
	return promoted
}

func (t *Tracker) allocID() int {
	id := t.nextID
	t.nextID++
	return id
}

// enforceCaps shrinks every collection to its configured cap. Active
// eviction drops the lowest-score, least recent tracks; lost eviction
// drops the least recent.
func (t *Tracker) enforceCaps() {
	if t.cfg.MaxActiveTracks > 0 && len(t.active) > t.cfg.MaxActiveTracks {
		sort.SliceStable(t.active, func(a, b int) bool {
			if t.active[a].Score != t.active[b].Score {
				return t.active[a].Score > t.active[b].Score
			}
			return t.active[a].EndFrame > t.active[b].EndFrame
		})
		for _, tr := range t.active[t.cfg.MaxActiveTracks:] {
			tr.MarkRemoved()
			tr.Cleanup()
		}
		t.active = t.active[:t.cfg.MaxActiveTracks]
	}

	if t.cfg.MaxLostTracks > 0 && len(t.lost) > t.cfg.MaxLostTracks {
		sort.SliceStable(t.lost, func(a, b int) bool {
			return t.lost[a].EndFrame > t.lost[b].EndFrame
		})
		for _, tr := range t.lost[t.cfg.MaxLostTracks:] {
			tr.MarkRemoved()
			tr.Cleanup()
		}
		t.lost = t.lost[:t.cfg.MaxLostTracks]
	}

	t.potentials.enforceCap()
}

// Frame returns the current frame counter.
func (t *Tracker) Frame() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

// CameraMotion returns the current camera-motion estimate.
func (t *Tracker) CameraMotion() Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.motion
}

// Counts returns the sizes of the active, lost, and potential
// collections.
func (t *Tracker) Counts() (active, lost, potential int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active), len(t.lost), t.potentials.len()
}

// Created returns the number of tracks activated since the last reset.
func (t *Tracker) Created() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.created
}

// Snapshot returns value copies of the active tracks with deep-copied
// histories, safe for concurrent readers while Update runs.
func (t *Tracker) Snapshot() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Track, 0, len(t.active))
	for _, tr := range t.active {
		copied := *tr
		copied.kf = nil
		copied.matchCells = nil
		copied.matchCellSet = nil
		if len(tr.History) > 0 {
			copied.History = make([]Point, len(tr.History))
			copy(copied.History, tr.History)
		}
		out = append(out, copied)
	}
	return out
}
