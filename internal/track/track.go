package track

// TrackState is the lifecycle state of a track.
type TrackState int

const (
	// StateTracked is a confirmed track matched in the current or a
	// recent frame, holding a live TTL.
	StateTracked TrackState = iota
	// StateLost is a confirmed track whose TTL expired; it remains
	// eligible for stage-2 reactivation until max-time-lost passes.
	StateLost
	// StateRemoved is terminal. A removed track never reappears.
	StateRemoved
)

func (s TrackState) String() string {
	switch s {
	case StateTracked:
		return "tracked"
	case StateLost:
		return "lost"
	case StateRemoved:
		return "removed"
	}
	return "unknown"
}

// historyCell is a quantized detection center used as the key of a
// track's bounded match-history set. Detections carry no identity
// across frames, so history is keyed by the 20x20 grid cell the
// matched detection's center fell into.
type historyCell struct {
	cx, cy int
}

const historyGridSize = 20

func cellOf(p Point) historyCell {
	cx := int(p.X * historyGridSize)
	cy := int(p.Y * historyGridSize)
	if cx >= historyGridSize {
		cx = historyGridSize - 1
	}
	if cy >= historyGridSize {
		cy = historyGridSize - 1
	}
	return historyCell{cx: cx, cy: cy}
}

// Track is a single persistent identity: a per-object state machine
// owning its Kalman filter and bounded history buffers. Tracks are
// owned exclusively by the Tracker; the counter may read them and set
// only the Counted marker.
type Track struct {
	// ID is assigned once at activation, monotonically increasing,
	// and never reused within a tracker instance absent explicit reset.
	ID    int
	State TrackState

	// Position is the current normalized position estimate, always
	// clamped to [0, 1].
	Position Point
	// Box and Detection record the last associated observation.
	Box       BBox
	Detection Detection
	Score     float64
	Label     string

	// TrackletLen counts consecutive matched frames since activation
	// (or since the most recent reactivation).
	TrackletLen int
	StartFrame  int
	EndFrame    int

	// TTL counts down permitted consecutive unmatched frames before
	// demotion to lost.
	TTL int

	// Counted is consumed by the line-crossing counter. The tracker
	// itself never writes it after activation.
	Counted bool

	// History is a bounded trail of recent positions.
	History []Point

	kf *KalmanFilter

	matchCells    []historyCell
	matchCellSet  map[historyCell]struct{}
	maxHistoryLen int
	matchHistCap  int
	ttlReset      int
}

// newTrack activates a promoted potential entry into a confirmed track:
// a fresh identity, a Kalman filter seeded from the first detection, and
// a full TTL.
func newTrack(id int, det Detection, frame int, cfg TrackerConfig) *Track {
	tr := &Track{
		ID:            id,
		State:         StateTracked,
		Position:      det.Center().Clamp01(),
		Box:           det.Box,
		Detection:     det,
		Score:         det.Score,
		Label:         det.Label,
		TrackletLen:   1,
		StartFrame:    frame,
		EndFrame:      frame,
		TTL:           cfg.TrackTTL,
		kf:            NewKalmanFilter(det.Center(), cfg.Kalman),
		matchCellSet:  make(map[historyCell]struct{}, cfg.MatchHistorySize),
		maxHistoryLen: cfg.MaxTrackHistoryLength,
		matchHistCap:  cfg.MatchHistorySize,
		ttlReset:      cfg.TrackTTL,
	}
	tr.appendHistory(tr.Position)
	tr.rememberMatch(det)
	return tr
}

// Predict advances the Kalman state one frame and refreshes Position.
func (t *Track) Predict() {
	t.kf.Predict()
	t.Position = t.kf.Position().Clamp01()
}

// compensate subtracts the estimated camera motion from the predicted
// position, clamping to [0, 1].
func (t *Track) compensate(motion Point) {
	p := Point{t.Position.X - motion.X, t.Position.Y - motion.Y}.Clamp01()
	t.Position = p
	t.kf.SetPosition(p)
}

// Update applies a matched detection: Kalman correction, tracklet
// growth, and TTL reset.
func (t *Track) Update(det Detection, frame int) {
	t.kf.Correct(det.Center())
	t.Position = t.kf.Position().Clamp01()
	t.Box = det.Box
	t.Detection = det
	t.Score = det.Score
	t.Label = det.Label
	t.TrackletLen++
	t.EndFrame = frame
	t.TTL = t.ttlReset
	t.State = StateTracked
	t.appendHistory(t.Position)
	t.rememberMatch(det)
}

// Reactivate returns a lost track to the tracked state on a stage-2
// match. The tracklet restarts: the contiguous run was broken.
func (t *Track) Reactivate(det Detection, frame int) {
	t.kf.Correct(det.Center())
	t.Position = t.kf.Position().Clamp01()
	t.Box = det.Box
	t.Detection = det
	t.Score = det.Score
	t.Label = det.Label
	t.TrackletLen = 1
	t.EndFrame = frame
	t.TTL = t.ttlReset
	t.State = StateTracked
	t.appendHistory(t.Position)
	t.rememberMatch(det)
}

// DecreaseTTL burns one unmatched frame. It returns false once the TTL
// is exhausted, at which point the caller demotes the track to lost.
func (t *Track) DecreaseTTL() bool {
	if t.TTL > 0 {
		t.TTL--
	}
	return t.TTL > 0
}

// MarkLost demotes the track to the lost pool.
func (t *Track) MarkLost() {
	if t.State != StateRemoved {
		t.State = StateLost
	}
}

// MarkRemoved transitions to the terminal removed state.
func (t *Track) MarkRemoved() {
	t.State = StateRemoved
}

// Cleanup releases references held by a removed track.
func (t *Track) Cleanup() {
	t.kf = nil
	t.History = nil
	t.matchCells = nil
	t.matchCellSet = nil
	t.Detection = Detection{}
}

// Velocity returns the Kalman velocity estimate, or zero for a
// cleaned-up track.
func (t *Track) Velocity() Point {
	if t.kf == nil {
		return Point{}
	}
	return t.kf.Velocity()
}

// hasMatched reports whether the track previously matched a detection
// in the same quantized cell as det.
func (t *Track) hasMatched(det Detection) bool {
	if t.matchCellSet == nil {
		return false
	}
	_, ok := t.matchCellSet[cellOf(det.Center())]
	return ok
}

// rememberMatch records the matched detection's cell in the bounded
// history set, evicting the oldest entry at capacity.
func (t *Track) rememberMatch(det Detection) {
	if t.matchCellSet == nil || t.matchHistCap <= 0 {
		return
	}
	cell := cellOf(det.Center())
	if _, ok := t.matchCellSet[cell]; ok {
		return
	}
	if len(t.matchCells) >= t.matchHistCap {
		oldest := t.matchCells[0]
		t.matchCells = t.matchCells[1:]
		delete(t.matchCellSet, oldest)
	}
	t.matchCells = append(t.matchCells, cell)
	t.matchCellSet[cell] = struct{}{}
}

func (t *Track) appendHistory(p Point) {
	t.History = append(t.History, p)
	if t.maxHistoryLen > 0 && len(t.History) > t.maxHistoryLen {
		t.History = t.History[len(t.History)-t.maxHistoryLen:]
	}
}
