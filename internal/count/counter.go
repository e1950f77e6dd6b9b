package count

import (
	"sync"

	"github.com/crosstrack/crosstrack/internal/config"
	"github.com/crosstrack/crosstrack/internal/track"
)

// Direction selects the counting axis and its forward sense.
type Direction int

const (
	TopToBottom Direction = iota
	BottomToTop
	LeftToRight
	RightToLeft
)

func (d Direction) String() string {
	switch d {
	case TopToBottom:
		return config.DirectionTopToBottom
	case BottomToTop:
		return config.DirectionBottomToTop
	case LeftToRight:
		return config.DirectionLeftToRight
	case RightToLeft:
		return config.DirectionRightToLeft
	}
	return "unknown"
}

// DirectionFromLabel parses a tuning-file direction label, defaulting
// to TopToBottom for unknown input.
func DirectionFromLabel(label string) Direction {
	switch label {
	case config.DirectionBottomToTop:
		return BottomToTop
	case config.DirectionLeftToRight:
		return LeftToRight
	case config.DirectionRightToLeft:
		return RightToLeft
	default:
		return TopToBottom
	}
}

// Config holds the counter's tunable parameters. The buffer zone,
// intervals, and tracklet floor are empirically tuned constants, not
// derived values.
type Config struct {
	// Thresholds are the ordered boundary coordinates along the forward
	// axis, in the same normalized space as track positions.
	Thresholds []float64
	Direction  Direction

	// BufferZone is the hysteresis band below the first threshold: a
	// counted track must retreat past it before the count is reversed.
	BufferZone float64

	// HistoryCheckInterval is how often (in frames) the counter re-checks
	// recent history for tracks that skipped across a boundary between
	// frames.
	HistoryCheckInterval int

	// SweepInterval is how often (in frames) the catch-up sweep runs,
	// force-counting long-lived tracks past the first threshold that
	// never triggered a crossing event.
	SweepInterval int

	// MinTrackletForSweep is the tracklet length a track must reach
	// before the sweep will force-count it.
	MinTrackletForSweep int

	// HistoryLength bounds the per-track coordinate history window.
	HistoryLength int
}

// DefaultConfig returns the documented default counter parameters.
func DefaultConfig() Config {
	return Config{
		Thresholds:           []float64{0.5},
		Direction:            TopToBottom,
		BufferZone:           0.02,
		HistoryCheckInterval: 5,
		SweepInterval:        30,
		MinTrackletForSweep:  90,
		HistoryLength:        10,
	}
}

// ConfigFromTuning builds a counter Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Thresholds:           cfg.GetCountThresholds(),
		Direction:            DirectionFromLabel(cfg.GetCountDirection()),
		BufferZone:           cfg.GetCountBufferZone(),
		HistoryCheckInterval: cfg.GetHistoryCheckInterval(),
		SweepInterval:        cfg.GetSweepInterval(),
		MinTrackletForSweep:  cfg.GetMinTrackletForSweep(),
		HistoryLength:        cfg.GetCountHistoryLength(),
	}
}

// Event records a single count change.
type Event struct {
	Frame          int
	TrackID        int
	ThresholdIndex int
	Delta          int // +1 forward crossing, -1 reverse crossing
}

// trackState is the counter's private per-track memory.
type trackState struct {
	prev      float64
	history   []float64
	counted   bool
	lastFrame int
}

// Counter consumes the tracker's output list and maintains a running
// line-crossing total. It keeps its own per-track state and never
// mutates tracker internals beyond the Counted marker.
type Counter struct {
	mu     sync.RWMutex
	cfg    Config
	frame  int
	total  int
	states map[int]*trackState
}

// NewCounter creates a counter with the given configuration.
func NewCounter(cfg Config) *Counter {
	return &Counter{
		cfg:    cfg,
		states: make(map[int]*trackState),
	}
}

// Total returns the current count.
func (c *Counter) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Frame returns the number of frames observed.
func (c *Counter) Frame() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Reset clears all counting state for a fresh session.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = 0
	c.total = 0
	c.states = make(map[int]*trackState)
}

// forward maps a position onto the forward axis so that "forward" is
// always increasing. Y grows downward in normalized image coordinates,
// so top-to-bottom is the identity on Y.
func (c *Counter) forward(p track.Point) float64 {
	switch c.cfg.Direction {
	case BottomToTop:
		return 1 - p.Y
	case LeftToRight:
		return p.X
	case RightToLeft:
		return 1 - p.X
	default:
		return p.Y
	}
}

// threshold maps a configured raw-axis threshold onto the forward axis.
func (c *Counter) threshold(i int) float64 {
	t := c.cfg.Thresholds[i]
	switch c.cfg.Direction {
	case BottomToTop, RightToLeft:
		return 1 - t
	default:
		return t
	}
}

// Observe processes one frame of active tracks and returns the count
// events, if any, produced this frame.
func (c *Counter) Observe(tracks []*track.Track) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame++
	var events []Event

	for _, tr := range tracks {
		cur := c.forward(tr.Position)
		st, ok := c.states[tr.ID]
		if !ok {
			st = &trackState{prev: cur, counted: tr.Counted}
			c.states[tr.ID] = st
		}
		st.lastFrame = c.frame

		if ev, ok := c.checkCrossing(tr, st, cur); ok {
			events = append(events, ev)
		}

		// Fallback: an object moving fast enough can skip a boundary
		// entirely between two observations. Every few frames, compare
		// against the lowest recent history position instead of only
		// the immediately previous one.
		if !st.counted && c.cfg.HistoryCheckInterval > 0 && c.frame%c.cfg.HistoryCheckInterval == 0 {
			if ev, ok := c.checkHistory(tr, st, cur); ok {
				events = append(events, ev)
			}
		}

		st.prev = cur
		st.history = append(st.history, cur)
		if c.cfg.HistoryLength > 0 && len(st.history) > c.cfg.HistoryLength {
			st.history = st.history[len(st.history)-c.cfg.HistoryLength:]
		}
	}

	// Catch-up sweep: long-lived tracks sitting past the first
	// threshold that never produced a crossing event get counted.
	if c.cfg.SweepInterval > 0 && c.frame%c.cfg.SweepInterval == 0 {
		events = append(events, c.sweep(tracks)...)
	}

	c.prune()
	return events
}

// checkCrossing applies the per-frame threshold comparison: a forward
// crossing of any threshold counts once; a reverse crossing of the
// first threshold (past the buffer zone) uncounts.
func (c *Counter) checkCrossing(tr *track.Track, st *trackState, cur float64) (Event, bool) {
	if !st.counted {
		for i := range c.cfg.Thresholds {
			th := c.threshold(i)
			if st.prev < th && cur >= th {
				st.counted = true
				tr.Counted = true
				c.total++
				return Event{Frame: c.frame, TrackID: tr.ID, ThresholdIndex: i, Delta: 1}, true
			}
		}
		return Event{}, false
	}

	// Only the first threshold reverses, and only past the buffer zone,
	// so a track oscillating on the line is not double-counted.
	first := c.threshold(0)
	if st.prev >= first-c.cfg.BufferZone && cur < first-c.cfg.BufferZone {
		st.counted = false
		tr.Counted = false
		c.total--
		return Event{Frame: c.frame, TrackID: tr.ID, ThresholdIndex: 0, Delta: -1}, true
	}
	return Event{}, false
}

// checkHistory counts a track whose recent history shows it was below a
// threshold it has since passed.
func (c *Counter) checkHistory(tr *track.Track, st *trackState, cur float64) (Event, bool) {
	if len(st.history) == 0 {
		return Event{}, false
	}
	low := st.history[0]
	for _, h := range st.history[1:] {
		if h < low {
			low = h
		}
	}
	for i := range c.cfg.Thresholds {
		th := c.threshold(i)
		if low < th && cur >= th {
			st.counted = true
			tr.Counted = true
			c.total++
			return Event{Frame: c.frame, TrackID: tr.ID, ThresholdIndex: i, Delta: 1}, true
		}
	}
	return Event{}, false
}

// sweep force-counts long-lived uncounted tracks beyond the first
// threshold. Some objects enter the scene already past a boundary and
// never produce a crossing event.
func (c *Counter) sweep(tracks []*track.Track) []Event {
	var events []Event
	first := c.threshold(0)
	for _, tr := range tracks {
		st := c.states[tr.ID]
		if st == nil || st.counted {
			continue
		}
		if tr.TrackletLen < c.cfg.MinTrackletForSweep {
			continue
		}
		if c.forward(tr.Position) >= first {
			st.counted = true
			tr.Counted = true
			c.total++
			events = append(events, Event{Frame: c.frame, TrackID: tr.ID, ThresholdIndex: 0, Delta: 1})
		}
	}
	return events
}

// prune drops state for tracks not seen recently. The window is
// generous so a lost-and-reactivated track keeps its counted flag.
func (c *Counter) prune() {
	const staleFrames = 120
	for id, st := range c.states {
		if c.frame-st.lastFrame > staleFrames {
			delete(c.states, id)
		}
	}
}
