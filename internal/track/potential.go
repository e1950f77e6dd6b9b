package track

import "sort"

// potentialTrack is an unconfirmed candidate awaiting enough consistent
// observations before being granted a permanent identity. The handle is
// an arena-local integer from a separate id space, never published.
type potentialTrack struct {
	handle        int
	pos           Point
	det           Detection
	observations  int
	lastSeenFrame int
	firstFrame    int
}

// potentialArena holds potential tracks behind stable integer handles
// with explicit size-bounded eviction: lowest observation count first,
// then oldest last-seen frame.
type potentialArena struct {
	entries    map[int]*potentialTrack
	nextHandle int
	capacity   int
}

func newPotentialArena(capacity int) *potentialArena {
	return &potentialArena{
		entries:    make(map[int]*potentialTrack),
		nextHandle: 1,
		capacity:   capacity,
	}
}

func (a *potentialArena) len() int { return len(a.entries) }

// nearest returns the entry closest to p within maxDist, or nil.
// Distance ties break toward the lower handle so map iteration order
// never leaks into the result.
func (a *potentialArena) nearest(p Point, maxDist float64) *potentialTrack {
	var best *potentialTrack
	bestDist := maxDist
	for _, e := range a.entries {
		d := e.pos.Dist(p)
		if d > bestDist {
			continue
		}
		if best == nil || d < bestDist || e.handle < best.handle {
			best = e
			bestDist = d
		}
	}
	return best
}

// observe updates an existing entry with a fresh detection. At most one
// observation counts per frame: a second detection landing on the same
// entry in one frame would otherwise inflate the promotion count.
func (a *potentialArena) observe(e *potentialTrack, det Detection, frame int) {
	if e.lastSeenFrame == frame {
		return
	}
	e.pos = det.Center().Clamp01()
	e.det = det
	e.observations++
	e.lastSeenFrame = frame
}

// add inserts a new entry if the arena is under capacity. Returns the
// entry, or nil when full.
func (a *potentialArena) add(det Detection, frame int) *potentialTrack {
	if len(a.entries) >= a.capacity {
		return nil
	}
	e := &potentialTrack{
		handle:        a.nextHandle,
		pos:           det.Center().Clamp01(),
		det:           det,
		observations:  1,
		lastSeenFrame: frame,
		firstFrame:    frame,
	}
	a.nextHandle++
	a.entries[e.handle] = e
	return e
}

func (a *potentialArena) remove(handle int) {
	delete(a.entries, handle)
}

// evictStale drops entries unseen for more than maxUnmatched frames.
func (a *potentialArena) evictStale(frame, maxUnmatched int) {
	for h, e := range a.entries {
		if frame-e.lastSeenFrame > maxUnmatched {
			delete(a.entries, h)
		}
	}
}

// enforceCap shrinks the arena to its capacity, evicting entries with
// the fewest observations first and the oldest last-seen frame as the
// tiebreak.
func (a *potentialArena) enforceCap() {
	if len(a.entries) <= a.capacity {
		return
	}
	all := make([]*potentialTrack, 0, len(a.entries))
	for _, e := range a.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].observations != all[j].observations {
			return all[i].observations < all[j].observations
		}
		return all[i].lastSeenFrame < all[j].lastSeenFrame
	})
	for _, e := range all[:len(all)-a.capacity] {
		delete(a.entries, e.handle)
	}
}

// promotable returns entries that reached the observation threshold,
// in ascending handle order for deterministic identity assignment.
func (a *potentialArena) promotable(required int) []*potentialTrack {
	var out []*potentialTrack
	for _, e := range a.entries {
		if e.observations >= required {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

// reset drops all entries and restarts the handle space.
func (a *potentialArena) reset() {
	a.entries = make(map[int]*potentialTrack)
	a.nextHandle = 1
}
