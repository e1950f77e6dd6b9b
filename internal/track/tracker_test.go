package track

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPromoteConfig() TrackerConfig {
	cfg := DefaultTrackerConfig()
	cfg.RequiredFramesForTrack = 1
	return cfg
}

func TestTrackerStaticObjectKeepsIdentity(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}

	var tracks []*Track
	for frame := 0; frame < 5; frame++ {
		tracks = tk.Update([]Detection{d})
	}

	require.Len(t, tracks, 1)
	tr := tracks[0]
	assert.Equal(t, 1, tr.ID)
	assert.Equal(t, StateTracked, tr.State)
	assert.Equal(t, 5, tr.TrackletLen)
	assert.InDelta(t, 0.5, tr.Position.X, 0.01)
	assert.InDelta(t, 0.5, tr.Position.Y, 0.01)
	assert.Equal(t, 1, tk.Created())
}

func TestTrackerPromotionRequiresConsecutiveFrames(t *testing.T) {
	cfg := DefaultTrackerConfig() // RequiredFramesForTrack = 3
	tk := NewTracker(cfg)
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}

	assert.Empty(t, tk.Update([]Detection{d}), "one observation is not enough")
	assert.Empty(t, tk.Update([]Detection{d}))
	tracks := tk.Update([]Detection{d})
	require.Len(t, tracks, 1, "third observation promotes")
	assert.Equal(t, 1, tracks[0].ID)
}

func TestTrackerLowScoreDetectionNeverPromotes(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.2}
	for frame := 0; frame < 10; frame++ {
		assert.Empty(t, tk.Update([]Detection{d}))
	}
	_, _, potential := tk.Counts()
	assert.Zero(t, potential, "sub-threshold scores never enter the buffer")
}

func TestTrackerUniqueMonotonicIDs(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	dets := []Detection{
		{Box: BBox{CX: 0.1, CY: 0.1, W: 0.05, H: 0.05}, Score: 0.9},
		{Box: BBox{CX: 0.9, CY: 0.9, W: 0.05, H: 0.05}, Score: 0.9},
	}
	tracks := tk.Update(dets)
	require.Len(t, tracks, 2)

	seen := map[int]bool{}
	for _, tr := range tracks {
		assert.False(t, seen[tr.ID], "duplicate id %d", tr.ID)
		seen[tr.ID] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])

	// A later arrival gets the next id, even after the early tracks die.
	for frame := 0; frame < 40; frame++ {
		tk.Update(nil)
	}
	late := tk.Update([]Detection{{Box: BBox{CX: 0.5, CY: 0.2, W: 0.05, H: 0.05}, Score: 0.9}})
	require.Len(t, late, 1)
	assert.Equal(t, 3, late[0].ID)
}

func TestTrackerEmptyFrameBurnsTTL(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.TrackTTL = 3
	tk := NewTracker(cfg)
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	tk.Update([]Detection{d})

	// TTL 3 survives two empty frames, demotes on the third.
	assert.Len(t, tk.Update(nil), 1)
	assert.Len(t, tk.Update(nil), 1)
	assert.Empty(t, tk.Update(nil))

	active, lost, _ := tk.Counts()
	assert.Zero(t, active)
	assert.Equal(t, 1, lost)
}

func TestTrackerLostRemovedAfterMaxTimeLost(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.TrackTTL = 1
	cfg.MaxTimeLost = 5
	tk := NewTracker(cfg)
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	tk.Update([]Detection{d}) // frame 1, EndFrame 1

	for frame := 2; frame <= 5; frame++ {
		tk.Update(nil)
		_, lost, _ := tk.Counts()
		assert.Equal(t, 1, lost, "frame %d: lost track still waiting", frame)
	}
	tk.Update(nil) // frame 6: 6 - 1 >= 5
	_, lost, _ := tk.Counts()
	assert.Zero(t, lost, "lost track removed after max time lost")
}

func TestTrackerReactivatesLostTrack(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.TrackTTL = 1
	tk := NewTracker(cfg)
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	tk.Update([]Detection{d})
	tk.Update(nil) // TTL exhausted, demoted to lost

	_, lost, _ := tk.Counts()
	require.Equal(t, 1, lost)

	tracks := tk.Update([]Detection{d})
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].ID, "same identity after reactivation")
	assert.Equal(t, StateTracked, tracks[0].State)
	assert.Equal(t, 1, tracks[0].TrackletLen)
	assert.Equal(t, 1, tk.Created(), "no new track was created")
}

func TestTrackerSeparateObjectsKeepSeparateIDs(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	a := Detection{Box: BBox{CX: 0.2, CY: 0.3, W: 0.08, H: 0.08}, Score: 0.9}
	b := Detection{Box: BBox{CX: 0.8, CY: 0.7, W: 0.08, H: 0.08}, Score: 0.85}

	idOf := map[string]int{}
	for frame := 0; frame < 10; frame++ {
		tracks := tk.Update([]Detection{a, b})
		require.Len(t, tracks, 2)
		for _, tr := range tracks {
			key := fmt.Sprintf("%.1f", tr.Position.X)
			if prev, ok := idOf[key]; ok {
				assert.Equal(t, prev, tr.ID, "identity swapped at frame %d", frame)
			} else {
				idOf[key] = tr.ID
			}
		}
	}
	assert.Equal(t, 2, tk.Created())
}

func TestTrackerNoDetectionsIsNoOp(t *testing.T) {
	tk := NewTracker(DefaultTrackerConfig())
	for frame := 0; frame < 10; frame++ {
		assert.Empty(t, tk.Update(nil))
	}
	active, lost, potential := tk.Counts()
	assert.Zero(t, active+lost+potential)
	assert.Equal(t, 10, tk.Frame())
}

func TestTrackerCameraMotionEstimate(t *testing.T) {
	cfg := fastPromoteConfig()
	tk := NewTracker(cfg)

	tk.Update([]Detection{{Box: BBox{CX: 0.4, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}})
	assert.Equal(t, Point{}, tk.CameraMotion(), "first frame has no prior centers")

	// Everything shifts +0.05 in x: smoothed motion is 0.7 * 0.05.
	tk.Update([]Detection{{Box: BBox{CX: 0.45, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}})
	m := tk.CameraMotion()
	assert.InDelta(t, 0.035, m.X, 1e-9)
	assert.InDelta(t, 0.0, m.Y, 1e-9)

	// No detections: the estimate decays toward zero.
	tk.Update(nil)
	decayed := tk.CameraMotion()
	assert.InDelta(t, 0.035*0.8, decayed.X, 1e-9)
}

func TestTrackerMotionBeyondRadiusIgnored(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.MotionMatchRadius = 0.2
	tk := NewTracker(cfg)
	tk.Update([]Detection{{Box: BBox{CX: 0.1, CY: 0.1, W: 0.05, H: 0.05}, Score: 0.9}})
	tk.Update([]Detection{{Box: BBox{CX: 0.9, CY: 0.9, W: 0.05, H: 0.05}, Score: 0.9}})
	assert.Equal(t, Point{}, tk.CameraMotion(), "far jumps are not camera motion")
}

func TestTrackerActiveCapEnforced(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.MaxActiveTracks = 3
	cfg.MaxPotentialTracks = 20
	cfg.MaxMatchingDistance = 0.05
	tk := NewTracker(cfg)

	dets := make([]Detection, 8)
	for i := range dets {
		dets[i] = Detection{
			Box:   BBox{CX: 0.1 + 0.1*float64(i), CY: 0.5, W: 0.04, H: 0.04},
			Score: 0.5 + 0.05*float64(i),
		}
	}
	tk.Update(dets)
	tk.Update(dets)

	active, _, _ := tk.Counts()
	assert.Equal(t, 3, active)
	for _, tr := range tk.Snapshot() {
		assert.GreaterOrEqual(t, tr.Score, 0.75, "cap keeps the highest-score tracks")
	}
}

func TestTrackerPotentialCapEnforced(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.MaxPotentialTracks = 4
	cfg.MaxMatchingDistance = 0.01
	tk := NewTracker(cfg)

	dets := make([]Detection, 10)
	for i := range dets {
		dets[i] = Detection{
			Box:   BBox{CX: 0.05 + 0.09*float64(i), CY: 0.5, W: 0.04, H: 0.04},
			Score: 0.9,
		}
	}
	tk.Update(dets)
	_, _, potential := tk.Counts()
	assert.LessOrEqual(t, potential, 4)
}

func TestTrackerIDResetInterval(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.IDResetInterval = 3
	tk := NewTracker(cfg)

	first := tk.Update([]Detection{{Box: BBox{CX: 0.1, CY: 0.1, W: 0.05, H: 0.05}, Score: 0.9}})
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].ID)

	// Let the first track die, then cross the reset boundary.
	for frame := 0; frame < 40; frame++ {
		tk.Update(nil)
	}
	later := tk.Update([]Detection{{Box: BBox{CX: 0.9, CY: 0.9, W: 0.05, H: 0.05}, Score: 0.9}})
	require.Len(t, later, 1)
	assert.Equal(t, 1, later[0].ID, "generator restarted at the interval boundary")
}

func TestTrackerExactSolverMatches(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.UseExactSolver = true
	tk := NewTracker(cfg)
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}

	var tracks []*Track
	for frame := 0; frame < 5; frame++ {
		tracks = tk.Update([]Detection{d})
	}
	require.Len(t, tracks, 1)
	assert.Equal(t, 5, tracks[0].TrackletLen)
}

func TestTrackerReset(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	tk.Update([]Detection{d})
	tk.Reset()

	assert.Zero(t, tk.Frame())
	assert.Zero(t, tk.Created())
	active, lost, potential := tk.Counts()
	assert.Zero(t, active+lost+potential)

	tracks := tk.Update([]Detection{d})
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].ID, "identity space restarts")
}

func TestTrackerSnapshotIsDetached(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	tk.Update([]Detection{d})

	snap := tk.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Position = Point{X: 0, Y: 0}
	if len(snap[0].History) > 0 {
		snap[0].History[0] = Point{X: 0, Y: 0}
	}

	tracks := tk.Update([]Detection{d})
	require.Len(t, tracks, 1)
	assert.InDelta(t, 0.5, tracks[0].Position.X, 0.01, "mutating the snapshot does not touch live tracks")
	assert.NotEqual(t, Point{}, tracks[0].History[0])
}

func TestTrackerFirstFrameSeedsTracks(t *testing.T) {
	// A fresh tracker has no active tracks, so the stage-1 cost matrix
	// has zero rows. Every detection must still come through unmatched
	// and reach the potential buffer; with a one-frame requirement they
	// activate immediately.
	tk := NewTracker(fastPromoteConfig())
	dets := []Detection{
		{Box: BBox{CX: 0.3, CY: 0.3, W: 0.1, H: 0.1}, Score: 0.9},
		{Box: BBox{CX: 0.7, CY: 0.7, W: 0.1, H: 0.1}, Score: 0.9},
	}
	tracks := tk.Update(dets)
	require.Len(t, tracks, 2)
	assert.ElementsMatch(t, []int{1, 2}, []int{tracks[0].ID, tracks[1].ID})
}

func TestTrackerHistoryBiasFavorsKnownPair(t *testing.T) {
	tk := NewTracker(fastPromoteConfig())
	known := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, Score: 0.9}
	for frame := 0; frame < 3; frame++ {
		require.Len(t, tk.Update([]Detection{known}), 1)
	}

	// Two detections at equal cost from the track. The left one sorts
	// first on ties, but the right one sits in the track's remembered
	// match cell, so the bias tips the assignment its way. Low scores
	// keep the loser out of the potential buffer.
	left := Detection{Box: BBox{CX: 0.48, CY: 0.5, W: 0.2, H: 0.2}, Score: 0.3}
	right := Detection{Box: BBox{CX: 0.52, CY: 0.5, W: 0.2, H: 0.2}, Score: 0.3}
	tracks := tk.Update([]Detection{left, right})
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].ID)
	assert.InDelta(t, 0.52, tracks[0].Box.CX, 1e-9)
}

func TestBiasAlignmentReducesCost(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.FlowDirection = Point{X: 0, Y: 1}
	tk := NewTracker(cfg)

	tr := mkTrack(1, BBox{CX: 0.5, CY: 0.4, W: 0.1, H: 0.1}, 0.9)
	// Detection displaced straight along the counting flow.
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}

	base := 0.12
	biased := tk.biasAlignment(base, tr, d)
	assert.InDelta(t, base-cfg.FlowAlignmentBonus, biased, 1e-9,
		"perfectly flow-aligned displacement earns the full bonus")

	// Displacement against the flow earns nothing.
	against := Detection{Box: BBox{CX: 0.5, CY: 0.3, W: 0.1, H: 0.1}, Score: 0.9}
	assert.InDelta(t, base, tk.biasAlignment(base, tr, against), 1e-9)
}

func TestBiasAlignmentNeverNegative(t *testing.T) {
	cfg := fastPromoteConfig()
	cfg.FlowAlignmentBonus = 1.0
	tk := NewTracker(cfg)
	tr := mkTrack(1, BBox{CX: 0.5, CY: 0.4, W: 0.1, H: 0.1}, 0.9)
	d := Detection{Box: BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	assert.GreaterOrEqual(t, tk.biasAlignment(0.05, tr, d), 0.0)
}
