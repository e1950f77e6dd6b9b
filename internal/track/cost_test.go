package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mkTrack(id int, box BBox, score float64) *Track {
	cfg := DefaultTrackerConfig()
	tr := newTrack(id, Detection{Box: box, Score: score}, 1, cfg)
	return tr
}

func TestIoUDistance(t *testing.T) {
	tr := mkTrack(1, BBox{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0.9)
	dets := []Detection{
		{Box: BBox{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
		{Box: BBox{CX: 0.9, CY: 0.9, W: 0.1, H: 0.1}},
		{Box: BBox{CX: 0.5, CY: 0.5, W: 0, H: 0}},
	}
	cost := iouDistance([]*Track{tr}, dets)
	assert.InDelta(t, 0.0, cost[0][0], 1e-9, "identical boxes cost zero")
	assert.InDelta(t, 1.0, cost[0][1], 1e-9, "disjoint boxes cost one")
	assert.InDelta(t, 1.0, cost[0][2], 1e-9, "degenerate box costs one")
}

func TestPositionDistanceClamped(t *testing.T) {
	tr := mkTrack(1, BBox{CX: 0, CY: 0, W: 0.1, H: 0.1}, 0.9)
	dets := []Detection{
		{Box: BBox{CX: 0.1, CY: 0, W: 0.1, H: 0.1}},
	}
	cost := positionDistance([]*Track{tr}, dets)
	assert.InDelta(t, 0.1, cost[0][0], 1e-9)
}

func TestFilterDuplicateTracksDropsLowerScore(t *testing.T) {
	high := mkTrack(1, BBox{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0.9)
	low := mkTrack(2, BBox{CX: 0.51, CY: 0.5, W: 0.2, H: 0.2}, 0.4)
	other := mkTrack(3, BBox{CX: 0.1, CY: 0.1, W: 0.1, H: 0.1}, 0.5)

	out := filterDuplicateTracks([]*Track{low, other, high}, 0.6)

	ids := make([]int, 0, len(out))
	for _, tr := range out {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []int{3, 1}, ids, "survivors keep input order")
	assert.Equal(t, StateRemoved, low.State)
	assert.Equal(t, StateTracked, high.State)
}

func TestFilterDuplicateTracksNoOverlap(t *testing.T) {
	a := mkTrack(1, BBox{CX: 0.2, CY: 0.2, W: 0.1, H: 0.1}, 0.9)
	b := mkTrack(2, BBox{CX: 0.8, CY: 0.8, W: 0.1, H: 0.1}, 0.4)
	out := filterDuplicateTracks([]*Track{a, b}, 0.6)
	assert.Len(t, out, 2)
}

func TestFilterDuplicateTracksSingleton(t *testing.T) {
	a := mkTrack(1, BBox{CX: 0.2, CY: 0.2, W: 0.1, H: 0.1}, 0.9)
	out := filterDuplicateTracks([]*Track{a}, 0.6)
	assert.Equal(t, []*Track{a}, out)
}
