package track

import (
	"math"
	"sort"
)

// iouDistance builds a cost matrix where cost[i][j] = 1 - IoU between
// track i's predicted box and detection j's box. Missing or degenerate
// geometry yields the maximal cost 1.0.
func iouDistance(tracks []*Track, dets []Detection) [][]float64 {
	cost := make([][]float64, len(tracks))
	for i, tr := range tracks {
		cost[i] = make([]float64, len(dets))
		for j, d := range dets {
			iou := 0.0
			if tr.Box.Valid() && d.Box.Valid() {
				iou = tr.Box.IoU(d.Box)
			}
			cost[i][j] = 1 - iou
		}
	}
	return cost
}

// positionDistance builds a cost matrix of Euclidean distances between
// track positions and detection centers, clamped to [0, 2].
func positionDistance(tracks []*Track, dets []Detection) [][]float64 {
	cost := make([][]float64, len(tracks))
	for i, tr := range tracks {
		cost[i] = make([]float64, len(dets))
		for j, d := range dets {
			dist := tr.Position.Dist(d.Center())
			cost[i][j] = math.Min(dist, 2.0)
		}
	}
	return cost
}

// filterDuplicateTracks removes the lower-score member of any track pair
// whose boxes overlap above iouThreshold. Tracks are processed in
// descending score order so a high-score track always survives its
// duplicates. Dropped tracks are marked removed.
func filterDuplicateTracks(tracks []*Track, iouThreshold float64) []*Track {
	if len(tracks) < 2 {
		return tracks
	}

	ordered := make([]*Track, len(tracks))
	copy(ordered, tracks)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Score > ordered[b].Score
	})

	dropped := make(map[int]bool)
	for i := 0; i < len(ordered); i++ {
		if dropped[ordered[i].ID] {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			if dropped[ordered[j].ID] {
				continue
			}
			if ordered[i].Box.IoU(ordered[j].Box) > iouThreshold {
				dropped[ordered[j].ID] = true
				ordered[j].MarkRemoved()
			}
		}
	}

	out := tracks[:0]
	for _, tr := range tracks {
		if !dropped[tr.ID] {
			out = append(out, tr)
		}
	}
	return out
}
