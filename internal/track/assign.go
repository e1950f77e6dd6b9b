package track

import (
	"math"
	"sort"
)

// assignResult is the outcome of a matching pass: matched (row, col)
// index pairs plus the row and column indices left unmatched.
type assignResult struct {
	Matches       [][2]int
	UnmatchedRows []int
	UnmatchedCols []int
}

// candidate is a single (row, col) pair with its cost, used by the
// greedy solver's sorted sweep.
type candidate struct {
	row, col int
	cost     float64
}

// greedyAssignment solves a threshold-bounded bipartite matching with a
// sort-and-accept heuristic rather than an optimal algorithm: all
// (row, col, cost) triples are sorted ascending and the cheapest pair
// under threshold is accepted subject to row/column exclusivity.
//
// If the first pass accepts fewer than one third of min(rows, cols)
// pairs, a relaxed second pass runs over the remaining pairs with the
// threshold scaled by 1.5 and capped at 0.9. This recovers matches in
// crowded frames where the strict threshold starves the assignment.
//
// cols is passed explicitly: an empty cost matrix carries no column
// count, and the caller still needs every column reported unmatched.
func greedyAssignment(cost [][]float64, cols int, threshold float64) assignResult {
	rows := len(cost)
	res := assignResult{}
	if rows == 0 || cols == 0 {
		for i := 0; i < rows; i++ {
			res.UnmatchedRows = append(res.UnmatchedRows, i)
		}
		for j := 0; j < cols; j++ {
			res.UnmatchedCols = append(res.UnmatchedCols, j)
		}
		return res
	}

	cands := make([]candidate, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cands = append(cands, candidate{row: i, col: j, cost: cost[i][j]})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].cost < cands[b].cost })

	rowUsed := make([]bool, rows)
	colUsed := make([]bool, cols)
	matched := 0

	accept := func(limit float64) {
		for _, c := range cands {
			if c.cost >= limit || rowUsed[c.row] || colUsed[c.col] {
				continue
			}
			rowUsed[c.row] = true
			colUsed[c.col] = true
			res.Matches = append(res.Matches, [2]int{c.row, c.col})
			matched++
		}
	}

	accept(threshold)

	// Relaxed fallback pass when the strict pass matched too little.
	minDim := math.Min(float64(rows), float64(cols))
	if float64(matched) < minDim/3.0 {
		relaxed := math.Min(threshold*1.5, 0.9)
		if relaxed > threshold {
			accept(relaxed)
		}
	}

	for i := 0; i < rows; i++ {
		if !rowUsed[i] {
			res.UnmatchedRows = append(res.UnmatchedRows, i)
		}
	}
	for j := 0; j < cols; j++ {
		if !colUsed[j] {
			res.UnmatchedCols = append(res.UnmatchedCols, j)
		}
	}
	return res
}

// exactAssignment wraps HungarianAssign in the same result shape as the
// greedy solver. Pairs whose cost is at or above threshold are forbidden
// before solving, so the threshold semantics match the greedy path.
func exactAssignment(cost [][]float64, cols int, threshold float64) assignResult {
	rows := len(cost)
	res := assignResult{}
	if rows == 0 || cols == 0 {
		for i := 0; i < rows; i++ {
			res.UnmatchedRows = append(res.UnmatchedRows, i)
		}
		for j := 0; j < cols; j++ {
			res.UnmatchedCols = append(res.UnmatchedCols, j)
		}
		return res
	}

	gated := make([][]float64, rows)
	for i := range cost {
		gated[i] = make([]float64, cols)
		for j := range cost[i] {
			if cost[i][j] >= threshold {
				gated[i][j] = assignInf
			} else {
				gated[i][j] = cost[i][j]
			}
		}
	}

	assign := HungarianAssign(gated)
	colUsed := make([]bool, cols)
	for i, col := range assign {
		if col >= 0 {
			res.Matches = append(res.Matches, [2]int{i, col})
			colUsed[col] = true
		} else {
			res.UnmatchedRows = append(res.UnmatchedRows, i)
		}
	}
	for j := 0; j < cols; j++ {
		if !colUsed[j] {
			res.UnmatchedCols = append(res.UnmatchedCols, j)
		}
	}
	return res
}
