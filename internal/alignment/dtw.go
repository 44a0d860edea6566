package alignment

import (
	"math"
	"sort"
)

// defaultStepWeights weights the (1,0), (0,1), and (1,1) DTW steps. The
// diagonal is cheaper than two single steps, which keeps the path from
// stair-casing through silent passages.
var defaultStepWeights = [3]float64{1.5, 1.5, 2.0}

// pathPoint is one cell of the warping path: frame indices into the first
// (audio) and second (score) sequences.
type pathPoint struct {
	a, b int
}

// cosineDist is 1 - cosine similarity between two L2-normalized chroma
// frames. Zero frames are maximally distant from everything but each
// other.
func cosineDist(x, y []float64) float64 {
	var dot, nx, ny float64
	for i := range x {
		dot += x[i] * y[i]
		nx += x[i] * x[i]
		ny += y[i] * y[i]
	}
	if nx == 0 && ny == 0 {
		return 0
	}
	if nx == 0 || ny == 0 {
		return 1
	}
	return 1 - dot/math.Sqrt(nx*ny)
}

// bandFor returns the Sakoe-Chiba half-width for sequences of lengths n
// and m: at least the requested radius, always wide enough to cover the
// length difference.
func bandFor(n, m, radius int) int {
	diff := n - m
	if diff < 0 {
		diff = -diff
	}
	if radius < diff+1 {
		radius = diff + 1
	}
	return radius
}

// dtwAccumulate fills the banded accumulated-cost matrix. Cells outside
// the band stay +Inf. Rows are indexed by the first sequence.
func dtwAccumulate(a, b [][]float64, weights [3]float64, radius int) [][]float64 {
	n, m := len(a), len(b)
	band := bandFor(n, m, radius)

	D := make([][]float64, n)
	for i := range D {
		D[i] = make([]float64, m)
		for j := range D[i] {
			D[i][j] = math.Inf(1)
		}
	}

	center := func(i int) int {
		if n <= 1 {
			return 0
		}
		return i * (m - 1) / (n - 1)
	}

	for i := 0; i < n; i++ {
		c := center(i)
		lo, hi := c-band, c+band
		if lo < 0 {
			lo = 0
		}
		if hi > m-1 {
			hi = m - 1
		}
		for j := lo; j <= hi; j++ {
			cost := cosineDist(a[i], b[j])
			if i == 0 && j == 0 {
				D[i][j] = weights[2] * cost
				continue
			}
			best := math.Inf(1)
			if i > 0 && D[i-1][j] < best {
				best = D[i-1][j] + weights[0]*cost
			}
			if j > 0 && D[i][j-1]+weights[1]*cost < best {
				best = D[i][j-1] + weights[1]*cost
			}
			if i > 0 && j > 0 && D[i-1][j-1]+weights[2]*cost < best {
				best = D[i-1][j-1] + weights[2]*cost
			}
			D[i][j] = best
		}
	}
	return D
}

// dtwCost returns the accumulated cost of the optimal banded path.
func dtwCost(a, b [][]float64, weights [3]float64, radius int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	D := dtwAccumulate(a, b, weights, radius)
	return D[len(a)-1][len(b)-1]
}

// dtwPath computes the optimal warping path from (0,0) to (n-1,m-1) by
// backtracking through the accumulated-cost matrix.
func dtwPath(a, b [][]float64, weights [3]float64, radius int) []pathPoint {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}
	D := dtwAccumulate(a, b, weights, radius)

	path := []pathPoint{{n - 1, m - 1}}
	i, j := n-1, m-1
	for i > 0 || j > 0 {
		bi, bj := i, j
		best := math.Inf(1)
		if i > 0 && j > 0 && D[i-1][j-1] < best {
			best = D[i-1][j-1]
			bi, bj = i-1, j-1
		}
		if i > 0 && D[i-1][j] < best {
			best = D[i-1][j]
			bi, bj = i-1, j
		}
		if j > 0 && D[i][j-1] < best {
			best = D[i][j-1]
			bi, bj = i, j-1
		}
		if math.IsInf(best, 1) {
			// Backtracking fell off the band; clamp toward the origin
			// diagonally.
			bi, bj = i, j
			if bi > 0 {
				bi--
			}
			if bj > 0 {
				bj--
			}
		}
		i, j = bi, bj
		path = append(path, pathPoint{i, j})
	}

	// Reverse into forward order.
	for lo, hi := 0, len(path)-1; lo < hi; lo, hi = lo+1, hi-1 {
		path[lo], path[hi] = path[hi], path[lo]
	}
	return path
}

// strictlyMonotonic drops path points so both coordinates strictly
// increase, keeping the first point of every horizontal or vertical run.
// Linear interpolation through the result is then well defined.
func strictlyMonotonic(path []pathPoint) []pathPoint {
	if len(path) == 0 {
		return path
	}
	out := []pathPoint{path[0]}
	for _, p := range path[1:] {
		last := out[len(out)-1]
		if p.a > last.a && p.b > last.b {
			out = append(out, p)
		}
	}
	return out
}

// warpTime maps a time in the second (score) sequence to a time in the
// first (audio) sequence by linear interpolation over the monotonic path,
// extrapolating beyond its ends.
func warpTime(path []pathPoint, featureRate int, t float64) float64 {
	if len(path) == 0 {
		return t
	}
	rate := float64(featureRate)
	if len(path) == 1 {
		return float64(path[0].a) / rate
	}

	target := t * rate
	idx := sort.Search(len(path), func(i int) bool { return float64(path[i].b) >= target })

	var p0, p1 pathPoint
	switch {
	case idx <= 0:
		p0, p1 = path[0], path[1]
	case idx >= len(path):
		p0, p1 = path[len(path)-2], path[len(path)-1]
	default:
		p0, p1 = path[idx-1], path[idx]
	}
	if p1.b == p0.b {
		return float64(p0.a) / rate
	}
	frac := (target - float64(p0.b)) / float64(p1.b-p0.b)
	return (float64(p0.a) + frac*float64(p1.a-p0.a)) / rate
}
