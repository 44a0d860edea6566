// Package segmentation treats Hauptstimme annotations as structural
// segmentation points and compares them against automatic audio
// segmentation with precision/recall/F-score under an index tolerance.
package segmentation

import (
	"fmt"
	"math"
	"sort"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/score"
)

// Points returns the Hauptstimme segmentation points for a score: one per
// annotation, located on the expanded timeline through the (measure,
// beat) join, in quarter notes or seconds.
func Points(light *score.LightweightTable, anns []annotations.Annotation, inSeconds bool) ([]float64, error) {
	if len(light.Rows) == 0 {
		return nil, fmt.Errorf("lightweight table is empty")
	}
	var pts []float64
	for _, a := range anns {
		found := false
		for _, row := range light.Rows {
			if row.Measure == a.Measure && math.Abs(row.Beat-a.Beat) < 1e-6 {
				if inSeconds {
					pts = append(pts, row.Tstamp)
				} else {
					pts = append(pts, row.Qstamp)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("annotation at measure %d beat %v has no lightweight row",
				a.Measure, a.Beat)
		}
	}
	sort.Float64s(pts)
	return pts, nil
}

// Vector converts segmentation points to a binary vector with one slot
// per resolution step. The maximum timestamp is rounded up to the nearest
// ten so vectors for the same recording share a length regardless of
// where the last point falls.
func Vector(points []float64, resolution, maxT float64) []int {
	if len(points) == 0 && maxT <= 0 {
		return nil
	}
	if maxT <= 0 {
		maxT = points[len(points)-1]
	}
	maxRounded := math.Ceil(maxT/10) * 10
	n := int(math.Round(maxRounded/resolution)) + 1

	vec := make([]int, n)
	seen := make(map[int]bool)
	for _, pt := range points {
		rounded := math.Round(pt/resolution) * resolution
		if rounded >= maxRounded {
			continue
		}
		idx := int(math.Round(rounded / resolution))
		if idx >= 0 && idx < n && !seen[idx] {
			vec[idx] = 1
			seen[idx] = true
		}
	}
	return vec
}

// Eval labels for Result.Eval.
const (
	EvalNone = 0
	EvalFP   = 1
	EvalFN   = 2
	EvalTP   = 3
)

// Result holds the evaluation of estimated segmentation points against a
// reference.
type Result struct {
	Precision float64
	Recall    float64
	F         float64
	TP        int
	FN        int
	FP        int
	// RefTol marks the reference vector with its tolerance regions: 2
	// at reference points, 1 inside a tolerance window.
	RefTol []int
	// Eval labels each index as EvalTP, EvalFN, EvalFP, or EvalNone.
	Eval []int
}

// Evaluate compares two binary segmentation vectors. An estimated point
// within tau indices of a reference point counts as a true positive.
func Evaluate(ref, est []int, tau int) (*Result, error) {
	if len(ref) != len(est) {
		return nil, fmt.Errorf("segmentation vectors differ in length: %d vs %d", len(ref), len(est))
	}
	n := len(ref)
	res := &Result{
		RefTol: make([]int, n),
		Eval:   make([]int, n),
	}

	for i := 0; i < n; i++ {
		lo := i - tau
		if lo < 0 {
			lo = 0
		}
		hi := i + tau
		if hi > n-1 {
			hi = n - 1
		}

		if ref[i] == 1 {
			for j := lo; j <= hi; j++ {
				if res.RefTol[j] == 0 {
					res.RefTol[j] = 1
				}
			}
			matches := 0
			for j := lo; j <= hi; j++ {
				matches += est[j]
			}
			if matches > 0 {
				res.TP += matches
			} else {
				res.FN++
				res.Eval[i] = EvalFN
			}
		}

		if est[i] == 1 {
			refs := 0
			for j := lo; j <= hi; j++ {
				refs += ref[j]
			}
			if refs == 0 {
				res.FP++
				res.Eval[i] = EvalFP
			} else {
				res.Eval[i] = EvalTP
			}
		}
	}
	// Tolerance regions never cover up the points themselves.
	for i := 0; i < n; i++ {
		if ref[i] == 1 {
			res.RefTol[i] = 2
		}
	}

	if res.TP+res.FP > 0 {
		res.Precision = float64(res.TP) / float64(res.TP+res.FP)
	}
	if res.TP+res.FN > 0 {
		res.Recall = float64(res.TP) / float64(res.TP+res.FN)
	}
	if res.Precision+res.Recall > 0 {
		res.F = 2 * res.Precision * res.Recall / (res.Precision + res.Recall)
	}
	return res, nil
}

// LabelTimeline spreads labelled timestamps over a regular grid: each
// slot carries the label in force at that time, with empty slots before
// the first label.
func LabelTimeline(times []float64, labels []string, resolution, maxT float64) ([]string, error) {
	if len(times) != len(labels) {
		return nil, fmt.Errorf("timestamps and labels differ in length: %d vs %d", len(times), len(labels))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("no labelled timestamps")
	}
	if maxT <= 0 {
		maxT = times[len(times)-1]
	}
	maxRounded := math.Ceil(maxT/10) * 10
	n := int(math.Round(maxRounded/resolution)) + 1

	timeline := make([]string, n)
	for i := range times {
		start := int(math.Round(times[i] / resolution))
		end := n
		if i+1 < len(times) {
			end = int(math.Round(times[i+1] / resolution))
		}
		for j := start; j < end && j < n; j++ {
			if j >= 0 {
				timeline[j] = labels[i]
			}
		}
		if i+1 == len(times) {
			for j := start; j < n; j++ {
				if j >= 0 {
					timeline[j] = labels[i]
				}
			}
		}
	}
	return timeline, nil
}
