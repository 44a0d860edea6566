package segmentation_test

import (
	"math"
	"testing"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/score"
	"hauptstimme/internal/segmentation"
)

func lightTable() *score.LightweightTable {
	return &score.LightweightTable{
		Parts: []string{"Flute"},
		Rows: []score.LightRow{
			{Qstamp: 0, Tstamp: 0, Measure: 1, Beat: 1, Pitches: []string{"C4"}},
			{Qstamp: 2, Tstamp: 1, Measure: 1, Beat: 3, Pitches: []string{"D4"}},
			{Qstamp: 4, Tstamp: 2, Measure: 2, Beat: 1, Pitches: []string{"E4"}},
			{Qstamp: 8, Tstamp: 4, Measure: 3, Beat: 1, Pitches: []string{"F4"}},
		},
	}
}

func TestPoints(t *testing.T) {
	anns := []annotations.Annotation{
		{Measure: 2, Beat: 1, Label: "b"},
		{Measure: 1, Beat: 1, Label: "a"},
	}
	pts, err := segmentation.Points(lightTable(), anns, false)
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(pts) != 2 || pts[0] != 0 || pts[1] != 4 {
		t.Errorf("qstamp points = %v, want [0 4]", pts)
	}

	secs, err := segmentation.Points(lightTable(), anns, true)
	if err != nil {
		t.Fatalf("Points (seconds): %v", err)
	}
	if secs[1] != 2 {
		t.Errorf("second point = %v, want 2", secs[1])
	}

	_, err = segmentation.Points(lightTable(), []annotations.Annotation{{Measure: 9, Beat: 1}}, false)
	if err == nil {
		t.Error("expected error for annotation outside the table")
	}
}

func TestVector(t *testing.T) {
	// maxT 23 rounds up to 30; at resolution 1 that is 31 slots.
	vec := segmentation.Vector([]float64{0.2, 5.4, 12.6}, 1, 23)
	if len(vec) != 31 {
		t.Fatalf("len = %d, want 31", len(vec))
	}
	wantOnes := []int{0, 5, 13}
	for i, v := range vec {
		want := 0
		for _, w := range wantOnes {
			if i == w {
				want = 1
			}
		}
		if v != want {
			t.Errorf("vec[%d] = %d, want %d", i, v, want)
		}
	}

	// Points at or past the rounded maximum are dropped.
	vec = segmentation.Vector([]float64{1, 30}, 1, 23)
	total := 0
	for _, v := range vec {
		total += v
	}
	if total != 1 {
		t.Errorf("got %d points, want 1 (out-of-range dropped)", total)
	}
}

func TestEvaluate(t *testing.T) {
	ref := []int{0, 1, 0, 0, 0, 1, 0, 0, 1, 0}
	est := []int{0, 0, 1, 0, 0, 1, 0, 0, 0, 0}

	res, err := segmentation.Evaluate(ref, est, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// ref@1 matched by est@2, ref@5 matched exactly, ref@8 missed.
	if res.TP != 2 || res.FN != 1 || res.FP != 0 {
		t.Errorf("TP/FN/FP = %d/%d/%d, want 2/1/0", res.TP, res.FN, res.FP)
	}
	if res.Precision != 1 {
		t.Errorf("precision = %v, want 1", res.Precision)
	}
	if math.Abs(res.Recall-2.0/3.0) > 1e-9 {
		t.Errorf("recall = %v, want 2/3", res.Recall)
	}
	if math.Abs(res.F-0.8) > 1e-9 {
		t.Errorf("F = %v, want 0.8", res.F)
	}

	if res.Eval[8] != segmentation.EvalFN {
		t.Errorf("eval[8] = %d, want FN", res.Eval[8])
	}
	if res.Eval[2] != segmentation.EvalTP || res.Eval[5] != segmentation.EvalTP {
		t.Errorf("eval = %v, want TP at 2 and 5", res.Eval)
	}
	if res.RefTol[1] != 2 || res.RefTol[0] != 1 || res.RefTol[2] != 1 {
		t.Errorf("ref tolerance = %v", res.RefTol)
	}
	if res.RefTol[3] != 0 {
		t.Errorf("ref tolerance leaks outside the window: %v", res.RefTol)
	}

	if _, err := segmentation.Evaluate(ref, est[:5], 1); err == nil {
		t.Error("expected length-mismatch error")
	}
}

func TestEvaluateFalsePositive(t *testing.T) {
	ref := []int{1, 0, 0, 0}
	est := []int{1, 0, 0, 1}
	res, err := segmentation.Evaluate(ref, est, 0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TP != 1 || res.FP != 1 || res.FN != 0 {
		t.Errorf("TP/FP/FN = %d/%d/%d, want 1/1/0", res.TP, res.FP, res.FN)
	}
	if res.Eval[3] != segmentation.EvalFP {
		t.Errorf("eval[3] = %d, want FP", res.Eval[3])
	}
	if res.Precision != 0.5 || res.Recall != 1 {
		t.Errorf("P/R = %v/%v, want 0.5/1", res.Precision, res.Recall)
	}
}

func TestEvaluateAllZero(t *testing.T) {
	res, err := segmentation.Evaluate([]int{0, 0, 0}, []int{0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Precision != 0 || res.Recall != 0 || res.F != 0 {
		t.Errorf("empty vectors should score zero, got %+v", res)
	}
}

func TestLabelTimeline(t *testing.T) {
	times := []float64{0, 2.4, 5}
	labels := []string{"a", "b", "c"}
	timeline, err := segmentation.LabelTimeline(times, labels, 1, 7)
	if err != nil {
		t.Fatalf("LabelTimeline: %v", err)
	}
	// maxT 7 rounds up to 10 -> 11 slots.
	if len(timeline) != 11 {
		t.Fatalf("len = %d, want 11", len(timeline))
	}
	want := []string{"a", "a", "b", "b", "b", "c", "c", "c", "c", "c", "c"}
	for i := range want {
		if timeline[i] != want[i] {
			t.Errorf("timeline[%d] = %q, want %q", i, timeline[i], want[i])
		}
	}

	if _, err := segmentation.LabelTimeline(times, labels[:2], 1, 7); err == nil {
		t.Error("expected length-mismatch error")
	}
}

func TestNoveltyPoints(t *testing.T) {
	if testing.Short() {
		t.Skip("feature extraction is slow")
	}
	sr := 22050
	// Three seconds: one second each of 220 Hz, 440 Hz, 880 Hz. The two
	// frequency changes should show up as novelty peaks.
	samples := make([]float64, 3*sr)
	freqs := []float64{220, 440, 880}
	for i := range samples {
		f := freqs[i/sr]
		samples[i] = 0.5 * math.Sin(2*math.Pi*f*float64(i%sr)/float64(sr))
	}

	pts := segmentation.NoveltyPoints(samples, sr)
	if len(pts) == 0 {
		t.Fatal("no novelty points detected")
	}
	foundFirst, foundSecond := false, false
	for _, p := range pts {
		if math.Abs(p-1) < 0.3 {
			foundFirst = true
		}
		if math.Abs(p-2) < 0.3 {
			foundSecond = true
		}
	}
	if !foundFirst || !foundSecond {
		t.Errorf("novelty points %v miss the boundaries near 1s and 2s", pts)
	}
}
