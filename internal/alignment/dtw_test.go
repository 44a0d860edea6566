package alignment

import (
	"math"
	"testing"
)

func frame(pc int) []float64 {
	f := make([]float64, chromaBins)
	f[pc] = 1
	return f
}

func TestCosineDist(t *testing.T) {
	if d := cosineDist(frame(0), frame(0)); d != 0 {
		t.Errorf("identical frames distance = %v, want 0", d)
	}
	if d := cosineDist(frame(0), frame(5)); d != 1 {
		t.Errorf("orthogonal frames distance = %v, want 1", d)
	}
	zero := make([]float64, chromaBins)
	if d := cosineDist(zero, zero); d != 0 {
		t.Errorf("two silent frames distance = %v, want 0", d)
	}
	if d := cosineDist(zero, frame(3)); d != 1 {
		t.Errorf("silence vs note distance = %v, want 1", d)
	}
}

func TestDTWPathIdentity(t *testing.T) {
	seq := [][]float64{frame(0), frame(2), frame(4), frame(5), frame(7)}
	path := dtwPath(seq, seq, defaultStepWeights, 2)
	if len(path) == 0 {
		t.Fatal("empty path")
	}
	if first := path[0]; first.a != 0 || first.b != 0 {
		t.Errorf("path starts at (%d,%d), want (0,0)", first.a, first.b)
	}
	if last := path[len(path)-1]; last.a != 4 || last.b != 4 {
		t.Errorf("path ends at (%d,%d), want (4,4)", last.a, last.b)
	}
	for _, p := range path {
		if p.a != p.b {
			t.Errorf("identical sequences should align diagonally, got (%d,%d)", p.a, p.b)
		}
	}
}

func TestDTWPathStretch(t *testing.T) {
	a := [][]float64{frame(0), frame(0), frame(2), frame(2), frame(4), frame(4)}
	b := [][]float64{frame(0), frame(2), frame(4)}
	path := strictlyMonotonic(dtwPath(a, b, defaultStepWeights, 4))

	for i := 1; i < len(path); i++ {
		if path[i].a <= path[i-1].a || path[i].b <= path[i-1].b {
			t.Fatalf("path not strictly monotonic at %d: %v -> %v", i, path[i-1], path[i])
		}
	}
	if last := path[len(path)-1]; last.b != len(b)-1 {
		t.Errorf("path does not reach the end of the short sequence: %v", last)
	}
}

func TestWarpTimeInterpolation(t *testing.T) {
	// Audio runs at twice the score's pace: score frame j maps to audio
	// frame 2j.
	path := []pathPoint{{0, 0}, {2, 1}, {4, 2}, {6, 3}}
	rate := 50

	cases := []struct{ scoreT, want float64 }{
		{0, 0},
		{1.0 / 50, 2.0 / 50},
		{1.5 / 50, 3.0 / 50},
		{3.0 / 50, 6.0 / 50},
		{4.0 / 50, 8.0 / 50}, // extrapolated
	}
	for _, tc := range cases {
		if got := warpTime(path, rate, tc.scoreT); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("warpTime(%v) = %v, want %v", tc.scoreT, got, tc.want)
		}
	}
}

func TestShiftChromaRoll(t *testing.T) {
	frames := [][]float64{frame(0)}
	shifted := shiftChroma(frames, 3)
	if shifted[0][3] != 1 {
		t.Errorf("shift by 3 put energy at %v", shifted[0])
	}
	same := shiftChroma(frames, 12)
	if same[0][0] != 1 {
		t.Errorf("shift by 12 should be identity")
	}
}

func TestOptimalChromaShiftDetectsTransposition(t *testing.T) {
	// A short progression and the same progression transposed up two
	// bins.
	var a, b [][]float64
	for _, pc := range []int{0, 4, 7, 0, 4, 7, 5, 9} {
		a = append(a, frame(pc))
		b = append(b, frame((pc+10)%chromaBins))
	}
	// Shifting b by 2 bins should recover a.
	if got := optimalChromaShift(a, b, 1, 4); got != 2 {
		t.Errorf("optimal shift = %d, want 2", got)
	}
}

func TestResample(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	half := resample(x, 8, 4)
	if len(half) != 4 {
		t.Fatalf("len = %d, want 4", len(half))
	}
	for i, v := range half {
		if math.Abs(v-float64(2*i)) > 1e-9 {
			t.Errorf("half[%d] = %v, want %v", i, v, 2*i)
		}
	}
	if got := resample(x, 4, 4); &got[0] != &x[0] {
		t.Error("same-rate resample should be a no-op")
	}
}
