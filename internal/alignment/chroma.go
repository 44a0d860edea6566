package alignment

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"hauptstimme/internal/score"
)

// chromaBins is the pitch-class dimension of every chroma frame.
const chromaBins = 12

// fftSize is the STFT window length. At 22050 Hz this gives ~10.8 Hz bin
// spacing, enough to separate pitch classes from the bottom of the cello
// range upward.
const fftSize = 4096

// audible range mapped into chroma bins.
const (
	minFreq = 55.0
	maxFreq = 5000.0
)

// audioChroma computes per-frame pitch-class energy at the feature rate:
// Hann-windowed STFT, squared magnitudes binned by pitch class, frames
// L2-normalized.
func audioChroma(x []float64, sampleRate, featureRate int) [][]float64 {
	hop := sampleRate / featureRate
	if hop < 1 {
		hop = 1
	}
	hann := window.Hann(fftSize)

	numFrames := len(x) / hop
	if numFrames == 0 {
		numFrames = 1
	}
	frames := make([][]float64, numFrames)

	buf := make([]float64, fftSize)
	for fi := 0; fi < numFrames; fi++ {
		startIdx := fi*hop - fftSize/2
		for i := 0; i < fftSize; i++ {
			j := startIdx + i
			if j < 0 || j >= len(x) {
				buf[i] = 0
			} else {
				buf[i] = x[j] * hann[i]
			}
		}

		spec := fft.FFTReal(buf)
		frame := make([]float64, chromaBins)
		for k := 1; k < fftSize/2; k++ {
			freq := float64(k) * float64(sampleRate) / fftSize
			if freq < minFreq || freq > maxFreq {
				continue
			}
			midi := 69 + 12*math.Log2(freq/440)
			pc := ((int(math.Round(midi)) % chromaBins) + chromaBins) % chromaBins
			mag := cmplxAbsSq(real(spec[k]), imag(spec[k]))
			frame[pc] += mag
		}
		frames[fi] = normalizeFrame(frame)
	}
	return frames
}

func cmplxAbsSq(re, im float64) float64 { return re*re + im*im }

// scoreChroma synthesizes chroma features from the expanded event table:
// each note contributes its velocity to its pitch class over [start,
// start+duration). A lead-in is added so that t=0 carries no energy and
// never gets pinned to the start of the audio.
func scoreChroma(events *score.EventTable, leadIn float64, featureRate int) [][]float64 {
	var maxEnd float64
	for _, e := range events.Events {
		if end := e.Tstamp + e.Duration; end > maxEnd {
			maxEnd = end
		}
	}
	numFrames := int(math.Ceil((maxEnd+leadIn)*float64(featureRate))) + 1
	frames := make([][]float64, numFrames)
	for i := range frames {
		frames[i] = make([]float64, chromaBins)
	}

	for _, e := range events.Events {
		pc := ((e.Pitch.MIDI() % chromaBins) + chromaBins) % chromaBins
		start := int((e.Tstamp + leadIn) * float64(featureRate))
		end := int((e.Tstamp + leadIn + e.Duration) * float64(featureRate))
		if end <= start {
			end = start + 1
		}
		for f := start; f < end && f < numFrames; f++ {
			frames[f][pc] += e.Velocity
		}
	}
	for i := range frames {
		frames[i] = normalizeFrame(frames[i])
	}
	return frames
}

func normalizeFrame(frame []float64) []float64 {
	var norm float64
	for _, v := range frame {
		norm += v * v
	}
	if norm <= 0 {
		return frame
	}
	norm = math.Sqrt(norm)
	for i := range frame {
		frame[i] /= norm
	}
	return frame
}

// shiftChroma rolls the pitch-class axis by the given number of bins.
func shiftChroma(frames [][]float64, shift int) [][]float64 {
	shift = ((shift % chromaBins) + chromaBins) % chromaBins
	if shift == 0 {
		return frames
	}
	out := make([][]float64, len(frames))
	for i, frame := range frames {
		rolled := make([]float64, chromaBins)
		for pc, v := range frame {
			rolled[(pc+shift)%chromaBins] = v
		}
		out[i] = rolled
	}
	return out
}

// downsampleChroma averages consecutive frames by the given factor and
// renormalizes, giving the coarse sequences used for shift estimation.
func downsampleChroma(frames [][]float64, factor int) [][]float64 {
	if factor <= 1 || len(frames) == 0 {
		return frames
	}
	n := (len(frames) + factor - 1) / factor
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		acc := make([]float64, chromaBins)
		count := 0
		for j := i * factor; j < (i+1)*factor && j < len(frames); j++ {
			for pc, v := range frames[j] {
				acc[pc] += v
			}
			count++
		}
		if count > 0 {
			for pc := range acc {
				acc[pc] /= float64(count)
			}
		}
		out[i] = normalizeFrame(acc)
	}
	return out
}

// optimalChromaShift finds the transposition (in chroma bins) between two
// sequences by trying every shift of the second sequence against the first
// on 1 Hz downsamples and keeping the one with the lowest DTW cost.
func optimalChromaShift(a, b [][]float64, featureRate, bandRadius int) int {
	coarseA := downsampleChroma(a, featureRate)
	coarseB := downsampleChroma(b, featureRate)

	bestShift, bestCost := 0, math.Inf(1)
	for shift := 0; shift < chromaBins; shift++ {
		cost := dtwCost(coarseA, shiftChroma(coarseB, shift), defaultStepWeights, bandRadius)
		if cost < bestCost {
			bestCost = cost
			bestShift = shift
		}
	}
	return bestShift
}
