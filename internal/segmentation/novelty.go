package segmentation

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	noveltyFFTSize = 4096
	noveltyHop     = 2205 // 10 Hz at the working sample rate
	smoothWidth    = 5
)

// NoveltyPoints estimates segmentation boundaries from audio: a spectral
// flux novelty curve at 10 Hz, smoothed, then peak-picked. Returned
// values are timestamps in seconds.
func NoveltyPoints(samples []float64, sampleRate int) []float64 {
	novelty := spectralFlux(samples)
	novelty = smooth(novelty, smoothWidth)
	peaks := pickPeaks(novelty)

	frameRate := float64(sampleRate) / noveltyHop
	pts := make([]float64, len(peaks))
	for i, p := range peaks {
		pts[i] = float64(p) / frameRate
	}
	return pts
}

// spectralFlux sums the positive magnitude differences between adjacent
// STFT frames.
func spectralFlux(samples []float64) []float64 {
	if len(samples) < noveltyFFTSize {
		return nil
	}
	win := window.Hann(noveltyFFTSize)
	nFrames := 1 + (len(samples)-noveltyFFTSize)/noveltyHop

	var prev []float64
	flux := make([]float64, 0, nFrames)
	buf := make([]float64, noveltyFFTSize)
	for f := 0; f < nFrames; f++ {
		off := f * noveltyHop
		for i := range buf {
			buf[i] = samples[off+i] * win[i]
		}
		spec := fft.FFTReal(buf)

		mags := make([]float64, noveltyFFTSize/2+1)
		for i := range mags {
			// Log compression keeps loud passages from dominating the
			// flux.
			mags[i] = math.Log1p(10 * cmplx.Abs(spec[i]))
		}
		if prev != nil {
			var sum float64
			for i := range mags {
				if d := mags[i] - prev[i]; d > 0 {
					sum += d
				}
			}
			flux = append(flux, sum)
		} else {
			flux = append(flux, 0)
		}
		prev = mags
	}
	return flux
}

// smooth applies a centered moving average of the given width.
func smooth(x []float64, width int) []float64 {
	if width <= 1 || len(x) == 0 {
		return x
	}
	half := width / 2
	out := make([]float64, len(x))
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(x)-1 {
			hi = len(x) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// pickPeaks returns local maxima above the curve mean.
func pickPeaks(x []float64) []int {
	if len(x) < 3 {
		return nil
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	var peaks []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] > x[i-1] && x[i] >= x[i+1] && x[i] > mean {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
