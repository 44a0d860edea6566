package alignment

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Recording identifies one audio source to align, optionally cropped to a
// time range in seconds (End <= 0 runs to the end of the file).
type Recording struct {
	ID          string
	Path        string
	Start       float64
	End         float64
	Description string
}

// LoadAudio decodes a recording to a mono float signal at the target
// sample rate, cropped to the recording's time range.
func LoadAudio(rec Recording, sampleRate int) ([]float64, error) {
	samples, srcRate, err := decodeAudio(rec.Path)
	if err != nil {
		return nil, err
	}
	samples = resample(samples, srcRate, sampleRate)

	start := 0
	if rec.Start > 0 {
		start = int(rec.Start * float64(sampleRate))
	}
	end := len(samples)
	if rec.End > 0 {
		if e := int(rec.End*float64(sampleRate)) + 1; e < end {
			end = e
		}
	}
	if start >= end {
		return nil, fmt.Errorf("recording %q: crop range %v..%v is empty", rec.ID, rec.Start, rec.End)
	}
	return samples[start:end], nil
}

func decodeAudio(path string) ([]float64, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(path)
	case ".mp3":
		return decodeMP3(path)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
}

func decodeWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav %q: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, 0, fmt.Errorf("decode wav %q: missing format", path)
	}

	channels := buf.Format.NumChannels
	scale := float64(int64(1) << (dec.BitDepth - 1))
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) / scale
		}
		mono[i] = sum / float64(channels)
	}
	return mono, buf.Format.SampleRate, nil
}

// decodeMP3 reads the full stream; go-mp3 always emits 16-bit stereo PCM.
func decodeMP3(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3 %q: %w", path, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("read mp3 %q: %w", path, err)
	}

	frames := len(raw) / 4
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		mono[i] = (float64(left) + float64(right)) / (2 * 32768)
	}
	return mono, dec.SampleRate(), nil
}

// resample converts between sample rates by linear interpolation, which is
// plenty for chroma energies.
func resample(x []float64, from, to int) []float64 {
	if from == to || len(x) == 0 {
		return x
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(x)) / ratio)
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}
