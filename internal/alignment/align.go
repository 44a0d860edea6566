// Package alignment maps note onsets in a score to timestamps in audio
// recordings of the same piece, via chroma features and dynamic time
// warping, and derives the alignment-table artifacts.
package alignment

import (
	"fmt"
	"log/slog"
	"sort"

	"hauptstimme/internal/logging"
	"hauptstimme/internal/score"
)

// Default processing parameters.
const (
	DefaultSampleRate  = 22050
	DefaultFeatureRate = 50
	// DefaultLeadIn pads the synthesized score features so t=0 carries
	// no energy and cannot be pinned to the start of the recording.
	DefaultLeadIn = 1.0
	// DefaultBandRadius is the DTW band half-width in feature frames
	// (60 s at the default feature rate).
	DefaultBandRadius = 3000
)

// Config carries the alignment processing parameters.
type Config struct {
	SampleRate  int
	FeatureRate int
	LeadIn      float64
	BandRadius  int
	StepWeights [3]float64
}

// DefaultConfig returns the parameters used for the published corpus
// artifacts.
func DefaultConfig() Config {
	return Config{
		SampleRate:  DefaultSampleRate,
		FeatureRate: DefaultFeatureRate,
		LeadIn:      DefaultLeadIn,
		BandRadius:  DefaultBandRadius,
		StepWeights: defaultStepWeights,
	}
}

// Aligner aligns score event tables against recordings.
type Aligner struct {
	cfg Config
	log *slog.Logger
}

// New returns an Aligner. A nil logger discards progress output.
func New(cfg Config, logger *slog.Logger) *Aligner {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FeatureRate == 0 {
		cfg.FeatureRate = DefaultFeatureRate
	}
	if cfg.LeadIn == 0 {
		cfg.LeadIn = DefaultLeadIn
	}
	if cfg.BandRadius == 0 {
		cfg.BandRadius = DefaultBandRadius
	}
	if cfg.StepWeights == ([3]float64{}) {
		cfg.StepWeights = defaultStepWeights
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aligner{cfg: cfg, log: logger}
}

// Row is one onset position of the alignment table: its place in the
// score and one timestamp per aligned recording.
type Row struct {
	ScoreQstamp float64
	Qstamp      float64
	Measure     int
	Beat        float64
	Tstamps     []float64
}

// Table is the alignment table: one row per distinct onset in the
// expanded score, one timestamp column per recording.
type Table struct {
	AudioIDs []string
	Rows     []Row
}

// Align builds the alignment table for a set of recordings.
func (al *Aligner) Align(events *score.EventTable, recs []Recording) (*Table, error) {
	if len(events.Events) == 0 {
		return nil, fmt.Errorf("score has no note events")
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no recordings to align")
	}

	table := onsetTable(events)
	scoreFeatures := scoreChroma(events, al.cfg.LeadIn, al.cfg.FeatureRate)

	for _, rec := range recs {
		al.log.Info("aligning recording", "audio_id", rec.ID, "path", rec.Path)
		onsets, err := al.alignRecording(scoreFeatures, rec)
		if err != nil {
			return nil, fmt.Errorf("align %q: %w", rec.ID, err)
		}
		table.AudioIDs = append(table.AudioIDs, rec.ID)
		for i := range table.Rows {
			scoreT := rowScoreTime(events, table.Rows[i].Qstamp)
			audioT := onsets(scoreT)
			table.Rows[i].Tstamps = append(table.Rows[i].Tstamps, score.Round(audioT))
		}
	}
	return table, nil
}

// alignRecording returns the score-time to audio-time mapping for one
// recording.
func (al *Aligner) alignRecording(scoreFeatures [][]float64, rec Recording) (func(float64) float64, error) {
	samples, err := LoadAudio(rec, al.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	audioFeatures := audioChroma(samples, al.cfg.SampleRate, al.cfg.FeatureRate)

	shift := optimalChromaShift(audioFeatures, scoreFeatures, al.cfg.FeatureRate, al.cfg.BandRadius)
	if shift != 0 {
		al.log.Info("chroma shift between recording and score", "audio_id", rec.ID, "bins", shift)
	}
	shifted := shiftChroma(scoreFeatures, shift)

	path := strictlyMonotonic(dtwPath(audioFeatures, shifted, al.cfg.StepWeights, al.cfg.BandRadius))
	if len(path) == 0 {
		return nil, fmt.Errorf("empty warping path")
	}

	leadIn := al.cfg.LeadIn
	offset := rec.Start
	rate := al.cfg.FeatureRate
	return func(scoreT float64) float64 {
		return warpTime(path, rate, scoreT+leadIn) + offset
	}, nil
}

// onsetTable extracts the distinct onset rows from the event table, in
// expanded order.
func onsetTable(events *score.EventTable) *Table {
	type key struct {
		qstamp float64
	}
	seen := make(map[key]bool)
	table := &Table{}
	for _, e := range events.Events {
		k := key{qstamp: e.Qstamp}
		if seen[k] {
			continue
		}
		seen[k] = true
		table.Rows = append(table.Rows, Row{
			ScoreQstamp: e.ScoreQstamp,
			Qstamp:      e.Qstamp,
			Measure:     e.Measure,
			Beat:        e.Beat,
		})
	}
	sort.Slice(table.Rows, func(i, j int) bool { return table.Rows[i].Qstamp < table.Rows[j].Qstamp })
	return table
}

func rowScoreTime(events *score.EventTable, qstamp float64) float64 {
	for _, e := range events.Events {
		if e.Qstamp == qstamp {
			return e.Tstamp
		}
	}
	return 0
}
