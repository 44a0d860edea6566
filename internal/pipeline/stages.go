package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/config"
	"hauptstimme/internal/corpus"
	"hauptstimme/internal/logging"
	"hauptstimme/internal/measuremap"
	"hauptstimme/internal/musicxml"
	"hauptstimme/internal/partrelations"
	"hauptstimme/internal/score"
)

// ErrNeedsReview marks items that processed cleanly but produced nothing
// useful (no annotations found); the runner parks them for manual review
// instead of failing them.
var ErrNeedsReview = errors.New("needs review")

// state carries intermediate results between stages of one item.
type state struct {
	score    *score.Score
	playback []int
	events   *score.EventTable
	anns     []annotations.Annotation
	light    *score.LightweightTable
}

// Stages builds the stage handlers and holds the per-item intermediate
// state they hand to each other.
type Stages struct {
	cfg *config.Config
	log *slog.Logger

	mu     sync.Mutex
	states map[int64]*state
}

// NewStages constructs the stage set for a configuration.
func NewStages(cfg *config.Config, logger *slog.Logger) *Stages {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stages{cfg: cfg, log: logger, states: make(map[int64]*state)}
}

// Bindings returns the ordered stage sequence with the store status each
// stage runs under.
func (s *Stages) Bindings() []stageBinding {
	return []stageBinding{
		{name: "parse", status: corpus.StatusParsing, handler: &parseStage{s}},
		{name: "measuremap", status: corpus.StatusParsing, handler: &measureMapStage{s}},
		{name: "annotate", status: corpus.StatusAnnotating, handler: &annotateStage{s}},
		{name: "lightweight", status: corpus.StatusRelating, handler: &lightweightStage{s}},
		{name: "relations", status: corpus.StatusRelating, handler: &relationsStage{s}},
	}
}

func (s *Stages) state(id int64) *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		st = &state{}
		s.states[id] = st
	}
	return st
}

// release drops the intermediate state once an item leaves the pipeline.
func (s *Stages) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
}

// scorePath resolves an item's corpus-relative path to an absolute one.
func (s *Stages) scorePath(item *corpus.Item) string {
	return filepath.Join(s.cfg.Paths.CorpusDir, filepath.FromSlash(item.ScorePath))
}

// artifactPath places a derived artifact beside its score file.
func (s *Stages) artifactPath(item *corpus.Item, suffix string) string {
	abs := s.scorePath(item)
	return strings.TrimSuffix(abs, filepath.Ext(abs)) + suffix
}

// relArtifact converts an artifact path back to corpus-relative form for
// storage.
func (s *Stages) relArtifact(path string) string {
	rel, err := filepath.Rel(s.cfg.Paths.CorpusDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

type parseStage struct{ s *Stages }

func (p *parseStage) Prepare(_ context.Context, item *corpus.Item) error {
	info, err := os.Stat(p.s.scorePath(item))
	if err != nil {
		return fmt.Errorf("score file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("score path %q is a directory", item.ScorePath)
	}
	item.SetProgress("parse", "parsing score", 0)
	return nil
}

func (p *parseStage) Execute(_ context.Context, item *corpus.Item) error {
	doc, err := musicxml.ParseFile(p.s.scorePath(item))
	if err != nil {
		return fmt.Errorf("parse %s: %w", item.ScorePath, err)
	}
	built, err := score.Build(doc)
	if err != nil {
		return fmt.Errorf("build score %s: %w", item.ScorePath, err)
	}

	st := p.s.state(item.ID)
	st.score = built
	if item.Title == "" {
		item.Title = built.Title
	}
	p.s.log.Debug("parsed score",
		slog.String(logging.FieldScore, item.ScorePath),
		slog.Int("parts", len(built.Parts)),
		slog.Int("measures", len(built.Measures)))
	return nil
}

func (p *parseStage) HealthCheck(context.Context) Health {
	info, err := os.Stat(p.s.cfg.Paths.CorpusDir)
	if err != nil || !info.IsDir() {
		return Unhealthy("parse", fmt.Sprintf("corpus directory %q unavailable", p.s.cfg.Paths.CorpusDir))
	}
	return Healthy("parse")
}

type measureMapStage struct{ s *Stages }

func (m *measureMapStage) Prepare(_ context.Context, item *corpus.Item) error {
	if m.s.state(item.ID).score == nil {
		return errors.New("measuremap: score not parsed")
	}
	item.SetProgress("measuremap", "deriving measure map", 20)
	return nil
}

func (m *measureMapStage) Execute(_ context.Context, item *corpus.Item) error {
	st := m.s.state(item.ID)
	mm := measuremap.FromScore(st.score)

	playback, err := mm.PlaybackOrder()
	if err != nil {
		return fmt.Errorf("playback order %s: %w", item.ScorePath, err)
	}
	st.playback = playback

	path := m.s.artifactPath(item, "_measure_map.json")
	if err := mm.Compress().WriteFile(path); err != nil {
		return err
	}
	item.MeasureMapFile = m.s.relArtifact(path)
	return nil
}

func (m *measureMapStage) HealthCheck(context.Context) Health { return Healthy("measuremap") }

type annotateStage struct{ s *Stages }

func (a *annotateStage) Prepare(_ context.Context, item *corpus.Item) error {
	if a.s.state(item.ID).score == nil {
		return errors.New("annotate: score not parsed")
	}
	item.SetProgress("annotate", "extracting annotations", 40)
	return nil
}

func (a *annotateStage) Execute(_ context.Context, item *corpus.Item) error {
	st := a.s.state(item.ID)

	opts := annotations.Options{Logger: a.s.log}
	switch a.s.cfg.Annotations.Source {
	case "text":
		opts.Source = annotations.SourceText
	default:
		opts.Source = annotations.SourceLyrics
	}
	if restrict := a.s.cfg.Annotations.Restrict; restrict != "" {
		restrictions, err := annotations.CompileRestrictions(restrict)
		if err != nil {
			return fmt.Errorf("annotation restrictions: %w", err)
		}
		opts.Restrictions = restrictions
	}

	anns, err := annotations.Extract(st.score, opts)
	if err != nil {
		return fmt.Errorf("extract annotations %s: %w", item.ScorePath, err)
	}
	if len(anns) == 0 {
		return fmt.Errorf("%w: no annotations in %s", ErrNeedsReview, item.ScorePath)
	}
	st.anns = anns

	annPath := a.s.artifactPath(item, "_annotations.csv")
	if err := annotations.WriteCSV(anns, annPath); err != nil {
		return err
	}
	item.AnnotationsFile = a.s.relArtifact(annPath)

	melodyOpts := annotations.MelodyOptions{
		InstrumentLabels: a.s.cfg.Annotations.InstrumentLabels,
		LabelText:        a.s.cfg.Annotations.LabelText,
		Dynamics:         a.s.cfg.Annotations.Dynamics,
	}
	melody, err := annotations.MelodyScore(st.score, anns, melodyOpts)
	if err != nil {
		return fmt.Errorf("melody score %s: %w", item.ScorePath, err)
	}
	melodyPath := a.s.artifactPath(item, "_melody.musicxml")
	if err := annotations.WriteMusicXML(melody, melodyPath); err != nil {
		return err
	}
	item.MelodyFile = a.s.relArtifact(melodyPath)

	a.s.log.Info("extracted annotations",
		slog.String(logging.FieldScore, item.ScorePath),
		slog.Int("count", len(anns)))
	return nil
}

func (a *annotateStage) HealthCheck(context.Context) Health {
	if a.s.cfg.Annotations.Source == "text" && a.s.cfg.Annotations.Restrict == "" {
		return Unhealthy("annotate", "text annotation source requires annotations.restrict")
	}
	return Healthy("annotate")
}

type lightweightStage struct{ s *Stages }

func (l *lightweightStage) Prepare(_ context.Context, item *corpus.Item) error {
	st := l.s.state(item.ID)
	if st.score == nil || st.playback == nil {
		return errors.New("lightweight: measure map not derived")
	}
	item.SetProgress("lightweight", "expanding repeats", 60)
	return nil
}

func (l *lightweightStage) Execute(_ context.Context, item *corpus.Item) error {
	st := l.s.state(item.ID)

	events, err := st.score.Expand(st.playback)
	if err != nil {
		return fmt.Errorf("expand %s: %w", item.ScorePath, err)
	}
	st.events = events

	light, err := score.Lightweight(st.score, events)
	if err != nil {
		return fmt.Errorf("lightweight %s: %w", item.ScorePath, err)
	}
	st.light = light

	path := l.s.artifactPath(item, "_lightweight.csv")
	if err := score.WriteLightweightCSV(light, path); err != nil {
		return err
	}
	item.LightweightFile = l.s.relArtifact(path)
	return nil
}

func (l *lightweightStage) HealthCheck(context.Context) Health { return Healthy("lightweight") }

type relationsStage struct{ s *Stages }

func (r *relationsStage) Prepare(_ context.Context, item *corpus.Item) error {
	st := r.s.state(item.ID)
	if st.light == nil || st.anns == nil {
		return errors.New("relations: lightweight table not built")
	}
	item.SetProgress("relations", "summarising part relationships", 80)
	return nil
}

func (r *relationsStage) Execute(_ context.Context, item *corpus.Item) error {
	st := r.s.state(item.ID)

	table, err := partrelations.Summary(st.light, st.anns)
	if err != nil {
		return fmt.Errorf("part relations %s: %w", item.ScorePath, err)
	}
	path := r.s.artifactPath(item, "_part_relations.csv")
	if err := partrelations.WriteCSV(table, path); err != nil {
		return err
	}
	item.RelationsFile = r.s.relArtifact(path)
	return nil
}

func (r *relationsStage) HealthCheck(context.Context) Health { return Healthy("relations") }
