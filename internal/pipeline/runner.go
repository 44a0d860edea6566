package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hauptstimme/internal/config"
	"hauptstimme/internal/corpus"
	"hauptstimme/internal/logging"
)

// scoreExtensions are the file types a corpus scan picks up.
var scoreExtensions = map[string]bool{
	".mxl":      true,
	".musicxml": true,
	".xml":      true,
}

// Runner drains pending corpus items through the stage sequence.
type Runner struct {
	cfg    *config.Config
	store  *corpus.Store
	log    *slog.Logger
	stages *Stages
}

// NewRunner constructs a corpus build runner.
func NewRunner(cfg *config.Config, store *corpus.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "pipeline")
	return &Runner{
		cfg:    cfg,
		store:  store,
		log:    logger,
		stages: NewStages(cfg, logger),
	}
}

// HealthCheck reports stage readiness in pipeline order.
func (r *Runner) HealthCheck(ctx context.Context) []Health {
	bindings := r.stages.Bindings()
	out := make([]Health, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, b.handler.HealthCheck(ctx))
	}
	return out
}

// Discover walks the corpus tree and enqueues new or changed scores.
// Scores whose fingerprint matches an existing item are left alone;
// changed scores are reset to pending. Returns the number enqueued.
func (r *Runner) Discover(ctx context.Context) (int, error) {
	added := 0
	err := filepath.WalkDir(r.cfg.Paths.CorpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !scoreExtensions[ext] {
			return nil
		}
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		if strings.HasSuffix(stem, "_melody") {
			return nil
		}

		rel, err := filepath.Rel(r.cfg.Paths.CorpusDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		fingerprint, err := corpus.FileFingerprint(path)
		if err != nil {
			return err
		}

		item, err := r.store.GetByPath(ctx, rel)
		if err != nil {
			return err
		}
		switch {
		case item == nil:
			if _, err := r.store.NewScore(ctx, rel, "", fingerprint); err != nil {
				return err
			}
			added++
		case item.Fingerprint != fingerprint:
			item.Fingerprint = fingerprint
			item.Status = corpus.StatusPending
			item.ErrorMessage = ""
			if err := r.store.Update(ctx, item); err != nil {
				return err
			}
			added++
			r.log.Info("score changed, reprocessing", slog.String(logging.FieldScore, rel))
		}
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("discover scores: %w", err)
	}
	return added, nil
}

// Run processes every pending item with a bounded worker pool. A file
// lock prevents concurrent builds against the same data directory.
func (r *Runner) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.cfg.LockPath()), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(r.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another build holds %s", r.cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	session := uuid.NewString()
	log := r.log.With(slog.String(logging.FieldSessionID, session))

	stuckCutoff := time.Duration(r.cfg.Workflow.StuckTimeout) * time.Minute
	if n, err := r.store.ResetStuck(ctx, stuckCutoff); err != nil {
		return err
	} else if n > 0 {
		log.Warn("reset stuck items", slog.Int64("count", n))
	}

	for _, h := range r.HealthCheck(ctx) {
		if !h.Ready {
			return fmt.Errorf("stage %s not ready: %s", h.Name, h.Detail)
		}
	}

	items := make(chan *corpus.Item)
	g, gctx := errgroup.WithContext(ctx)

	// One claimer keeps NextPending free of races with the workers.
	g.Go(func() error {
		defer close(items)
		for {
			item, err := r.store.NextPending(gctx)
			if err != nil {
				return err
			}
			if item == nil {
				return nil
			}
			item.Status = corpus.StatusParsing
			if err := r.store.Update(gctx, item); err != nil {
				return err
			}
			select {
			case items <- item:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for i := 0; i < r.cfg.Workflow.Workers; i++ {
		g.Go(func() error {
			for item := range items {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.processItem(gctx, log, item)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("corpus build finished")
	return nil
}

// ProcessOne runs a single item through every stage, outside of a build
// session. Used by the single-score CLI path.
func (r *Runner) ProcessOne(ctx context.Context, item *corpus.Item) error {
	defer r.stages.release(item.ID)
	for _, b := range r.stages.Bindings() {
		if err := r.runStage(ctx, b, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) processItem(ctx context.Context, log *slog.Logger, item *corpus.Item) {
	defer r.stages.release(item.ID)
	start := time.Now()

	for _, b := range r.stages.Bindings() {
		if err := r.runStage(ctx, b, item); err != nil {
			if errors.Is(err, ErrNeedsReview) {
				item.Status = corpus.StatusReview
				item.ErrorMessage = err.Error()
				log.Warn("item needs review",
					slog.String(logging.FieldScore, item.ScorePath),
					logging.Error(err))
			} else {
				item.SetFailed(err.Error())
				log.Error("item failed",
					slog.String(logging.FieldScore, item.ScorePath),
					slog.String(logging.FieldStage, b.name),
					logging.Error(err))
			}
			if updateErr := r.store.Update(ctx, item); updateErr != nil {
				log.Error("persist item state", logging.Error(updateErr))
			}
			return
		}
	}

	item.Status = corpus.StatusCompleted
	item.SetProgress("completed", "all artifacts written", 100)
	item.ErrorMessage = ""
	if err := r.store.Update(ctx, item); err != nil {
		log.Error("persist item state", logging.Error(err))
		return
	}
	log.Info("processed score",
		slog.String(logging.FieldScore, item.ScorePath),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
}

func (r *Runner) runStage(ctx context.Context, b stageBinding, item *corpus.Item) error {
	item.Status = b.status
	if err := r.store.Update(ctx, item); err != nil {
		return err
	}
	if err := b.handler.Prepare(ctx, item); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	if err := r.store.Update(ctx, item); err != nil {
		return err
	}
	if err := b.handler.Execute(ctx, item); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	return r.store.Update(ctx, item)
}
