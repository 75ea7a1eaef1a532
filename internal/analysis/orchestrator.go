// Package analysis drives scenes through pending, analyzing, completed and
// error, dispatching each frame to the generative text model.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"visuallab/internal/domain"
	"visuallab/internal/infra"
	"visuallab/internal/notice"
	"visuallab/internal/scene"
)

// ErrAlreadyAnalyzing is returned when a scene is already in flight. Nothing
// was changed and no request was made.
var ErrAlreadyAnalyzing = errors.New("scene is already being analyzed")

// TextAnalyzer sends one instruction plus an optional image to the model.
type TextAnalyzer interface {
	Analyze(ctx context.Context, instruction string, image *domain.ImagePayload) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	Store    *scene.Store
	Client   TextAnalyzer
	Notices  notice.Reporter
	Logger   *infra.Logger
	Progress ProgressConfig
	// Step overrides the random progress increment. Used by tests.
	Step func() int
}

// Orchestrator owns the analysis lifecycle of the scenes in its store.
type Orchestrator struct {
	store    *scene.Store
	client   TextAnalyzer
	notices  notice.Reporter
	logger   *infra.Logger
	progress ProgressConfig
	stepFn   func() int
	inflight sync.WaitGroup
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("analysis: store is required")
	}
	if opts.Client == nil {
		return nil, errors.New("analysis: text client is required")
	}
	notices := opts.Notices
	if notices == nil {
		notices = notice.Discard{}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	progress := opts.Progress.normalized()
	step := opts.Step
	if step == nil {
		step = progress.step
	}
	return &Orchestrator{
		store:    opts.Store,
		client:   opts.Client,
		notices:  notices,
		logger:   logger,
		progress: progress,
		stepFn:   step,
	}, nil
}

// Analyze runs one analysis of the scene synchronously. It returns
// ErrAlreadyAnalyzing when the scene is in flight and domain.ErrNotFound when
// it does not exist.
func (o *Orchestrator) Analyze(ctx context.Context, id string, variant domain.Variant) error {
	instruction, err := InstructionFor(variant)
	if err != nil {
		return err
	}
	sc, err := o.begin(id)
	if err != nil {
		return err
	}
	return o.run(ctx, sc, instruction, variant)
}

// Start launches an analysis in the background and reports whether one was
// launched. The analysis outlives ctx cancellation.
func (o *Orchestrator) Start(ctx context.Context, id string, variant domain.Variant) (bool, error) {
	instruction, err := InstructionFor(variant)
	if err != nil {
		return false, err
	}
	sc, err := o.begin(id)
	if errors.Is(err, ErrAlreadyAnalyzing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	detached := context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		_ = o.run(detached, sc, instruction, variant)
	}()
	return true, nil
}

// AnalyzeAll starts an analysis for every scene not yet completed and returns
// the IDs that were launched.
func (o *Orchestrator) AnalyzeAll(ctx context.Context, variant domain.Variant) ([]string, error) {
	if _, err := InstructionFor(variant); err != nil {
		return nil, err
	}
	var launched []string
	for _, sc := range o.store.Query(scene.NotCompleted) {
		started, err := o.Start(ctx, sc.ID, variant)
		if err != nil {
			// removed between the query and the start
			continue
		}
		if started {
			launched = append(launched, sc.ID)
		}
	}
	return launched, nil
}

// RunAll analyzes every scene not yet completed with at most limit running at
// once, and returns how many failed. One failure never stops the others.
func (o *Orchestrator) RunAll(ctx context.Context, variant domain.Variant, limit int) (int, error) {
	if _, err := InstructionFor(variant); err != nil {
		return 0, err
	}
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, sc := range o.store.Query(scene.NotCompleted) {
		id := sc.ID
		g.Go(func() error {
			err := o.Analyze(gctx, id, variant)
			if err != nil && !errors.Is(err, ErrAlreadyAnalyzing) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load()), nil
}

// Wait blocks until every analysis launched by Start has finished.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) begin(id string) (domain.Scene, error) {
	sc, res := o.store.BeginAnalysis(id, o.progress.Seed)
	switch res {
	case scene.BeginNotFound:
		return domain.Scene{}, fmt.Errorf("scene %s: %w", id, domain.ErrNotFound)
	case scene.BeginAlreadyAnalyzing:
		o.logger.Debug().Str("scene_id", id).Msg("analysis: scene already analyzing")
		return domain.Scene{}, ErrAlreadyAnalyzing
	}
	return sc, nil
}

func (o *Orchestrator) run(ctx context.Context, sc domain.Scene, instruction string, variant domain.Variant) error {
	stop := o.startProgress(sc.ID, sc.Attempt)
	defer stop()

	var image *domain.ImagePayload
	if !sc.Payload.IsZero() {
		payload := sc.Payload
		image = &payload
	}

	text, err := o.client.Analyze(ctx, instruction, image)
	stop()
	if err != nil {
		o.store.Fail(sc.ID, sc.Attempt, err.Error())
		o.logger.Warn().
			Err(err).
			Str("scene_id", sc.ID).
			Int("attempt", sc.Attempt).
			Msg("analysis: scene failed")
		o.notices.Report("analysis", fmt.Errorf("scene at %s: %w", sc.Timestamp.Label(), err))
		return err
	}

	o.store.Complete(sc.ID, sc.Attempt, text, variant)
	o.logger.Debug().
		Str("scene_id", sc.ID).
		Str("variant", string(variant)).
		Msg("analysis: scene completed")
	return nil
}
