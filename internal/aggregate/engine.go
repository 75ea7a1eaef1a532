// Package aggregate turns the completed scenes of a store into one derived
// artifact: a narrative, a story arc, a refined prompt, or a generated image.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"visuallab/internal/domain"
	"visuallab/internal/infra"
	"visuallab/internal/locale"
	"visuallab/internal/notice"
	"visuallab/internal/scene"
)

// TextGenerator is the text model. The image argument is always nil here.
type TextGenerator interface {
	Analyze(ctx context.Context, instruction string, image *domain.ImagePayload) (string, error)
}

// ImageSynthesizer is the image model.
type ImageSynthesizer interface {
	Synthesize(ctx context.Context, prompt string, aspect domain.AspectRatio) (*domain.GeneratedImage, error)
}

// Request steers one aggregation call.
type Request struct {
	Instruction string             `json:"instruction"`
	AspectRatio domain.AspectRatio `json:"aspect_ratio"`
	Locale      string             `json:"locale"`
}

// Options configures an Engine.
type Options struct {
	Store   *scene.Store
	Text    TextGenerator
	Image   ImageSynthesizer
	Notices notice.Reporter
	Logger  *infra.Logger
}

// Engine keeps the latest text artifact and the latest image artifact.
type Engine struct {
	store   *scene.Store
	text    TextGenerator
	image   ImageSynthesizer
	notices notice.Reporter
	logger  *infra.Logger
	now     func() time.Time

	mu        sync.RWMutex
	textSlot  *domain.Artifact
	imageSlot *domain.Artifact
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("aggregate: store is required")
	}
	if opts.Text == nil {
		return nil, errors.New("aggregate: text generator is required")
	}
	if opts.Image == nil {
		return nil, errors.New("aggregate: image synthesizer is required")
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
	return &Engine{
		store:   opts.Store,
		text:    opts.Text,
		image:   opts.Image,
		notices: notices,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Narrative writes a dramatized narrative across every completed scene.
func (e *Engine) Narrative(ctx context.Context, req Request) (*domain.Artifact, error) {
	return e.sequence(ctx, domain.ArtifactNarrative, req)
}

// StoryArc structures every completed scene into a five-part arc.
func (e *Engine) StoryArc(ctx context.Context, req Request) (*domain.Artifact, error) {
	return e.sequence(ctx, domain.ArtifactStoryArc, req)
}

func (e *Engine) sequence(ctx context.Context, kind domain.ArtifactKind, req Request) (*domain.Artifact, error) {
	scenes, err := e.completed(kind)
	if err != nil {
		return nil, err
	}
	instruction := sequenceInstruction(kind, req, sceneLines(scenes))
	text, err := e.text.Analyze(ctx, instruction, nil)
	if err != nil {
		return nil, e.fail(kind, err)
	}
	artifact := e.artifact(kind, req, len(scenes))
	artifact.Text = text
	e.storeText(artifact)
	return artifact, nil
}

// RefinedPrompt polishes the newest completed scene's text into one
// image-generation prompt ending with the aspect-ratio directive.
func (e *Engine) RefinedPrompt(ctx context.Context, req Request) (*domain.Artifact, error) {
	artifact, err := e.refine(ctx, req)
	if err != nil {
		return nil, err
	}
	e.storeText(artifact)
	return artifact, nil
}

// GenerateImage refines the newest completed scene into a prompt and sends it
// to the image model. The image slot is emptied first and only refilled on
// success.
func (e *Engine) GenerateImage(ctx context.Context, req Request) (*domain.Artifact, error) {
	e.mu.Lock()
	e.imageSlot = nil
	e.mu.Unlock()

	refined, err := e.refine(ctx, req)
	if err != nil {
		return nil, err
	}
	img, err := e.image.Synthesize(ctx, refined.Text, refined.AspectRatio)
	if err != nil {
		return nil, e.fail(domain.ArtifactImage, err)
	}

	artifact := e.artifact(domain.ArtifactImage, req, refined.SceneCount)
	artifact.AspectRatio = refined.AspectRatio
	artifact.Text = refined.Text
	artifact.Image = img

	e.mu.Lock()
	e.imageSlot = artifact
	e.mu.Unlock()
	e.logger.Info().
		Str("aspect_ratio", string(artifact.AspectRatio)).
		Int("bytes", len(img.Data)).
		Msg("aggregate: image generated")
	return artifact, nil
}

func (e *Engine) refine(ctx context.Context, req Request) (*domain.Artifact, error) {
	ratio, err := domain.ParseAspectRatio(string(req.AspectRatio))
	if err != nil {
		return nil, e.fail(domain.ArtifactRefinedPrompt, err)
	}
	scenes, err := e.completed(domain.ArtifactRefinedPrompt)
	if err != nil {
		return nil, err
	}
	base := stripDirective(scenes[len(scenes)-1].ResultText)

	text, err := e.text.Analyze(ctx, refineInstruction(base, req.Instruction, ratio), nil)
	if err != nil {
		return nil, e.fail(domain.ArtifactRefinedPrompt, err)
	}
	if text == domain.FallbackResultText {
		e.logger.Debug().Msg("aggregate: refinement returned no text, composing prompt locally")
		text = composePrompt(base, req.Instruction)
	}

	artifact := e.artifact(domain.ArtifactRefinedPrompt, req, len(scenes))
	artifact.AspectRatio = ratio
	artifact.Text = withDirective(text, ratio)
	return artifact, nil
}

// Text returns the current text artifact.
func (e *Engine) Text() (domain.Artifact, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.textSlot == nil {
		return domain.Artifact{}, false
	}
	return *e.textSlot, true
}

// Image returns the current image artifact.
func (e *Engine) Image() (domain.Artifact, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.imageSlot == nil {
		return domain.Artifact{}, false
	}
	return *e.imageSlot, true
}

func (e *Engine) completed(kind domain.ArtifactKind) ([]domain.Scene, error) {
	scenes := e.store.Query(scene.Completed)
	if len(scenes) == 0 {
		return nil, e.fail(kind, domain.ErrNoInput)
	}
	return scenes, nil
}

func (e *Engine) artifact(kind domain.ArtifactKind, req Request, count int) *domain.Artifact {
	return &domain.Artifact{
		Kind:        kind,
		Instruction: req.Instruction,
		Locale:      locale.Normalize(req.Locale),
		SceneCount:  count,
		CreatedAt:   e.now().UTC(),
	}
}

func (e *Engine) storeText(a *domain.Artifact) {
	e.mu.Lock()
	e.textSlot = a
	e.mu.Unlock()
	e.logger.Info().
		Str("kind", string(a.Kind)).
		Int("scenes", a.SceneCount).
		Msg("aggregate: text artifact ready")
}

func (e *Engine) fail(kind domain.ArtifactKind, err error) error {
	wrapped := fmt.Errorf("%s: %w", kind, err)
	e.notices.Report("aggregate", wrapped)
	return wrapped
}
