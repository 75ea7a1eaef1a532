package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"visuallab/internal/aggregate"
	"visuallab/internal/domain"
	"visuallab/internal/export"
	"visuallab/internal/infra"
	"visuallab/internal/scene"
	"visuallab/internal/service"
)

type options struct {
	input       string
	at          string
	variant     string
	story       string
	instruction string
	aspect      string
	locale      string
	synthesize  bool
	out         string
	concurrency int
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "image or video file, or an http(s) URL on an allowed host")
	flag.StringVar(&opts.at, "at", "0", "comma separated video timestamps in seconds")
	flag.StringVar(&opts.variant, "variant", "prompt", "analysis variant: prompt, director or audio")
	flag.StringVar(&opts.story, "story", "narrative", "text artifact to build: narrative, story-arc, refined-prompt or none")
	flag.StringVar(&opts.instruction, "instruction", "", "extra direction for the text artifact and image")
	flag.StringVar(&opts.aspect, "aspect", "1:1", "image aspect ratio: 1:1, 16:9 or 9:16")
	flag.StringVar(&opts.locale, "locale", "", "output language, defaults to DEFAULT_LOCALE")
	flag.BoolVar(&opts.synthesize, "synthesize", false, "also generate an image from the newest scene")
	flag.StringVar(&opts.out, "out", "", "directory under EXPORT_PATH, defaults to a timestamp")
	flag.IntVar(&opts.concurrency, "concurrency", 2, "scenes analyzed at once")
	flag.Parse()

	if strings.TrimSpace(opts.input) == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if opts.locale == "" {
		opts.locale = cfg.DefaultLocale
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Build(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to build services")
	}

	if err := run(ctx, svc, opts, &logger); err != nil {
		logger.Error().Err(err).Msg("batch: failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *service.Services, opts options, logger *infra.Logger) error {
	variant, err := domain.ParseVariant(opts.variant)
	if err != nil {
		return err
	}
	ratio, err := domain.ParseAspectRatio(opts.aspect)
	if err != nil {
		return err
	}

	frames, err := capture(ctx, svc, opts)
	if err != nil {
		return err
	}
	for _, f := range frames {
		svc.Store.Append(scene.NewScene(f))
	}
	logger.Info().Int("frames", len(frames)).Str("input", opts.input).Msg("batch: frames captured")

	failed, err := svc.Orchestrator.RunAll(ctx, variant, opts.concurrency)
	if err != nil {
		return err
	}
	logger.Info().
		Int("completed", len(svc.Store.Query(scene.Completed))).
		Int("failed", failed).
		Msg("batch: analysis finished")

	req := aggregate.Request{Instruction: opts.instruction, AspectRatio: ratio, Locale: opts.locale}
	var text, image *domain.Artifact
	switch opts.story {
	case "narrative":
		text, err = svc.Engine.Narrative(ctx, req)
	case "story-arc", "story_arc":
		text, err = svc.Engine.StoryArc(ctx, req)
	case "refined-prompt", "refined_prompt":
		text, err = svc.Engine.RefinedPrompt(ctx, req)
	case "none", "":
	default:
		return fmt.Errorf("unknown -story %q", opts.story)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("batch: text artifact skipped")
	}
	if opts.synthesize {
		image, err = svc.Engine.GenerateImage(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Msg("batch: image skipped")
		}
	}

	return write(ctx, svc, opts, text, image, logger)
}

func capture(ctx context.Context, svc *service.Services, opts options) ([]domain.Frame, error) {
	stamps := splitTimestamps(opts.at)
	if strings.HasPrefix(opts.input, "http://") || strings.HasPrefix(opts.input, "https://") {
		frames := make([]domain.Frame, 0, len(stamps))
		for _, ts := range stamps {
			f, err := svc.Capturer.Fetch(ctx, opts.input, ts)
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
			if f.Timestamp.Static {
				break
			}
		}
		return frames, nil
	}
	return svc.Capturer.CaptureFile(ctx, opts.input, stamps)
}

func splitTimestamps(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func write(ctx context.Context, svc *service.Services, opts options, text, image *domain.Artifact, logger *infra.Logger) error {
	dir := opts.out
	if dir == "" {
		dir = time.Now().UTC().Format("20060102-150405")
	}
	scenes := svc.Store.List()

	written := []string{}
	key, err := svc.Files.WriteJSON(ctx, path.Join(dir, "scenes.json"), export.SceneRecords(scenes))
	if err != nil {
		return err
	}
	written = append(written, key)

	if text != nil {
		key, err := svc.Files.Write(ctx, path.Join(dir, export.TextFilename(*text)), export.TextDocument(*text))
		if err != nil {
			return err
		}
		written = append(written, key)
	}
	if image != nil && image.Image != nil {
		key, err := svc.Files.Write(ctx, path.Join(dir, "image"+export.ImageExtension(image.Image.MIMEType)), image.Image.Data)
		if err != nil {
			return err
		}
		written = append(written, key)
	}

	bundle, err := export.Bundle(scenes, text, image, time.Now())
	if err != nil {
		return err
	}
	key, err = svc.Files.Write(ctx, path.Join(dir, "bundle.zip"), bundle)
	if err != nil {
		return err
	}
	written = append(written, key)

	location, err := svc.Files.Path(dir)
	if err != nil {
		return err
	}
	logger.Info().
		Str("dir", location).
		Strs("files", written).
		Msg("batch: export written")
	return nil
}
