// Package service wires the scene pipeline from configuration. Both binaries
// share it.
package service

import (
	"fmt"
	"net/http"
	"path/filepath"

	"visuallab/internal/aggregate"
	"visuallab/internal/analysis"
	"visuallab/internal/infra"
	"visuallab/internal/media"
	"visuallab/internal/notice"
	"visuallab/internal/providers/genai"
	"visuallab/internal/scene"
	"visuallab/internal/storage"
)

// Services is the assembled pipeline.
type Services struct {
	Store        *scene.Store
	Notices      *notice.Board
	Gemini       *genai.Client
	Orchestrator *analysis.Orchestrator
	Engine       *aggregate.Engine
	Capturer     *media.Capturer
	Files        *storage.FileStore
}

// Build constructs every component from cfg.
func Build(cfg *infra.Config, logger *infra.Logger) (*Services, error) {
	gemini, err := genai.NewClient(genai.Options{
		APIKey:            cfg.GeminiAPIKey,
		BaseURL:           cfg.GeminiBaseURL,
		TextModel:         cfg.GeminiTextModel,
		ImageModel:        cfg.GeminiImageModel,
		HTTPClient:        &http.Client{Timeout: cfg.GeminiTimeout},
		Logger:            logger,
		MaxRetries:        retries(cfg.RetryMax),
		BaseDelay:         cfg.RetryBaseDelay,
		RequestsPerMinute: cfg.GeminiRequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	store := scene.NewStore()
	board := notice.NewBoard(0, logger)

	orch, err := analysis.New(analysis.Options{
		Store:   store,
		Client:  gemini,
		Notices: board,
		Logger:  logger,
		Progress: analysis.ProgressConfig{
			Interval: cfg.ProgressInterval,
			Ceiling:  cfg.ProgressCeiling,
		},
	})
	if err != nil {
		return nil, err
	}

	engine, err := aggregate.New(aggregate.Options{
		Store:   store,
		Text:    gemini,
		Image:   gemini,
		Notices: board,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	capturer := media.NewCapturer(media.Options{
		FFmpegPath:   cfg.FFmpegPath,
		AllowedHosts: cfg.MediaSourceAllowlist,
		MaxBytes:     cfg.MaxUploadBytes,
		HTTPClient:   &http.Client{Timeout: cfg.GeminiTimeout},
		Logger:       logger,
	})

	exportPath := cfg.ExportPath
	if abs, err := filepath.Abs(exportPath); err == nil {
		exportPath = abs
	}
	files, err := storage.NewFileStore(exportPath)
	if err != nil {
		return nil, fmt.Errorf("export storage: %w", err)
	}

	return &Services{
		Store:        store,
		Notices:      board,
		Gemini:       gemini,
		Orchestrator: orch,
		Engine:       engine,
		Capturer:     capturer,
		Files:        files,
	}, nil
}

// retries maps the configured retry count onto the client option, where zero
// means the default and a negative value disables retries.
func retries(configured int) int {
	if configured == 0 {
		return -1
	}
	return configured
}
