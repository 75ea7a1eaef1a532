package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"visuallab/internal/aggregate"
	"visuallab/internal/analysis"
	"visuallab/internal/domain"
	"visuallab/internal/infra"
	"visuallab/internal/media"
	"visuallab/internal/notice"
	"visuallab/internal/scene"
	"visuallab/internal/storage"
)

// App carries the services the HTTP handlers talk to.
type App struct {
	Store          *scene.Store
	Orchestrator   *analysis.Orchestrator
	Engine         *aggregate.Engine
	Capturer       *media.Capturer
	Notices        *notice.Board
	Files          *storage.FileStore
	Logger         *infra.Logger
	MaxUploadBytes int64
	Now            func() time.Time
}

// Deps lists what NewApp wires together.
type Deps struct {
	Store          *scene.Store
	Orchestrator   *analysis.Orchestrator
	Engine         *aggregate.Engine
	Capturer       *media.Capturer
	Notices        *notice.Board
	Files          *storage.FileStore
	Logger         *infra.Logger
	MaxUploadBytes int64
}

func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	notices := d.Notices
	if notices == nil {
		notices = notice.NewBoard(0, logger)
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &App{
		Store:          d.Store,
		Orchestrator:   d.Orchestrator,
		Engine:         d.Engine,
		Capturer:       d.Capturer,
		Notices:        notices,
		Files:          d.Files,
		Logger:         logger,
		MaxUploadBytes: maxUpload,
		Now:            time.Now,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

type userMessager interface {
	UserMessage() string
}

// fail maps a domain error onto a status code and a stable error code.
func (a *App) fail(w http.ResponseWriter, err error) {
	message := err.Error()
	var um userMessager
	if errors.As(err, &um) {
		message = um.UserMessage()
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", message)
	case errors.Is(err, domain.ErrInvalidPrompt),
		errors.Is(err, domain.ErrInvalidAspectRatio),
		errors.Is(err, domain.ErrInvalidVariant):
		a.error(w, http.StatusBadRequest, "bad_request", message)
	case errors.Is(err, domain.ErrNoInput):
		a.error(w, http.StatusUnprocessableEntity, "no_input", message)
	case errors.Is(err, domain.ErrCapture):
		a.error(w, http.StatusUnprocessableEntity, "capture_failed", message)
	case errors.Is(err, domain.ErrEmptyResult):
		a.error(w, http.StatusBadGateway, "empty_result", message)
	case errors.Is(err, domain.ErrRateLimited):
		a.error(w, http.StatusBadGateway, "rate_limited", message)
	case errors.Is(err, domain.ErrServiceFailure):
		a.error(w, http.StatusBadGateway, "service_error", message)
	default:
		a.Logger.Error().Err(err).Msg("unhandled request error")
		a.error(w, http.StatusInternalServerError, "internal", "unexpected error")
	}
}
