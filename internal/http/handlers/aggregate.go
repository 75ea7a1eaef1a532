package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"visuallab/internal/aggregate"
	"visuallab/internal/domain"
	"visuallab/internal/middleware"
)

type aggregateRequest struct {
	Instruction string `json:"instruction"`
	AspectRatio string `json:"aspect_ratio"`
	Locale      string `json:"locale"`
}

type aggregateFunc func(context.Context, aggregate.Request) (*domain.Artifact, error)

func (a *App) Narrative(w http.ResponseWriter, r *http.Request) {
	a.aggregate(w, r, a.Engine.Narrative)
}

func (a *App) StoryArc(w http.ResponseWriter, r *http.Request) {
	a.aggregate(w, r, a.Engine.StoryArc)
}

func (a *App) RefinedPrompt(w http.ResponseWriter, r *http.Request) {
	a.aggregate(w, r, a.Engine.RefinedPrompt)
}

func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	a.aggregate(w, r, a.Engine.GenerateImage)
}

// aggregate decodes the optional request body and runs fn. The locale falls
// back to the one negotiated for the request.
func (a *App) aggregate(w http.ResponseWriter, r *http.Request, fn aggregateFunc) {
	var body aggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	loc := strings.TrimSpace(body.Locale)
	if loc == "" {
		loc = middleware.LocaleFromContext(r.Context())
	}
	artifact, err := fn(r.Context(), aggregate.Request{
		Instruction: strings.TrimSpace(body.Instruction),
		AspectRatio: domain.AspectRatio(strings.TrimSpace(body.AspectRatio)),
		Locale:      loc,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, artifact)
}
