package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"visuallab/internal/domain"
	"visuallab/internal/scene"
)

type sceneSourceRequest struct {
	SourceURL string `json:"source_url"`
	Timestamp string `json:"timestamp"`
}

type scenesResponse struct {
	Scenes []domain.Scene `json:"scenes"`
}

func (a *App) ListScenes(w http.ResponseWriter, r *http.Request) {
	var pred scene.Predicate
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		pred = scene.WithStatus(domain.SceneStatus(status))
	}
	a.json(w, http.StatusOK, scenesResponse{Scenes: a.Store.Query(pred)})
}

// CreateScenes captures one frame per requested timestamp from an uploaded
// file or a remote source and appends the frames as pending scenes.
func (a *App) CreateScenes(w http.ResponseWriter, r *http.Request) {
	reset, _ := strconv.ParseBool(r.URL.Query().Get("reset"))

	var frames []domain.Frame
	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		frames, err = a.framesFromUpload(w, r)
	case "application/json", "":
		frames, err = a.framesFromSource(r)
	default:
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "use multipart/form-data or application/json")
		return
	}
	if err != nil {
		if errors.Is(err, errBadPayload) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Notices.Report("capture", err)
		a.fail(w, err)
		return
	}

	if reset {
		a.Store.Clear()
	}
	created := make([]domain.Scene, 0, len(frames))
	for _, f := range frames {
		sc, ok := a.Store.Append(scene.NewScene(f))
		if ok {
			created = append(created, sc)
		}
	}
	a.Logger.Info().Int("scenes", len(created)).Bool("reset", reset).Msg("scenes captured")
	a.json(w, http.StatusCreated, scenesResponse{Scenes: created})
}

var errBadPayload = errors.New("invalid payload")

func (a *App) framesFromUpload(w http.ResponseWriter, r *http.Request) ([]domain.Frame, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	file, header, err := r.FormFile("media")
	if err != nil {
		return nil, fmt.Errorf("%w: media file is required", errBadPayload)
	}
	defer func() {
		_ = file.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(file, a.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read media: %v", errBadPayload, err)
	}

	var frames []domain.Frame
	for _, ts := range timestamps(r.MultipartForm.Value["timestamp"]) {
		f, err := a.Capturer.Capture(r.Context(), header.Filename, bytes.NewReader(raw), ts)
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

func (a *App) framesFromSource(r *http.Request) ([]domain.Frame, error) {
	var req sceneSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errBadPayload
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return nil, fmt.Errorf("%w: source_url is required", errBadPayload)
	}
	f, err := a.Capturer.Fetch(r.Context(), req.SourceURL, req.Timestamp)
	if err != nil {
		return nil, err
	}
	return []domain.Frame{f}, nil
}

// timestamps flattens repeated or comma separated timestamp fields. No value
// means the start of a video.
func timestamps(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

func (a *App) ClearScenes(w http.ResponseWriter, r *http.Request) {
	a.Store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) DeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Store.RemoveByID(id) {
		a.fail(w, fmt.Errorf("scene %s: %w", id, domain.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type analyzeResponse struct {
	ID      string `json:"id"`
	Started bool   `json:"started"`
}

// AnalyzeScene starts analysis of one scene in the background. A scene that
// is already being analyzed is left alone.
func (a *App) AnalyzeScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variant, err := domain.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		a.fail(w, err)
		return
	}
	started, err := a.Orchestrator.Start(r.Context(), id, variant)
	if err != nil {
		a.fail(w, err)
		return
	}
	code := http.StatusAccepted
	if !started {
		code = http.StatusOK
	}
	a.json(w, code, analyzeResponse{ID: id, Started: started})
}

type analyzeAllResponse struct {
	Started []string `json:"started"`
}

func (a *App) AnalyzeAll(w http.ResponseWriter, r *http.Request) {
	variant, err := domain.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		a.fail(w, err)
		return
	}
	ids, err := a.Orchestrator.AnalyzeAll(r.Context(), variant)
	if err != nil {
		a.fail(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	a.json(w, http.StatusAccepted, analyzeAllResponse{Started: ids})
}
