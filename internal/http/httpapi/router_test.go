package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visuallab/internal/aggregate"
	"visuallab/internal/analysis"
	"visuallab/internal/domain"
	"visuallab/internal/http/handlers"
	"visuallab/internal/media"
	"visuallab/internal/notice"
	"visuallab/internal/scene"
)

type stubText struct {
	mu           sync.Mutex
	instructions []string
}

func (s *stubText) Analyze(_ context.Context, instruction string, img *domain.ImagePayload) (string, error) {
	s.mu.Lock()
	s.instructions = append(s.instructions, instruction)
	s.mu.Unlock()
	if img != nil {
		return "a red kite over dunes", nil
	}
	return "Inciting Incident: the kite escapes.", nil
}

type stubImage struct{}

func (stubImage) Synthesize(_ context.Context, prompt string, aspect domain.AspectRatio) (*domain.GeneratedImage, error) {
	return &domain.GeneratedImage{MIMEType: "image/png", Data: []byte("png-bytes")}, nil
}

func newTestRouter(t *testing.T, rateLimit int) (http.Handler, *handlers.App, *stubText) {
	t.Helper()
	text := &stubText{}
	store := scene.NewStore()
	board := notice.NewBoard(0, nil)
	orch, err := analysis.New(analysis.Options{
		Store:    store,
		Client:   text,
		Notices:  board,
		Progress: analysis.ProgressConfig{Interval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	engine, err := aggregate.New(aggregate.Options{Store: store, Text: text, Image: stubImage{}, Notices: board})
	if err != nil {
		t.Fatalf("aggregate.New: %v", err)
	}
	app := handlers.NewApp(handlers.Deps{
		Store:        store,
		Orchestrator: orch,
		Engine:       engine,
		Capturer:     media.NewCapturer(media.Options{}),
		Notices:      board,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router := NewRouter(ctx, app, Options{
		Logger:          zerolog.New(io.Discard),
		AllowedOrigins:  []string{"*"},
		RateLimitPerMin: rateLimit,
		DefaultLocale:   "en",
	})
	return router, app, text
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T) *http.Request {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("media", "kite.png")
	_, _ = part.Write(img.Bytes())
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/v1/scenes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t, 0)
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestSceneToBundleFlow(t *testing.T) {
	router, app, text := newTestRouter(t, 0)

	if rec := serve(router, upload(t)); rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/v1/scenes/analyze?variant=prompt", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("analyze all status = %d", rec.Code)
	}
	app.Orchestrator.Wait()

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/v1/scenes?status=completed", nil))
	var listed struct {
		Scenes []domain.Scene `json:"scenes"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Scenes) != 1 || listed.Scenes[0].ResultText != "a red kite over dunes" {
		t.Fatalf("scenes = %+v", listed.Scenes)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/aggregate/story-arc", strings.NewReader(`{"instruction":"make it tense"}`))
	req.Header.Set("X-Locale", "id-ID")
	rec = serve(router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("story arc status = %d body=%s", rec.Code, rec.Body.String())
	}
	var arc domain.Artifact
	_ = json.NewDecoder(rec.Body).Decode(&arc)
	if arc.Kind != domain.ArtifactStoryArc || arc.Locale != "id" || arc.SceneCount != 1 {
		t.Fatalf("artifact = %+v", arc)
	}
	text.mu.Lock()
	last := text.instructions[len(text.instructions)-1]
	text.mu.Unlock()
	if !strings.Contains(last, "Indonesian") || !strings.Contains(last, "[Scene 1 @ static image] a red kite over dunes") {
		t.Fatalf("instruction = %q", last)
	}

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/v1/aggregate/image", strings.NewReader(`{"aspect_ratio":"9:16"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/v1/artifacts/image", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("image artifact = %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/v1/artifacts/bundle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("bundle status = %d", rec.Code)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "scenes.json,story-arc.txt,image.png,image-prompt.txt" {
		t.Fatalf("bundle files = %v", names)
	}
}

func TestDeleteSceneRoutes(t *testing.T) {
	router, app, _ := newTestRouter(t, 0)
	sc, _ := app.Store.Append(scene.NewScene(domain.Frame{Timestamp: domain.VideoTimestamp(1)}))

	if rec := serve(router, httptest.NewRequest(http.MethodDelete, "/v1/scenes/"+sc.ID, nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := serve(router, httptest.NewRequest(http.MethodDelete, "/v1/scenes/"+sc.ID, nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t, 1)
	if rec := serve(router, httptest.NewRequest(http.MethodGet, "/v1/notices", nil)); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := serve(router, httptest.NewRequest(http.MethodGet, "/v1/notices", nil)); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rec.Code)
	}
	if rec := serve(router, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("healthz must not be limited, status = %d", rec.Code)
	}
}
