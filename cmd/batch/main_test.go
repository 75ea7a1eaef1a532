package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visuallab/internal/infra"
	"visuallab/internal/service"
)

func fakeGemini(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			body, _ := io.ReadAll(r.Body)
			text := "a harbor at dawn"
			if strings.Contains(string(body), "Scenes:") {
				text = "The harbor wakes."
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
			})
		case strings.HasSuffix(r.URL.Path, ":predict"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"predictions": []any{map[string]any{
					"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("img")),
					"mimeType":           "image/png",
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestRunWritesExport(t *testing.T) {
	srv := fakeGemini(t)
	defer srv.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "harbor.png")
	var img bytes.Buffer
	_ = png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 30, 20)))
	if err := os.WriteFile(input, img.Bytes(), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := &infra.Config{
		GeminiAPIKey:     "test-key",
		GeminiBaseURL:    srv.URL,
		GeminiTimeout:    5 * time.Second,
		RetryMax:         1,
		RetryBaseDelay:   time.Millisecond,
		ProgressInterval: time.Millisecond,
		ProgressCeiling:  95,
		MaxUploadBytes:   1 << 20,
		ExportPath:       filepath.Join(dir, "exports"),
	}
	logger := zerolog.New(io.Discard)
	svc, err := service.Build(cfg, &logger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	err = run(context.Background(), svc, options{
		input:       input,
		variant:     "prompt",
		story:       "narrative",
		aspect:      "16:9",
		locale:      "en",
		synthesize:  true,
		out:         "run",
		concurrency: 2,
	}, &logger)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	for _, name := range []string{"scenes.json", "narrative.txt", "image.png", "bundle.zip"} {
		if _, err := os.Stat(filepath.Join(cfg.ExportPath, "run", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	narrative, _ := os.ReadFile(filepath.Join(cfg.ExportPath, "run", "narrative.txt"))
	if !strings.Contains(string(narrative), "The harbor wakes.") {
		t.Fatalf("narrative = %q", narrative)
	}
}

func TestRunRejectsInvalidAspect(t *testing.T) {
	if err := run(context.Background(), &service.Services{}, options{variant: "prompt", aspect: "2:1"}, nil); err == nil {
		t.Fatal("expected aspect ratio error")
	}
}

func TestSplitTimestamps(t *testing.T) {
	got := splitTimestamps(" 1, ,2.5s,static ")
	if strings.Join(got, "|") != "1|2.5s|static" {
		t.Fatalf("got %v", got)
	}
}
