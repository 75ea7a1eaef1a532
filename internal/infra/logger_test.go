package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Debug().Msg("hidden")
	logger.Info().Str("scene_id", "abc").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "visible" || entry["scene_id"] != "abc" || entry["service"] != "visuallab" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, "development", "warn")
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %v", logger.GetLevel())
	}
	if l := newLogger(&bytes.Buffer{}, "production", "nonsense"); l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("invalid override should keep default, got %v", l.GetLevel())
	}
}
