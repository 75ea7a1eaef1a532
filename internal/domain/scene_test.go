package domain

import (
	"strings"
	"testing"
)

func TestParseTimestampAcceptsOffsets(t *testing.T) {
	cases := map[string]string{
		"":       "0.00",
		"12":     "12.00",
		"3.456s": "3.46",
		"STATIC": "static",
	}
	for raw, want := range cases {
		got, err := ParseTimestamp(raw)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) returned error: %v", raw, err)
		}
		if got.String() != want {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseTimestampRejectsNonFiniteOffsets(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "infinity", "1e400"} {
		if ts, err := ParseTimestamp(raw); err == nil {
			t.Errorf("ParseTimestamp(%q) = %s, want error", raw, ts)
		}
	}
	if _, err := ParseTimestamp("-1"); err == nil || !strings.Contains(err.Error(), "negative") {
		t.Fatalf("negative offset error = %v", err)
	}
}

func TestScenePatchValid(t *testing.T) {
	for status, want := range map[SceneStatus]bool{
		SceneStatusPending:   true,
		SceneStatusCompleted: true,
		SceneStatusError:     true,
		SceneStatusAnalyzing: false,
		"":                   false,
	} {
		st := status
		if got := (ScenePatch{Status: &st}).Valid(); got != want {
			t.Errorf("Valid() with status %q = %v, want %v", status, got, want)
		}
	}
	if !(ScenePatch{}).Valid() {
		t.Fatal("empty patch should be valid")
	}
}
