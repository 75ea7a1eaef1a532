package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SceneStatus enumerates scene analysis lifecycle states.
type SceneStatus string

const (
	SceneStatusPending   SceneStatus = "pending"
	SceneStatusAnalyzing SceneStatus = "analyzing"
	SceneStatusCompleted SceneStatus = "completed"
	SceneStatusError     SceneStatus = "error"
)

const (
	// PendingResultText marks a scene that has not produced any analysis yet.
	PendingResultText = "Ready for analysis..."
	// FallbackResultText is returned by the text client when the service
	// answers successfully but carries no text.
	FallbackResultText = "Failed to get a response."
)

// Variant names an analysis mode and selects the instruction sent to the
// text model.
type Variant string

const (
	VariantPrompt   Variant = "prompt"
	VariantDirector Variant = "director"
	VariantAudio    Variant = "audio"
)

// ParseVariant sanitizes free-form input into a supported variant. An empty
// value selects the descriptive prompt variant.
func ParseVariant(raw string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(VariantPrompt):
		return VariantPrompt, nil
	case string(VariantDirector), "director_notes", "director-notes":
		return VariantDirector, nil
	case string(VariantAudio), "sfx", "audio_notes", "audio-notes":
		return VariantAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, raw)
	}
}

// SourceTimestamp locates a frame inside its source media. Still images carry
// the static sentinel instead of an offset.
type SourceTimestamp struct {
	Seconds float64
	Static  bool
}

const staticTimestamp = "static"

// StaticTimestamp returns the sentinel used for non-video sources.
func StaticTimestamp() SourceTimestamp {
	return SourceTimestamp{Static: true}
}

// VideoTimestamp returns an offset rounded to two decimals, the precision
// frames are captured at.
func VideoTimestamp(seconds float64) SourceTimestamp {
	if seconds < 0 {
		seconds = 0
	}
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(seconds, 'f', 2, 64), 64)
	return SourceTimestamp{Seconds: rounded}
}

// ParseTimestamp accepts "static", an empty string (treated as offset zero),
// or a decimal number of seconds.
func ParseTimestamp(raw string) (SourceTimestamp, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, staticTimestamp) {
		return StaticTimestamp(), nil
	}
	if raw == "" {
		return VideoTimestamp(0), nil
	}
	seconds, err := strconv.ParseFloat(strings.TrimSuffix(raw, "s"), 64)
	if err != nil {
		return SourceTimestamp{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return SourceTimestamp{}, fmt.Errorf("invalid timestamp %q: not a finite offset", raw)
	}
	if seconds < 0 {
		return SourceTimestamp{}, fmt.Errorf("invalid timestamp %q: negative offset", raw)
	}
	return VideoTimestamp(seconds), nil
}

func (t SourceTimestamp) String() string {
	if t.Static {
		return staticTimestamp
	}
	return strconv.FormatFloat(t.Seconds, 'f', 2, 64)
}

// Label renders the timestamp for narrative markers.
func (t SourceTimestamp) Label() string {
	if t.Static {
		return "static image"
	}
	return t.String() + "s"
}

func (t SourceTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *SourceTimestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var seconds float64
		if errNum := json.Unmarshal(data, &seconds); errNum != nil {
			return err
		}
		*t = VideoTimestamp(seconds)
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ImagePayload is a still image encoded for transmission to the generative
// service.
type ImagePayload struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"-"`
}

// IsZero reports whether the payload carries no image data.
func (p *ImagePayload) IsZero() bool {
	return p == nil || p.Data == ""
}

// Scene is one still frame tracked through the analysis lifecycle.
type Scene struct {
	ID         string          `json:"id"`
	Timestamp  SourceTimestamp `json:"timestamp"`
	Thumbnail  string          `json:"thumbnail"`
	Payload    ImagePayload    `json:"payload"`
	ResultText string          `json:"result_text"`
	Variant    Variant         `json:"variant,omitempty"`
	Status     SceneStatus     `json:"status"`
	Progress   int             `json:"progress"`
	Attempt    int             `json:"attempt"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ScenePatch is a partial update. Nil fields are left untouched.
type ScenePatch struct {
	ResultText *string
	Variant    *Variant
	Status     *SceneStatus
	Progress   *int
	LastError  *string
}

// Valid reports whether the patch may be applied. Only BeginAnalysis moves a
// scene into the analyzing state.
func (p ScenePatch) Valid() bool {
	if p.Status == nil {
		return true
	}
	switch *p.Status {
	case SceneStatusPending, SceneStatusCompleted, SceneStatusError:
		return true
	}
	return false
}

// Apply copies every set field onto the scene. Progress follows the status:
// completed scenes sit at 100, pending and failed ones at 0, and an explicit
// progress is honored only while analyzing. Invalid patches change nothing.
func (p ScenePatch) Apply(s *Scene) {
	if !p.Valid() {
		return
	}
	if p.ResultText != nil {
		s.ResultText = *p.ResultText
	}
	if p.Variant != nil {
		s.Variant = *p.Variant
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.LastError != nil {
		s.LastError = *p.LastError
	}
	switch s.Status {
	case SceneStatusCompleted:
		s.Progress = 100
	case SceneStatusAnalyzing:
		if p.Progress != nil {
			s.Progress = min(clampProgress(*p.Progress), 99)
		}
	default:
		s.Progress = 0
	}
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Frame is the capture collaborator's output: one still ready to be admitted
// as a scene.
type Frame struct {
	Timestamp SourceTimestamp
	Thumbnail string
	Payload   ImagePayload
}
