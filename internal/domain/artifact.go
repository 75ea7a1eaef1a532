package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArtifactKind enumerates aggregation products.
type ArtifactKind string

const (
	ArtifactNarrative     ArtifactKind = "narrative"
	ArtifactStoryArc      ArtifactKind = "story_arc"
	ArtifactRefinedPrompt ArtifactKind = "refined_prompt"
	ArtifactImage         ArtifactKind = "image"
)

// AspectRatio constrains the shape of synthesized images.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// DefaultAspectRatio is used when a request leaves the ratio empty.
const DefaultAspectRatio = AspectSquare

// ParseAspectRatio accepts only the enumerated ratios. An empty value selects
// the default.
func ParseAspectRatio(raw string) (AspectRatio, error) {
	switch AspectRatio(strings.TrimSpace(raw)) {
	case "":
		return DefaultAspectRatio, nil
	case AspectSquare:
		return AspectSquare, nil
	case AspectLandscape:
		return AspectLandscape, nil
	case AspectPortrait:
		return AspectPortrait, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAspectRatio, raw)
	}
}

// Directive renders the trailing token appended to refined prompts.
func (a AspectRatio) Directive() string {
	return "--ar " + string(a)
}

// GeneratedImage is an encoded image returned by the synthesis service.
type GeneratedImage struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Artifact is the output of one aggregation call. Text artifacts carry Text;
// image artifacts carry Image and the prompt that produced it in Text.
type Artifact struct {
	Kind        ArtifactKind    `json:"kind"`
	Text        string          `json:"text"`
	Image       *GeneratedImage `json:"image,omitempty"`
	Instruction string          `json:"instruction,omitempty"`
	AspectRatio AspectRatio     `json:"aspect_ratio,omitempty"`
	Locale      string          `json:"locale,omitempty"`
	SceneCount  int             `json:"scene_count"`
	CreatedAt   time.Time       `json:"created_at"`
}
