package aggregate

import (
	"fmt"
	"regexp"
	"strings"

	"visuallab/internal/domain"
	"visuallab/internal/locale"
)

var directivePattern = regexp.MustCompile(`\s*--ar\s+\S+`)

// sceneLines renders completed scenes as "[Scene n @ 12.50s] text".
func sceneLines(scenes []domain.Scene) string {
	var b strings.Builder
	for i, sc := range scenes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Scene %d @ %s] %s", i+1, sc.Timestamp.Label(), strings.TrimSpace(sc.ResultText))
	}
	return b.String()
}

func sequenceInstruction(kind domain.ArtifactKind, req Request, lines string) string {
	var b strings.Builder
	switch kind {
	case domain.ArtifactStoryArc:
		b.WriteString("You are a story editor. Using the scene descriptions below, in order, build a structured story arc ")
		b.WriteString("with these labeled sections: Inciting Incident, Rising Action, Climax, Falling Action, Resolution. ")
		b.WriteString("Reference scenes by their number where it helps.")
	default:
		b.WriteString("You are a screenwriter. Using the scene descriptions below, in order, write one dramatized ")
		b.WriteString("narrative that connects them into a single continuous story with vivid, cinematic prose.")
	}
	fmt.Fprintf(&b, "\nWrite the response in %s.", locale.DisplayName(req.Locale))
	if direction := strings.TrimSpace(req.Instruction); direction != "" {
		b.WriteString("\nAdditional direction from the user: ")
		b.WriteString(direction)
	}
	b.WriteString("\n\nScenes:\n")
	b.WriteString(lines)
	return b.String()
}

func refineInstruction(base, direction string, ratio domain.AspectRatio) string {
	var b strings.Builder
	b.WriteString("Refine the following image-generation prompt into one polished, detailed prompt.")
	if direction = strings.TrimSpace(direction); direction != "" {
		b.WriteString(" Apply this style direction: ")
		b.WriteString(direction)
		b.WriteString(".")
	}
	fmt.Fprintf(&b, " The image will be rendered at aspect ratio %s. Respond with the prompt text ONLY and end it with %s.", ratio, ratio.Directive())
	b.WriteString("\n\nPrompt: ")
	b.WriteString(base)
	return b.String()
}

// composePrompt is the model-free refinement: the base prompt with the style
// direction appended.
func composePrompt(base, direction string) string {
	base = strings.TrimRight(strings.TrimSpace(base), ".")
	if direction = strings.TrimSpace(direction); direction == "" {
		return base
	}
	return base + ". Style: " + direction
}

func stripDirective(text string) string {
	return strings.TrimSpace(directivePattern.ReplaceAllString(text, ""))
}

// withDirective makes text end with exactly one "--ar <ratio>" token.
func withDirective(text string, ratio domain.AspectRatio) string {
	return stripDirective(text) + " " + ratio.Directive()
}
