package analysis

import (
	"fmt"

	"visuallab/internal/domain"
)

var instructions = map[domain.Variant]string{
	domain.VariantPrompt: "Analyze this image and generate a high-quality, detailed image-generation prompt " +
		"describing subject, setting, lighting, camera angle, and style. Respond with the prompt text ONLY.",
	domain.VariantDirector: "Act as a film director reviewing this frame. Write concise director notes covering " +
		"shot type, camera movement, lighting, mood, and pacing for this moment. Respond with the notes text ONLY.",
	domain.VariantAudio: "Act as a sound designer. For the scene in this image, suggest the ambience, specific sound " +
		"effects, and the mood of any music that would fit. Respond with the suggestions text ONLY.",
}

// InstructionFor returns the instruction sent with a frame for variant.
func InstructionFor(variant domain.Variant) (string, error) {
	if variant == "" {
		variant = domain.VariantPrompt
	}
	text, ok := instructions[variant]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidVariant, variant)
	}
	return text, nil
}
