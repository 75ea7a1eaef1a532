package genai

import (
	"context"
	"fmt"
	"strings"

	"visuallab/internal/domain"
)

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// Analyze sends one instruction, optionally with an attached image, to the
// text model and returns the model's text. A successful response with no text
// yields domain.FallbackResultText rather than an error.
func (c *Client) Analyze(ctx context.Context, instruction string, image *domain.ImagePayload) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", fmt.Errorf("%w: instruction is empty", domain.ErrInvalidPrompt)
	}

	parts := []geminiPart{{Text: instruction}}
	if !image.IsZero() {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mimeType, Data: image.Data}})
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Parts: parts}},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, "analyze", c.modelPath(c.textModel, "generateContent"), payload, &response); err != nil {
		return "", err
	}

	text := extractText(response)
	if text == "" {
		c.logger.Debug().
			Str("model", c.textModel).
			Msg("genai: response carried no text, using fallback")
		return domain.FallbackResultText, nil
	}
	return text, nil
}

// extractText returns the first candidate's first non-blank text part.
func extractText(resp geminiGenerateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text := strings.TrimSpace(part.Text); text != "" {
			return text
		}
	}
	return ""
}
