package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"visuallab/internal/domain"
)

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio"`
}

type imagenPredictRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

type imagenPredictResponse struct {
	Predictions []imagenPrediction `json:"predictions"`
}

const emptyImageMessage = "the image service returned no image; the prompt may have been blocked by safety filtering"

// Synthesize asks the image model for exactly one image matching prompt.
func (c *Client) Synthesize(ctx context.Context, prompt string, aspect domain.AspectRatio) (*domain.GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is empty", domain.ErrInvalidPrompt)
	}
	ratio, err := domain.ParseAspectRatio(string(aspect))
	if err != nil {
		return nil, err
	}

	payload := imagenPredictRequest{
		Instances:  []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{SampleCount: 1, AspectRatio: string(ratio)},
	}

	var response imagenPredictResponse
	if err := c.invokeGemini(ctx, "synthesize", c.modelPath(c.imageModel, "predict"), payload, &response); err != nil {
		return nil, err
	}

	if len(response.Predictions) == 0 || response.Predictions[0].BytesBase64Encoded == "" {
		return nil, &ServiceError{Kind: KindEmptyResult, Message: emptyImageMessage, Attempts: 1}
	}

	first := response.Predictions[0]
	data, err := base64.StdEncoding.DecodeString(first.BytesBase64Encoded)
	if err != nil {
		return nil, &ServiceError{Kind: KindServiceError, Message: "decode image bytes", Err: err, Attempts: 1}
	}

	c.logger.Debug().
		Str("model", c.imageModel).
		Str("aspect_ratio", string(ratio)).
		Int("bytes", len(data)).
		Msg("genai: synthesized image")

	return &domain.GeneratedImage{
		MIMEType: firstNonEmpty(first.MimeType, "image/png"),
		Data:     data,
	}, nil
}
