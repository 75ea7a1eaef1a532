package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"visuallab/internal/domain"
)

const (
	defaultThumbnailWidth = 320
	defaultPayloadEdge    = 1280
	payloadQuality        = 90
	defaultMaxPixels      = 50_000_000
	maxRedirects          = 10
)

// encodeFrame decodes raw image bytes and renders the PNG thumbnail data URL
// plus the JPEG payload sent to the model.
func (c *Capturer) encodeFrame(source string, raw []byte, ts domain.SourceTimestamp) (domain.Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return domain.Frame{}, captureErr(source, "unsupported or corrupt image", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(c.maxPixels) {
		return domain.Frame{}, captureErr(source, fmt.Sprintf("image dimensions %dx%d too large", cfg.Width, cfg.Height), nil)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return domain.Frame{}, captureErr(source, "unsupported or corrupt image", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return domain.Frame{}, captureErr(source, "image has no pixels", nil)
	}

	thumb, err := encodePNG(scaleToWidth(img, c.thumbnailWidth))
	if err != nil {
		return domain.Frame{}, captureErr(source, "encode thumbnail", err)
	}
	payload, err := encodeJPEG(fitWithin(img, c.payloadEdge))
	if err != nil {
		return domain.Frame{}, captureErr(source, "encode payload", err)
	}

	c.logger.Debug().
		Str("source", source).
		Str("format", format).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Str("timestamp", ts.String()).
		Msg("media: frame captured")

	return domain.Frame{
		Timestamp: ts,
		Thumbnail: "data:image/png;base64," + base64.StdEncoding.EncodeToString(thumb),
		Payload: domain.ImagePayload{
			MIMEType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(payload),
		},
	}, nil
}

func scaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	if width <= 0 || b.Dx() <= width {
		return src
	}
	height := max(1, b.Dy()*width/b.Dx())
	return scale(src, width, height)
}

func fitWithin(src image.Image, edge int) image.Image {
	b := src.Bounds()
	longest := max(b.Dx(), b.Dy())
	if edge <= 0 || longest <= edge {
		return src
	}
	w := max(1, b.Dx()*edge/longest)
	h := max(1, b.Dy()*edge/longest)
	return scale(src, w, h)
}

func scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: payloadQuality}); err != nil {
		return nil, fmt.Errorf("jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
