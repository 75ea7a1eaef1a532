// Package export renders artifacts and scenes into downloadable files.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"visuallab/internal/domain"
	"visuallab/internal/locale"
	"visuallab/pkg/zip"
)

// TextFilename is the download name for a text artifact.
func TextFilename(a domain.Artifact) string {
	return strings.ReplaceAll(string(a.Kind), "_", "-") + ".txt"
}

// TextDocument renders a text artifact as a plain-text file with a short
// header.
func TextDocument(a domain.Artifact) []byte {
	var b strings.Builder
	title := locale.Title(a.Locale, strings.ReplaceAll(string(a.Kind), "_", " "))
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len([]rune(title))))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Generated: %s\n", a.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Scenes: %d\n", a.SceneCount)
	if a.AspectRatio != "" {
		fmt.Fprintf(&b, "Aspect ratio: %s\n", a.AspectRatio)
	}
	if a.Instruction != "" {
		fmt.Fprintf(&b, "Direction: %s\n", a.Instruction)
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(a.Text))
	b.WriteString("\n")
	return []byte(b.String())
}

// SceneRecord is the exported form of a scene. Image bytes are left out.
type SceneRecord struct {
	Index      int                    `json:"index"`
	ID         string                 `json:"id"`
	Timestamp  domain.SourceTimestamp `json:"timestamp"`
	Status     domain.SceneStatus     `json:"status"`
	Variant    domain.Variant         `json:"variant,omitempty"`
	ResultText string                 `json:"result_text"`
	LastError  string                 `json:"last_error,omitempty"`
}

// SceneRecords converts scenes for export, keeping their order.
func SceneRecords(scenes []domain.Scene) []SceneRecord {
	out := make([]SceneRecord, len(scenes))
	for i, sc := range scenes {
		out[i] = SceneRecord{
			Index:      i + 1,
			ID:         sc.ID,
			Timestamp:  sc.Timestamp,
			Status:     sc.Status,
			Variant:    sc.Variant,
			ResultText: sc.ResultText,
			LastError:  sc.LastError,
		}
	}
	return out
}

// Bundle packs the scene prompts and whichever artifacts exist into one zip.
func Bundle(scenes []domain.Scene, text, image *domain.Artifact, now time.Time) ([]byte, error) {
	records, err := json.MarshalIndent(SceneRecords(scenes), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode scenes: %w", err)
	}
	assets := []zip.Asset{{Filename: "scenes.json", MIME: "application/json", Data: records}}
	if text != nil {
		assets = append(assets, zip.Asset{Filename: TextFilename(*text), MIME: "text/plain", Data: TextDocument(*text)})
	}
	if image != nil && image.Image != nil {
		assets = append(assets,
			zip.Asset{Filename: "image" + ImageExtension(image.Image.MIMEType), MIME: image.Image.MIMEType, Data: image.Image.Data},
			zip.Asset{Filename: "image-prompt.txt", MIME: "text/plain", Data: []byte(image.Text + "\n")},
		)
	}
	return zip.ArchiveAssets(assets, now)
}

// ImageExtension maps an image MIME type to a file extension.
func ImageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
