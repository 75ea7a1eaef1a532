package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"

	"visuallab/internal/domain"
	"visuallab/internal/export"
)

func (a *App) TextArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, ok := a.Engine.Text()
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "no text artifact yet")
		return
	}
	a.json(w, http.StatusOK, artifact)
}

// DownloadText serves the current text artifact as a plain-text attachment.
func (a *App) DownloadText(w http.ResponseWriter, r *http.Request) {
	artifact, ok := a.Engine.Text()
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "no text artifact yet")
		return
	}
	a.attachment(w, "text/plain; charset=utf-8", export.TextFilename(artifact), export.TextDocument(artifact))
}

func (a *App) ImageArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, ok := a.Engine.Image()
	if !ok || artifact.Image == nil {
		a.error(w, http.StatusNotFound, "not_found", "no generated image yet")
		return
	}
	img := artifact.Image
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// Bundle zips the scene prompts with whichever artifacts exist.
func (a *App) Bundle(w http.ResponseWriter, r *http.Request) {
	data, err := a.bundle()
	if err != nil {
		a.Logger.Error().Err(err).Msg("bundle export failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}
	a.attachment(w, "application/zip", "visuallab-bundle.zip", data)
}

type exportResponse struct {
	Files []string `json:"files"`
}

// ExportArtifacts writes the bundle and the current artifacts under the export
// directory.
func (a *App) ExportArtifacts(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, http.StatusNotImplemented, "export_disabled", "no export directory configured")
		return
	}
	dir := a.Now().UTC().Format("20060102-150405")
	ctx := r.Context()
	var files []string

	scenesKey, err := a.Files.WriteJSON(ctx, path.Join(dir, "scenes.json"), export.SceneRecords(a.Store.List()))
	if err != nil {
		a.exportFailed(w, err)
		return
	}
	files = append(files, scenesKey)

	if text, ok := a.Engine.Text(); ok {
		key, err := a.Files.Write(ctx, path.Join(dir, export.TextFilename(text)), export.TextDocument(text))
		if err != nil {
			a.exportFailed(w, err)
			return
		}
		files = append(files, key)
	}
	if img, ok := a.Engine.Image(); ok && img.Image != nil {
		key, err := a.Files.Write(ctx, path.Join(dir, "image"+export.ImageExtension(img.Image.MIMEType)), img.Image.Data)
		if err != nil {
			a.exportFailed(w, err)
			return
		}
		files = append(files, key)
	}

	data, err := a.bundle()
	if err != nil {
		a.exportFailed(w, err)
		return
	}
	key, err := a.Files.Write(ctx, path.Join(dir, "bundle.zip"), data)
	if err != nil {
		a.exportFailed(w, err)
		return
	}
	files = append(files, key)

	a.Logger.Info().Str("dir", dir).Int("files", len(files)).Msg("artifacts exported")
	a.json(w, http.StatusCreated, exportResponse{Files: files})
}

func (a *App) bundle() ([]byte, error) {
	var text, image *domain.Artifact
	if t, ok := a.Engine.Text(); ok {
		text = &t
	}
	if i, ok := a.Engine.Image(); ok {
		image = &i
	}
	return export.Bundle(a.Store.List(), text, image, a.Now())
}

func (a *App) exportFailed(w http.ResponseWriter, err error) {
	a.Logger.Error().Err(err).Msg("artifact export failed")
	a.Notices.Report("export", err)
	a.error(w, http.StatusInternalServerError, "internal", "failed to export artifacts")
}

func (a *App) attachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
