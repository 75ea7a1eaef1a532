// Package media turns uploaded or fetched images and videos into still
// frames ready to be admitted as scenes.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visuallab/internal/domain"
	"visuallab/internal/infra"
)

// Options configures a Capturer.
type Options struct {
	FFmpegPath     string
	AllowedHosts   []string
	MaxBytes       int64
	ThumbnailWidth int
	PayloadEdge    int
	// MaxPixels bounds the decoded canvas of a still image.
	MaxPixels  int
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Runner replaces process execution. Used by tests.
	Runner CommandRunner
}

// Capturer produces frames from still images and from videos at a position.
type Capturer struct {
	ffmpegPath     string
	allowedHosts   []string
	maxBytes       int64
	thumbnailWidth int
	payloadEdge    int
	maxPixels      int
	httpClient     *http.Client
	logger         *infra.Logger
	run            CommandRunner
}

// NewCapturer returns a Capturer with defaults applied.
func NewCapturer(opts Options) *Capturer {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	c := &Capturer{
		ffmpegPath:     opts.FFmpegPath,
		maxBytes:       opts.MaxBytes,
		thumbnailWidth: opts.ThumbnailWidth,
		payloadEdge:    opts.PayloadEdge,
		maxPixels:      opts.MaxPixels,
		logger:         logger,
		run:            opts.Runner,
	}
	if c.ffmpegPath == "" {
		c.ffmpegPath = "ffmpeg"
	}
	if c.maxBytes <= 0 {
		c.maxBytes = 64 << 20
	}
	if c.thumbnailWidth <= 0 {
		c.thumbnailWidth = defaultThumbnailWidth
	}
	if c.payloadEdge <= 0 {
		c.payloadEdge = defaultPayloadEdge
	}
	if c.maxPixels <= 0 {
		c.maxPixels = defaultMaxPixels
	}
	// Redirects are re-checked against the allowlist on a private copy so the
	// caller's client keeps its own policy.
	client := http.Client{Timeout: 30 * time.Second}
	if opts.HTTPClient != nil {
		client = *opts.HTTPClient
	}
	client.CheckRedirect = c.checkRedirect
	c.httpClient = &client
	if c.run == nil {
		c.run = c.execCommand
	}
	for _, h := range opts.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			c.allowedHosts = append(c.allowedHosts, h)
		}
	}
	return c
}

// FromImage captures a still image. Its timestamp is the static sentinel.
func (c *Capturer) FromImage(name string, raw []byte) (domain.Frame, error) {
	return c.encodeFrame(name, raw, domain.StaticTimestamp())
}

// FromVideo captures the frame of the video file at path nearest to at.
func (c *Capturer) FromVideo(ctx context.Context, path string, at domain.SourceTimestamp) (domain.Frame, error) {
	if at.Static {
		at = domain.VideoTimestamp(0)
	}
	out, err := c.run(ctx, c.ffmpegPath, frameArgs(path, at.Seconds)...)
	if err != nil {
		return domain.Frame{}, captureErr(filepath.Base(path), "frame extraction failed", err)
	}
	if len(out) == 0 {
		return domain.Frame{}, captureErr(filepath.Base(path), fmt.Sprintf("no frame at %s", at.Label()), nil)
	}
	return c.encodeFrame(filepath.Base(path), out, at)
}

// Capture reads body, decides whether it is an image or a video, and captures
// one frame. timestamp is ignored for images.
func (c *Capturer) Capture(ctx context.Context, name string, body io.Reader, timestamp string) (domain.Frame, error) {
	raw, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return domain.Frame{}, captureErr(name, "read media", err)
	}
	if int64(len(raw)) > c.maxBytes {
		return domain.Frame{}, captureErr(name, fmt.Sprintf("media larger than %d bytes", c.maxBytes), nil)
	}
	if len(raw) == 0 {
		return domain.Frame{}, captureErr(name, "media is empty", nil)
	}

	switch kind := mediaKind(name, raw); kind {
	case "image":
		return c.FromImage(name, raw)
	case "video":
		at, err := domain.ParseTimestamp(timestamp)
		if err != nil {
			return domain.Frame{}, captureErr(name, "invalid timestamp", err)
		}
		return c.captureVideoBytes(ctx, name, raw, at)
	default:
		return domain.Frame{}, captureErr(name, "unsupported media type", nil)
	}
}

// Fetch downloads a remote image or video from an allowed host and captures
// one frame from it.
func (c *Capturer) Fetch(ctx context.Context, rawURL, timestamp string) (domain.Frame, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Frame{}, captureErr(rawURL, "invalid source url", err)
	}
	if !c.hostAllowed(u.Hostname()) {
		return domain.Frame{}, captureErr(u.Host, "source host is not allowed", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Frame{}, captureErr(u.Host, "create request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ce *CaptureError
		if errors.As(err, &ce) {
			return domain.Frame{}, ce
		}
		return domain.Frame{}, captureErr(u.Host, "download failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return domain.Frame{}, captureErr(u.Host, fmt.Sprintf("download status %d", resp.StatusCode), nil)
	}
	return c.Capture(ctx, filepath.Base(u.Path), resp.Body, timestamp)
}

func (c *Capturer) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return captureErr(req.URL.Host, "too many redirects", nil)
	}
	if (req.URL.Scheme != "http" && req.URL.Scheme != "https") || !c.hostAllowed(req.URL.Hostname()) {
		return captureErr(req.URL.Host, "redirect host is not allowed", nil)
	}
	return nil
}

// CaptureFile captures frames from a local file. A video yields one frame per
// timestamp; an image yields a single static frame whatever the timestamps.
func (c *Capturer) CaptureFile(ctx context.Context, path string, timestamps []string) ([]domain.Frame, error) {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, captureErr(name, "open media", err)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	_ = f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, captureErr(name, "read media", err)
	}

	switch mediaKind(name, head[:n]) {
	case "image":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, captureErr(name, "read media", err)
		}
		frame, err := c.FromImage(name, raw)
		if err != nil {
			return nil, err
		}
		return []domain.Frame{frame}, nil
	case "video":
		if len(timestamps) == 0 {
			timestamps = []string{""}
		}
		frames := make([]domain.Frame, 0, len(timestamps))
		for _, ts := range timestamps {
			at, err := domain.ParseTimestamp(ts)
			if err != nil {
				return nil, captureErr(name, "invalid timestamp", err)
			}
			frame, err := c.FromVideo(ctx, path, at)
			if err != nil {
				return nil, err
			}
			frames = append(frames, frame)
		}
		return frames, nil
	default:
		return nil, captureErr(name, "unsupported media type", nil)
	}
}

func (c *Capturer) captureVideoBytes(ctx context.Context, name string, raw []byte, at domain.SourceTimestamp) (domain.Frame, error) {
	tmp, err := os.CreateTemp("", "visuallab-*"+filepath.Ext(name))
	if err != nil {
		return domain.Frame{}, captureErr(name, "stage video", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, bytes.NewReader(raw)); err != nil {
		_ = tmp.Close()
		return domain.Frame{}, captureErr(name, "stage video", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Frame{}, captureErr(name, "stage video", err)
	}
	frame, err := c.FromVideo(ctx, tmp.Name(), at)
	if ce, ok := err.(*CaptureError); ok {
		ce.Source = name
	}
	return frame, err
}

func (c *Capturer) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range c.allowedHosts {
		if allowed == host {
			return true
		}
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(host, allowed[1:]) {
			return true
		}
	}
	return false
}

// mediaKind returns "image", "video", or "".
func mediaKind(name string, raw []byte) string {
	sniffed := http.DetectContentType(raw)
	if kind := majorType(sniffed); kind == "image" || kind == "video" {
		return kind
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if kind := majorType(byExt); kind == "image" || kind == "video" {
			return kind
		}
	}
	return ""
}

func majorType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	major, _, _ := strings.Cut(mediaType, "/")
	return major
}
