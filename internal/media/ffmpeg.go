package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func (c *Capturer) execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	c.logger.Debug().
		Str("cmd", name).
		Strs("args", args).
		Msg("media: executing ffmpeg")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		tail := strings.TrimSpace(stderr.String())
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return nil, fmt.Errorf("ffmpeg execution failed: %w: %s", err, tail)
	}
	return stdout.Bytes(), nil
}

// frameArgs seeks before the input so only one frame is decoded, and writes
// that frame as PNG to stdout.
func frameArgs(input string, seconds float64) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.2f", seconds),
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}
}
