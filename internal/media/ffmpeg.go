// Package media wraps the ffmpeg and ffprobe binaries used to chain and join
// provider clips.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"videochain/internal/infra"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// Options configures the toolchain.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Runner      Runner
	Logger      *infra.Logger
}

// FFmpeg extracts continuity frames and concatenates clips.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	runner  Runner
	logger  *infra.Logger
}

// New constructs the toolchain with defaults for missing options.
func New(opts Options) *FFmpeg {
	f := &FFmpeg{
		ffmpeg:  strings.TrimSpace(opts.FFmpegPath),
		ffprobe: strings.TrimSpace(opts.FFprobePath),
		runner:  opts.Runner,
		logger:  opts.Logger,
	}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	if f.runner == nil {
		f.runner = ExecRunner{}
	}
	if f.logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		f.logger = &l
	}
	return f
}

// Probe returns the container duration in seconds.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	out, err := f.runner.Run(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", raw, err)
	}
	return d, nil
}
