package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"reelvault/internal/logging"
	"reelvault/internal/media/ffprobe"
	"reelvault/internal/presets"
)

var commandContext = exec.CommandContext

// Request describes one transcode invocation.
type Request struct {
	InputPath  string
	OutputPath string
	Preset     presets.Preset
	Plan       presets.EncodePlan
	// Duration of the source; zero means unknown and disables percentage
	// reporting until completion.
	Duration time.Duration
}

// Runner executes conversions and streams progress to the caller.
type Runner interface {
	Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) error
}

// Option configures the ffmpeg runner.
type Option func(*FFmpeg)

// WithBinary overrides the ffmpeg binary path.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// WithProbeBinary overrides the ffprobe binary used for duration recovery.
func WithProbeBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.probeBinary = binary
		}
	}
}

// WithHWDevice overrides the VAAPI render node.
func WithHWDevice(device string) Option {
	return func(f *FFmpeg) {
		if device != "" {
			f.hwDevice = device
		}
	}
}

// WithLogger attaches a logger to the runner.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logging.NewComponentLogger(logger, "transcode")
		}
	}
}

// FFmpeg runs conversions by shelling out to ffmpeg with VAAPI acceleration.
type FFmpeg struct {
	binary      string
	probeBinary string
	hwDevice    string
	logger      *slog.Logger
}

// NewFFmpeg constructs a runner using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	runner := &FFmpeg{
		binary:      "ffmpeg",
		probeBinary: "ffprobe",
		hwDevice:    "/dev/dri/renderD128",
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Transcode launches ffmpeg and blocks until it exits, invoking progress for
// every update block the encoder emits.
func (f *FFmpeg) Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return errors.New("transcode: input path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("transcode: output path required")
	}

	duration := req.Duration
	if duration <= 0 {
		// Best effort: an unprobeable source still transcodes, it just
		// cannot report a percentage.
		if result, err := ffprobe.Inspect(ctx, f.probeBinary, req.InputPath); err == nil {
			duration = time.Duration(result.DurationSeconds() * float64(time.Second))
		} else {
			f.logger.Warn("duration probe failed",
				logging.String("input", req.InputPath),
				logging.Error(err))
		}
	}

	args, err := buildArgs(req, f.hwDevice)
	if err != nil {
		return err
	}

	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transcode: stdout pipe: %w", err)
	}
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transcode: start ffmpeg: %w", err)
	}

	parser := newProgressParser(duration)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parser.Feed(scanner.Text())
		if !ok {
			continue
		}
		if progress != nil {
			progress(update)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("transcode: read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := stderr.Tail()
		if detail != "" {
			return fmt.Errorf("transcode: ffmpeg failed: %w: %s", err, detail)
		}
		return fmt.Errorf("transcode: ffmpeg failed: %w", err)
	}
	return nil
}

var _ Runner = (*FFmpeg)(nil)

// tailBuffer keeps only the last max bytes written to it so failure messages
// carry the end of ffmpeg's stderr without holding the whole log.
type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.buf.Len() > t.max {
		data := t.buf.Bytes()
		trimmed := append([]byte(nil), data[len(data)-t.max:]...)
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) Tail() string {
	tail := strings.TrimSpace(t.buf.String())
	if idx := strings.LastIndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		last := strings.TrimSpace(tail[idx+1:])
		if last != "" {
			return last
		}
	}
	return tail
}
