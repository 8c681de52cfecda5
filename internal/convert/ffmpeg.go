package convert

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/audiobridge/internal/config"
)

// FFmpeg converts through an external ffmpeg process. It is significantly
// slower than Beep and is only used when Beep cannot read the source.
type FFmpeg struct {
	path       string
	timeout    time.Duration
	sampleRate int
	channels   int
}

// NewFFmpeg creates an ffmpeg converter from config.
func NewFFmpeg(cfg config.ConvertConfig) *FFmpeg {
	f := &FFmpeg{
		path:       cfg.FFmpegPath,
		timeout:    cfg.FFmpegTimeout,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}
	if f.path == "" {
		f.path = "ffmpeg"
	}
	if f.timeout <= 0 {
		f.timeout = 15 * time.Second
	}
	if f.sampleRate <= 0 {
		f.sampleRate = 44100
	}
	if f.channels <= 0 {
		f.channels = 1
	}
	return f
}

// Args returns the ffmpeg arguments used to convert src into dst.
func (f *FFmpeg) Args(src, dst string) []string {
	return []string{
		"-v", "fatal", "-hide_banner", "-nostdin", "-y",
		"-i", src,
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(f.channels),
		"-ar", strconv.Itoa(f.sampleRate),
		dst,
	}
}

// Convert implements Converter.
func (f *FFmpeg) Convert(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := f.Args(src, dst)
	cmd := exec.CommandContext(ctx, f.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("running ffmpeg", "cmd", f.path+" "+strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg conversion timeout: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
