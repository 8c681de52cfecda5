// Package convert turns audio files of any supported encoding into the
// playback format (mono, 16-bit PCM WAV at a fixed sample rate).
//
// The fast path decodes in-process with beep; formats beep cannot read fall
// back to an ffmpeg subprocess. A failure of the fallback is final.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nadzzz/audiobridge/internal/config"
)

// ErrUnsupportedFormat is returned by a converter that cannot read the source encoding.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Converter writes a playback-format copy of src to dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// Func adapts a function to the Converter interface.
type Func func(ctx context.Context, src, dst string) error

// Convert implements Converter.
func (f Func) Convert(ctx context.Context, src, dst string) error { return f(ctx, src, dst) }

// Chain tries each converter in order until one succeeds. A partially
// written dst is removed before the next attempt.
type Chain []Converter

// Convert implements Converter.
func (c Chain) Convert(ctx context.Context, src, dst string) error {
	if len(c) == 0 {
		return errors.New("no converters configured")
	}
	var errs []error
	for i, conv := range c {
		err := conv.Convert(ctx, src, dst)
		if err == nil {
			slog.Debug("converted audio", "src", src, "dst", dst, "stage", i)
			return nil
		}
		errs = append(errs, err)
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			break
		}
		if i < len(c)-1 {
			slog.Debug("conversion failed, trying fallback", "src", src, "stage", i, "error", err)
		}
	}
	return fmt.Errorf("converting %s: %w", src, errors.Join(errs...))
}

// New builds the default chain: beep first, then ffmpeg.
func New(cfg config.ConvertConfig) Chain {
	return Chain{
		NewBeep(cfg.SampleRate),
		NewFFmpeg(cfg),
	}
}
