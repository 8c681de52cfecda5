package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

const resampleQuality = 4

// Beep converts wav, mp3, ogg/vorbis and flac files in-process.
type Beep struct {
	sampleRate beep.SampleRate
}

// NewBeep creates an in-process converter targeting sampleRate.
func NewBeep(sampleRate int) *Beep {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Beep{sampleRate: beep.SampleRate(sampleRate)}
}

// Convert implements Converter.
func (b *Beep) Convert(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}

	streamer, format, err := Decode(f, filepath.Ext(src))
	if err != nil {
		f.Close()
		return err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != b.sampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, b.sampleRate, s)
	}
	s = mono(s)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	target := beep.Format{SampleRate: b.sampleRate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(out, cancellable(ctx, s), target); err != nil {
		out.Close()
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := ctx.Err(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Decode opens a beep stream for the encoding named by ext (with or without
// the leading dot). The reader is owned by the returned streamer.
func Decode(rc io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav", "wave":
		s, format, err = wav.Decode(rc)
	case "mp3":
		s, format, err = mp3.Decode(rc)
	case "ogg", "oga":
		s, format, err = vorbis.Decode(rc)
	case "flac":
		s, format, err = flac.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decoding %s: %w", ext, err)
	}
	return s, format, nil
}

// mono averages both channels into each output sample.
func mono(s beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := s.Stream(samples)
		for i := range samples[:n] {
			avg := (samples[i][0] + samples[i][1]) / 2
			samples[i][0], samples[i][1] = avg, avg
		}
		return n, ok
	})
}

// cancellable ends the stream once ctx is done.
func cancellable(ctx context.Context, s beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if ctx.Err() != nil {
			return 0, false
		}
		return s.Stream(samples)
	})
}
