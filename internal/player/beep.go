package player

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/nadzzz/audiobridge/internal/convert"
)

// Beep plays files through the beep speaker.
type Beep struct {
	mu   sync.Mutex
	rate beep.SampleRate // rate the speaker was last initialized with, 0 if never
}

// NewBeep creates a beep-backed player. The speaker is initialized lazily.
func NewBeep() *Beep {
	return &Beep{}
}

// Play implements Player.
func (b *Beep) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	streamer, format, err := convert.Decode(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	defer streamer.Close()

	if err := b.init(format.SampleRate); err != nil {
		return fmt.Errorf("%w: initializing speaker: %v", ErrPlayback, err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func (b *Beep) init(rate beep.SampleRate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rate == rate {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return err
	}
	b.rate = rate
	return nil
}
