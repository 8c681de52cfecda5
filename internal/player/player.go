// Package player plays audio files on the local output device.
//
// Play blocks until the sound has finished. The dispatcher relies on this to
// keep announcements from overlapping on the single output device.
package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadzzz/audiobridge/internal/config"
)

// ErrPlayback wraps engine failures during playback.
var ErrPlayback = errors.New("playback failed")

// Player plays a file synchronously.
type Player interface {
	Play(ctx context.Context, path string) error
}

// New creates the player selected by cfg.Backend.
func New(cfg config.PlayerConfig) (Player, error) {
	switch cfg.Backend {
	case "", "beep":
		return NewBeep(), nil
	case "exec":
		return NewExec(cfg.Command, cfg.Args)
	default:
		return nil, fmt.Errorf("unknown player backend %q", cfg.Backend)
	}
}
