// Package volume owns the master output level.
//
// The controller remembers a default level and brackets each playback with a
// temporary level, restoring the default afterwards. It is not safe for
// concurrent use; the dispatch queue serializes all callers.
package volume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/mixer"
)

// ErrOutOfRange is returned for levels outside 0-100.
var ErrOutOfRange = errors.New("volume out of range")

// Controller brackets playback with temporary master levels.
type Controller struct {
	mixer  mixer.Mixer
	master mixer.Device
	cfg    config.MixerConfig

	def         int
	initialized bool
}

// New creates a controller for the configured master control. The default
// level starts at cfg.DefaultVolume; the mixer is not touched until Setup.
func New(m mixer.Mixer, cfg config.MixerConfig) *Controller {
	return &Controller{
		mixer:  m,
		master: mixer.Device{Card: cfg.MasterCard, Control: cfg.MasterControl},
		cfg:    cfg,
		def:    cfg.DefaultVolume,
	}
}

// Default returns the remembered default level.
func (c *Controller) Default() int { return c.def }

// Initialized reports whether Setup has completed.
func (c *Controller) Initialized() bool { return c.initialized }

// Setup prepares the output hardware. The target card is the first one that
// exposes the detect control; its gain control is unmuted and driven to 100
// so that the master control alone sets the audible level.
func (c *Controller) Setup(ctx context.Context) error {
	card, err := c.mixer.FindControl(ctx, c.cfg.DetectControl)
	if err != nil {
		return fmt.Errorf("locating sound card: %w", err)
	}
	slog.Info("sound card located", "card", card.Index, "id", card.ID, "name", card.Name)

	gain := mixer.Device{Card: card.Index, Control: c.cfg.GainControl}
	if err := c.mixer.SetMute(ctx, gain, false); err != nil {
		return fmt.Errorf("unmuting %s: %w", gain, err)
	}
	if err := c.mixer.SetVolume(ctx, gain, 100); err != nil {
		return fmt.Errorf("setting %s: %w", gain, err)
	}

	if err := c.mixer.SetMute(ctx, c.master, false); err != nil {
		return fmt.Errorf("unmuting %s: %w", c.master, err)
	}
	if err := c.mixer.SetVolume(ctx, c.master, c.def); err != nil {
		return fmt.Errorf("setting %s: %w", c.master, err)
	}

	c.initialized = true
	return nil
}

// SetDefault sets the live level and remembers it as the default.
func (c *Controller) SetDefault(ctx context.Context, v int) error {
	if err := checkRange(v); err != nil {
		slog.Error("cannot set default volume", "volume", v, "error", err)
		return err
	}
	if err := c.mixer.SetVolume(ctx, c.master, v); err != nil {
		return fmt.Errorf("setting default volume: %w", err)
	}
	c.def = v
	slog.Info("default volume set", "volume", v)
	return nil
}

// Reset restores the default level if the live level differs.
func (c *Controller) Reset(ctx context.Context) error {
	live, err := c.mixer.Volume(ctx, c.master)
	if err != nil {
		return fmt.Errorf("reading volume: %w", err)
	}
	if live == c.def {
		return nil
	}
	if err := c.mixer.SetVolume(ctx, c.master, c.def); err != nil {
		return fmt.Errorf("restoring volume: %w", err)
	}
	return nil
}

// Bracket runs action with the master temporarily at *vol.
//
// A nil vol runs action without touching the mixer. An out-of-range vol is
// logged and action still runs at the current level. Otherwise the default
// level is restored once action returns, fails, or panics.
func (c *Controller) Bracket(ctx context.Context, vol *int, action func(context.Context) error) (err error) {
	if vol == nil {
		return action(ctx)
	}
	if rerr := checkRange(*vol); rerr != nil {
		slog.Error("ignoring playback volume", "volume", *vol, "error", rerr)
		return action(ctx)
	}

	defer func() {
		// restore even when ctx is already cancelled
		if rerr := c.Reset(context.WithoutCancel(ctx)); rerr != nil {
			slog.Error("volume restore failed", "error", rerr)
			err = errors.Join(err, rerr)
		}
	}()

	if serr := c.mixer.SetVolume(ctx, c.master, *vol); serr != nil {
		return fmt.Errorf("setting playback volume: %w", serr)
	}
	slog.Debug("playback volume set", "volume", *vol, "default", c.def)

	return action(ctx)
}

func checkRange(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: %d (must be 0-100)", ErrOutOfRange, v)
	}
	return nil
}
