// Package playback composes asset resolution, the speech cache, the volume
// controller and the player into the three playback operations.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/audiobridge/internal/assets"
)

// Resolver finds the file for a sound name.
type Resolver interface {
	Resolve(ctx context.Context, soundID string) (assets.Asset, error)
}

// SpeechCache returns a playable waveform for text.
type SpeechCache interface {
	Waveform(ctx context.Context, text, voice string) (string, error)
}

// Volume brackets an action with a temporary output level.
type Volume interface {
	Bracket(ctx context.Context, vol *int, action func(context.Context) error) error
	Default() int
}

// Player plays a file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Orchestrator runs playback requests.
type Orchestrator struct {
	resolver  Resolver
	speech    SpeechCache
	volume    Volume
	player    Player
	toneScale float64
}

// New creates an orchestrator. toneScale sets the alert tone level of an
// announcement relative to its speech.
func New(resolver Resolver, speech SpeechCache, volume Volume, player Player, toneScale float64) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		speech:    speech,
		volume:    volume,
		player:    player,
		toneScale: toneScale,
	}
}

// Play resolves soundID and plays it at vol.
func (o *Orchestrator) Play(ctx context.Context, soundID string, vol *int) error {
	return o.volume.Bracket(ctx, vol, func(ctx context.Context) error {
		asset, err := o.resolver.Resolve(ctx, soundID)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", soundID, err)
		}
		slog.Info("playing sound", "sound", soundID, "path", asset.Path, "volume", fmtVolume(vol))
		return o.player.Play(ctx, asset.Path)
	})
}

// Speak plays text spoken in voice at vol.
func (o *Orchestrator) Speak(ctx context.Context, text, voice string, vol *int) error {
	slog.Info("speech requested", "text", text, "voice", voice, "volume", fmtVolume(vol))
	waveform, err := o.speech.Waveform(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("speech for %q: %w", text, err)
	}
	return o.Play(ctx, waveform, vol)
}

// Announce plays the alert sound at a scaled level, then the speech at vol.
// The speech is synthesized before the tone starts so that no provider
// latency falls between the two. A failed tone does not cancel the speech.
func (o *Orchestrator) Announce(ctx context.Context, soundID, text, voice string, vol *int) error {
	base := o.volume.Default()
	if vol != nil {
		base = *vol
	}
	speechVol := &base
	toneVol := int(float64(base) * o.toneScale)

	waveform, err := o.speech.Waveform(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("announcement speech for %q: %w", text, err)
	}

	toneErr := o.Play(ctx, soundID, &toneVol)
	if toneErr != nil {
		slog.Warn("announcement tone failed, continuing with speech", "sound", soundID, "error", toneErr)
	}
	return errors.Join(toneErr, o.Play(ctx, waveform, speechVol))
}

func fmtVolume(vol *int) any {
	if vol == nil {
		return "default"
	}
	return *vol
}
