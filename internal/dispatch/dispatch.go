// Package dispatch routes inbound messages to playback.
//
// Transports hand every message to a Queue, whose single worker calls
// Dispatcher.Handle. Handle blocks until playback has finished, so
// announcements never overlap however many transports are enabled.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/audiobridge/internal/command"
	"github.com/nadzzz/audiobridge/internal/message"
)

// Orchestrator performs playback requests.
type Orchestrator interface {
	Play(ctx context.Context, soundID string, vol *int) error
	Speak(ctx context.Context, text, voice string, vol *int) error
	Announce(ctx context.Context, soundID, text, voice string, vol *int) error
}

// DefaultVolume sets the remembered output level.
type DefaultVolume interface {
	SetDefault(ctx context.Context, v int) error
}

// Dispatcher turns messages into playback.
type Dispatcher struct {
	prefix   string
	playback Orchestrator
	volume   DefaultVolume

	// volumeAnnounced is false until the first set/volume has been handled.
	// Brokers redeliver the retained level on every connect; that first
	// value is applied silently.
	volumeAnnounced bool
}

// New creates a dispatcher for topics under prefix.
func New(prefix string, playback Orchestrator, volume DefaultVolume) *Dispatcher {
	return &Dispatcher{prefix: prefix, playback: playback, volume: volume}
}

// Handle processes a single message. Every failure is logged here; the
// returned error is informational for the caller.
func (d *Dispatcher) Handle(ctx context.Context, msg *message.Message) (err error) {
	start := time.Now()
	logger := slog.With("message_id", msg.ID, "source", msg.Source, "topic", msg.Topic)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling message: %v", r)
		}
		if err != nil {
			logger.Error("dispatch failed", "error", err, "duration", time.Since(start))
		}
	}()

	cmd, err := command.Parse(d.prefix, msg.Topic, msg.Payload)
	if err != nil {
		return err
	}
	if cmd.Kind == command.Unrecognized {
		logger.Debug("ignoring unrecognized topic")
		return nil
	}
	logger.Info("dispatch started", "command", cmd.Kind, "retained", msg.Retained)

	switch cmd.Kind {
	case command.SetVolume:
		err = d.setVolume(ctx, *cmd.Volume)
	case command.Play:
		err = d.playback.Play(ctx, cmd.SoundID, cmd.Volume)
	case command.Speak:
		err = d.playback.Speak(ctx, cmd.Text, cmd.Voice, cmd.Volume)
	case command.Announcement:
		err = d.playback.Announce(ctx, cmd.SoundID, cmd.Text, cmd.Voice, cmd.Volume)
	}
	if err != nil {
		return err
	}

	logger.Info("dispatch complete", "command", cmd.Kind, "duration", time.Since(start))
	return nil
}

func (d *Dispatcher) setVolume(ctx context.Context, v int) error {
	setErr := d.volume.SetDefault(ctx, v)

	if !d.volumeAnnounced {
		d.volumeAnnounced = true
		return setErr
	}
	return errors.Join(setErr, d.playback.Speak(ctx, fmt.Sprintf("volume %d", v), "", nil))
}
