package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/audiobridge/internal/command"
	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/message"
	"github.com/nadzzz/audiobridge/internal/mixer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exec player fixture needs a POSIX shell")
	}
	dir := t.TempDir()
	played := filepath.Join(dir, "played")
	script := filepath.Join(dir, "play.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$@\" >> "+played+"\n"), 0o755))

	root := filepath.Join(dir, "sounds")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "chime.wav"), []byte("RIFF"), 0o644))

	return &config.Config{
		Transports: config.TransportsConfig{MQTT: config.MQTTConfig{TopicPrefix: "audio/"}},
		Queue:      config.QueueConfig{Size: 4},
		Sounds: config.SoundsConfig{
			Root:             root,
			CacheDir:         filepath.Join(dir, "cache"),
			SupportedFormats: []string{"wav"},
			PreferredFormat:  "wav",
		},
		TTS: config.TTSConfig{
			Backend:      "piper",
			DefaultVoice: "en_US-lessac-medium",
			Database:     filepath.Join(dir, "database.json"),
			Piper:        config.PiperConfig{Endpoint: "127.0.0.1:1"},
		},
		Mixer: config.MixerConfig{
			Backend:       "none",
			DetectControl: "Auto Gain Control",
			GainControl:   "Speaker",
			MasterControl: "Master",
			MasterCard:    mixer.DefaultCard,
			DefaultVolume: 30,
		},
		Player:       config.PlayerConfig{Backend: "exec", Command: script},
		Convert:      config.ConvertConfig{FFmpegPath: "ffmpeg", SampleRate: 44100, Channels: 1},
		Announcement: config.AnnouncementConfig{ToneScale: 0.8},
	}
}

func TestNew_PlaysThroughWiring(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 30, a.Volume.Default())
	require.NoError(t, a.Playback.Play(ctx, "CHIME", command.IntPtr(60)))

	played, err := os.ReadFile(filepath.Join(filepath.Dir(cfg.Player.Command), "played"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Sounds.Root, "chime.wav")+"\n", string(played))
}

func TestNew_DispatcherUsesPrefix(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Dispatcher.Handle(ctx, message.New("test", "audio/set/volume", []byte("55"))))
	assert.Equal(t, 55, a.Volume.Default())
}

func TestNew_UnknownBackends(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.TTS.Backend = "polly"
	_, err := New(ctx, cfg)
	require.ErrorContains(t, err, "polly")

	cfg = testConfig(t)
	cfg.Mixer.Backend = "pulse"
	_, err = New(ctx, cfg)
	require.ErrorContains(t, err, "pulse")
}

func TestServe_NoTransports(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.Error(t, a.Serve(context.Background()))
}
