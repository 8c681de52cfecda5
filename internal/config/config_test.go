package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audiobridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "audio/", cfg.Transports.MQTT.TopicPrefix)
	assert.Equal(t, "hmi-audio", cfg.Transports.MQTT.ClientID)
	assert.Equal(t, []string{"wav"}, cfg.Sounds.SupportedFormats)
	assert.Equal(t, "wav", cfg.Sounds.PreferredFormat)
	assert.Equal(t, 30, cfg.Mixer.DefaultVolume)
	assert.Equal(t, -1, cfg.Mixer.MasterCard)
	assert.Equal(t, "Auto Gain Control", cfg.Mixer.DetectControl)
	assert.Equal(t, 15*time.Second, cfg.Convert.FFmpegTimeout)
	assert.InDelta(t, 0.8, cfg.Announcement.ToneScale, 1e-9)
	assert.Equal(t, "piper", cfg.TTS.Backend)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
transports:
  mqtt:
    broker: tcp://broker.lan:1883
    password: ${AUDIOBRIDGE_TEST_MQTT_PASSWORD}
sounds:
  root: /srv/sounds
  supported_formats: [wav, ogg]
tts:
  backend: google
  default_voice: en-US-Neural2-J
  timeout: 5s
mixer:
  default_volume: 45
`)
	t.Setenv("AUDIOBRIDGE_TEST_MQTT_PASSWORD", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.lan:1883", cfg.Transports.MQTT.Broker)
	assert.Equal(t, "s3cret", cfg.Transports.MQTT.Password)
	assert.Equal(t, "/srv/sounds", cfg.Sounds.Root)
	assert.Equal(t, []string{"wav", "ogg"}, cfg.Sounds.SupportedFormats)
	assert.Equal(t, "google", cfg.TTS.Backend)
	assert.Equal(t, 5*time.Second, cfg.TTS.Timeout)
	assert.Equal(t, 45, cfg.Mixer.DefaultVolume)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AUDIOBRIDGE_MIXER_DEFAULT_VOLUME", "12")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Mixer.DefaultVolume)
}

func TestLoad_InvalidVolume(t *testing.T) {
	_, err := Load(writeConfig(t, "mixer:\n  default_volume: 140\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixer.default_volume")
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("AUDIOBRIDGE_TEST_REF", "value")

	assert.Equal(t, "value", resolveEnvRef("${AUDIOBRIDGE_TEST_REF}"))
	assert.Equal(t, "${AUDIOBRIDGE_TEST_UNSET}", resolveEnvRef("${AUDIOBRIDGE_TEST_UNSET}"))
	assert.Equal(t, "plain", resolveEnvRef("plain"))
}

func TestNewHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, LoggingConfig{Level: "warn", Format: "json"}))

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, `"key":"value"`)
}
