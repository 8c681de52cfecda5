package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/tts"
)

// fakeServer accepts one connection, records the synthesize event and
// answers with the given events.
func fakeServer(t *testing.T, reply func(conn net.Conn)) (string, <-chan *event) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan *event, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		evt, _, err := readEvent(bufio.NewReader(conn))
		if err != nil {
			return
		}
		got <- evt
		reply(conn)
	}()
	return ln.Addr().String(), got
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	addr, got := fakeServer(t, func(conn net.Conn) {
		_ = writeEvent(conn, event{Type: "audio-start", Data: map[string]any{"rate": 16000, "width": 2, "channels": 1}}, nil)
		_ = writeEvent(conn, event{Type: "audio-chunk"}, pcm[:4])
		_ = writeEvent(conn, event{Type: "audio-chunk"}, pcm[4:])
		_ = writeEvent(conn, event{Type: "audio-stop"}, nil)
	})

	s := New(config.TTSConfig{DefaultVoice: "en_US-lessac-medium", Piper: config.PiperConfig{Endpoint: "tcp://" + addr}})
	res, err := s.Synthesize(context.Background(), "volume 50", tts.SynthesizeOpts{})
	require.NoError(t, err)

	assert.Equal(t, "wav", res.Format)
	assert.Equal(t, "audio/wav", res.ContentType)
	require.Len(t, res.Audio, 44+len(pcm))
	assert.Equal(t, "RIFF", string(res.Audio[:4]))
	assert.Equal(t, "WAVE", string(res.Audio[8:12]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(res.Audio[24:28]))
	assert.True(t, bytes.Equal(pcm, res.Audio[44:]))

	select {
	case evt := <-got:
		assert.Equal(t, "synthesize", evt.Type)
		assert.Equal(t, "volume 50", evt.Data["text"])
		assert.Equal(t, map[string]any{"name": "en_US-lessac-medium"}, evt.Data["voice"])
	case <-time.After(time.Second):
		t.Fatal("server never received the synthesize event")
	}
}

func TestSynthesize_VoiceOverride(t *testing.T) {
	addr, got := fakeServer(t, func(conn net.Conn) {
		_ = writeEvent(conn, event{Type: "audio-stop"}, nil)
	})

	s := New(config.TTSConfig{DefaultVoice: "en_US-lessac-medium", Piper: config.PiperConfig{Endpoint: addr}})
	_, err := s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{Voice: "en_GB-alan-low"})
	require.NoError(t, err)

	evt := <-got
	assert.Equal(t, map[string]any{"name": "en_GB-alan-low"}, evt.Data["voice"])
}

func TestSynthesize_ServerError(t *testing.T) {
	addr, _ := fakeServer(t, func(conn net.Conn) {
		_ = writeEvent(conn, event{Type: "error", Data: map[string]any{"text": "voice not found"}}, nil)
	})

	s := New(config.TTSConfig{DefaultVoice: "nope", Piper: config.PiperConfig{Endpoint: addr}})
	_, err := s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{})
	require.ErrorContains(t, err, "voice not found")
}

func TestSynthesize_EmptyText(t *testing.T) {
	s := New(config.TTSConfig{Piper: config.PiperConfig{Endpoint: "127.0.0.1:1"}})
	_, err := s.Synthesize(context.Background(), "", tts.SynthesizeOpts{})
	require.Error(t, err)
}

func TestEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEvent(&buf, event{Type: "audio-chunk", Data: map[string]any{"rate": 22050.0}}, []byte("abc")))

	evt, payload, err := readEvent(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "audio-chunk", evt.Type)
	assert.Equal(t, 22050.0, evt.Data["rate"])
	assert.Equal(t, []byte("abc"), payload)
}
