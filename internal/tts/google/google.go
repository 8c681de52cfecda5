// Package google implements the TTS Synthesizer using Google Cloud Text-to-Speech.
//
// Credentials come from tts.google.credentials_file when set, otherwise from
// the application default credentials. Audio is requested as MP3.
package google

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/tts"
)

type synthesizeFunc func(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error)

// Synthesizer implements tts.Synthesizer against the Cloud TTS API.
type Synthesizer struct {
	cfg        config.GoogleConfig
	voice      string
	timeout    time.Duration
	synthesize synthesizeFunc
	close      func() error
}

// New creates a Cloud TTS client.
func New(ctx context.Context, cfg config.TTSConfig) (*Synthesizer, error) {
	var opts []option.ClientOption
	if cfg.Google.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Google.CredentialsFile))
	}
	client, err := gctts.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google tts client: %w", err)
	}

	s := newSynthesizer(cfg, func(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	})
	s.close = client.Close
	return s, nil
}

func newSynthesizer(cfg config.TTSConfig, fn synthesizeFunc) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg.Google,
		voice:      cfg.DefaultVoice,
		timeout:    cfg.Timeout,
		synthesize: fn,
		close:      func() error { return nil },
	}
}

// Synthesize requests MP3 audio for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, errors.New("empty text for synthesis")
	}
	voice := opts.Voice
	if voice == "" {
		voice = s.voice
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := &ttspb.SynthesizeSpeechRequest{
		Input: s.shapeInput(text, voice),
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: s.cfg.Language,
			Name:         voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
			SpeakingRate:  s.cfg.SpeakingRate,
		},
	}

	started := time.Now()
	resp, err := s.synthesize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("google tts: %w", err)
	}
	slog.Debug("google tts synthesize completed", "voice", voice, "took", time.Since(started), "bytes", len(resp.GetAudioContent()))

	return &tts.SynthesizeResult{
		Audio:       resp.GetAudioContent(),
		Format:      "mp3",
		ContentType: "audio/mpeg",
	}, nil
}

// shapeInput wraps text in the configured SSML envelope for voices listed
// in ssml_voices. Voice names compare case-insensitively.
func (s *Synthesizer) shapeInput(text, voice string) *ttspb.SynthesisInput {
	ssml := slices.ContainsFunc(s.cfg.SSMLVoices, func(v string) bool {
		return strings.EqualFold(v, voice)
	})
	if !ssml || s.cfg.SSMLTemplate == "" {
		return &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: text}}
	}

	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(text))
	return &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Ssml{
		Ssml: fmt.Sprintf(s.cfg.SSMLTemplate, escaped.String()),
	}}
}

// Close releases the underlying gRPC connection.
func (s *Synthesizer) Close() error { return s.close() }
