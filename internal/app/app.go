// Package app wires the audiobridge components together. The daemon and the
// one-shot CLI commands share this wiring so that a sound played from the
// command line behaves exactly like one requested over MQTT.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nadzzz/audiobridge/internal/assets"
	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/convert"
	"github.com/nadzzz/audiobridge/internal/dispatch"
	"github.com/nadzzz/audiobridge/internal/health"
	"github.com/nadzzz/audiobridge/internal/mixer"
	"github.com/nadzzz/audiobridge/internal/mixer/alsa"
	"github.com/nadzzz/audiobridge/internal/playback"
	"github.com/nadzzz/audiobridge/internal/player"
	"github.com/nadzzz/audiobridge/internal/speechcache"
	"github.com/nadzzz/audiobridge/internal/transport"
	httptransport "github.com/nadzzz/audiobridge/internal/transport/http"
	mqtttransport "github.com/nadzzz/audiobridge/internal/transport/mqtt"
	"github.com/nadzzz/audiobridge/internal/tts"
	"github.com/nadzzz/audiobridge/internal/tts/google"
	"github.com/nadzzz/audiobridge/internal/tts/piper"
	"github.com/nadzzz/audiobridge/internal/volume"
)

// App holds the wired components.
type App struct {
	Config     *config.Config
	Volume     *volume.Controller
	Resolver   *assets.Resolver
	Speech     *speechcache.Cache
	Playback   *playback.Orchestrator
	Dispatcher *dispatch.Dispatcher

	synth tts.Synthesizer
}

// New builds every component and prepares the sound card. A missing sound
// card is returned as mixer.ErrDeviceNotFound.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conv := convert.New(cfg.Convert)

	resolver, err := assets.New(cfg.Sounds, conv)
	if err != nil {
		return nil, err
	}

	synth, err := newSynthesizer(ctx, cfg.TTS)
	if err != nil {
		return nil, err
	}

	speech, err := speechcache.New(cfg.TTS, cfg.Sounds, synth, conv)
	if err != nil {
		synth.Close()
		return nil, err
	}

	m, err := newMixer(cfg.Mixer)
	if err != nil {
		synth.Close()
		return nil, err
	}
	vol := volume.New(m, cfg.Mixer)
	if err := vol.Setup(ctx); err != nil {
		synth.Close()
		return nil, err
	}

	p, err := player.New(cfg.Player)
	if err != nil {
		synth.Close()
		return nil, err
	}

	orch := playback.New(resolver, speech, vol, p, cfg.Announcement.ToneScale)
	return &App{
		Config:     cfg,
		Volume:     vol,
		Resolver:   resolver,
		Speech:     speech,
		Playback:   orch,
		Dispatcher: dispatch.New(cfg.Transports.MQTT.TopicPrefix, orch, vol),
		synth:      synth,
	}, nil
}

// Close releases the speech provider.
func (a *App) Close() error {
	return a.synth.Close()
}

// Serve runs the daemon: health probes, the dispatch queue and every enabled
// transport. It blocks until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config

	var transports []transport.Transport
	if cfg.Transports.MQTT.Enabled {
		transports = append(transports, mqtttransport.New(cfg.Transports.MQTT))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}
	if len(transports) == 0 {
		return errors.New("no transports enabled; enable at least one in config")
	}

	healthServer := health.New(cfg.Server.HealthPort, cfg.Server.GRPCHealthPort)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	queue := dispatch.NewQueue(cfg.Queue.Size, a.Dispatcher.Handle)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx)
	}()

	if cfg.Sounds.Watch && cfg.Sounds.IndexTTL > 0 {
		go func() {
			if err := a.Resolver.Watch(ctx); err != nil {
				slog.Error("sound root watcher failed", "error", err)
			}
		}()
	}

	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, queue.Enqueue); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	healthServer.SetReady(true)
	slog.Info("audiobridge ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"default_volume", a.Volume.Default())

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	return nil
}

func newSynthesizer(ctx context.Context, cfg config.TTSConfig) (tts.Synthesizer, error) {
	switch cfg.Backend {
	case "piper":
		slog.Info("using piper tts", "endpoint", cfg.Piper.Endpoint, "voice", cfg.DefaultVoice)
		return piper.New(cfg), nil
	case "google":
		slog.Info("using google tts", "language", cfg.Google.Language, "voice", cfg.DefaultVoice)
		s, err := google.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}

func newMixer(cfg config.MixerConfig) (mixer.Mixer, error) {
	switch cfg.Backend {
	case "alsa":
		return alsa.New(cfg), nil
	case "none":
		// a single virtual card carrying every configured control
		slog.Warn("mixer disabled, volume changes are not audible")
		return mixer.NewMemory(
			[]mixer.Card{{Index: 0, ID: "virtual", Name: "audiobridge virtual mixer"}},
			map[int][]string{0: {cfg.DetectControl, cfg.GainControl, cfg.MasterControl}},
		), nil
	default:
		return nil, fmt.Errorf("unknown mixer backend %q", cfg.Backend)
	}
}
