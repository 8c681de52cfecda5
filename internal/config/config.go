// Package config handles loading and validating the audiobridge configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the audiobridge daemon.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Transports   TransportsConfig   `mapstructure:"transports"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Sounds       SoundsConfig       `mapstructure:"sounds"`
	TTS          TTSConfig          `mapstructure:"tts"`
	Mixer        MixerConfig        `mapstructure:"mixer"`
	Player       PlayerConfig       `mapstructure:"player"`
	Convert      ConvertConfig      `mapstructure:"convert"`
	Announcement AnnouncementConfig `mapstructure:"announcement"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort     int `mapstructure:"health_port"`
	GRPCHealthPort int `mapstructure:"grpc_health_port"` // 0 disables the gRPC health service
}

// TransportsConfig holds the configuration for each ingress.
type TransportsConfig struct {
	MQTT MQTTConfig `mapstructure:"mqtt"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"` // subscribed as <prefix>#
	QoS         byte   `mapstructure:"qos"`
}

// HTTPConfig configures the HTTP publish endpoint.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// QueueConfig sizes the serial dispatch queue shared by all transports.
type QueueConfig struct {
	Size int `mapstructure:"size"`
}

// SoundsConfig locates local sound assets and the conversion cache.
type SoundsConfig struct {
	Root             string        `mapstructure:"root"`
	CacheDir         string        `mapstructure:"cache_dir"`
	SupportedFormats []string      `mapstructure:"supported_formats"`
	PreferredFormat  string        `mapstructure:"preferred_format"`
	IndexTTL         time.Duration `mapstructure:"index_ttl"` // 0 re-scans the root on every request
	Watch            bool          `mapstructure:"watch"`     // invalidate the index on filesystem events
}

// TTSConfig selects and configures the text-to-speech backend and its cache.
type TTSConfig struct {
	Backend           string        `mapstructure:"backend"` // "piper" or "google"
	DefaultVoice      string        `mapstructure:"default_voice"`
	Database          string        `mapstructure:"database"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Piper             PiperConfig   `mapstructure:"piper"`
	Google            GoogleConfig  `mapstructure:"google"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
type PiperConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Wyoming TCP endpoint (host:port)
}

// GoogleConfig holds Google Cloud Text-to-Speech settings.
type GoogleConfig struct {
	CredentialsFile string   `mapstructure:"credentials_file"` // falls back to application default credentials
	Language        string   `mapstructure:"language"`
	SpeakingRate    float64  `mapstructure:"speaking_rate"`
	SSMLVoices      []string `mapstructure:"ssml_voices"`   // voices whose text is wrapped in SSMLTemplate
	SSMLTemplate    string   `mapstructure:"ssml_template"` // fmt template with one %s for the escaped text
}

// MixerConfig configures the mixing device.
type MixerConfig struct {
	Backend       string `mapstructure:"backend"`        // "alsa" or "none"
	DetectControl string `mapstructure:"detect_control"` // control name unique to the target card
	GainControl   string `mapstructure:"gain_control"`   // hardware gain control on the target card
	MasterControl string `mapstructure:"master_control"`
	MasterCard    int    `mapstructure:"master_card"` // -1 is the system default card
	DefaultVolume int    `mapstructure:"default_volume"`
	CardsFile     string `mapstructure:"cards_file"`
	AmixerPath    string `mapstructure:"amixer_path"`
}

// PlayerConfig selects the playback engine.
type PlayerConfig struct {
	Backend string   `mapstructure:"backend"` // "beep" or "exec"
	Command string   `mapstructure:"command"` // exec backend binary; auto-detected when empty
	Args    []string `mapstructure:"args"`
}

// ConvertConfig controls audio format conversion.
type ConvertConfig struct {
	FFmpegPath    string        `mapstructure:"ffmpeg_path"`
	FFmpegTimeout time.Duration `mapstructure:"ffmpeg_timeout"`
	SampleRate    int           `mapstructure:"sample_rate"`
	Channels      int           `mapstructure:"channels"`
}

// AnnouncementConfig tunes announcement composites.
type AnnouncementConfig struct {
	ToneScale float64 `mapstructure:"tone_scale"` // alert tone level relative to the speech level
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json, logfmt
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./audiobridge.yaml, ./configs/audiobridge.yaml, /etc/audiobridge/audiobridge.yaml.
// A .env file in the working directory is loaded into the environment first.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("audiobridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/audiobridge")
	}

	// Environment variables: AUDIOBRIDGE_MIXER_DEFAULT_VOLUME, AUDIOBRIDGE_TTS_BACKEND, etc.
	v.SetEnvPrefix("AUDIOBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${MQTT_PASSWORD}")
	cfg.Transports.MQTT.Username = resolveEnvRef(cfg.Transports.MQTT.Username)
	cfg.Transports.MQTT.Password = resolveEnvRef(cfg.Transports.MQTT.Password)
	cfg.TTS.Google.CredentialsFile = resolveEnvRef(cfg.TTS.Google.CredentialsFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.grpc_health_port", 0)
	v.SetDefault("transports.mqtt.enabled", true)
	v.SetDefault("transports.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("transports.mqtt.client_id", "hmi-audio")
	v.SetDefault("transports.mqtt.topic_prefix", "audio/")
	v.SetDefault("transports.mqtt.qos", 0)
	v.SetDefault("transports.http.enabled", false)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("queue.size", 32)
	v.SetDefault("sounds.root", "/opt/sounds")
	v.SetDefault("sounds.cache_dir", "/opt/sounds/cache")
	v.SetDefault("sounds.supported_formats", []string{"wav"})
	v.SetDefault("sounds.preferred_format", "wav")
	v.SetDefault("sounds.index_ttl", time.Duration(0))
	v.SetDefault("sounds.watch", false)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.default_voice", "en_US-lessac-medium")
	v.SetDefault("tts.database", "database.json")
	v.SetDefault("tts.requests_per_minute", 60)
	v.SetDefault("tts.timeout", 30*time.Second)
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.google.language", "en-US")
	v.SetDefault("tts.google.speaking_rate", 1.0)
	v.SetDefault("tts.google.ssml_template", "<speak>%s</speak>")
	v.SetDefault("mixer.backend", "alsa")
	v.SetDefault("mixer.detect_control", "Auto Gain Control")
	v.SetDefault("mixer.gain_control", "Speaker")
	v.SetDefault("mixer.master_control", "Master")
	v.SetDefault("mixer.master_card", -1)
	v.SetDefault("mixer.default_volume", 30)
	v.SetDefault("mixer.cards_file", "/proc/asound/cards")
	v.SetDefault("mixer.amixer_path", "amixer")
	v.SetDefault("player.backend", "beep")
	v.SetDefault("convert.ffmpeg_path", "/usr/bin/ffmpeg")
	v.SetDefault("convert.ffmpeg_timeout", 15*time.Second)
	v.SetDefault("convert.sample_rate", 44100)
	v.SetDefault("convert.channels", 1)
	v.SetDefault("announcement.tone_scale", 0.8)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Mixer.DefaultVolume < 0 || c.Mixer.DefaultVolume > 100 {
		errs = append(errs, fmt.Errorf("mixer.default_volume %d out of range 0-100", c.Mixer.DefaultVolume))
	}
	if c.Sounds.PreferredFormat == "" {
		errs = append(errs, errors.New("sounds.preferred_format must be set"))
	}
	if c.TTS.DefaultVoice == "" {
		errs = append(errs, errors.New("tts.default_voice must be set"))
	}
	if c.Announcement.ToneScale < 0 {
		errs = append(errs, fmt.Errorf("announcement.tone_scale %v must not be negative", c.Announcement.ToneScale))
	}
	if c.Transports.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("transports.mqtt.qos %d must be 0, 1 or 2", c.Transports.MQTT.QoS))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}
