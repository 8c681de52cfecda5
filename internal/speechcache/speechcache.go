// Package speechcache stores synthesized speech on disk so that a given
// (text, voice) pair is only ever sent to the speech provider once.
//
// The table of entries is a JSON document rewritten in full on every
// insertion:
//
//	{"tts": [{"text": "...", "filename": "tts00001", "voice": "...", "extensions": ["wav", "mp3"]}]}
//
// Filenames are stems relative to the cache directory. Voices are stored
// lower-cased; text is matched exactly.
package speechcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/convert"
	"github.com/nadzzz/audiobridge/internal/tts"
)

var (
	// ErrSynthesisFailed wraps speech provider failures.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	// ErrConversionFailed wraps failures converting synthesized audio.
	ErrConversionFailed = errors.New("speech conversion failed")
)

// Entry links a (text, voice) pair to synthesized audio on disk.
type Entry struct {
	Text       string   `json:"text"`
	Filename   string   `json:"filename"`
	Voice      string   `json:"voice"`
	Extensions []string `json:"extensions"`
}

// Table is the persisted form of the cache.
type Table struct {
	TTS []Entry `json:"tts"`
}

// Cache returns playable waveforms for text, synthesizing on a miss.
type Cache struct {
	mu           sync.Mutex
	dir          string
	dbPath       string
	defaultVoice string
	preferred    string
	table        Table

	synth   tts.Synthesizer
	conv    convert.Converter
	limiter *rate.Limiter
}

// New loads the table at ttsCfg.Database and prepares <sounds.CacheDir>/tts.
// A missing table starts empty; an unreadable one is an error.
func New(ttsCfg config.TTSConfig, sounds config.SoundsConfig, synth tts.Synthesizer, conv convert.Converter) (*Cache, error) {
	dir, err := filepath.Abs(filepath.Join(sounds.CacheDir, "tts"))
	if err != nil {
		return nil, fmt.Errorf("resolving tts cache dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tts cache dir: %w", err)
	}

	table, err := Load(ttsCfg.Database)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if ttsCfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ttsCfg.RequestsPerMinute))
	}

	slog.Info("speech cache loaded", "database", ttsCfg.Database, "entries", len(table.TTS), "dir", dir)
	return &Cache{
		dir:          dir,
		dbPath:       ttsCfg.Database,
		defaultVoice: ttsCfg.DefaultVoice,
		preferred:    sounds.PreferredFormat,
		table:        table,
		synth:        synth,
		conv:         conv,
		limiter:      rate.NewLimiter(limit, 1),
	}, nil
}

// Load reads a table from path. A missing file yields an empty table.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Table{TTS: []Entry{}}, nil
		}
		return Table{}, fmt.Errorf("reading speech cache table: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parsing speech cache table %s: %w", path, err)
	}
	if t.TTS == nil {
		t.TTS = []Entry{}
	}
	return t, nil
}

// Dir returns the directory holding synthesized audio.
func (c *Cache) Dir() string { return c.dir }

// Entries returns a copy of the table entries in insertion order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.table.TTS)
}

// Waveform returns the path of a playable file speaking text in voice.
// An empty voice selects the configured default.
func (c *Cache) Waveform(ctx context.Context, text, voice string) (string, error) {
	if voice == "" {
		voice = c.defaultVoice
	}
	key := strings.ToLower(voice)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lookup(text, key); ok {
		slog.Debug("speech cache hit", "voice", key, "filename", e.Filename)
		return c.path(e), nil
	}

	slog.Info("speech cache miss, synthesizing", "voice", key, "text_length", len(text))
	e, err := c.synthesize(ctx, text, voice, key)
	if err != nil {
		return "", err
	}
	return c.path(e), nil
}

func (c *Cache) lookup(text, voice string) (Entry, bool) {
	for _, e := range c.table.TTS {
		if e.Voice == voice && e.Text == text {
			return e, true
		}
	}
	return Entry{}, false
}

func (c *Cache) synthesize(ctx context.Context, text, voice, key string) (Entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Entry{}, fmt.Errorf("%w: rate limit wait cancelled: %v", ErrSynthesisFailed, err)
	}

	res, err := c.synth.Synthesize(ctx, text, tts.SynthesizeOpts{Voice: voice})
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	stem := fmt.Sprintf("tts%05d", len(c.table.TTS)+1)
	base := filepath.Join(c.dir, stem)
	native := base + "." + res.Format

	if err := os.WriteFile(native, res.Audio, 0o644); err != nil {
		os.Remove(native)
		return Entry{}, fmt.Errorf("%w: writing %s: %v", ErrSynthesisFailed, native, err)
	}

	exts := []string{res.Format}
	if res.Format != c.preferred {
		dst := base + "." + c.preferred
		if err := c.conv.Convert(ctx, native, dst); err != nil {
			os.Remove(native)
			os.Remove(dst)
			return Entry{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		exts = []string{c.preferred, res.Format}
	}

	e := Entry{Text: text, Filename: stem, Voice: key, Extensions: exts}
	c.table.TTS = append(c.table.TTS, e)
	if err := c.save(); err != nil {
		// the audio is usable; the entry will not survive a restart
		slog.Error("failed to persist speech cache table", "error", err)
	}
	return e, nil
}

// path returns the preferred playable file for e.
func (c *Cache) path(e Entry) string {
	ext := c.preferred
	if !slices.Contains(e.Extensions, ext) && len(e.Extensions) > 0 {
		ext = e.Extensions[0]
	}
	return filepath.Join(c.dir, e.Filename+"."+ext)
}

func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.table, "", "    ")
	if err != nil {
		return fmt.Errorf("marshalling table: %w", err)
	}

	// Write to temp file first, then rename
	tempPath := c.dbPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, c.dbPath)
}
