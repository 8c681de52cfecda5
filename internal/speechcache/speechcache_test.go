package speechcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/convert"
	"github.com/nadzzz/audiobridge/internal/tts"
)

type fakeSynth struct {
	format string
	err    error
	calls  []tts.SynthesizeOpts
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &tts.SynthesizeResult{Audio: []byte("audio:" + text), Format: f.format}, nil
}

func (f *fakeSynth) Close() error { return nil }

// copyConverter "converts" by copying bytes.
var copyConverter = convert.Func(func(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
})

type fixture struct {
	dir   string
	db    string
	synth *fakeSynth
	conv  convert.Converter
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{
		dir:   dir,
		db:    filepath.Join(dir, "database.json"),
		synth: &fakeSynth{format: "mp3"},
		conv:  copyConverter,
	}
}

func (f *fixture) open(t *testing.T) *Cache {
	t.Helper()
	c, err := New(
		config.TTSConfig{Database: f.db, DefaultVoice: "Matthew"},
		config.SoundsConfig{CacheDir: filepath.Join(f.dir, "cache"), PreferredFormat: "wav"},
		f.synth, f.conv,
	)
	require.NoError(t, err)
	return c
}

func TestWaveform_MissThenHit(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()

	first, err := c.Waveform(ctx, "hello", "Joanna")
	require.NoError(t, err)
	second, err := c.Waveform(ctx, "hello", "Joanna")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, filepath.Join(c.Dir(), "tts00001.wav"), first)
	assert.Len(t, f.synth.calls, 1)
	assert.FileExists(t, first)
	assert.FileExists(t, filepath.Join(c.Dir(), "tts00001.mp3"))

	require.Len(t, c.Entries(), 1)
	assert.Equal(t, Entry{Text: "hello", Filename: "tts00001", Voice: "joanna", Extensions: []string{"wav", "mp3"}}, c.Entries()[0])
}

func TestWaveform_VoiceCaseInsensitiveTextCaseSensitive(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()

	a, err := c.Waveform(ctx, "hello", "Joanna")
	require.NoError(t, err)
	b, err := c.Waveform(ctx, "hello", "JOANNA")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, f.synth.calls, 1)

	d, err := c.Waveform(ctx, "Hello", "joanna")
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
	assert.Len(t, f.synth.calls, 2)
	assert.Equal(t, filepath.Join(c.Dir(), "tts00002.wav"), d)
}

func TestWaveform_DefaultVoice(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)

	_, err := c.Waveform(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Len(t, f.synth.calls, 1)
	assert.Equal(t, "Matthew", f.synth.calls[0].Voice)
	assert.Equal(t, "matthew", c.Entries()[0].Voice)
}

func TestWaveform_NativeFormatSkipsConversion(t *testing.T) {
	f := newFixture(t)
	f.synth.format = "wav"
	f.conv = convert.Func(func(ctx context.Context, src, dst string) error {
		t.Fatalf("unexpected conversion %s -> %s", src, dst)
		return nil
	})
	c := f.open(t)

	path, err := c.Waveform(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Dir(), "tts00001.wav"), path)
	assert.Equal(t, []string{"wav"}, c.Entries()[0].Extensions)
}

func TestWaveform_ReloadedTableHits(t *testing.T) {
	f := newFixture(t)
	table := `{"tts": [{"text": "hi", "filename": "tts00001", "voice": "matthew", "extensions": ["wav", "ogg"]}]}`
	require.NoError(t, os.WriteFile(f.db, []byte(table), 0o644))
	before, err := os.Stat(f.db)
	require.NoError(t, err)

	c := f.open(t)
	path, err := c.Waveform(context.Background(), "hi", "Matthew")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(c.Dir(), "tts00001.wav"), path)
	assert.Empty(t, f.synth.calls)
	after, err := os.Stat(f.db)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestWaveform_PersistsAcrossRestart(t *testing.T) {
	f := newFixture(t)
	c := f.open(t)
	ctx := context.Background()

	first, err := c.Waveform(ctx, "door open", "Joanna")
	require.NoError(t, err)

	c2 := f.open(t)
	again, err := c2.Waveform(ctx, "door open", "joanna")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, f.synth.calls, 1)
}

func TestWaveform_SynthesisFailure(t *testing.T) {
	f := newFixture(t)
	f.synth.err = errors.New("provider down")
	c := f.open(t)

	_, err := c.Waveform(context.Background(), "hello", "")
	require.ErrorIs(t, err, ErrSynthesisFailed)
	assert.Empty(t, c.Entries())
	assert.NoFileExists(t, f.db)
}

func TestWaveform_ConversionFailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	f.conv = convert.Func(func(ctx context.Context, src, dst string) error {
		_ = os.WriteFile(dst, []byte("partial"), 0o644)
		return errors.New("bad stream")
	})
	c := f.open(t)

	_, err := c.Waveform(context.Background(), "hello", "")
	require.ErrorIs(t, err, ErrConversionFailed)
	assert.Empty(t, c.Entries())
	assert.NoFileExists(t, f.db)

	files, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestNew_CorruptTable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.db, []byte("{not json"), 0o644))

	_, err := New(config.TTSConfig{Database: f.db}, config.SoundsConfig{CacheDir: f.dir, PreferredFormat: "wav"}, f.synth, f.conv)
	require.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, table.TTS)
}

func TestProperty_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp("", "speechcache")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(dir)

		synth := &fakeSynth{format: "wav"}
		c, err := New(
			config.TTSConfig{Database: filepath.Join(dir, "db.json"), DefaultVoice: "matthew"},
			config.SoundsConfig{CacheDir: dir, PreferredFormat: "wav"},
			synth, copyConverter,
		)
		if err != nil {
			t.Fatal(err)
		}

		texts := rapid.SliceOfN(rapid.SampledFrom([]string{"hi", "Hi", "volume 50", "door open"}), 1, 12).Draw(t, "texts")
		voices := rapid.SampledFrom([]string{"", "Matthew", "MATTHEW", "joanna", "Joanna"})

		seen := map[[2]string]string{}
		for i, text := range texts {
			voice := voices.Draw(t, "voice")
			path, err := c.Waveform(context.Background(), text, voice)
			if err != nil {
				t.Fatalf("waveform %d: %v", i, err)
			}
			v := voice
			if v == "" {
				v = "matthew"
			}
			key := [2]string{text, strings.ToLower(v)}
			if prev, ok := seen[key]; ok && prev != path {
				t.Fatalf("(%q, %q) returned %s, previously %s", text, voice, path, prev)
			}
			seen[key] = path
		}
		if len(synth.calls) != len(seen) {
			t.Fatalf("provider called %d times for %d distinct pairs", len(synth.calls), len(seen))
		}
	})
}
