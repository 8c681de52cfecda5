package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "audiobridge dev\n", execute(t, "version"))
}

func TestCacheList(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "database.json")
	cacheDir := filepath.Join(dir, "cache")
	require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, "tts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "tts", "tts00001.wav"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(db, []byte(`{"tts": [{"text": "volume 50", "filename": "tts00001", "voice": "matthew", "extensions": ["wav"]}]}`), 0o644))

	configPath := filepath.Join(dir, "audiobridge.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"tts:\n  database: "+db+"\nsounds:\n  cache_dir: "+cacheDir+"\nlogging:\n  level: error\n"), 0o644))

	out := execute(t, "--config", configPath, "cache", "list")
	assert.Contains(t, out, "tts00001")
	assert.Contains(t, out, "matthew")
	assert.Contains(t, out, `"volume 50"`)
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "1 entries")
}

func TestCacheList_Empty(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "audiobridge.yaml")
	db := filepath.Join(dir, "database.json")
	require.NoError(t, os.WriteFile(configPath, []byte("tts:\n  database: "+db+"\nlogging:\n  level: error\n"), 0o644))

	out := execute(t, "--config", configPath, "cache", "list")
	assert.Contains(t, out, "is empty")
}
