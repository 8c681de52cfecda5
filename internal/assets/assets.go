// Package assets resolves requested sound names to playable files under the
// sound root.
//
// Names match file stems case-insensitively anywhere below the root. A match
// in a supported format is played as is; any other match is converted once
// into the conversion cache and the converted copy reused afterwards. The
// conversion cache is keyed by name only, so replacing a source file does
// not refresh an existing converted copy.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/convert"
)

var (
	// ErrNotFound is returned when no file under the root matches the name.
	ErrNotFound = errors.New("sound not found")
	// ErrConversionFailed is returned when a non-preferred match cannot be converted.
	ErrConversionFailed = errors.New("sound conversion failed")
)

const listingKey = "listing"

// Asset is a resolved, playable file.
type Asset struct {
	Path   string
	Format string // lower-case extension without the dot
}

// Resolver maps sound names to files.
type Resolver struct {
	root      string
	convDir   string
	supported []string
	preferred string
	conv      convert.Converter

	// index holds a snapshot of the root listing; nil re-scans on every request.
	index *gocache.Cache
}

// New creates a resolver and its conversion directory <cache_dir>/sounds.
func New(cfg config.SoundsConfig, conv convert.Converter) (*Resolver, error) {
	convDir := filepath.Join(cfg.CacheDir, "sounds")
	if err := os.MkdirAll(convDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sound cache dir: %w", err)
	}

	supported := make([]string, len(cfg.SupportedFormats))
	for i, f := range cfg.SupportedFormats {
		supported[i] = strings.ToLower(f)
	}

	r := &Resolver{
		root:      cfg.Root,
		convDir:   convDir,
		supported: supported,
		preferred: strings.ToLower(cfg.PreferredFormat),
		conv:      conv,
	}
	if cfg.IndexTTL > 0 {
		r.index = gocache.New(cfg.IndexTTL, 2*cfg.IndexTTL)
	}
	return r, nil
}

// Resolve returns the playable file for soundID.
//
// Absolute paths, and paths already under the root, are returned without
// checking that they exist. When several files match, one in a supported
// format wins; otherwise the first match in walk order is converted.
func (r *Resolver) Resolve(ctx context.Context, soundID string) (Asset, error) {
	if filepath.IsAbs(soundID) || strings.HasPrefix(soundID, r.root) {
		return Asset{Path: soundID, Format: format(soundID)}, nil
	}

	files, err := r.listing()
	if err != nil {
		return Asset{}, err
	}

	var match string
	for _, path := range files {
		if !strings.EqualFold(stem(path), soundID) {
			continue
		}
		if r.isSupported(path) {
			slog.Debug("located sound in supported format", "sound", soundID, "path", path)
			return Asset{Path: path, Format: format(path)}, nil
		}
		if match == "" {
			match = path
		}
	}
	if match == "" {
		return Asset{}, fmt.Errorf("%w: %q under %s", ErrNotFound, soundID, r.root)
	}

	dst := filepath.Join(r.convDir, soundID+"."+r.preferred)
	if _, err := os.Stat(dst); err == nil {
		slog.Debug("reusing converted sound", "sound", soundID, "path", dst)
		return Asset{Path: dst, Format: r.preferred}, nil
	}

	slog.Info("converting sound", "sound", soundID, "src", match, "dst", dst)
	if err := r.conv.Convert(ctx, match, dst); err != nil {
		return Asset{}, fmt.Errorf("%w: %s: %v", ErrConversionFailed, match, err)
	}
	return Asset{Path: dst, Format: r.preferred}, nil
}

// Invalidate drops the listing snapshot.
func (r *Resolver) Invalidate() {
	if r.index != nil {
		r.index.Flush()
	}
}

func (r *Resolver) listing() ([]string, error) {
	if r.index != nil {
		if v, ok := r.index.Get(listingKey); ok {
			return v.([]string), nil
		}
	}

	var files []string
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, a missing root is not
			if path == r.root {
				return err
			}
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", r.root, err)
	}

	if r.index != nil {
		r.index.SetDefault(listingKey, files)
	}
	return files, nil
}

func (r *Resolver) isSupported(path string) bool {
	return slices.Contains(r.supported, format(path))
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
