// Package statcache persists statistics bundles as indented UTF-8 JSON.
package statcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"covidstats/internal/stats"
)

var (
	// ErrNotFound is returned when the cache file does not exist.
	ErrNotFound = errors.New("statistics cache not found")
	// ErrEmpty is returned when the cache file exists but holds no data.
	ErrEmpty = errors.New("statistics cache empty")
)

// ParseError reports a cache file that exists but is not a valid bundle.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse statistics cache %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Exists reports whether a cache file is present at path.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Save writes b to path through a temporary file and a rename.
func Save(path string, b *stats.Bundle) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp statistics file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write statistics: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod statistics: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync statistics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close statistics: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish statistics: %w", err)
	}
	return nil
}

// Load reads the bundle at path. A missing file yields ErrNotFound, a file
// with only whitespace ErrEmpty, and anything that does not decode into a
// bundle a *ParseError. A well-formed "{}" loads successfully as a bundle
// with no sections; whether that is usable is the caller's decision.
func Load(path string) (*stats.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	var b stats.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &b, nil
}
