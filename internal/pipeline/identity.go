package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"covidstats/internal/stats"
)

// Identify describes the source file at path. Content is not read; the
// fingerprint is a hash of the path, size and modification time, so any
// rewrite of the file changes it.
func Identify(path string) (*stats.Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("source %s: not a regular file", path)
	}
	path = filepath.Clean(path)
	mod := fi.ModTime().UTC()

	h := xxhash.New()
	fmt.Fprintf(h, "%s|%d|%d", path, fi.Size(), mod.UnixNano())

	return &stats.Source{
		Path:        path,
		SizeBytes:   fi.Size(),
		Modified:    mod,
		Fingerprint: fmt.Sprintf("%016x", h.Sum64()),
	}, nil
}
