// Command inspect reports on the local grid asset cache without touching the
// network. It checks every cached NetCDF file against the same validity rules
// the downloader applies, so stale error pages or truncated files surface
// before the next ingestion run trips over them.
//
// Usage:
//
//	go run ./cmd/inspect -cache-dir .cache/grids
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reefwatch/griddap-etl/internal/erddap"
)

type report struct {
	valid   []string
	invalid map[string]string // name -> reason
}

func main() {
	cacheDir := flag.String("cache-dir", ".cache/grids", "directory holding downloaded grid assets")
	minBytes := flag.Int64("min-bytes", erddap.DefaultMinBytes, "minimum plausible size of a grid asset")
	flag.Parse()

	r, err := inspect(*cacheDir, *minBytes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	for _, name := range r.valid {
		fmt.Printf("ok    %s\n", name)
	}
	names := make([]string, 0, len(r.invalid))
	for name := range r.invalid {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("BAD   %s: %s\n", name, r.invalid[name])
	}

	fmt.Printf("\n%d valid, %d invalid\n", len(r.valid), len(r.invalid))
	if len(r.invalid) > 0 {
		os.Exit(1)
	}
}

func inspect(dir string, minBytes int64) (*report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache dir: %w", err)
	}

	r := &report{invalid: make(map[string]string)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") {
			r.invalid[name] = "leftover partial download"
			continue
		}
		if !strings.HasSuffix(name, ".nc") {
			continue
		}
		if err := erddap.ValidateAsset(filepath.Join(dir, name), minBytes); err != nil {
			r.invalid[name] = err.Error()
			continue
		}
		r.valid = append(r.valid, name)
	}
	sort.Strings(r.valid)
	return r, nil
}
