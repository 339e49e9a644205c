// Package quotes loads daily price exports from a directory of CSV and XLSX files.
package quotes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files parsed at once.
const DefaultConcurrency = 4

// File is one quote export. Asset is the file name without extension.
type File struct {
	Asset string
	Path  string
}

// Loader reads quote directories.
type Loader struct {
	concurrency int
	log         zerolog.Logger
}

// NewLoader creates a loader parsing up to concurrency files at once.
func NewLoader(concurrency int, log zerolog.Logger) *Loader {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Loader{
		concurrency: concurrency,
		log:         log.With().Str("component", "quotes_loader").Logger(),
	}
}

// ListFiles returns the quote files of dir sorted by asset. When a CSV and an XLSX share a
// name, the CSV wins.
func ListFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read quotes directory: %w", err)
	}

	byAsset := make(map[string]File)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		asset := strings.TrimSuffix(name, filepath.Ext(name))
		if asset == "" || strings.HasPrefix(asset, ".") || strings.HasPrefix(asset, "~$") {
			continue
		}
		if prev, ok := byAsset[asset]; ok && strings.EqualFold(filepath.Ext(prev.Path), ".csv") {
			continue
		}
		byAsset[asset] = File{Asset: asset, Path: filepath.Join(dir, name)}
	}

	files := make([]File, 0, len(byAsset))
	for _, f := range byAsset {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Asset < files[j].Asset })
	return files, nil
}

// ParseFile parses a quote file by its extension.
func ParseFile(path string) ([]returns.PricePoint, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ParseXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// LoadDir parses every quote file in dir concurrently. The first failure cancels the rest.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Snapshot, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	results := make([][]returns.PricePoint, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			prices, err := ParseFile(f.Path)
			if err != nil {
				return fmt.Errorf("failed to parse quotes for %s: %w", f.Asset, err)
			}
			results[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := make(map[string][]returns.PricePoint, len(files))
	for i, f := range files {
		prices[f.Asset] = results[i]
		l.log.Debug().
			Str("asset", f.Asset).
			Int("prices", len(results[i])).
			Msg("Loaded quote file")
	}

	l.log.Info().
		Str("dir", dir).
		Int("assets", len(files)).
		Msg("Loaded quotes")
	return NewSnapshot(prices), nil
}
