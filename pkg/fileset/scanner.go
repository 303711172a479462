// Package fileset moves archive contents between SWAR archives and
// directory trees on disk.
package fileset

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ScannedFile is a regular file found while walking an input directory.
type ScannedFile struct {
	Path    string // Relative, slash separated
	SrcPath string // Location on disk
	Size    int64
}

type scanConfig struct {
	concurrency int
	logger      *slog.Logger
}

// ScanOption configures ScanDir.
type ScanOption func(*scanConfig)

// WithConcurrency bounds the number of files read at once.
func WithConcurrency(n int) ScanOption {
	return func(c *scanConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithScanLogger sets the logger used while scanning.
func WithScanLogger(logger *slog.Logger) ScanOption {
	return func(c *scanConfig) {
		c.logger = logger
	}
}

// Walk lists the regular files below inputDir. Symbolic links and other
// non-regular files are skipped; empty directories are not recorded.
func Walk(inputDir string) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		size := info.Size()
		if size > math.MaxUint32 {
			return fmt.Errorf("file too large: %s (size %d exceeds %d bytes)", path, size, int64(math.MaxUint32))
		}

		files = append(files, ScannedFile{
			Path:    filepath.ToSlash(relPath),
			SrcPath: path,
			Size:    size,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ScanDir walks inputDir and reads every regular file into memory, keyed
// by its slash-separated path relative to inputDir.
func ScanDir(ctx context.Context, inputDir string, opts ...ScanOption) (map[string][]byte, error) {
	cfg := &scanConfig{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", inputDir)
	}

	scanned, err := Walk(inputDir)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", inputDir, err)
	}
	cfg.logger.Debug("directory scanned", "dir", inputDir, "files", len(scanned))

	var (
		mu    sync.Mutex
		files = make(map[string][]byte, len(scanned))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for _, f := range scanned {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(f.SrcPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", f.Path, err)
			}

			mu.Lock()
			files[f.Path] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return files, nil
}
