package fileset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/swarFileTools/pkg/archive"
)

// Failure records an entry that could not be extracted.
type Failure struct {
	Path string
	Err  error
}

// ExtractResult summarizes an extraction.
type ExtractResult struct {
	Written []string
	Failed  []Failure
	Bytes   int64
}

// extractConfig holds extraction options.
type extractConfig struct {
	prefixes []string
	logger   *slog.Logger
}

// ExtractOption configures extraction behavior.
type ExtractOption func(*extractConfig)

// WithPathFilter limits extraction to entries under any of the given path
// prefixes.
func WithPathFilter(prefixes ...string) ExtractOption {
	return func(c *extractConfig) {
		c.prefixes = append(c.prefixes, prefixes...)
	}
}

// WithExtractLogger sets the logger that reports each written entry.
func WithExtractLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

func (c *extractConfig) allowed(path string) bool {
	if len(c.prefixes) == 0 {
		return true
	}
	for _, p := range c.prefixes {
		p = strings.Trim(p, "/")
		if p == "" || path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Extract writes every entry of r below outputDir, creating directories as
// needed. An entry that cannot be read or written is recorded in the result
// and extraction moves on to the next one. Entries whose path would land
// outside outputDir are never written.
func Extract(ctx context.Context, r *archive.Reader, outputDir string, opts ...ExtractOption) (*ExtractResult, error) {
	cfg := &extractConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	res := &ExtractResult{}
	// Pre-create directory cache to avoid repeated MkdirAll calls
	createdDirs := make(map[string]struct{})

	for _, path := range r.List() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !cfg.allowed(path) {
			continue
		}

		n, err := extractEntry(r, outputDir, path, createdDirs)
		if err != nil {
			cfg.logger.Warn("entry could not be extracted", "path", path, "error", err)
			res.Failed = append(res.Failed, Failure{Path: path, Err: err})
			continue
		}

		cfg.logger.Info("unpacked", "path", path, "bytes", n)
		res.Written = append(res.Written, path)
		res.Bytes += n
	}

	return res, nil
}

func extractEntry(r *archive.Reader, outputDir, path string, createdDirs map[string]struct{}) (int64, error) {
	if err := archive.CheckPath(path); err != nil {
		return 0, err
	}
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return 0, fmt.Errorf("%w: %q escapes output directory", archive.ErrInvalidPath, path)
	}

	src, err := r.OpenEntry(path)
	if err != nil {
		return 0, err
	}

	target := filepath.Join(outputDir, local)
	dir := filepath.Dir(target)
	if _, exists := createdDirs[dir]; !exists {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create dir %s: %w", dir, err)
		}
		createdDirs[dir] = struct{}{}
	}

	f, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", target, err)
	}
	return n, nil
}

// IsDirEmpty reports whether path is an empty directory. A missing
// directory counts as empty.
func IsDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}
