package archive

import (
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/goopsie/swarFileTools/pkg/index"
)

// MaxArchiveSize is the largest archive addressable by 32-bit offsets.
const MaxArchiveSize = math.MaxUint32

type pendingFile struct {
	path string
	data []byte
}

// Writer collects files and lays them out as an archive. Files are written
// in the order they were added.
type Writer struct {
	cfg   *config
	files []pendingFile
	seen  map[string]struct{}
	size  uint64 // payload bytes added so far
}

// NewWriter creates an empty archive writer.
func NewWriter(opts ...Option) *Writer {
	return &Writer{
		cfg:  newConfig(opts),
		seen: make(map[string]struct{}),
	}
}

// CheckPath reports whether p is a valid entry path: relative, slash
// separated, without empty, "." or ".." elements.
func CheckPath(p string) error {
	if err := index.CheckPath(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if !fs.ValidPath(p) || p == "." || strings.ContainsRune(p, '\\') {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}

// Add queues a file for the archive. The data is not copied.
func (w *Writer) Add(path string, data []byte) error {
	if err := CheckPath(path); err != nil {
		return err
	}
	if _, ok := w.seen[path]; ok {
		return fmt.Errorf("add %q: %w", path, index.ErrDuplicatePath)
	}
	if uint64(len(data)) > MaxArchiveSize {
		return fmt.Errorf("add %q: %w", path, ErrTooLarge)
	}

	w.seen[path] = struct{}{}
	w.files = append(w.files, pendingFile{path: path, data: data})
	w.size += uint64(len(data))
	return nil
}

// Len returns the number of files added.
func (w *Writer) Len() int {
	return len(w.files)
}

// Bytes lays out the archive: header and a zeroed index region first, then
// the payloads back-to-back, then the index filled in place, and finally the
// checksum over everything after the header.
func (w *Writer) Bytes() ([]byte, error) {
	paths := make([]string, len(w.files))
	for i, f := range w.files {
		paths[i] = f.path
	}
	indexSize := index.Size(paths...)

	total := uint64(HeaderSize) + uint64(indexSize) + w.size
	if total > MaxArchiveSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, total)
	}

	buf := make([]byte, HeaderSize+indexSize, total)
	copy(buf[0:4], Magic[:])

	entries := make([]index.Entry, len(w.files))
	for i, f := range w.files {
		entries[i] = index.Entry{
			Path:   f.path,
			Offset: uint32(len(buf)),
			Length: uint32(len(f.data)),
		}
		buf = append(buf, f.data...)
	}

	if _, err := index.EncodeTo(buf[HeaderSize:HeaderSize+indexSize], entries); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}

	sum := Checksum(buf[HeaderSize:])
	NewHeader(sum).EncodeTo(buf[:HeaderSize])

	w.cfg.logger.Debug("archive packed",
		"files", len(entries),
		"index_size", indexSize,
		"size", len(buf),
		"checksum", fmt.Sprintf("%012x", sum))

	return buf, nil
}

// WriteTo writes the archive to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	data, err := w.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("write archive: %w", err)
	}
	return int64(n), nil
}

// sortedPaths returns the keys of files in lexical order.
func sortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Pack builds an archive from files. Entries are laid out in path order so
// that packing the same set twice yields identical bytes.
func Pack(files map[string][]byte, opts ...Option) ([]byte, error) {
	w := NewWriter(opts...)
	for _, p := range sortedPaths(files) {
		if err := w.Add(p, files[p]); err != nil {
			return nil, err
		}
	}
	return w.Bytes()
}

// Encode packs files and writes the archive to dst.
func Encode(dst io.Writer, files map[string][]byte, opts ...Option) error {
	data, err := Pack(files, opts...)
	if err != nil {
		return err
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

// PackFile packs files into a new archive at path. After writing, the
// stored checksum is read back and compared; a mismatch is logged but does
// not fail the call.
func PackFile(path string, files map[string][]byte, opts ...Option) error {
	cfg := newConfig(opts)

	data, err := Pack(files, opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	var want Header
	want.DecodeFrom(data)
	got, err := ReadChecksum(path)
	switch {
	case err != nil:
		cfg.logger.Warn("checksum self-check failed", "path", path, "error", err)
	case got != want.Checksum:
		cfg.logger.Warn("checksum self-check mismatch",
			"path", path,
			"written", fmt.Sprintf("%012x", want.Checksum),
			"read", fmt.Sprintf("%012x", got))
	default:
		cfg.logger.Debug("checksum self-check passed", "path", path, "checksum", fmt.Sprintf("%012x", got))
	}
	return nil
}

// ReadChecksum returns the checksum stored in the header of the archive at
// path without parsing the index.
func ReadChecksum(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var buf [HeaderSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: read header: %w", ErrFormat, err)
	}

	h := &Header{}
	if err := h.UnmarshalBinary(buf[:]); err != nil {
		return 0, err
	}
	return h.Checksum, nil
}

var _ io.WriterTo = (*Writer)(nil)
