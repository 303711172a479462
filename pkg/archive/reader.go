package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goopsie/swarFileTools/pkg/index"
)

// initialIndexRead is the first chunk read when looking for the end of the
// index; it doubles until the terminator is found.
const initialIndexRead = 4096

// Reader provides random access to the entries of an archive.
// It is safe for concurrent use if the underlying io.ReaderAt is.
type Reader struct {
	cfg      *config
	src      io.ReaderAt
	closer   io.Closer
	size     int64
	header   Header
	index    *index.Index
	payload  int64
	computed uint64
	verified bool
	verr     *IntegrityError
}

// Open parses an archive held in memory.
func Open(data []byte, opts ...Option) (*Reader, error) {
	return NewReader(bytes.NewReader(data), int64(len(data)), opts...)
}

// OpenFile opens the archive at path. The file stays open until Close.
func OpenFile(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	r, err := NewReader(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the header and index of the archive in src, which is
// size bytes long. The checksum is recomputed unless WithVerify(false) is
// given; a mismatch is reported by Verify and does not fail NewReader.
func NewReader(src io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrFormat, size)
	}
	if size > MaxArchiveSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	r := &Reader{
		cfg:  newConfig(opts),
		src:  src,
		size: size,
	}

	if err := r.readHeader(); err != nil {
		return nil, err
	}
	if err := r.readIndex(); err != nil {
		return nil, err
	}
	if r.cfg.verify {
		if err := r.verify(); err != nil {
			return nil, err
		}
	}

	r.cfg.logger.Debug("archive opened",
		"size", r.size,
		"files", r.index.Len(),
		"payload_offset", r.payload,
		"checksum", fmt.Sprintf("%012x", r.header.Checksum))

	return r, nil
}

func (r *Reader) readHeader() error {
	var buf [HeaderSize]byte
	n, err := r.src.ReadAt(buf[:min(r.size, HeaderSize)], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w", err)
	}
	if n < len(Magic) || !bytes.Equal(buf[:len(Magic)], Magic[:]) {
		return fmt.Errorf("%w: got %q", ErrBadMagic, buf[:min(n, len(Magic))])
	}
	if n < HeaderSize {
		return fmt.Errorf("%w: header too short: need %d, got %d", ErrFormat, HeaderSize, n)
	}
	return r.header.UnmarshalBinary(buf[:])
}

// readIndex reads a growing window after the header until the index
// decodes or the archive is exhausted.
func (r *Reader) readIndex() error {
	remaining := r.size - HeaderSize
	want := min(remaining, initialIndexRead)

	for {
		buf := make([]byte, want)
		if _, err := r.src.ReadAt(buf, HeaderSize); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read index: %w", err)
		}

		idx, cursor, err := index.Decode(buf, 0)
		if errors.Is(err, index.ErrTruncated) && want < remaining {
			want = min(remaining, want*2)
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}

		r.index = idx
		r.payload = HeaderSize + int64(cursor)
		break
	}

	if err := r.index.Validate(r.size); err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	for _, e := range r.index.Entries() {
		if int64(e.Offset) < r.payload {
			return fmt.Errorf("%w: %w: %q starts at %d inside the header or index", ErrFormat, index.ErrOutOfRange, e.Path, e.Offset)
		}
	}
	return nil
}

func (r *Reader) verify() error {
	h := NewChecksum()
	if _, err := io.Copy(h, io.NewSectionReader(r.src, HeaderSize, r.size-HeaderSize)); err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}

	r.computed = h.Sum64()
	r.verified = true
	if r.computed != r.header.Checksum {
		r.verr = &IntegrityError{Stored: r.header.Checksum, Computed: r.computed}
		// reported to the caller through Verify
		r.cfg.logger.Debug("archive checksum mismatch",
			"stored", fmt.Sprintf("%012x", r.header.Checksum),
			"computed", fmt.Sprintf("%012x", r.computed))
	}
	return nil
}

// Verify returns an *IntegrityError if the stored checksum does not match
// the archive contents. Verification runs on first call when the Reader
// was opened with WithVerify(false).
func (r *Reader) Verify() error {
	if !r.verified {
		if err := r.verify(); err != nil {
			return err
		}
	}
	if r.verr != nil {
		return r.verr
	}
	return nil
}

// Header returns the archive header.
func (r *Reader) Header() Header {
	return r.header
}

// Index returns the decoded index.
func (r *Reader) Index() *index.Index {
	return r.index
}

// List returns the entry paths in index order.
func (r *Reader) List() []string {
	return r.index.Paths()
}

// Stat returns the index entry for path.
func (r *Reader) Stat(path string) (index.Entry, bool) {
	return r.index.Lookup(path)
}

// StoredChecksum returns the checksum recorded in the header.
func (r *Reader) StoredChecksum() uint64 {
	return r.header.Checksum
}

// ComputedChecksum returns the checksum of the archive contents, computing
// it if the Reader was opened without verification.
func (r *Reader) ComputedChecksum() (uint64, error) {
	if !r.verified {
		if err := r.verify(); err != nil {
			return 0, err
		}
	}
	return r.computed, nil
}

// PayloadOffset returns the offset of the first payload byte.
func (r *Reader) PayloadOffset() int64 {
	return r.payload
}

// Size returns the archive size in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// OpenEntry returns a reader over the payload of path.
func (r *Reader) OpenEntry(path string) (*io.SectionReader, error) {
	e, ok := r.index.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return io.NewSectionReader(r.src, int64(e.Offset), int64(e.Length)), nil
}

// Read returns the payload of path.
func (r *Reader) Read(path string) ([]byte, error) {
	e, ok := r.index.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}

	data := make([]byte, e.Length)
	n, err := r.src.ReadAt(data, int64(e.Offset))
	if n == len(data) {
		return data, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %q: %w", path, err)
}

// Close releases the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
