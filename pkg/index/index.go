// Package index encodes and decodes the file index of a SWAR archive.
//
// The index is a sequence of entries, each a NUL-terminated UTF-8 path
// followed by a big-endian uint32 offset and a big-endian uint32 length.
// A lone zero byte in place of a path terminates the index.
package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Terminator marks the end of the index.
const Terminator byte = 0x00

// fieldsSize is the size of the offset and length fields of one entry.
const fieldsSize = 8

var (
	// ErrFormat is wrapped by every decode error.
	ErrFormat = errors.New("malformed index")

	// ErrTruncated is returned when the buffer ends inside the index.
	ErrTruncated = fmt.Errorf("%w: truncated", ErrFormat)

	// ErrDuplicatePath is returned when a path appears more than once.
	ErrDuplicatePath = fmt.Errorf("%w: duplicate path", ErrFormat)

	// ErrOutOfRange is returned when an entry points past the end of the archive.
	ErrOutOfRange = fmt.Errorf("%w: entry out of range", ErrFormat)

	// ErrEmptyPath is returned when encoding an entry without a name.
	ErrEmptyPath = errors.New("empty path")

	// ErrInvalidPath is returned when a path contains a NUL byte or is not UTF-8.
	ErrInvalidPath = errors.New("invalid path")

	// ErrShortBuffer is returned when the destination cannot hold the encoded index.
	ErrShortBuffer = errors.New("buffer too small for index")
)

// Entry locates one file's payload within an archive.
type Entry struct {
	Path   string
	Offset uint32 // Absolute byte offset within the archive
	Length uint32 // Payload length in bytes
}

// End returns the offset of the first byte after the entry's payload.
func (e Entry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Length)
}

// Index is a decoded index. Entries keep the order they were written in.
type Index struct {
	entries []Entry
	byPath  map[string]int
}

// New builds an index from entries, rejecting duplicate paths.
func New(entries []Entry) (*Index, error) {
	idx := &Index{
		entries: make([]Entry, 0, len(entries)),
		byPath:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if err := idx.add(e); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) add(e Entry) error {
	if _, ok := idx.byPath[e.Path]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, e.Path)
	}
	idx.byPath[e.Path] = len(idx.entries)
	idx.entries = append(idx.entries, e)
	return nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Lookup returns the entry stored under path.
func (idx *Index) Lookup(path string) (Entry, bool) {
	i, ok := idx.byPath[path]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Paths returns the entry paths in index order.
func (idx *Index) Paths() []string {
	paths := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		paths[i] = e.Path
	}
	return paths
}

// Entries returns a copy of the entries in index order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Validate checks that every entry lies within an archive of the given size.
func (idx *Index) Validate(size int64) error {
	for _, e := range idx.entries {
		if size < 0 || e.End() > uint64(size) {
			return fmt.Errorf("%w: %q spans [%d, %d) in %d bytes", ErrOutOfRange, e.Path, e.Offset, e.End(), size)
		}
	}
	return nil
}

// Size returns the encoded size of an index holding the given paths.
func Size(paths ...string) int {
	n := 1 // terminator
	for _, p := range paths {
		n += len(p) + 1 + fieldsSize
	}
	return n
}

// EncodedSize returns the encoded size of entries.
func EncodedSize(entries []Entry) int {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return Size(paths...)
}

// CheckPath reports whether p can be stored as an index name.
func CheckPath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if strings.IndexByte(p, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, p)
	}
	if !utf8.ValidString(p) {
		return fmt.Errorf("%w: %q is not UTF-8", ErrInvalidPath, p)
	}
	return nil
}

// Encode returns the encoded form of entries.
func Encode(entries []Entry) ([]byte, error) {
	buf := make([]byte, EncodedSize(entries))
	if _, err := EncodeTo(buf, entries); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeTo writes the encoded entries into dst and returns the bytes written.
func EncodeTo(dst []byte, entries []Entry) (int, error) {
	if len(dst) < EncodedSize(entries) {
		return 0, fmt.Errorf("%w: need %d, got %d", ErrShortBuffer, EncodedSize(entries), len(dst))
	}

	seen := make(map[string]struct{}, len(entries))
	pos := 0
	for _, e := range entries {
		if err := CheckPath(e.Path); err != nil {
			return 0, err
		}
		if _, ok := seen[e.Path]; ok {
			return 0, fmt.Errorf("%w: %q", ErrDuplicatePath, e.Path)
		}
		seen[e.Path] = struct{}{}

		pos += copy(dst[pos:], e.Path)
		dst[pos] = Terminator
		pos++
		binary.BigEndian.PutUint32(dst[pos:pos+4], e.Offset)
		binary.BigEndian.PutUint32(dst[pos+4:pos+8], e.Length)
		pos += fieldsSize
	}
	dst[pos] = Terminator
	pos++

	return pos, nil
}

// Decode parses an index starting at cursor. It returns the index and the
// position just past the terminator, which is where the payload begins.
func Decode(data []byte, cursor int) (*Index, int, error) {
	if cursor < 0 || cursor > len(data) {
		return nil, 0, fmt.Errorf("%w: cursor %d outside %d bytes", ErrTruncated, cursor, len(data))
	}

	idx := &Index{byPath: make(map[string]int)}
	for {
		n := bytes.IndexByte(data[cursor:], Terminator)
		if n < 0 {
			return nil, 0, fmt.Errorf("%w: unterminated name at %d", ErrTruncated, cursor)
		}
		end := cursor + n
		if end == cursor {
			return idx, cursor + 1, nil
		}

		if !utf8.Valid(data[cursor:end]) {
			return nil, 0, fmt.Errorf("%w: name at %d is not UTF-8", ErrFormat, cursor)
		}
		name := string(data[cursor:end])
		cursor = end + 1
		if len(data)-cursor < fieldsSize {
			return nil, 0, fmt.Errorf("%w: entry %q missing offset/length", ErrTruncated, name)
		}

		e := Entry{
			Path:   name,
			Offset: binary.BigEndian.Uint32(data[cursor : cursor+4]),
			Length: binary.BigEndian.Uint32(data[cursor+4 : cursor+8]),
		}
		cursor += fieldsSize

		if err := idx.add(e); err != nil {
			return nil, 0, err
		}
	}
}

