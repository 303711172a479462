package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is wrapped by every error caused by a malformed archive.
	ErrFormat = errors.New("malformed archive")

	// ErrBadMagic is returned when the archive does not start with Magic.
	ErrBadMagic = fmt.Errorf("%w: invalid magic", ErrFormat)

	// ErrNotFound is returned when a path is not present in the index.
	ErrNotFound = errors.New("entry not found")

	// ErrChecksumMismatch is wrapped by IntegrityError.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidPath is returned when packing a path that is not a clean
	// relative slash-separated path.
	ErrInvalidPath = errors.New("invalid entry path")

	// ErrTooLarge is returned when the archive would not fit 32-bit offsets.
	ErrTooLarge = errors.New("archive exceeds 4 GiB")
)

// IntegrityError reports a checksum mismatch. It does not prevent reads.
type IntegrityError struct {
	Stored   uint64
	Computed uint64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch: stored %012x, computed %012x", e.Stored, e.Computed)
}

func (e *IntegrityError) Unwrap() error {
	return ErrChecksumMismatch
}
