// Package archive reads and writes SWAR archives.
//
// An archive is a 12 byte header, an index (see package index) and the
// concatenated file payloads:
//
//	offset  size  field
//	0       4     magic "SWAR"
//	4       8     checksum, big-endian, low 48 bits used
//	12      var   index
//	...     var   payload
//
// The checksum covers every byte from the start of the index to the end of
// the archive.
package archive

import (
	"encoding/binary"
	"fmt"
)

// Magic bytes identifying a SWAR archive.
var Magic = [4]byte{0x53, 0x57, 0x41, 0x52} // "SWAR"

// HeaderSize is the fixed binary size of an archive header.
const HeaderSize = 12 // 4 + 8 bytes

// Header represents the header of an archive file.
type Header struct {
	Magic    [4]byte
	Checksum uint64 // Only the low 48 bits are significant
}

// Validate checks the header for validity.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: expected %x, got %x", ErrBadMagic, Magic, h.Magic)
	}
	if h.Checksum&^ChecksumMask != 0 {
		return fmt.Errorf("%w: checksum %#x wider than 48 bits", ErrFormat, h.Checksum)
	}
	return nil
}

// MarshalBinary encodes the header to binary format.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo writes the header to the given buffer.
// The buffer must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[0:4], h.Magic[:])
	binary.BigEndian.PutUint64(buf[4:12], h.Checksum)
}

// UnmarshalBinary decodes and validates the header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: header too short: need %d, got %d", ErrFormat, HeaderSize, len(data))
	}
	h.DecodeFrom(data)
	return h.Validate()
}

// DecodeFrom reads the header from the given buffer.
// Does not validate - use UnmarshalBinary for validation.
func (h *Header) DecodeFrom(data []byte) {
	copy(h.Magic[:], data[0:4])
	h.Checksum = binary.BigEndian.Uint64(data[4:12])
}

// NewHeader creates a new archive header carrying the given checksum.
func NewHeader(checksum uint64) *Header {
	return &Header{
		Magic:    Magic,
		Checksum: checksum & ChecksumMask,
	}
}
