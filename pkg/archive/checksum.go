package archive

import (
	"encoding/binary"
	"hash"
)

// ChecksumMask selects the 48 significant bits of an archive checksum.
const ChecksumMask = 0xFFFFFFFFFFFF

// ChecksumSize is the number of bytes Sum appends.
const ChecksumSize = 8

// Checksum returns the 48-bit rotate-XOR checksum of data.
//
// Each byte is XORed into the low bits of the accumulator, which is then
// rotated left by one within 48 bits.
func Checksum(data []byte) uint64 {
	return update(0, data)
}

func update(acc uint64, data []byte) uint64 {
	for _, b := range data {
		acc = (((acc ^ uint64(b)) << 1) & ChecksumMask) | (acc >> 47)
	}
	return acc
}

type checksum struct {
	acc uint64
}

var _ hash.Hash64 = (*checksum)(nil)

// NewChecksum returns a streaming archive checksum.
func NewChecksum() hash.Hash64 {
	return &checksum{}
}

func (c *checksum) Write(p []byte) (int, error) {
	c.acc = update(c.acc, p)
	return len(p), nil
}

func (c *checksum) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, c.acc)
}

func (c *checksum) Sum64() uint64 {
	return c.acc
}

func (c *checksum) Reset() {
	c.acc = 0
}

func (c *checksum) Size() int {
	return ChecksumSize
}

func (c *checksum) BlockSize() int {
	return 1
}
