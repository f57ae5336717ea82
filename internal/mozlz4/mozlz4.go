// Package mozlz4 reads and writes Mozilla's mozlz4 container: an 8-byte
// magic "mozLz40\x00", a 4-byte little-endian uncompressed size and a raw
// lz4 block.
package mozlz4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

const headerSize = 12 // 8 magic + 4 size

var magic = []byte("mozLz40\x00")

// ErrBadMagic is returned when the input does not start with the mozlz4 magic.
var ErrBadMagic = errors.New("mozlz4: invalid header magic")

// IsCompressed reports whether data carries the mozlz4 magic.
func IsCompressed(data []byte) bool {
	return len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic)
}

// Decompress decodes a mozlz4 payload.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	if !IsCompressed(data) {
		return nil, ErrBadMagic
	}

	size := binary.LittleEndian.Uint32(data[8:12])
	if size == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// Compress encodes data as a mozlz4 payload that Firefox can read back.
func Compress(data []byte) ([]byte, error) {
	buf := make([]byte, headerSize+lz4.CompressBlockBound(len(data)))
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(data)))

	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("mozlz4: compress failed: %w", err)
	}
	if n == 0 && len(data) > 0 {
		// Incompressible input: emit a single literal run.
		n = literalBlock(data, buf[headerSize:])
	}
	return buf[:headerSize+n], nil
}

// literalBlock writes data as one lz4 sequence made only of literals.
func literalBlock(data, dst []byte) int {
	i := 0
	l := len(data)
	if l < 15 {
		dst[i] = byte(l << 4)
		i++
	} else {
		dst[i] = 0xF0
		i++
		rest := l - 15
		for rest >= 255 {
			dst[i] = 255
			i++
			rest -= 255
		}
		dst[i] = byte(rest)
		i++
	}
	i += copy(dst[i:], data)
	return i
}
