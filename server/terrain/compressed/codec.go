// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package compressed

import (
	"errors"
	"fmt"
	"io"
)

// ErrCorruptChunkData means encoded data does not expand to the expected length.
var ErrCorruptChunkData = errors.New("corrupt chunk data")

// Encode run length encodes blocks. Incompressible input may grow to twice its length.
func Encode(blocks []byte) []byte {
	var buffer Buffer
	buffer.Grow(len(blocks))
	_, _ = buffer.Write(blocks)
	return buffer.Buffer()
}

// Decode expands data produced by Encode.
// It returns ErrCorruptChunkData unless data expands to exactly expectedLength bytes.
func Decode(data []byte, expectedLength int) ([]byte, error) {
	out := make([]byte, expectedLength)
	if err := DecodeInto(out, data); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeInto is Decode into an existing slice; len(dst) is the expected length.
func DecodeInto(dst, data []byte) error {
	length, err := expandedLength(data, len(dst))
	if err != nil {
		return err
	}
	if length != len(dst) {
		return fmt.Errorf("%w: expanded to %d bytes, expected %d", ErrCorruptChunkData, length, len(dst))
	}

	var buffer Buffer
	buffer.Reset(data)
	if _, err = io.ReadFull(&buffer, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptChunkData, err)
	}
	return nil
}

// expandedLength validates tuples and sums their counts, stopping early past limit.
func expandedLength(data []byte, limit int) (int, error) {
	if len(data)%2 != 0 {
		return 0, fmt.Errorf("%w: odd length %d", ErrCorruptChunkData, len(data))
	}

	length := 0
	for i := 1; i < len(data); i += 2 {
		count := int(data[i])
		if count == 0 {
			return 0, fmt.Errorf("%w: empty run at %d", ErrCorruptChunkData, i-1)
		}
		length += count
		if length > limit {
			return 0, fmt.Errorf("%w: expands past %d bytes", ErrCorruptChunkData, limit)
		}
	}

	return length, nil
}
