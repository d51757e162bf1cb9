// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package compressed

import "io"

// maxCount is the longest run a single tuple can hold. Longer runs are split.
const maxCount = 255

// Buffer writes bytes using run length encoding.
// Each run is a tuple of 2 bytes: the value followed by the count (1 to 255).
type Buffer struct {
	buf []byte
	off int // Read position of the current tuple
	run int // Bytes of the current tuple already read
}

// Reset makes the buffer read from (or append to) buf. buf is never modified by reading.
func (buffer *Buffer) Reset(buf []byte) {
	buffer.buf = buf
	buffer.off = 0
	buffer.run = 0
}

func (buffer *Buffer) writeByte(b byte) {
	buf := buffer.buf
	end := len(buf) - 2

	if end >= buffer.off && buf[end] == b && buf[end+1] < maxCount {
		// Add 1 to count
		buf[end+1]++
	} else {
		// Start new tuple
		buf = append(buf, b, 1)
	}

	buffer.buf = buf
}

// Write implements io.Writer. It never fails.
func (buffer *Buffer) Write(buf []byte) (int, error) {
	for _, b := range buf {
		buffer.writeByte(b)
	}
	return len(buf), nil
}

// Read implements io.Reader, expanding tuples in order.
func (buffer *Buffer) Read(buf []byte) (int, error) {
	i := 0

	for i < len(buf) && buffer.off+1 < len(buffer.buf) {
		value := buffer.buf[buffer.off]
		count := int(buffer.buf[buffer.off+1])

		n := count - buffer.run
		if remaining := len(buf) - i; n > remaining {
			n = remaining
		}

		for end := i + n; i < end; i++ {
			buf[i] = value
		}

		buffer.run += n
		if buffer.run >= count {
			buffer.off += 2
			buffer.run = 0
		}
	}

	if i == 0 && len(buf) > 0 {
		return 0, io.EOF
	}

	return i, nil
}

// Grow makes space for about n uncompressed bytes.
func (buffer *Buffer) Grow(n int) {
	// Terrain columns are mostly a handful of long runs.
	compressed := n / 8
	if old := buffer.buf; cap(old)-len(old) < compressed {
		buf := make([]byte, len(old), len(old)+compressed)
		copy(buf, old)
		buffer.buf = buf
	}
}

// Buffer returns the encoded tuples that have not been completely read.
func (buffer *Buffer) Buffer() []byte {
	return buffer.buf[buffer.off:]
}
