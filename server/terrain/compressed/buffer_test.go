// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package compressed

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func TestCompressedBuffer_Write(t *testing.T) {
	const n = 1024
	var buffer Buffer

	_, _ = buffer.Write(make([]byte, n))

	// 1024 zeros is 4 full runs of 255 and one of 4
	if buf := buffer.Buffer(); len(buf) != 10 {
		t.Error("Buffer.Write(make([]byte, 1024) expected", 10, "got", len(buf))
		t.Error(buf)
	}
}

func TestCompressedBuffer_Read(t *testing.T) {
	const n = 1024
	var buffer Buffer

	input := make([]byte, n)
	for i := range input {
		input[i] = byte(rand.Intn(4))
	}

	_, _ = buffer.Write(input)
	encoded := append([]byte(nil), buffer.Buffer()...)

	output := make([]byte, n*2)
	r, _ := buffer.Read(output)
	output = output[:r]

	if !bytes.Equal(input, output) {
		t.Error("Buffer.Read expected", len(input), "got", len(output), "\ninput:", input, "\noutput:", output)
	}

	if _, err := buffer.Read(output); err != io.EOF {
		t.Error("Buffer.Read after end expected EOF got", err)
	}

	// Reading never modifies the encoded tuples
	buffer.Reset(encoded)
	if !bytes.Equal(buffer.Buffer(), encoded) {
		t.Error("Buffer.Read modified input")
	}
}

func TestCompressedBuffer_SmallReads(t *testing.T) {
	input := bytes.Repeat([]byte{1, 1, 1, 2, 3, 3}, 300)

	var buffer Buffer
	_, _ = buffer.Write(input)

	var output bytes.Buffer
	small := make([]byte, 7)
	for {
		n, err := buffer.Read(small)
		output.Write(small[:n])
		if err == io.EOF {
			break
		}
	}

	if !bytes.Equal(input, output.Bytes()) {
		t.Error("small reads expected", len(input), "got", output.Len())
	}
}
