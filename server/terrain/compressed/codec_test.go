// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package compressed

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

const volume = 16 * 16 * 64

func testRoundTrip(t *testing.T, name string, input []byte) {
	t.Helper()

	encoded := Encode(input)
	output, err := Decode(encoded, len(input))
	if err != nil {
		t.Errorf("%s: Decode error: %v", name, err)
		return
	}
	if !bytes.Equal(input, output) {
		t.Errorf("%s: round trip mismatch", name)
	}
}

func TestRoundTrip(t *testing.T) {
	empty := make([]byte, volume)
	testRoundTrip(t, "empty", empty)
	if n := len(Encode(empty)); n != 2*((volume+maxCount-1)/maxCount) {
		t.Error("empty chunk encoded to", n, "bytes")
	}

	same := bytes.Repeat([]byte{7}, volume)
	testRoundTrip(t, "same", same)

	random := make([]byte, volume)
	rand.Read(random)
	testRoundTrip(t, "random", random)

	// Maximally varying input doubles in size
	varying := make([]byte, volume)
	for i := range varying {
		varying[i] = byte(i)
	}
	testRoundTrip(t, "varying", varying)
	if n := len(Encode(varying)); n != 2*volume {
		t.Error("varying chunk expected", 2*volume, "bytes got", n)
	}

	// Layered terrain
	layered := make([]byte, volume)
	for i := range layered {
		if y := i % 64; y < 20 {
			layered[i] = 1
		} else if y < 23 {
			layered[i] = 2
		}
	}
	testRoundTrip(t, "layered", layered)

	testRoundTrip(t, "zero length", nil)

	for i := 0; i < 100; i++ {
		input := make([]byte, rand.Intn(2000))
		for j := range input {
			input[j] = byte(rand.Intn(3))
		}
		testRoundTrip(t, "short", input)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	encoded := Encode(bytes.Repeat([]byte{3}, volume))

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", encoded[:len(encoded)-2]},
		{"odd", encoded[:len(encoded)-1]},
		{"extended", append(append([]byte(nil), encoded...), 5, 1)},
		{"zero count", append([]byte{5, 0}, encoded...)},
		{"empty", nil},
	}

	for _, test := range tests {
		_, err := Decode(test.data, volume)
		if !errors.Is(err, ErrCorruptChunkData) {
			t.Errorf("%s: expected ErrCorruptChunkData got %v", test.name, err)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	input := make([]byte, volume)
	for i := range input {
		if i%64 < 30 {
			input[i] = 1
		}
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = Encode(input)
	}
}
