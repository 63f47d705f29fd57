/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package raster

import (
	"bytes"
	"encoding/ascii85"
	"io/ioutil"
	"strings"
	"testing"
)

func decodeAll(t *testing.T, encoded string) []byte {
	t.Helper()
	dec := ascii85.NewDecoder(strings.NewReader(encoded))
	out, err := ioutil.ReadAll(dec)
	if err != nil {
		t.Fatalf("decode %q: %s", encoded, err)
	}
	return out
}

func TestEncoderRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 4, 5, 1000, 1003} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 7)
		}

		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		if _, err := enc.Write(data); err != nil {
			t.Fatalf("size %d: %s", size, err)
		}
		if err := enc.Flush(); err != nil {
			t.Fatalf("size %d: flush: %s", size, err)
		}
		// A second flush with no pending data must be a no-op.
		if err := enc.Flush(); err != nil {
			t.Fatalf("size %d: reflush: %s", size, err)
		}

		decoded := decodeAll(t, buf.String())
		if !bytes.Equal(decoded, data) {
			t.Errorf("size %d: round trip mismatch", size)
		}
	}
}

func TestEncoderZeroGroupShorthand(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	// The all-zero group is split across two Write calls; the carried
	// state must still produce a single "z".
	if _, err := enc.Write([]byte{0, 0}); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte{0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	if buf.String() != "z" {
		t.Errorf("encoded %q, expected the z shorthand", buf.String())
	}
	if decoded := decodeAll(t, buf.String()); !bytes.Equal(decoded, make([]byte, 4)) {
		t.Errorf("decoded %v", decoded)
	}
}

func TestEncoderPartialGroupNeverZ(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if _, err := enc.Write([]byte{0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(buf.String(), "z") {
		t.Errorf("partial group encoded as %q", buf.String())
	}
	if len(buf.String()) != 4 {
		t.Errorf("3-byte group should encode to 4 characters, got %q", buf.String())
	}
	if decoded := decodeAll(t, buf.String()); !bytes.Equal(decoded, make([]byte, 3)) {
		t.Errorf("decoded %v", decoded)
	}
}

func TestEncoderLineWrap(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i + 1)
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if _, err := enc.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	for i, line := range strings.Split(buf.String(), "\n") {
		if len(line) > wrapColumn {
			t.Errorf("line %d is %d characters", i, len(line))
		}
	}
	if !bytes.Equal(decodeAll(t, buf.String()), data) {
		t.Error("round trip mismatch")
	}
}
