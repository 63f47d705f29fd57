/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package raster

import "io"

const wrapColumn = 75

// Encoder is a streaming ASCII85 encoder for PostScript image data.
// Unlike encoding/ascii85 it emits the "z" shorthand for all-zero
// groups and wraps output lines, both expected by PostScript
// interpreters reading large image streams. A partial group of fewer
// than 4 bytes is carried across Write calls and only emitted by Flush.
type Encoder struct {
	w     io.Writer
	group [4]byte
	n     int
	col   int
	err   error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	for i, b := range p {
		e.group[e.n] = b
		e.n++
		if e.n == 4 {
			if err := e.emit(false); err != nil {
				return i + 1, err
			}
		}
	}
	return len(p), nil
}

// Flush emits any pending partial group, zero-padded per the ASCII85
// rules: a group of n bytes yields n+1 characters and never the "z"
// shorthand. Safe to call with no pending data.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if e.n == 0 {
		return nil
	}
	return e.emit(true)
}

func (e *Encoder) emit(partial bool) error {
	for i := e.n; i < 4; i++ {
		e.group[i] = 0
	}
	v := uint32(e.group[0])<<24 | uint32(e.group[1])<<16 |
		uint32(e.group[2])<<8 | uint32(e.group[3])

	if !partial && v == 0 {
		e.n = 0
		return e.out([]byte{'z'})
	}

	var buf [5]byte
	for i := 4; i >= 0; i-- {
		buf[i] = byte(v%85) + '!'
		v /= 85
	}
	count := 5
	if partial {
		count = e.n + 1
	}
	e.n = 0
	return e.out(buf[:count])
}

func (e *Encoder) out(chars []byte) error {
	for _, c := range chars {
		if e.col >= wrapColumn {
			if _, err := e.w.Write([]byte{'\n'}); err != nil {
				e.err = err
				return err
			}
			e.col = 0
		}
		if _, err := e.w.Write([]byte{c}); err != nil {
			e.err = err
			return err
		}
		e.col++
	}
	return nil
}
