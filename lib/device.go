/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

import (
	"errors"
	"os"
	"strings"
	"time"
)

// ErrDeviceUnavailable is returned when the device channel cannot be
// opened. Operations that only need the device (accessory polling,
// identify) abort gracefully on it; job printing surfaces it as a job
// failure.
var ErrDeviceUnavailable = errors.New("device unavailable")

// DeviceChannel is the physical or network side channel of a queue.
// Reads are bounded; a zero-length result with nil error means the
// device had nothing to say within the timeout.
type DeviceChannel interface {
	Write(p []byte) (int, error)
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	Flush() error
	Close() error
}

// OpenDevice opens the channel behind a queue's device URI. Only file:
// URIs are handled here; network transports belong to the server
// framework in front of this layer.
func OpenDevice(uri string) (DeviceChannel, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return OpenFileDevice(strings.TrimPrefix(uri, "file://"))
	case strings.HasPrefix(uri, "file:"):
		return OpenFileDevice(strings.TrimPrefix(uri, "file:"))
	default:
		return nil, ErrDeviceUnavailable
	}
}

// FileDevice spools device bytes to a file. It backs file: device URIs
// and every test that needs to observe the byte stream. Reads always
// time out: a file never talks back.
type FileDevice struct {
	f *os.File
}

func OpenFileDevice(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, ErrDeviceUnavailable
	}
	return &FileDevice{f: f}, nil
}

func (d *FileDevice) Write(p []byte) (int, error) {
	return d.f.Write(p)
}

func (d *FileDevice) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	time.Sleep(timeout)
	return 0, nil
}

func (d *FileDevice) Flush() error {
	return d.f.Sync()
}

func (d *FileDevice) Close() error {
	return d.f.Close()
}
