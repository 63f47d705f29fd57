/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package driver

import (
	"bytes"
	"time"

	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/log"
)

// PollResult accumulates the outcome of one device poll. A timeout on
// one option never aborts the rest of the poll; the count is surfaced
// as a warning instead.
type PollResult struct {
	Queried  int
	Updated  int
	Timeouts int
}

// PollDefaults interrogates the device for the current value of every
// pollable non-installable option and marks the answers as the new
// defaults. The record is flagged stale when anything changed.
func (st *State) PollDefaults(dev lib.DeviceChannel, attempts int, interval time.Duration) PollResult {
	return st.poll(dev, attempts, interval, false)
}

// PollInstallable interrogates the device for the state of the
// installable accessory options.
func (st *State) PollInstallable(dev lib.DeviceChannel, attempts int, interval time.Duration) PollResult {
	return st.poll(dev, attempts, interval, true)
}

func (st *State) poll(dev lib.DeviceChannel, attempts int, interval time.Duration, installable bool) PollResult {
	var res PollResult

	sess := st.PPD.Session()
	defer sess.Close()

	for _, o := range st.PPD.Options() {
		if o.Installable != installable || o.Query == "" {
			continue
		}
		res.Queried++

		answer, ok := queryDevice(dev, o.Query, attempts, interval)
		if !ok {
			res.Timeouts++
			log.WarningQueuef(st.QueueID, "no answer from device for option %s", o.Keyword)
			continue
		}
		if o.Choice(answer) == nil {
			log.WarningQueuef(st.QueueID, "device reported %s=%q which the PPD does not declare",
				o.Keyword, answer)
			continue
		}

		marked, _ := sess.Marked(o.Keyword)
		if marked == answer {
			continue
		}
		if err := sess.Mark(o.Keyword, answer); err == nil {
			res.Updated++
			log.InfoQueuef(st.QueueID, "device reports %s=%s", o.Keyword, answer)
		}
	}

	if res.Updated > 0 {
		sess.Commit()
		st.MarkStale()
	}
	return res
}

// queryDevice sends one PPD query invocation and reads the device's
// one-line answer, retrying the bounded read up to attempts times.
func queryDevice(dev lib.DeviceChannel, invocation string, attempts int, interval time.Duration) (string, bool) {
	job := "%!PS\n" + invocation + "\n"
	if _, err := dev.Write([]byte(job)); err != nil {
		return "", false
	}
	if err := dev.Flush(); err != nil {
		return "", false
	}

	var answer []byte
	buf := make([]byte, 256)
	for i := 0; i < attempts; i++ {
		n, err := dev.ReadWithTimeout(buf, interval)
		if err != nil {
			return "", false
		}
		if n == 0 {
			continue
		}
		answer = append(answer, buf[:n]...)
		if nl := bytes.IndexByte(answer, '\n'); nl >= 0 {
			return string(bytes.TrimSpace(answer[:nl])), true
		}
	}
	return "", false
}
