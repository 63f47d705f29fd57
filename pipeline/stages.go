/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/log"
	"github.com/OpenPrinting/ps-printer-app/ppd"
)

// PSPassThrough normalizes an incoming PostScript document: it injects
// the invocations of the resolved job options into the document setup,
// applies the page-ranges selection, and reports each emitted page on
// the control channel.
type PSPassThrough struct {
	PPD  *ppd.PPD
	Opts *lib.OptionList
}

func (s *PSPassThrough) Name() string { return "ps-passthrough" }

func (s *PSPassThrough) Run(in io.Reader, out io.Writer, control *Control, cancel func() bool) error {
	first, last := s.pageRange()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	w := bufio.NewWriter(out)

	injected := false
	page := 0    // source page currently being read
	emitted := 0 // pages actually passed through
	skipping := false

	for scanner.Scan() {
		if cancel() {
			return ErrCanceled
		}
		line := scanner.Text()

		if strings.HasPrefix(line, "%%Page:") {
			if page > 0 && !skipping {
				control.Page(emitted, 1)
			}
			page++
			skipping = page < first || (last > 0 && page > last)
			if skipping {
				continue
			}
			if !injected {
				if err := s.injectSetup(w); err != nil {
					return err
				}
				injected = true
			}
			emitted++
			// Renumber so the emitted document stays DSC-consistent.
			if _, err := fmt.Fprintf(w, "%%%%Page: (%d) %d\n", emitted, emitted); err != nil {
				return err
			}
			continue
		}

		if skipping {
			continue
		}
		if !injected && strings.HasPrefix(line, "%%EndComments") {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
			if err := s.injectSetup(w); err != nil {
				return err
			}
			injected = true
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if page > 0 && !skipping {
		control.Page(emitted, 1)
	}
	return w.Flush()
}

func (s *PSPassThrough) pageRange() (int, int) {
	if s.Opts == nil {
		return 1, 0
	}
	v, exists := s.Opts.Get("page-ranges")
	if !exists {
		return 1, 0
	}
	parts := strings.SplitN(v, "-", 2)
	if len(parts) != 2 {
		return 1, 0
	}
	first, err1 := strconv.Atoi(parts[0])
	last, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || first < 1 {
		return 1, 0
	}
	return first, last
}

// injectSetup writes the PPD invocation of every resolved option the
// PPD declares, in DSC feature comments.
func (s *PSPassThrough) injectSetup(w io.Writer) error {
	if s.Opts == nil {
		return nil
	}
	for _, o := range s.Opts.All() {
		opt := s.PPD.Option(o.Name)
		if opt == nil {
			continue
		}
		ch := opt.Choice(o.Value)
		if ch == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%%%%BeginFeature: *%s %s\n", o.Name, o.Value); err != nil {
			return err
		}
		if ch.Invocation != "" {
			if _, err := fmt.Fprintln(w, ch.Invocation); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%%%%EndFeature\n"); err != nil {
			return err
		}
	}
	return nil
}

// PDFToPS converts PDF input to PostScript by running an external
// command (pdftops style: reads stdin, writes stdout) taken from the
// configuration.
type PDFToPS struct {
	Command []string
}

// Converter processes are memory-hungry; bound how many run at once
// across all queues.
var converterSlots = lib.NewSemaphore(3)

func (s *PDFToPS) Name() string { return "pdf-to-ps" }

func (s *PDFToPS) Run(in io.Reader, out io.Writer, control *Control, cancel func() bool) error {
	if len(s.Command) == 0 {
		return fmt.Errorf("no PDF converter configured")
	}
	converterSlots.Acquire()
	defer converterSlots.Release()
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = &logWriter{}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	for {
		select {
		case err := <-done:
			return err
		case <-time.After(100 * time.Millisecond):
		}
		if cancel() {
			cmd.Process.Kill()
			<-done
			return ErrCanceled
		}
	}
}

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Debug(strings.TrimSpace(string(p)))
	return len(p), nil
}

// DeviceRelay copies its input to the device channel, polling the
// cancel flag between buffers. Its own output is unused.
type DeviceRelay struct {
	Device lib.DeviceChannel
}

func (s *DeviceRelay) Name() string { return "device-relay" }

func (s *DeviceRelay) Run(in io.Reader, out io.Writer, control *Control, cancel func() bool) error {
	buf := make([]byte, 8192)
	for {
		if cancel() {
			// Push what the device already has and stop cleanly.
			s.Device.Flush()
			return ErrCanceled
		}
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := s.Device.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return s.Device.Flush()
		}
		if err != nil {
			return err
		}
	}
}
