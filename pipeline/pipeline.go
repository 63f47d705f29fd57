/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package pipeline runs a print job through a two-stage filter chain:
// a pluggable format converter feeding a device relay over a pipe.
// Stage 1 reports progress over a structured control channel which the
// chain translates into the job's impressions counter.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/log"
)

// ErrCanceled reports a chain aborted by job cancellation. It is not a
// stage failure; the job moves to the canceled state, not the error
// state.
var ErrCanceled = errors.New("job canceled")

// StageFailure wraps the error of the stage that broke the chain.
// Output already relayed to the device is not retracted.
type StageFailure struct {
	Stage string
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// Control is the progress channel from stage 1 to the chain owner.
type Control struct {
	job *lib.Job
}

// Page records one printed page with its copy count.
func (c *Control) Page(number, copies int) {
	if copies < 1 {
		copies = 1
	}
	c.job.AddImpressions(copies)
	log.InfoJobf(c.job.ID, "printed page %d, %d copies", number, copies)
}

// Stage is one element of the filter chain. Run must consume in until
// EOF or cancellation and must not close out; it should poll cancel
// between units of work and return ErrCanceled when it fires.
type Stage interface {
	Name() string
	Run(in io.Reader, out io.Writer, control *Control, cancel func() bool) error
}

// Run wires the stages together with pipes and executes them
// concurrently, the way a shell pipeline would. The last stage's output
// is discarded: useful effect leaves through the device channel.
func Run(queueID string, job *lib.Job, in io.Reader, stages []Stage) error {
	if len(stages) == 0 {
		return errors.New("pipeline: no stages")
	}
	log.DebugQueuef(queueID, "running %d-stage chain for job %s", len(stages), job.ID)
	control := &Control{job: job}

	var wg sync.WaitGroup
	var mutex sync.Mutex
	var failure error

	record := func(name string, err error) {
		if err == nil {
			return
		}
		mutex.Lock()
		defer mutex.Unlock()
		if failure == nil || (failure != ErrCanceled && errors.Is(err, ErrCanceled)) {
			if errors.Is(err, ErrCanceled) {
				failure = ErrCanceled
			} else {
				failure = &StageFailure{Stage: name, Err: err}
			}
		}
	}

	input := in
	for i, stage := range stages {
		var out io.Writer
		var next *io.PipeReader
		var pw *io.PipeWriter
		if i == len(stages)-1 {
			out = ioutil.Discard
		} else {
			next, pw = io.Pipe()
			out = pw
		}

		wg.Add(1)
		go func(stage Stage, in io.Reader, out io.Writer, pw *io.PipeWriter) {
			defer wg.Done()
			err := stage.Run(in, out, control, job.Canceled)
			record(stage.Name(), err)
			if pw != nil {
				pw.CloseWithError(err)
			}
			// Drain so an upstream writer blocked on the pipe can finish.
			if r, ok := in.(*io.PipeReader); ok {
				r.CloseWithError(err)
			}
		}(stage, input, out, pw)

		input = next
	}
	wg.Wait()

	mutex.Lock()
	defer mutex.Unlock()
	if failure == ErrCanceled {
		log.InfoJobf(job.ID, "chain aborted by cancellation")
		return ErrCanceled
	}
	return failure
}
