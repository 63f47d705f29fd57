/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

import (
	"sync/atomic"

	"github.com/satori/go.uuid"
)

type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCanceled   JobState = "canceled"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Job is one submitted print job. The job owns its option list for the
// lifetime of the print/raster session.
type Job struct {
	ID       string
	QueueID  string
	Title    string
	Format   string // negotiated input MIME type
	State    JobState
	Options  *OptionList
	NumPages int // 0 if unknown before filtering

	impressionsCompleted int32
	canceled             int32
}

func NewJob(queueID, title, format string) *Job {
	return &Job{
		ID:      uuid.NewV4().String(),
		QueueID: queueID,
		Title:   title,
		Format:  format,
		State:   JobPending,
		Options: NewOptionList(),
	}
}

// AddImpressions adds n to the impressions-completed counter and returns
// the new total. Safe for concurrent use by pipeline stages.
func (j *Job) AddImpressions(n int) int {
	return int(atomic.AddInt32(&j.impressionsCompleted, int32(n)))
}

func (j *Job) ImpressionsCompleted() int {
	return int(atomic.LoadInt32(&j.impressionsCompleted))
}

// Cancel requests cooperative cancellation. Pipeline stages poll
// Canceled between reads/writes; cancellation is never delivered as a
// signal or a forced close.
func (j *Job) Cancel() {
	atomic.StoreInt32(&j.canceled, 1)
}

func (j *Job) Canceled() bool {
	return atomic.LoadInt32(&j.canceled) != 0
}
