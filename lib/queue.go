/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

import (
	"strings"
	"sync"
)

type QueueStatus string

const (
	QueueIdle       QueueStatus = "3" // IPP_PSTATE_IDLE
	QueueProcessing QueueStatus = "4" // IPP_PSTATE_PROCESSING
	QueueStopped    QueueStatus = "5" // IPP_PSTATE_STOPPED
)

func QueueStatusFromString(ss string) QueueStatus {
	switch strings.ToLower(ss) {
	case "4", "processing":
		return QueueProcessing
	case "5", "stopped":
		return QueueStopped
	default:
		return QueueIdle
	}
}

// Queue is one configured print queue. The configuration lock serializes
// every operation that touches the PPD mark state: capability recompute
// (Init/Update) and job option resolution. At most one of those may be
// in flight per queue; separate queues are independent.
type Queue struct {
	Name       string
	Info       string
	Location   string
	DeviceURI  string
	DriverName string
	Status     QueueStatus

	// DriverState is owned by the driver package; opaque here to keep
	// lib free of import cycles.
	DriverState interface{}

	configMutex sync.Mutex
}

// LockConfig acquires the queue's single-writer configuration lock.
func (q *Queue) LockConfig() {
	q.configMutex.Lock()
}

func (q *Queue) UnlockConfig() {
	q.configMutex.Unlock()
}
