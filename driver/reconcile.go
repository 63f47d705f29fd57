/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package driver

import (
	"fmt"
	"strings"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/log"
)

// seedReadyMedia creates a default loaded-media entry for every source
// the freshly compiled record surfaces.
func (st *State) seedReadyMedia() {
	st.activeSources = st.activeSources[:0]
	for _, src := range st.Record.Sources {
		st.activeSources = append(st.activeSources, src.PWGName)
		if _, exists := st.ready[src.PWGName]; !exists {
			st.ready[src.PWGName] = st.defaultReadyMedia(src.PWGName)
		}
	}
}

// reconcileReadyMedia aligns the loaded-media table with the source list
// of the current record. Sources an accessory change disabled keep their
// entry in the table so a later re-enable restores the operator's
// configuration instead of resetting it; newly appeared sources get a
// default entry.
func (st *State) reconcileReadyMedia() {
	active := make([]string, 0, len(st.Record.Sources))
	for _, src := range st.Record.Sources {
		active = append(active, src.PWGName)
		if _, exists := st.ready[src.PWGName]; exists {
			continue
		}
		log.DebugQueuef(st.QueueID, "media source %s appeared; loaded media set to defaults", src.PWGName)
		st.ready[src.PWGName] = st.defaultReadyMedia(src.PWGName)
	}
	for _, was := range st.activeSources {
		if !containsString(active, was) {
			log.DebugQueuef(st.QueueID, "media source %s disabled; loaded media kept for restore", was)
		}
	}
	st.activeSources = active
}

// projectReadyMedia rebuilds the record's MediaReady view: one entry per
// active source, in source order, terminated by a zero entry.
func (st *State) projectReadyMedia() {
	view := make([]caps.ReadyMedia, 0, len(st.activeSources)+1)
	for _, name := range st.activeSources {
		view = append(view, st.ready[name])
	}
	view = append(view, caps.ReadyMedia{})
	st.Record.MediaReady = view
}

func (st *State) defaultReadyMedia(source string) caps.ReadyMedia {
	return caps.ReadyMedia{
		Source:  source,
		Size:    st.Record.DefaultSize,
		Type:    st.Record.DefaultType,
		Margins: st.Record.Margins,
	}
}

// SetReadyMedia records what an operator loaded in one source. The
// source must be active in the current record.
func (st *State) SetReadyMedia(rm caps.ReadyMedia) error {
	if !containsString(st.activeSources, rm.Source) {
		return fmt.Errorf("driver: media source %q not present", rm.Source)
	}
	st.ready[rm.Source] = rm
	st.projectReadyMedia()
	return nil
}

// ReadyMediaFor returns the loaded media for one source, active or not.
func (st *State) ReadyMediaFor(source string) (caps.ReadyMedia, bool) {
	rm, exists := st.ready[source]
	return rm, exists
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// MarkStale flags the capability record as out of date with respect to
// the PPD's accessory marks. The next EnsureFresh recompiles.
func (st *State) MarkStale() {
	st.staleMutex.Lock()
	st.stale = true
	st.staleMutex.Unlock()
}

// EnsureFresh recompiles the record if an accessory change was flagged
// since the last compile. Calling it on a fresh state is a no-op, so
// callers can invoke it unconditionally before reading the record.
func (st *State) EnsureFresh() error {
	st.staleMutex.Lock()
	wasStale := st.stale
	st.stale = false
	st.staleMutex.Unlock()
	if !wasStale {
		return nil
	}
	return st.Update()
}

// InstallableBlob serializes the current accessory configuration as
// space-separated KEY=CHOICE pairs, one per installable option, for
// persisting in the queue's attribute store.
func (st *State) InstallableBlob() string {
	sess := st.PPD.Session()
	defer sess.Close()

	var pairs []string
	for _, o := range st.PPD.Options() {
		if !o.Installable {
			continue
		}
		choice := o.Default
		if marked, ok := sess.Marked(o.Keyword); ok {
			choice = marked
		}
		if choice == "" {
			continue
		}
		pairs = append(pairs, o.Keyword+"="+choice)
	}
	return strings.Join(pairs, " ")
}

// ApplyInstallableBlob restores a persisted accessory configuration and
// marks the record stale. Pairs naming options or choices the PPD does
// not declare are skipped with a warning; a malformed pair is an error
// and nothing is applied.
func (st *State) ApplyInstallableBlob(blob string) error {
	type pair struct{ keyword, choice string }
	var pairs []pair
	for _, field := range strings.Fields(blob) {
		eq := strings.IndexByte(field, '=')
		if eq <= 0 || eq == len(field)-1 {
			return fmt.Errorf("driver: malformed accessory setting %q", field)
		}
		pairs = append(pairs, pair{field[:eq], field[eq+1:]})
	}

	sess := st.PPD.Session()
	defer sess.Close()
	for _, pr := range pairs {
		o := st.PPD.Option(pr.keyword)
		if o == nil || !o.Installable {
			log.WarningQueuef(st.QueueID, "accessory setting %s=%s does not match the PPD; skipped",
				pr.keyword, pr.choice)
			continue
		}
		if err := sess.Mark(pr.keyword, pr.choice); err != nil {
			log.WarningQueuef(st.QueueID, "accessory setting %s=%s does not match the PPD; skipped",
				pr.keyword, pr.choice)
		}
	}
	sess.Commit()

	st.MarkStale()
	return nil
}
