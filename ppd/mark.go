/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package ppd

import "fmt"

// Mark state is shared interpreter state: marking one choice can change
// which choices of other options are legal. All reads and writes of
// marks go through a Session, which holds the PPD's session mutex so
// two sessions on one handle can never interleave.

// Session is a scoped batch of mark operations. Close restores the
// marks that were current when the session began unless Commit was
// called first.
type Session struct {
	p         *PPD
	saved     map[string]string
	committed bool
	closed    bool
}

// Session acquires the mark state. Blocks while another session is open.
func (p *PPD) Session() *Session {
	p.sessionMutex.Lock()
	saved := make(map[string]string, len(p.marks))
	for k, v := range p.marks {
		saved[k] = v
	}
	return &Session{p: p, saved: saved}
}

// MarkDefaults marks every option's *Default* choice.
func (s *Session) MarkDefaults() {
	for _, o := range s.p.options {
		if o.Default != "" {
			s.p.marks[o.Keyword] = o.Default
		}
	}
}

// Mark selects choice for option keyword. Unknown option or choice is an
// error; the existing mark is left alone.
func (s *Session) Mark(keyword, choice string) error {
	o, exists := s.p.byKeyword[keyword]
	if !exists || o.UI == "" {
		return fmt.Errorf("ppd: no option %q", keyword)
	}
	if o.Choice(choice) == nil && !isCustomChoice(choice) {
		return fmt.Errorf("ppd: option %q has no choice %q", keyword, choice)
	}
	s.p.marks[keyword] = choice
	return nil
}

// Marked returns the currently marked choice for keyword.
func (s *Session) Marked(keyword string) (string, bool) {
	v, exists := s.p.marks[keyword]
	return v, exists
}

// Conflicts reports whether marking keyword=choice would violate a
// UIConstraints row against the marks currently applied, ignoring any
// existing mark on keyword itself.
func (s *Session) Conflicts(keyword, choice string) bool {
	for _, c := range s.p.constraints {
		if constraintHits(c.Option1, c.Choice1, keyword, choice) &&
			s.markHits(c.Option2, c.Choice2, keyword) {
			return true
		}
		if constraintHits(c.Option2, c.Choice2, keyword, choice) &&
			s.markHits(c.Option1, c.Choice1, keyword) {
			return true
		}
	}
	return false
}

// Commit keeps the session's marks after Close.
func (s *Session) Commit() {
	s.committed = true
}

// Close releases the mark state, rolling back uncommitted marks.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if !s.committed {
		s.p.marks = s.saved
	}
	s.p.sessionMutex.Unlock()
}

func (s *Session) markHits(option, choice, ignoreKeyword string) bool {
	if option == ignoreKeyword {
		return false
	}
	marked, exists := s.p.marks[option]
	if !exists {
		return false
	}
	return choice == "" || choice == marked
}

func constraintHits(option, choice, keyword, chosen string) bool {
	if option != keyword {
		return false
	}
	return choice == "" || choice == chosen
}

// Custom page sizes arrive as "Custom.WxH" and are not declared choices.
func isCustomChoice(choice string) bool {
	return len(choice) > 7 && choice[:7] == "Custom."
}
