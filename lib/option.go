/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

// Option is one PPD option name/value pair chosen for a job.
type Option struct {
	Name  string
	Value string
}

// OptionList is an ordered, duplicate-free list of job options.
// Setting a name that is already present overwrites the value in place,
// so the last write wins without disturbing the original position.
type OptionList struct {
	opts  []Option
	index map[string]int
}

func NewOptionList() *OptionList {
	return &OptionList{index: make(map[string]int)}
}

func (l *OptionList) Set(name, value string) {
	if i, exists := l.index[name]; exists {
		l.opts[i].Value = value
		return
	}
	l.index[name] = len(l.opts)
	l.opts = append(l.opts, Option{name, value})
}

// SetIfAbsent sets name to value unless name is already present.
// Returns whether the value was stored.
func (l *OptionList) SetIfAbsent(name, value string) bool {
	if _, exists := l.index[name]; exists {
		return false
	}
	l.Set(name, value)
	return true
}

func (l *OptionList) Get(name string) (string, bool) {
	i, exists := l.index[name]
	if !exists {
		return "", false
	}
	return l.opts[i].Value, true
}

func (l *OptionList) Has(name string) bool {
	_, exists := l.index[name]
	return exists
}

// All returns the options in insertion order. The slice is shared;
// callers must not modify it.
func (l *OptionList) All() []Option {
	return l.opts
}

func (l *OptionList) Len() int {
	return len(l.opts)
}
