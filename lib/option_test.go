/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

import (
	"reflect"
	"testing"
)

func TestOptionListOrderAndOverwrite(t *testing.T) {
	l := NewOptionList()
	l.Set("PageSize", "Letter")
	l.Set("Duplex", "None")
	l.Set("PageSize", "A4")

	expected := []Option{{"PageSize", "A4"}, {"Duplex", "None"}}
	if !reflect.DeepEqual(l.All(), expected) {
		t.Errorf("options %+v, expected %+v", l.All(), expected)
	}
	if l.Len() != 2 {
		t.Errorf("Len %d", l.Len())
	}
	if v, ok := l.Get("PageSize"); !ok || v != "A4" {
		t.Errorf("Get PageSize = %q, %t", v, ok)
	}
	if _, ok := l.Get("Missing"); ok {
		t.Error("Get of missing name succeeded")
	}
}

func TestOptionListSetIfAbsent(t *testing.T) {
	l := NewOptionList()
	if !l.SetIfAbsent("ColorModel", "Gray") {
		t.Error("first SetIfAbsent should store")
	}
	if l.SetIfAbsent("ColorModel", "RGB") {
		t.Error("second SetIfAbsent should not store")
	}
	if v, _ := l.Get("ColorModel"); v != "Gray" {
		t.Errorf("ColorModel %q", v)
	}
	if !l.Has("ColorModel") || l.Has("Duplex") {
		t.Error("Has is wrong")
	}
}
