/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package driver

import "testing"

func testIndex() *Index {
	x := NewIndex()
	x.Add(DriverInfo{
		Name:         "example-laserjet-99",
		DeviceID:     "MFG:Example;MDL:LaserJet 99;CMD:POSTSCRIPT;",
		MakeAndModel: "Example LaserJet 99 PS",
		Language:     "English",
	})
	x.Add(DriverInfo{
		Name:         "example-laserjet-100",
		MakeAndModel: "Example LaserJet 100 Series",
		Language:     "English",
	})
	x.Add(DriverInfo{
		Name:         "generic",
		MakeAndModel: "Generic PostScript Printer",
		Language:     "English",
	})
	return x
}

func TestSelectDriverCommandSetGate(t *testing.T) {
	x := testIndex()

	for _, deviceID := range []string{
		"MFG:Example;MDL:LaserJet 99;CMD:PCL,FOO;",
		"MFG:Example;MDL:LaserJet 99;CMD:XPS;",
		"MFG:Example;MDL:LaserJet 99;CMD:PCLXL,FOOPS;",
		"MFG:Example;MDL:PS Printer 9000;CMD:PCL;",
	} {
		if name, err := x.SelectDriver(deviceID); err == nil {
			t.Errorf("%q selected %q, expected rejection", deviceID, name)
		}
	}

	for _, deviceID := range []string{
		"MFG:Example;MDL:LaserJet 99;CMD:POSTSCRIPT;",
		"MFG:Example;MDL:LaserJet 99;CMD:PCL,PS;",
		"MFG:Example;MDL:LaserJet 99;CMD:PS3;",
		"MFG:Brother;MDL:HL-1234;CMD:PCL,BRSCRIPT;",
	} {
		if _, err := x.SelectDriver(deviceID); err != nil {
			t.Errorf("%q rejected: %s", deviceID, err)
		}
	}
}

func TestSelectDriverNoCommandField(t *testing.T) {
	x := testIndex()

	name, err := x.SelectDriver("MFG:Example;MDL:LaserJet 99;")
	if err != nil {
		t.Fatalf("no command field should score on make and model: %s", err)
	}
	if name != "example-laserjet-99" {
		t.Errorf("selected %q", name)
	}
}

func TestSelectDriverScoring(t *testing.T) {
	x := testIndex()

	// Exact device ID match beats everything else in the bundle.
	name, err := x.SelectDriver("MANUFACTURER:Example;MODEL:LaserJet 99;COMMAND SET:POSTSCRIPT;")
	if err != nil {
		t.Fatal(err)
	}
	if name != "example-laserjet-99" {
		t.Errorf("selected %q, expected exact device ID match", name)
	}

	// Name prefix match when the device ID matches no driver.
	name, err = x.SelectDriver("MFG:Example;MDL:LaserJet 100;CMD:POSTSCRIPT;")
	if err != nil {
		t.Fatal(err)
	}
	if name != "example-laserjet-100" {
		t.Errorf("selected %q, expected prefix match", name)
	}

	// Unknown model falls back to the generic driver.
	name, err = x.SelectDriver("MFG:Acme;MDL:Unheard Of;CMD:POSTSCRIPT;")
	if err != nil {
		t.Fatal(err)
	}
	if name != "generic" {
		t.Errorf("selected %q, expected generic fallback", name)
	}
}

func TestSelectDriverUserAddedWins(t *testing.T) {
	x := testIndex()
	x.Add(DriverInfo{
		Name:         "uploaded-laserjet-99",
		DeviceID:     "MFG:Example;MDL:LaserJet 99;",
		MakeAndModel: "Example LaserJet 99 Uploaded",
		Language:     "German",
		UserAdded:    true,
	})

	name, err := x.SelectDriver("MFG:Example;MDL:LaserJet 99;CMD:POSTSCRIPT;")
	if err != nil {
		t.Fatal(err)
	}
	if name != "uploaded-laserjet-99" {
		t.Errorf("selected %q, expected the user-added driver to win", name)
	}
}

func TestSelectDriverStableTies(t *testing.T) {
	x := NewIndex()
	x.Add(DriverInfo{Name: "first", MakeAndModel: "Example LaserJet 99 A", Language: "English"})
	x.Add(DriverInfo{Name: "second", MakeAndModel: "Example LaserJet 99 B", Language: "English"})

	name, err := x.SelectDriver("MFG:Example;MDL:LaserJet 99;CMD:POSTSCRIPT;")
	if err != nil {
		t.Fatal(err)
	}
	if name != "first" {
		t.Errorf("selected %q, ties must keep the first candidate", name)
	}
}

func TestSelectDriverNothingSuitable(t *testing.T) {
	x := NewIndex()
	x.Add(DriverInfo{Name: "example", MakeAndModel: "Example LaserJet", Language: "English"})

	if name, err := x.SelectDriver("MFG:Acme;MDL:Unheard Of;CMD:POSTSCRIPT;"); err == nil {
		t.Errorf("selected %q with no generic fallback registered", name)
	}
}

func TestParseDeviceID(t *testing.T) {
	fields := parseDeviceID("MANUFACTURER:Example; MODEL:LaserJet 99 ;COMMAND SET:PS,PCL;SN:123;")
	if fields["MFG"] != "Example" {
		t.Errorf("MFG %q", fields["MFG"])
	}
	if fields["MDL"] != "LaserJet 99" {
		t.Errorf("MDL %q", fields["MDL"])
	}
	if fields["CMD"] != "PS,PCL" {
		t.Errorf("CMD %q", fields["CMD"])
	}
	if fields["SN"] != "123" {
		t.Errorf("SN %q", fields["SN"])
	}
}

func TestNormalizeModel(t *testing.T) {
	if got := normalizeModel("Hewlett-Packard  LaserJet\t4"); got != "hp laserjet 4" {
		t.Errorf("normalized %q", got)
	}
	if got := normalizeModel("Lexmark International Optra"); got != "lexmark optra" {
		t.Errorf("normalized %q", got)
	}
}
