/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package driver

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/OpenPrinting/ps-printer-app/caps"
)

const testPPD = `*PPD-Adobe: "4.3"
*FormatVersion: "4.3"
*Manufacturer: "Example"
*ModelName: "Example LaserJet 99"
*NickName: "Example LaserJet 99 PS"
*1284DeviceID: "MFG:Example;MDL:LaserJet 99;CMD:POSTSCRIPT;"
*LanguageLevel: "3"
*OpenUI *PageSize/Media Size: PickOne
*DefaultPageSize: Letter
*PageSize Letter/Letter: "<</PageSize[612 792]>>setpagedevice"
*PageSize A4/A4: "<</PageSize[595 842]>>setpagedevice"
*CloseUI: *PageSize
*DefaultPaperDimension: Letter
*PaperDimension Letter: "612 792"
*PaperDimension A4: "595 842"
*ImageableArea Letter: "18 12 594 780"
*ImageableArea A4: "10 14 585 828"
*OpenUI *InputSlot/Media Source: PickOne
*DefaultInputSlot: Tray1
*InputSlot Tray1/Tray 1: ""
*InputSlot Tray2/Tray 2: ""
*InputSlot Envelope/Envelope Feeder: ""
*CloseUI: *InputSlot
*OpenUI *Duplex/2-Sided Printing: PickOne
*DefaultDuplex: DuplexNoTumble
*Duplex None/Off: ""
*Duplex DuplexNoTumble/Long-Edge Binding: ""
*Duplex DuplexTumble/Short-Edge Binding: ""
*CloseUI: *Duplex
*OpenUI *Resolution/Resolution: PickOne
*DefaultResolution: 600dpi
*Resolution 300dpi/300 dpi: ""
*Resolution 600dpi/600 dpi: ""
*Resolution 1200x600dpi/1200x600 dpi: ""
*CloseUI: *Resolution
*OpenUI *SmoothingMode/Edge Smoothing: PickOne
*DefaultSmoothingMode: Off
*SmoothingMode Off/Off: ""
*SmoothingMode Medium/Medium Smooth: ""
*SmoothingMode High/High Smooth: ""
*CloseUI: *SmoothingMode
*OpenUI *TonerSave/Toner Save: Boolean
*DefaultTonerSave: False
*TonerSave True: ""
*TonerSave False: ""
*CloseUI: *TonerSave
*OpenGroup: InstallableOptions/Options Installed
*OpenUI *OptionDuplex/Duplexer: Boolean
*DefaultOptionDuplex: True
*OptionDuplex True/Installed: ""
*OptionDuplex False/Not Installed: ""
*CloseUI: *OptionDuplex
*OpenUI *OptionEnvFeeder/Envelope Feeder: Boolean
*DefaultOptionEnvFeeder: True
*OptionEnvFeeder True/Installed: ""
*OptionEnvFeeder False/Not Installed: ""
*CloseUI: *OptionEnvFeeder
*CloseGroup: InstallableOptions
*UIConstraints: "*OptionDuplex False *Duplex DuplexNoTumble"
*UIConstraints: "*OptionEnvFeeder False *InputSlot Envelope"
*?OptionDuplex: "save currentpagedevice /Duplex get restore"
`

func newTestState(t *testing.T, ppdText string) *State {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ppd")
	if err := os.WriteFile(path, []byte(ppdText), 0644); err != nil {
		t.Fatal(err)
	}
	st, err := Init("test-queue", path)
	if err != nil {
		t.Fatalf("Init: %s", err)
	}
	return st
}

func TestInitRecord(t *testing.T) {
	st := newTestState(t, testPPD)
	r := st.Record

	if r.MakeAndModel != "Example LaserJet 99 PS" {
		t.Errorf("make and model %q", r.MakeAndModel)
	}
	if r.LanguageLevel != 3 {
		t.Errorf("language level %d", r.LanguageLevel)
	}

	expectedResolutions := []caps.Resolution{{X: 300, Y: 300}, {X: 600, Y: 600}, {X: 1200, Y: 600}}
	if !reflect.DeepEqual(r.Resolutions, expectedResolutions) {
		t.Errorf("resolutions %+v", r.Resolutions)
	}
	if r.DefaultResolution != (caps.Resolution{X: 600, Y: 600}) {
		t.Errorf("default resolution %+v", r.DefaultResolution)
	}

	expectedSources := []caps.Media{
		{PWGName: "tray-1", PPDName: "Tray1"},
		{PWGName: "tray-2", PPDName: "Tray2"},
		{PWGName: "envelope", PPDName: "Envelope"},
	}
	if !reflect.DeepEqual(r.Sources, expectedSources) {
		t.Errorf("sources %+v", r.Sources)
	}
	if r.DefaultSource != "tray-1" {
		t.Errorf("default source %q", r.DefaultSource)
	}

	if len(r.Sizes) != 2 || r.Sizes[0].PWGName != "na_letter_8.5x11in" ||
		r.Sizes[1].PWGName != "iso_a4_210x297mm" {
		t.Errorf("sizes %+v", r.Sizes)
	}
	if r.DefaultSize != "na_letter_8.5x11in" {
		t.Errorf("default size %q", r.DefaultSize)
	}

	if r.Duplex != caps.DuplexLongEdge|caps.DuplexShortEdge {
		t.Errorf("duplex caps %b", r.Duplex)
	}
	if r.SidesDefault != caps.SidesTwoSidedLong {
		t.Errorf("sides default %q", r.SidesDefault)
	}

	if !r.InstallableOptions || !r.InstallablePollable || r.DefaultsPollable {
		t.Errorf("pollable flags %v %v %v",
			r.InstallableOptions, r.InstallablePollable, r.DefaultsPollable)
	}
}

func TestVendorOptions(t *testing.T) {
	st := newTestState(t, testPPD)
	r := st.Record

	if len(r.VendorOptions) != 2 {
		t.Fatalf("expected 2 vendor options, got %+v", r.VendorOptions)
	}
	if r.NumVendor() != 3 {
		t.Errorf("NumVendor %d", r.NumVendor())
	}

	smoothing := r.VendorOption("edge-smoothing")
	if smoothing == nil {
		t.Fatal("edge-smoothing not surfaced")
	}
	if smoothing.Type != caps.VendorKeyword || smoothing.Keyword != "SmoothingMode" {
		t.Errorf("edge-smoothing %+v", smoothing)
	}
	if smoothing.Default != "Off" {
		t.Errorf("edge-smoothing default %q", smoothing.Default)
	}
	if ch := smoothing.Choice("medium-smooth"); ch == nil || ch.PPDChoice != "Medium" {
		t.Errorf("edge-smoothing choices %+v", smoothing.Choices)
	}

	toner := r.VendorOption("toner-save")
	if toner == nil {
		t.Fatal("toner-save not surfaced")
	}
	if toner.Type != caps.VendorBoolean || len(toner.Choices) != 0 {
		t.Errorf("toner-save %+v", toner)
	}
	if toner.Default != "False" {
		t.Errorf("toner-save default %q", toner.Default)
	}

	for _, vo := range r.VendorOptions {
		if vo.Keyword == "OptionDuplex" || vo.Keyword == "OptionEnvFeeder" {
			t.Errorf("installable option %s surfaced as vendor option", vo.Keyword)
		}
	}
}

func TestMarginsAreMaxPerSide(t *testing.T) {
	st := newTestState(t, testPPD)
	r := st.Record

	// Letter: 18/12/18/12pt; A4: 10/14/10/14pt. Max per side wins.
	expected := caps.Margins{Left: 635, Bottom: 494, Right: 635, Top: 494}
	if r.Margins != expected {
		t.Errorf("margins %+v, expected %+v", r.Margins, expected)
	}

	for _, s := range r.Sizes {
		if s.Margins.Left > r.Margins.Left || s.Margins.Bottom > r.Margins.Bottom ||
			s.Margins.Right > r.Margins.Right || s.Margins.Top > r.Margins.Top {
			t.Errorf("size %s margins %+v exceed record margins %+v",
				s.PWGName, s.Margins, r.Margins)
		}
	}
}

func TestMarginsFallback(t *testing.T) {
	noAreas := `*PPD-Adobe: "4.3"
*NickName: "Minimal PS"
*OpenUI *PageSize/Media Size: PickOne
*DefaultPageSize: Letter
*PageSize Letter/Letter: ""
*PageSize A4/A4: ""
*CloseUI: *PageSize
`
	st := newTestState(t, noAreas)
	expected := caps.Margins{Left: 635, Bottom: 1270, Right: 635, Top: 1270}
	if st.Record.Margins != expected {
		t.Errorf("margins %+v, expected %+v", st.Record.Margins, expected)
	}

	withHW := noAreas + `*HWMargins: 36 36 36 36
`
	st = newTestState(t, withHW)
	expected = caps.Margins{Left: 1270, Bottom: 1270, Right: 1270, Top: 1270}
	if st.Record.Margins != expected {
		t.Errorf("hardware margins %+v, expected %+v", st.Record.Margins, expected)
	}
}

func TestResolutionSynthesis(t *testing.T) {
	noResolution := `*PPD-Adobe: "4.3"
*NickName: "Minimal PS"
*OpenUI *PageSize/Media Size: PickOne
*DefaultPageSize: Letter
*PageSize Letter/Letter: ""
*PageSize A4/A4: ""
*CloseUI: *PageSize
`
	st := newTestState(t, noResolution)
	expected := []caps.Resolution{{X: 300, Y: 300}}
	if !reflect.DeepEqual(st.Record.Resolutions, expected) {
		t.Errorf("resolutions %+v", st.Record.Resolutions)
	}
	if st.Record.DefaultResolution != expected[0] {
		t.Errorf("default resolution %+v", st.Record.DefaultResolution)
	}
}

func TestUpdateIdempotent(t *testing.T) {
	st := newTestState(t, testPPD)

	if err := st.Update(); err != nil {
		t.Fatalf("first update: %s", err)
	}
	first := *st.Record
	if err := st.Update(); err != nil {
		t.Fatalf("second update: %s", err)
	}

	if !reflect.DeepEqual(first, *st.Record) {
		t.Errorf("records differ:\n%+v\n%+v", first, *st.Record)
	}
}

func TestDuplexDemotion(t *testing.T) {
	st := newTestState(t, testPPD)

	if err := st.ApplyInstallableBlob("OptionDuplex=False"); err != nil {
		t.Fatalf("apply blob: %s", err)
	}
	if err := st.EnsureFresh(); err != nil {
		t.Fatalf("refresh: %s", err)
	}
	r := st.Record

	if r.Duplex&caps.DuplexLongEdge != 0 {
		t.Error("long-edge capability survived the conflict")
	}
	if r.Duplex&caps.DuplexShortEdge == 0 {
		t.Error("short-edge capability should be untouched")
	}
	if r.SidesDefault != caps.SidesOneSided {
		t.Errorf("sides default %q, expected demotion to one-sided", r.SidesDefault)
	}

	sess := st.PPD.Session()
	marked, _ := sess.Marked("Duplex")
	sess.Close()
	if marked != "None" {
		t.Errorf("PPD mark %q, expected None after demotion", marked)
	}
}

const finisherPPD = `*PPD-Adobe: "4.3"
*NickName: "Example LaserJet 99 PS"
*OpenUI *PageSize/Media Size: PickOne
*DefaultPageSize: Letter
*PageSize Letter/Letter: "<</PageSize[612 792]>>setpagedevice"
*PageSize A4/A4: "<</PageSize[595 842]>>setpagedevice"
*CloseUI: *PageSize
*PaperDimension Letter: "612 792"
*PaperDimension A4: "595 842"
*OpenUI *StapleLocation/Staple: PickOne
*DefaultStapleLocation: None
*StapleLocation None/None: ""
*StapleLocation SinglePortrait/Single Portrait: ""
*CloseUI: *StapleLocation
*OpenGroup: InstallableOptions/Options Installed
*OpenUI *OptionFinisher/Finisher: Boolean
*DefaultOptionFinisher: True
*OptionFinisher True/Installed: ""
*OptionFinisher False/Not Installed: ""
*CloseUI: *OptionFinisher
*CloseGroup: InstallableOptions
*UIConstraints: "*OptionFinisher False *StapleLocation SinglePortrait"
`

func TestFinishingDemotion(t *testing.T) {
	st := newTestState(t, finisherPPD)

	if !st.Record.Finishings.Has(caps.FinishStaple) {
		t.Fatal("staple capability missing with the finisher installed")
	}

	if err := st.ApplyInstallableBlob("OptionFinisher=False"); err != nil {
		t.Fatalf("apply blob: %s", err)
	}
	if err := st.EnsureFresh(); err != nil {
		t.Fatalf("refresh: %s", err)
	}
	if st.Record.Finishings.Has(caps.FinishStaple) {
		t.Error("staple capability survived removing the finisher")
	}

	if err := st.ApplyInstallableBlob("OptionFinisher=True"); err != nil {
		t.Fatalf("apply blob: %s", err)
	}
	if err := st.EnsureFresh(); err != nil {
		t.Fatalf("refresh: %s", err)
	}
	if !st.Record.Finishings.Has(caps.FinishStaple) {
		t.Error("staple capability should return with the finisher")
	}
}

func TestAccessoryRoundTrip(t *testing.T) {
	st := newTestState(t, testPPD)

	loaded := caps.ReadyMedia{
		Source: "envelope",
		Size:   "iso_dl_110x220mm",
		Type:   "envelope",
	}
	if err := st.SetReadyMedia(loaded); err != nil {
		t.Fatalf("set ready media: %s", err)
	}

	if err := st.ApplyInstallableBlob("OptionEnvFeeder=False"); err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureFresh(); err != nil {
		t.Fatal(err)
	}
	for _, src := range st.Record.Sources {
		if src.PWGName == "envelope" {
			t.Fatal("envelope source should be filtered out")
		}
	}
	if len(st.Record.MediaReady) != 3 {
		t.Errorf("media ready %+v, expected 2 sources plus sentinel", st.Record.MediaReady)
	}

	if err := st.ApplyInstallableBlob("OptionEnvFeeder=True"); err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureFresh(); err != nil {
		t.Fatal(err)
	}
	restored, exists := st.ReadyMediaFor("envelope")
	if !exists || !reflect.DeepEqual(restored, loaded) {
		t.Errorf("restored ready media %+v, expected %+v", restored, loaded)
	}
	found := false
	for _, rm := range st.Record.MediaReady {
		if rm.Source == "envelope" && reflect.DeepEqual(rm, loaded) {
			found = true
		}
	}
	if !found {
		t.Errorf("restored configuration missing from view %+v", st.Record.MediaReady)
	}
}

func TestMediaReadySentinel(t *testing.T) {
	st := newTestState(t, testPPD)
	view := st.Record.MediaReady

	if len(view) != len(st.Record.Sources)+1 {
		t.Fatalf("media ready length %d, sources %d", len(view), len(st.Record.Sources))
	}
	for i, rm := range view[:len(view)-1] {
		if rm.Zero() {
			t.Errorf("entry %d unexpectedly zero", i)
		}
		if rm.Source != st.Record.Sources[i].PWGName {
			t.Errorf("entry %d source %q, expected %q", i, rm.Source, st.Record.Sources[i].PWGName)
		}
	}
	if !view[len(view)-1].Zero() {
		t.Errorf("last entry %+v should be the sentinel", view[len(view)-1])
	}
}

func TestEnsureFreshIsIdempotent(t *testing.T) {
	st := newTestState(t, testPPD)

	before := *st.Record
	if err := st.EnsureFresh(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, *st.Record) {
		t.Error("EnsureFresh on a fresh state should not change the record")
	}
}

func TestInstallableBlobRoundTrip(t *testing.T) {
	st := newTestState(t, testPPD)

	if err := st.ApplyInstallableBlob("OptionDuplex=False OptionEnvFeeder=True"); err != nil {
		t.Fatal(err)
	}
	blob := st.InstallableBlob()

	expected := map[string]bool{"OptionDuplex=False": true, "OptionEnvFeeder=True": true}
	fields := map[string]bool{}
	for _, f := range strings.Fields(blob) {
		fields[f] = true
	}
	if !reflect.DeepEqual(fields, expected) {
		t.Errorf("blob %q", blob)
	}

	if err := st.ApplyInstallableBlob("NoSuchOption=True"); err != nil {
		t.Errorf("unknown option should be skipped, got %s", err)
	}
	if err := st.ApplyInstallableBlob("mangled"); err == nil {
		t.Error("malformed pair should be rejected")
	}
}
