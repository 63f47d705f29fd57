/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package raster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/ppd"
)

const testPPD = `*PPD-Adobe: "4.3"
*NickName: "Example LaserJet 99 PS"
*LanguageLevel: "2"
*JCLBegin: "<1B>%-12345X@PJL<0A>"
*JCLToPSInterpreter: "@PJL ENTER LANGUAGE = POSTSCRIPT<0A>"
*JCLEnd: "<1B>%-12345X"
*OpenUI *Duplex/2-Sided Printing: PickOne
*DefaultDuplex: None
*Duplex None/Off: "<</Duplex false>>setpagedevice"
*Duplex DuplexNoTumble/Long Edge: "<</Duplex true/Tumble false>>setpagedevice"
*CloseUI: *Duplex
`

func parseTestPPD(t *testing.T) *ppd.PPD {
	t.Helper()
	p, err := ppd.ParseString("test.ppd", testPPD)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// extractImageData returns the ASCII85 payload of page n (1-based).
func extractImageData(t *testing.T, output string, n int) string {
	t.Helper()
	rest := output
	for i := 0; i < n; i++ {
		idx := strings.Index(rest, ">> image\n")
		if idx < 0 {
			t.Fatalf("page %d image operator missing", n)
		}
		rest = rest[idx+len(">> image\n"):]
	}
	end := strings.Index(rest, "~>")
	if end < 0 {
		t.Fatal("image stream not terminated")
	}
	return rest[:end]
}

func grayHeader(width, height int) PageHeader {
	return PageHeader{
		Width:        width,
		Height:       height,
		BitsPerColor: 8,
		ColorSpace:   ColorSpaceGray,
		XDPI:         300,
		YDPI:         300,
		BytesPerLine: width,
	}
}

func TestJobStructure(t *testing.T) {
	var buf bytes.Buffer
	opts := lib.NewOptionList()
	opts.Set("Duplex", "DuplexNoTumble")
	j := NewJobContext(&buf, parseTestPPD(t), opts, "test-queue")

	if err := j.StartJob("report (final)"); err != nil {
		t.Fatal(err)
	}
	if err := j.StartPage(grayHeader(8, 2)); err != nil {
		t.Fatal(err)
	}
	line := bytes.Repeat([]byte{0x80}, 8)
	if err := j.WriteLine(line); err != nil {
		t.Fatal(err)
	}
	if err := j.WriteLine(line); err != nil {
		t.Fatal(err)
	}
	if err := j.EndPage(); err != nil {
		t.Fatal(err)
	}
	if err := j.EndJob(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"\x1b%-12345X@PJL\n",
		"@PJL ENTER LANGUAGE = POSTSCRIPT\n",
		"%!PS-Adobe-3.0\n",
		"%%Title: (report \\(final\\))\n",
		"%%BeginFeature: *Duplex DuplexNoTumble\n",
		"<</Duplex true/Tumble false>>setpagedevice\n",
		"%%Page: (1) 1\n",
		"/DeviceGray setcolorspace\n",
		"/ImageMatrix [8 0 0 -2 0 2]\n",
		"showpage\n",
		"%%Pages: 1\n",
		"%%EOF\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if !strings.HasSuffix(out, "\x1b%-12345X") {
		t.Error("JCL epilogue missing at end of job")
	}

	data := decodeAll(t, extractImageData(t, out, 1))
	if !bytes.Equal(data, bytes.Repeat([]byte{0x80}, 16)) {
		t.Errorf("image payload %v", data)
	}
}

func TestShortPageIsPadded(t *testing.T) {
	var buf bytes.Buffer
	j := NewJobContext(&buf, parseTestPPD(t), nil, "test-queue")

	if err := j.StartJob("short"); err != nil {
		t.Fatal(err)
	}
	if err := j.StartPage(grayHeader(4, 5)); err != nil {
		t.Fatal(err)
	}
	if err := j.WriteLine([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := j.EndPage(); err != nil {
		t.Fatal(err)
	}
	if err := j.EndJob(); err != nil {
		t.Fatal(err)
	}

	data := decodeAll(t, extractImageData(t, buf.String(), 1))
	if len(data) != 20 {
		t.Fatalf("payload %d bytes, expected exactly height*bytesPerLine", len(data))
	}
	expected := append([]byte{1, 2, 3, 4}, bytes.Repeat([]byte{0xFF}, 16)...)
	if !bytes.Equal(data, expected) {
		t.Errorf("payload %v, expected white filler lines", data)
	}
}

func TestShortPagePaddingColor(t *testing.T) {
	var buf bytes.Buffer
	j := NewJobContext(&buf, parseTestPPD(t), nil, "test-queue")

	if err := j.StartJob("cmyk"); err != nil {
		t.Fatal(err)
	}
	h := PageHeader{
		Width: 2, Height: 3, BitsPerColor: 8,
		ColorSpace: ColorSpaceCMYK, XDPI: 300, YDPI: 300,
		BytesPerLine: 8,
	}
	if err := j.StartPage(h); err != nil {
		t.Fatal(err)
	}
	if err := j.EndPage(); err != nil {
		t.Fatal(err)
	}
	if err := j.EndJob(); err != nil {
		t.Fatal(err)
	}

	data := decodeAll(t, extractImageData(t, buf.String(), 1))
	if !bytes.Equal(data, make([]byte, 24)) {
		t.Errorf("CMYK filler must be all zero (no ink), got %v", data)
	}
}

func TestCallbackOrderEnforced(t *testing.T) {
	j := NewJobContext(&bytes.Buffer{}, parseTestPPD(t), nil, "test-queue")

	if err := j.StartPage(grayHeader(1, 1)); err == nil {
		t.Error("StartPage before StartJob should fail")
	}
	if err := j.WriteLine([]byte{0}); err == nil {
		t.Error("WriteLine outside a page should fail")
	}
	if err := j.StartJob("ok"); err != nil {
		t.Fatal(err)
	}
	if err := j.EndPage(); err == nil {
		t.Error("EndPage without StartPage should fail")
	}
	if err := j.EndJob(); err != nil {
		t.Fatal(err)
	}
	if err := j.StartJob("again"); err == nil {
		t.Error("StartJob after EndJob should fail")
	}
}

func TestOneBitDitherSelection(t *testing.T) {
	h := grayHeader(16, 16)
	if m := OneBitDitherOnDraft(&h, caps.QualityNormal, "", ""); m != nil {
		t.Error("normal quality must not dither")
	}

	h = grayHeader(16, 16)
	if m := OneBitDitherOnDraft(&h, caps.QualityDraft, "", "application/pdf"); m != &GeneralDither {
		t.Error("draft text content should pick the clustered matrix")
	}
	if h.BitsPerColor != 1 || h.BytesPerLine != 2 {
		t.Errorf("header not switched to 1-bit: %+v", h)
	}
	if h.ColorSpace != ColorSpaceBlack {
		t.Errorf("colorspace %v, expected black", h.ColorSpace)
	}

	h = grayHeader(16, 16)
	if m := OneBitDitherOnDraft(&h, caps.QualityDraft, "photo", ""); m != &PhotoDither {
		t.Error("photo content-optimize should pick the photo matrix")
	}
	h = grayHeader(16, 16)
	if m := OneBitDitherOnDraft(&h, caps.QualityDraft, "", "image/jpeg"); m != &PhotoDither {
		t.Error("JPEG source should pick the photo matrix")
	}

	rgb := PageHeader{Width: 16, Height: 16, BitsPerColor: 8, ColorSpace: ColorSpaceRGB, XDPI: 300, YDPI: 300}
	if m := OneBitDitherOnDraft(&rgb, caps.QualityDraft, "", ""); m != nil {
		t.Error("multi-channel raster must not dither")
	}
}

func TestDitherLine(t *testing.T) {
	black := make([]byte, 16)
	white := bytes.Repeat([]byte{255}, 16)

	if out := DitherLine(&GeneralDither, 0, black); !bytes.Equal(out, []byte{0xFF, 0xFF}) {
		t.Errorf("black line dithered to %08b", out)
	}
	if out := DitherLine(&GeneralDither, 0, white); !bytes.Equal(out, []byte{0x00, 0x00}) {
		t.Errorf("white line dithered to %08b", out)
	}

	// The Bayer matrix has a zero threshold at (0,0): that cell never inks.
	if out := DitherLine(&PhotoDither, 0, black); !bytes.Equal(out, []byte{0x7F, 0xFF}) {
		t.Errorf("black line dithered to %08b", out)
	}

	mid := bytes.Repeat([]byte{128}, 16)
	out := DitherLine(&PhotoDither, 5, mid)
	ones := 0
	for _, b := range out {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				ones++
			}
		}
	}
	if ones < 4 || ones > 12 {
		t.Errorf("mid gray set %d of 16 bits", ones)
	}
}
