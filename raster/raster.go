/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package raster turns decoded raster pages into DSC-structured
// PostScript with ASCII85-encoded image data. The JobContext state
// machine enforces the job/page nesting the DSC output depends on.
package raster

import (
	"fmt"
	"io"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/log"
	"github.com/OpenPrinting/ps-printer-app/ppd"
)

// ColorSpace of incoming raster data.
type ColorSpace uint8

const (
	ColorSpaceGray ColorSpace = iota // 0 = black, 255 = white
	ColorSpaceBlack                  // 1-bit or 8-bit, 0 = white, ink on set
	ColorSpaceRGB
	ColorSpaceCMYK
)

func (c ColorSpace) components() int {
	switch c {
	case ColorSpaceRGB:
		return 3
	case ColorSpaceCMYK:
		return 4
	default:
		return 1
	}
}

func (c ColorSpace) psName() string {
	switch c {
	case ColorSpaceRGB:
		return "DeviceRGB"
	case ColorSpaceCMYK:
		return "DeviceCMYK"
	default:
		return "DeviceGray"
	}
}

// decodeArray maps sample values to PostScript color intensities. Black
// and CMYK samples are additive ink values, so they decode inverted
// relative to gray.
func (c ColorSpace) decodeArray() string {
	switch c {
	case ColorSpaceBlack:
		return "[1 0]"
	case ColorSpaceRGB:
		return "[0 1 0 1 0 1]"
	case ColorSpaceCMYK:
		return "[0 1 0 1 0 1 0 1]"
	default:
		return "[0 1]"
	}
}

// blankByte is the filler for missing scanlines: no ink. Zero for ink
// colorspaces, 0xFF where 255 means white.
func (c ColorSpace) blankByte() byte {
	if c == ColorSpaceBlack || c == ColorSpaceCMYK {
		return 0x00
	}
	return 0xFF
}

// PageHeader describes one raster page.
type PageHeader struct {
	Width, Height int // pixels
	BitsPerColor  int // 1 or 8
	ColorSpace    ColorSpace
	XDPI, YDPI    int
	BytesPerLine  int
}

// OneBitDitherOnDraft switches a draft-quality monochrome single-channel
// page to 1-bit depth and returns the dither matrix to apply per line,
// or nil when the page does not qualify. Photographic content keeps
// tone via the dispersed matrix; everything else gets clustered dots.
func OneBitDitherOnDraft(h *PageHeader, quality int, contentOptimize, sourceFormat string) *DitherMatrix {
	if quality != caps.QualityDraft || h.BitsPerColor != 8 || h.ColorSpace.components() != 1 {
		return nil
	}
	h.BitsPerColor = 1
	h.BytesPerLine = (h.Width + 7) / 8
	if h.ColorSpace == ColorSpaceGray {
		h.ColorSpace = ColorSpaceBlack
	}
	if contentOptimize == "photo" || sourceFormat == "image/jpeg" || sourceFormat == "image/png" {
		return &PhotoDither
	}
	return &GeneralDither
}

type jobState uint8

const (
	stateIdle jobState = iota
	stateJobOpen
	statePageOpen
	stateClosed
)

// JobContext emits one PostScript job. Callbacks must follow
// StartJob (StartPage WriteLine* EndPage)* EndJob; anything else is an
// error.
type JobContext struct {
	w       io.Writer
	p       *ppd.PPD
	opts    *lib.OptionList
	queueID string

	state  jobState
	pages  int
	copies int

	header PageHeader
	lines  int
	enc    *Encoder
}

func NewJobContext(w io.Writer, p *ppd.PPD, opts *lib.OptionList, queueID string) *JobContext {
	return &JobContext{w: w, p: p, opts: opts, queueID: queueID}
}

// Pages returns the number of pages emitted so far.
func (j *JobContext) Pages() int {
	return j.pages
}

func (j *JobContext) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(j.w, format, args...)
	return err
}

// StartJob emits the JCL preamble and the DSC header, prolog and setup
// sections, including the invocations of every resolved job option the
// PPD declares.
func (j *JobContext) StartJob(title string) error {
	if j.state != stateIdle {
		return fmt.Errorf("raster: StartJob in state %d", j.state)
	}
	j.state = stateJobOpen

	if j.p.JCLBegin != "" {
		if err := j.printf("%s", j.p.JCLBegin); err != nil {
			return err
		}
		if err := j.printf("%s", j.p.JCLToPS); err != nil {
			return err
		}
	}

	if err := j.printf("%%!PS-Adobe-3.0\n"); err != nil {
		return err
	}
	j.printf("%%%%LanguageLevel: %d\n", j.p.LanguageLevel)
	j.printf("%%%%Title: (%s)\n", dscEscape(title))
	j.printf("%%%%Pages: (atend)\n")
	j.printf("%%%%BoundingBox: (atend)\n")
	j.printf("%%%%DocumentData: Clean7Bit\n")
	j.printf("%%%%EndComments\n")
	j.printf("%%%%BeginProlog\n")
	j.printf("%%%%EndProlog\n")
	j.printf("%%%%BeginSetup\n")

	if j.p.JobPatchFile != "" {
		j.printf("%%%%BeginFeature: *JobPatchFile 1\n%s\n%%%%EndFeature\n", j.p.JobPatchFile)
	}

	j.copies = 1
	if j.opts != nil {
		if v, exists := j.opts.Get("copies"); exists {
			fmt.Sscanf(v, "%d", &j.copies)
		}
		for _, o := range j.opts.All() {
			j.emitFeature(o.Name, o.Value)
		}
	}
	if j.copies > 1 {
		// Let the interpreter replicate pages instead of resending data.
		if j.p.LanguageLevel >= 2 {
			j.printf("<</NumCopies %d>> setpagedevice\n", j.copies)
		} else {
			j.printf("/#copies %d def\n", j.copies)
		}
	}

	return j.printf("%%%%EndSetup\n")
}

// emitFeature writes the PPD invocation of one resolved option wrapped
// in DSC feature comments. Options the PPD does not declare belong to
// the filter layer and are skipped.
func (j *JobContext) emitFeature(name, value string) {
	o := j.p.Option(name)
	if o == nil {
		return
	}
	ch := o.Choice(value)
	if ch == nil {
		return
	}
	j.printf("%%%%BeginFeature: *%s %s\n", name, value)
	if ch.Invocation != "" {
		j.printf("%s\n", ch.Invocation)
	}
	j.printf("%%%%EndFeature\n")
}

// StartPage emits the page setup and opens the image data stream.
func (j *JobContext) StartPage(h PageHeader) error {
	if j.state != stateJobOpen {
		return fmt.Errorf("raster: StartPage in state %d", j.state)
	}
	if h.Width <= 0 || h.Height <= 0 || h.XDPI <= 0 || h.YDPI <= 0 {
		return fmt.Errorf("raster: bad page header %+v", h)
	}
	if h.BytesPerLine <= 0 {
		h.BytesPerLine = (h.Width*h.BitsPerColor*h.ColorSpace.components() + 7) / 8
	}
	j.state = statePageOpen
	j.header = h
	j.lines = 0
	j.pages++

	widthPts := float64(h.Width) * 72 / float64(h.XDPI)
	heightPts := float64(h.Height) * 72 / float64(h.YDPI)

	j.printf("%%%%Page: (%d) %d\n", j.pages, j.pages)
	j.printf("%%%%PageBoundingBox: 0 0 %.0f %.0f\n", widthPts, heightPts)
	j.printf("%%%%BeginPageSetup\n")
	j.printf("gsave\n")
	j.printf("%.4f %.4f scale\n", widthPts, heightPts)
	j.printf("/%s setcolorspace\n", h.ColorSpace.psName())
	j.printf("%%%%EndPageSetup\n")

	j.printf("<<\n")
	j.printf("/ImageType 1\n")
	j.printf("/Width %d /Height %d\n", h.Width, h.Height)
	j.printf("/BitsPerComponent %d\n", h.BitsPerColor)
	j.printf("/Decode %s\n", h.ColorSpace.decodeArray())
	j.printf("/DataSource currentfile /ASCII85Decode filter\n")
	// Raster rows arrive top to bottom; PostScript's y axis points up.
	j.printf("/ImageMatrix [%d 0 0 %d 0 %d]\n", h.Width, -h.Height, h.Height)
	if err := j.printf(">> image\n"); err != nil {
		return err
	}

	j.enc = NewEncoder(j.w)
	return nil
}

// WriteLine encodes one scanline into the open image stream. Lines past
// the declared page height are dropped with a warning.
func (j *JobContext) WriteLine(line []byte) error {
	if j.state != statePageOpen {
		return fmt.Errorf("raster: WriteLine in state %d", j.state)
	}
	if j.lines >= j.header.Height {
		log.WarningQueuef(j.queueID, "page %d: scanline beyond declared height %d dropped",
			j.pages, j.header.Height)
		return nil
	}
	if len(line) < j.header.BytesPerLine {
		padded := make([]byte, j.header.BytesPerLine)
		n := copy(padded, line)
		fill := j.header.ColorSpace.blankByte()
		for i := n; i < len(padded); i++ {
			padded[i] = fill
		}
		line = padded
	}
	if _, err := j.enc.Write(line[:j.header.BytesPerLine]); err != nil {
		return err
	}
	j.lines++
	return nil
}

// EndPage completes the image with blank filler lines if the page was
// short, terminates the ASCII85 stream and closes the page.
func (j *JobContext) EndPage() error {
	if j.state != statePageOpen {
		return fmt.Errorf("raster: EndPage in state %d", j.state)
	}

	if missing := j.header.Height - j.lines; missing > 0 {
		log.DebugQueuef(j.queueID, "page %d: padding %d missing scanlines", j.pages, missing)
		blank := make([]byte, j.header.BytesPerLine)
		fill := j.header.ColorSpace.blankByte()
		for i := range blank {
			blank[i] = fill
		}
		for n := 0; n < missing; n++ {
			if _, err := j.enc.Write(blank); err != nil {
				return err
			}
		}
		j.lines = j.header.Height
	}

	if err := j.enc.Flush(); err != nil {
		return err
	}
	j.enc = nil
	j.state = stateJobOpen

	j.printf("~>\n")
	j.printf("grestore\n")
	j.printf("showpage\n")
	return j.printf("%%%%PageTrailer\n")
}

// EndJob closes the document with the actual page count and the JCL
// epilogue.
func (j *JobContext) EndJob() error {
	if j.state != stateJobOpen {
		return fmt.Errorf("raster: EndJob in state %d", j.state)
	}
	j.state = stateClosed

	j.printf("%%%%Trailer\n")
	j.printf("%%%%Pages: %d\n", j.pages)
	if err := j.printf("%%%%EOF\n"); err != nil {
		return err
	}
	if j.p.JCLEnd != "" {
		return j.printf("%s", j.p.JCLEnd)
	}
	return nil
}

func dscEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '(' || c == ')' || c == '\\':
			out = append(out, '\\', c)
		case c < 32 || c > 126:
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
