/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package ticket resolves the intents of one print job against the
// queue's capability record and option cache into the ordered PPD
// option list the filter pipeline consumes.
package ticket

import (
	"fmt"
	"strings"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/driver"
	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/log"
	"github.com/OpenPrinting/ps-printer-app/ppd"
)

// Option names consumed by the filter pipeline itself rather than the
// PPD interpreter.
const (
	OptPageRanges   = "page-ranges"
	OptOrientation  = "orientation-requested"
	OptPrintScaling = "print-scaling"
	OptCopies       = "copies"
)

// IPP orientation-requested values; anything outside this range is
// dropped rather than guessed at.
const (
	OrientationPortrait         = 3
	OrientationLandscape        = 4
	OrientationReverseLandscape = 5
	OrientationReversePortrait  = 6
)

// Ticket is the standard intent set of one job, as resolved by the
// upstream IPP layer. Zero values mean "not requested".
type Ticket struct {
	Copies    int
	FirstPage int
	LastPage  int
	NumPages  int // total document pages; 0 when unknown

	Finishings caps.Finishing

	MediaWidthHMM  int
	MediaHeightHMM int
	MediaSource    string // PWG media-source keyword
	MediaType      string // PWG media-type keyword
	OutputBin      string // PWG output-bin keyword

	Orientation  int // IPP orientation-requested, 0 when unset
	ColorMode    int // caps.ColorModeMono or caps.ColorModeColor
	ColorModeSet bool
	Quality      int // caps.QualityDraft, QualityNormal or QualityHigh

	PrintScaling string
	Resolution   caps.Resolution
	Sides        string // caps.Sides* keyword

	// MultipleDocumentHandling is the raw IPP keyword; collation is
	// derived from it by substring.
	MultipleDocumentHandling string

	// Vendor maps vendor option names (the record's IPP-style names) to
	// requested values: a normalized choice keyword, or "true"/"false"
	// for boolean options.
	Vendor map[string]string
}

// Resolve maps job intents to concrete PPD option choices. It is a pure
// function of its inputs except for a transient mark session used to
// evaluate constraint legality; no mark survives the call.
func Resolve(t *Ticket, r *caps.Record, c *driver.OptionCache, p *ppd.PPD) (*lib.OptionList, error) {
	opts := lib.NewOptionList()

	resolvePageRange(t, opts)
	resolveFinishings(t, c, opts)
	resolveMedia(t, c, opts)

	if t.Orientation >= OrientationPortrait && t.Orientation <= OrientationReversePortrait {
		opts.Set(OptOrientation, fmt.Sprintf("%d", t.Orientation))
	}
	if t.Copies > 1 {
		opts.Set(OptCopies, fmt.Sprintf("%d", t.Copies))
	}

	resolvePresets(t, c, opts)
	resolveForceGray(t, c, p, opts)

	if t.PrintScaling != "" {
		opts.Set(OptPrintScaling, t.PrintScaling)
	}

	resolveResolution(t, c, p, opts)
	resolveSides(t, c, opts)

	sess := p.Session()
	defer sess.Close()

	resolveVendor(t, r, sess, opts)
	resolveCollate(t, p, opts)

	// Mark the combined selection in one batch so the PPD's constraint
	// logic sees every choice at once. Filter-only names are not PPD
	// options and fall through.
	for _, o := range opts.All() {
		if p.Option(o.Name) == nil {
			continue
		}
		if err := sess.Mark(o.Name, o.Value); err != nil {
			log.Debugf("job option %s=%s not markable: %s", o.Name, o.Value, err)
		}
	}

	return opts, nil
}

// resolvePageRange emits page-ranges only when the requested range is
// narrower than the whole document.
func resolvePageRange(t *Ticket, opts *lib.OptionList) {
	first, last := t.FirstPage, t.LastPage
	if first <= 0 && last <= 0 {
		return
	}
	if first <= 0 {
		first = 1
	}
	wholeDocument := first == 1 && (last <= 0 || (t.NumPages > 0 && last >= t.NumPages))
	if wholeDocument {
		return
	}
	if last <= 0 {
		if t.NumPages <= 0 {
			return
		}
		last = t.NumPages
	}
	opts.Set(OptPageRanges, fmt.Sprintf("%d-%d", first, last))
}

func resolveFinishings(t *Ticket, c *driver.OptionCache, opts *lib.OptionList) {
	for bit, pair := range c.Finishings {
		if t.Finishings.Has(bit) {
			opts.Set(pair.Name, pair.Value)
		}
	}
}

func resolveMedia(t *Ticket, c *driver.OptionCache, opts *lib.OptionList) {
	if t.MediaWidthHMM > 0 && t.MediaHeightHMM > 0 {
		if name, ok := pageSizeChoice(t, c); ok {
			opts.Set(c.SizeOption, name)
		}
	}
	if t.MediaSource != "" {
		if name, ok := c.SourcePPDName(t.MediaSource); ok && c.SourceOption != "" {
			opts.Set(c.SourceOption, name)
		}
	}
	if t.MediaType != "" {
		if name, ok := c.TypePPDName(t.MediaType); ok {
			opts.Set(c.TypeOption, name)
		}
	}
	if t.OutputBin != "" {
		if name, ok := c.BinPPDName(t.OutputBin); ok && c.OutputBinOption != "" {
			opts.Set(c.OutputBinOption, name)
		}
	}
}

// pageSizeChoice finds the declared size nearest the requested
// dimensions, falling back to a custom size when the PPD allows one and
// no declared size is close enough.
func pageSizeChoice(t *Ticket, c *driver.OptionCache) (string, bool) {
	nearest, found := c.NearestSize(t.MediaWidthHMM, t.MediaHeightHMM)
	if !found {
		return "", false
	}

	dw := abs(nearest.WidthHMM - t.MediaWidthHMM)
	dh := abs(nearest.HeightHMM - t.MediaHeightHMM)
	if dw <= 50 && dh <= 50 {
		return nearest.PPDName, true
	}

	if c.Custom.Supported {
		w := caps.HundredthsMMToPoints(t.MediaWidthHMM)
		h := caps.HundredthsMMToPoints(t.MediaHeightHMM)
		if withinCustomBounds(c.Custom, w, h) {
			return fmt.Sprintf("Custom.%.0fx%.0f", w, h), true
		}
	}
	return nearest.PPDName, true
}

func withinCustomBounds(b ppd.CustomSizeBounds, w, h float64) bool {
	if b.MaxWidth > 0 && (w < b.MinWidth || w > b.MaxWidth) {
		return false
	}
	if b.MaxHeight > 0 && (h < b.MinHeight || h > b.MaxHeight) {
		return false
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func resolvePresets(t *Ticket, c *driver.OptionCache, opts *lib.OptionList) {
	cm := t.ColorMode
	if !t.ColorModeSet || cm < 0 || cm >= caps.NumColorModes {
		cm = caps.ColorModeColor
	}
	q := t.Quality
	if q < 0 || q >= caps.NumQualities {
		q = caps.QualityNormal
	}
	for _, pair := range c.Presets[cm][q] {
		opts.Set(pair.Name, pair.Value)
	}
}

// resolveForceGray applies the PPD's monochrome switch when the job did
// not ask for color, without overriding anything a preset already chose.
func resolveForceGray(t *Ticket, c *driver.OptionCache, p *ppd.PPD, opts *lib.OptionList) {
	if !t.ColorModeSet || t.ColorMode == caps.ColorModeColor {
		return
	}
	for _, pair := range c.ForceGray {
		opts.SetIfAbsent(pair.Name, pair.Value)
	}
	if o := p.Option("ColorModel"); o != nil && o.Choice("Gray") != nil {
		opts.SetIfAbsent("ColorModel", "Gray")
	}
}

// resolveResolution sets the PPD resolution choice unless a preset
// already chose one: an exact declared match first, then a synthesized
// name, then the declared default.
func resolveResolution(t *Ticket, c *driver.OptionCache, p *ppd.PPD, opts *lib.OptionList) {
	if c.ResolutionOption == "" || opts.Has(c.ResolutionOption) {
		return
	}
	o := p.Option(c.ResolutionOption)
	if o == nil {
		return
	}
	if t.Resolution.X <= 0 || t.Resolution.Y <= 0 {
		return
	}

	for _, candidate := range resolutionNames(t.Resolution) {
		if o.Choice(candidate) != nil {
			opts.Set(c.ResolutionOption, candidate)
			return
		}
	}
	if o.Default != "" {
		opts.Set(c.ResolutionOption, o.Default)
	}
}

// resolutionNames lists the declared-choice spellings of a resolution in
// preference order.
func resolutionNames(res caps.Resolution) []string {
	if res.X == res.Y {
		return []string{
			fmt.Sprintf("%ddpi", res.X),
			fmt.Sprintf("%dx%ddpi", res.X, res.Y),
		}
	}
	return []string{fmt.Sprintf("%dx%ddpi", res.X, res.Y)}
}

func resolveSides(t *Ticket, c *driver.OptionCache, opts *lib.OptionList) {
	if t.Sides == "" || c.DuplexOption == "" {
		return
	}
	choice := ""
	switch t.Sides {
	case caps.SidesOneSided:
		choice = c.DuplexNone
	case caps.SidesTwoSidedLong:
		choice = c.DuplexLong
	case caps.SidesTwoSidedShort:
		choice = c.DuplexShort
	}
	if choice != "" {
		opts.Set(c.DuplexOption, choice)
	}
}

// resolveVendor maps requested or default vendor values back to native
// PPD choices, skipping any choice the installed accessories forbid.
func resolveVendor(t *Ticket, r *caps.Record, sess *ppd.Session, opts *lib.OptionList) {
	for i := range r.VendorOptions {
		vo := &r.VendorOptions[i]

		requested, supplied := "", false
		if t.Vendor != nil {
			requested, supplied = t.Vendor[vo.Name]
		}

		choice := ""
		switch {
		case supplied && vo.Type == caps.VendorBoolean:
			switch strings.ToLower(requested) {
			case "true":
				choice = "True"
			case "false":
				choice = "False"
			}
		case supplied:
			if ch := vo.Choice(requested); ch != nil {
				choice = ch.PPDChoice
			}
		default:
			choice = vo.Default
		}
		if choice == "" {
			continue
		}

		if sess.Conflicts(vo.Keyword, choice) {
			log.Debugf("vendor option %s=%s conflicts with installed accessories; skipped",
				vo.Keyword, choice)
			continue
		}
		opts.Set(vo.Keyword, choice)
	}
}

// resolveCollate derives the PPD Collate switch from the IPP
// multiple-document-handling keyword. "uncollated" is checked first
// since "collated" is a substring of it.
func resolveCollate(t *Ticket, p *ppd.PPD, opts *lib.OptionList) {
	if t.MultipleDocumentHandling == "" || p.Option("Collate") == nil {
		return
	}
	switch {
	case strings.Contains(t.MultipleDocumentHandling, "uncollated"):
		opts.Set("Collate", "False")
	case strings.Contains(t.MultipleDocumentHandling, "collated"):
		opts.Set("Collate", "True")
	}
}
