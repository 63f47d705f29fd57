/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package driver compiles a PPD into the queue's capability record and
// keeps that record consistent with the installed-accessory
// configuration. It owns the option cache, the capability compiler
// (Init and Update modes), accessory reconciliation and driver
// auto-selection.
package driver

import (
	"regexp"
	"strings"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/ppd"
)

const (
	optPageSize  = "PageSize"
	optMediaType = "MediaType"
	optOutputBin = "OutputBin"
	optCollate   = "Collate"
)

var (
	sourceOptions     = []string{"InputSlot", "HPPaperSource", "Tray"}
	duplexOptions     = []string{"Duplex", "KMDuplex", "EFDuplex", "JCLDuplex", "BRDuplex"}
	resolutionOptions = []string{"Resolution", "JCLResolution", "SetResolution"}
	qualityOptions    = []string{"PrintQuality", "HPPrintQuality", "OutputMode", "Quality"}
	colorOptions      = []string{"ColorModel", "ColorMode", "SelectColor", "CMAndResolution"}

	// Known force-gray switches in fixed precedence order; the first one
	// present in the PPD wins.
	forceGrayCandidates = []lib.Option{
		{Name: "ColorModel", Value: "Gray"},
		{Name: "ColorMode", Value: "Mono"},
		{Name: "HPColorAsGray", Value: "True"},
		{Name: "HPColorMode", Value: "GrayscalePrint"},
		{Name: "BRMonoColor", Value: "Mono"},
		{Name: "CNIJGrayScale", Value: "1"},
		{Name: "SelectColor", Value: "Grayscale"},
	}

	// Finishing processes by the PPD options that switch them on.
	finishingOptions = map[caps.Finishing][]string{
		caps.FinishStaple:  {"StapleLocation", "Stapling", "Staple"},
		caps.FinishPunch:   {"PunchMedia", "Punch"},
		caps.FinishFold:    {"FoldType", "Fold"},
		caps.FinishTrim:    {"TrimMedia", "Trim"},
		caps.FinishBooklet: {"Booklet"},
		caps.FinishBind:    {"BindEdge", "BindWhen", "Binding"},
	}

	rResolution = regexp.MustCompile(`^(\d+)(?:x(\d+))?dpi$`)
	rColor      = regexp.MustCompile(`(?i)^(?:cmy|rgb|color)`)
	rGray       = regexp.MustCompile(`(?i)^(?:gray|grey|black|mono)`)
	rDraft      = regexp.MustCompile(`(?i)draft|fast|economy|quick`)
	rHigh       = regexp.MustCompile(`(?i)best|high|fine|photo|enhanced`)

	duplexNoneChoices  = []string{"None", "False", "Off", "Simplex", "1Sided"}
	duplexLongChoices  = []string{"DuplexNoTumble", "True", "On", "2SidedLong"}
	duplexShortChoices = []string{"DuplexTumble", "2SidedShort"}
)

// OptionCache is the derived, read-only view over the PPD's options:
// canonical PWG/PPD name pairs, the duplex mode choices, the preset
// table and the finishings mapping. It is rebuilt whenever the PPD is
// (re)loaded and never mutated afterwards.
type OptionCache struct {
	SourceOption string
	Sources      []caps.Media

	TypeOption string
	Types      []caps.Media

	SizeOption string
	Sizes      []caps.SizeOption

	ResolutionOption string

	DuplexOption string
	DuplexNone   string
	DuplexLong   string
	DuplexShort  string

	OutputBinOption string
	Bins            []caps.Media

	QualityOption string

	// Presets holds the PPD option/value pairs selected for each
	// (color mode, print quality) combination.
	Presets [caps.NumColorModes][caps.NumQualities][]lib.Option

	// Finishings maps each supported finishing process to the PPD
	// option/value pair that requests it.
	Finishings map[caps.Finishing]lib.Option

	// ForceGray is the option/value pair that forces monochrome output
	// on this PPD, if any candidate matched.
	ForceGray []lib.Option

	Custom ppd.CustomSizeBounds

	consumed map[string]bool
}

// BuildOptionCache derives the option cache from a parsed PPD.
func BuildOptionCache(p *ppd.PPD) *OptionCache {
	c := &OptionCache{
		SizeOption: optPageSize,
		TypeOption: optMediaType,
		Finishings: make(map[caps.Finishing]lib.Option),
		Custom:     p.CustomBounds(),
		consumed:   make(map[string]bool),
	}

	c.SourceOption = firstPresent(p, sourceOptions)
	if o := p.Option(c.SourceOption); o != nil && len(o.Choices) >= 2 {
		for _, ch := range o.Choices {
			c.Sources = append(c.Sources,
				caps.Media{PWGName: caps.PWGSourceName(ch.Name, ch.Text), PPDName: ch.Name})
		}
	}
	c.consume(sourceOptions...)

	if o := p.Option(optMediaType); o != nil && len(o.Choices) >= 2 {
		for _, ch := range o.Choices {
			c.Types = append(c.Types,
				caps.Media{PWGName: caps.PWGTypeName(ch.Name, ch.Text), PPDName: ch.Name})
		}
	}
	c.consume(optMediaType)

	if o := p.Option(optPageSize); o != nil {
		for _, ch := range o.Choices {
			if strings.HasSuffix(ch.Name, ".FullBleed") {
				continue
			}
			c.Sizes = append(c.Sizes, sizeOption(p, ch.Name))
		}
	}
	c.consume(optPageSize, "PageRegion")

	c.ResolutionOption = firstPresent(p, resolutionOptions)
	c.consume(resolutionOptions...)

	c.DuplexOption = firstPresent(p, duplexOptions)
	if o := p.Option(c.DuplexOption); o != nil {
		for _, ch := range o.Choices {
			switch {
			case matchesAny(ch.Name, duplexNoneChoices):
				c.DuplexNone = ch.Name
			case matchesAny(ch.Name, duplexLongChoices):
				c.DuplexLong = ch.Name
			case matchesAny(ch.Name, duplexShortChoices):
				c.DuplexShort = ch.Name
			}
		}
	}
	c.consume(duplexOptions...)

	if o := p.Option(optOutputBin); o != nil && len(o.Choices) >= 2 {
		c.OutputBinOption = optOutputBin
		for _, ch := range o.Choices {
			c.Bins = append(c.Bins,
				caps.Media{PWGName: caps.PWGBinName(ch.Name, ch.Text), PPDName: ch.Name})
		}
	}
	c.consume(optOutputBin)

	c.QualityOption = firstQuality(p)
	if c.QualityOption != "" {
		c.consume(c.QualityOption)
	}
	c.consume(qualityOptions...)
	c.consume(colorOptions...)
	c.consume(optCollate)

	c.buildPresets(p)
	c.buildFinishings(p)
	c.buildForceGray(p)

	return c
}

func (c *OptionCache) consume(keywords ...string) {
	for _, k := range keywords {
		c.consumed[k] = true
	}
}

// Consumed reports whether keyword is claimed by a standard mapping and
// must not be surfaced as a vendor option.
func (c *OptionCache) Consumed(keyword string) bool {
	return c.consumed[keyword]
}

func firstPresent(p *ppd.PPD, keywords []string) string {
	for _, k := range keywords {
		if o := p.Option(k); o != nil && len(o.Choices) >= 2 {
			return k
		}
	}
	return ""
}

func firstQuality(p *ppd.PPD) string {
	for _, k := range qualityOptions {
		if o := p.Option(k); o != nil && len(o.Choices) >= 2 {
			return k
		}
	}
	// Some PPDs name the quality option arbitrarily but translate it
	// as "Print Quality".
	for _, o := range p.Options() {
		if o.Text == "Print Quality" && len(o.Choices) >= 2 {
			return o.Keyword
		}
	}
	return ""
}

func sizeOption(p *ppd.PPD, name string) caps.SizeOption {
	so := caps.SizeOption{PPDName: name}
	if s := p.Size(name); s != nil {
		so.WidthHMM = caps.PointsToHundredthsMM(s.Width)
		so.HeightHMM = caps.PointsToHundredthsMM(s.Height)
		l, b, r, t := s.Margins()
		so.Margins = caps.Margins{
			Left:   caps.PointsToHundredthsMM(l),
			Bottom: caps.PointsToHundredthsMM(b),
			Right:  caps.PointsToHundredthsMM(r),
			Top:    caps.PointsToHundredthsMM(t),
		}
	}
	so.PWGName = caps.PWGSizeName(name, so.WidthHMM, so.HeightHMM)
	return so
}

func matchesAny(choice string, names []string) bool {
	for _, n := range names {
		if choice == n {
			return true
		}
	}
	return false
}

func (c *OptionCache) buildPresets(p *ppd.PPD) {
	var colorOption string
	var grayChoice, colorChoice string
	for _, k := range colorOptions {
		o := p.Option(k)
		if o == nil || len(o.Choices) < 2 {
			continue
		}
		for _, ch := range o.Choices {
			if grayChoice == "" && (rGray.MatchString(ch.Name) || rGray.MatchString(ch.Text)) {
				grayChoice = ch.Name
			}
			if colorChoice == "" && (rColor.MatchString(ch.Name) || rColor.MatchString(ch.Text)) {
				colorChoice = ch.Name
			}
		}
		if grayChoice != "" || colorChoice != "" {
			colorOption = k
			break
		}
	}

	var qualityChoices [caps.NumQualities]string
	if o := p.Option(c.QualityOption); o != nil {
		for _, ch := range o.Choices {
			switch {
			case rDraft.MatchString(ch.Name) || rDraft.MatchString(ch.Text):
				if qualityChoices[caps.QualityDraft] == "" {
					qualityChoices[caps.QualityDraft] = ch.Name
				}
			case rHigh.MatchString(ch.Name) || rHigh.MatchString(ch.Text):
				if qualityChoices[caps.QualityHigh] == "" {
					qualityChoices[caps.QualityHigh] = ch.Name
				}
			default:
				if qualityChoices[caps.QualityNormal] == "" {
					qualityChoices[caps.QualityNormal] = ch.Name
				}
			}
		}
	}

	for cm := 0; cm < caps.NumColorModes; cm++ {
		for q := 0; q < caps.NumQualities; q++ {
			var preset []lib.Option
			if colorOption != "" {
				if cm == caps.ColorModeMono && grayChoice != "" {
					preset = append(preset, lib.Option{Name: colorOption, Value: grayChoice})
				}
				if cm == caps.ColorModeColor && colorChoice != "" {
					preset = append(preset, lib.Option{Name: colorOption, Value: colorChoice})
				}
			}
			if c.QualityOption != "" && qualityChoices[q] != "" {
				preset = append(preset, lib.Option{Name: c.QualityOption, Value: qualityChoices[q]})
			}
			c.Presets[cm][q] = preset
		}
	}
}

func (c *OptionCache) buildFinishings(p *ppd.PPD) {
	for finishing, keywords := range finishingOptions {
		for _, k := range keywords {
			o := p.Option(k)
			if o == nil || len(o.Choices) < 2 {
				continue
			}
			// First choice that isn't an off switch requests the process.
			for _, ch := range o.Choices {
				if matchesAny(ch.Name, duplexNoneChoices) {
					continue
				}
				c.Finishings[finishing] = lib.Option{Name: k, Value: ch.Name}
				break
			}
			if _, exists := c.Finishings[finishing]; exists {
				c.consume(k)
				break
			}
		}
	}
}

func (c *OptionCache) buildForceGray(p *ppd.PPD) {
	for _, cand := range forceGrayCandidates {
		o := p.Option(cand.Name)
		if o == nil || o.Choice(cand.Value) == nil {
			continue
		}
		c.ForceGray = []lib.Option{cand}
		return
	}
}

// SourcePPDName maps a PWG media-source keyword to the PPD choice name.
func (c *OptionCache) SourcePPDName(pwg string) (string, bool) {
	return mediaPPDName(c.Sources, pwg)
}

func (c *OptionCache) TypePPDName(pwg string) (string, bool) {
	return mediaPPDName(c.Types, pwg)
}

func (c *OptionCache) BinPPDName(pwg string) (string, bool) {
	return mediaPPDName(c.Bins, pwg)
}

func mediaPPDName(media []caps.Media, pwg string) (string, bool) {
	for _, m := range media {
		if m.PWGName == pwg {
			return m.PPDName, true
		}
	}
	return "", false
}

// NearestSize finds the PPD size closest to the requested dimensions in
// hundredths of mm. A size within half a millimeter per edge is
// considered exact; otherwise the smallest total deviation wins.
func (c *OptionCache) NearestSize(widthHMM, heightHMM int) (caps.SizeOption, bool) {
	var best caps.SizeOption
	bestScore := -1
	for _, s := range c.Sizes {
		dw := s.WidthHMM - widthHMM
		if dw < 0 {
			dw = -dw
		}
		dh := s.HeightHMM - heightHMM
		if dh < 0 {
			dh = -dh
		}
		if dw <= 50 && dh <= 50 {
			return s, true
		}
		if bestScore < 0 || dw+dh < bestScore {
			best, bestScore = s, dw+dh
		}
	}
	return best, bestScore >= 0
}
