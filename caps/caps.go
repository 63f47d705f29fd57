/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package caps defines the driver capability record: the structured,
// IPP- and web-facing snapshot of what a configured queue supports and
// defaults to. The driver package populates it; the server framework
// reads it to answer get-printer-attributes.
package caps

// MaxVendor bounds the vendor option registry. One slot beyond
// len(VendorOptions) is always reserved for the serialized
// installable-options blob, so at most MaxVendor-1 options are surfaced.
const MaxVendor = 32

// InstallableBlobKey is the persisted-attribute key holding the
// accessory configuration blob ("KEY=CHOICE KEY=CHOICE ...").
const InstallableBlobKey = "installable-options"

// Resolution in dots per inch.
type Resolution struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Media pairs a vendor-neutral PWG keyword with the PPD choice it maps to.
type Media struct {
	PWGName string `json:"pwg_name"`
	PPDName string `json:"ppd_name"`
}

// Margins in hundredths of millimeters: left, bottom, right, top.
type Margins struct {
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
	Top    int `json:"top"`
}

// SizeOption is one supported page size.
type SizeOption struct {
	PWGName   string  `json:"pwg_name"`
	PPDName   string  `json:"ppd_name"`
	WidthHMM  int     `json:"width"`  // hundredths of mm
	HeightHMM int     `json:"height"` // hundredths of mm
	Margins   Margins `json:"margins"`
}

// ReadyMedia is the media an operator loaded in one source, independent
// of the source's declared capability.
type ReadyMedia struct {
	Source  string  `json:"source"` // PWG source name; "" in the sentinel entry
	Size    string  `json:"size"`   // PWG size name
	Type    string  `json:"type"`   // PWG type name
	Margins Margins `json:"margins"`
}

// Zero reports whether this is an unset (sentinel) entry.
func (r ReadyMedia) Zero() bool {
	return r.Source == "" && r.Size == "" && r.Type == ""
}

// Sides values follow the IPP "sides" keyword.
const (
	SidesOneSided      = "one-sided"
	SidesTwoSidedLong  = "two-sided-long-edge"
	SidesTwoSidedShort = "two-sided-short-edge"
)

// DuplexCaps is a bitmask of supported sides modes beyond one-sided.
type DuplexCaps uint8

const (
	DuplexLongEdge DuplexCaps = 1 << iota
	DuplexShortEdge
)

// Finishing is a bitmask of supported or requested finishing processes.
type Finishing uint32

const (
	FinishStaple Finishing = 1 << iota
	FinishPunch
	FinishFold
	FinishTrim
	FinishBooklet
	FinishBind
)

var finishingNames = map[Finishing]string{
	FinishStaple:  "staple",
	FinishPunch:   "punch",
	FinishFold:    "fold",
	FinishTrim:    "trim",
	FinishBooklet: "booklet-maker",
	FinishBind:    "bind",
}

func (f Finishing) Has(bit Finishing) bool { return f&bit != 0 }

func (f Finishing) String() string {
	s := ""
	for bit, name := range finishingNames {
		if f.Has(bit) {
			if s != "" {
				s += ","
			}
			s += name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// ColorMode indices into the preset table.
const (
	ColorModeMono = iota
	ColorModeColor
	NumColorModes
)

// Print quality indices into the preset table.
const (
	QualityDraft = iota
	QualityNormal
	QualityHigh
	NumQualities
)

// VendorType is the declared value domain of a vendor option.
type VendorType uint8

const (
	VendorKeyword VendorType = iota // enumerated keyword set
	VendorBoolean                   // IPP boolean
)

// VendorChoice is one legal value of a keyword vendor option.
type VendorChoice struct {
	Keyword   string `json:"keyword"`    // PWG-normalized display text
	PPDChoice string `json:"ppd_choice"` // native PPD choice name
	Text      string `json:"text"`
}

// VendorOption exposes one PPD option that no standard mapping consumed.
type VendorOption struct {
	Name    string         `json:"name"`    // IPP-style option name
	Keyword string         `json:"keyword"` // backing PPD main keyword
	Type    VendorType     `json:"type"`
	Default string         `json:"default"`
	Choices []VendorChoice `json:"choices,omitempty"` // empty for boolean
}

// Choice returns the declared choice whose normalized keyword is k, or nil.
func (v *VendorOption) Choice(k string) *VendorChoice {
	for i := range v.Choices {
		if v.Choices[i].Keyword == k {
			return &v.Choices[i]
		}
	}
	return nil
}

// Record is the driver capability snapshot for one queue.
type Record struct {
	MakeAndModel  string `json:"make_and_model"`
	LanguageLevel int    `json:"language_level"`

	Resolutions       []Resolution `json:"resolutions"`
	DefaultResolution Resolution   `json:"default_resolution"`

	Sources       []Media `json:"sources,omitempty"`
	DefaultSource string  `json:"default_source,omitempty"`

	Types       []Media `json:"types,omitempty"`
	DefaultType string  `json:"default_type,omitempty"`

	Sizes       []SizeOption `json:"sizes"`
	DefaultSize string       `json:"default_size"`

	// MediaReady has one entry per entry of Sources, in the same order,
	// plus one trailing zero entry. The driver keeps configurations of
	// disabled sources aside and restores them when the accessory
	// returns; the sentinel marks the end of the active region.
	MediaReady []ReadyMedia `json:"media_ready"`

	OutputBins []Media `json:"output_bins,omitempty"`
	DefaultBin string  `json:"default_bin,omitempty"`

	Duplex       DuplexCaps `json:"duplex"`
	SidesDefault string     `json:"sides_default"`

	Finishings Finishing `json:"finishings"`

	VendorOptions []VendorOption `json:"vendor_options,omitempty"`

	Margins    Margins `json:"margins"`
	Borderless bool    `json:"borderless"`

	InstallableOptions  bool `json:"installable_options"`
	DefaultsPollable    bool `json:"defaults_pollable"`
	InstallablePollable bool `json:"installable_pollable"`
}

// NumVendor counts surfaced vendor options plus the reserved blob slot
// when installable options exist.
func (r *Record) NumVendor() int {
	n := len(r.VendorOptions)
	if r.InstallableOptions {
		n++
	}
	return n
}

// VendorOption returns the registry entry with the given IPP-style name.
func (r *Record) VendorOption(name string) *VendorOption {
	for i := range r.VendorOptions {
		if r.VendorOptions[i].Name == name {
			return &r.VendorOptions[i]
		}
	}
	return nil
}
