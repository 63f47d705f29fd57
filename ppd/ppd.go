/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package ppd parses PostScript Printer Description files into options,
// choices, groups, constraints and page geometry, and holds the mutable
// "marked choice" state the driver and job layers work against.
package ppd

import (
	"fmt"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const (
	kwCloseGroup        = "CloseGroup"
	kwCloseSubGroup     = "CloseSubGroup"
	kwCloseUI           = "CloseUI"
	kwCustomPageSize    = "CustomPageSize"
	kwDefault           = "Default"
	kwDeviceID          = "1284DeviceID"
	kwEnd               = "End"
	kwHWMargins         = "HWMargins"
	kwImageableArea     = "ImageableArea"
	kwInstallableGroup  = "InstallableOptions"
	kwJCLBegin          = "JCLBegin"
	kwJCLCloseUI        = "JCLCloseUI"
	kwJCLEnd            = "JCLEnd"
	kwJCLOpenUI         = "JCLOpenUI"
	kwJCLToPS           = "JCLToPSInterpreter"
	kwJobPatchFile      = "JobPatchFile"
	kwLanguageLevel     = "LanguageLevel"
	kwManufacturer      = "Manufacturer"
	kwMaxMediaHeight    = "MaxMediaHeight"
	kwMaxMediaWidth     = "MaxMediaWidth"
	kwModelName         = "ModelName"
	kwNickName          = "NickName"
	kwOpenGroup         = "OpenGroup"
	kwOpenSubGroup      = "OpenSubGroup"
	kwOpenUI            = "OpenUI"
	kwPaperDimension    = "PaperDimension"
	kwParamCustomSize   = "ParamCustomPageSize"
	kwUIConstraints     = "UIConstraints"
	kwNonUIConstraints  = "NonUIConstraints"
	kwPPDAdobe          = "PPD-Adobe"
	uiBoolean           = "Boolean"
	uiPickMany          = "PickMany"
	uiPickOne           = "PickOne"
)

var (
	rLineSplit = regexp.MustCompile(`(?:\r\n|\r|\n)\*`)
	rStatement = regexp.MustCompile(`` +
		`^([^\s:/]+)` + // Main keyword; not optional.
		`(?:\s+([^/:]+))?` + // Option keyword.
		`(?:/([^:]*))?` + // Translation string.
		`(?::\s*(?:"([^"]*)"|(.*)))?\s*$`) // Value.
	rConstraint = regexp.MustCompile(`^\*([^\s\*]+)\s+(\S*)\s*\*([^\s\*]+)\s*(\S*)$`)
	rPair       = regexp.MustCompile(`^([\d.]+)\s+([\d.]+)$`)
	rQuad       = regexp.MustCompile(`^([\d.]+)\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)$`)
)

// Choice is one selectable value of an Option.
type Choice struct {
	Name string // machine value, e.g. "DuplexNoTumble"
	Text string // human text, e.g. "Long-Edge Binding"
	// Invocation is the PostScript fragment the printer consumes when
	// this choice is selected.
	Invocation string
}

// Option is one OpenUI entry.
type Option struct {
	Keyword     string
	Text        string
	UI          string // PickOne, Boolean or PickMany
	JCL         bool
	Installable bool
	Default     string // choice name from *DefaultKeyword
	Query       string // *?Keyword invocation, "" when not queryable
	Choices     []Choice
}

func (o *Option) Choice(name string) *Choice {
	for i := range o.Choices {
		if o.Choices[i].Name == name {
			return &o.Choices[i]
		}
	}
	return nil
}

// Constraint is one UIConstraints row: option1=choice1 forbids
// option2=choice2. An empty choice constrains every choice of the option.
type Constraint struct {
	Option1, Choice1 string
	Option2, Choice2 string
}

// PageSize carries the geometry of one PageSize choice. Dimensions and
// imageable area are in PostScript points.
type PageSize struct {
	Name          string
	Width, Height float64
	// ImageableArea: left, bottom, right, top. HasArea is false when the
	// PPD declared no *ImageableArea for this size.
	Left, Bottom, Right, Top float64
	HasArea                  bool
}

// Margins of a PageSize in points: left, bottom, right, top.
func (s *PageSize) Margins() (float64, float64, float64, float64) {
	if !s.HasArea {
		return 0, 0, 0, 0
	}
	return s.Left, s.Bottom, s.Width - s.Right, s.Height - s.Top
}

func (s *PageSize) Borderless() bool {
	l, b, r, t := s.Margins()
	return s.HasArea && l == 0 && b == 0 && r == 0 && t == 0
}

// CustomSizeBounds are the custom page size limits in points.
type CustomSizeBounds struct {
	Supported                                bool
	MinWidth, MaxWidth, MinHeight, MaxHeight float64
}

// PPD is a parsed PPD file plus its mark state.
type PPD struct {
	Path          string
	Manufacturer  string
	ModelName     string
	NickName      string
	DeviceID      string
	LanguageLevel int
	JCLBegin      string
	JCLToPS       string
	JCLEnd        string
	JobPatchFile  string

	// HWMargins: left, bottom, right, top in points, when declared.
	HWMargins    [4]float64
	HasHWMargins bool

	options     []*Option
	byKeyword   map[string]*Option
	constraints []Constraint
	sizes       map[string]*PageSize
	sizeOrder   []string
	custom      CustomSizeBounds

	// marks is the interpreter's currently-selected choice per option.
	// Guarded by sessionMutex; see mark.go.
	marks        map[string]string
	sessionMutex sync.Mutex
}

// LoadError reports an unreadable or malformed PPD file.
type LoadError struct {
	Path string
	Code ErrorCode
	Line int
	Err  error
}

type ErrorCode uint8

const (
	ErrFileOpen ErrorCode = iota
	ErrNotPPD
	ErrMissingValue
)

func (e *LoadError) Error() string {
	switch e.Code {
	case ErrFileOpen:
		return fmt.Sprintf("ppd %s: cannot open: %v", e.Path, e.Err)
	case ErrNotPPD:
		return fmt.Sprintf("ppd %s: not a PPD file (line %d)", e.Path, e.Line)
	default:
		return fmt.Sprintf("ppd %s: malformed statement (line %d)", e.Path, e.Line)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// Parse reads and parses the PPD file at path.
func Parse(path string) (*PPD, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrFileOpen, Err: err}
	}
	return ParseString(path, string(b))
}

// ParseString parses PPD text. name is used for error reporting only.
func ParseString(name, text string) (*PPD, error) {
	if !strings.HasPrefix(text, "*"+kwPPDAdobe) {
		return nil, &LoadError{Path: name, Code: ErrNotPPD, Line: 1}
	}

	p := &PPD{
		Path:          name,
		LanguageLevel: 2,
		byKeyword:     make(map[string]*Option),
		sizes:         make(map[string]*PageSize),
		marks:         make(map[string]string),
	}

	var current *Option
	var insideInstallable bool
	defaults := make(map[string]string)

	// The leading "*" of each statement is consumed by the splitter.
	line := 1
	for _, chunk := range rLineSplit.Split(text, -1) {
		chunkLine := line
		line += strings.Count(chunk, "\n") + 1
		if strings.HasPrefix(chunk, "%") {
			continue
		}
		if strings.HasPrefix(chunk, "?") {
			// Query invocation: *?Keyword: "PostScript".
			p.parseQuery(chunk)
			continue
		}
		found := rStatement.FindStringSubmatch(chunk)
		if found == nil {
			continue
		}

		mainKeyword, optionKeyword, translation := found[1], found[2], found[3]
		optionKeyword = strings.TrimSpace(optionKeyword)
		var value string
		if found[4] != "" {
			value = found[4]
		} else {
			value = strings.TrimSpace(found[5])
		}

		switch mainKeyword {
		case kwPPDAdobe, kwEnd:
		case kwOpenUI, kwJCLOpenUI:
			if value == "" {
				return nil, &LoadError{Path: name, Code: ErrMissingValue, Line: chunkLine}
			}
			ui := value
			switch ui {
			case uiPickOne, uiBoolean, uiPickMany:
			default:
				// Unknown UI types degrade to PickOne.
				ui = uiPickOne
			}
			keyword := strings.TrimPrefix(optionKeyword, "*")
			current = &Option{
				Keyword:     keyword,
				Text:        translation,
				UI:          ui,
				JCL:         mainKeyword == kwJCLOpenUI,
				Installable: insideInstallable,
			}
			if current.Text == "" {
				current.Text = keyword
			}
			if prev, exists := p.byKeyword[keyword]; exists && prev.UI == "" {
				// A query statement preceded the OpenUI entry.
				current.Query = prev.Query
			}
			p.options = append(p.options, current)
			p.byKeyword[keyword] = current
		case kwCloseUI, kwJCLCloseUI:
			current = nil
		case kwOpenGroup:
			if strings.HasPrefix(value, kwInstallableGroup) ||
				strings.HasPrefix(optionKeyword, kwInstallableGroup) {
				insideInstallable = true
			}
		case kwCloseGroup:
			if strings.HasPrefix(value, kwInstallableGroup) ||
				strings.HasPrefix(optionKeyword, kwInstallableGroup) {
				insideInstallable = false
			}
		case kwOpenSubGroup, kwCloseSubGroup:
		case kwUIConstraints, kwNonUIConstraints:
			if c := rConstraint.FindStringSubmatch(value); c != nil {
				p.constraints = append(p.constraints,
					Constraint{c[1], c[2], c[3], c[4]})
			}
		case kwManufacturer:
			p.Manufacturer = value
		case kwModelName:
			p.ModelName = value
		case kwNickName:
			p.NickName = value
		case kwDeviceID:
			p.DeviceID = value
		case kwLanguageLevel:
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				p.LanguageLevel = n
			}
		case kwJCLBegin:
			p.JCLBegin = unescapeJCL(value)
		case kwJCLToPS:
			p.JCLToPS = unescapeJCL(value)
		case kwJCLEnd:
			p.JCLEnd = unescapeJCL(value)
		case kwJobPatchFile:
			p.JobPatchFile = value
		case kwPaperDimension:
			if d := rPair.FindStringSubmatch(value); d != nil {
				s := p.size(optionKeyword)
				s.Width, _ = strconv.ParseFloat(d[1], 64)
				s.Height, _ = strconv.ParseFloat(d[2], 64)
			}
		case kwImageableArea:
			if a := rQuad.FindStringSubmatch(value); a != nil {
				s := p.size(optionKeyword)
				s.Left, _ = strconv.ParseFloat(a[1], 64)
				s.Bottom, _ = strconv.ParseFloat(a[2], 64)
				s.Right, _ = strconv.ParseFloat(a[3], 64)
				s.Top, _ = strconv.ParseFloat(a[4], 64)
				s.HasArea = true
			}
		case kwHWMargins:
			if m := rQuad.FindStringSubmatch(strings.TrimSpace(value)); m != nil {
				for i := 0; i < 4; i++ {
					p.HWMargins[i], _ = strconv.ParseFloat(m[i+1], 64)
				}
				p.HasHWMargins = true
			}
		case kwCustomPageSize:
			if optionKeyword == "True" {
				p.custom.Supported = true
			}
		case kwParamCustomSize:
			p.parseCustomParam(optionKeyword, value)
		case kwMaxMediaWidth:
			if w, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && p.custom.MaxWidth == 0 {
				p.custom.MaxWidth = w
			}
		case kwMaxMediaHeight:
			if h, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && p.custom.MaxHeight == 0 {
				p.custom.MaxHeight = h
			}
		default:
			if strings.HasPrefix(mainKeyword, kwDefault) {
				defaults[strings.TrimPrefix(mainKeyword, kwDefault)] = value
				continue
			}
			if current != nil && mainKeyword == current.Keyword {
				p.addChoice(current, optionKeyword, translation, value)
			}
		}
	}

	for keyword, def := range defaults {
		if o, exists := p.byKeyword[keyword]; exists {
			o.Default = def
		}
	}
	for _, o := range p.options {
		if o.Choice(o.Default) == nil && len(o.Choices) > 0 {
			o.Default = o.Choices[0].Name
		}
	}

	return p, nil
}

func (p *PPD) addChoice(o *Option, name, translation, invocation string) {
	if name == "" {
		return
	}
	if translation == "" {
		translation = name
	}
	if o.Choice(name) != nil {
		return
	}
	o.Choices = append(o.Choices, Choice{name, translation, invocation})
}

func (p *PPD) parseQuery(chunk string) {
	found := rStatement.FindStringSubmatch(strings.TrimPrefix(chunk, "?"))
	if found == nil {
		return
	}
	keyword := found[1]
	if o, exists := p.byKeyword[keyword]; exists {
		o.Query = found[4]
	} else {
		// Query may precede the OpenUI entry; keep it for later.
		p.byKeyword[keyword] = &Option{Keyword: keyword, Query: found[4]}
	}
}

// Accepts both "points min max" and the full "order points min max"
// form of *ParamCustomPageSize.
func (p *PPD) parseCustomParam(param, value string) {
	fields := strings.Fields(value)
	if len(fields) == 4 && fields[1] == "points" {
		fields = fields[1:]
	}
	if len(fields) != 3 || fields[0] != "points" {
		return
	}
	min, err1 := strconv.ParseFloat(fields[1], 64)
	max, err2 := strconv.ParseFloat(fields[2], 64)
	if err1 != nil || err2 != nil {
		return
	}
	switch param {
	case "Width":
		p.custom.MinWidth, p.custom.MaxWidth = min, max
	case "Height":
		p.custom.MinHeight, p.custom.MaxHeight = min, max
	}
}

func (p *PPD) size(name string) *PageSize {
	if s, exists := p.sizes[name]; exists {
		return s
	}
	s := &PageSize{Name: name}
	p.sizes[name] = s
	p.sizeOrder = append(p.sizeOrder, name)
	return s
}

// Option returns the named option, or nil. Options registered only by a
// dangling query statement have no choices and no UI.
func (p *PPD) Option(keyword string) *Option {
	o, exists := p.byKeyword[keyword]
	if !exists || o.UI == "" {
		return nil
	}
	return o
}

// Options returns every OpenUI option in file order.
func (p *PPD) Options() []*Option {
	return p.options
}

func (p *PPD) Constraints() []Constraint {
	return p.constraints
}

// Size returns geometry for one PageSize choice name, or nil.
func (p *PPD) Size(name string) *PageSize {
	return p.sizes[name]
}

// Sizes returns page geometry in file order.
func (p *PPD) Sizes() []*PageSize {
	out := make([]*PageSize, 0, len(p.sizeOrder))
	for _, name := range p.sizeOrder {
		out = append(out, p.sizes[name])
	}
	return out
}

func (p *PPD) CustomBounds() CustomSizeBounds {
	return p.custom
}

// MakeAndModel returns the NickName, falling back to Manufacturer+ModelName.
func (p *PPD) MakeAndModel() string {
	if p.NickName != "" {
		return p.NickName
	}
	return strings.TrimSpace(p.Manufacturer + " " + p.ModelName)
}

// JCL values escape newlines as the literal sequences <0A> or \n per the
// PPD spec's quoted-value rules; normalize the common forms.
func unescapeJCL(v string) string {
	v = strings.ReplaceAll(v, "<0A>", "\n")
	v = strings.ReplaceAll(v, "<1B>", "\x1b")
	return v
}
