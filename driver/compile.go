/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package driver

import (
	"sort"
	"strings"
	"sync"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/log"
	"github.com/OpenPrinting/ps-printer-app/ppd"
)

// Hardcoded margin fallbacks in hundredths of mm, used when the PPD
// declares neither per-size imageable areas nor hardware margins:
// 1/4 inch left/right, 1/2 inch top/bottom.
const (
	fallbackMarginLeftRight = 635
	fallbackMarginTopBottom = 1270
)

// State is the per-queue driver state: the PPD handle, its option
// cache, the compiled capability record and the ready-media undo
// buffer. The owning queue's configuration lock serializes access.
type State struct {
	QueueID string
	PPD     *ppd.PPD
	Cache   *OptionCache
	Record  *caps.Record

	// ready keeps the loaded-media configuration per PWG source name,
	// including sources whose accessory is currently uninstalled, so a
	// re-enabled accessory gets its old configuration back.
	ready         map[string]caps.ReadyMedia
	activeSources []string

	staleMutex sync.Mutex
	stale      bool
}

// Compile builds or refreshes driver capability data for a queue.
// With st == nil it runs in Init mode: parse the PPD, mark its
// defaults, and populate an unfiltered record, so that a persisted
// configuration from a previous session can still be applied before
// accessory conflicts are filtered. With an existing state it runs in
// Update mode (see Update).
func Compile(queueID, ppdPath string, st *State) (*State, error) {
	if st == nil {
		return Init(queueID, ppdPath)
	}
	if err := st.Update(); err != nil {
		return nil, err
	}
	return st, nil
}

// Init performs cold creation of driver state from the PPD at ppdPath.
// A missing or unparsable PPD is fatal for the queue.
func Init(queueID, ppdPath string) (*State, error) {
	p, err := ppd.Parse(ppdPath)
	if err != nil {
		return nil, err
	}

	st := &State{
		QueueID: queueID,
		PPD:     p,
		ready:   make(map[string]caps.ReadyMedia),
	}

	sess := p.Session()
	defer sess.Close()
	sess.MarkDefaults()
	sess.Commit()

	st.Cache = BuildOptionCache(p)
	st.Record = st.buildRecord(sess, false, nil)
	st.seedReadyMedia()
	st.projectReadyMedia()

	log.InfoQueuef(queueID, "driver data initialized from %s (%d vendor options)",
		ppdPath, len(st.Record.VendorOptions))
	return st, nil
}

// Update re-derives every capability field against the current
// accessory marks, filtering out conflicting choices. Defaults the user
// chose earlier are preserved when still legal; otherwise the first
// remaining legal choice takes over. Running Update twice with no
// intervening accessory change yields an identical record.
func (st *State) Update() error {
	sess := st.PPD.Session()
	defer sess.Close()
	sess.Commit()

	prev := st.Record
	st.Record = st.buildRecord(sess, true, prev)
	st.reconcileReadyMedia()
	st.projectReadyMedia()
	return nil
}

// buildRecord derives a capability record. filtered selects Update-mode
// behavior: conflicting choices are dropped and defaults are carried
// over from prev by name.
func (st *State) buildRecord(sess *ppd.Session, filtered bool, prev *caps.Record) *caps.Record {
	p := st.PPD
	r := &caps.Record{
		MakeAndModel:  p.MakeAndModel(),
		LanguageLevel: p.LanguageLevel,
	}

	st.deriveResolutions(sess, r, filtered, prev)
	st.deriveMedia(sess, r, filtered, prev)
	st.deriveMargins(r)
	st.deriveDuplex(sess, r, filtered, prev)
	st.deriveFinishings(sess, r, filtered)
	st.deriveVendorOptions(sess, r, filtered, prev)

	return r
}

func (st *State) deriveResolutions(sess *ppd.Session, r *caps.Record, filtered bool, prev *caps.Record) {
	o := st.PPD.Option(st.Cache.ResolutionOption)
	seen := make(map[caps.Resolution]bool)
	if o != nil {
		for _, ch := range o.Choices {
			if filtered && sess.Conflicts(o.Keyword, ch.Name) {
				continue
			}
			res, ok := parseResolution(ch.Name)
			if !ok {
				continue
			}
			if !seen[res] {
				seen[res] = true
				r.Resolutions = append(r.Resolutions, res)
			}
		}
	}
	if len(r.Resolutions) == 0 {
		// No resolution information anywhere; a PostScript printer can
		// always be driven at 300dpi.
		r.Resolutions = []caps.Resolution{{X: 300, Y: 300}}
	}
	sort.Slice(r.Resolutions, func(i, j int) bool {
		a, b := r.Resolutions[i], r.Resolutions[j]
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})

	r.DefaultResolution = r.Resolutions[0]
	if filtered && prev != nil {
		if seen[prev.DefaultResolution] {
			r.DefaultResolution = prev.DefaultResolution
		}
	} else if o != nil {
		if marked, ok := sess.Marked(o.Keyword); ok {
			if res, ok := parseResolution(marked); ok && seen[res] {
				r.DefaultResolution = res
			}
		}
	}
}

func parseResolution(choice string) (caps.Resolution, bool) {
	found := rResolution.FindStringSubmatch(choice)
	if found == nil {
		return caps.Resolution{}, false
	}
	x := atoi(found[1])
	y := x
	if found[2] != "" {
		y = atoi(found[2])
	}
	if x <= 0 || y <= 0 {
		return caps.Resolution{}, false
	}
	return caps.Resolution{X: x, Y: y}, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func (st *State) deriveMedia(sess *ppd.Session, r *caps.Record, filtered bool, prev *caps.Record) {
	c := st.Cache

	r.Sources = st.filterMedia(sess, c.SourceOption, c.Sources, filtered)
	r.DefaultSource = deriveMediaDefault(sess, c.SourceOption, r.Sources, filtered, prevSource(prev))

	r.Types = st.filterMedia(sess, c.TypeOption, c.Types, filtered)
	r.DefaultType = deriveMediaDefault(sess, c.TypeOption, r.Types, filtered, prevType(prev))

	r.OutputBins = st.filterMedia(sess, optOutputBin, c.Bins, filtered)
	r.DefaultBin = deriveMediaDefault(sess, optOutputBin, r.OutputBins, filtered, prevBin(prev))

	for _, s := range c.Sizes {
		if filtered && sess.Conflicts(c.SizeOption, s.PPDName) {
			continue
		}
		r.Sizes = append(r.Sizes, s)
	}
	if len(r.Sizes) > 0 {
		r.DefaultSize = r.Sizes[0].PWGName
		restored := false
		if filtered && prev != nil {
			for _, s := range r.Sizes {
				if s.PWGName == prev.DefaultSize {
					r.DefaultSize = s.PWGName
					restored = true
					break
				}
			}
		}
		if !restored {
			if marked, ok := sess.Marked(c.SizeOption); ok {
				for _, s := range r.Sizes {
					if s.PPDName == marked {
						r.DefaultSize = s.PWGName
						break
					}
				}
			}
		}
	}
}

func prevSource(prev *caps.Record) string {
	if prev == nil {
		return ""
	}
	return prev.DefaultSource
}

func prevType(prev *caps.Record) string {
	if prev == nil {
		return ""
	}
	return prev.DefaultType
}

func prevBin(prev *caps.Record) string {
	if prev == nil {
		return ""
	}
	return prev.DefaultBin
}

func (st *State) filterMedia(sess *ppd.Session, keyword string, media []caps.Media, filtered bool) []caps.Media {
	if !filtered || keyword == "" {
		return media
	}
	out := make([]caps.Media, 0, len(media))
	for _, m := range media {
		if sess.Conflicts(keyword, m.PPDName) {
			log.DebugQueuef(st.QueueID, "choice %s=%s conflicts with installed accessories; dropped",
				keyword, m.PPDName)
			continue
		}
		out = append(out, m)
	}
	return out
}

// deriveMediaDefault picks the default PWG name for one media list:
// the previous default when still legal (Update), else the PPD's
// marked choice, else the first legal choice.
func deriveMediaDefault(sess *ppd.Session, keyword string, media []caps.Media, filtered bool, prevDefault string) string {
	if len(media) == 0 {
		return ""
	}
	if filtered && prevDefault != "" {
		for _, m := range media {
			if m.PWGName == prevDefault {
				return prevDefault
			}
		}
	}
	if marked, ok := sess.Marked(keyword); ok {
		for _, m := range media {
			if m.PPDName == marked {
				return m.PWGName
			}
		}
	}
	return media[0].PWGName
}

// deriveMargins applies the maximum margin observed across all surfaced
// page sizes on each side, falling back to the PPD's hardware margins
// and then to the 635/1270 constants. A page size with all four margins
// zero makes the record borderless-capable.
func (st *State) deriveMargins(r *caps.Record) {
	var m caps.Margins
	var haveAreas bool
	for _, s := range r.Sizes {
		ps := st.PPD.Size(s.PPDName)
		if ps == nil || !ps.HasArea {
			continue
		}
		haveAreas = true
		if ps.Borderless() {
			r.Borderless = true
		}
		if s.Margins.Left > m.Left {
			m.Left = s.Margins.Left
		}
		if s.Margins.Bottom > m.Bottom {
			m.Bottom = s.Margins.Bottom
		}
		if s.Margins.Right > m.Right {
			m.Right = s.Margins.Right
		}
		if s.Margins.Top > m.Top {
			m.Top = s.Margins.Top
		}
	}

	if !haveAreas {
		if st.PPD.HasHWMargins {
			m = caps.Margins{
				Left:   caps.PointsToHundredthsMM(st.PPD.HWMargins[0]),
				Bottom: caps.PointsToHundredthsMM(st.PPD.HWMargins[1]),
				Right:  caps.PointsToHundredthsMM(st.PPD.HWMargins[2]),
				Top:    caps.PointsToHundredthsMM(st.PPD.HWMargins[3]),
			}
		} else {
			m = caps.Margins{
				Left:   fallbackMarginLeftRight,
				Bottom: fallbackMarginTopBottom,
				Right:  fallbackMarginLeftRight,
				Top:    fallbackMarginTopBottom,
			}
		}
	}
	r.Margins = m
}

func (st *State) deriveDuplex(sess *ppd.Session, r *caps.Record, filtered bool, prev *caps.Record) {
	c := st.Cache
	r.SidesDefault = caps.SidesOneSided
	if c.DuplexOption == "" {
		return
	}

	longOK := c.DuplexLong != "" && (!filtered || !sess.Conflicts(c.DuplexOption, c.DuplexLong))
	shortOK := c.DuplexShort != "" && (!filtered || !sess.Conflicts(c.DuplexOption, c.DuplexShort))
	if longOK {
		r.Duplex |= caps.DuplexLongEdge
	}
	if shortOK {
		r.Duplex |= caps.DuplexShortEdge
	}

	want := ""
	if filtered && prev != nil {
		want = prev.SidesDefault
	} else if marked, ok := sess.Marked(c.DuplexOption); ok {
		switch marked {
		case c.DuplexLong:
			want = caps.SidesTwoSidedLong
		case c.DuplexShort:
			want = caps.SidesTwoSidedShort
		}
	}

	switch {
	case want == caps.SidesTwoSidedLong && longOK:
		r.SidesDefault = want
	case want == caps.SidesTwoSidedShort && shortOK:
		r.SidesDefault = want
	default:
		// Demote to one-sided and bring the PPD mark along.
		r.SidesDefault = caps.SidesOneSided
		if c.DuplexNone != "" {
			sess.Mark(c.DuplexOption, c.DuplexNone)
		}
	}
}

func (st *State) deriveFinishings(sess *ppd.Session, r *caps.Record, filtered bool) {
	for finishing, pair := range st.Cache.Finishings {
		if filtered && sess.Conflicts(pair.Name, pair.Value) {
			continue
		}
		r.Finishings |= finishing
	}
}

func (st *State) deriveVendorOptions(sess *ppd.Session, r *caps.Record, filtered bool, prev *caps.Record) {
	for _, o := range st.PPD.Options() {
		if o.Installable {
			r.InstallableOptions = true
			if o.Query != "" {
				r.InstallablePollable = true
			}
			continue
		}
		if o.Query != "" {
			r.DefaultsPollable = true
		}
		if st.Cache.Consumed(o.Keyword) || len(o.Choices) < 2 {
			continue
		}

		// One slot stays reserved for the installable-options blob.
		if len(r.VendorOptions) >= caps.MaxVendor-1 {
			log.WarningQueuef(st.QueueID, "vendor option %s dropped: registry full", o.Keyword)
			continue
		}

		vo := caps.VendorOption{
			Name:    caps.PWGKeyword(o.Text),
			Keyword: o.Keyword,
		}

		choices := make([]ppd.Choice, 0, len(o.Choices))
		for _, ch := range o.Choices {
			if filtered && sess.Conflicts(o.Keyword, ch.Name) {
				continue
			}
			choices = append(choices, ch)
		}
		if len(choices) < 2 {
			continue
		}

		if isBooleanStyle(choices) {
			vo.Type = caps.VendorBoolean
		} else {
			vo.Type = caps.VendorKeyword
			for _, ch := range choices {
				vo.Choices = append(vo.Choices, caps.VendorChoice{
					Keyword:   caps.PWGKeyword(ch.Text),
					PPDChoice: ch.Name,
					Text:      ch.Text,
				})
			}
		}

		vo.Default = vendorDefault(sess, o, choices, filtered, prev, vo.Name)
		r.VendorOptions = append(r.VendorOptions, vo)
	}
}

// isBooleanStyle reports a two-choice option whose choice texts are
// literally true/false, surfaced as an IPP boolean.
func isBooleanStyle(choices []ppd.Choice) bool {
	if len(choices) != 2 {
		return false
	}
	for _, ch := range choices {
		t := strings.ToLower(ch.Text)
		if t != "true" && t != "false" {
			return false
		}
	}
	return true
}

func vendorDefault(sess *ppd.Session, o *ppd.Option, legal []ppd.Choice, filtered bool, prev *caps.Record, name string) string {
	want := ""
	if filtered && prev != nil {
		if pv := prev.VendorOption(name); pv != nil {
			want = pv.Default
		}
	}
	if want == "" {
		if marked, ok := sess.Marked(o.Keyword); ok {
			want = marked
		} else {
			want = o.Default
		}
	}
	for _, ch := range legal {
		if ch.Name == want {
			return want
		}
	}
	return legal[0].Name
}
