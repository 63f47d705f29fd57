/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package caps

import (
	"fmt"
	"strings"
)

// PWGKeyword normalizes human text to a PWG 5101.1 style keyword:
// lower case, runs of anything outside [a-z0-9._] collapsed to one '-',
// no leading or trailing '-'.
func PWGKeyword(text string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Well-known PWG self-describing size names by PPD choice name. Sizes
// outside this table get a self-describing custom name from dimensions.
var pwgSizeNames = map[string]string{
	"Letter":    "na_letter_8.5x11in",
	"Legal":     "na_legal_8.5x14in",
	"Executive": "na_executive_7.25x10.5in",
	"Tabloid":   "na_ledger_11x17in",
	"Ledger":    "na_ledger_11x17in",
	"Statement": "na_invoice_5.5x8.5in",
	"A3":        "iso_a3_297x420mm",
	"A4":        "iso_a4_210x297mm",
	"A5":        "iso_a5_148x210mm",
	"A6":        "iso_a6_105x148mm",
	"B5":        "jis_b5_182x257mm",
	"JISB5":     "jis_b5_182x257mm",
	"ISOB5":     "iso_b5_176x250mm",
	"Env10":     "na_number-10_4.125x9.5in",
	"Comm10":    "na_number-10_4.125x9.5in",
	"EnvMonarch": "na_monarch_3.875x7.5in",
	"Monarch":   "na_monarch_3.875x7.5in",
	"EnvDL":     "iso_dl_110x220mm",
	"DLEnv":     "iso_dl_110x220mm",
	"EnvC5":     "iso_c5_162x229mm",
	"Folio":     "om_folio_210x330mm",
	"Hagaki":    "jpn_hagaki_100x148mm",
}

// PWGSizeName returns the PWG self-describing name for a PPD size
// choice, synthesizing a custom name from the dimensions (hundredths of
// mm) when the choice is not in the well-known table.
func PWGSizeName(ppdName string, widthHMM, heightHMM int) string {
	if name, exists := pwgSizeNames[ppdName]; exists {
		return name
	}
	return fmt.Sprintf("custom_%s_%dx%dmm",
		PWGKeyword(ppdName), (widthHMM+50)/100, (heightHMM+50)/100)
}

// Well-known PWG media-source keywords by PPD InputSlot choice.
var pwgSources = map[string]string{
	"Auto":           "auto",
	"AutoSelect":     "auto",
	"Default":        "auto",
	"Upper":          "tray-1",
	"Tray1":          "tray-1",
	"Middle":         "tray-2",
	"Tray2":          "tray-2",
	"Lower":          "tray-3",
	"Tray3":          "tray-3",
	"Tray4":          "tray-4",
	"Tray5":          "tray-5",
	"LargeCapacity":  "large-capacity",
	"Manual":         "manual",
	"ManualFeed":     "manual",
	"MultiPurpose":   "by-pass-tray",
	"MPTray":         "by-pass-tray",
	"Bypass":         "by-pass-tray",
	"Envelope":       "envelope",
	"EnvelopeFeeder": "envelope",
}

// PWGSourceName maps a PPD input slot choice to a PWG media-source
// keyword, normalizing the display text when the choice is unknown.
func PWGSourceName(ppdChoice, text string) string {
	if name, exists := pwgSources[ppdChoice]; exists {
		return name
	}
	return PWGKeyword(text)
}

// Well-known PWG media-type keywords by PPD MediaType choice.
var pwgTypes = map[string]string{
	"Plain":        "stationery",
	"PlainPaper":   "stationery",
	"Letterhead":   "stationery-letterhead",
	"Transparency": "transparency",
	"Envelope":     "envelope",
	"Labels":       "labels",
	"Cardstock":    "cardstock",
	"CardStock":    "cardstock",
	"Photo":        "photographic",
	"PhotoPaper":   "photographic",
	"Glossy":       "photographic-glossy",
	"Bond":         "stationery-bond",
	"Recycled":     "stationery-recycled",
}

func PWGTypeName(ppdChoice, text string) string {
	if name, exists := pwgTypes[ppdChoice]; exists {
		return name
	}
	return PWGKeyword(text)
}

// Well-known PWG output-bin keywords by PPD OutputBin choice.
var pwgBins = map[string]string{
	"Standard":  "face-down",
	"Upper":     "face-down",
	"FaceDown":  "face-down",
	"FaceUp":    "face-up",
	"Rear":      "face-up",
	"Stacker":   "stacker",
	"Mailbox1":  "mailbox-1",
	"Mailbox2":  "mailbox-2",
	"Mailbox3":  "mailbox-3",
	"LeftTray":  "tray-1",
	"RightTray": "tray-2",
}

func PWGBinName(ppdChoice, text string) string {
	if name, exists := pwgBins[ppdChoice]; exists {
		return name
	}
	return PWGKeyword(text)
}

// PointsToHundredthsMM converts PostScript points to hundredths of mm.
func PointsToHundredthsMM(points float64) int {
	return int(points*2540/72 + 0.5)
}

// HundredthsMMToPoints converts hundredths of mm to PostScript points.
func HundredthsMMToPoints(hmm int) float64 {
	return float64(hmm) * 72 / 2540
}
