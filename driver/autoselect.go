/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/OpenPrinting/ps-printer-app/log"
)

// GenericDriverName is the catch-all driver used when a device reports
// PostScript support but no listed driver matches its identification.
const GenericDriverName = "generic"

// ErrNoDriver is returned when auto-selection cannot name any driver
// for a device.
var ErrNoDriver = fmt.Errorf("driver: no suitable driver")

// DriverInfo describes one entry of the driver index.
type DriverInfo struct {
	Name         string
	DeviceID     string
	MakeAndModel string
	Language     string
	PPDPath      string
	UserAdded    bool
}

// Index is the repository of known drivers. The server bootstrap owns
// one instance and hands it to queue creation; it is not process-global
// so tests can build their own.
type Index struct {
	mutex   sync.RWMutex
	drivers []DriverInfo
	generic string
}

func NewIndex() *Index {
	return &Index{}
}

// Add appends one driver. Order is significant: earlier entries win
// score ties.
func (x *Index) Add(d DriverInfo) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.drivers = append(x.drivers, d)
	if d.Name == GenericDriverName && x.generic == "" {
		x.generic = d.Name
	}
}

// SetGeneric names the fallback driver for PostScript devices that
// match nothing in the index.
func (x *Index) SetGeneric(name string) {
	x.mutex.Lock()
	x.generic = name
	x.mutex.Unlock()
}

// Drivers returns a snapshot of the index.
func (x *Index) Drivers() []DriverInfo {
	x.mutex.RLock()
	defer x.mutex.RUnlock()
	out := make([]DriverInfo, len(x.drivers))
	copy(out, x.drivers)
	return out
}

// Find returns the driver with the given name.
func (x *Index) Find(name string) (DriverInfo, bool) {
	x.mutex.RLock()
	defer x.mutex.RUnlock()
	for _, d := range x.drivers {
		if d.Name == name {
			return d, true
		}
	}
	return DriverInfo{}, false
}

// Header keywords pulled from a PPD without a full parse; an index scan
// over hundreds of files must stay cheap.
var (
	rPPDModelName = regexp.MustCompile(`(?m)^\*(?:NickName|ModelName):\s*"([^"]*)"`)
	rPPDDeviceID  = regexp.MustCompile(`(?m)^\*1284DeviceID:\s*"([^"]*)"`)
	rPPDLanguageV = regexp.MustCompile(`(?m)^\*LanguageVersion:\s*(\S+)`)
	rPPDMagic     = regexp.MustCompile(`^\*PPD-Adobe`)
)

// ScanDir indexes every .ppd file under dir. Files that are not PPDs
// are skipped with a warning rather than failing the scan.
func (x *Index) ScanDir(dir string, userAdded bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ppd") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		d, err := readDriverInfo(path, userAdded)
		if err != nil {
			log.Warningf("skipping %s: %s", path, err)
			continue
		}
		x.Add(d)
	}
	return nil
}

func readDriverInfo(path string, userAdded bool) (DriverInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DriverInfo{}, err
	}
	if !rPPDMagic.Match(raw) {
		return DriverInfo{}, fmt.Errorf("not a PPD file")
	}

	d := DriverInfo{
		Name:      strings.TrimSuffix(filepath.Base(path), ".ppd"),
		PPDPath:   path,
		UserAdded: userAdded,
	}
	if m := rPPDModelName.FindSubmatch(raw); m != nil {
		d.MakeAndModel = string(m[1])
	}
	if m := rPPDDeviceID.FindSubmatch(raw); m != nil {
		d.DeviceID = string(m[1])
	}
	if m := rPPDLanguageV.FindSubmatch(raw); m != nil {
		d.Language = string(m[1])
	}
	return d, nil
}

// parseDeviceID splits an IEEE 1284 device ID into upper-cased keys.
// Both long and short key forms are folded to the short form.
func parseDeviceID(deviceID string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(deviceID, ";") {
		colon := strings.IndexByte(pair, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(pair[:colon]))
		value := strings.TrimSpace(pair[colon+1:])
		switch key {
		case "MANUFACTURER":
			key = "MFG"
		case "MODEL":
			key = "MDL"
		case "COMMAND SET":
			key = "CMD"
		}
		fields[key] = value
	}
	return fields
}

// PostScript-family command-set tokens. Matching is exact against
// comma-separated fields; "PS" inside a longer token never matches.
var postScriptTokens = map[string]bool{
	"POSTSCRIPT": true,
	"BRSCRIPT":   true,
	"PS":         true,
	"PS2":        true,
	"PS3":        true,
}

func supportsPostScript(cmd string) bool {
	for _, token := range strings.Split(cmd, ",") {
		if postScriptTokens[strings.ToUpper(strings.TrimSpace(token))] {
			return true
		}
	}
	return false
}

// normalizeModel folds a make-and-model string for prefix comparison:
// lower case, collapsed whitespace, long manufacturer names shortened.
func normalizeModel(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	for long, short := range map[string]string{
		"hewlett-packard":       "hp",
		"hewlett packard":       "hp",
		"lexmark international": "lexmark",
		"kyocera mita":          "kyocera",
	} {
		if strings.HasPrefix(s, long) {
			s = short + s[len(long):]
			break
		}
	}
	return s
}

// SelectDriver picks the best driver for a device identification
// string. A device that declares a command set without any PostScript
// language is rejected outright; a device that declares none is scored
// on make and model alone.
func (x *Index) SelectDriver(deviceID string) (string, error) {
	fields := parseDeviceID(deviceID)
	if cmd, declared := fields["CMD"]; declared && !supportsPostScript(cmd) {
		return "", ErrNoDriver
	}

	devMfg := strings.ToLower(fields["MFG"])
	devMdl := strings.ToLower(fields["MDL"])
	devName := normalizeModel(strings.TrimSpace(fields["MFG"] + " " + fields["MDL"]))

	x.mutex.RLock()
	defer x.mutex.RUnlock()

	best, bestScore := "", 0
	for _, d := range x.drivers {
		score := 0
		if devMfg != "" && devMdl != "" && d.DeviceID != "" {
			df := parseDeviceID(d.DeviceID)
			if strings.ToLower(df["MFG"]) == devMfg && strings.ToLower(df["MDL"]) == devMdl {
				score = 2
			}
		}
		if score == 0 && devName != "" && d.MakeAndModel != "" &&
			strings.HasPrefix(normalizeModel(d.MakeAndModel), devName) {
			score = 1
		}
		if score == 0 {
			continue
		}
		if d.UserAdded {
			score += 32
		}
		if strings.HasPrefix(strings.ToLower(d.Language), "en") {
			score += 4
		}
		if score > bestScore {
			best, bestScore = d.Name, score
		}
	}

	if best != "" {
		return best, nil
	}
	if x.generic != "" {
		log.Debugf("no driver matched device ID %q; using %s", deviceID, x.generic)
		return x.generic, nil
	}
	return "", ErrNoDriver
}
