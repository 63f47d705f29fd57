/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/urfave/cli"
	"launchpad.net/go-xdg"
)

const defaultConfigFilename = "ps-printer-app.config.json"

// QueueConfig declares one print queue. DriverName may be a driver from
// the index or "auto" to select by the device's ID string.
type QueueConfig struct {
	Name       string `json:"name"`
	Info       string `json:"info,omitempty"`
	Location   string `json:"location,omitempty"`
	DeviceURI  string `json:"device_uri"`
	DriverName string `json:"driver_name"`
	DeviceID   string `json:"device_id,omitempty"`
}

type Config struct {
	// Minimum severity of log messages: fatal, error, warning, info, debug.
	LogLevel string `json:"log_level"`

	// Mirror log messages to the systemd journal.
	LogToJournal bool `json:"log_to_journal,omitempty"`

	// Directory scanned for bundled PPD files.
	PPDDir string `json:"ppd_dir,omitempty"`

	// Directory scanned for user-added PPD files; these outrank bundled
	// drivers during auto-selection.
	UserPPDDir string `json:"user_ppd_dir,omitempty"`

	// Directory for per-queue persisted attributes and spooled output.
	StateDir string `json:"state_dir,omitempty"`

	// Command used to convert PDF job input to PostScript. The first
	// element is the executable; input arrives on stdin, output leaves
	// on stdout.
	PDFToPSCommand []string `json:"pdf_to_ps_command,omitempty"`

	// How many times to poll the device for a reply to one embedded PPD
	// query, and how long to wait between polls (a duration string).
	// 100 x 100ms gives the 10 second budget the device channel needs.
	DeviceQueryAttempts int    `json:"device_query_attempts,omitempty"`
	DeviceQueryInterval string `json:"device_query_interval,omitempty"`

	// Print queues to create at startup.
	Queues []QueueConfig `json:"queues,omitempty"`
}

var DefaultConfig = Config{
	LogLevel:            "info",
	PPDDir:              "/usr/share/ppd",
	UserPPDDir:          "/var/lib/ps-printer-app/ppd",
	StateDir:            "/var/lib/ps-printer-app",
	PDFToPSCommand:      []string{"pdftops", "-level2", "-origpagesizes", "-", "-"},
	DeviceQueryAttempts: 100,
	DeviceQueryInterval: "100ms",
}

// ConfigFilenameFlag is the flag every binary accepts to name the config file.
var ConfigFilenameFlag = cli.StringFlag{
	Name:  "config-filename",
	Usage: "Connector config filename",
	Value: defaultConfigFilename,
}

// getConfigFilename gets the absolute filename of the config file
// specified by the config-filename flag, and whether it exists.
//
// If the (relative or absolute) filename exists, then it is returned.
// If it exists in a valid XDG path, then that path is returned.
// If neither exists, the (relative or absolute) filename is returned.
func getConfigFilename(context *cli.Context) (string, bool) {
	cf := context.GlobalString("config-filename")

	if filepath.IsAbs(cf) {
		_, err := os.Stat(cf)
		return cf, err == nil
	}

	absCF, err := filepath.Abs(cf)
	if err != nil {
		// syscall failure; treat as if the file doesn't exist.
		return cf, false
	}
	if _, err := os.Stat(absCF); err == nil {
		return absCF, true
	}

	if xdgCF, err := xdg.Config.Find(cf); err == nil {
		return xdgCF, true
	}

	return absCF, false
}

// GetConfig reads the config file named by the config-filename flag.
// Missing file yields DefaultConfig, so a bare binary still starts.
func GetConfig(context *cli.Context) (*Config, string, error) {
	cf, exists := getConfigFilename(context)
	if !exists {
		c := DefaultConfig
		return &c, "", nil
	}

	b, err := ioutil.ReadFile(cf)
	if err != nil {
		return nil, "", err
	}

	c := DefaultConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", err
	}
	return &c, cf, nil
}

// ToFile writes this config to filename, or next to the working
// directory under the default name when filename is empty.
func (c *Config) ToFile(filename string) (string, error) {
	if filename == "" {
		filename = defaultConfigFilename
	}

	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	if err := ioutil.WriteFile(filename, b, 0600); err != nil {
		return "", err
	}
	return filename, nil
}
