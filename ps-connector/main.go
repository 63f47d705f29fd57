/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// The ps-connector command creates the configured print queues, compiles
// their PPD capabilities, and keeps running until interrupted. It also
// provides small maintenance commands: init-config and print-test-page.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OpenPrinting/ps-printer-app/caps"
	"github.com/OpenPrinting/ps-printer-app/driver"
	"github.com/OpenPrinting/ps-printer-app/lib"
	"github.com/OpenPrinting/ps-printer-app/log"
	"github.com/OpenPrinting/ps-printer-app/pipeline"
	"github.com/OpenPrinting/ps-printer-app/ticket"
	"github.com/coreos/go-systemd/journal"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "ps-connector"
	app.Usage = "PostScript printer application connector"
	app.Flags = []cli.Flag{
		lib.ConfigFilenameFlag,
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Override the configured log level (fatal, error, warning, info, debug)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "init-config",
			Usage:  "Write a default config file",
			Action: initConfig,
		},
		{
			Name:  "print-test-page",
			Usage: "Send a PostScript test page through a configured queue",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "queue",
					Usage: "Queue name; defaults to the first configured queue",
				},
			},
			Action: printTestPage,
		},
	}
	app.Action = func(context *cli.Context) {
		os.Exit(connector(context))
	}
	app.RunAndExitOnError()
}

func initConfig(context *cli.Context) error {
	filename, err := lib.DefaultConfig.ToFile(context.GlobalString("config-filename"))
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", filename)
	return nil
}

func connector(context *cli.Context) int {
	config, configFilename, err := lib.GetConfig(context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config file: %s\n", err)
		return 1
	}
	if configFilename == "" {
		fmt.Println("No config file found, using defaults")
	} else {
		fmt.Printf("Using config file %s\n", configFilename)
	}

	if err := setupLogging(context, config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log.Info("ps-connector starting")

	index := buildDriverIndex(config)
	store, err := lib.NewAttributeStore(config.StateDir)
	if err != nil {
		log.Fatalf("Failed to open attribute store: %s", err)
		return 1
	}

	var queues []*lib.Queue
	for i := range config.Queues {
		queue, err := startQueue(&config.Queues[i], index, store)
		if err != nil {
			log.ErrorQueuef(config.Queues[i].Name, "failed to start: %s", err)
			continue
		}
		pollDevice(queue, config)
		queues = append(queues, queue)
	}

	fmt.Printf("ps-connector ready: %d of %d queues started, %d drivers indexed\n",
		len(queues), len(config.Queues), len(index.Drivers()))
	log.Infof("ready with %d queues", len(queues))

	waitIndefinitely()

	log.Info("shutting down")
	for _, queue := range queues {
		persistInstallables(queue, store)
	}
	return 0
}

func setupLogging(context *cli.Context, config *lib.Config) error {
	levelName := config.LogLevel
	if override := context.GlobalString("log-level"); override != "" {
		levelName = override
	}
	level, ok := log.LevelFromString(levelName)
	if !ok {
		return fmt.Errorf("Log level %q is not recognized", levelName)
	}
	log.SetLevel(level)
	if config.LogToJournal && journal.Enabled() {
		log.SetJournalEnabled(true)
	}
	return nil
}

// buildDriverIndex scans the bundled and user PPD directories. A missing
// directory is not fatal; the index may still hold the other one.
func buildDriverIndex(config *lib.Config) *driver.Index {
	index := driver.NewIndex()
	if config.PPDDir != "" {
		if err := index.ScanDir(config.PPDDir, false); err != nil {
			log.Warningf("failed to scan PPD directory %s: %s", config.PPDDir, err)
		}
	}
	if config.UserPPDDir != "" {
		if err := index.ScanDir(config.UserPPDDir, true); err != nil {
			log.Warningf("failed to scan user PPD directory %s: %s", config.UserPPDDir, err)
		}
	}
	return index
}

// startQueue resolves the queue's driver, compiles its capabilities, and
// restores the persisted accessory configuration.
func startQueue(qc *lib.QueueConfig, index *driver.Index, store *lib.AttributeStore) (*lib.Queue, error) {
	driverName := qc.DriverName
	if driverName == "" || driverName == "auto" {
		selected, err := index.SelectDriver(qc.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("driver auto-selection failed: %s", err)
		}
		driverName = selected
		log.InfoQueuef(qc.Name, "auto-selected driver %s", driverName)
	}
	info, ok := index.Find(driverName)
	if !ok {
		return nil, fmt.Errorf("driver %q not in index", driverName)
	}

	state, err := driver.Init(qc.Name, info.PPDPath)
	if err != nil {
		return nil, err
	}

	if blob, exists, err := store.Get(qc.Name, caps.InstallableBlobKey); err != nil {
		log.WarningQueuef(qc.Name, "failed to read persisted accessories: %s", err)
	} else if exists && blob != state.InstallableBlob() {
		if err := state.ApplyInstallableBlob(blob); err != nil {
			log.WarningQueuef(qc.Name, "persisted accessory state rejected: %s", err)
		} else if err := state.EnsureFresh(); err != nil {
			return nil, err
		}
	}

	log.InfoQueuef(qc.Name, "started with driver %s", driverName)
	return &lib.Queue{
		Name:        qc.Name,
		Info:        qc.Info,
		Location:    qc.Location,
		DeviceURI:   qc.DeviceURI,
		DriverName:  driverName,
		Status:      lib.QueueIdle,
		DriverState: state,
	}, nil
}

// pollDevice asks the printer for its installed accessories and current
// option defaults using the PPD's query invocations. An unreachable
// device is not an error; the queue runs on the PPD defaults.
func pollDevice(queue *lib.Queue, config *lib.Config) {
	state := queue.DriverState.(*driver.State)
	if !state.Record.InstallablePollable && !state.Record.DefaultsPollable {
		return
	}

	device, err := lib.OpenDevice(queue.DeviceURI)
	if err != nil {
		log.DebugQueuef(queue.Name, "device not reachable for polling: %s", err)
		return
	}
	defer device.Close()

	attempts := config.DeviceQueryAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval, err := time.ParseDuration(config.DeviceQueryInterval)
	if err != nil || interval <= 0 {
		interval = 100 * time.Millisecond
	}

	queue.LockConfig()
	defer queue.UnlockConfig()
	if state.Record.InstallablePollable {
		result := state.PollInstallable(device, attempts, interval)
		log.InfoQueuef(queue.Name, "accessory poll: %d queried, %d updated, %d timeouts",
			result.Queried, result.Updated, result.Timeouts)
	}
	if state.Record.DefaultsPollable {
		result := state.PollDefaults(device, attempts, interval)
		log.InfoQueuef(queue.Name, "defaults poll: %d queried, %d updated, %d timeouts",
			result.Queried, result.Updated, result.Timeouts)
	}
	if err := state.EnsureFresh(); err != nil {
		log.WarningQueuef(queue.Name, "capability refresh failed: %s", err)
	}
}

func persistInstallables(queue *lib.Queue, store *lib.AttributeStore) {
	state, ok := queue.DriverState.(*driver.State)
	if !ok {
		return
	}
	if err := store.Set(queue.Name, caps.InstallableBlobKey, state.InstallableBlob()); err != nil {
		log.WarningQueuef(queue.Name, "failed to persist accessories: %s", err)
	}
}

func printTestPage(context *cli.Context) error {
	config, _, err := lib.GetConfig(context)
	if err != nil {
		return err
	}
	if err := setupLogging(context, config); err != nil {
		return err
	}
	if len(config.Queues) == 0 {
		return fmt.Errorf("no queues configured")
	}

	qc := &config.Queues[0]
	if name := context.String("queue"); name != "" {
		qc = nil
		for i := range config.Queues {
			if config.Queues[i].Name == name {
				qc = &config.Queues[i]
				break
			}
		}
		if qc == nil {
			return fmt.Errorf("queue %q is not configured", name)
		}
	}

	index := buildDriverIndex(config)
	store, err := lib.NewAttributeStore(config.StateDir)
	if err != nil {
		return err
	}
	queue, err := startQueue(qc, index, store)
	if err != nil {
		return err
	}
	state := queue.DriverState.(*driver.State)

	job := lib.NewJob(queue.Name, "Test Page", "application/postscript")
	queue.LockConfig()
	opts, err := ticket.Resolve(&ticket.Ticket{}, state.Record, state.Cache, state.PPD)
	queue.UnlockConfig()
	if err != nil {
		return err
	}
	job.Options = opts

	device, err := lib.OpenDevice(queue.DeviceURI)
	if err != nil {
		return fmt.Errorf("cannot open device %s: %s", queue.DeviceURI, err)
	}
	defer device.Close()

	start := time.Now()
	err = pipeline.Run(queue.Name, job, strings.NewReader(testPage), []pipeline.Stage{
		&pipeline.PSPassThrough{PPD: state.PPD, Opts: opts},
		&pipeline.DeviceRelay{Device: device},
	})
	if err != nil {
		return fmt.Errorf("test page failed: %s", err)
	}
	fmt.Printf("Printed %d page(s) in %s\n",
		job.ImpressionsCompleted(), time.Since(start).Round(time.Millisecond))
	return nil
}

// testPage is a self-contained one-page document: a frame, a title, and
// a ruler so margin problems are visible on paper.
const testPage = `%!PS-Adobe-3.0
%%Title: ps-connector test page
%%Pages: 1
%%EndComments
%%Page: (1) 1
gsave
1 setlinewidth
18 18 576 756 rectstroke
/Helvetica findfont 24 scalefont setfont
90 700 moveto (ps-connector test page) show
/Helvetica findfont 10 scalefont setfont
90 680 moveto (If this frame is clipped, adjust the media margins.) show
0 36 720 {
    dup 36 exch moveto 576 exch lineto stroke
} for
grestore
showpage
%%Trailer
%%EOF
`

func waitIndefinitely() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch

	go func() {
		// In case the process doesn't die quickly, wait for a second SIGINT.
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		<-ch
		fmt.Println("Second interrupt received; exiting unsafely")
		os.Exit(1)
	}()
}
