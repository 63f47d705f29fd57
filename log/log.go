/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

// Package log logs to an io.Writer in the same format as CUPS, with an
// optional copy sent to the systemd journal.
package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/journal"
)

const (
	logFormat      = "%c [%s] %s\n"
	logJobFormat   = "%c [%s] [Job %s] %s\n"
	logQueueFormat = "%c [%s] [Queue %s] %s\n"

	dateTimeFormat = "02/Jan/2006:15:04:05 -0700"

	journalJobFormat   = "[Job %s] %s"
	journalQueueFormat = "[Queue %s] %s"
)

// LogLevel represents a subset of the severity levels named by CUPS.
type LogLevel uint8

const (
	FATAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

func (l LogLevel) initial() rune {
	switch l {
	case FATAL:
		return 'X' // "EMERG" in CUPS.
	case ERROR:
		return 'E'
	case WARNING:
		return 'W'
	case INFO:
		return 'I'
	default:
		return 'D'
	}
}

func (l LogLevel) priority() journal.Priority {
	switch l {
	case FATAL:
		return journal.PriCrit
	case ERROR:
		return journal.PriErr
	case WARNING:
		return journal.PriWarning
	case INFO:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func LevelFromString(level string) (LogLevel, bool) {
	switch strings.ToLower(level) {
	case "fatal":
		return FATAL, true
	case "error":
		return ERROR, true
	case "warning":
		return WARNING, true
	case "info":
		return INFO, true
	case "debug":
		return DEBUG, true
	default:
		return 0, false
	}
}

var logger struct {
	writer         io.Writer
	level          LogLevel
	journalEnabled bool
}

func init() {
	logger.writer = os.Stderr
	logger.level = INFO
}

// SetWriter sets the io.Writer to log to. Default is os.Stderr.
func SetWriter(w io.Writer) {
	logger.writer = w
}

// SetLevel sets the minimum severity level to log. Default is INFO.
func SetLevel(l LogLevel) {
	logger.level = l
}

// SetJournalEnabled enables or disables writing to the systemd journal.
// Default is false.
func SetJournalEnabled(b bool) {
	logger.journalEnabled = b
}

func log(level LogLevel, queueID, jobID, format string, args ...interface{}) {
	if level > logger.level {
		return
	}

	dateTime := time.Now().Format(dateTimeFormat)
	var message string
	if format == "" {
		message = fmt.Sprint(args...)
	} else {
		message = fmt.Sprintf(format, args...)
	}

	journalVars := make(map[string]string)
	var journalMessage string
	if queueID != "" {
		fmt.Fprintf(logger.writer, logQueueFormat, level.initial(), dateTime, queueID, message)
		journalVars["QUEUE_ID"] = queueID
		journalMessage = fmt.Sprintf(journalQueueFormat, queueID, message)
	} else if jobID != "" {
		fmt.Fprintf(logger.writer, logJobFormat, level.initial(), dateTime, jobID, message)
		journalVars["JOB_ID"] = jobID
		journalMessage = fmt.Sprintf(journalJobFormat, jobID, message)
	} else {
		fmt.Fprintf(logger.writer, logFormat, level.initial(), dateTime, message)
		journalMessage = message
	}

	if logger.journalEnabled {
		pc := make([]uintptr, 1)
		runtime.Callers(3, pc)
		f := runtime.FuncForPC(pc[0])
		journalVars["CODE_FUNC"] = f.Name()
		file, line := f.FileLine(pc[0])
		journalVars["CODE_FILE"] = file
		journalVars["CODE_LINE"] = strconv.Itoa(line)
		journal.Send(journalMessage, level.priority(), journalVars)
	}
}

func Fatal(args ...interface{})                           { log(FATAL, "", "", "", args...) }
func Fatalf(format string, args ...interface{})           { log(FATAL, "", "", format, args...) }
func FatalJob(jobID string, args ...interface{})          { log(FATAL, "", jobID, "", args...) }
func FatalJobf(jobID, format string, args ...interface{}) { log(FATAL, "", jobID, format, args...) }
func FatalQueue(queueID string, args ...interface{})      { log(FATAL, queueID, "", "", args...) }
func FatalQueuef(queueID, format string, args ...interface{}) {
	log(FATAL, queueID, "", format, args...)
}

func Error(args ...interface{})                           { log(ERROR, "", "", "", args...) }
func Errorf(format string, args ...interface{})           { log(ERROR, "", "", format, args...) }
func ErrorJob(jobID string, args ...interface{})          { log(ERROR, "", jobID, "", args...) }
func ErrorJobf(jobID, format string, args ...interface{}) { log(ERROR, "", jobID, format, args...) }
func ErrorQueue(queueID string, args ...interface{})      { log(ERROR, queueID, "", "", args...) }
func ErrorQueuef(queueID, format string, args ...interface{}) {
	log(ERROR, queueID, "", format, args...)
}

func Warning(args ...interface{})                  { log(WARNING, "", "", "", args...) }
func Warningf(format string, args ...interface{})  { log(WARNING, "", "", format, args...) }
func WarningJob(jobID string, args ...interface{}) { log(WARNING, "", jobID, "", args...) }
func WarningJobf(jobID, format string, args ...interface{}) {
	log(WARNING, "", jobID, format, args...)
}
func WarningQueue(queueID string, args ...interface{}) { log(WARNING, queueID, "", "", args...) }
func WarningQueuef(queueID, format string, args ...interface{}) {
	log(WARNING, queueID, "", format, args...)
}

func Info(args ...interface{})                           { log(INFO, "", "", "", args...) }
func Infof(format string, args ...interface{})           { log(INFO, "", "", format, args...) }
func InfoJob(jobID string, args ...interface{})          { log(INFO, "", jobID, "", args...) }
func InfoJobf(jobID, format string, args ...interface{}) { log(INFO, "", jobID, format, args...) }
func InfoQueue(queueID string, args ...interface{})      { log(INFO, queueID, "", "", args...) }
func InfoQueuef(queueID, format string, args ...interface{}) {
	log(INFO, queueID, "", format, args...)
}

func Debug(args ...interface{})                           { log(DEBUG, "", "", "", args...) }
func Debugf(format string, args ...interface{})           { log(DEBUG, "", "", format, args...) }
func DebugJob(jobID string, args ...interface{})          { log(DEBUG, "", jobID, "", args...) }
func DebugJobf(jobID, format string, args ...interface{}) { log(DEBUG, "", jobID, format, args...) }
func DebugQueue(queueID string, args ...interface{})      { log(DEBUG, queueID, "", "", args...) }
func DebugQueuef(queueID, format string, args ...interface{}) {
	log(DEBUG, queueID, "", format, args...)
}
