// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logging sets up loggo for a hook invocation.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

// WriterName is the name the juju-log writer is registered under.
const WriterName = "juju-log"

// JujuLogger sends a message to the unit agent's log.
type JujuLogger interface {
	JujuLog(level loggo.Level, message string) error
}

// Writer is a loggo.Writer forwarding entries to juju-log. Entries from
// the modules in Skip are dropped; the hook tools client logs through
// loggo itself.
type Writer struct {
	tools JujuLogger
	skip  []string
}

// NewWriter returns a Writer sending entries to tools, except those of
// the given modules and their children.
func NewWriter(tools JujuLogger, skip ...string) *Writer {
	return &Writer{tools: tools, skip: skip}
}

// Write is part of the loggo.Writer interface.
func (w *Writer) Write(entry loggo.Entry) {
	for _, module := range w.skip {
		if entry.Module == module || strings.HasPrefix(entry.Module, module+".") {
			return
		}
	}
	// Nowhere left to report a failure to.
	_ = w.tools.JujuLog(entry.Level, fmt.Sprintf("%s %s", entry.Module, entry.Message))
}

// Formatter renders entries for stderr.
func Formatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

// Setup replaces the default writer with one writing to stderr, adds
// forward as the juju-log writer when it is not nil, and configures the
// logger levels.
func Setup(stderr io.Writer, forward loggo.Writer, levels string) error {
	loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(stderr, Formatter))
	if forward != nil {
		_, _ = loggo.RemoveWriter(WriterName)
		if err := loggo.RegisterWriter(WriterName, forward); err != nil {
			return errors.Annotate(err, "registering juju-log writer")
		}
	}
	return errors.Trace(Configure(levels))
}

// Configure sets the logger levels from a specification such as
// "<root>=INFO;slurmctld.election=DEBUG".
func Configure(levels string) error {
	if levels == "" {
		return nil
	}
	if err := loggo.ConfigureLoggers(levels); err != nil {
		return errors.Annotatef(err, "configuring loggers %q", levels)
	}
	return nil
}
