// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hooktools provides a client for the hook tools the unit agent
// makes available to a charm while a hook is running.
package hooktools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("slurmctld.hooktools")

const (
	spawnAttempts = 3
	spawnDelay    = 100 * time.Millisecond
)

// CommandRunner allows to run commands on the underlying system.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// DefaultRunner runs hook tools through the system shell.
var DefaultRunner CommandRunner = defaultRunner{}

// ToolError is returned when a hook tool exits with a non-zero status.
type ToolError struct {
	Tool   string
	Code   int
	Stderr string
}

// Error is part of the error interface.
func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited %d", e.Tool, e.Code)
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.Code, e.Stderr)
}

// Config holds the dependencies of a Client.
type Config struct {
	Runner CommandRunner
	Clock  clock.Clock

	// WorkingDir is the directory the tools are run from; normally
	// the charm directory.
	WorkingDir string
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Client runs hook tools and decodes their output.
type Client struct {
	runner     CommandRunner
	clock      clock.Clock
	workingDir string
}

// NewClient returns a Client for the given config.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Client{
		runner:     cfg.Runner,
		clock:      cfg.Clock,
		workingDir: cfg.WorkingDir,
	}, nil
}

func (c *Client) run(tool string, args ...string) ([]byte, error) {
	command := shellquote.Join(append([]string{tool}, args...)...)
	params := exec.RunParams{
		Commands:   command,
		WorkingDir: c.workingDir,
	}

	var (
		resp    *exec.ExecResponse
		lastErr error
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			resp, lastErr = c.runner.RunCommands(params)
			return lastErr
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("starting %s failed (attempt %d): %v", tool, attempt, err)
		},
		Attempts: spawnAttempts,
		Delay:    spawnDelay,
		Clock:    c.clock,
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, errors.Annotatef(lastErr, "running %s", tool)
	}
	if resp.Code != 0 {
		return nil, &ToolError{
			Tool:   tool,
			Code:   resp.Code,
			Stderr: strings.TrimSpace(string(resp.Stderr)),
		}
	}
	return resp.Stdout, nil
}

func (c *Client) runJSON(out interface{}, tool string, args ...string) error {
	stdout, err := c.run(tool, append(args, "--format=json")...)
	if err != nil {
		return errors.Trace(err)
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return errors.Annotatef(err, "decoding %s output", tool)
	}
	return nil
}

// IsLeader reports whether the local unit is the application leader.
func (c *Client) IsLeader() (bool, error) {
	var leader bool
	if err := c.runJSON(&leader, "is-leader"); err != nil {
		return false, errors.Annotatef(err, "leadership status unknown")
	}
	return leader, nil
}

// RelationIds returns the keys ("<name>:<id>") of all relations with the
// given name.
func (c *Client) RelationIds(name string) ([]string, error) {
	var ids []string
	if err := c.runJSON(&ids, "relation-ids", name); err != nil {
		return nil, errors.Trace(err)
	}
	return ids, nil
}

// RelationList returns the remote units participating in the relation, in
// the order reported by the unit agent.
func (c *Client) RelationList(relationKey string) ([]string, error) {
	var units []string
	if err := c.runJSON(&units, "relation-list", "-r", relationKey); err != nil {
		return nil, errors.Trace(err)
	}
	return units, nil
}

// RelationGet returns the settings written to the relation by the named
// unit, or by the named application when app is true.
func (c *Client) RelationGet(relationKey, name string, app bool) (map[string]string, error) {
	args := []string{"-r", relationKey}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "-", name)

	var settings map[string]string
	if err := c.runJSON(&settings, "relation-get", args...); err != nil {
		return nil, errors.Trace(err)
	}
	if settings == nil {
		settings = make(map[string]string)
	}
	return settings, nil
}

// RelationSet writes settings to the local unit's relation bucket, or to
// the application bucket when app is true. An empty value deletes a key.
func (c *Client) RelationSet(relationKey string, app bool, settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}
	args := []string{"-r", relationKey}
	if app {
		args = append(args, "--app")
	}
	args = append(args, keyValues(settings)...)
	_, err := c.run("relation-set", args...)
	return errors.Trace(err)
}

// ConfigGet returns the charm configuration of the application.
func (c *Client) ConfigGet() (map[string]interface{}, error) {
	var config map[string]interface{}
	if err := c.runJSON(&config, "config-get"); err != nil {
		return nil, errors.Trace(err)
	}
	if config == nil {
		config = make(map[string]interface{})
	}
	return config, nil
}

// StateGet returns the unit's persisted key/value state.
func (c *Client) StateGet() (map[string]string, error) {
	var state map[string]string
	if err := c.runJSON(&state, "state-get"); err != nil {
		return nil, errors.Trace(err)
	}
	if state == nil {
		state = make(map[string]string)
	}
	return state, nil
}

// StateSet persists the given key/values for the unit.
func (c *Client) StateSet(state map[string]string) error {
	if len(state) == 0 {
		return nil
	}
	_, err := c.run("state-set", keyValues(state)...)
	return errors.Trace(err)
}

// JujuLog writes a message to the unit's log in the controller. It does
// not log or retry itself, so it can back a loggo writer.
func (c *Client) JujuLog(level loggo.Level, message string) error {
	command := shellquote.Join("juju-log", "-l", level.String(), "--", message)
	resp, err := c.runner.RunCommands(exec.RunParams{
		Commands:   command,
		WorkingDir: c.workingDir,
	})
	if err != nil {
		return errors.Trace(err)
	}
	if resp.Code != 0 {
		return &ToolError{Tool: "juju-log", Code: resp.Code, Stderr: strings.TrimSpace(string(resp.Stderr))}
	}
	return nil
}

func keyValues(settings map[string]string) []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, len(keys))
	for i, k := range keys {
		args[i] = k + "=" + settings[k]
	}
	return args
}
