// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dispatch runs the handler for a hook, after giving the hooks
// deferred by earlier invocations another go.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/mutex/v2"

	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/relation"
	"github.com/juju/charm-slurmctld/internal/unitstate"
)

var logger = loggo.GetLogger("slurmctld.dispatch")

const (
	defaultLockDelay   = 250 * time.Millisecond
	defaultLockTimeout = 5 * time.Minute
)

// maxLockName is the longest name a machine lock may have.
const maxLockName = 40

// LockName returns the name of the lock serialising the dispatches of
// unitName, eg "slurmctld-0" for "slurmctld/0".
func LockName(unitName string) string {
	name := strings.ReplaceAll(unitName, "/", "-")
	if len(name) > maxLockName {
		name = name[len(name)-maxLockName:]
		name = strings.TrimLeft(name, "-0123456789")
	}
	if name == "" {
		return "slurmctld-dispatch"
	}
	return name
}

// HandlerFunc handles a single hook.
type HandlerFunc func(hook.Info) (hook.Outcome, error)

// RelationHandler handles the lifecycle hooks of one relation name.
type RelationHandler interface {
	RelationName() string
	RelationCreated(hook.Info) (hook.Outcome, error)
	RelationJoined(hook.Info) (hook.Outcome, error)
	RelationChanged(hook.Info) (hook.Outcome, error)
	RelationDeparted(hook.Info) (hook.Outcome, error)
	RelationBroken(hook.Info) (hook.Outcome, error)
}

// FatalError is returned by Dispatch when a handler found the shared
// state in a condition it cannot recover from.
type FatalError struct {
	Hook hook.Info
	Err  error
}

// Error is part of the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Hook, e.Err)
}

// Unwrap returns the handler error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is, or wraps, a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Config holds the dependencies of a Dispatcher.
type Config struct {
	// Relations handle the hooks of the relations they are named for.
	Relations []RelationHandler

	// Hooks handle the hooks that are not relation hooks. Kinds without
	// a handler are no-ops.
	Hooks map[hook.Kind]HandlerFunc

	// Runtime is used to drop deferred hooks of relations that are gone.
	Runtime relation.Relations

	Store *unitstate.Store
	State *unitstate.State

	// LockName names the machine lock serialising dispatches of the
	// unit.
	LockName    string
	Clock       clock.Clock
	LockDelay   time.Duration
	LockTimeout time.Duration

	// AcquireLock defaults to mutex.Acquire.
	AcquireLock func(mutex.Spec) (mutex.Releaser, error)
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Runtime == nil {
		return errors.NotValidf("nil Runtime")
	}
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.State == nil {
		return errors.NotValidf("nil State")
	}
	if c.LockName == "" {
		return errors.NotValidf("empty LockName")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	seen := make(map[string]bool)
	for _, r := range c.Relations {
		if seen[r.RelationName()] {
			return errors.NotValidf("duplicate handler for relation %q", r.RelationName())
		}
		seen[r.RelationName()] = true
	}
	return nil
}

// Dispatcher runs hooks one at a time.
type Dispatcher struct {
	cfg       Config
	relations map[string]RelationHandler
}

// New returns a Dispatcher for the given config.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.AcquireLock == nil {
		cfg.AcquireLock = mutex.Acquire
	}
	if cfg.LockDelay == 0 {
		cfg.LockDelay = defaultLockDelay
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	relations := make(map[string]RelationHandler)
	for _, r := range cfg.Relations {
		relations[r.RelationName()] = r
	}
	return &Dispatcher{cfg: cfg, relations: relations}, nil
}

// Dispatch runs the hooks deferred earlier, oldest first, then info.
// Deferred hooks that apply are dropped from the queue; info is queued
// if it defers. The unit state is saved unless a handler fails.
func (d *Dispatcher) Dispatch(info hook.Info) error {
	releaser, err := d.cfg.AcquireLock(mutex.Spec{
		Name:    d.cfg.LockName,
		Clock:   d.cfg.Clock,
		Delay:   d.cfg.LockDelay,
		Timeout: d.cfg.LockTimeout,
	})
	if err != nil {
		return errors.Annotatef(err, "acquiring lock %q", d.cfg.LockName)
	}
	defer releaser.Release()

	st := d.cfg.State
	for _, queued := range append([]hook.Info(nil), st.Deferred...) {
		if queued == info {
			continue
		}
		if err := d.redeliver(queued); err != nil {
			return errors.Trace(err)
		}
	}

	outcome, err := d.run(info)
	if err != nil {
		return errors.Trace(err)
	}
	switch outcome {
	case hook.Deferred:
		if st.Defer(info) {
			logger.Infof("deferred %s", info)
		}
	case hook.Applied:
		st.Undefer(info)
	}
	return errors.Trace(d.cfg.Store.Save(st))
}

func (d *Dispatcher) redeliver(info hook.Info) error {
	st := d.cfg.State
	if info.Kind.IsRelation() {
		keys, err := d.cfg.Runtime.RelationKeys(info.RelationName)
		if err != nil {
			return errors.Trace(err)
		}
		if !contains(keys, info.RelationKey()) {
			logger.Infof("dropping deferred %s, relation is gone", info)
			st.Undefer(info)
			return nil
		}
	}
	logger.Debugf("redelivering %s", info)
	outcome, err := d.run(info)
	if err != nil {
		return errors.Annotatef(err, "redelivering %s", info)
	}
	if outcome == hook.Applied {
		st.Undefer(info)
	}
	return nil
}

// run calls the handler for info, turning a Fatal outcome into a
// FatalError.
func (d *Dispatcher) run(info hook.Info) (hook.Outcome, error) {
	handler := d.handler(info)
	if handler == nil {
		logger.Debugf("nothing to do for %s", info)
		return hook.Applied, nil
	}
	outcome, err := handler(info)
	if outcome == hook.Fatal {
		if err == nil {
			err = errors.New("unknown failure")
		}
		return hook.Fatal, &FatalError{Hook: info, Err: err}
	}
	if err != nil {
		return outcome, errors.Annotatef(err, "running %s", info.Name())
	}
	return outcome, nil
}

func (d *Dispatcher) handler(info hook.Info) HandlerFunc {
	if !info.Kind.IsRelation() {
		return d.cfg.Hooks[info.Kind]
	}
	r, ok := d.relations[info.RelationName]
	if !ok {
		logger.Warningf("no handler for relation %q", info.RelationName)
		return nil
	}
	switch info.Kind {
	case hook.RelationCreated:
		return r.RelationCreated
	case hook.RelationJoined:
		return r.RelationJoined
	case hook.RelationChanged:
		return r.RelationChanged
	case hook.RelationDeparted:
		return r.RelationDeparted
	case hook.RelationBroken:
		return r.RelationBroken
	}
	return nil
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
