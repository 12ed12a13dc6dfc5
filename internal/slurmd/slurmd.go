// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package slurmd handles the slurmd relation, which exists to exercise
// the relation plumbing between controllers and compute nodes.
package slurmd

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/relation"
)

var logger = loggo.GetLogger("slurmctld.slurmd")

// Config holds the dependencies of a Relation.
type Config struct {
	RelationName string
	Runtime      relation.Runtime

	// Hostname is published in the local unit bucket.
	Hostname string
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.RelationName == "" {
		return errors.NotValidf("empty RelationName")
	}
	if c.Runtime == nil {
		return errors.NotValidf("nil Runtime")
	}
	if c.Hostname == "" {
		return errors.NotValidf("empty Hostname")
	}
	return nil
}

// Relation handles the lifecycle hooks of the slurmd relation.
type Relation struct {
	cfg Config
}

// New returns a Relation for the given config.
func New(cfg Config) (*Relation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Relation{cfg: cfg}, nil
}

// RelationName returns the name of the relation handled.
func (r *Relation) RelationName() string {
	return r.cfg.RelationName
}

// RelationCreated publishes the local host name.
func (r *Relation) RelationCreated(info hook.Info) (hook.Outcome, error) {
	err := r.cfg.Runtime.SetLocalUnitSettings(info.RelationKey(), relation.Settings{
		relation.KeyHostname: r.cfg.Hostname,
	})
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}
	logger.Infof("published hostname %q on %s", r.cfg.Hostname, info.RelationKey())
	return hook.Applied, nil
}

// RelationJoined logs the hostname the remote unit published.
func (r *Relation) RelationJoined(info hook.Info) (hook.Outcome, error) {
	settings, err := r.cfg.Runtime.UnitSettings(info.RelationKey(), info.RemoteUnit)
	if err != nil {
		logger.Warningf("cannot read settings of %s: %v", info.RemoteUnit, err)
		return hook.Applied, nil
	}
	logger.Infof("%s joined %s with hostname %q", info.RemoteUnit, info.RelationKey(), settings.Get(relation.KeyHostname))
	return hook.Applied, nil
}

// RelationChanged logs.
func (r *Relation) RelationChanged(info hook.Info) (hook.Outcome, error) {
	logger.Debugf("%s", info)
	return hook.Applied, nil
}

// RelationDeparted logs.
func (r *Relation) RelationDeparted(info hook.Info) (hook.Outcome, error) {
	logger.Infof("%s departed %s", info.RemoteUnit, info.RelationKey())
	return hook.Applied, nil
}

// RelationBroken logs.
func (r *Relation) RelationBroken(info hook.Info) (hook.Outcome, error) {
	logger.Infof("%s broken", info.RelationKey())
	return hook.Applied, nil
}
