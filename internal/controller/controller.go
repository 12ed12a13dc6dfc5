// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package controller is the local slurmctld as seen by the charm: its
// identity on the network and the endpoints of the controllers it
// should work with.
package controller

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charm-slurmctld/internal/election"
	"github.com/juju/charm-slurmctld/internal/unitstate"
)

var logger = loggo.GetLogger("slurmctld.controller")

// TypeActive is the controller type a unit takes on once it has
// published a bundle as the active controller.
const TypeActive = "active"

// Config holds the dependencies of a Controller.
type Config struct {
	UnitName string
	Port     string

	// Hostname returns the host name of the machine. Defaults to
	// os.Hostname.
	Hostname func() (string, error)

	// Store persists State. State is saved after every change.
	Store *unitstate.Store
	State *unitstate.State
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.UnitName == "" {
		return errors.NotValidf("empty UnitName")
	}
	if c.Port == "" {
		return errors.NotValidf("empty Port")
	}
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.State == nil {
		return errors.NotValidf("nil State")
	}
	return nil
}

// Controller implements election.Controller on top of the unit state.
type Controller struct {
	cfg       Config
	hostname  string
	observers []func(election.EndpointBundle)
}

var _ election.Controller = (*Controller)(nil)

// New returns a Controller for the given config. The host name is looked
// up once.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Hostname == nil {
		cfg.Hostname = os.Hostname
	}
	hostname, err := cfg.Hostname()
	if err != nil {
		return nil, errors.Annotate(err, "looking up hostname")
	}
	return &Controller{
		cfg:      cfg,
		hostname: ShortHostname(hostname),
	}, nil
}

// ShortHostname strips the domain from a host name.
func ShortHostname(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i > 0 {
		return hostname[:i]
	}
	return hostname
}

// UnitName returns the name of the local unit.
func (c *Controller) UnitName() string {
	return c.cfg.UnitName
}

// Hostname returns the short host name of the local machine.
func (c *Controller) Hostname() string {
	return c.hostname
}

// Port returns the port slurmctld listens on.
func (c *Controller) Port() string {
	return c.cfg.Port
}

// EndpointBundle returns the cached bundle. ok is false if none has been
// published yet.
func (c *Controller) EndpointBundle() (bundle election.EndpointBundle, ok bool, err error) {
	info := c.cfg.State.SlurmctldInfo
	if info == "" {
		return election.EndpointBundle{}, false, nil
	}
	if err := json.Unmarshal([]byte(info), &bundle); err != nil {
		return election.EndpointBundle{}, false, errors.Annotatef(err, "decoding %s", unitstate.KeySlurmctldInfo)
	}
	return bundle, true, nil
}

// SetEndpointBundle overwrites the cached bundle.
func (c *Controller) SetEndpointBundle(bundle election.EndpointBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return errors.Trace(err)
	}
	c.cfg.State.SlurmctldInfo = string(data)
	return errors.Trace(c.cfg.Store.Save(c.cfg.State))
}

// ControllerType returns the controller type tag, or "" if none is set.
func (c *Controller) ControllerType() string {
	return c.cfg.State.ControllerType
}

// Observe registers f to be called with every bundle passed to
// PeerAvailable.
func (c *Controller) Observe(f func(election.EndpointBundle)) {
	c.observers = append(c.observers, f)
}

// PeerAvailable is part of the election.Controller interface. It caches
// the bundle, tags the unit as the active controller and notifies the
// observers.
func (c *Controller) PeerAvailable(bundle election.EndpointBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return errors.Trace(err)
	}
	c.cfg.State.SlurmctldInfo = string(data)
	c.cfg.State.ControllerType = TypeActive
	if err := c.cfg.Store.Save(c.cfg.State); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("peer available: active %s:%s, backup %q",
		bundle.ActiveHostname, bundle.ActivePort, bundle.BackupHostname)
	for _, f := range c.observers {
		f(bundle)
	}
	return nil
}

// ObserveRole is part of the election.Controller interface. Non-leader
// units record the role the leader assigned them as their controller
// type.
func (c *Controller) ObserveRole(role string) error {
	if c.cfg.State.ControllerType == role {
		return nil
	}
	logger.Infof("%s controller role changed from %q to %q", c.cfg.UnitName, c.cfg.State.ControllerType, role)
	c.cfg.State.ControllerType = role
	return errors.Trace(c.cfg.Store.Save(c.cfg.State))
}
