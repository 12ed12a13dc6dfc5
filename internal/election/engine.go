// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package election keeps the slurmctld controller roles of the units of
// the application consistent with the live peer membership, and
// publishes the endpoints of the active and backup controllers.
package election

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/kr/pretty"

	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/relation"
)

// Controller is the local slurmctld the engine publishes through.
type Controller interface {
	UnitName() string
	Hostname() string
	Port() string

	// PeerAvailable receives the endpoint bundle after every successful
	// reconciliation.
	PeerAvailable(EndpointBundle) error

	// ObserveRole records the role the assignment gives the local unit.
	ObserveRole(role string) error
}

// Config holds the dependencies of an Engine.
type Config struct {
	// RelationName is the name of the peer relation, eg "slurmctld".
	RelationName string

	Runtime    relation.Runtime
	Controller Controller

	// Policy picks a new backup controller. Defaults to PromoteTail.
	Policy PromotionPolicy

	// ReconcileOnDeparture makes relation-departed reconcile like
	// relation-changed does.
	ReconcileOnDeparture bool

	Logger loggo.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.RelationName == "" {
		return errors.NotValidf("empty RelationName")
	}
	if c.Runtime == nil {
		return errors.NotValidf("nil Runtime")
	}
	if c.Controller == nil {
		return errors.NotValidf("nil Controller")
	}
	return nil
}

// Engine handles the lifecycle hooks of the peer relation.
type Engine struct {
	cfg    Config
	logger loggo.Logger
}

// NewEngine returns an Engine for the given config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Policy == nil {
		cfg.Policy = PromoteTail
	}
	logger := cfg.Logger
	if logger == (loggo.Logger{}) {
		logger = loggo.GetLogger("slurmctld.election")
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// RelationName returns the name of the relation the engine handles.
func (e *Engine) RelationName() string {
	return e.cfg.RelationName
}

// RelationCreated publishes the local unit's endpoint, and has the leader
// claim the active role if nobody holds it yet.
func (e *Engine) RelationCreated(info hook.Info) (hook.Outcome, error) {
	ctrl := e.cfg.Controller
	key := info.RelationKey()
	err := e.cfg.Runtime.SetLocalUnitSettings(key, relation.Settings{
		relation.KeyHostname: ctrl.Hostname(),
		relation.KeyPort:     ctrl.Port(),
	})
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}

	leader, err := e.cfg.Runtime.IsLeader()
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}
	if !leader {
		return hook.Applied, nil
	}
	settings, err := e.cfg.Runtime.ApplicationSettings(key)
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}
	if settings.Get(KeyActiveController) != "" {
		return hook.Applied, nil
	}
	initial := Assignment{Active: ctrl.UnitName(), Standby: []string{}}
	e.logger.Infof("%s claiming active controller in %s", ctrl.UnitName(), key)
	if err := e.cfg.Runtime.SetApplicationSettings(key, initial.Settings()); err != nil {
		return hook.Applied, errors.Trace(err)
	}
	return hook.Applied, nil
}

// RelationJoined only logs the membership.
func (e *Engine) RelationJoined(info hook.Info) (hook.Outcome, error) {
	e.logMembers(info, "joined")
	return hook.Applied, nil
}

// RelationDeparted logs the membership. When configured to, it also
// reconciles roles on the leader, so a departed backup is replaced
// without waiting for the next relation-changed.
func (e *Engine) RelationDeparted(info hook.Info) (hook.Outcome, error) {
	e.logMembers(info, "departed")
	if !e.cfg.ReconcileOnDeparture {
		return hook.Applied, nil
	}
	return e.RelationChanged(info)
}

// RelationBroken only logs. Roles are left in place.
func (e *Engine) RelationBroken(info hook.Info) (hook.Outcome, error) {
	e.logger.Debugf("%s broken", info.RelationKey())
	return hook.Applied, nil
}

// LeaderElected reconciles every relation of the engine's name, so the
// new leader takes over the active role.
func (e *Engine) LeaderElected(_ hook.Info) (hook.Outcome, error) {
	keys, err := e.cfg.Runtime.RelationKeys(e.cfg.RelationName)
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}
	if len(keys) == 0 {
		e.logger.Debugf("no %s relation yet", e.cfg.RelationName)
		return hook.Applied, nil
	}
	for _, key := range keys {
		name, id, err := hook.ParseRelationKey(key)
		if err != nil {
			return hook.Applied, errors.Trace(err)
		}
		outcome, err := e.RelationChanged(hook.Info{
			Kind:         hook.RelationChanged,
			RelationName: name,
			RelationId:   id,
		})
		if outcome != hook.Applied || err != nil {
			return outcome, errors.Trace(err)
		}
	}
	return hook.Applied, nil
}

// RelationChanged reconciles the role assignment with the current
// membership and publishes it. Only the leader reconciles; on other units
// it just records the role the leader gave them.
func (e *Engine) RelationChanged(info hook.Info) (hook.Outcome, error) {
	key := info.RelationKey()
	leader, err := e.cfg.Runtime.IsLeader()
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}
	if !leader {
		if err := e.observeRole(key); err != nil {
			e.logger.Warningf("cannot record role from %s: %v", key, err)
		}
		return hook.Applied, nil
	}

	in, err := e.gather(key)
	if err != nil {
		return hook.Applied, errors.Trace(err)
	}
	result := Reconcile(in)
	switch result.Outcome {
	case hook.Fatal:
		e.logger.Criticalf("cannot reconcile %s: %v", key, result.Err)
		return hook.Fatal, result.Err
	case hook.Deferred:
		e.logger.Infof("deferring %s: %v", info, result.Err)
		return hook.Deferred, nil
	}

	if err := result.Assignment.Validate(in.Members); err != nil {
		e.logger.Warningf("reconciled %s to inconsistent roles: %v", key, err)
	}
	e.logger.Tracef("reconciled %s: %# v", key, pretty.Formatter(result.Assignment))

	if err := e.cfg.Runtime.SetApplicationSettings(key, result.Assignment.Settings()); err != nil {
		return hook.Applied, errors.Trace(err)
	}
	if err := e.cfg.Controller.PeerAvailable(result.Bundle); err != nil {
		return hook.Applied, errors.Trace(err)
	}
	e.logger.Infof("%s: active %s, backup %q, standby %v",
		key, result.Assignment.Active, result.Assignment.Backup, result.Assignment.Standby)
	return hook.Applied, nil
}

// gather reads everything Reconcile needs.
func (e *Engine) gather(key string) (Input, error) {
	rt := e.cfg.Runtime
	ctrl := e.cfg.Controller

	members, err := rt.Members(key)
	if err != nil {
		return Input{}, errors.Trace(err)
	}
	prior, err := rt.ApplicationSettings(key)
	if err != nil {
		return Input{}, errors.Trace(err)
	}
	own, err := rt.UnitSettings(key, ctrl.UnitName())
	if err != nil {
		return Input{}, errors.Trace(err)
	}
	peers := make(map[string]Peer, len(members))
	for _, unit := range members {
		settings, err := rt.UnitSettings(key, unit)
		if errors.Is(err, errors.NotFound) {
			continue
		} else if err != nil {
			return Input{}, errors.Trace(err)
		}
		peers[unit] = PeerFromSettings(unit, settings)
	}
	return Input{
		Leader: Peer{
			Unit:           ctrl.UnitName(),
			Hostname:       ctrl.Hostname(),
			Port:           ctrl.Port(),
			IngressAddress: own.Get(relation.KeyIngressAddress),
		},
		Prior:   prior,
		Members: members,
		Peers:   peers,
		Policy:  e.cfg.Policy,
	}, nil
}

// observeRole records the role the leader assigned to the local unit.
func (e *Engine) observeRole(key string) error {
	settings, err := e.cfg.Runtime.ApplicationSettings(key)
	if err != nil {
		return errors.Trace(err)
	}
	assignment, err := ReadAssignment(settings)
	if err != nil {
		// Only the leader acts on a corrupt assignment.
		e.logger.Warningf("not the leader, ignoring %v", err)
		return nil
	}
	return errors.Trace(e.cfg.Controller.ObserveRole(assignment.RoleOf(e.cfg.Controller.UnitName())))
}

func (e *Engine) logMembers(info hook.Info, what string) {
	members, err := e.cfg.Runtime.Members(info.RelationKey())
	if err != nil {
		e.logger.Warningf("%s %s, cannot list members: %v", info.RemoteUnit, what, err)
		return
	}
	e.logger.Infof("%s %s %s, members now %v", info.RemoteUnit, what, info.RelationKey(), members)
}
