// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation defines what the charm needs from the runtime to read
// relation membership and settings, and implements it on top of the
// hook tools.
package relation

import (
	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Keys written by every unit into its own relation bucket. The ingress
// address is written by the unit agent, not by the charm.
const (
	KeyHostname       = "hostname"
	KeyPort           = "port"
	KeyIngressAddress = "ingress-address"
)

// Settings holds the string key/values of one relation bucket.
type Settings map[string]string

// Get returns the value of key, or "" if it is not set.
func (s Settings) Get(key string) string {
	return s[key]
}

// Copy returns an independent copy of the settings.
func (s Settings) Copy() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Membership lists the units taking part in a relation.
type Membership interface {
	// Members returns the remote units of the relation in the order the
	// runtime reports them. The local unit is never included.
	Members(relationKey string) ([]string, error)
}

// DataStore reads and writes relation buckets. Unit buckets are written
// only by their owning unit; the application bucket only by the leader.
type DataStore interface {
	UnitSettings(relationKey, unit string) (Settings, error)
	SetLocalUnitSettings(relationKey string, settings Settings) error
	ApplicationSettings(relationKey string) (Settings, error)
	SetApplicationSettings(relationKey string, settings Settings) error
}

// Leadership reports whether the local unit is the application leader.
type Leadership interface {
	IsLeader() (bool, error)
}

// Relations looks up the relations established for a relation name.
type Relations interface {
	RelationKeys(name string) ([]string, error)
}

// Runtime is everything the charm consumes from the unit agent.
type Runtime interface {
	Membership
	DataStore
	Leadership
	Relations
}

// ToolClient is the subset of the hook tools used by the runtime.
type ToolClient interface {
	IsLeader() (bool, error)
	RelationIds(name string) ([]string, error)
	RelationList(relationKey string) ([]string, error)
	RelationGet(relationKey, name string, app bool) (map[string]string, error)
	RelationSet(relationKey string, app bool, settings map[string]string) error
}

type hookToolsRuntime struct {
	tools       ToolClient
	unitName    string
	application string
}

// NewHookToolsRuntime returns a Runtime for the named local unit backed by
// the hook tools.
func NewHookToolsRuntime(tools ToolClient, unitName string) (Runtime, error) {
	if tools == nil {
		return nil, errors.NotValidf("nil ToolClient")
	}
	application, err := names.UnitApplication(unitName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &hookToolsRuntime{
		tools:       tools,
		unitName:    unitName,
		application: application,
	}, nil
}

// Members is part of the Membership interface.
func (r *hookToolsRuntime) Members(relationKey string) ([]string, error) {
	units, err := r.tools.RelationList(relationKey)
	if err != nil {
		return nil, errors.Annotatef(err, "listing members of %s", relationKey)
	}
	// Peer relations never list the local unit, but be sure of it.
	members := make([]string, 0, len(units))
	for _, unit := range units {
		if unit != r.unitName {
			members = append(members, unit)
		}
	}
	return members, nil
}

// UnitSettings is part of the DataStore interface.
func (r *hookToolsRuntime) UnitSettings(relationKey, unit string) (Settings, error) {
	settings, err := r.tools.RelationGet(relationKey, unit, false)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s settings of %s", relationKey, unit)
	}
	return Settings(settings), nil
}

// SetLocalUnitSettings is part of the DataStore interface.
func (r *hookToolsRuntime) SetLocalUnitSettings(relationKey string, settings Settings) error {
	err := r.tools.RelationSet(relationKey, false, settings)
	return errors.Annotatef(err, "writing %s settings of %s", relationKey, r.unitName)
}

// ApplicationSettings is part of the DataStore interface.
func (r *hookToolsRuntime) ApplicationSettings(relationKey string) (Settings, error) {
	settings, err := r.tools.RelationGet(relationKey, r.application, true)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s settings of %s", relationKey, r.application)
	}
	return Settings(settings), nil
}

// SetApplicationSettings is part of the DataStore interface.
func (r *hookToolsRuntime) SetApplicationSettings(relationKey string, settings Settings) error {
	err := r.tools.RelationSet(relationKey, true, settings)
	return errors.Annotatef(err, "writing %s settings of %s", relationKey, r.application)
}

// IsLeader is part of the Leadership interface.
func (r *hookToolsRuntime) IsLeader() (bool, error) {
	leader, err := r.tools.IsLeader()
	return leader, errors.Trace(err)
}

// RelationKeys is part of the Relations interface.
func (r *hookToolsRuntime) RelationKeys(name string) ([]string, error) {
	keys, err := r.tools.RelationIds(name)
	return keys, errors.Annotatef(err, "listing %q relations", name)
}
