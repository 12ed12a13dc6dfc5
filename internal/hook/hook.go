// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hook provides types that define the hooks the charm responds
// to, and the means to identify the hook being run from the environment
// the unit agent sets up for it.
package hook

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Kind identifies a hook.
type Kind string

const (
	Install               Kind = "install"
	Start                 Kind = "start"
	ConfigChanged         Kind = "config-changed"
	UpgradeCharm          Kind = "upgrade-charm"
	UpdateStatus          Kind = "update-status"
	LeaderElected         Kind = "leader-elected"
	LeaderSettingsChanged Kind = "leader-settings-changed"
	Stop                  Kind = "stop"
	Remove                Kind = "remove"

	// Relation hooks are prefixed with the relation name
	// in the hook name, eg "slurmctld-relation-changed".
	RelationCreated  Kind = "relation-created"
	RelationJoined   Kind = "relation-joined"
	RelationChanged  Kind = "relation-changed"
	RelationDeparted Kind = "relation-departed"
	RelationBroken   Kind = "relation-broken"
)

var unitKinds = []Kind{
	Install, Start, ConfigChanged, UpgradeCharm, UpdateStatus,
	LeaderElected, LeaderSettingsChanged, Stop, Remove,
}

var relationKinds = []Kind{
	RelationCreated, RelationJoined, RelationChanged, RelationDeparted, RelationBroken,
}

// IsRelation returns whether the Kind represents a relation hook.
func (kind Kind) IsRelation() bool {
	for _, k := range relationKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Info holds details of a hook. Not all fields are relevant to all Kind
// values. Info is persisted as yaml when a hook is deferred.
type Info struct {
	Kind Kind `yaml:"kind"`

	// RelationName and RelationId identify the relation associated with
	// the hook. They are only set when Kind is a relation hook.
	// Do not use omitempty on RelationId, 0 is a valid id.
	RelationName string `yaml:"relation-name,omitempty"`
	RelationId   int    `yaml:"relation-id"`

	// RemoteUnit is the name of the unit that triggered the hook. It may
	// be empty for relation-changed when the remote application data
	// changed, and is always empty for relation-created and
	// relation-broken.
	RemoteUnit string `yaml:"remote-unit,omitempty"`
}

// Validate returns an error if the info is not valid.
func (hi Info) Validate() error {
	if hi.Kind.IsRelation() {
		if hi.RelationName == "" {
			return errors.NotValidf("%q hook without relation name", hi.Kind)
		}
		if hi.RelationId < 0 {
			return errors.NotValidf("%q hook relation id %d", hi.Kind, hi.RelationId)
		}
		switch hi.Kind {
		case RelationJoined, RelationDeparted:
			if hi.RemoteUnit == "" {
				return errors.NotValidf("%q hook without remote unit", hi.Kind)
			}
		}
		if hi.RemoteUnit != "" && !names.IsValidUnit(hi.RemoteUnit) {
			return errors.NotValidf("remote unit %q", hi.RemoteUnit)
		}
		return nil
	}
	for _, k := range unitKinds {
		if hi.Kind == k {
			return nil
		}
	}
	return errors.NotValidf("hook kind %q", hi.Kind)
}

// RelationKey returns the relation identifier in the form understood by
// the hook tools, eg "slurmctld:3".
func (hi Info) RelationKey() string {
	return FormatRelationKey(hi.RelationName, hi.RelationId)
}

// Name returns the hook name as seen by the charm.
func (hi Info) Name() string {
	if hi.Kind.IsRelation() {
		return fmt.Sprintf("%s-%s", hi.RelationName, hi.Kind)
	}
	return string(hi.Kind)
}

// String is part of fmt.Stringer.
func (hi Info) String() string {
	if hi.RemoteUnit != "" {
		return fmt.Sprintf("%s (%s, %s)", hi.Name(), hi.RelationKey(), hi.RemoteUnit)
	}
	if hi.Kind.IsRelation() {
		return fmt.Sprintf("%s (%s)", hi.Name(), hi.RelationKey())
	}
	return hi.Name()
}

// FormatRelationKey joins a relation name and id.
func FormatRelationKey(name string, id int) string {
	return fmt.Sprintf("%s:%d", name, id)
}

// ParseRelationKey splits a relation key of the form "<name>:<id>".
func ParseRelationKey(key string) (string, int, error) {
	name, num, ok := strings.Cut(key, ":")
	if !ok || name == "" {
		return "", -1, errors.NotValidf("relation key %q", key)
	}
	id, err := strconv.Atoi(num)
	if err != nil || id < 0 {
		return "", -1, errors.NotValidf("relation key %q", key)
	}
	return name, id, nil
}

// Environment holds the hook execution environment set by the unit agent.
type Environment struct {
	Info

	// UnitName is the name of the local unit, eg "slurmctld/0".
	UnitName string

	// CharmDir is the directory holding the deployed charm.
	CharmDir string
}

// ReadEnvironment identifies the hook being run from the environment
// variables the unit agent exports to it. Hooks the charm does not handle
// are NotSupported.
func ReadEnvironment(getenv func(string) string) (Environment, error) {
	env := Environment{
		UnitName: getenv("JUJU_UNIT_NAME"),
		CharmDir: getenv("CHARM_DIR"),
	}
	if !names.IsValidUnit(env.UnitName) {
		return Environment{}, errors.NotValidf("JUJU_UNIT_NAME %q", env.UnitName)
	}

	hookName := getenv("JUJU_HOOK_NAME")
	if hookName == "" {
		if dispatchPath := getenv("JUJU_DISPATCH_PATH"); dispatchPath != "" {
			hookName = filepath.Base(dispatchPath)
		}
	}
	if hookName == "" {
		return Environment{}, errors.NotFoundf("hook name")
	}

	info, err := parseHookName(hookName)
	if err != nil {
		return Environment{}, errors.Trace(err)
	}
	if info.Kind.IsRelation() {
		if relation := getenv("JUJU_RELATION"); relation != "" && relation != info.RelationName {
			return Environment{}, errors.NotValidf("JUJU_RELATION %q for hook %q", relation, hookName)
		}
		name, id, err := ParseRelationKey(getenv("JUJU_RELATION_ID"))
		if err != nil {
			return Environment{}, errors.Annotate(err, "JUJU_RELATION_ID")
		}
		if name != info.RelationName {
			return Environment{}, errors.NotValidf("JUJU_RELATION_ID %q for hook %q", getenv("JUJU_RELATION_ID"), hookName)
		}
		info.RelationId = id
		info.RemoteUnit = getenv("JUJU_REMOTE_UNIT")
	}
	if err := info.Validate(); err != nil {
		return Environment{}, errors.Trace(err)
	}
	env.Info = info
	return env, nil
}

func parseHookName(hookName string) (Info, error) {
	for _, kind := range relationKinds {
		suffix := "-" + string(kind)
		if strings.HasSuffix(hookName, suffix) {
			name := strings.TrimSuffix(hookName, suffix)
			if name == "" {
				break
			}
			return Info{Kind: kind, RelationName: name}, nil
		}
	}
	info := Info{Kind: Kind(hookName)}
	if err := info.Validate(); err != nil {
		return Info{}, errors.NotSupportedf("hook %q", hookName)
	}
	return info, nil
}
