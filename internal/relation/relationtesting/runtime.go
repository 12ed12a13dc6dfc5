// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relationtesting provides an in-memory relation.Runtime.
package relationtesting

import (
	"github.com/juju/errors"
	"github.com/juju/testing"

	"github.com/juju/charm-slurmctld/internal/relation"
)

// Runtime is an in-memory relation.Runtime holding a single application
// with one or more relations. Calls are recorded on the embedded Stub and
// errors can be injected with SetErrors, in the order the methods are
// called.
type Runtime struct {
	*testing.Stub

	// Leader is returned by IsLeader.
	Leader bool

	// Keys maps relation names to the relation keys returned by
	// RelationKeys.
	Keys map[string][]string

	// Units maps relation keys to the remote units returned by Members,
	// in order.
	Units map[string][]string

	// UnitData maps relation keys to unit buckets, keyed by unit name.
	UnitData map[string]map[string]relation.Settings

	// AppData maps relation keys to the application bucket.
	AppData map[string]relation.Settings

	// LocalUnit is the unit whose bucket SetLocalUnitSettings writes.
	LocalUnit string
}

// NewRuntime returns an empty Runtime for the given local unit.
func NewRuntime(localUnit string) *Runtime {
	return &Runtime{
		Stub:      &testing.Stub{},
		Keys:      make(map[string][]string),
		Units:     make(map[string][]string),
		UnitData:  make(map[string]map[string]relation.Settings),
		AppData:   make(map[string]relation.Settings),
		LocalUnit: localUnit,
	}
}

// AddRelation registers an empty relation.
func (r *Runtime) AddRelation(name, key string) {
	r.Keys[name] = append(r.Keys[name], key)
	r.UnitData[key] = make(map[string]relation.Settings)
	r.AppData[key] = make(relation.Settings)
}

// Join adds a remote unit to the relation, with the given settings.
func (r *Runtime) Join(key, unit string, settings relation.Settings) {
	r.Units[key] = append(r.Units[key], unit)
	r.UnitData[key][unit] = settings.Copy()
}

// Depart removes a remote unit from the relation membership. Its data
// stays behind, as it does in the runtime until the relation is gone.
func (r *Runtime) Depart(key, unit string) {
	units := r.Units[key][:0]
	for _, u := range r.Units[key] {
		if u != unit {
			units = append(units, u)
		}
	}
	r.Units[key] = units
}

// Members is part of the relation.Membership interface.
func (r *Runtime) Members(key string) ([]string, error) {
	r.AddCall("Members", key)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	if _, ok := r.UnitData[key]; !ok {
		return nil, errors.NotFoundf("relation %q", key)
	}
	return append([]string(nil), r.Units[key]...), nil
}

// UnitSettings is part of the relation.DataStore interface.
func (r *Runtime) UnitSettings(key, unit string) (relation.Settings, error) {
	r.AddCall("UnitSettings", key, unit)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	data, ok := r.UnitData[key]
	if !ok {
		return nil, errors.NotFoundf("relation %q", key)
	}
	return data[unit].Copy(), nil
}

// SetLocalUnitSettings is part of the relation.DataStore interface.
func (r *Runtime) SetLocalUnitSettings(key string, settings relation.Settings) error {
	r.AddCall("SetLocalUnitSettings", key, settings)
	if err := r.NextErr(); err != nil {
		return err
	}
	data, ok := r.UnitData[key]
	if !ok {
		return errors.NotFoundf("relation %q", key)
	}
	if data[r.LocalUnit] == nil {
		data[r.LocalUnit] = make(relation.Settings)
	}
	merge(data[r.LocalUnit], settings)
	return nil
}

// ApplicationSettings is part of the relation.DataStore interface.
func (r *Runtime) ApplicationSettings(key string) (relation.Settings, error) {
	r.AddCall("ApplicationSettings", key)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	data, ok := r.AppData[key]
	if !ok {
		return nil, errors.NotFoundf("relation %q", key)
	}
	return data.Copy(), nil
}

// SetApplicationSettings is part of the relation.DataStore interface.
func (r *Runtime) SetApplicationSettings(key string, settings relation.Settings) error {
	r.AddCall("SetApplicationSettings", key, settings)
	if err := r.NextErr(); err != nil {
		return err
	}
	if !r.Leader {
		return errors.Unauthorizedf("%s is not leader", r.LocalUnit)
	}
	data, ok := r.AppData[key]
	if !ok {
		return errors.NotFoundf("relation %q", key)
	}
	merge(data, settings)
	return nil
}

// IsLeader is part of the relation.Leadership interface.
func (r *Runtime) IsLeader() (bool, error) {
	r.AddCall("IsLeader")
	return r.Leader, r.NextErr()
}

// RelationKeys is part of the relation.Relations interface.
func (r *Runtime) RelationKeys(name string) ([]string, error) {
	r.AddCall("RelationKeys", name)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.Keys[name]...), nil
}

// merge applies settings the way relation-set does: empty values delete.
func merge(into, settings relation.Settings) {
	for k, v := range settings {
		if v == "" {
			delete(into, k)
			continue
		}
		into[k] = v
	}
}
