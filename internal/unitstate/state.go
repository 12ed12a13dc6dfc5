// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package unitstate persists the local unit's state between hooks.
package unitstate

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"

	"github.com/juju/charm-slurmctld/internal/hook"
)

// Keys under which the state is persisted.
const (
	KeySlurmctldInfo  = "slurmctld_info"
	KeyControllerType = "controller_type"
	KeyDeferred       = "deferred"
)

// State is the unit's durable state. It is loaded at the start of a
// dispatch and saved at explicit checkpoints.
type State struct {
	// SlurmctldInfo is the last published endpoint bundle, as JSON.
	SlurmctldInfo string

	// ControllerType tags the role this unit last took on.
	ControllerType string

	// Deferred holds hooks waiting to be run again, oldest first.
	Deferred []hook.Info
}

// Defer queues info to be run again. It returns false if an identical
// hook is already queued.
func (st *State) Defer(info hook.Info) bool {
	for _, queued := range st.Deferred {
		if queued == info {
			return false
		}
	}
	st.Deferred = append(st.Deferred, info)
	return true
}

// Undefer removes info from the deferred queue, reporting whether it
// was queued.
func (st *State) Undefer(info hook.Info) bool {
	for i, queued := range st.Deferred {
		if queued == info {
			st.Deferred = append(st.Deferred[:i], st.Deferred[i+1:]...)
			return true
		}
	}
	return false
}

// Backend stores flat string key/values.
type Backend interface {
	Load() (map[string]string, error)
	Save(map[string]string) error
}

// Store loads and saves State through a Backend.
type Store struct {
	backend Backend
}

// NewStore returns a Store on the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load reads the state. Missing keys read as their zero value.
func (s *Store) Load() (*State, error) {
	values, err := s.backend.Load()
	if err != nil {
		return nil, errors.Annotate(err, "loading unit state")
	}
	st := &State{
		SlurmctldInfo:  values[KeySlurmctldInfo],
		ControllerType: values[KeyControllerType],
	}
	if deferred := values[KeyDeferred]; deferred != "" {
		if err := yaml.Unmarshal([]byte(deferred), &st.Deferred); err != nil {
			return nil, errors.Annotatef(err, "decoding %s", KeyDeferred)
		}
	}
	return st, nil
}

// Save writes the whole state.
func (s *Store) Save(st *State) error {
	values := map[string]string{
		KeySlurmctldInfo:  st.SlurmctldInfo,
		KeyControllerType: st.ControllerType,
		KeyDeferred:       "",
	}
	if len(st.Deferred) > 0 {
		data, err := yaml.Marshal(st.Deferred)
		if err != nil {
			return errors.Trace(err)
		}
		values[KeyDeferred] = string(data)
	}
	return errors.Annotate(s.backend.Save(values), "saving unit state")
}
