// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitstate

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v2"
)

// StateTools is the subset of the hook tools giving access to the unit
// state held by the controller.
type StateTools interface {
	StateGet() (map[string]string, error)
	StateSet(map[string]string) error
}

type controllerBackend struct {
	tools StateTools
}

// NewControllerBackend returns a Backend keeping the state in the
// controller, which survives the unit's machine being rebuilt.
func NewControllerBackend(tools StateTools) Backend {
	return controllerBackend{tools: tools}
}

// Load is part of the Backend interface.
func (b controllerBackend) Load() (map[string]string, error) {
	values, err := b.tools.StateGet()
	return values, errors.Trace(err)
}

// Save is part of the Backend interface. Empty values delete the key.
func (b controllerBackend) Save(values map[string]string) error {
	return errors.Trace(b.tools.StateSet(values))
}

type fileBackend struct {
	path string
}

// NewFileBackend returns a Backend keeping the state in a yaml file on
// the unit's machine.
func NewFileBackend(path string) Backend {
	return fileBackend{path: path}
}

// Load is part of the Backend interface. A missing file is empty state.
func (b fileBackend) Load() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Annotatef(err, "reading %s", b.path)
	}
	return values, nil
}

// Save is part of the Backend interface.
func (b fileBackend) Save(values map[string]string) error {
	kept := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			kept[k] = v
		}
	}
	data, err := yaml.Marshal(kept)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(utils.AtomicWriteFile(b.path, data, 0600), "writing %s", b.path)
}
