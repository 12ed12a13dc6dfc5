// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm reads the charm's metadata.yaml and config.yaml, and
// turns the application's configuration into typed settings.
package charm

import (
	"io"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Name      string
	Interface string
	Optional  bool
	Limit     int
	Scope     string
}

// Meta represents the content of metadata.yaml the charm cares about.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Provides    map[string]Relation
	Requires    map[string]Relation
	Peers       map[string]Relation
	Subordinate bool
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	v, err := metaSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{
		Name:     m["name"].(string),
		Provides: parseRelations(m["provides"]),
		Requires: parseRelations(m["requires"]),
		Peers:    parseRelations(m["peers"]),
	}
	if summary, ok := m["summary"].(string); ok {
		meta.Summary = summary
	}
	if description, ok := m["description"].(string); ok {
		meta.Description = description
	}
	if subordinate, ok := m["subordinate"].(bool); ok {
		meta.Subordinate = subordinate
	}
	return meta, nil
}

// CheckPeer returns an error unless name is declared as a peer relation.
func (m *Meta) CheckPeer(name string) error {
	if _, ok := m.Peers[name]; !ok {
		return errors.NotFoundf("peer relation %q in charm %q", name, m.Name)
	}
	return nil
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	result := make(map[string]Relation)
	for name, rel := range relations.(map[string]interface{}) {
		relMap := rel.(map[string]interface{})
		relation := Relation{
			Name:      name,
			Interface: relMap["interface"].(string),
			Optional:  relMap["optional"].(bool),
			Scope:     relMap["scope"].(string),
		}
		if limit, ok := relMap["limit"].(int64); ok {
			relation.Limit = int(limit)
		}
		result[name] = relation
	}
	return result
}

// ifaceExpander returns a checker that expands the interface shorthand
// notation, so that
//
//	peers:
//	  slurmctld: slurmctld-peer
//
// is read the same as
//
//	peers:
//	  slurmctld:
//	    interface: slurmctld-peer
//	    limit: 1
//	    optional: false
//	    scope: global
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	if s, err := stringC.Coerce(v, path); err == nil {
		return map[string]interface{}{
			"interface": s,
			"limit":     c.limit,
			"optional":  false,
			"scope":     ScopeGlobal,
		}, nil
	}

	v, err := mapC.Coerce(v, path)
	if err != nil {
		return nil, err
	}
	m := v.(map[string]interface{})
	if _, ok := m["limit"]; !ok {
		m["limit"] = c.limit
	}
	if _, ok := m["optional"]; !ok {
		m["optional"] = false
	}
	if _, ok := m["scope"]; !ok {
		m["scope"] = ScopeGlobal
	}
	return ifaceSchema.Coerce(m, path)
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	schema.Defaults{},
)

var metaSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"peers":       schema.StringMap(ifaceExpander(int64(1))),
		"provides":    schema.StringMap(ifaceExpander(nil)),
		"requires":    schema.StringMap(ifaceExpander(int64(1))),
		"subordinate": schema.Bool(),
		"series":      schema.List(schema.String()),
		"tags":        schema.List(schema.String()),
	},
	schema.Defaults{
		"summary":     schema.Omit,
		"description": schema.Omit,
		"peers":       schema.Omit,
		"provides":    schema.Omit,
		"requires":    schema.Omit,
		"subordinate": schema.Omit,
		"series":      schema.Omit,
		"tags":        schema.Omit,
	},
)
