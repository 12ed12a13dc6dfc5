// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-slurmctld/internal/hook"
)

type hookSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&hookSuite{})

func envFrom(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func (s *hookSuite) TestValidate(c *gc.C) {
	for i, test := range []struct {
		info hook.Info
		err  string
	}{{
		info: hook.Info{Kind: hook.Install},
	}, {
		info: hook.Info{Kind: hook.LeaderElected},
	}, {
		info: hook.Info{Kind: hook.RelationChanged, RelationName: "slurmctld", RelationId: 0},
	}, {
		info: hook.Info{Kind: hook.RelationJoined, RelationName: "slurmctld", RelationId: 2, RemoteUnit: "slurmctld/1"},
	}, {
		info: hook.Info{Kind: hook.RelationJoined, RelationName: "slurmctld", RelationId: 2},
		err:  `"relation-joined" hook without remote unit not valid`,
	}, {
		info: hook.Info{Kind: hook.RelationDeparted, RelationName: "slurmctld", RemoteUnit: "bad"},
		err:  `remote unit "bad" not valid`,
	}, {
		info: hook.Info{Kind: hook.RelationBroken},
		err:  `"relation-broken" hook without relation name not valid`,
	}, {
		info: hook.Info{Kind: "collect-metrics"},
		err:  `hook kind "collect-metrics" not valid`,
	}} {
		c.Logf("test %d: %v", i, test.info)
		err := test.info.Validate()
		if test.err == "" {
			c.Check(err, jc.ErrorIsNil)
			continue
		}
		c.Check(err, gc.ErrorMatches, test.err)
		c.Check(errors.Is(err, errors.NotValid), jc.IsTrue)
	}
}

func (s *hookSuite) TestName(c *gc.C) {
	info := hook.Info{Kind: hook.RelationChanged, RelationName: "slurmctld", RelationId: 3, RemoteUnit: "slurmctld/2"}
	c.Check(info.Name(), gc.Equals, "slurmctld-relation-changed")
	c.Check(info.RelationKey(), gc.Equals, "slurmctld:3")
	c.Check(info.String(), gc.Equals, "slurmctld-relation-changed (slurmctld:3, slurmctld/2)")
	c.Check(hook.Info{Kind: hook.LeaderElected}.String(), gc.Equals, "leader-elected")
}

func (s *hookSuite) TestParseRelationKey(c *gc.C) {
	name, id, err := hook.ParseRelationKey("slurmctld:12")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(name, gc.Equals, "slurmctld")
	c.Check(id, gc.Equals, 12)

	for _, key := range []string{"", "slurmctld", ":1", "slurmctld:x", "slurmctld:-1"} {
		_, _, err := hook.ParseRelationKey(key)
		c.Check(err, gc.ErrorMatches, `relation key ".*" not valid`)
	}
}

func (s *hookSuite) TestReadEnvironmentRelationHook(c *gc.C) {
	env, err := hook.ReadEnvironment(envFrom(map[string]string{
		"JUJU_UNIT_NAME":     "slurmctld/0",
		"CHARM_DIR":          "/var/lib/juju/agents/unit-slurmctld-0/charm",
		"JUJU_DISPATCH_PATH": "hooks/slurmctld-relation-departed",
		"JUJU_RELATION":      "slurmctld",
		"JUJU_RELATION_ID":   "slurmctld:4",
		"JUJU_REMOTE_UNIT":   "slurmctld/2",
	}))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(env, jc.DeepEquals, hook.Environment{
		Info: hook.Info{
			Kind:         hook.RelationDeparted,
			RelationName: "slurmctld",
			RelationId:   4,
			RemoteUnit:   "slurmctld/2",
		},
		UnitName: "slurmctld/0",
		CharmDir: "/var/lib/juju/agents/unit-slurmctld-0/charm",
	})
}

func (s *hookSuite) TestReadEnvironmentPrefersHookName(c *gc.C) {
	env, err := hook.ReadEnvironment(envFrom(map[string]string{
		"JUJU_UNIT_NAME":     "slurmctld/0",
		"JUJU_HOOK_NAME":     "leader-elected",
		"JUJU_DISPATCH_PATH": "hooks/install",
	}))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(env.Info, jc.DeepEquals, hook.Info{Kind: hook.LeaderElected})
}

func (s *hookSuite) TestReadEnvironmentErrors(c *gc.C) {
	_, err := hook.ReadEnvironment(envFrom(nil))
	c.Check(err, gc.ErrorMatches, `JUJU_UNIT_NAME "" not valid`)

	_, err = hook.ReadEnvironment(envFrom(map[string]string{
		"JUJU_UNIT_NAME": "slurmctld/0",
	}))
	c.Check(err, gc.ErrorMatches, `hook name not found`)

	_, err = hook.ReadEnvironment(envFrom(map[string]string{
		"JUJU_UNIT_NAME": "slurmctld/0",
		"JUJU_HOOK_NAME": "slurmctld-relation-changed",
	}))
	c.Check(err, gc.ErrorMatches, `JUJU_RELATION_ID: relation key "" not valid`)

	_, err = hook.ReadEnvironment(envFrom(map[string]string{
		"JUJU_UNIT_NAME":   "slurmctld/0",
		"JUJU_HOOK_NAME":   "slurmctld-relation-changed",
		"JUJU_RELATION_ID": "slurmd:1",
	}))
	c.Check(err, gc.ErrorMatches, `JUJU_RELATION_ID "slurmd:1" for hook "slurmctld-relation-changed" not valid`)

	_, err = hook.ReadEnvironment(envFrom(map[string]string{
		"JUJU_UNIT_NAME": "slurmctld/0",
		"JUJU_HOOK_NAME": "storage-attached",
	}))
	c.Check(err, gc.ErrorMatches, `hook "storage-attached" not supported`)
	c.Check(err, jc.ErrorIs, errors.NotSupported)
}
