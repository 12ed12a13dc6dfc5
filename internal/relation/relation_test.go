// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relation_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-slurmctld/internal/relation"
)

type runtimeSuite struct {
	testing.IsolationSuite

	tools *stubTools
}

var _ = gc.Suite(&runtimeSuite{})

func (s *runtimeSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.tools = &stubTools{Stub: &testing.Stub{}}
}

func (s *runtimeSuite) newRuntime(c *gc.C) relation.Runtime {
	rt, err := relation.NewHookToolsRuntime(s.tools, "slurmctld/0")
	c.Assert(err, jc.ErrorIsNil)
	return rt
}

func (s *runtimeSuite) TestNewRuntimeValidates(c *gc.C) {
	_, err := relation.NewHookToolsRuntime(nil, "slurmctld/0")
	c.Check(err, gc.ErrorMatches, "nil ToolClient not valid")
	_, err = relation.NewHookToolsRuntime(s.tools, "slurmctld")
	c.Check(err, gc.ErrorMatches, `.*"slurmctld" is not a valid unit name`)
}

func (s *runtimeSuite) TestMembersDropsLocalUnit(c *gc.C) {
	s.tools.units = []string{"slurmctld/1", "slurmctld/0", "slurmctld/2"}
	members, err := s.newRuntime(c).Members("slurmctld:1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(members, jc.DeepEquals, []string{"slurmctld/1", "slurmctld/2"})
	s.tools.CheckCall(c, 0, "RelationList", "slurmctld:1")
}

func (s *runtimeSuite) TestMembersError(c *gc.C) {
	s.tools.SetErrors(errors.New("boom"))
	_, err := s.newRuntime(c).Members("slurmctld:1")
	c.Check(err, gc.ErrorMatches, "listing members of slurmctld:1: boom")
}

func (s *runtimeSuite) TestApplicationSettingsUsesApplicationName(c *gc.C) {
	s.tools.settings = map[string]string{"active_controller": "slurmctld/0"}
	settings, err := s.newRuntime(c).ApplicationSettings("slurmctld:1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings.Get("active_controller"), gc.Equals, "slurmctld/0")
	c.Check(settings.Get("backup_controller"), gc.Equals, "")
	s.tools.CheckCall(c, 0, "RelationGet", "slurmctld:1", "slurmctld", true)
}

func (s *runtimeSuite) TestUnitSettings(c *gc.C) {
	s.tools.settings = map[string]string{"hostname": "ctl-1"}
	settings, err := s.newRuntime(c).UnitSettings("slurmctld:1", "slurmctld/1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings, jc.DeepEquals, relation.Settings{"hostname": "ctl-1"})
	s.tools.CheckCall(c, 0, "RelationGet", "slurmctld:1", "slurmctld/1", false)
}

func (s *runtimeSuite) TestSetSettings(c *gc.C) {
	rt := s.newRuntime(c)
	err := rt.SetLocalUnitSettings("slurmctld:1", relation.Settings{"hostname": "ctl-0"})
	c.Assert(err, jc.ErrorIsNil)
	err = rt.SetApplicationSettings("slurmctld:1", relation.Settings{"backup_controller": ""})
	c.Assert(err, jc.ErrorIsNil)
	s.tools.CheckCalls(c, []testing.StubCall{
		{FuncName: "RelationSet", Args: []interface{}{"slurmctld:1", false, map[string]string{"hostname": "ctl-0"}}},
		{FuncName: "RelationSet", Args: []interface{}{"slurmctld:1", true, map[string]string{"backup_controller": ""}}},
	})
}

func (s *runtimeSuite) TestSetApplicationSettingsError(c *gc.C) {
	s.tools.SetErrors(errors.New("not the leader"))
	err := s.newRuntime(c).SetApplicationSettings("slurmctld:1", relation.Settings{"a": "b"})
	c.Check(err, gc.ErrorMatches, "writing slurmctld:1 settings of slurmctld: not the leader")
}

func (s *runtimeSuite) TestLeadershipAndKeys(c *gc.C) {
	s.tools.leader = true
	s.tools.keys = []string{"slurmctld:1"}
	rt := s.newRuntime(c)

	leader, err := rt.IsLeader()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(leader, jc.IsTrue)

	keys, err := rt.RelationKeys("slurmctld")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(keys, jc.DeepEquals, []string{"slurmctld:1"})
	s.tools.CheckCallNames(c, "IsLeader", "RelationIds")
}

type stubTools struct {
	*testing.Stub

	leader   bool
	keys     []string
	units    []string
	settings map[string]string
}

func (t *stubTools) IsLeader() (bool, error) {
	t.AddCall("IsLeader")
	return t.leader, t.NextErr()
}

func (t *stubTools) RelationIds(name string) ([]string, error) {
	t.AddCall("RelationIds", name)
	return t.keys, t.NextErr()
}

func (t *stubTools) RelationList(key string) ([]string, error) {
	t.AddCall("RelationList", key)
	return t.units, t.NextErr()
}

func (t *stubTools) RelationGet(key, name string, app bool) (map[string]string, error) {
	t.AddCall("RelationGet", key, name, app)
	return t.settings, t.NextErr()
}

func (t *stubTools) RelationSet(key string, app bool, settings map[string]string) error {
	t.AddCall("RelationSet", key, app, settings)
	return t.NextErr()
}
