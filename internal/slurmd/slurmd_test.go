// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package slurmd_test

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/relation"
	"github.com/juju/charm-slurmctld/internal/relation/relationtesting"
	"github.com/juju/charm-slurmctld/internal/slurmd"
)

type slurmdSuite struct {
	testing.IsolationSuite

	runtime  *relationtesting.Runtime
	relation *slurmd.Relation
	logs     loggo.TestWriter
}

var _ = gc.Suite(&slurmdSuite{})

func (s *slurmdSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.runtime = relationtesting.NewRuntime("slurmctld/0")
	s.runtime.AddRelation("slurmd", "slurmd:3")

	var err error
	s.relation, err = slurmd.New(slurmd.Config{
		RelationName: "slurmd",
		Runtime:      s.runtime,
		Hostname:     "ctl-0",
	})
	c.Assert(err, jc.ErrorIsNil)

	s.logs.Clear()
	loggo.GetLogger("slurmctld.slurmd").SetLogLevel(loggo.DEBUG)
	c.Assert(loggo.RegisterWriter("slurmd-test", &s.logs), jc.ErrorIsNil)
	s.AddCleanup(func(*gc.C) {
		_, _ = loggo.RemoveWriter("slurmd-test")
	})
}

func info(kind hook.Kind, remote string) hook.Info {
	return hook.Info{Kind: kind, RelationName: "slurmd", RelationId: 3, RemoteUnit: remote}
}

func (s *slurmdSuite) TestValidate(c *gc.C) {
	_, err := slurmd.New(slurmd.Config{Runtime: s.runtime, Hostname: "h"})
	c.Check(err, gc.ErrorMatches, "empty RelationName not valid")
	_, err = slurmd.New(slurmd.Config{RelationName: "slurmd", Hostname: "h"})
	c.Check(err, gc.ErrorMatches, "nil Runtime not valid")
	_, err = slurmd.New(slurmd.Config{RelationName: "slurmd", Runtime: s.runtime})
	c.Check(err, gc.ErrorMatches, "empty Hostname not valid")
}

func (s *slurmdSuite) TestRelationCreatedPublishesHostname(c *gc.C) {
	outcome, err := s.relation.RelationCreated(info(hook.RelationCreated, ""))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcome, gc.Equals, hook.Applied)
	c.Check(s.runtime.UnitData["slurmd:3"]["slurmctld/0"], jc.DeepEquals, relation.Settings{
		relation.KeyHostname: "ctl-0",
	})
	s.runtime.CheckCallNames(c, "SetLocalUnitSettings")
}

func (s *slurmdSuite) TestRelationCreatedError(c *gc.C) {
	s.runtime.SetErrors(errors.New("relation-set: permission denied"))
	_, err := s.relation.RelationCreated(info(hook.RelationCreated, ""))
	c.Assert(err, gc.ErrorMatches, "relation-set: permission denied")
}

func (s *slurmdSuite) TestRelationJoinedLogs(c *gc.C) {
	s.runtime.Join("slurmd:3", "slurmd/1", relation.Settings{relation.KeyHostname: "node-1"})

	outcome, err := s.relation.RelationJoined(info(hook.RelationJoined, "slurmd/1"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcome, gc.Equals, hook.Applied)
	c.Check(s.logs.Log(), jc.LogMatches, jc.SimpleMessages{
		{loggo.INFO, `slurmd/1 joined slurmd:3 with hostname "node-1"`},
	})
}

func (s *slurmdSuite) TestRelationJoinedCannotFail(c *gc.C) {
	s.runtime.SetErrors(errors.New("boom"))
	outcome, err := s.relation.RelationJoined(info(hook.RelationJoined, "slurmd/1"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcome, gc.Equals, hook.Applied)
}

func (s *slurmdSuite) TestOtherHooksOnlyLog(c *gc.C) {
	for _, f := range []func(hook.Info) (hook.Outcome, error){
		s.relation.RelationChanged,
		s.relation.RelationDeparted,
		s.relation.RelationBroken,
	} {
		outcome, err := f(info(hook.RelationChanged, "slurmd/1"))
		c.Check(err, jc.ErrorIsNil)
		c.Check(outcome, gc.Equals, hook.Applied)
	}
	c.Check(s.runtime.Calls(), gc.HasLen, 0)
}
