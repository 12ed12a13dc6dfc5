// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitstate_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/unitstate"
)

type stateSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&stateSuite{})

var changed = hook.Info{Kind: hook.RelationChanged, RelationName: "slurmctld", RelationId: 1, RemoteUnit: "slurmctld/2"}

func (s *stateSuite) TestDeferDeduplicates(c *gc.C) {
	st := &unitstate.State{}
	c.Check(st.Defer(changed), jc.IsTrue)
	c.Check(st.Defer(changed), jc.IsFalse)

	other := changed
	other.RemoteUnit = "slurmctld/1"
	c.Check(st.Defer(other), jc.IsTrue)
	c.Check(st.Deferred, jc.DeepEquals, []hook.Info{changed, other})

	c.Check(st.Undefer(changed), jc.IsTrue)
	c.Check(st.Undefer(changed), jc.IsFalse)
	c.Check(st.Deferred, jc.DeepEquals, []hook.Info{other})
}

func (s *stateSuite) TestFileRoundTrip(c *gc.C) {
	path := filepath.Join(c.MkDir(), ".unit-state.yaml")
	store := unitstate.NewStore(unitstate.NewFileBackend(path))

	st, err := store.Load()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st, jc.DeepEquals, &unitstate.State{})

	st.SlurmctldInfo = `{"active_controller_hostname":"ctl-0"}`
	st.ControllerType = "active"
	st.Defer(changed)
	c.Assert(store.Save(st), jc.ErrorIsNil)

	info, err := os.Stat(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0600))

	loaded, err := store.Load()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(loaded, jc.DeepEquals, st)

	loaded.Undefer(changed)
	c.Assert(store.Save(loaded), jc.ErrorIsNil)
	loaded, err = store.Load()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(loaded.Deferred, gc.HasLen, 0)
}

func (s *stateSuite) TestFileCorrupt(c *gc.C) {
	path := filepath.Join(c.MkDir(), ".unit-state.yaml")
	err := os.WriteFile(path, []byte("deferred: [unterminated"), 0600)
	c.Assert(err, jc.ErrorIsNil)

	_, err = unitstate.NewStore(unitstate.NewFileBackend(path)).Load()
	c.Check(err, gc.ErrorMatches, "loading unit state: reading .*: yaml: .*")
}

func (s *stateSuite) TestControllerBackend(c *gc.C) {
	tools := &stubStateTools{
		Stub: &testing.Stub{},
		values: map[string]string{
			unitstate.KeyControllerType: "active",
			unitstate.KeyDeferred:       "- kind: leader-elected\n  relation-id: 0\n",
		},
	}
	store := unitstate.NewStore(unitstate.NewControllerBackend(tools))

	st, err := store.Load()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st, jc.DeepEquals, &unitstate.State{
		ControllerType: "active",
		Deferred:       []hook.Info{{Kind: hook.LeaderElected}},
	})

	st.Deferred = nil
	st.SlurmctldInfo = "{}"
	c.Assert(store.Save(st), jc.ErrorIsNil)
	tools.CheckCall(c, 1, "StateSet", map[string]string{
		unitstate.KeySlurmctldInfo:  "{}",
		unitstate.KeyControllerType: "active",
		unitstate.KeyDeferred:       "",
	})
}

func (s *stateSuite) TestControllerBackendErrors(c *gc.C) {
	tools := &stubStateTools{Stub: &testing.Stub{}}
	tools.SetErrors(errors.New("state-get exited 1"), errors.New("state-set exited 1"))
	store := unitstate.NewStore(unitstate.NewControllerBackend(tools))

	_, err := store.Load()
	c.Check(err, gc.ErrorMatches, "loading unit state: state-get exited 1")
	err = store.Save(&unitstate.State{})
	c.Check(err, gc.ErrorMatches, "saving unit state: state-set exited 1")
}

func (s *stateSuite) TestBadDeferredQueue(c *gc.C) {
	tools := &stubStateTools{
		Stub:   &testing.Stub{},
		values: map[string]string{unitstate.KeyDeferred: "{"},
	}
	_, err := unitstate.NewStore(unitstate.NewControllerBackend(tools)).Load()
	c.Check(err, gc.ErrorMatches, "decoding deferred: .*")
}

type stubStateTools struct {
	*testing.Stub
	values map[string]string
}

func (t *stubStateTools) StateGet() (map[string]string, error) {
	t.AddCall("StateGet")
	return t.values, t.NextErr()
}

func (t *stubStateTools) StateSet(values map[string]string) error {
	t.AddCall("StateSet", values)
	return t.NextErr()
}
