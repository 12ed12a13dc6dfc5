// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// The charm command is run by the unit agent for every hook of a
// slurmctld unit.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/version/v2"

	"github.com/juju/charm-slurmctld/internal/charm"
	"github.com/juju/charm-slurmctld/internal/controller"
	"github.com/juju/charm-slurmctld/internal/dispatch"
	"github.com/juju/charm-slurmctld/internal/election"
	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/hooktools"
	"github.com/juju/charm-slurmctld/internal/logging"
	"github.com/juju/charm-slurmctld/internal/relation"
	"github.com/juju/charm-slurmctld/internal/slurmd"
	"github.com/juju/charm-slurmctld/internal/unitstate"
)

var logger = loggo.GetLogger("slurmctld.cmd")

const (
	peerRelation   = "slurmctld"
	slurmdRelation = "slurmd"

	// stateFile holds the unit state when the controller cannot.
	stateFile = ".unit-state.yaml"

	exitError = 1
	exitPanic = 3
)

// minStateVersion is the first agent version providing state-get and
// state-set.
var minStateVersion = version.MustParse("2.8.0")

// options holds what the command takes from its surroundings.
type options struct {
	getenv   func(string) string
	stderr   io.Writer
	runner   hooktools.CommandRunner
	clock    clock.Clock
	hostname func() (string, error)
}

func main() {
	os.Exit(Main(options{
		getenv:   os.Getenv,
		stderr:   os.Stderr,
		runner:   hooktools.DefaultRunner,
		clock:    clock.WallClock,
		hostname: os.Hostname,
	}))
}

// Main runs the hook described by the environment and returns the exit
// code.
func Main(opts options) (code int) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Criticalf("Unhandled panic: \n%v\n%s", r, buf)
			code = exitPanic
		}
	}()

	env, err := hook.ReadEnvironment(opts.getenv)
	if errors.Is(err, errors.NotSupported) {
		fmt.Fprintf(opts.stderr, "ignoring: %v\n", err)
		return 0
	} else if err != nil {
		fmt.Fprintf(opts.stderr, "ERROR %v\n", err)
		return exitError
	}

	err = runHook(env, opts)
	switch {
	case dispatch.IsFatal(err):
		logger.Criticalf("%v", err)
		return exitError
	case err != nil:
		logger.Errorf("%s failed: %v", env.Info, err)
		return exitError
	}
	return 0
}

func runHook(env hook.Environment, opts options) error {
	tools, err := hooktools.NewClient(hooktools.Config{
		Runner:     opts.runner,
		Clock:      opts.clock,
		WorkingDir: env.CharmDir,
	})
	if err != nil {
		return errors.Trace(err)
	}
	forward := logging.NewWriter(tools, "slurmctld.hooktools")
	if err := logging.Setup(opts.stderr, forward, charm.DefaultLogLevel); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("running %s for %s", env.Info, env.UnitName)

	cfg, err := readConfig(env.CharmDir, tools)
	if err != nil {
		return errors.Trace(err)
	}
	if err := logging.Configure(cfg.LogLevel); err != nil {
		return errors.Trace(err)
	}

	store := unitstate.NewStore(stateBackend(env, opts.getenv, tools))
	state, err := store.Load()
	if err != nil {
		return errors.Trace(err)
	}

	rt, err := relation.NewHookToolsRuntime(tools, env.UnitName)
	if err != nil {
		return errors.Trace(err)
	}
	ctrl, err := controller.New(controller.Config{
		UnitName: env.UnitName,
		Port:     cfg.Port,
		Hostname: opts.hostname,
		Store:    store,
		State:    state,
	})
	if err != nil {
		return errors.Trace(err)
	}
	policy, err := election.PolicyByName(cfg.PromotionPolicy)
	if err != nil {
		return errors.Trace(err)
	}
	engine, err := election.NewEngine(election.Config{
		RelationName:         peerRelation,
		Runtime:              rt,
		Controller:           ctrl,
		Policy:               policy,
		ReconcileOnDeparture: cfg.ReconcileOnDeparture,
	})
	if err != nil {
		return errors.Trace(err)
	}
	nodes, err := slurmd.New(slurmd.Config{
		RelationName: slurmdRelation,
		Runtime:      rt,
		Hostname:     ctrl.Hostname(),
	})
	if err != nil {
		return errors.Trace(err)
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Relations: []dispatch.RelationHandler{engine, nodes},
		Hooks: map[hook.Kind]dispatch.HandlerFunc{
			hook.LeaderElected: engine.LeaderElected,
			hook.UpdateStatus: func(hook.Info) (hook.Outcome, error) {
				logger.Infof("%s controller type %q", env.UnitName, ctrl.ControllerType())
				return hook.Applied, nil
			},
			hook.ConfigChanged: func(hook.Info) (hook.Outcome, error) {
				logger.Infof("port %s, promotion policy %s, reconcile on departure %v",
					cfg.Port, cfg.PromotionPolicy, cfg.ReconcileOnDeparture)
				return hook.Applied, nil
			},
		},
		Runtime:  rt,
		Store:    store,
		State:    state,
		LockName: dispatch.LockName(env.UnitName),
		Clock:    opts.clock,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(dispatcher.Dispatch(env.Info))
}

// readConfig checks the charm declares the relations handled, and reads
// the application config over the defaults of config.yaml.
func readConfig(charmDir string, tools *hooktools.Client) (charm.Config, error) {
	metaFile, err := os.Open(filepath.Join(charmDir, "metadata.yaml"))
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	defer metaFile.Close()
	meta, err := charm.ReadMeta(metaFile)
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	for _, name := range []string{peerRelation, slurmdRelation} {
		if err := meta.CheckPeer(name); err != nil {
			return charm.Config{}, errors.Trace(err)
		}
	}

	configFile, err := os.Open(filepath.Join(charmDir, "config.yaml"))
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	defer configFile.Close()
	schema, err := charm.ReadConfig(configFile)
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	values, err := tools.ConfigGet()
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	settings, err := schema.Settings(values)
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	cfg, err := charm.ParseConfig(settings)
	if err != nil {
		return charm.Config{}, errors.Trace(err)
	}
	return cfg, errors.Trace(cfg.Validate())
}

// stateBackend keeps the unit state in the controller when the agent
// supports it, and in the charm directory otherwise.
func stateBackend(env hook.Environment, getenv func(string) string, tools *hooktools.Client) unitstate.Backend {
	agentVersion, err := version.Parse(getenv("JUJU_VERSION"))
	if err == nil && agentVersion.Compare(minStateVersion) >= 0 {
		return unitstate.NewControllerBackend(tools)
	}
	path := filepath.Join(env.CharmDir, stateFile)
	logger.Debugf("agent version %q, keeping unit state in %s", getenv("JUJU_VERSION"), path)
	return unitstate.NewFileBackend(path)
}
