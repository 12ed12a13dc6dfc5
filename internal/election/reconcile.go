// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package election

import (
	"github.com/juju/errors"

	"github.com/juju/charm-slurmctld/internal/hook"
	"github.com/juju/charm-slurmctld/internal/relation"
)

// Input is everything a reconciliation reads.
type Input struct {
	// Leader is the local unit, which must be the application leader.
	Leader Peer

	// Prior is the application bucket as last written.
	Prior relation.Settings

	// Members is the membership snapshot, in the order the runtime
	// reports it.
	Members []string

	// Peers holds the published endpoint of the members, by unit name.
	// Members without published data may be missing.
	Peers map[string]Peer

	// Policy picks a new backup when one is needed. PromoteTail is used
	// when it is nil.
	Policy PromotionPolicy
}

// Result is the outcome of a reconciliation. Assignment and Bundle are
// only meaningful when Outcome is hook.Applied; Err says why it was not.
type Result struct {
	Outcome    hook.Outcome
	Assignment Assignment
	Bundle     EndpointBundle
	Err        error
}

// Reconcile computes the role assignment for the membership snapshot and
// the endpoint bundle to publish for it. It neither reads nor writes
// anything outside its input.
//
// The caller must hold leadership: the leader is the only writer of the
// application bucket, and it always claims the active role.
func Reconcile(in Input) Result {
	prior, err := ReadAssignment(in.Prior)
	if err != nil {
		return Result{Outcome: hook.Fatal, Err: errors.Trace(err)}
	}
	policy := in.Policy
	if policy == nil {
		policy = PromoteTail
	}

	next := Assignment{
		Active: in.Leader.Unit,
		Backup: prior.Backup,
	}

	// The leader never takes a second role, whatever the snapshot says.
	candidates := make([]string, 0, len(in.Members))
	backupPresent := false
	for _, unit := range in.Members {
		switch unit {
		case in.Leader.Unit:
		case next.Backup:
			backupPresent = true
		default:
			candidates = append(candidates, unit)
		}
	}
	if next.Backup != "" && backupPresent {
		next.Standby = candidates
	} else {
		next.Backup, next.Standby = policy(candidates)
	}

	var backup Peer
	if next.Backup != "" {
		var ok bool
		backup, ok = in.Peers[next.Backup]
		if !ok || !backup.ready() {
			return Result{
				Outcome: hook.Deferred,
				Err:     errors.Annotatef(ErrBackupNotReady, "%s has not published its endpoint", next.Backup),
			}
		}
		backup.Unit = next.Backup
	}

	return Result{
		Outcome:    hook.Applied,
		Assignment: next,
		Bundle:     NewEndpointBundle(in.Leader, backup),
	}
}
