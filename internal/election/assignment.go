// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package election

import (
	"encoding/json"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-slurmctld/internal/relation"
)

// Keys of the role assignment in the application bucket.
const (
	KeyActiveController   = "active_controller"
	KeyBackupController   = "backup_controller"
	KeyStandbyControllers = "standby_controllers"
)

// Roles a unit can hold.
const (
	RoleActive  = "active"
	RoleBackup  = "backup"
	RoleStandby = "standby"
)

const (
	// ErrCorruptAssignment is returned when the role assignment in the
	// application bucket cannot be decoded.
	ErrCorruptAssignment = errors.ConstError("corrupt role assignment")

	// ErrBackupNotReady is returned when the backup controller has not
	// published its endpoint yet.
	ErrBackupNotReady = errors.ConstError("backup controller not ready")
)

// Assignment is the controller role of every unit, as held by the leader
// in the application bucket.
type Assignment struct {
	// Active is the unit serving as primary controller.
	Active string

	// Backup is the unit designated as hot standby, or "".
	Backup string

	// Standby lists the units eligible for promotion to backup, in
	// membership order.
	Standby []string
}

// ReadAssignment decodes the assignment held in an application bucket.
// A missing standby list reads as empty; one that is not a JSON array
// of strings is ErrCorruptAssignment.
func ReadAssignment(settings relation.Settings) (Assignment, error) {
	a := Assignment{
		Active:  settings.Get(KeyActiveController),
		Backup:  settings.Get(KeyBackupController),
		Standby: []string{},
	}
	raw := settings.Get(KeyStandbyControllers)
	if raw == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(raw), &a.Standby); err != nil {
		return Assignment{}, errors.Annotatef(ErrCorruptAssignment, "%s %q: %v", KeyStandbyControllers, raw, err)
	}
	if a.Standby == nil {
		a.Standby = []string{}
	}
	return a, nil
}

// Settings encodes the assignment for the application bucket.
func (a Assignment) Settings() relation.Settings {
	standby := a.Standby
	if standby == nil {
		standby = []string{}
	}
	data, _ := json.Marshal(standby)
	return relation.Settings{
		KeyActiveController:   a.Active,
		KeyBackupController:   a.Backup,
		KeyStandbyControllers: string(data),
	}
}

// RoleOf returns the role held by unit, or "" if it holds none.
func (a Assignment) RoleOf(unit string) string {
	switch {
	case unit == "":
		return ""
	case unit == a.Active:
		return RoleActive
	case unit == a.Backup:
		return RoleBackup
	}
	for _, standby := range a.Standby {
		if standby == unit {
			return RoleStandby
		}
	}
	return ""
}

// Validate checks the assignment against a membership snapshot: the
// backup and every standby must be members, and no unit may hold more
// than one role.
func (a Assignment) Validate(members []string) error {
	live := set.NewStrings(members...)
	seen := set.NewStrings()
	if a.Active != "" {
		seen.Add(a.Active)
	}
	if a.Backup != "" {
		if !live.Contains(a.Backup) {
			return errors.NotValidf("backup %q not a member", a.Backup)
		}
		if seen.Contains(a.Backup) {
			return errors.NotValidf("backup %q also active", a.Backup)
		}
		seen.Add(a.Backup)
	}
	for _, standby := range a.Standby {
		if !live.Contains(standby) {
			return errors.NotValidf("standby %q not a member", standby)
		}
		if seen.Contains(standby) {
			return errors.NotValidf("standby %q holds another role", standby)
		}
		seen.Add(standby)
	}
	return nil
}

// Peer is the endpoint a unit publishes in its own relation bucket.
type Peer struct {
	Unit           string
	Hostname       string
	Port           string
	IngressAddress string
}

// PeerFromSettings reads a unit's endpoint from its relation bucket.
func PeerFromSettings(unit string, settings relation.Settings) Peer {
	return Peer{
		Unit:           unit,
		Hostname:       settings.Get(relation.KeyHostname),
		Port:           settings.Get(relation.KeyPort),
		IngressAddress: settings.Get(relation.KeyIngressAddress),
	}
}

// ready reports whether the peer has published enough to be connected to.
func (p Peer) ready() bool {
	return p.Hostname != "" && p.Port != ""
}

// EndpointBundle is the connection information of the active and backup
// controllers. The backup fields are empty when there is no backup.
type EndpointBundle struct {
	ActiveHostname       string `json:"active_controller_hostname"`
	ActivePort           string `json:"active_controller_port"`
	ActiveIngressAddress string `json:"active_controller_ingress_address"`
	BackupHostname       string `json:"backup_controller_hostname"`
	BackupPort           string `json:"backup_controller_port"`
	BackupIngressAddress string `json:"backup_controller_ingress_address"`
}

// NewEndpointBundle builds the bundle for an active controller and an
// optional backup, which is ignored when its Unit is empty.
func NewEndpointBundle(active, backup Peer) EndpointBundle {
	bundle := EndpointBundle{
		ActiveHostname:       active.Hostname,
		ActivePort:           active.Port,
		ActiveIngressAddress: active.IngressAddress,
	}
	if backup.Unit != "" {
		bundle.BackupHostname = backup.Hostname
		bundle.BackupPort = backup.Port
		bundle.BackupIngressAddress = backup.IngressAddress
	}
	return bundle
}
