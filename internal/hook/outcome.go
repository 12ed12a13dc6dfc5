// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

// Outcome is the result of handling a hook.
type Outcome int

const (
	// Applied means the hook ran to completion and its writes were made.
	Applied Outcome = iota

	// Deferred means the hook could not complete yet. Nothing was
	// written, and the hook must be run again later.
	Deferred

	// Fatal means the hook found the unit's data in a state it cannot
	// recover from. Nothing was written, and the process must exit with
	// an error.
	Fatal
)

// String is part of fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Deferred:
		return "deferred"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}
