// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package election

import (
	"github.com/juju/errors"
	"github.com/juju/naturalsort"
)

// PromotionPolicy picks the backup controller out of the candidate units,
// which are in membership order. The remaining candidates, still in
// membership order, become the standby list. With no candidates it
// returns "" and an empty list.
type PromotionPolicy func(candidates []string) (backup string, standby []string)

// PromoteTail promotes the last candidate. Which unit that is depends on
// the order the runtime lists members in, so it is not reproducible
// across membership changes.
func PromoteTail(candidates []string) (string, []string) {
	if len(candidates) == 0 {
		return "", []string{}
	}
	last := len(candidates) - 1
	standby := append([]string{}, candidates[:last]...)
	return candidates[last], standby
}

// PromoteNatural promotes the lowest candidate in natural order, so
// "slurmctld/2" is promoted before "slurmctld/10".
func PromoteNatural(candidates []string) (string, []string) {
	if len(candidates) == 0 {
		return "", []string{}
	}
	sorted := append([]string{}, candidates...)
	naturalsort.Sort(sorted)
	backup := sorted[0]
	standby := make([]string, 0, len(candidates)-1)
	for _, unit := range candidates {
		if unit != backup {
			standby = append(standby, unit)
		}
	}
	return backup, standby
}

// PolicyByName returns the promotion policy for a promotion-policy config
// value.
func PolicyByName(name string) (PromotionPolicy, error) {
	switch name {
	case "", "tail":
		return PromoteTail, nil
	case "natural":
		return PromoteNatural, nil
	}
	return nil, errors.NotValidf("promotion policy %q", name)
}
