// Package menustatus derives the sparse navigation status map shown next
// to menu items.
package menustatus

import (
	"github.com/vyrodovalexey/webedge/internal/config"
)

// Menu item keys.
const (
	PoolsKey = "/pools"
	IFOKey   = "/ifo"
)

// StatusLockEnd marks the pools item once the user's stake is locked.
const StatusLockEnd = "lock_end"

// StatusMap maps a menu item key to its status tag. A missing key means
// the item has no status.
type StatusMap map[string]string

// Signals are the external inputs of the lookup.
type Signals struct {
	UserLocked   bool
	CurrentBlock uint64
	IFO          config.IFOConfig
}

// StatusOf returns the status of every menu item whose condition holds.
// The result is never nil.
func StatusOf(s Signals) StatusMap {
	m := make(StatusMap)

	if s.UserLocked {
		m[PoolsKey] = StatusLockEnd
	}

	if ifoActive(s) {
		m[IFOKey] = s.IFO.Status
	}

	return m
}

// ifoActive reports whether the IFO status applies at the current block.
func ifoActive(s Signals) bool {
	if s.IFO.Status == "" || s.CurrentBlock == 0 {
		return false
	}
	return s.IFO.EndBlock == 0 || s.CurrentBlock <= s.IFO.EndBlock
}
