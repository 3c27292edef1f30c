package edge

import (
	"sync/atomic"

	"github.com/vyrodovalexey/webedge/internal/banners"
	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/rules"
)

// Snapshot is the immutable state served for one version of the site.
type Snapshot struct {
	Site    string
	Table   *rules.Table
	Catalog *banners.Catalog
	Menu    config.MenuConfig
}

// Holder publishes the current snapshot to request handlers. Reloads
// store a brand-new snapshot; a snapshot in use is never mutated.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder creates a holder serving snap.
func NewHolder(snap *Snapshot) *Holder {
	h := &Holder{}
	h.Store(snap)
	return h
}

// Load returns the current snapshot, or nil before the first Store.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Store replaces the current snapshot.
func (h *Holder) Store(snap *Snapshot) {
	h.current.Store(snap)
}
