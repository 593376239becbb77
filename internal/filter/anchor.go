package filter

import (
	"path/filepath"

	"github.com/dyluth/aura/pkg/board"
)

// Criteria defines filtering criteria for anchors.
// All filters are ANDed together - an anchor must match ALL criteria to pass.
type Criteria struct {
	IDGlob string // Glob pattern for the anchor ID, empty = no filter
	Domain string // Anchor must carry at least one aura in this domain, empty = no filter
}

// Matches returns true if the anchor matches all filter criteria.
// Empty criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(a *board.Anchor) bool {
	if c.IDGlob != "" {
		matched, err := filepath.Match(c.IDGlob, a.ID)
		if err != nil || !matched {
			return false
		}
	}

	// A malformed list counts as empty, the same as the engine treats it.
	if c.Domain != "" {
		entries, err := a.SpecList(c.Domain)
		if err != nil || len(entries) == 0 {
			return false
		}
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.IDGlob != "" || c.Domain != ""
}
