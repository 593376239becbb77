package filter

import (
	"encoding/json"
	"testing"

	"github.com/dyluth/aura/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anchorWithAuras(t *testing.T, id, domain string, n int) *board.Anchor {
	t.Helper()
	a := &board.Anchor{ID: id, Scale: board.Vector{X: 1, Y: 1}, Footprint: 1}
	entries := make([]board.AuraSpecEntry, n)
	for i := range entries {
		entries[i] = board.NewSpecEntry(board.ParticlesStyle{}, 5)
	}
	require.NoError(t, a.SetSpecList(domain, entries))
	return a
}

func TestCriteria_Matches(t *testing.T) {
	goblin := anchorWithAuras(t, "goblin-1", "aura", 2)
	ogre := anchorWithAuras(t, "ogre", "aura", 0)
	broken := &board.Anchor{ID: "goblin-2", Metadata: map[string]json.RawMessage{
		board.SpecListKey("aura"): json.RawMessage(`{"not":"a list"}`),
	}}

	tests := []struct {
		name     string
		criteria Criteria
		anchor   *board.Anchor
		want     bool
	}{
		{"no filters", Criteria{}, ogre, true},
		{"glob matches", Criteria{IDGlob: "goblin-*"}, goblin, true},
		{"glob misses", Criteria{IDGlob: "goblin-*"}, ogre, false},
		{"bad glob never matches", Criteria{IDGlob: "[goblin"}, goblin, false},
		{"domain with auras", Criteria{Domain: "aura"}, goblin, true},
		{"domain without auras", Criteria{Domain: "aura"}, ogre, false},
		{"other domain", Criteria{Domain: "emanation"}, goblin, false},
		{"malformed list is empty", Criteria{Domain: "aura"}, broken, false},
		{"both must match", Criteria{IDGlob: "goblin-*", Domain: "aura"}, broken, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(tt.anchor))
		})
	}
}

func TestCriteria_HasFilters(t *testing.T) {
	assert.False(t, (&Criteria{}).HasFilters())
	assert.True(t, (&Criteria{IDGlob: "*"}).HasFilters())
	assert.True(t, (&Criteria{Domain: "aura"}).HasFilters())
}
