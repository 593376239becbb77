package board

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleRoundTrip(t *testing.T) {
	styles := []Style{
		SimpleStyle{FillColor: "#102030", FillOpacity: 0.5, StrokeColor: "#ffffff", StrokeOpacity: 1, StrokeWidth: 3, StrokeDash: []float64{8, 4}},
		GlowStyle{EffectParams{Color: "#ffcc00", Opacity: 0.6}},
		BubbleStyle{EffectParams{Color: "#00ccff", Opacity: 0.4}},
		FadeStyle{EffectParams{Color: "#ff00ff", Opacity: 1}},
		FuzzyStyle{EffectParams{Color: "#000000", Opacity: 0}},
		ParticlesStyle{},
	}

	for _, s := range styles {
		t.Run(string(s.Tag()), func(t *testing.T) {
			data, err := MarshalStyle(s)
			require.NoError(t, err)

			var fields map[string]any
			require.NoError(t, json.Unmarshal(data, &fields))
			assert.Equal(t, string(s.Tag()), fields["tag"])

			got, err := UnmarshalStyle(data)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestEffectStylesAreFlat(t *testing.T) {
	data, err := MarshalStyle(GlowStyle{EffectParams{Color: "#ffcc00", Opacity: 0.6}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"glow","color":"#ffcc00","opacity":0.6}`, string(data))
}

func TestUnmarshalStyle_Errors(t *testing.T) {
	_, err := UnmarshalStyle([]byte(`{"tag":"sparkle"}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown style tag")

	_, err = UnmarshalStyle([]byte(`[]`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read style tag")

	_, err = UnmarshalStyle([]byte(`{"tag":"glow","opacity":"high"}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode glow style")

	_, err = MarshalStyle(nil)
	assert.Error(t, err)
}

func TestStyleValidate(t *testing.T) {
	valid := SimpleStyle{FillColor: "#ffffff", FillOpacity: 0.2, StrokeColor: "#ffffff", StrokeOpacity: 1, StrokeWidth: 2}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		style   Style
		wantErr string
	}{
		{"bad fill colour", func() Style { s := valid; s.FillColor = "white"; return s }(), "fill_color must be #rrggbb"},
		{"short stroke colour", func() Style { s := valid; s.StrokeColor = "#fff"; return s }(), "stroke_color must be #rrggbb"},
		{"opacity above one", func() Style { s := valid; s.FillOpacity = 1.5; return s }(), "fill_opacity must be within [0,1]"},
		{"negative stroke width", func() Style { s := valid; s.StrokeWidth = -1; return s }(), "stroke_width must be >= 0"},
		{"negative dash", func() Style { s := valid; s.StrokeDash = []float64{4, -2}; return s }(), "stroke_dash[1] must be >= 0"},
		{"effect colour", GlowStyle{EffectParams{Color: "", Opacity: 0.5}}, "color must be #rrggbb"},
		{"effect opacity", FadeStyle{EffectParams{Color: "#000000", Opacity: -0.1}}, "opacity must be within [0,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.style.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, ParticlesStyle{}.Validate())
}

func TestStyleTag(t *testing.T) {
	assert.NoError(t, StyleBubble.Validate())
	assert.Error(t, StyleTag("sparkle").Validate())
	assert.False(t, StyleSimple.IsEffect())
	assert.True(t, StyleParticles.IsEffect())
}

func TestNewSpecEntry(t *testing.T) {
	a := testEntry(10)
	b := testEntry(10)

	_, err := uuid.Parse(a.SpecID)
	assert.NoError(t, err)
	assert.NotEqual(t, a.SpecID, b.SpecID)
	assert.NoError(t, a.Validate())
}

func TestAuraSpecEntry_Validate(t *testing.T) {
	t.Run("invalid spec id", func(t *testing.T) {
		e := testEntry(10)
		e.SpecID = "not-a-uuid"
		err := e.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a valid UUID")
	})

	t.Run("nil style", func(t *testing.T) {
		e := testEntry(10)
		e.Style = nil
		err := e.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "style cannot be nil")
	})

	t.Run("invalid style", func(t *testing.T) {
		e := NewSpecEntry(GlowStyle{EffectParams{Color: "red", Opacity: 1}}, 10)
		err := e.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid glow style")
	})

	t.Run("radius is not range-checked", func(t *testing.T) {
		e := testEntry(0)
		assert.NoError(t, e.Validate())
	})
}

func TestDecodeSpecList(t *testing.T) {
	t.Run("absent list is empty", func(t *testing.T) {
		for _, raw := range []json.RawMessage{nil, json.RawMessage("null"), json.RawMessage("[]")} {
			entries, err := DecodeSpecList(raw)
			require.NoError(t, err)
			assert.NotNil(t, entries)
			assert.Empty(t, entries)
		}
	})

	t.Run("decodes entries in order", func(t *testing.T) {
		first, second := testEntry(10), NewSpecEntry(ParticlesStyle{}, 20)
		raw, err := json.Marshal([]AuraSpecEntry{first, second})
		require.NoError(t, err)

		entries, err := DecodeSpecList(raw)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, first.SpecID, entries[0].SpecID)
		assert.Equal(t, 20.0, entries[1].Radius)
		assert.Equal(t, StyleParticles, entries[1].Style.Tag())
	})

	schemaFailures := []struct {
		name string
		raw  string
	}{
		{"not an array", `{"id":"x"}`},
		{"missing radius", `[{"id":"` + uuid.NewString() + `","style":{"tag":"particles"}}]`},
		{"unknown tag", `[{"id":"` + uuid.NewString() + `","radius":5,"style":{"tag":"sparkle"}}]`},
		{"bad colour", `[{"id":"` + uuid.NewString() + `","radius":5,"style":{"tag":"glow","color":"red","opacity":1}}]`},
		{"opacity out of range", `[{"id":"` + uuid.NewString() + `","radius":5,"style":{"tag":"glow","color":"#ffffff","opacity":3}}]`},
	}
	for _, tt := range schemaFailures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSpecList(json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema validation")
		})
	}

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := DecodeSpecList(json.RawMessage(`[{`))
		require.Error(t, err)
	})

	t.Run("invalid spec id", func(t *testing.T) {
		_, err := DecodeSpecList(json.RawMessage(`[{"id":"abc","radius":5,"style":{"tag":"particles"}}]`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a valid UUID")
	})

	t.Run("duplicate spec ids", func(t *testing.T) {
		id := uuid.NewString()
		raw := `[{"id":"` + id + `","radius":5,"style":{"tag":"particles"}},{"id":"` + id + `","radius":6,"style":{"tag":"particles"}}]`
		_, err := DecodeSpecList(json.RawMessage(raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate spec ID")
	})
}

func TestAnchorSpecList(t *testing.T) {
	anchor := testAnchor("paladin")

	entries, err := anchor.SpecList("aura")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entry := testEntry(10)
	require.NoError(t, anchor.SetSpecList("aura", []AuraSpecEntry{entry}))
	assert.Contains(t, anchor.Metadata, "com.aura/specs")

	entries, err = anchor.SpecList("aura")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.SpecID, entries[0].SpecID)

	other, err := anchor.SpecList("emanation")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, anchor.SetSpecList("aura", nil))
	assert.JSONEq(t, `[]`, string(anchor.Metadata["com.aura/specs"]))

	err = anchor.SetSpecList("aura", []AuraSpecEntry{entry, entry})
	assert.Error(t, err)
}
