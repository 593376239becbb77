package board

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// AuraSpecEntry is one aura on an anchor's spec list. SpecID is generated once
// at creation and is the only field that identifies an entry across edits.
type AuraSpecEntry struct {
	SpecID string
	Style  Style
	Radius float64 // Board distance units
}

// NewSpecEntry creates an entry with a fresh spec ID.
func NewSpecEntry(style Style, radius float64) AuraSpecEntry {
	return AuraSpecEntry{
		SpecID: uuid.New().String(),
		Style:  style,
		Radius: radius,
	}
}

type specEntryWire struct {
	SpecID string          `json:"id"`
	Style  json.RawMessage `json:"style"`
	Radius float64         `json:"radius"`
}

// MarshalJSON encodes the entry with its tagged style.
func (e AuraSpecEntry) MarshalJSON() ([]byte, error) {
	style, err := MarshalStyle(e.Style)
	if err != nil {
		return nil, err
	}
	return json.Marshal(specEntryWire{SpecID: e.SpecID, Style: style, Radius: e.Radius})
}

// UnmarshalJSON decodes the entry and its tagged style.
func (e *AuraSpecEntry) UnmarshalJSON(data []byte) error {
	var w specEntryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	style, err := UnmarshalStyle(w.Style)
	if err != nil {
		return err
	}
	e.SpecID = w.SpecID
	e.Style = style
	e.Radius = w.Radius
	return nil
}

// Validate checks the entry's identity and style. Radius is not range-checked;
// a non-positive radius fails when the artifact is built.
func (e *AuraSpecEntry) Validate() error {
	if !isValidUUID(e.SpecID) {
		return fmt.Errorf("invalid spec ID %q: not a valid UUID", e.SpecID)
	}
	if e.Style == nil {
		return fmt.Errorf("spec %s: style cannot be nil", e.SpecID)
	}
	if err := e.Style.Validate(); err != nil {
		return fmt.Errorf("spec %s: invalid %s style: %w", e.SpecID, e.Style.Tag(), err)
	}
	return nil
}

// ValidateSpecList checks every entry and that spec IDs are unique.
func ValidateSpecList(entries []AuraSpecEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[entries[i].SpecID]; dup {
			return fmt.Errorf("duplicate spec ID %s", entries[i].SpecID)
		}
		seen[entries[i].SpecID] = struct{}{}
	}
	return nil
}

const specListSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "style", "radius"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "radius": {"type": "number"},
      "style": {
        "type": "object",
        "required": ["tag"],
        "properties": {
          "tag": {"enum": ["simple", "glow", "bubble", "fade", "fuzzy", "particles"]},
          "color": {"type": "string", "pattern": "^#[0-9a-fA-F]{6}$"},
          "fill_color": {"type": "string", "pattern": "^#[0-9a-fA-F]{6}$"},
          "stroke_color": {"type": "string", "pattern": "^#[0-9a-fA-F]{6}$"},
          "opacity": {"type": "number", "minimum": 0, "maximum": 1},
          "fill_opacity": {"type": "number", "minimum": 0, "maximum": 1},
          "stroke_opacity": {"type": "number", "minimum": 0, "maximum": 1},
          "stroke_width": {"type": "number", "minimum": 0},
          "stroke_dash": {"type": "array", "items": {"type": "number", "minimum": 0}}
        }
      }
    }
  }
}`

var specListSchema = mustCompileSchema(specListSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("board: invalid built-in schema: %v", err))
	}
	return schema
}

// DecodeSpecList validates raw metadata against the spec list schema and
// decodes it. An absent list decodes to an empty slice.
func DecodeSpecList(raw json.RawMessage) ([]AuraSpecEntry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []AuraSpecEntry{}, nil
	}

	result, err := specListSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("spec list is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("spec list failed schema validation: %s", strings.Join(problems, "; "))
	}

	var entries []AuraSpecEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode spec list: %w", err)
	}
	if entries == nil {
		entries = []AuraSpecEntry{}
	}
	if err := ValidateSpecList(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SpecList returns the anchor's spec list for a domain.
func (a *Anchor) SpecList(domain string) ([]AuraSpecEntry, error) {
	return DecodeSpecList(a.Metadata[SpecListKey(domain)])
}

// SetSpecList replaces the anchor's spec list for a domain.
func (a *Anchor) SetSpecList(domain string, entries []AuraSpecEntry) error {
	if err := ValidateSpecList(entries); err != nil {
		return err
	}
	if entries == nil {
		entries = []AuraSpecEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode spec list: %w", err)
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]json.RawMessage)
	}
	a.Metadata[SpecListKey(domain)] = raw
	return nil
}
