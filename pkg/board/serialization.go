package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Scalars are stored as individual hash fields; attached metadata is a single
// JSON-encoded field so writers can add their own named entries.

// AnchorToHash converts an Anchor to a Redis hash.
func AnchorToHash(a *Anchor) (map[string]interface{}, error) {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]json.RawMessage{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return map[string]interface{}{
		"id":        a.ID,
		"name":      a.Name,
		"x":         a.Position.X,
		"y":         a.Position.Y,
		"scale_x":   a.Scale.X,
		"scale_y":   a.Scale.Y,
		"footprint": a.Footprint,
		"metadata":  string(metadataJSON),
	}, nil
}

// HashToAnchor converts a Redis hash to an Anchor.
func HashToAnchor(hash map[string]string) (*Anchor, error) {
	floats := make(map[string]float64, 5)
	for _, field := range []string{"x", "y", "scale_x", "scale_y", "footprint"} {
		raw, ok := hash[field]
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", field, err)
		}
		floats[field] = v
	}

	// An unscaled token has scale 1.
	for _, field := range []string{"scale_x", "scale_y"} {
		if _, ok := floats[field]; !ok {
			floats[field] = 1
		}
	}

	metadata := map[string]json.RawMessage{}
	if metadataJSON := hash["metadata"]; metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &Anchor{
		ID:        hash["id"],
		Name:      hash["name"],
		Position:  Vector{X: floats["x"], Y: floats["y"]},
		Scale:     Vector{X: floats["scale_x"], Y: floats["scale_y"]},
		Footprint: floats["footprint"],
		Metadata:  metadata,
	}, nil
}

// ConfigToHash converts a board Config to a Redis hash.
func ConfigToHash(c Config) map[string]interface{} {
	return map[string]interface{}{
		"metric":             string(c.Metric),
		"topology":           string(c.Topology),
		"quantized":          strconv.FormatBool(c.Quantized),
		"unit_pixel_size":    c.UnitPixelSize,
		"unit_to_board_unit": c.UnitToBoardUnit,
	}
}

// HashToConfig converts a Redis hash to a board Config. Missing fields take
// their DefaultConfig values.
func HashToConfig(hash map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if v := hash["metric"]; v != "" {
		cfg.Metric = Metric(v)
	}
	if v := hash["topology"]; v != "" {
		cfg.Topology = Topology(v)
	}
	if v := hash["quantized"]; v != "" {
		q, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid quantized field: %w", err)
		}
		cfg.Quantized = q
	}
	if v := hash["unit_pixel_size"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid unit_pixel_size field: %w", err)
		}
		cfg.UnitPixelSize = f
	}
	if v := hash["unit_to_board_unit"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid unit_to_board_unit field: %w", err)
		}
		cfg.UnitToBoardUnit = f
	}
	return cfg, nil
}
