package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ErrInvalidConfig is returned when a board configuration fails validation.
var ErrInvalidConfig = errors.New("invalid board configuration")

// Metric selects the distance function used to measure board distance.
type Metric string

const (
	// MetricCircular is Euclidean distance.
	MetricCircular Metric = "circular"

	// MetricSquare is king-move (Chebyshev) distance. On hex topologies it is
	// the hex-step distance.
	MetricSquare Metric = "square"

	// MetricDiamond is taxicab (Manhattan) distance.
	MetricDiamond Metric = "diamond"

	// MetricAlternating charges diagonals 1-2-1-2, producing a flattened octagon.
	MetricAlternating Metric = "alternating"
)

// Topology is the grid layout of the board.
type Topology string

const (
	// TopologySquare is a square grid.
	TopologySquare Topology = "square"

	// TopologyHexA is a pointy-top hex grid (hexes in offset rows).
	TopologyHexA Topology = "hex_a"

	// TopologyHexB is a flat-top hex grid (hexes in offset columns).
	TopologyHexB Topology = "hex_b"
)

// Validate checks if the Metric is a valid enum value.
func (m Metric) Validate() error {
	switch m {
	case MetricCircular, MetricSquare, MetricDiamond, MetricAlternating:
		return nil
	default:
		return fmt.Errorf("unknown metric: %q", m)
	}
}

// Validate checks if the Topology is a valid enum value.
func (t Topology) Validate() error {
	switch t {
	case TopologySquare, TopologyHexA, TopologyHexB:
		return nil
	default:
		return fmt.Errorf("unknown topology: %q", t)
	}
}

// IsHex reports whether the topology is one of the hex layouts.
func (t Topology) IsHex() bool {
	return t == TopologyHexA || t == TopologyHexB
}

// Config is the shared, global board configuration. Any change to it
// invalidates every rendered aura.
type Config struct {
	Metric          Metric   `json:"metric"`
	Topology        Topology `json:"topology"`
	Quantized       bool     `json:"quantized"`
	UnitPixelSize   float64  `json:"unit_pixel_size"`    // Pixels per grid cell
	UnitToBoardUnit float64  `json:"unit_to_board_unit"` // Board distance units per grid cell (e.g. 5 for 5ft)
}

// DefaultConfig returns the configuration used when the room has none stored.
func DefaultConfig() Config {
	return Config{
		Metric:          MetricCircular,
		Topology:        TopologySquare,
		Quantized:       false,
		UnitPixelSize:   150,
		UnitToBoardUnit: 1,
	}
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	if err := c.Metric.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Topology.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !(c.UnitPixelSize > 0) || math.IsInf(c.UnitPixelSize, 0) {
		return fmt.Errorf("%w: unit_pixel_size must be > 0, got %v", ErrInvalidConfig, c.UnitPixelSize)
	}
	if !(c.UnitToBoardUnit > 0) || math.IsInf(c.UnitToBoardUnit, 0) {
		return fmt.Errorf("%w: unit_to_board_unit must be > 0, got %v", ErrInvalidConfig, c.UnitToBoardUnit)
	}
	return nil
}

// RadiusUnits converts a radius in board distance units into grid cells.
func (c Config) RadiusUnits(radius float64) float64 {
	if c.UnitToBoardUnit <= 0 {
		return radius
	}
	return radius / c.UnitToBoardUnit
}

// Vector is a 2D position or scale on the board.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Anchor is a token on the board that can own aura spec entries.
// Metadata holds named attached data; spec lists live under SpecListKey.
type Anchor struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	Position  Vector                     `json:"position"`
	Scale     Vector                     `json:"scale"`
	Footprint float64                    `json:"footprint"` // Token size in grid cells at scale 1
	Metadata  map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks the anchor has an identity and a usable footprint.
func (a *Anchor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("anchor ID cannot be empty")
	}
	if a.Footprint < 0 || math.IsNaN(a.Footprint) {
		return fmt.Errorf("anchor %s: footprint must be >= 0, got %v", a.ID, a.Footprint)
	}
	return nil
}

// FootprintUnits is the token footprint in grid cells after visual scaling.
func (a *Anchor) FootprintUnits() float64 {
	s := math.Max(math.Abs(a.Scale.X), math.Abs(a.Scale.Y))
	return a.Footprint * s
}

// SpecListKey returns the metadata key holding a domain's spec list.
// Pattern: com.{domain}/specs
func SpecListKey(domain string) string {
	return fmt.Sprintf("com.%s/specs", domain)
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
