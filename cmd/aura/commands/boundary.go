package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyluth/aura/internal/field"
	"github.com/dyluth/aura/internal/geometry"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/pkg/board"
	"github.com/spf13/cobra"
)

var (
	previewMetric          string
	previewTopology        string
	previewQuantized       bool
	previewRadius          float64
	previewFootprint       float64
	previewUnitPixelSize   float64
	previewUnitToBoardUnit float64
	previewSegments        int
	previewEffect          string
	previewOutputFormat    string
	previewRender          bool
	previewTime            float64
	previewSize            int
)

// previewRamp maps alpha to characters, faintest first.
const previewRamp = " .:-=+*#%@"

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Preview an aura boundary or effect shader offline",
	Long: `Build one aura outline locally and print its vertices, without
touching the board. With --effect, print the generated shader instead.

The radius is in board units and is converted to grid cells with
--unit-to-board-unit, the same way the engine does it.

Examples:
  # 10ft quantized aura on a 5ft square grid
  aura boundary --radius 10 --unit-to-board-unit 5 --quantized

  # Glow shader for a hex grid
  aura boundary --radius 3 --topology hex_a --effect glow

  # Draw the particles effect in the terminal at t=1.5s
  aura boundary --radius 2 --effect particles --preview --time 1.5`,
	Args: cobra.NoArgs,
	RunE: runBoundary,
}

func init() {
	defaults := board.DefaultConfig()
	f := boundaryCmd.Flags()
	f.StringVar(&previewMetric, "metric", string(defaults.Metric), "Distance metric: circular, square, diamond or alternating")
	f.StringVar(&previewTopology, "topology", string(defaults.Topology), "Grid topology: square, hex_a or hex_b")
	f.BoolVar(&previewQuantized, "quantized", defaults.Quantized, "Snap to whole grid cells")
	f.Float64Var(&previewRadius, "radius", 1, "Aura radius in board units")
	f.Float64Var(&previewFootprint, "footprint", 1, "Anchor footprint in grid cells")
	f.Float64Var(&previewUnitPixelSize, "unit-pixel-size", defaults.UnitPixelSize, "Pixels per grid cell")
	f.Float64Var(&previewUnitToBoardUnit, "unit-to-board-unit", defaults.UnitToBoardUnit, "Board distance units per grid cell")
	f.IntVar(&previewSegments, "segments", geometry.DefaultCircleSegments, "Vertices of a precise circle")
	f.StringVar(&previewEffect, "effect", "", "Print the shader for an effect style: glow, bubble, fade, fuzzy or particles")
	f.StringVarP(&previewOutputFormat, "output", "o", "default", "Output format: default or json")
	f.BoolVar(&previewRender, "preview", false, "With --effect, draw the effect as text instead of printing the shader")
	f.Float64Var(&previewTime, "time", 0, "Animation time in seconds for --preview")
	f.IntVar(&previewSize, "size", 33, "Rows and columns of the --preview drawing")

	rootCmd.AddCommand(boundaryCmd)
}

type boundaryOutput struct {
	Metric   board.Metric     `json:"metric"`
	Topology board.Topology   `json:"topology"`
	Points   []geometry.Point `json:"points"`
	Warnings []string         `json:"warnings,omitempty"`
}

func runBoundary(cmd *cobra.Command, args []string) error {
	if previewOutputFormat != "default" && previewOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", previewOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}
	if !(previewUnitToBoardUnit > 0) {
		return printer.Error(
			"invalid unit size",
			fmt.Sprintf("--unit-to-board-unit must be positive, got %g", previewUnitToBoardUnit),
			nil,
		)
	}
	radiusUnits := previewRadius / previewUnitToBoardUnit

	if previewEffect != "" {
		return printEffect(radiusUnits)
	}

	b, err := geometry.BuildBoundary(geometry.Request{
		Metric:         board.Metric(previewMetric),
		Topology:       board.Topology(previewTopology),
		RadiusUnits:    radiusUnits,
		FootprintUnits: previewFootprint,
		Quantized:      previewQuantized,
		UnitPixelSize:  previewUnitPixelSize,
		CircleSegments: previewSegments,
	})
	if err != nil {
		return printer.Error("cannot build boundary", err.Error(), nil)
	}
	for _, w := range b.Warnings {
		printer.Notice(w)
	}

	if previewOutputFormat == "json" {
		data, err := json.MarshalIndent(boundaryOutput{
			Metric:   b.Metric,
			Topology: board.Topology(previewTopology),
			Points:   b.Points,
			Warnings: b.Warnings,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode boundary: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Info("%s boundary, %d vertices\n", b.Metric, len(b.Points))
	for _, p := range b.Points {
		printer.Printf("%10.3f %10.3f\n", p.X, p.Y)
	}
	return nil
}

func printEffect(radiusUnits float64) error {
	style, err := previewStyle(board.StyleTag(previewEffect))
	if err != nil {
		return printer.Error("invalid effect", err.Error(), []string{"Valid effects: glow, bubble, fade, fuzzy, particles"})
	}

	program, warnings := field.BuildDistanceField(board.Metric(previewMetric), board.Topology(previewTopology), previewQuantized)
	for _, w := range warnings {
		printer.Notice(w)
	}
	effect, err := field.Effect(style, program, field.Params{
		UnitPixelSize: previewUnitPixelSize,
		RadiusUnits:   radiusUnits,
		HalfFootprint: previewFootprint / 2,
	})
	if err != nil {
		return printer.Error("cannot build effect", err.Error(), nil)
	}

	if previewRender {
		return printEffectPreview(style, program, field.Params{
			UnitPixelSize: previewUnitPixelSize,
			RadiusUnits:   radiusUnits,
			HalfFootprint: previewFootprint / 2,
		})
	}

	if previewOutputFormat == "json" {
		data, err := json.MarshalIndent(effect, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode effect: %w", err)
		}
		printer.Println(string(data))
		return nil
	}
	printer.Println(effect.Source)
	return nil
}

// effectPreview is the JSON form of --preview: alpha per sample, rows top to
// bottom.
type effectPreview struct {
	Effect board.StyleTag `json:"effect"`
	Time   float64        `json:"time"`
	Extent float64        `json:"extent"` // Half-width of the drawing in grid units
	Alpha  [][]float64    `json:"alpha"`
}

func printEffectPreview(style board.Style, program field.Program, params field.Params) error {
	if previewSize < 3 {
		return printer.Error("invalid preview size", fmt.Sprintf("--size must be at least 3, got %d", previewSize), nil)
	}
	sampler, err := field.NewSampler(style, program, params)
	if err != nil {
		return printer.Error("cannot build effect", err.Error(), nil)
	}

	out := effectPreview{
		Effect: style.Tag(),
		Time:   previewTime,
		Extent: (params.RadiusUnits+params.HalfFootprint)*1.15 + 0.5,
	}
	step := 2 * out.Extent / float64(previewSize-1)
	for row := 0; row < previewSize; row++ {
		y := out.Extent - float64(row)*step
		line := make([]float64, previewSize)
		for col := range line {
			x := -out.Extent + float64(col)*step
			line[col] = sampler.At(geometry.Point{X: x, Y: y}, previewTime)[3]
		}
		out.Alpha = append(out.Alpha, line)
	}

	if previewOutputFormat == "json" {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode preview: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Info("%s at t=%gs, %.2f grid units across\n", out.Effect, out.Time, 2*out.Extent)
	for _, line := range out.Alpha {
		var b strings.Builder
		for _, a := range line {
			c := previewRamp[previewLevel(a)]
			b.WriteByte(c)
			b.WriteByte(c)
		}
		printer.Println(strings.TrimRight(b.String(), " "))
	}
	return nil
}

// previewLevel picks the ramp index for an alpha value.
func previewLevel(a float64) int {
	i := int(a*float64(len(previewRamp)-1) + 0.5)
	if i < 0 {
		return 0
	}
	if i >= len(previewRamp) {
		return len(previewRamp) - 1
	}
	return i
}

func previewStyle(tag board.StyleTag) (board.Style, error) {
	p := board.EffectParams{Color: "#ffffff", Opacity: 0.8}
	switch tag {
	case board.StyleGlow:
		return board.GlowStyle{EffectParams: p}, nil
	case board.StyleBubble:
		return board.BubbleStyle{EffectParams: p}, nil
	case board.StyleFade:
		return board.FadeStyle{EffectParams: p}, nil
	case board.StyleFuzzy:
		return board.FuzzyStyle{EffectParams: p}, nil
	case board.StyleParticles:
		return board.ParticlesStyle{}, nil
	}
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%s is drawn as an outline, not an effect", tag)
}
