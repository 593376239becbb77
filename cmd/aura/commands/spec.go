package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/aura/internal/config"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/internal/resolver"
	"github.com/dyluth/aura/pkg/board"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	specDomain        string
	specStyle         string
	specRadius        float64
	specColor         string
	specOpacity       float64
	specFillColor     string
	specFillOpacity   float64
	specStrokeColor   string
	specStrokeOpacity float64
	specStrokeWidth   float64
	specStrokeDash    []float64
	specOutputFormat  string
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Manage the auras attached to an anchor",
	Long: `Add, edit and remove aura spec entries on an anchor.

Each entry has a stable spec ID, a style and a radius in board distance
units. Spec IDs may be abbreviated to any unique prefix of at least 6
characters.

Styles:
  simple     - outline polygon (--fill-color, --fill-opacity, --stroke-*)
  glow       - soft glow fading to the edge (--color, --opacity)
  bubble     - translucent bubble with a bright rim (--color, --opacity)
  fade       - flat fill fading to the edge (--color, --opacity)
  fuzzy      - dithered per-cell edge (--color, --opacity)
  particles  - orbiting glints, no parameters`,
}

var specAddCmd = &cobra.Command{
	Use:   "add ANCHOR_ID",
	Short: "Attach a new aura to an anchor",
	Long: `Attach a new aura to an anchor.

Examples:
  # A 10ft red outline
  aura spec add goblin-1 --style simple --radius 10 --stroke-color "#ff0000"

  # A 15ft golden glow in the emanation domain
  aura spec add goblin-1 --domain emanation --style glow --radius 15 --color "#ffcc00"`,
	Args: cobra.ExactArgs(1),
	RunE: runSpecAdd,
}

var specSetCmd = &cobra.Command{
	Use:   "set ANCHOR_ID SPEC_ID",
	Short: "Change an aura's style or radius",
	Long: `Change the fields given as flags on an existing aura. Changing only
colours or opacities repaints the rendered aura in place; changing the
style or radius rebuilds it.`,
	Args: cobra.ExactArgs(2),
	RunE: runSpecSet,
}

var specRmCmd = &cobra.Command{
	Use:   "rm ANCHOR_ID SPEC_ID",
	Short: "Remove an aura from an anchor",
	Args:  cobra.ExactArgs(2),
	RunE:  runSpecRm,
}

var specLsCmd = &cobra.Command{
	Use:   "ls ANCHOR_ID",
	Short: "List the auras on an anchor",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpecLs,
}

func init() {
	specCmd.PersistentFlags().StringVarP(&specDomain, "domain", "d", "", "Styling domain (default: first configured domain)")

	for _, c := range []*cobra.Command{specAddCmd, specSetCmd} {
		f := c.Flags()
		f.StringVar(&specStyle, "style", "simple", "Style: simple, glow, bubble, fade, fuzzy or particles")
		f.Float64Var(&specRadius, "radius", 0, "Radius in board distance units")
		f.StringVar(&specColor, "color", "", "Effect colour (#rrggbb)")
		f.Float64Var(&specOpacity, "opacity", 0, "Effect opacity [0,1]")
		f.StringVar(&specFillColor, "fill-color", "", "Outline fill colour (#rrggbb)")
		f.Float64Var(&specFillOpacity, "fill-opacity", 0, "Outline fill opacity [0,1]")
		f.StringVar(&specStrokeColor, "stroke-color", "", "Outline stroke colour (#rrggbb)")
		f.Float64Var(&specStrokeOpacity, "stroke-opacity", 0, "Outline stroke opacity [0,1]")
		f.Float64Var(&specStrokeWidth, "stroke-width", 0, "Outline stroke width in pixels")
		f.Float64SliceVar(&specStrokeDash, "stroke-dash", nil, "Outline dash pattern, e.g. 8,4")
	}
	specAddCmd.MarkFlagRequired("radius")

	specLsCmd.Flags().StringVarP(&specOutputFormat, "output", "o", "default", "Output format: default or json")

	specCmd.AddCommand(specAddCmd, specSetCmd, specRmCmd, specLsCmd)
	rootCmd.AddCommand(specCmd)
}

func domainFor(cfg *config.AuraConfig) string {
	if specDomain != "" {
		return specDomain
	}
	return cfg.Domains[0]
}

func runSpecAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	style, err := styleFromFlags(cmd.Flags(), nil)
	if err != nil {
		return printer.Error("invalid style", err.Error(), []string{"See the style list:\n  aura spec --help"})
	}
	entry := board.NewSpecEntry(style, specRadius)
	if err := entry.Validate(); err != nil {
		return printer.Error("invalid style", err.Error(), nil)
	}

	client, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	domain := domainFor(cfg)
	err = client.UpdateAnchorSpecLists(ctx, domain, []string{args[0]},
		func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
			return append(entries, entry), nil
		})
	if err != nil {
		return specUpdateError(args[0], err)
	}

	printer.Success("Added %s aura %s to %s (radius %g, domain %s)\n", style.Tag(), entry.SpecID, args[0], entry.Radius, domain)
	return nil
}

func runSpecSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var updated board.AuraSpecEntry
	err = client.UpdateAnchorSpecLists(ctx, domainFor(cfg), []string{args[0]},
		func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
			i, _, err := resolver.ResolveSpecID(entries, args[1])
			if err != nil {
				return nil, err
			}
			style, err := styleFromFlags(cmd.Flags(), entries[i].Style)
			if err != nil {
				return nil, err
			}
			entries[i].Style = style
			if cmd.Flags().Changed("radius") {
				entries[i].Radius = specRadius
			}
			updated = entries[i]
			return entries, nil
		})
	if err != nil {
		return specUpdateError(args[0], err)
	}

	printer.Success("Updated %s aura %s on %s (radius %g)\n", updated.Style.Tag(), updated.SpecID, args[0], updated.Radius)
	return nil
}

func runSpecRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var removed string
	err = client.UpdateAnchorSpecLists(ctx, domainFor(cfg), []string{args[0]},
		func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
			i, id, err := resolver.ResolveSpecID(entries, args[1])
			if err != nil {
				return nil, err
			}
			removed = id
			return append(entries[:i:i], entries[i+1:]...), nil
		})
	if err != nil {
		return specUpdateError(args[0], err)
	}

	printer.Success("Removed aura %s from %s\n", removed, args[0])
	return nil
}

func runSpecLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if specOutputFormat != "default" && specOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", specOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	anchor, err := client.GetAnchor(ctx, args[0])
	if err != nil {
		if board.IsNotFound(err) {
			return anchorNotFound(args[0])
		}
		return err
	}
	domain := domainFor(cfg)
	entries, err := anchor.SpecList(domain)
	if err != nil {
		return printer.ErrorWithContext(
			"invalid spec list",
			err.Error(),
			map[string]string{"Anchor": anchor.ID, "Domain": domain},
			[]string{"Remove and re-add the affected auras."},
		)
	}

	if specOutputFormat == "json" {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode spec list: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		printer.Info("No %s auras on %s\n", domain, anchor.ID)
		return nil
	}
	for _, e := range entries {
		printer.Printf("%s  %-9s radius %-6g %s\n", e.SpecID, e.Style.Tag(), e.Radius, describeStyle(e.Style))
	}
	return nil
}

// styleFromFlags builds a style from the command's flags. Fields not given
// as flags keep their value from current when the tag is unchanged.
func styleFromFlags(flags *pflag.FlagSet, current board.Style) (board.Style, error) {
	tag := board.StyleTag(specStyle)
	if !flags.Changed("style") && current != nil {
		tag = current.Tag()
	}
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	if current != nil && current.Tag() != tag {
		current = nil
	}

	if tag == board.StyleSimple {
		s := board.SimpleStyle{
			FillColor:     "#ffffff",
			FillOpacity:   0.2,
			StrokeColor:   "#ffffff",
			StrokeOpacity: 1,
			StrokeWidth:   2,
		}
		if cur, ok := current.(board.SimpleStyle); ok {
			s = cur
		}
		if flags.Changed("fill-color") {
			s.FillColor = specFillColor
		}
		if flags.Changed("fill-opacity") {
			s.FillOpacity = specFillOpacity
		}
		if flags.Changed("stroke-color") {
			s.StrokeColor = specStrokeColor
		}
		if flags.Changed("stroke-opacity") {
			s.StrokeOpacity = specStrokeOpacity
		}
		if flags.Changed("stroke-width") {
			s.StrokeWidth = specStrokeWidth
		}
		if flags.Changed("stroke-dash") {
			s.StrokeDash = append([]float64(nil), specStrokeDash...)
		}
		return s, nil
	}

	if tag == board.StyleParticles {
		return board.ParticlesStyle{}, nil
	}

	p := board.EffectParams{Color: "#ffffff", Opacity: 0.8}
	if current != nil {
		p = effectParams(current)
	}
	if flags.Changed("color") {
		p.Color = specColor
	}
	if flags.Changed("opacity") {
		p.Opacity = specOpacity
	}
	switch tag {
	case board.StyleGlow:
		return board.GlowStyle{EffectParams: p}, nil
	case board.StyleBubble:
		return board.BubbleStyle{EffectParams: p}, nil
	case board.StyleFade:
		return board.FadeStyle{EffectParams: p}, nil
	default:
		return board.FuzzyStyle{EffectParams: p}, nil
	}
}

func effectParams(s board.Style) board.EffectParams {
	switch v := s.(type) {
	case board.GlowStyle:
		return v.EffectParams
	case board.BubbleStyle:
		return v.EffectParams
	case board.FadeStyle:
		return v.EffectParams
	case board.FuzzyStyle:
		return v.EffectParams
	}
	return board.EffectParams{}
}

func describeStyle(s board.Style) string {
	switch v := s.(type) {
	case board.SimpleStyle:
		desc := fmt.Sprintf("fill %s@%g stroke %s@%g w%g", v.FillColor, v.FillOpacity, v.StrokeColor, v.StrokeOpacity, v.StrokeWidth)
		if len(v.StrokeDash) > 0 {
			dash := make([]string, len(v.StrokeDash))
			for i, d := range v.StrokeDash {
				dash[i] = fmt.Sprintf("%g", d)
			}
			desc += " dash " + strings.Join(dash, ",")
		}
		return desc
	case board.ParticlesStyle:
		return ""
	default:
		p := effectParams(s)
		return fmt.Sprintf("%s@%g", p.Color, p.Opacity)
	}
}

func anchorNotFound(id string) error {
	return printer.Error(
		fmt.Sprintf("anchor '%s' not found", id),
		"No anchor with that ID exists in this room.",
		[]string{"Create it first:\n  aura anchor put " + id},
	)
}

func specUpdateError(anchorID string, err error) error {
	var amb *resolver.AmbiguousError
	switch {
	case board.IsNotFound(err):
		return anchorNotFound(anchorID)
	case errors.As(err, &amb):
		return printer.Error("ambiguous spec ID", resolver.FormatAmbiguousError(amb), nil)
	case resolver.IsNotFoundError(err):
		return printer.Error("spec entry not found", err.Error(), []string{"List auras:\n  aura spec ls " + anchorID})
	default:
		return printer.Error("failed to update spec list", err.Error(), nil)
	}
}
