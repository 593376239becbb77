package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/pkg/board"
	"github.com/spf13/cobra"
)

var (
	anchorName      string
	anchorX         float64
	anchorY         float64
	anchorScale     float64
	anchorFootprint float64
)

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Manage tokens on the board",
	Long: `Create, move and remove anchors (tokens) on the shared board.

Every change publishes the new anchor set to all clients in the room.`,
}

var anchorPutCmd = &cobra.Command{
	Use:   "put ANCHOR_ID",
	Short: "Create an anchor or update its placement",
	Long: `Create an anchor, or update the fields given as flags on an existing
one. Spec lists and other metadata on an existing anchor are kept.

Examples:
  # Place a one-cell token
  aura anchor put goblin-1 --x 300 --y 450

  # Enlarge it to a 2x2 footprint
  aura anchor put goblin-1 --footprint 2`,
	Args: cobra.ExactArgs(1),
	RunE: runAnchorPut,
}

var anchorRmCmd = &cobra.Command{
	Use:   "rm ANCHOR_ID",
	Short: "Remove an anchor and its auras",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnchorRm,
}

var anchorLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List anchors and their aura counts",
	Args:  cobra.NoArgs,
	RunE:  runAnchorLs,
}

func init() {
	anchorPutCmd.Flags().StringVar(&anchorName, "name", "", "Display name")
	anchorPutCmd.Flags().Float64Var(&anchorX, "x", 0, "X position in pixels")
	anchorPutCmd.Flags().Float64Var(&anchorY, "y", 0, "Y position in pixels")
	anchorPutCmd.Flags().Float64Var(&anchorScale, "scale", 1, "Visual scale")
	anchorPutCmd.Flags().Float64Var(&anchorFootprint, "footprint", 1, "Footprint in grid cells at scale 1")

	anchorCmd.AddCommand(anchorPutCmd, anchorRmCmd, anchorLsCmd)
	rootCmd.AddCommand(anchorCmd)
}

func runAnchorPut(cmd *cobra.Command, args []string) error {
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

	id := args[0]
	anchor, err := client.GetAnchor(ctx, id)
	created := false
	switch {
	case board.IsNotFound(err):
		anchor = &board.Anchor{ID: id, Name: id, Scale: board.Vector{X: 1, Y: 1}, Footprint: 1}
		created = true
	case err != nil:
		return fmt.Errorf("failed to read anchor %s: %w", id, err)
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		anchor.Name = anchorName
	}
	if flags.Changed("x") {
		anchor.Position.X = anchorX
	}
	if flags.Changed("y") {
		anchor.Position.Y = anchorY
	}
	if flags.Changed("scale") {
		anchor.Scale = board.Vector{X: anchorScale, Y: anchorScale}
	}
	if flags.Changed("footprint") {
		anchor.Footprint = anchorFootprint
	}

	if err := client.PutAnchor(ctx, anchor); err != nil {
		return printer.Error("failed to save anchor", err.Error(), nil)
	}

	if created {
		printer.Success("Created anchor %s at (%g, %g)\n", anchor.ID, anchor.Position.X, anchor.Position.Y)
	} else {
		printer.Success("Updated anchor %s at (%g, %g)\n", anchor.ID, anchor.Position.X, anchor.Position.Y)
	}
	return nil
}

func runAnchorRm(cmd *cobra.Command, args []string) error {
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

	id := args[0]
	if _, err := client.GetAnchor(ctx, id); err != nil {
		if board.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("anchor '%s' not found", id),
				fmt.Sprintf("No anchor with that ID exists in room '%s'.", cfg.Room),
				[]string{"List anchors:\n  aura anchor ls"},
			)
		}
		return fmt.Errorf("failed to read anchor %s: %w", id, err)
	}

	if err := client.DeleteAnchor(ctx, id); err != nil {
		return err
	}
	printer.Success("Removed anchor %s\n", id)
	return nil
}

func runAnchorLs(cmd *cobra.Command, args []string) error {
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

	anchors, err := client.ListAnchors(ctx)
	if err != nil {
		return err
	}
	if len(anchors) == 0 {
		printer.Info("No anchors in room '%s'\n", cfg.Room)
		return nil
	}

	for _, a := range anchors {
		printer.Printf("%-20s (%g, %g) footprint %g%s\n",
			a.ID, a.Position.X, a.Position.Y, a.FootprintUnits(), auraSummary(a, cfg.Domains))
	}
	return nil
}

// auraSummary lists per-domain aura counts, e.g. " auras: aura=2 emanation=1".
func auraSummary(a *board.Anchor, domains []string) string {
	var parts []string
	for _, d := range sortedCopy(domains) {
		list, err := a.SpecList(d)
		if err != nil {
			parts = append(parts, d+"=invalid")
			continue
		}
		if len(list) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", d, len(list)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " auras: " + strings.Join(parts, " ")
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
