package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/pkg/board"
	"github.com/spf13/cobra"
)

var (
	boardMetric          string
	boardTopology        string
	boardQuantized       bool
	boardUnitPixelSize   float64
	boardUnitToBoardUnit float64
	boardOutputFormat    string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Inspect or change the room's board configuration",
	Long: `Inspect or change the room-wide board configuration.

Changing any field invalidates every rendered aura; each client rebuilds
them on its next pass.`,
}

var boardGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the board configuration",
	Args:  cobra.NoArgs,
	RunE:  runBoardGet,
}

var boardSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change fields of the board configuration",
	Long: `Change the fields given as flags; the rest are kept.

Examples:
  # Switch to a pointy-top hex grid with quantized auras
  aura board set --topology hex_a --quantized

  # 5ft squares, 100px per cell
  aura board set --unit-to-board-unit 5 --unit-pixel-size 100`,
	Args: cobra.NoArgs,
	RunE: runBoardSet,
}

func init() {
	boardGetCmd.Flags().StringVarP(&boardOutputFormat, "output", "o", "default", "Output format: default or json")

	f := boardSetCmd.Flags()
	f.StringVar(&boardMetric, "metric", "", "Distance metric: circular, square, diamond or alternating")
	f.StringVar(&boardTopology, "topology", "", "Grid topology: square, hex_a or hex_b")
	f.BoolVar(&boardQuantized, "quantized", false, "Snap auras to whole grid cells")
	f.Float64Var(&boardUnitPixelSize, "unit-pixel-size", 0, "Pixels per grid cell")
	f.Float64Var(&boardUnitToBoardUnit, "unit-to-board-unit", 0, "Board distance units per grid cell")

	boardCmd.AddCommand(boardGetCmd, boardSetCmd)
	rootCmd.AddCommand(boardCmd)
}

func runBoardGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if boardOutputFormat != "default" && boardOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", boardOutputFormat),
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

	bc, err := client.GetBoardConfig(ctx)
	if err != nil {
		return err
	}

	if boardOutputFormat == "json" {
		data, err := json.MarshalIndent(bc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode board config: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Info("Board configuration for room '%s':\n", cfg.Room)
	printBoardConfig(bc)
	return nil
}

func runBoardSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	flags := cmd.Flags()
	if flags.NFlag() == 0 {
		return printer.Error(
			"nothing to change",
			"No configuration fields were given.",
			[]string{"See the available fields:\n  aura board set --help"},
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

	bc, err := client.GetBoardConfig(ctx)
	if err != nil {
		return err
	}
	if flags.Changed("metric") {
		bc.Metric = board.Metric(boardMetric)
	}
	if flags.Changed("topology") {
		bc.Topology = board.Topology(boardTopology)
	}
	if flags.Changed("quantized") {
		bc.Quantized = boardQuantized
	}
	if flags.Changed("unit-pixel-size") {
		bc.UnitPixelSize = boardUnitPixelSize
	}
	if flags.Changed("unit-to-board-unit") {
		bc.UnitToBoardUnit = boardUnitToBoardUnit
	}

	if err := client.SetBoardConfig(ctx, bc); err != nil {
		return printer.Error("invalid board configuration", err.Error(), nil)
	}

	printer.Success("Updated board configuration for room '%s'\n", cfg.Room)
	printBoardConfig(bc)
	return nil
}

func printBoardConfig(bc board.Config) {
	printer.KeyValue([][2]string{
		{"metric", string(bc.Metric)},
		{"topology", string(bc.Topology)},
		{"quantized", strconv.FormatBool(bc.Quantized)},
		{"unit_pixel_size", strconv.FormatFloat(bc.UnitPixelSize, 'g', -1, 64)},
		{"unit_to_board_unit", strconv.FormatFloat(bc.UnitToBoardUnit, 'g', -1, 64)},
	})
}
