package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/aura/internal/filter"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchAnchorGlob   string
	watchDomain       string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor board activity in real time",
	Long: `Monitor anchors and board configuration as they change.

Streams anchors being placed, moved, resized and removed, aura list edits in
the configured domains, and board configuration changes.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch everything in the room
  aura watch --room dungeon-1

  # Only goblins
  aura watch --anchor 'goblin-*'

  # Only anchors carrying emanations, as JSON
  aura watch --domain emanation -o json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAnchorGlob, "anchor", "", "Only report anchors whose ID matches this glob")
	watchCmd.Flags().StringVar(&watchDomain, "domain", "", "Only report anchors with auras in this domain")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	domains := cfg.Domains
	if watchDomain != "" {
		domains = []string{watchDomain}
	}

	opts := watch.Options{
		Domains:  domains,
		Criteria: &filter.Criteria{IDGlob: watchAnchorGlob, Domain: watchDomain},
		Format:   outputFormat,
		OnReady: func(anchors int) {
			if outputFormat == watch.OutputFormatDefault {
				printer.Info("Watching room '%s' (%d anchors)\n", cfg.Room, anchors)
			}
		},
	}
	return watch.StreamActivity(ctx, client, opts, cmd.OutOrStdout())
}

