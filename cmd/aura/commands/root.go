package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/aura/internal/config"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath   string
	roomName     string
	redisURLFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "Aura - shared aura rendering for virtual tabletops",
	Long: `Aura keeps each client's rendered auras in step with the shared board.

Auras are attached to tokens (anchors) as spec lists. Every client runs
its own reconciliation engine that turns those lists, together with the
room's distance metric and grid topology, into locally rendered outlines
and shader effects. The board itself lives in Redis.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to aura.yml")
	rootCmd.PersistentFlags().StringVarP(&roomName, "room", "r", "", "Room name (overrides config and "+config.EnvRoom+")")
	rootCmd.PersistentFlags().StringVar(&redisURLFlag, "redis-url", "", "Redis URL (overrides config and "+config.EnvRedisURL+")")
}

// loadConfig resolves the configuration: file (or defaults), then
// environment, then flags.
func loadConfig() (*config.AuraConfig, error) {
	cfg, err := config.LoadOrDefault(configPath, config.Overrides{Room: roomName, RedisURL: redisURLFlag})
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{
				"Create an aura.yml with at least:\n  version: \"1.0\"\n  room: <room-name>",
				"Pass the room explicitly:\n  aura --room <room-name> ...",
			},
		)
	}
	return cfg, nil
}

// openBoard connects to the room's board and verifies Redis is reachable.
func openBoard(ctx context.Context, cfg *config.AuraConfig) (*board.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, printer.Error("invalid redis URL", err.Error(), []string{"Use the form redis://host:port/db"})
	}

	client, err := board.NewClient(opts, cfg.Room)
	if err != nil {
		return nil, fmt.Errorf("failed to create board client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"redis unavailable",
			fmt.Sprintf("Could not reach the board: %v", err),
			map[string]string{
				"Redis": cfg.RedisURL,
				"Room":  cfg.Room,
			},
			[]string{
				"Start Redis locally:\n  docker run -d -p 6379:6379 redis:7-alpine",
				"Point aura at another server:\n  aura --redis-url redis://host:6379/0 ...",
			},
		)
	}
	return client, nil
}
