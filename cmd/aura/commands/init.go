package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dyluth/aura/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create a starter aura.yml",
	Long: `Create aura.yml in DIR (default: the current directory).

The room comes from --room, or is derived from the directory name. The Redis
URL comes from --redis-url, or defaults to a local Redis.

Use --force to overwrite an existing aura.yml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with global --config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (overwrites existing aura.yml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	// Check for existing files (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return err
		}
	}

	room := roomName
	if room == "" {
		room = scaffold.DefaultRoomName(dir)
	}

	if err := scaffold.Initialize(dir, scaffold.Options{Room: room, RedisURL: redisURLFlag}, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(filepath.Join(dir, scaffold.ConfigFile), room)
	return nil
}
