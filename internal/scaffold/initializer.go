package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/dyluth/aura/internal/config"
	"github.com/dyluth/aura/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// ConfigFile is the file Initialize writes.
const ConfigFile = config.DefaultPath

const defaultRoom = "my-room"

var unsafeRoomChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Options are the values rendered into the new aura.yml.
type Options struct {
	Room     string
	RedisURL string
}

// Initialize writes a starter aura.yml into dir. If force is true an existing
// aura.yml is replaced, otherwise its presence is an error.
func Initialize(dir string, opts Options, force bool) error {
	path := filepath.Join(dir, ConfigFile)

	if force {
		if err := handleForce(path); err != nil {
			return err
		}
	} else if err := CheckExisting(dir); err != nil {
		return err
	}

	if opts.Room == "" {
		opts.Room = DefaultRoomName(dir)
	}
	if opts.RedisURL == "" {
		opts.RedisURL = "redis://localhost:6379/0"
	}

	content, err := render(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return validateCreatedFile(path)
}

// handleForce removes an existing aura.yml.
func handleForce(path string) error {
	if _, err := os.Stat(path); err == nil {
		printer.Warning("Removing existing %s...\n", ConfigFile)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFile, err)
		}
	}
	return nil
}

func render(opts Options) ([]byte, error) {
	raw, err := templatesFS.ReadFile("templates/aura.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read aura.yml template: %w", err)
	}
	tmpl, err := template.New("aura.yml").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aura.yml template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("failed to render aura.yml: %w", err)
	}
	return buf.Bytes(), nil
}

// validateCreatedFile loads the written file through the normal config path
// so a bad room name or URL is reported now rather than at `aura run`.
func validateCreatedFile(path string) error {
	if _, err := config.Load(path); err != nil {
		os.Remove(path)
		return fmt.Errorf("created %s is not valid: %w", ConfigFile, err)
	}
	return nil
}

// DefaultRoomName derives a room name from the directory name, falling back
// to "my-room" when nothing usable remains.
func DefaultRoomName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return defaultRoom
	}
	name := strings.ToLower(filepath.Base(abs))
	name = unsafeRoomChars.ReplaceAllString(name, "-")
	name = strings.TrimLeft(name, "._-")
	if name == "" {
		return defaultRoom
	}
	return name
}

// PrintSuccess prints the success message with the created file
func PrintSuccess(path, room string) {
	printer.Println()
	printer.Success("Successfully initialized aura configuration!\n")
	printer.Println("\nCreated:")
	printer.Printf("  ✓ %s (room: %s)\n", path, room)
	printer.Println("\nNext steps:")
	printer.Println("  1. Start Redis, or point redis_url at a shared instance")
	printer.Println("  2. Place an anchor:  aura anchor put goblin-1 --x 300 --y 450")
	printer.Println("  3. Give it an aura:  aura spec add goblin-1 --radius 10 --style glow")
	printer.Println("  4. Run 'aura run' to start reconciling")
}
