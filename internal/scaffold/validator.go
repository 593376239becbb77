package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckExisting returns an error if dir already holds an aura.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, ConfigFile)
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return fmt.Errorf("%s exists and is a directory", path)
	}

	return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'aura init --force' to reinitialize (this will overwrite existing configuration)", ConfigFile)
}
