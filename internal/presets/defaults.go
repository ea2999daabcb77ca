package presets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/user/cloudmux/configs"
)

// ensureDefaults seeds dir with the embedded presets when it holds no YAML
// files yet.
func ensureDefaults(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read presets dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && isYAML(entry.Name()) {
			return nil
		}
	}

	defaults, err := fs.Glob(configs.PresetDefaults, "presets/*.yaml")
	if err != nil {
		return fmt.Errorf("list embedded presets: %w", err)
	}
	for _, name := range defaults {
		content, err := configs.PresetDefaults.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read embedded preset %q: %w", name, err)
		}
		path := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write default %q: %w", path, err)
		}
	}
	return nil
}
