// Package settings persists the handful of local preferences that outlive a
// session.
package settings

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileName = "settings.yaml"

// Settings are the persisted local preferences. ReviewMode exposes the AI's
// per-candidate analysis to the player before they answer; it defaults to
// on.
type Settings struct {
	ReviewMode bool `yaml:"review_mode"`
}

// Default returns the settings used when nothing has been saved yet.
func Default() Settings {
	return Settings{ReviewMode: true}
}

// Load reads settings from dir, falling back to defaults when the file is
// absent.
func Load(dir string) (Settings, error) {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), err
	}
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), err
	}
	return s, nil
}

// Save writes settings to dir, creating it if needed.
func Save(dir string, s Settings) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fileName), data, 0644)
}
