package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gitsidian/internal/vfs"
)

// SettingsFileName is the per-vault settings file, stored inside the vault
// so it travels with it.
const SettingsFileName = ".gitsidian.yaml"

// Author identifies the commit signature.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Remote names the default push/pull target.
type Remote struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AutoCommit configures the periodic snapshot behavior the application layer
// may drive.
type AutoCommit struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"intervalMinutes"`
}

// Settings mirrors the on-disk .gitsidian.yaml schema.
type Settings struct {
	Author     Author     `yaml:"author"`
	Remote     Remote     `yaml:"remote"`
	AutoCommit AutoCommit `yaml:"autoCommit"`
	LogLevel   string     `yaml:"logLevel"`
}

// Defaults returns the settings used when the vault has no settings file.
func Defaults() Settings {
	return Settings{
		Author:     Author{Name: "Gitsidian User", Email: "user@gitsidian"},
		Remote:     Remote{Name: "origin"},
		AutoCommit: AutoCommit{IntervalMinutes: 5},
	}
}

// Load reads the vault settings through the adapter. A missing file yields
// defaults, not an error. Environment references in string values are
// expanded.
func Load(ctx context.Context, adapter *vfs.Adapter) (Settings, error) {
	data, err := adapter.ReadFile(ctx, SettingsFileName)
	if err != nil {
		if vfs.IsCode(err, vfs.CodeNotFound) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	settings := Defaults()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	settings.Author.Name = os.ExpandEnv(settings.Author.Name)
	settings.Author.Email = os.ExpandEnv(settings.Author.Email)
	settings.Remote.URL = os.ExpandEnv(settings.Remote.URL)
	return settings, nil
}
