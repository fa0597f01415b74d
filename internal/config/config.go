// Package config defines the mailbox configuration file and helpers for
// loading or saving it to disk.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

const (
	// AppConfigSubdir is the directory under the user config dir.
	AppConfigSubdir = "mailbox"
	// AppConfigName is the TOML file stored on disk.
	AppConfigName = "config.toml"
	// FragmentName is the file holding the selected message id.
	FragmentName = "fragment"

	DefaultSiteTitle = "mailbox"
	DefaultVolume    = 100
	DefaultLanguage  = "und"
)

// Config holds every user preference persisted between sessions.
type Config struct {
	// Mailbox is a directory, manifest or playlist.
	Mailbox string `toml:"mailbox"`
	// AudioRoot overrides the manifest's audio root.
	AudioRoot    string `toml:"audio_root,omitempty"`
	SiteTitle    string `toml:"site_title"`
	Volume       int    `toml:"volume"`
	Muted        bool   `toml:"muted"`
	FragmentFile string `toml:"fragment_file,omitempty"`
	// Language selects the collation used for text columns.
	Language string `toml:"language"`
	LogFile  string `toml:"log_file,omitempty"`
	Debug    bool   `toml:"debug,omitempty"`

	path string
}

// ConfigDir resolves the directory that should contain the config file.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppConfigSubdir), nil
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, AppConfigName), nil
}

// Load reads the config at path, or at ConfigPath when path is empty. A
// missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := newDefaultConfig()
	cfg.path = path
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config parse error: %w", err)
	}
	cfg.applyRuntimeDefaults()
	return cfg, nil
}

// Save writes the config back to the file it was loaded from, creating
// directories as needed.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		c.path = p
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	return os.WriteFile(c.path, buf.Bytes(), 0o644)
}

// Path returns the file the config is read from and saved to.
func (c *Config) Path() string { return c.path }

// VolumeLevel returns Volume as a fraction in [0, 1].
func (c *Config) VolumeLevel() float64 {
	return float64(c.Volume) / 100
}

// SetVolumeLevel stores a [0, 1] volume as a percentage.
func (c *Config) SetVolumeLevel(v float64) {
	c.Volume = int(v*100 + 0.5)
	c.applyRuntimeDefaults()
}

// LanguageTag parses Language, falling back to the root locale.
func (c *Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und
	}
	return tag
}

// FragmentPath returns the fragment file, defaulting to one next to the
// config file.
func (c *Config) FragmentPath() string {
	if c.FragmentFile != "" {
		return c.FragmentFile
	}
	if c.path != "" {
		return filepath.Join(filepath.Dir(c.path), FragmentName)
	}
	return FragmentName
}

func newDefaultConfig() *Config {
	cfg := &Config{
		Mailbox:   ".",
		SiteTitle: DefaultSiteTitle,
		Volume:    DefaultVolume,
		Language:  DefaultLanguage,
	}
	cfg.applyRuntimeDefaults()
	return cfg
}

// applyRuntimeDefaults normalizes values after a load so callers always
// receive sane inputs.
func (c *Config) applyRuntimeDefaults() {
	if strings.TrimSpace(c.Mailbox) == "" {
		c.Mailbox = "."
	}
	if c.Volume < 0 {
		c.Volume = 0
	}
	if c.Volume > 100 {
		c.Volume = 100
	}
	if strings.TrimSpace(c.Language) == "" {
		c.Language = DefaultLanguage
	}
}
