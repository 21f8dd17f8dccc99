// Package config handles TOML configuration loading with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Library LibraryConfig `toml:"library"`
	Import  ImportConfig  `toml:"import"`
	Log     LogConfig     `toml:"log"`
}

// LibraryConfig locates the managed music directory and its databases.
type LibraryConfig struct {
	Directory string `toml:"directory"`
	Database  string `toml:"database"`
	StateFile string `toml:"state_file"`
}

// ImportConfig controls how import units are processed and placed.
// Exactly one of Move/Copy/Link/Hardlink/Reflink may be enabled.
type ImportConfig struct {
	Move     bool `toml:"move"`
	Copy     bool `toml:"copy"`
	Link     bool `toml:"link"`
	Hardlink bool `toml:"hardlink"`
	Reflink  bool `toml:"reflink"`

	// DeleteOriginals removes source files after a copy import.
	DeleteOriginals bool `toml:"delete_originals"`

	Resume      bool `toml:"resume"`
	Incremental bool `toml:"incremental"`

	Threaded  bool `toml:"threaded"`
	QueueSize int  `toml:"queue_size"`

	Pretend     bool `toml:"pretend"`
	FromScratch bool `toml:"from_scratch"`
	Singletons  bool `toml:"singletons"`

	Ignore       []string `toml:"ignore"`
	IgnoreHidden bool     `toml:"ignore_hidden"`

	// FreshFields are free-form attributes that are NOT carried forward
	// from a replaced record when the incoming value differs.
	FreshFields []string `toml:"fresh_fields"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// TransferMode names the active file placement operation.
type TransferMode string

const (
	ModeMove     TransferMode = "move"
	ModeCopy     TransferMode = "copy"
	ModeLink     TransferMode = "link"
	ModeHardlink TransferMode = "hardlink"
	ModeReflink  TransferMode = "reflink"
)

// Mode returns the configured transfer mode. Validate guarantees at most
// one is set; copy is the default.
func (c ImportConfig) Mode() TransferMode {
	switch {
	case c.Move:
		return ModeMove
	case c.Link:
		return ModeLink
	case c.Hardlink:
		return ModeHardlink
	case c.Reflink:
		return ModeReflink
	default:
		return ModeCopy
	}
}

// DefaultFreshFields are dropped on reimport when the new value differs:
// external catalog identifiers and, for albums, the media type.
var DefaultFreshFields = []string{"mb_albumid", "mb_trackid", "mb_releasegroupid", "media"}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for callers
// that run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Library.Directory == "" {
		c.Library.Directory = "./music"
	}
	if c.Library.Database == "" {
		c.Library.Database = "./data/crate.db"
	}
	if c.Library.StateFile == "" {
		c.Library.StateFile = "./data/state.json"
	}
	if c.Import.QueueSize == 0 {
		c.Import.QueueSize = 16
	}
	if c.Import.FreshFields == nil {
		c.Import.FreshFields = append([]string(nil), DefaultFreshFields...)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
