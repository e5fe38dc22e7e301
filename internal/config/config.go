package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults
const (
	DefaultCacheDir           = "~/.orgcmp/cache"
	DefaultWorkDir            = "~/.orgcmp/projects"
	DefaultMaxFiles           = 4
	DefaultCLI                = "sf"
	DefaultRetrieveTimeout    = 10 * time.Minute
	DefaultRefreshConcurrency = 1
	DefaultFetchConcurrency   = 4
)

// DefaultMetadata lists the metadata types retrieved when none are configured.
var DefaultMetadata = []string{
	"ApexClass",
	"ApexTrigger",
	"ApexPage",
	"ApexComponent",
	"LightningComponentBundle",
	"AuraDefinitionBundle",
}

// Valid enum values for configuration fields.
var (
	ValidThemeNames = []string{"none", "default", "dracula", "nord", "gruvbox", "catppuccin"}
	ValidThemeModes = []string{"auto", "light", "dark"}
)

// Duration is a time.Duration written as a string ("10m", "90s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ThemeConfig holds UI theme configuration
type ThemeConfig struct {
	Name string `toml:"name" json:"name" yaml:"name"` // preset name: "default", "dracula", "nord", ...
	Mode string `toml:"mode" json:"mode" yaml:"mode"` // "auto", "light" or "dark"

	Nerdfont bool `toml:"nerdfont" json:"nerdfont" yaml:"nerdfont"` // use nerd font glyphs for tree icons
}

// Config holds the orgcmp configuration
type Config struct {
	CacheDir           string      `toml:"cache_dir" json:"cache_dir" yaml:"cache_dir"`
	WorkDir            string      `toml:"work_dir" json:"work_dir" yaml:"work_dir"`
	MaxFiles           int         `toml:"max_files" json:"max_files" yaml:"max_files"`
	CLI                string      `toml:"cli" json:"cli" yaml:"cli"`
	RetrieveTimeout    Duration    `toml:"retrieve_timeout" json:"retrieve_timeout" yaml:"retrieve_timeout"`
	Metadata           []string    `toml:"metadata" json:"metadata" yaml:"metadata"`
	IncludeMetaFiles   bool        `toml:"include_meta_files" json:"include_meta_files" yaml:"include_meta_files"`
	RefreshConcurrency int         `toml:"refresh_concurrency" json:"refresh_concurrency" yaml:"refresh_concurrency"`
	FetchConcurrency   int         `toml:"fetch_concurrency" json:"fetch_concurrency" yaml:"fetch_concurrency"`
	Theme              ThemeConfig `toml:"theme" json:"theme" yaml:"theme"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		CacheDir:           DefaultCacheDir,
		WorkDir:            DefaultWorkDir,
		MaxFiles:           DefaultMaxFiles,
		CLI:                DefaultCLI,
		RetrieveTimeout:    Duration{DefaultRetrieveTimeout},
		Metadata:           slices.Clone(DefaultMetadata),
		RefreshConcurrency: DefaultRefreshConcurrency,
		FetchConcurrency:   DefaultFetchConcurrency,
		Theme:              ThemeConfig{Name: "default", Mode: "auto"},
	}
}

type ctxKey struct{}

// WithConfig attaches a config to the context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns nil if none is attached.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(ctxKey{}).(*Config)
	return cfg
}

// ValidatePath checks that the path is absolute or starts with ~
// Returns error if path is relative (like "." or "..")
func ValidatePath(path, fieldName string) error {
	if path == "" {
		return nil // Empty is reported by Validate
	}
	// Allow ~ paths
	if path[0] == '~' {
		return nil
	}
	// Must be absolute
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s must be absolute or start with ~, got: %q", fieldName, path)
	}
	return nil
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	return path, nil
}

// Path returns the path to the config file
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "orgcmp", "config.toml"), nil
}

// Load reads config from ~/.config/orgcmp/config.toml
// Returns Default() (with env overrides) if file doesn't exist (no error)
// Returns error only if file exists but is invalid
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return finalize(Default())
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path. Keys missing from the file keep their
// default values.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finalize(cfg)
		}
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return finalize(cfg)
}

// finalize applies env overrides, validates and expands paths.
func finalize(cfg Config) (Config, error) {
	applyEnvOverrides(&cfg)

	if err := ValidatePath(cfg.CacheDir, "cache_dir"); err != nil {
		return Default(), err
	}
	if err := ValidatePath(cfg.WorkDir, "work_dir"); err != nil {
		return Default(), err
	}

	// Expand ~ (shell doesn't expand in config files)
	for _, p := range []*string{&cfg.CacheDir, &cfg.WorkDir} {
		expanded, err := expandPath(*p)
		if err != nil {
			return Default(), err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies ORGCMP_* environment variables.
// Empty variables are ignored.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"ORGCMP_CACHE_DIR", &cfg.CacheDir},
		{"ORGCMP_WORK_DIR", &cfg.WorkDir},
		{"ORGCMP_CLI", &cfg.CLI},
		{"ORGCMP_THEME", &cfg.Theme.Name},
		{"ORGCMP_THEME_MODE", &cfg.Theme.Mode},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

const defaultConfig = `# orgcmp configuration

# Cache root: cache_index.json plus <orgId>_files.json / <orgId>_metadata.json
# Must be an absolute path or start with ~ (no relative paths like "." or "..")
# Override with ORGCMP_CACHE_DIR
# cache_dir = "~/.orgcmp/cache"

# Where retrieved sources are written (one directory per org and attempt)
# Override with ORGCMP_WORK_DIR
# work_dir = "~/.orgcmp/projects"

# Default number of files a selection holds (2-10)
# Selecting more evicts the oldest file
max_files = 4

# Platform CLI used for retrieval
# cli = "sf"

# Upper bound for a single retrieval
retrieve_timeout = "10m"

# Metadata types retrieved on refresh
metadata = [
  "ApexClass",
  "ApexTrigger",
  "ApexPage",
  "ApexComponent",
  "LightningComponentBundle",
  "AuraDefinitionBundle",
]

# Keep *-meta.xml companion files in the tree
# include_meta_files = false

# Orgs refreshed in parallel by "orgcmp refresh" (1 = one after another)
# refresh_concurrency = 1

# Files fetched in parallel when local copies are missing
# fetch_concurrency = 4

# UI theme
# [theme]
# name = "default"   # none, default, dracula, nord, gruvbox, catppuccin
# mode = "auto"      # auto, light, dark
# nerdfont = false   # nerd font icons in "orgcmp tree"
`

// DefaultConfig returns the content written by "orgcmp config init".
func DefaultConfig() string {
	return defaultConfig
}

// Init creates a default config file at ~/.config/orgcmp/config.toml
// If force is true, overwrites existing file
// Returns the path to the created file
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	return path, InitAt(path, force)
}

// ErrExists is returned by Init and InitAt when the file exists and force is false.
var ErrExists = errors.New("config file already exists")

// InitAt writes the default config file to path.
func InitAt(path string, force bool) error {
	// Check if file already exists (skip if force)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}
