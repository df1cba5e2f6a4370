package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for filehash.
type Config struct {
	Build    BuildConfig    `yaml:"build"`
	Manifest ManifestConfig `yaml:"manifest"`
	Registry RegistryConfig `yaml:"registry"`
	Rewrite  RewriteConfig  `yaml:"rewrite"`
	Apply    ApplyConfig    `yaml:"apply"`
	State    StateConfig    `yaml:"state"`
	Esbuild  EsbuildConfig  `yaml:"esbuild"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BuildConfig describes the bundler output the transform runs over.
type BuildConfig struct {
	OutDir    string `yaml:"out_dir"`
	Base      string `yaml:"base"`
	AssetsDir string `yaml:"assets_dir"`
}

// ManifestConfig selects the bundle description to load.
type ManifestConfig struct {
	Format string `yaml:"format"` // "auto", "bundle", "vite", "esbuild"
	Path   string `yaml:"path"`   // relative to out_dir; empty means detect
}

// RegistryConfig controls how the lookup table is published.
type RegistryConfig struct {
	Externalize bool   `yaml:"externalize"`
	Global      string `yaml:"global"`
}

// RewriteConfig selects which output files are rewritten.
type RewriteConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	HTML     []string `yaml:"html"`
}

// ApplyConfig tunes the apply pipeline.
type ApplyConfig struct {
	Concurrency int  `yaml:"concurrency"`
	Cache       bool `yaml:"cache"`
}

// StateConfig controls the build state database.
type StateConfig struct {
	Enabled bool `yaml:"enabled"`
	Keep    int  `yaml:"keep"` // snapshots retained, 0 keeps all
}

// EsbuildConfig drives the built-in esbuild build.
type EsbuildConfig struct {
	EntryPoints []string `yaml:"entry_points"`
	HTML        []string `yaml:"html"`
	Minify      bool     `yaml:"minify"`
	Sourcemap   bool     `yaml:"sourcemap"`
	Target      string   `yaml:"target"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			OutDir:    "dist",
			Base:      "/",
			AssetsDir: "assets",
		},
		Manifest: ManifestConfig{
			Format: "auto",
		},
		Registry: RegistryConfig{
			Externalize: false,
			Global:      "fileHashes",
		},
		Rewrite: RewriteConfig{
			Includes: []string{"**/*.js", "**/*.mjs"},
			Excludes: []string{"**/*.map", "**/node_modules/**"},
			HTML:     []string{"**/*.html"},
		},
		Apply: ApplyConfig{
			Concurrency: 8,
			Cache:       true,
		},
		State: StateConfig{
			Enabled: true,
			Keep:    20,
		},
		Esbuild: EsbuildConfig{
			Target: "es2020",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for filehash.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "filehash.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".filehash", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Build.OutDir == "" {
		return fmt.Errorf("build.out_dir must be set")
	}
	if strings.HasPrefix(c.Build.AssetsDir, "/") {
		return fmt.Errorf("build.assets_dir must be relative, got %q", c.Build.AssetsDir)
	}
	if !validIdentifier(c.Registry.Global) {
		return fmt.Errorf("registry.global %q is not a JavaScript identifier", c.Registry.Global)
	}
	switch c.Manifest.Format {
	case "", "auto", "bundle", "vite", "esbuild":
	default:
		return fmt.Errorf("manifest.format %q is not one of auto, bundle, vite, esbuild", c.Manifest.Format)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	if c.Apply.Concurrency < 0 {
		return fmt.Errorf("apply.concurrency must not be negative")
	}
	if c.State.Keep < 0 {
		return fmt.Errorf("state.keep must not be negative")
	}
	return nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// StateDBPath returns the path to the build state database.
func StateDBPath(dir string) string {
	return filepath.Join(dir, ".filehash", "state.db")
}

// EnsureStateDir ensures the .filehash directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".filehash"), 0755)
}
