// Package config loads the optional retain.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/retain/pkg/core"
)

// FileName is the name of the project configuration file.
const FileName = "retain.yaml"

// Config represents the optional retain.yaml configuration.
type Config struct {
	Tree TreeConfig `yaml:"tree"`
	Log  LogConfig  `yaml:"log"`
}

// TreeConfig contains settings applied to every tree the CLI creates.
type TreeConfig struct {
	DependencyPolicy string `yaml:"dependency_policy,omitempty"`
	Debug            *bool  `yaml:"debug,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root       string
	ModulePath string
	Project    string
	Policy     core.DependencyPolicy
	Debug      bool
	LogLevel   slog.Level
	Verbose    bool
}

// LoadOptional reads retain.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	return &cfg, nil
}

// Resolve loads retain.yaml (if present) and resolves defaults. A missing
// go.mod is not an error; the module path is then left empty.
func Resolve(dir string) (*Resolved, error) {
	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	policy, err := core.ParseDependencyPolicy(cfg.Tree.DependencyPolicy)
	if err != nil {
		return nil, fmt.Errorf("%s: tree.dependency_policy: %w", FileName, err)
	}

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%s: log.level: %w", FileName, err)
	}

	debug := true
	if cfg.Tree.Debug != nil {
		debug = *cfg.Tree.Debug
	}

	return &Resolved{
		Root:       dir,
		ModulePath: modulePath,
		Project:    projectName(modulePath, dir),
		Policy:     policy,
		Debug:      debug,
		LogLevel:   level,
		Verbose:    cfg.Log.Verbose,
	}, nil
}

// Config converts the resolved values back into the file form, with every
// default filled in.
func (r *Resolved) Config() Config {
	debug := r.Debug
	return Config{
		Tree: TreeConfig{
			DependencyPolicy: r.Policy.String(),
			Debug:            &debug,
		},
		Log: LogConfig{
			Level:   strings.ToLower(r.LogLevel.String()),
			Verbose: r.Verbose,
		},
	}
}

// FindProjectRoot walks up from the current directory to find go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	if err := module.CheckImportPath(path); err != nil {
		return "", fmt.Errorf("invalid module path in go.mod: %w", err)
	}
	return path, nil
}

func projectName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modName, _, ok := module.SplitPathVersion(modulePath); ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "retain_app"
	}
	return base
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
