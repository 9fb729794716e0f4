// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dylibtree/dylibtree/internal/issue"
	"github.com/dylibtree/dylibtree/internal/runtimeroot"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "dylibtree"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. DYLIBTREE_DEPTH.
	EnvPrefix = "DYLIBTREE"
)

//go:embed config_schema.cue
var configSchema string

// Config holds every setting that can come from the config file or the
// environment. Command-line flags are applied on top by the caller.
type Config struct {
	RuntimeRoot               string   `json:"runtime_root" mapstructure:"runtime_root"`
	SharedCachePath           string   `json:"shared_cache_path" mapstructure:"shared_cache_path"`
	SharedCacheCandidates     []string `json:"shared_cache_candidates" mapstructure:"shared_cache_candidates"`
	ExtractDir                string   `json:"extract_dir" mapstructure:"extract_dir"`
	SimulatorVolumesDir       string   `json:"simulator_volumes_dir" mapstructure:"simulator_volumes_dir"`
	DeviceSupportDir          string   `json:"device_support_dir" mapstructure:"device_support_dir"`
	SystemPrefixes            []string `json:"system_prefixes" mapstructure:"system_prefixes"`
	IgnorePrefixes            []string `json:"ignore_prefixes" mapstructure:"ignore_prefixes"`
	ExcludeAllDuplicates      bool     `json:"exclude_all_duplicates" mapstructure:"exclude_all_duplicates"`
	IncludeSystemDependencies bool     `json:"include_system_dependencies" mapstructure:"include_system_dependencies"`
	Depth                     int      `json:"depth" mapstructure:"depth"`
	Verbose                   bool     `json:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	// An unresolvable home only disables iOS device support lookup.
	deviceSupport, _ := runtimeroot.DefaultDeviceSupportDir()

	return &Config{
		SharedCacheCandidates: append([]string(nil), runtimeroot.DefaultSharedCacheCandidates...),
		ExtractDir:            filepath.Join(os.TempDir(), AppName),
		SimulatorVolumesDir:   runtimeroot.DefaultSimulatorVolumesDir,
		DeviceSupportDir:      deviceSupport,
		SystemPrefixes:        []string{"/usr/lib/", "/System/Library/"},
		IgnorePrefixes:        []string{},
		Depth:                 -1,
	}
}

// Locations returns the search locations runtime root detection uses.
func (c *Config) Locations() runtimeroot.Locations {
	return runtimeroot.Locations{
		SharedCacheCandidates: c.SharedCacheCandidates,
		SimulatorVolumesDir:   c.SimulatorVolumesDir,
		DeviceSupportDir:      c.DeviceSupportDir,
	}
}

// ConfigDir returns the dylibtree configuration directory:
// $XDG_CONFIG_HOME/dylibtree when XDG_CONFIG_HOME is set, otherwise
// ~/Library/Application Support/dylibtree on macOS and ~/.config/dylibtree
// elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	}
	return filepath.Join(home, ".config", AppName), nil
}

// loadWithOptions loads defaults, then the config file on fs if one is found, then
// DYLIBTREE_* environment overrides. It returns the file that was read, if
// any.
func loadWithOptions(ctx context.Context, fs afero.Fs, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("runtime_root", defaults.RuntimeRoot)
	v.SetDefault("shared_cache_path", defaults.SharedCachePath)
	v.SetDefault("shared_cache_candidates", defaults.SharedCacheCandidates)
	v.SetDefault("extract_dir", defaults.ExtractDir)
	v.SetDefault("simulator_volumes_dir", defaults.SimulatorVolumesDir)
	v.SetDefault("device_support_dir", defaults.DeviceSupportDir)
	v.SetDefault("system_prefixes", defaults.SystemPrefixes)
	v.SetDefault("ignore_prefixes", defaults.IgnorePrefixes)
	v.SetDefault("exclude_all_duplicates", defaults.ExcludeAllDuplicates)
	v.SetDefault("include_system_dependencies", defaults.IncludeSystemDependencies)
	v.SetDefault("depth", defaults.Depth)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(fs, opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		// No config file is not an error; defaults apply.
		if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(fs, cuePath) {
			resolvedPath = cuePath
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, fs, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, resolvedPath, nil
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// The file is decoded into a map rather than a struct so Viper keeps its
// defaults for unset fields and environment overrides still apply.
func loadCUEIntoViper(v *viper.Viper, fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists reports whether path is a regular file on fs.
func fileExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}
