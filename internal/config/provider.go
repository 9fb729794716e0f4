// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"github.com/spf13/afero"
)

type (
	// LoadOptions selects where configuration is read from. Both empty means
	// config.cue in ConfigDir, if it exists.
	LoadOptions struct {
		// ConfigFilePath is the --config value. The file must exist.
		ConfigFilePath string
		// ConfigDirPath replaces ConfigDir for the default file lookup.
		ConfigDirPath string
	}

	// Provider resolves the effective Config for one dylibtree run.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	// ProviderOption configures the Provider returned by NewProvider.
	ProviderOption func(*cueProvider)

	// cueProvider reads config.cue files through fs.
	cueProvider struct {
		fs afero.Fs
	}
)

// WithFs sets the filesystem config files are read from.
func WithFs(fs afero.Fs) ProviderOption {
	return func(p *cueProvider) {
		p.fs = fs
	}
}

// NewProvider returns a Provider backed by the CUE config file, DYLIBTREE_*
// environment variables and the built-in defaults.
func NewProvider(opts ...ProviderOption) Provider {
	p := &cueProvider{}
	for _, opt := range opts {
		opt(p)
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	return p
}

// Load returns defaults overlaid with the config file and the environment.
func (p *cueProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, p.fs, opts)
	return cfg, err
}
