// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dylibtree/dylibtree/internal/config"
	"github.com/dylibtree/dylibtree/internal/deptree"
	"github.com/dylibtree/dylibtree/internal/runtimeroot"
	"github.com/dylibtree/dylibtree/internal/sharedcache"

	"github.com/spf13/afero"
)

type (
	// App wires CLI services and shared dependencies. Cobra handlers receive an
	// App and delegate everything but flag parsing to it.
	App struct {
		Config   ConfigProvider
		Unpacker sharedcache.Unpacker
		Fs       afero.Fs
		stdout   io.Writer
		stderr   io.Writer

		// verbose is set once configuration is loaded so the error handler
		// can render in the same mode as the run.
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Unpacker sharedcache.Unpacker
		Fs       afero.Fs
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// TreeRequest is one resolved invocation: the binary and the effective
	// settings after flags were applied over configuration.
	TreeRequest struct {
		Binary string
		Config *config.Config
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) (*App, error) {
	app := &App{
		Config:   deps.Config,
		Unpacker: deps.Unpacker,
		Fs:       deps.Fs,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
	if app.Fs == nil {
		app.Fs = afero.NewOsFs()
	}
	if app.Config == nil {
		app.Config = config.NewProvider(config.WithFs(app.Fs))
	}
	if app.Unpacker == nil {
		app.Unpacker = sharedcache.NewNativeUnpacker()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app, nil
}

// Tree resolves the runtime root if requested and prints the dependency tree
// of req.Binary to stdout.
func (a *App) Tree(ctx context.Context, req TreeRequest) error {
	cfg := req.Config
	logger := newLogger(a.stderr, cfg.Verbose)
	slog.SetDefault(logger)

	root := "/"
	leafPrefixes := cfg.SystemPrefixes
	if wantsRuntimeRoot(cfg) {
		bridge := sharedcache.NewBridge(cfg.ExtractDir, a.Unpacker,
			sharedcache.WithFs(a.Fs), sharedcache.WithLogger(logger))
		resolver := runtimeroot.NewResolver(bridge, cfg.Locations(),
			runtimeroot.WithFs(a.Fs), runtimeroot.WithLogger(logger))

		resolved, err := resolver.Resolve(ctx, req.Binary, runtimeroot.Options{
			RuntimeRoot:     cfg.RuntimeRoot,
			SharedCachePath: cfg.SharedCachePath,
		})
		if err != nil {
			return err
		}
		logger.Debug("using runtime root", "path", resolved)
		root = resolved
		leafPrefixes = nil
	}

	walker := deptree.New(deptree.Options{
		RuntimeRoot:          root,
		MaxDepth:             cfg.Depth,
		IgnorePrefixes:       cfg.IgnorePrefixes,
		LeafPrefixes:         leafPrefixes,
		ExcludeAllDuplicates: cfg.ExcludeAllDuplicates,
	}, deptree.WithFs(a.Fs), deptree.WithOutput(a.stdout), deptree.WithLogger(logger))

	return walker.Run(req.Binary)
}

// wantsRuntimeRoot reports whether system libraries should be resolved under a
// platform root instead of being printed as leaves.
func wantsRuntimeRoot(cfg *config.Config) bool {
	return cfg.IncludeSystemDependencies || cfg.RuntimeRoot != "" || cfg.SharedCachePath != ""
}
