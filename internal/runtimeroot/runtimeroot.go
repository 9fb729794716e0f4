// SPDX-License-Identifier: MPL-2.0

// Package runtimeroot picks the directory that stands in for "/" when
// resolving system libraries of a binary built for another platform.
//
// An explicit root or shared cache always wins. Otherwise the binary's build
// platform decides: macOS binaries use an extracted dyld shared cache,
// simulator binaries the newest installed simulator runtime, and iOS device
// binaries the newest Xcode device support symbols.
package runtimeroot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dylibtree/dylibtree/internal/issue"
	"github.com/dylibtree/dylibtree/internal/objfile"
	"github.com/dylibtree/dylibtree/internal/sharedcache"

	"github.com/spf13/afero"
)

const (
	simRuntimesSubdir = "Library/Developer/CoreSimulator/Profiles/Runtimes"
	simRuntimeSuffix  = ".simruntime"
	simRootSubdir     = "Contents/Resources/RuntimeRoot"
	deviceSymbols     = "Symbols"
)

// ErrRootNotFound matches every failure to discover a runtime root.
var ErrRootNotFound = errors.New("runtime root not found")

// DefaultSharedCacheCandidates are the on-disk shared cache locations tried,
// in order, for macOS binaries.
var DefaultSharedCacheCandidates = []string{
	"/System/Volumes/Preboot/Cryptexes/OS/System/Library/dyld/dyld_shared_cache_arm64e",
	"/System/Volumes/Preboot/Cryptexes/OS/System/Library/dyld/dyld_shared_cache_x86_64h",
}

// DefaultSimulatorVolumesDir holds one mounted volume per simulator runtime.
const DefaultSimulatorVolumesDir = "/Library/Developer/CoreSimulator/Volumes"

type (
	// Options are the user's explicit choices; both empty means auto-detect.
	Options struct {
		RuntimeRoot     string
		SharedCachePath string
	}

	// Locations are the well-known directories searched during detection.
	Locations struct {
		SharedCacheCandidates []string
		SimulatorVolumesDir   string
		DeviceSupportDir      string
	}

	// Resolver computes the runtime root once per run.
	Resolver struct {
		fs        afero.Fs
		extractor sharedcache.Extractor
		locations Locations
		logger    *slog.Logger
	}

	// Option configures a Resolver during construction.
	Option func(*Resolver)

	// rootError carries the user-facing reason a root could not be found.
	rootError struct {
		msg string
	}
)

func (e *rootError) Error() string { return e.msg }

// Is reports ErrRootNotFound as a match.
func (e *rootError) Is(target error) bool { return target == ErrRootNotFound }

func notFound(format string, args ...any) error {
	return &rootError{msg: fmt.Sprintf(format, args...)}
}

// DefaultDeviceSupportDir returns ~/Library/Developer/Xcode/iOS DeviceSupport.
func DefaultDeviceSupportDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, "Library", "Developer", "Xcode", "iOS DeviceSupport"), nil
}

// WithFs sets the filesystem directories are listed through.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) {
		r.fs = fs
	}
}

// WithLogger sets the logger for trace output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver that extracts shared caches with extractor.
func NewResolver(extractor sharedcache.Extractor, locations Locations, opts ...Option) *Resolver {
	r := &Resolver{extractor: extractor, locations: locations}
	for _, opt := range opts {
		opt(r)
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve returns the runtime root for binaryPath.
func (r *Resolver) Resolve(ctx context.Context, binaryPath string, opts Options) (string, error) {
	if opts.RuntimeRoot != "" {
		return opts.RuntimeRoot, nil
	}

	if opts.SharedCachePath != "" {
		if ok, err := afero.Exists(r.fs, opts.SharedCachePath); err != nil || !ok {
			return "", issue.NewErrorContext().
				WithOperation("use shared cache").
				WithResource(opts.SharedCachePath).
				WithIssue(issue.SharedCacheNotFoundId).
				WithSuggestion("Check the path passed to --shared-cache-path").
				Wrap(notFound("passed shared cache path doesn't exist: %s", opts.SharedCachePath)).
				BuildError()
		}
		return r.extractor.Extract(ctx, []string{opts.SharedCachePath})
	}

	img, err := objfile.Load(r.fs, binaryPath)
	if err != nil {
		return "", err
	}
	r.logger.Debug("detecting runtime root", "platform", img.Platform.String(), "min_os", img.MinOS, "arch", img.Arch)

	var root string
	switch img.Platform {
	case objfile.PlatformMacOS, objfile.PlatformMacCatalyst:
		root, err = r.extractor.Extract(ctx, r.locations.SharedCacheCandidates)
	case objfile.PlatformIOSSimulator:
		root, err = r.simulatorRoot("iOS")
	case objfile.PlatformTvOSSimulator:
		root, err = r.simulatorRoot("tvOS")
	case objfile.PlatformWatchOSSimulator:
		root, err = r.simulatorRoot("watchOS")
	case objfile.PlatformIOS:
		root, err = r.deviceSupportRoot()
	case objfile.PlatformUnknown:
		err = rootIssue("read build platform", binaryPath,
			notFound("no build version load command found in binary, pass --runtime-root or --shared-cache-path"))
	default:
		err = rootIssue("detect runtime root", binaryPath,
			notFound("unsupported platform (id: %d), pass --runtime-root or --shared-cache-path, and please file an issue so we can add support", uint32(img.Platform)))
	}
	if err != nil {
		return "", err
	}

	r.logger.Debug("resolved runtime root", "path", root)
	return root, nil
}

// simulatorRoot finds <volume>/Library/Developer/CoreSimulator/Profiles/Runtimes/<runtime>.simruntime/Contents/Resources/RuntimeRoot
// for the newest volume and runtime whose names match osName.
func (r *Resolver) simulatorRoot(osName string) (string, error) {
	volumesDir := r.locations.SimulatorVolumesDir
	fail := func() error {
		return rootIssue("find simulator runtime", volumesDir,
			notFound("no simulator runtimes found in '%s' for platform '%s'", volumesDir, osName),
			"Install the "+osName+" simulator runtime from Xcode")
	}

	volume, ok := r.greatestEntry(volumesDir, func(name string) bool {
		return strings.HasPrefix(name, osName)
	})
	if !ok {
		return "", fail()
	}

	runtimesDir := filepath.Join(volumesDir, volume, simRuntimesSubdir)
	simRuntime, ok := r.greatestEntry(runtimesDir, func(name string) bool {
		return strings.HasSuffix(name, simRuntimeSuffix)
	})
	if !ok {
		return "", fail()
	}

	root := filepath.Join(runtimesDir, simRuntime, simRootSubdir)
	if ok, err := afero.IsDir(r.fs, root); err != nil || !ok {
		return "", fail()
	}
	return root, nil
}

// deviceSupportRoot returns the Symbols directory of the newest device
// support entry.
func (r *Resolver) deviceSupportRoot() (string, error) {
	dir := r.locations.DeviceSupportDir
	fail := rootIssue("find device support", dir,
		notFound("no device support directory found in '%s'", dir),
		"Connect a device running this iOS version to Xcode once to download its symbols")

	newest, ok := r.greatestEntry(dir, func(string) bool { return true })
	if !ok {
		return "", fail
	}
	root := filepath.Join(dir, newest, deviceSymbols)
	if ok, err := afero.IsDir(r.fs, root); err != nil || !ok {
		return "", fail
	}
	return root, nil
}

// greatestEntry returns the lexicographically greatest directory entry of dir
// accepted by match.
func (r *Resolver) greatestEntry(dir string, match func(string) bool) (string, bool) {
	if dir == "" {
		return "", false
	}
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		r.logger.Debug("cannot list directory", "path", dir, "error", err)
		return "", false
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if name := entries[i].Name(); match(name) {
			return name, true
		}
	}
	return "", false
}

func rootIssue(operation, resource string, cause error, suggestions ...string) error {
	ctx := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithIssue(issue.RuntimeRootNotFoundId)
	for _, s := range suggestions {
		ctx.WithSuggestion(s)
	}
	return ctx.
		WithSuggestion("Pass the root explicitly with --runtime-root").
		WithSuggestion("Or extract one from a cache with --shared-cache-path").
		Wrap(cause).
		BuildError()
}
