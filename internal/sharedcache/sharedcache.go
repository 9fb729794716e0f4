// SPDX-License-Identifier: MPL-2.0

// Package sharedcache turns a dyld shared cache into a directory tree of
// individual dylibs that can serve as a runtime root.
//
// Unpacking is slow, so results are kept under a directory named after the
// cache path and reused by later runs. The unpack itself is delegated to an
// Unpacker; on macOS hosts that is Apple's dsc_extractor bundle.
package sharedcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dylibtree/dylibtree/internal/issue"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

const stagingSuffix = ".partial"

var (
	// ErrCacheNotFound is returned when none of the candidate cache paths exist.
	ErrCacheNotFound = errors.New("failed to find shared cache, please provide the path with --shared-cache-path and file an issue so we can add the new path")
	// ErrExtractionFailed wraps any unpack failure.
	ErrExtractionFailed = errors.New("failed to extract shared cache, see above for the error from dyld")
	// ErrUnsupportedHost is returned by the native unpacker on hosts without dsc_extractor.
	ErrUnsupportedHost = errors.New("shared cache extraction requires a macOS host with Xcode installed")
)

type (
	// ProgressFunc receives the number of dylibs extracted so far and the total.
	ProgressFunc func(done, total uint32)

	// Extractor produces a runtime root directory from a shared cache.
	Extractor interface {
		// Extract unpacks the first existing path in candidates and returns
		// the directory holding its dylibs.
		Extract(ctx context.Context, candidates []string) (string, error)
	}

	// Unpacker performs the actual unpack of cachePath into outDir.
	Unpacker interface {
		Unpack(ctx context.Context, cachePath, outDir string, progress ProgressFunc) error
	}

	// Bridge is the Extractor used by the CLI. Extraction happens at most once
	// per cache path: within a process via an in-memory map, across runs via
	// the keyed output directory, and across concurrent processes via a lock
	// file next to it.
	Bridge struct {
		fs         afero.Fs
		unpacker   Unpacker
		extractDir string
		logger     *slog.Logger
		lock       func(path string) (releaser, error)

		mu   sync.Mutex
		memo map[string]string
	}

	// BridgeOption configures a Bridge during construction.
	BridgeOption func(*Bridge)

	releaser interface {
		Release()
	}
)

// WithFs sets the filesystem used for existence checks and staging.
func WithFs(fs afero.Fs) BridgeOption {
	return func(b *Bridge) {
		b.fs = fs
	}
}

// WithLogger sets the logger progress and trace output go to.
func WithLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = l
	}
}

// NewBridge creates a Bridge writing below extractDir.
func NewBridge(extractDir string, unpacker Unpacker, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		unpacker:   unpacker,
		extractDir: extractDir,
		lock:       acquireLock,
		memo:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Key derives the directory name used for cachePath.
func Key(cachePath string) string {
	return strconv.FormatUint(xxhash.Sum64String(cachePath), 16)
}

// Extract implements Extractor.
func (b *Bridge) Extract(ctx context.Context, candidates []string) (string, error) {
	cachePath, ok := b.firstExisting(candidates)
	if !ok {
		return "", issue.NewErrorContext().
			WithOperation("locate dyld shared cache").
			WithIssue(issue.SharedCacheNotFoundId).
			WithSuggestion("Pass the cache with --shared-cache-path").
			WithSuggestion("Add its location to shared_cache_candidates in the config file").
			Wrap(ErrCacheNotFound).
			BuildError()
	}
	b.logger.Debug("using shared cache", "path", cachePath)

	b.mu.Lock()
	defer b.mu.Unlock()

	if dir, ok := b.memo[cachePath]; ok {
		return dir, nil
	}

	dir, err := b.extract(ctx, cachePath)
	if err != nil {
		return "", err
	}
	b.memo[cachePath] = dir
	return dir, nil
}

func (b *Bridge) extract(ctx context.Context, cachePath string) (string, error) {
	outDir := filepath.Join(b.extractDir, Key(cachePath))
	if b.isDir(outDir) {
		b.logger.Debug("reusing extracted shared cache", "path", outDir)
		return outDir, nil
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("extract shared cache canceled: %w", err)
	}

	if err := b.fs.MkdirAll(b.extractDir, 0o755); err != nil {
		return "", issue.NewErrorContext().
			WithOperation("create extraction directory").
			WithResource(b.extractDir).
			WithSuggestion("Set extract_dir in the config file to a writable directory").
			Wrap(err).
			BuildError()
	}

	l, err := b.lock(outDir + ".lock")
	switch {
	case errors.Is(err, errFlockUnavailable):
		b.logger.Debug("extraction lock unavailable, relying on in-process serialization")
	case err != nil:
		return "", fmt.Errorf("lock extraction directory: %w", err)
	default:
		defer l.Release()
	}

	// Another process may have finished while we waited for the lock.
	if b.isDir(outDir) {
		return outDir, nil
	}

	staging := outDir + stagingSuffix
	if err := b.fs.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("remove stale staging directory %s: %w", staging, err)
	}
	if err := b.fs.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory %s: %w", staging, err)
	}

	b.logger.Info("extracting shared cache, this only happens once per cache", "cache", cachePath)
	if err := b.unpacker.Unpack(ctx, cachePath, staging, newProgressReporter(b.logger)); err != nil {
		if rmErr := b.fs.RemoveAll(staging); rmErr != nil {
			b.logger.Debug("failed to remove staging directory", "path", staging, "error", rmErr)
		}
		return "", issue.NewErrorContext().
			WithOperation("unpack dyld shared cache").
			WithResource(cachePath).
			WithIssue(issue.ExtractionFailedId).
			WithSuggestion("Check that Xcode is installed: xcrun --sdk iphoneos --show-sdk-platform-path").
			WithSuggestion("Pass an already extracted tree with --runtime-root").
			Wrap(fmt.Errorf("%w: %w", ErrExtractionFailed, err)).
			BuildError()
	}

	if err := b.fs.Rename(staging, outDir); err != nil {
		return "", fmt.Errorf("move extracted cache into place: %w", err)
	}
	b.logger.Debug("extracted shared cache to", "path", outDir)
	return outDir, nil
}

func (b *Bridge) firstExisting(candidates []string) (string, bool) {
	for _, c := range candidates {
		if ok, err := afero.Exists(b.fs, c); err == nil && ok {
			return c, true
		}
	}
	return "", false
}

func (b *Bridge) isDir(path string) bool {
	ok, err := afero.IsDir(b.fs, path)
	return err == nil && ok
}

// newProgressReporter logs "extracted N/M" whenever another tenth of the
// cache has been written, plus once at completion.
func newProgressReporter(logger *slog.Logger) ProgressFunc {
	lastDecile := -1
	return func(done, total uint32) {
		if total == 0 {
			return
		}
		decile := int(uint64(done) * 10 / uint64(total))
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		logger.Info(fmt.Sprintf("extracted %d/%d", done, total))
	}
}
