// SPDX-License-Identifier: MPL-2.0

// Package deptree walks the dylib dependency closure of a Mach-O image and
// renders it as an indented tree.
//
// Every image that gets expanded prints "name:" indented two spaces per depth
// level. A reference that is not expanded again prints as a bare "name", and
// one that resolves nowhere prints "name: warning: not found".
package deptree

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/dylibtree/dylibtree/internal/dyldpath"
	"github.com/dylibtree/dylibtree/internal/objfile"

	"github.com/spf13/afero"
)

const (
	indentWidth   = 2
	notFoundLabel = "warning: not found"
)

type (
	// Options controls what the walker expands and prints.
	Options struct {
		// RuntimeRoot is the directory absolute references are re-rooted
		// under as a second candidate. Empty means "/".
		RuntimeRoot string
		// MaxDepth is the deepest level whose references are followed.
		// Negative means unlimited.
		MaxDepth int
		// IgnorePrefixes drops matching references without output.
		IgnorePrefixes []string
		// LeafPrefixes prints matching references as leaves without probing.
		LeafPrefixes []string
		// ExcludeAllDuplicates suppresses the leaf line for references
		// already expanded elsewhere in the tree.
		ExcludeAllDuplicates bool
	}

	// Walker performs depth-first traversals. It is not safe for concurrent use.
	Walker struct {
		opts   Options
		fs     afero.Fs
		out    io.Writer
		logger *slog.Logger
	}

	// Option configures a Walker during construction.
	Option func(*Walker)
)

// WithFs sets the filesystem images are read and probed through.
func WithFs(fs afero.Fs) Option {
	return func(w *Walker) {
		w.fs = fs
	}
}

// WithOutput sets the writer the tree is rendered to.
func WithOutput(out io.Writer) Option {
	return func(w *Walker) {
		w.out = out
	}
}

// WithLogger sets the logger for trace output.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		w.logger = l
	}
}

// New creates a Walker. Defaults are the OS filesystem, stdout and the
// default slog logger.
func New(opts Options, options ...Option) *Walker {
	if opts.MaxDepth < 0 {
		opts.MaxDepth = math.MaxInt
	}
	if opts.RuntimeRoot == "" {
		opts.RuntimeRoot = "/"
	}
	w := &Walker{opts: opts}
	for _, o := range options {
		o(w)
	}
	if w.fs == nil {
		w.fs = afero.NewOsFs()
	}
	if w.out == nil {
		w.out = os.Stdout
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Run prints the dependency tree of binaryPath, using the path itself as the
// root's display name.
func (w *Walker) Run(binaryPath string) error {
	bw := bufio.NewWriter(w.out)
	out := w.out
	w.out = bw
	defer func() { w.out = out }()

	_, err := w.Walk(binaryPath, binaryPath, 0, VisitedSet{})
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	return err
}

// Walk expands the image at imagePath, printed as displayName at depth, and
// returns visited extended with every reference claimed beneath it.
//
// Unresolvable references are reported in the output and do not fail the
// walk. Errors reading or decoding any image in the subtree are returned
// immediately.
func (w *Walker) Walk(imagePath, displayName string, depth int, visited VisitedSet) (VisitedSet, error) {
	w.logger.Debug("visiting image", "path", imagePath, "name", displayName, "depth", depth)

	img, err := objfile.Load(w.fs, imagePath)
	if err != nil {
		return visited, err
	}
	if img.Divergent {
		w.logger.Warn("fat binary slices declare different dependencies, showing the first slice",
			"path", imagePath, "arch", img.Arch, "slices", img.Slices)
	}

	if err := w.line(depth, displayName+":"); err != nil {
		return visited, err
	}

	for _, ref := range img.Dependencies {
		if ref == objfile.SelfMarker || ref == displayName {
			continue
		}
		if depth+1 > w.opts.MaxDepth {
			continue
		}
		if prefix, ok := matchPrefix(ref, w.opts.IgnorePrefixes); ok {
			w.logger.Debug("ignoring prefix", "reference", ref, "prefix", prefix)
			continue
		}

		if visited.Contains(ref) {
			if !w.opts.ExcludeAllDuplicates {
				if err := w.line(depth+1, ref); err != nil {
					return visited, err
				}
			}
			continue
		}
		visited = visited.With(ref)

		if _, ok := matchPrefix(ref, w.opts.LeafPrefixes); ok {
			if err := w.line(depth+1, ref); err != nil {
				return visited, err
			}
			continue
		}

		found, ok := w.probe(dyldpath.Candidates(ref, imagePath, img.RunPaths, w.opts.RuntimeRoot))
		if !ok {
			if err := w.line(depth+1, ref+": "+notFoundLabel); err != nil {
				return visited, err
			}
			continue
		}

		sub, err := w.Walk(found, ref, depth+1, visited)
		if err != nil {
			return visited, err
		}
		visited = visited.Merge(sub)
	}

	return visited, nil
}

// probe returns the first candidate that exists as a regular file.
func (w *Walker) probe(candidates []string) (string, bool) {
	for _, c := range candidates {
		w.logger.Debug("checking path", "path", c)
		info, err := w.fs.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		w.logger.Debug("found path", "path", c)
		return c, true
	}
	return "", false
}

func (w *Walker) line(depth int, text string) error {
	_, err := fmt.Fprintf(w.out, "%s%s\n", strings.Repeat(" ", indentWidth*depth), text)
	return err
}

func matchPrefix(ref string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(ref, p) {
			return p, true
		}
	}
	return "", false
}
