// SPDX-License-Identifier: MPL-2.0

// Package dyldpath expands dylib references into the ordered list of
// filesystem locations the dynamic loader would try.
//
// Generation is pure: nothing here touches the filesystem, so callers decide
// how candidates are probed.
package dyldpath

import (
	"path/filepath"
	"strings"
)

const (
	// RPathPrefix marks a reference resolved against the run-path list.
	RPathPrefix = "@rpath/"
	// ExecutablePathToken expands to the directory of the main executable.
	ExecutablePathToken = "@executable_path"
	// LoaderPathToken expands to the directory of the image holding the reference.
	LoaderPathToken = "@loader_path"
)

// Candidates returns the locations to probe for ref, in priority order.
//
// Rules:
//   - "@rpath/tail": for each run-path entry in declared order, an entry
//     starting with @executable_path or @loader_path yields the single
//     candidate dir(consumingImagePath)/remainder/tail; any other entry yields
//     entry/tail followed by the same path re-rooted under runtimeRoot.
//   - "@executable_path/x" or "@loader_path/x": dir(consumingImagePath)/x.
//   - anything else: ref verbatim, then ref re-rooted under runtimeRoot.
//
// Both load-time tokens resolve against the consuming image; the main
// executable is not tracked separately. The result may contain duplicates.
func Candidates(ref, consumingImagePath string, runPaths []string, runtimeRoot string) []string {
	if tail, ok := strings.CutPrefix(ref, RPathPrefix); ok {
		candidates := make([]string, 0, 2*len(runPaths))
		for _, entry := range runPaths {
			if rest, ok := cutLoadToken(entry); ok {
				candidates = append(candidates, join(filepath.Dir(consumingImagePath), rest, tail))
				continue
			}
			candidates = append(candidates,
				join(entry, tail),
				join(runtimeRoot, strings.TrimPrefix(entry, "/"), tail),
			)
		}
		return candidates
	}

	if rest, ok := cutLoadToken(ref); ok {
		return []string{join(filepath.Dir(consumingImagePath), rest)}
	}

	return []string{ref, Reroot(ref, runtimeRoot)}
}

// Reroot places an absolute path under root.
func Reroot(path, root string) string {
	return join(root, strings.TrimPrefix(path, "/"))
}

// cutLoadToken strips a leading @executable_path or @loader_path token. The
// bare token, with nothing after it, is accepted and yields "".
func cutLoadToken(s string) (string, bool) {
	for _, tok := range []string{ExecutablePathToken, LoaderPathToken} {
		rest, ok := strings.CutPrefix(s, tok)
		if !ok {
			continue
		}
		if rest == "" {
			return "", true
		}
		if r, ok := strings.CutPrefix(rest, "/"); ok {
			return r, true
		}
	}
	return "", false
}

// join concatenates path elements with single separators without cleaning
// "..", so candidates keep the shape the loader would see.
func join(elems ...string) string {
	var b strings.Builder
	for _, e := range elems {
		if e == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(e)
			continue
		}
		if !strings.HasSuffix(b.String(), "/") {
			b.WriteByte('/')
		}
		b.WriteString(strings.TrimPrefix(e, "/"))
	}
	return b.String()
}
