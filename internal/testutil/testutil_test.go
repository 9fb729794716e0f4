// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMustSetenv_RestoresUnset(t *testing.T) {
	const key = "DYLIBTREE_TESTUTIL_PROBE"
	MustUnsetenv(t, key)()

	restore := MustSetenv(t, key, "on")
	if got := os.Getenv(key); got != "on" {
		t.Errorf("%s = %q, want on", key, got)
	}

	restore()
	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s should be unset after cleanup", key)
	}
}

func TestMustUnsetenv_RestoresValue(t *testing.T) {
	const key = "DYLIBTREE_TESTUTIL_PROBE"
	defer MustSetenv(t, key, "before")()

	restore := MustUnsetenv(t, key)
	if _, ok := os.LookupEnv(key); ok {
		t.Fatalf("%s should be unset", key)
	}

	restore()
	if got := os.Getenv(key); got != "before" {
		t.Errorf("%s = %q after cleanup, want before", key, got)
	}
}

func TestSetHomeDir(t *testing.T) {
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")

	cleanup := SetHomeDir(t, tmpDir)
	if got := os.Getenv("HOME"); got != tmpDir {
		t.Errorf("HOME = %q, want %q", got, tmpDir)
	}

	cleanup()
	if got := os.Getenv("HOME"); got != originalHome {
		t.Errorf("After cleanup, HOME = %q, want %q", got, originalHome)
	}
}

func TestMustChdir(t *testing.T) {
	// Resolve symlinks so the comparison holds on macOS, where /var is /private/var.
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	before, _ := os.Getwd()

	restore := MustChdir(t, dir)
	if got, _ := os.Getwd(); got != dir {
		t.Errorf("Getwd() = %q, want %q", got, dir)
	}

	restore()
	if got, _ := os.Getwd(); got != before {
		t.Errorf("Getwd() after cleanup = %q, want %q", got, before)
	}
}

func TestMustWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.cue")
	MustWriteFile(t, path, "depth: 1\n")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "depth: 1\n" {
		t.Errorf("content = %q", data)
	}
}
