// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dylibtree/dylibtree/internal/objfile"
	"github.com/dylibtree/dylibtree/internal/objfile/objfiletest"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"dylibtree": Main,
	}))
}

// TestCLI runs all testscript tests in the testdata directory.
func TestCLI(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"mkmacho": cmdMkmacho,
		},
		Setup: func(env *testscript.Env) error {
			// Keep a developer's own config and environment out of the scripts.
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, ".config"))
			return nil
		},
	})
}

var scriptPlatforms = map[string]objfile.Platform{
	"macos":     objfile.PlatformMacOS,
	"ios":       objfile.PlatformIOS,
	"iossim":    objfile.PlatformIOSSimulator,
	"driverkit": objfile.PlatformDriverKit,
}

// cmdMkmacho writes a Mach-O image built from key/value pairs:
//
//	mkmacho FILE [id NAME] [dylib NAME]... [rpath PATH]... [platform NAME] [kind elf]
func cmdMkmacho(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! mkmacho")
	}
	if len(args) == 0 {
		ts.Fatalf("usage: mkmacho FILE [id NAME] [dylib NAME]... [rpath PATH]... [platform NAME] [kind elf]")
	}

	b := objfiletest.New()
	var data []byte
	for rest := args[1:]; len(rest) > 0; rest = rest[2:] {
		if len(rest) < 2 {
			ts.Fatalf("mkmacho: %s needs a value", rest[0])
		}
		key, val := rest[0], rest[1]
		switch key {
		case "id":
			b.ID(val)
		case "dylib":
			b.Dylib(val)
		case "rpath":
			b.RPath(val)
		case "platform":
			p, ok := scriptPlatforms[val]
			if !ok {
				ts.Fatalf("mkmacho: unknown platform %q", val)
			}
			b.BuildVersion(p, "14.0")
		case "kind":
			if val != "elf" {
				ts.Fatalf("mkmacho: unknown kind %q", val)
			}
			data = append([]byte("\x7fELF\x02\x01\x01"), make([]byte, 57)...)
		default:
			ts.Fatalf("mkmacho: unknown key %q", key)
		}
	}
	if data == nil {
		data = b.Bytes()
	}

	path := ts.MkAbs(args[0])
	ts.Check(os.MkdirAll(filepath.Dir(path), 0o755))
	ts.Check(os.WriteFile(path, data, 0o755))
}
