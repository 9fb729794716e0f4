// SPDX-License-Identifier: MPL-2.0

package objfile_test

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dylibtree/dylibtree/internal/issue"
	"github.com/dylibtree/dylibtree/internal/objfile"
	"github.com/dylibtree/dylibtree/internal/objfile/objfiletest"

	"github.com/spf13/afero"
)

func TestDecode_Executable(t *testing.T) {
	data := objfiletest.New().
		Dylib("@rpath/libfoo.dylib", "/usr/lib/libSystem.B.dylib").
		WeakDylib("/usr/lib/libweak.dylib").
		ReexportDylib("/usr/lib/libre.dylib").
		RPath("@executable_path/../Frameworks", "/opt/lib").
		BuildVersion(objfile.PlatformIOSSimulator, "17.2").
		Bytes()

	img, err := objfile.Decode("/bin/app", data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	wantDeps := []string{
		objfile.SelfMarker,
		"@rpath/libfoo.dylib",
		"/usr/lib/libSystem.B.dylib",
		"/usr/lib/libweak.dylib",
		"/usr/lib/libre.dylib",
	}
	if !slices.Equal(img.Dependencies, wantDeps) {
		t.Errorf("Dependencies = %v, want %v", img.Dependencies, wantDeps)
	}
	wantRPaths := []string{"@executable_path/../Frameworks", "/opt/lib"}
	if !slices.Equal(img.RunPaths, wantRPaths) {
		t.Errorf("RunPaths = %v, want %v", img.RunPaths, wantRPaths)
	}
	if img.ID != "" {
		t.Errorf("ID = %q, want empty", img.ID)
	}
	if img.Platform != objfile.PlatformIOSSimulator {
		t.Errorf("Platform = %v, want %v", img.Platform, objfile.PlatformIOSSimulator)
	}
	if img.MinOS != "17.2" {
		t.Errorf("MinOS = %q, want %q", img.MinOS, "17.2")
	}
	if img.Arch != "arm64" {
		t.Errorf("Arch = %q, want arm64", img.Arch)
	}
	if img.Slices != 1 {
		t.Errorf("Slices = %d, want 1", img.Slices)
	}
	if img.Path != "/bin/app" {
		t.Errorf("Path = %q, want /bin/app", img.Path)
	}
}

func TestDecode_DylibIdentity(t *testing.T) {
	data := objfiletest.New().
		ID("@rpath/libfoo.dylib").
		Dylib("/usr/lib/libSystem.B.dylib").
		Bytes()

	img, err := objfile.Decode("libfoo.dylib", data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.ID != "@rpath/libfoo.dylib" {
		t.Errorf("ID = %q, want @rpath/libfoo.dylib", img.ID)
	}
	if img.Dependencies[0] != "@rpath/libfoo.dylib" {
		t.Errorf("Dependencies[0] = %q, want the install name", img.Dependencies[0])
	}
	if want := []string{"@rpath/libfoo.dylib", "/usr/lib/libSystem.B.dylib"}; !slices.Equal(img.Dependencies, want) {
		t.Errorf("Dependencies = %v, want %v", img.Dependencies, want)
	}
}

func TestDecode_VersionMinFallback(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantPlatform objfile.Platform
		wantMinOS    string
	}{
		{
			name:         "macos min version",
			data:         objfiletest.New().VersionMinMacOS("10.13").Bytes(),
			wantPlatform: objfile.PlatformMacOS,
			wantMinOS:    "10.13",
		},
		{
			name:         "ios min version",
			data:         objfiletest.New().VersionMinIOS("12.1.3").Bytes(),
			wantPlatform: objfile.PlatformIOS,
			wantMinOS:    "12.1.3",
		},
		{
			name:         "build version wins",
			data:         objfiletest.New().VersionMinIOS("12.0").BuildVersion(objfile.PlatformMacCatalyst, "14.0").Bytes(),
			wantPlatform: objfile.PlatformMacCatalyst,
			wantMinOS:    "14.0",
		},
		{
			name:         "no metadata",
			data:         objfiletest.New().Bytes(),
			wantPlatform: objfile.PlatformUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := objfile.Decode("bin", tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if img.Platform != tt.wantPlatform {
				t.Errorf("Platform = %v, want %v", img.Platform, tt.wantPlatform)
			}
			if img.MinOS != tt.wantMinOS {
				t.Errorf("MinOS = %q, want %q", img.MinOS, tt.wantMinOS)
			}
		})
	}
}

func TestDecode_RejectsOtherFormats(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantKind objfile.FormatKind
		wantMsg  string
	}{
		{
			name:     "elf",
			data:     []byte("\x7fELF\x02\x01\x01\x00"),
			wantKind: objfile.KindELF,
			wantMsg:  "bin: error: ELF binaries are not currently supported, use lddtree instead",
		},
		{
			name:     "pe",
			data:     []byte("MZ\x90\x00\x03\x00"),
			wantKind: objfile.KindPE,
			wantMsg:  "bin: error: PE binaries are not currently supported",
		},
		{
			name:     "archive",
			data:     []byte("!<arch>\nfoo.o/"),
			wantKind: objfile.KindArchive,
			wantMsg:  "bin: error: archives are not currently supported",
		},
		{
			name:     "unknown",
			data:     []byte("#!/bin/sh\n"),
			wantKind: objfile.KindUnknown,
			wantMsg:  "bin: error: unknown file magic: 0x23212f62, please file an issue if this is a Mach-O file",
		},
		{
			name:     "java class",
			data:     []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x34},
			wantKind: objfile.KindUnknown,
			wantMsg:  "bin: error: unknown file magic: 0xcafebabe, please file an issue if this is a Mach-O file",
		},
		{
			name:     "empty",
			data:     nil,
			wantKind: objfile.KindUnknown,
			wantMsg:  "bin: error: unknown file magic: 0x0, please file an issue if this is a Mach-O file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := objfile.Decode("bin", tt.data)
			var fe *objfile.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Decode() error = %v, want *FormatError", err)
			}
			if fe.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", fe.Kind, tt.wantKind)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestDecode_Fat(t *testing.T) {
	arm := objfiletest.New().Dylib("/usr/lib/libA.dylib").Bytes()
	x86 := objfiletest.New().X86().Dylib("/usr/lib/libA.dylib").Bytes()

	img, err := objfile.Decode("fat", objfiletest.Fat(arm, x86))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Slices != 2 {
		t.Errorf("Slices = %d, want 2", img.Slices)
	}
	if img.Arch != "arm64" {
		t.Errorf("Arch = %q, want the first slice (arm64)", img.Arch)
	}
	if img.Divergent {
		t.Error("Divergent = true for slices with identical dependencies")
	}
}

func TestDecode_FatDivergent(t *testing.T) {
	x86 := objfiletest.New().X86().Dylib("/usr/lib/libX.dylib").Bytes()
	arm := objfiletest.New().Dylib("/usr/lib/libA.dylib", "/usr/lib/libB.dylib").Bytes()

	img, err := objfile.Decode("fat", objfiletest.Fat(x86, arm))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !img.Divergent {
		t.Error("Divergent = false, want true")
	}
	want := []string{objfile.SelfMarker, "/usr/lib/libX.dylib"}
	if !slices.Equal(img.Dependencies, want) {
		t.Errorf("Dependencies = %v, want first slice %v", img.Dependencies, want)
	}
	if img.Arch != "x86_64" {
		t.Errorf("Arch = %q, want x86_64", img.Arch)
	}
}

func TestDecode_FatIgnoresBrokenLaterSlices(t *testing.T) {
	good := objfiletest.New().Dylib("/usr/lib/libA.dylib").Bytes()

	tests := []struct {
		name  string
		other []byte
	}{
		{
			name:  "malformed dylib command",
			other: objfiletest.New().X86().RawDylib(4000, "/usr/lib/libA.dylib").Bytes(),
		},
		{
			name:  "not a Mach-O slice",
			other: []byte("\x7fELF\x02\x01\x01\x00" + strings.Repeat("\x00", 56)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := objfile.Decode("/bin/fat", objfiletest.Fat(good, tt.other))
			if err != nil {
				t.Fatalf("Decode() error = %v, want the first slice to decode", err)
			}
			want := []string{objfile.SelfMarker, "/usr/lib/libA.dylib"}
			if !slices.Equal(img.Dependencies, want) {
				t.Errorf("Dependencies = %v, want %v", img.Dependencies, want)
			}
			if !img.Divergent {
				t.Error("Divergent = false for an undecodable slice")
			}
			if img.Slices != 2 {
				t.Errorf("Slices = %d, want 2", img.Slices)
			}
		})
	}
}

func TestDecode_FatBrokenFirstSlice(t *testing.T) {
	bad := objfiletest.New().RawDylib(4000, "/usr/lib/libA.dylib").Bytes()
	good := objfiletest.New().X86().Dylib("/usr/lib/libA.dylib").Bytes()

	_, err := objfile.Decode("/bin/fat", objfiletest.Fat(bad, good))
	var me *objfile.MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("Decode() error = %v, want *MalformedError", err)
	}
}

func TestDecode_FatWithoutSlices(t *testing.T) {
	_, err := objfile.Decode("fat", objfiletest.Fat())
	if !errors.Is(err, objfile.ErrNoArchitecture) {
		t.Fatalf("Decode() error = %v, want ErrNoArchitecture", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "name offset past command",
			data: objfiletest.New().RawDylib(4096, "/usr/lib/libA.dylib").Bytes(),
		},
		{
			name: "truncated load commands",
			data: objfiletest.New().Dylib("/usr/lib/libA.dylib").Bytes()[:40],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := objfile.Decode("bad", tt.data)
			var me *objfile.MalformedError
			if !errors.As(err, &me) {
				t.Fatalf("Decode() error = %v, want *MalformedError", err)
			}
			if !strings.HasPrefix(err.Error(), "bad: error: malformed Mach-O") {
				t.Errorf("Error() = %q, want malformed prefix", err.Error())
			}
		})
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/apps", "tool")
	if err := afero.WriteFile(fs, path, objfiletest.New().Dylib("/usr/lib/libA.dylib").Bytes(), 0o755); err != nil {
		t.Fatal(err)
	}

	img, err := objfile.Load(fs, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.Path != path {
		t.Errorf("Path = %q, want %q", img.Path, path)
	}

	_, err = objfile.Load(fs, "/apps/missing")
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Load(missing) error = %v, want *issue.ActionableError", err)
	}
	if ae.Resource != "/apps/missing" {
		t.Errorf("Resource = %q, want /apps/missing", ae.Resource)
	}
}

func TestPlatform_String(t *testing.T) {
	tests := []struct {
		p    objfile.Platform
		want string
	}{
		{objfile.PlatformMacOS, "macOS"},
		{objfile.PlatformIOSSimulator, "iOS Simulator"},
		{objfile.PlatformVisionOS, "visionOS"},
		{objfile.PlatformUnknown, "unknown"},
		{objfile.Platform(42), "platform(42)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Platform(%d).String() = %q, want %q", uint32(tt.p), got, tt.want)
		}
	}
}
