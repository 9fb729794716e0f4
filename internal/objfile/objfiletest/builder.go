// SPDX-License-Identifier: MPL-2.0

// Package objfiletest synthesizes minimal Mach-O images for tests.
//
// The images carry only the load commands the dependency walker reads, which
// is enough for debug/macho to parse them:
//
//	data := objfiletest.New().
//		ID("@rpath/libfoo.dylib").
//		Dylib("/usr/lib/libSystem.B.dylib").
//		RPath("@loader_path/../Frameworks").
//		BuildVersion(objfile.PlatformMacOS, "14.0").
//		Bytes()
package objfiletest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dylibtree/dylibtree/internal/objfile"
)

const (
	magic64      = 0xfeedfacf
	cpuArm64     = 0x0100000c
	cpuX8664     = 0x01000007
	fileExecute  = 0x2
	fileDylib    = 0x6
	headerSize64 = 32

	lcLoadDylib          = 0xc
	lcIDDylib            = 0xd
	lcLoadWeakDylib      = 0x80000018
	lcRpath              = 0x8000001c
	lcReexportDylib      = 0x8000001f
	lcVersionMinMacOSX   = 0x24
	lcVersionMinIPhoneOS = 0x25
	lcBuildVersion       = 0x32
)

// Builder accumulates load commands for a 64-bit little-endian image.
type Builder struct {
	cpu      uint32
	fileType uint32
	cmds     [][]byte
}

// New returns a builder for an arm64 executable.
func New() *Builder {
	return &Builder{cpu: cpuArm64, fileType: fileExecute}
}

// X86 switches the CPU type to x86_64.
func (b *Builder) X86() *Builder {
	b.cpu = cpuX8664
	return b
}

// ID adds LC_ID_DYLIB and marks the image as a dylib.
func (b *Builder) ID(name string) *Builder {
	b.fileType = fileDylib
	b.cmds = append(b.cmds, dylibCommand(lcIDDylib, name))
	return b
}

// Dylib adds an LC_LOAD_DYLIB reference per name.
func (b *Builder) Dylib(names ...string) *Builder {
	for _, n := range names {
		b.cmds = append(b.cmds, dylibCommand(lcLoadDylib, n))
	}
	return b
}

// WeakDylib adds an LC_LOAD_WEAK_DYLIB reference.
func (b *Builder) WeakDylib(name string) *Builder {
	b.cmds = append(b.cmds, dylibCommand(lcLoadWeakDylib, name))
	return b
}

// ReexportDylib adds an LC_REEXPORT_DYLIB reference.
func (b *Builder) ReexportDylib(name string) *Builder {
	b.cmds = append(b.cmds, dylibCommand(lcReexportDylib, name))
	return b
}

// RPath adds an LC_RPATH entry per path.
func (b *Builder) RPath(paths ...string) *Builder {
	for _, p := range paths {
		b.cmds = append(b.cmds, stringCommand(lcRpath, 12, p))
	}
	return b
}

// BuildVersion adds LC_BUILD_VERSION for platform with a dotted minimum OS.
func (b *Builder) BuildVersion(p objfile.Platform, minOS string) *Builder {
	cmd := make([]byte, 24)
	binary.LittleEndian.PutUint32(cmd[0:], lcBuildVersion)
	binary.LittleEndian.PutUint32(cmd[4:], 24)
	binary.LittleEndian.PutUint32(cmd[8:], uint32(p))
	binary.LittleEndian.PutUint32(cmd[12:], packVersion(minOS))
	binary.LittleEndian.PutUint32(cmd[16:], packVersion(minOS))
	b.cmds = append(b.cmds, cmd)
	return b
}

// VersionMinMacOS adds LC_VERSION_MIN_MACOSX.
func (b *Builder) VersionMinMacOS(version string) *Builder {
	b.cmds = append(b.cmds, versionMin(lcVersionMinMacOSX, version))
	return b
}

// VersionMinIOS adds LC_VERSION_MIN_IPHONEOS.
func (b *Builder) VersionMinIOS(version string) *Builder {
	b.cmds = append(b.cmds, versionMin(lcVersionMinIPhoneOS, version))
	return b
}

// RawDylib adds an LC_LOAD_DYLIB whose name offset is set verbatim, for
// exercising malformed input.
func (b *Builder) RawDylib(nameOffset uint32, name string) *Builder {
	cmd := dylibCommand(lcLoadDylib, name)
	binary.LittleEndian.PutUint32(cmd[8:], nameOffset)
	b.cmds = append(b.cmds, cmd)
	return b
}

// Bytes serializes the image.
func (b *Builder) Bytes() []byte {
	var body bytes.Buffer
	for _, c := range b.cmds {
		body.Write(c)
	}

	hdr := make([]byte, headerSize64)
	binary.LittleEndian.PutUint32(hdr[0:], magic64)
	binary.LittleEndian.PutUint32(hdr[4:], b.cpu)
	binary.LittleEndian.PutUint32(hdr[8:], 0)
	binary.LittleEndian.PutUint32(hdr[12:], b.fileType)
	binary.LittleEndian.PutUint32(hdr[16:], uint32(len(b.cmds)))
	binary.LittleEndian.PutUint32(hdr[20:], uint32(body.Len()))

	return append(hdr, body.Bytes()...)
}

// WriteFile writes the image to path, creating parent directories.
func (b *Builder) WriteFile(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Fat wraps thin images into a universal container. Slices are page aligned.
func Fat(thin ...[]byte) []byte {
	const align = 1 << 12

	hdrLen := 8 + 20*len(thin)
	offset := (hdrLen + align - 1) &^ (align - 1)

	out := make([]byte, offset)
	binary.BigEndian.PutUint32(out[0:], 0xcafebabe)
	binary.BigEndian.PutUint32(out[4:], uint32(len(thin)))

	for i, t := range thin {
		entry := out[8+20*i:]
		binary.BigEndian.PutUint32(entry[0:], binary.LittleEndian.Uint32(t[4:8]))
		binary.BigEndian.PutUint32(entry[4:], 0)
		binary.BigEndian.PutUint32(entry[8:], uint32(len(out)))
		binary.BigEndian.PutUint32(entry[12:], uint32(len(t)))
		binary.BigEndian.PutUint32(entry[16:], 12)

		out = append(out, t...)
		if pad := len(out) % align; pad != 0 {
			out = append(out, make([]byte, align-pad)...)
		}
	}
	return out
}

// dylibCommand lays out a dylib_command: cmd, cmdsize, name offset,
// timestamp, current and compatibility versions, then the name.
func dylibCommand(cmd uint32, name string) []byte {
	c := stringCommand(cmd, 24, name)
	binary.LittleEndian.PutUint32(c[12:], 2)
	binary.LittleEndian.PutUint32(c[16:], 0x10000)
	binary.LittleEndian.PutUint32(c[20:], 0x10000)
	return c
}

// stringCommand builds a command with a fixed header of hdrLen bytes followed
// by a NUL-terminated string, padded to 8 bytes.
func stringCommand(cmd uint32, hdrLen int, s string) []byte {
	size := hdrLen + len(s) + 1
	size = (size + 7) &^ 7
	c := make([]byte, size)
	binary.LittleEndian.PutUint32(c[0:], cmd)
	binary.LittleEndian.PutUint32(c[4:], uint32(size))
	binary.LittleEndian.PutUint32(c[8:], uint32(hdrLen))
	copy(c[hdrLen:], s)
	return c
}

func versionMin(cmd uint32, version string) []byte {
	c := make([]byte, 16)
	binary.LittleEndian.PutUint32(c[0:], cmd)
	binary.LittleEndian.PutUint32(c[4:], 16)
	binary.LittleEndian.PutUint32(c[8:], packVersion(version))
	binary.LittleEndian.PutUint32(c[12:], packVersion(version))
	return c
}

func packVersion(v string) uint32 {
	var parts [3]uint32
	for i, p := range strings.SplitN(v, ".", 3) {
		n, _ := strconv.ParseUint(p, 10, 32)
		parts[i] = uint32(n)
	}
	return parts[0]<<16 | (parts[1]&0xff)<<8 | parts[2]&0xff
}
