// SPDX-License-Identifier: MPL-2.0

package objfile

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/dylibtree/dylibtree/internal/issue"

	"github.com/spf13/afero"
)

// SelfMarker is the reserved dependency slot that stands for the image itself
// when the image carries no install name (executables, bundles).
const SelfMarker = "self"

// Image is the architecture-specific view of one object file.
//
// Dependencies keeps the declared order of the load commands and may contain
// repeats. Its first element always identifies the image itself: the install
// name for dylibs, SelfMarker otherwise.
type Image struct {
	// Path is the filesystem path the image was read from.
	Path string
	// ID is the install name from LC_ID_DYLIB, empty for executables.
	ID string
	// Dependencies are the referenced dylibs, identity slot first.
	Dependencies []string
	// RunPaths are the LC_RPATH entries in declared order.
	RunPaths []string
	// Platform is the target platform, PlatformUnknown without build metadata.
	Platform Platform
	// MinOS is the minimum OS version as a dotted string, informational only.
	MinOS string
	// Arch is the CPU name of the decoded slice.
	Arch string
	// Slices is the number of architectures in the container (1 for thin files).
	Slices int
	// Divergent is set when another slice of a fat container declares
	// different dependencies than the decoded one, or cannot be decoded.
	Divergent bool
}

// Load reads path through fs and decodes it.
func Load(fs afero.Fs, path string) (*Image, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read binary").
			WithResource(path).
			WithIssue(issue.FileUnreadableId).
			WithSuggestion("Check that the file exists and is readable").
			Wrap(err).
			BuildError()
	}
	return Decode(path, data)
}

// Decode parses data as a Mach-O image. path is only used for diagnostics and
// recorded in the returned Image.
func Decode(path string, data []byte) (*Image, error) {
	kind, magic := sniff(data)
	switch kind {
	case kindThin:
		img, err := decodeThin(path, data)
		if err != nil {
			return nil, err
		}
		img.Slices = 1
		return img, nil
	case kindFat:
		return decodeFat(path, data, magic)
	case kindELF:
		return nil, &FormatError{Path: path, Kind: KindELF, Magic: magic}
	case kindPE:
		return nil, &FormatError{Path: path, Kind: KindPE, Magic: magic}
	case kindArchive:
		return nil, &FormatError{Path: path, Kind: KindArchive, Magic: magic}
	default:
		return nil, &FormatError{Path: path, Kind: KindUnknown, Magic: magic}
	}
}

func decodeThin(path string, data []byte) (*Image, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}
	defer f.Close()

	img := &Image{
		Path:         path,
		Dependencies: []string{SelfMarker},
		Arch:         cpuName(uint32(f.Cpu), f.SubCpu),
	}
	var (
		minVersionPlatform Platform
		minVersion         uint32
		haveBuildVersion   bool
	)

	for i, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 8 {
			return nil, &MalformedError{Path: path, Err: fmt.Errorf("load command %d is truncated", i)}
		}
		cmd := f.ByteOrder.Uint32(raw[0:4])

		switch cmd {
		case lcLoadDylib, lcLoadWeakDylib, lcReexportDylib, lcLazyLoadDylib, lcLoadUpwardDylib:
			name, err := commandString(raw, f.ByteOrder)
			if err != nil {
				return nil, &MalformedError{Path: path, Err: fmt.Errorf("load command %d (%s): %w", i, commandName(cmd), err)}
			}
			img.Dependencies = append(img.Dependencies, name)

		case lcIDDylib:
			name, err := commandString(raw, f.ByteOrder)
			if err != nil {
				return nil, &MalformedError{Path: path, Err: fmt.Errorf("load command %d (%s): %w", i, commandName(cmd), err)}
			}
			img.ID = name
			img.Dependencies[0] = name

		case lcRpath:
			entry, err := commandString(raw, f.ByteOrder)
			if err != nil {
				return nil, &MalformedError{Path: path, Err: fmt.Errorf("load command %d (%s): %w", i, commandName(cmd), err)}
			}
			img.RunPaths = append(img.RunPaths, entry)

		case lcBuildVersion:
			var bv buildVersionCmd
			if err := binary.Read(bytes.NewReader(raw), f.ByteOrder, &bv); err != nil {
				return nil, &MalformedError{Path: path, Err: fmt.Errorf("load command %d (%s): %w", i, commandName(cmd), err)}
			}
			if !haveBuildVersion {
				img.Platform = Platform(bv.Platform)
				img.MinOS = formatVersion(bv.MinOS)
				haveBuildVersion = true
			}

		case lcVersionMinMacOSX, lcVersionMinIPhoneOS, lcVersionMinTvOS, lcVersionMinWatchOS:
			var vm versionMinCmd
			if err := binary.Read(bytes.NewReader(raw), f.ByteOrder, &vm); err != nil {
				return nil, &MalformedError{Path: path, Err: fmt.Errorf("load command %d (%s): %w", i, commandName(cmd), err)}
			}
			if minVersionPlatform == PlatformUnknown {
				minVersionPlatform = versionMinPlatforms[cmd]
				minVersion = vm.Version
			}
		}
	}

	if !haveBuildVersion && minVersionPlatform != PlatformUnknown {
		img.Platform = minVersionPlatform
		img.MinOS = formatVersion(minVersion)
	}

	return img, nil
}

func decodeFat(path string, data []byte, magic uint32) (*Image, error) {
	arches, err := fatArches(data, magic == fatMagic64)
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}
	if len(arches) == 0 {
		return nil, fmt.Errorf("%s: error: %w", path, ErrNoArchitecture)
	}

	primary, err := decodeSlice(path, data, arches[0], 0)
	if err != nil {
		return nil, err
	}
	primary.Slices = len(arches)

	// Only the first slice is shown. The rest are compared against it, and a
	// slice that cannot be decoded counts as divergent.
	for i, a := range arches[1:] {
		img, err := decodeSlice(path, data, a, i+1)
		if err != nil || !slices.Equal(primary.Dependencies, img.Dependencies) {
			primary.Divergent = true
			break
		}
	}

	return primary, nil
}

func decodeSlice(path string, data []byte, a fatArch, i int) (*Image, error) {
	end := a.offset + a.size
	if end < a.offset || end > uint64(len(data)) {
		return nil, &MalformedError{Path: path, Err: fmt.Errorf("fat slice %d extends past end of file", i)}
	}
	slice := data[a.offset:end]
	if k, _ := sniff(slice); k != kindThin {
		return nil, &MalformedError{Path: path, Err: fmt.Errorf("fat slice %d is not a Mach-O image", i)}
	}
	return decodeThin(path, slice)
}

// commandString returns the NUL-terminated string whose offset is stored in
// the third word of a load command, as used by dylib and rpath commands.
func commandString(raw []byte, bo binary.ByteOrder) (string, error) {
	if len(raw) < 12 {
		return "", fmt.Errorf("command too short (%d bytes)", len(raw))
	}
	off := bo.Uint32(raw[8:12])
	if off < 12 || uint64(off) >= uint64(len(raw)) {
		return "", fmt.Errorf("string offset %d outside command of %d bytes", off, len(raw))
	}
	s := raw[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}
