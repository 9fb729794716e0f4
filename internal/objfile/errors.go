// SPDX-License-Identifier: MPL-2.0

package objfile

import (
	"errors"
	"fmt"
)

const (
	// KindUnknown is a magic that matches no known object format.
	KindUnknown FormatKind = iota
	// KindELF is an ELF object.
	KindELF
	// KindPE is a PE/COFF object.
	KindPE
	// KindArchive is a static ar(1) archive.
	KindArchive
)

// ErrNoArchitecture is returned for a fat container that lists no slices.
var ErrNoArchitecture = errors.New("no architectures found in fat binary, please file an issue if this is a valid Mach-O file")

type (
	// FormatKind classifies a rejected object format.
	FormatKind int

	// FormatError reports a file whose object format is not Mach-O.
	FormatError struct {
		Path  string
		Kind  FormatKind
		Magic uint32
	}

	// MalformedError reports a Mach-O image whose structure is inconsistent,
	// such as a load command string offset pointing outside its command.
	MalformedError struct {
		Path string
		Err  error
	}
)

// String returns the conventional name of the format.
func (k FormatKind) String() string {
	switch k {
	case KindELF:
		return "ELF"
	case KindPE:
		return "PE"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case KindELF:
		return fmt.Sprintf("%s: error: ELF binaries are not currently supported, use lddtree instead", e.Path)
	case KindPE:
		return fmt.Sprintf("%s: error: PE binaries are not currently supported", e.Path)
	case KindArchive:
		return fmt.Sprintf("%s: error: archives are not currently supported", e.Path)
	default:
		return fmt.Sprintf("%s: error: unknown file magic: %#x, please file an issue if this is a Mach-O file", e.Path, e.Magic)
	}
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: error: malformed Mach-O: %v", e.Path, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}
