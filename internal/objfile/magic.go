// SPDX-License-Identifier: MPL-2.0

package objfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	machoMagic32 uint32 = 0xfeedface
	machoMagic64 uint32 = 0xfeedfacf
	machoCigam32 uint32 = 0xcefaedfe
	machoCigam64 uint32 = 0xcffaedfe
	fatMagic     uint32 = 0xcafebabe
	fatMagic64   uint32 = 0xcafebabf

	// maxFatArches separates universal binaries from Java class files,
	// which share the 0xcafebabe magic but store a class file version
	// (always well above this) where the slice count would be.
	maxFatArches = 30
)

type sniffKind int

const (
	kindUnknown sniffKind = iota
	kindThin
	kindFat
	kindELF
	kindPE
	kindArchive
)

// sniff classifies data by its leading magic. The returned magic is the first
// four bytes read big-endian, zero padded for short inputs.
func sniff(data []byte) (sniffKind, uint32) {
	var head [4]byte
	copy(head[:], data)
	magic := binary.BigEndian.Uint32(head[:])

	switch {
	case magic == machoMagic32, magic == machoMagic64, magic == machoCigam32, magic == machoCigam64:
		return kindThin, magic
	case magic == fatMagic || magic == fatMagic64:
		if len(data) >= 8 && binary.BigEndian.Uint32(data[4:8]) > maxFatArches {
			return kindUnknown, magic
		}
		return kindFat, magic
	case bytes.HasPrefix(data, []byte("\x7fELF")):
		return kindELF, magic
	case bytes.HasPrefix(data, []byte("!<arch>\n")):
		return kindArchive, magic
	case bytes.HasPrefix(data, []byte("MZ")):
		return kindPE, magic
	default:
		return kindUnknown, magic
	}
}

type fatArch struct {
	cpu    uint32
	subCpu uint32
	offset uint64
	size   uint64
}

// fatArches decodes the big-endian fat header and its arch table.
func fatArches(data []byte, wide bool) ([]fatArch, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("fat header truncated")
	}
	n := binary.BigEndian.Uint32(data[4:8])

	entrySize := 20
	if wide {
		entrySize = 32
	}
	if uint64(len(data)) < 8+uint64(n)*uint64(entrySize) {
		return nil, fmt.Errorf("fat arch table truncated: %d entries do not fit in %d bytes", n, len(data))
	}

	arches := make([]fatArch, 0, n)
	for i := range int(n) {
		e := data[8+i*entrySize:]
		a := fatArch{
			cpu:    binary.BigEndian.Uint32(e[0:4]),
			subCpu: binary.BigEndian.Uint32(e[4:8]),
		}
		if wide {
			a.offset = binary.BigEndian.Uint64(e[8:16])
			a.size = binary.BigEndian.Uint64(e[16:24])
		} else {
			a.offset = uint64(binary.BigEndian.Uint32(e[8:12]))
			a.size = uint64(binary.BigEndian.Uint32(e[12:16]))
		}
		arches = append(arches, a)
	}
	return arches, nil
}

const (
	cpuArch64    uint32 = 0x01000000
	cpuTypeX86   uint32 = 7
	cpuTypeArm   uint32 = 12
	cpuTypePPC   uint32 = 18
	cpuSubArm64E uint32 = 2
	cpuSubX8664H uint32 = 8
	cpuSubMask   uint32 = 0x00ffffff
)

func cpuName(cpu, sub uint32) string {
	sub &= cpuSubMask
	switch cpu {
	case cpuTypeX86:
		return "i386"
	case cpuTypeX86 | cpuArch64:
		if sub == cpuSubX8664H {
			return "x86_64h"
		}
		return "x86_64"
	case cpuTypeArm:
		return "arm"
	case cpuTypeArm | cpuArch64:
		if sub == cpuSubArm64E {
			return "arm64e"
		}
		return "arm64"
	case cpuTypeArm | 0x02000000:
		return "arm64_32"
	case cpuTypePPC:
		return "ppc"
	case cpuTypePPC | cpuArch64:
		return "ppc64"
	default:
		return fmt.Sprintf("cpu(%#x)", cpu)
	}
}
