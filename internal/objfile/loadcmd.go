// SPDX-License-Identifier: MPL-2.0

package objfile

import "fmt"

// Load command identifiers not exported by debug/macho.
const (
	lcReqDyld uint32 = 0x80000000

	lcLoadDylib          uint32 = 0xc
	lcIDDylib            uint32 = 0xd
	lcLoadWeakDylib      uint32 = 0x18 | lcReqDyld
	lcRpath              uint32 = 0x1c | lcReqDyld
	lcReexportDylib      uint32 = 0x1f | lcReqDyld
	lcLazyLoadDylib      uint32 = 0x20
	lcLoadUpwardDylib    uint32 = 0x23 | lcReqDyld
	lcVersionMinMacOSX   uint32 = 0x24
	lcVersionMinIPhoneOS uint32 = 0x25
	lcVersionMinTvOS     uint32 = 0x2f
	lcVersionMinWatchOS  uint32 = 0x30
	lcBuildVersion       uint32 = 0x32
)

var versionMinPlatforms = map[uint32]Platform{
	lcVersionMinMacOSX:   PlatformMacOS,
	lcVersionMinIPhoneOS: PlatformIOS,
	lcVersionMinTvOS:     PlatformTvOS,
	lcVersionMinWatchOS:  PlatformWatchOS,
}

type (
	buildVersionCmd struct {
		Cmd      uint32
		Len      uint32
		Platform uint32
		MinOS    uint32
		SDK      uint32
		NTools   uint32
	}

	versionMinCmd struct {
		Cmd     uint32
		Len     uint32
		Version uint32
		SDK     uint32
	}
)

func commandName(cmd uint32) string {
	switch cmd {
	case lcLoadDylib:
		return "LC_LOAD_DYLIB"
	case lcIDDylib:
		return "LC_ID_DYLIB"
	case lcLoadWeakDylib:
		return "LC_LOAD_WEAK_DYLIB"
	case lcRpath:
		return "LC_RPATH"
	case lcReexportDylib:
		return "LC_REEXPORT_DYLIB"
	case lcLazyLoadDylib:
		return "LC_LAZY_LOAD_DYLIB"
	case lcLoadUpwardDylib:
		return "LC_LOAD_UPWARD_DYLIB"
	case lcVersionMinMacOSX:
		return "LC_VERSION_MIN_MACOSX"
	case lcVersionMinIPhoneOS:
		return "LC_VERSION_MIN_IPHONEOS"
	case lcVersionMinTvOS:
		return "LC_VERSION_MIN_TVOS"
	case lcVersionMinWatchOS:
		return "LC_VERSION_MIN_WATCHOS"
	case lcBuildVersion:
		return "LC_BUILD_VERSION"
	default:
		return fmt.Sprintf("LC(%#x)", cmd)
	}
}
