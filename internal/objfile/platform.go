// SPDX-License-Identifier: MPL-2.0

package objfile

import "fmt"

// Platform is the numeric platform identifier recorded by LC_BUILD_VERSION.
type Platform uint32

const (
	PlatformUnknown           Platform = 0
	PlatformMacOS             Platform = 1
	PlatformIOS               Platform = 2
	PlatformTvOS              Platform = 3
	PlatformWatchOS           Platform = 4
	PlatformBridgeOS          Platform = 5
	PlatformMacCatalyst       Platform = 6
	PlatformIOSSimulator      Platform = 7
	PlatformTvOSSimulator     Platform = 8
	PlatformWatchOSSimulator  Platform = 9
	PlatformDriverKit         Platform = 10
	PlatformVisionOS          Platform = 11
	PlatformVisionOSSimulator Platform = 12
)

var platformNames = map[Platform]string{
	PlatformMacOS:             "macOS",
	PlatformIOS:               "iOS",
	PlatformTvOS:              "tvOS",
	PlatformWatchOS:           "watchOS",
	PlatformBridgeOS:          "bridgeOS",
	PlatformMacCatalyst:       "macCatalyst",
	PlatformIOSSimulator:      "iOS Simulator",
	PlatformTvOSSimulator:     "tvOS Simulator",
	PlatformWatchOSSimulator:  "watchOS Simulator",
	PlatformDriverKit:         "DriverKit",
	PlatformVisionOS:          "visionOS",
	PlatformVisionOSSimulator: "visionOS Simulator",
}

func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	if p == PlatformUnknown {
		return "unknown"
	}
	return fmt.Sprintf("platform(%d)", uint32(p))
}

// IsSimulator reports whether p is one of the simulator platforms.
func (p Platform) IsSimulator() bool {
	switch p {
	case PlatformIOSSimulator, PlatformTvOSSimulator, PlatformWatchOSSimulator, PlatformVisionOSSimulator:
		return true
	default:
		return false
	}
}

// formatVersion renders a packed xxxx.yy.zz nibble version as a dotted string,
// dropping a zero patch component the way Apple tools do.
func formatVersion(v uint32) string {
	major, minor, patch := v>>16, (v>>8)&0xff, v&0xff
	if patch == 0 {
		return fmt.Sprintf("%d.%d", major, minor)
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}
