// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces ConfigDir's result when set. Tests use it because
// os.UserHomeDir ignores HOME on some CI runners.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
