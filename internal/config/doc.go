// SPDX-License-Identifier: MPL-2.0

// Package config handles dylibtree configuration using Viper with CUE as the
// file format.
//
// Settings are layered: built-in defaults, then config.cue from the config
// directory (~/.config/dylibtree on Linux, ~/Library/Application
// Support/dylibtree on macOS) or the file passed with --config, then
// DYLIBTREE_* environment variables. The file is validated against the
// embedded #Config schema in config_schema.cue.
package config
