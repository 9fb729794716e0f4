// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Fatal errors that end a dylibtree run are reported as ActionableError values
// naming the failed operation and the path involved. Each can point at a
// catalog entry with Markdown guidance that the CLI renders in verbose mode.
package issue
