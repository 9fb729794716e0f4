// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers that fail the test on setup errors and
// hand back cleanup functions, so fixtures stay one line at the call site.
package testutil
