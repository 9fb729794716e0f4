// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package sharedcache

import "errors"

// errFlockUnavailable is returned where flock does not exist. The Bridge then
// relies on its in-process mutex alone.
var errFlockUnavailable = errors.New("flock not available on this platform")

func acquireLock(string) (releaser, error) {
	return nil, errFlockUnavailable
}
