// SPDX-License-Identifier: MPL-2.0

//go:build !darwin

package sharedcache

import "context"

// NativeUnpacker is unavailable off macOS; dsc_extractor.bundle only ships
// with Xcode.
type NativeUnpacker struct{}

// NewNativeUnpacker returns an unpacker that always fails with ErrUnsupportedHost.
func NewNativeUnpacker() *NativeUnpacker {
	return &NativeUnpacker{}
}

// Unpack implements Unpacker.
func (*NativeUnpacker) Unpack(context.Context, string, string, ProgressFunc) error {
	return ErrUnsupportedHost
}
