// SPDX-License-Identifier: MPL-2.0

// Package objfile turns the bytes of an executable or shared library into the
// single-architecture view the dependency walker needs: the ordered list of
// dylib references, run-path entries and the platform the image was built for.
//
// Only Mach-O images are decoded. ELF, PE and static archives are recognised
// by their magic and rejected with a FormatError so the user gets a precise
// diagnostic instead of a generic parse failure. Fat (universal) containers
// are reduced to their first slice.
package objfile
