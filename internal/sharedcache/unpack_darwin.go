// SPDX-License-Identifier: MPL-2.0

//go:build darwin

package sharedcache

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	extractorBundle = "usr/lib/dsc_extractor.bundle"
	extractSymbol   = "dyld_shared_cache_extract_dylibs_progress"

	blockIsGlobal = 1 << 28
)

type (
	// NativeUnpacker drives Apple's dsc_extractor.bundle, which ships with the
	// Xcode iOS platform SDK and exports the same routine dyld_shared_cache_util
	// uses.
	NativeUnpacker struct {
		platformPath func(ctx context.Context) (string, error)
	}

	// blockDescriptor and blockLiteral mirror the clang block ABI for a global
	// block without copy/dispose helpers.
	blockDescriptor struct {
		reserved uintptr
		size     uintptr
	}

	blockLiteral struct {
		isa        uintptr
		flags      int32
		reserved   int32
		invoke     uintptr
		descriptor *blockDescriptor
	}
)

var (
	// The block passed to the extractor is a package-level global so it is
	// never moved or collected while C holds it. Only one extraction runs at
	// a time; progressMu guards the callback it forwards to.
	progressMu       sync.Mutex
	progressCallback ProgressFunc

	progressBlockOnce sync.Once
	progressBlockErr  error
	progressBlockDesc = blockDescriptor{size: unsafe.Sizeof(blockLiteral{})}
	progressBlock     blockLiteral
)

// NewNativeUnpacker returns an unpacker that locates the bundle through xcrun.
func NewNativeUnpacker() *NativeUnpacker {
	return &NativeUnpacker{platformPath: xcrunPlatformPath}
}

// Unpack implements Unpacker.
func (u *NativeUnpacker) Unpack(ctx context.Context, cachePath, outDir string, progress ProgressFunc) error {
	platform, err := u.platformPath(ctx)
	if err != nil {
		return err
	}
	bundle := filepath.Join(platform, extractorBundle)

	handle, err := purego.Dlopen(bundle, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return fmt.Errorf("load %s: %w", bundle, err)
	}
	defer purego.Dlclose(handle)

	sym, err := purego.Dlsym(handle, extractSymbol)
	if err != nil {
		return fmt.Errorf("find %s in %s: %w", extractSymbol, bundle, err)
	}

	var extract func(cachePath, outDir string, block uintptr) int32
	purego.RegisterFunc(&extract, sym)

	block, err := globalProgressBlock()
	if err != nil {
		return err
	}

	progressMu.Lock()
	defer progressMu.Unlock()
	progressCallback = progress
	defer func() { progressCallback = nil }()

	if rc := extract(cachePath, outDir, block); rc != 0 {
		return fmt.Errorf("%s returned %d", extractSymbol, rc)
	}
	return nil
}

// globalProgressBlock builds the block literal on first use. Callbacks created
// with purego are never freed, so exactly one is made per process.
func globalProgressBlock() (uintptr, error) {
	progressBlockOnce.Do(func() {
		isa, err := purego.Dlsym(purego.RTLD_DEFAULT, "_NSConcreteGlobalBlock")
		if err != nil {
			progressBlockErr = fmt.Errorf("resolve _NSConcreteGlobalBlock: %w", err)
			return
		}
		progressBlock = blockLiteral{
			isa:        isa,
			flags:      blockIsGlobal,
			invoke:     purego.NewCallback(invokeProgress),
			descriptor: &progressBlockDesc,
		}
	})
	if progressBlockErr != nil {
		return 0, progressBlockErr
	}
	return uintptr(unsafe.Pointer(&progressBlock)), nil
}

// invokeProgress is the block's invoke function: void (^)(unsigned, unsigned).
func invokeProgress(_ uintptr, done, total uint32) {
	if cb := progressCallback; cb != nil {
		cb(done, total)
	}
}

func xcrunPlatformPath(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "xcrun", "--sdk", "iphoneos", "--show-sdk-platform-path").Output()
	if err != nil {
		return "", fmt.Errorf("xcrun --sdk iphoneos --show-sdk-platform-path: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
