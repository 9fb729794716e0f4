// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	UnsupportedFormatId Id = iota + 1
	NoArchitectureId
	FileUnreadableId
	RuntimeRootNotFoundId
	SharedCacheNotFoundId
	ExtractionFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // Apple and project documentation relevant to the issue
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue as terminal markdown using the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	unsupportedFormatIssue = &Issue{
		id: UnsupportedFormatId,
		mdMsg: `
# Not a Mach-O binary

dylibtree only understands Mach-O executables and dylibs, thin or universal.

## Things you can try
- For ELF binaries use ` + "`lddtree`" + ` or ` + "`ldd`" + ` instead.
- Check the file type:
~~~
$ file path/to/binary
~~~
- If ` + "`file`" + ` reports a Mach-O image, please file an issue with the magic shown above.`,
	}

	noArchitectureIssue = &Issue{
		id: NoArchitectureId,
		mdMsg: `
# Empty universal binary

The fat header lists no architecture slices, so there is nothing to inspect.

## Things you can try
- List the slices:
~~~
$ lipo -info path/to/binary
~~~
- Rebuild the binary, or file an issue if lipo reports slices.`,
	}

	fileUnreadableIssue = &Issue{
		id: FileUnreadableId,
		mdMsg: `
# Could not read a binary

A file on the dependency path exists in the tree but could not be opened.

## Things you can try
- Check permissions on the path shown above.
- Re-run with ` + "`--verbose`" + ` to see which candidate path was picked.`,
	}

	runtimeRootNotFoundIssue = &Issue{
		id: RuntimeRootNotFoundId,
		mdMsg: `
# No runtime root for this platform

System libraries for simulator and device binaries live outside the host's
` + "`/usr/lib`" + `. dylibtree looks for them in:

1. ` + "`/Library/Developer/CoreSimulator/Volumes`" + ` for simulator runtimes
2. ` + "`~/Library/Developer/Xcode/iOS DeviceSupport`" + ` for device symbols
3. the dyld shared cache for macOS binaries

## Things you can try
- Install the matching simulator runtime from Xcode's Platforms settings.
- Point dylibtree at a root directly:
~~~
$ dylibtree --runtime-root /path/to/RuntimeRoot path/to/binary
~~~
- Or extract from a specific cache:
~~~
$ dylibtree --shared-cache-path /path/to/dyld_shared_cache_arm64e path/to/binary
~~~`,
		docLinks: []HttpLink{"https://developer.apple.com/documentation/xcode/installing-additional-simulator-runtimes"},
	}

	sharedCacheNotFoundIssue = &Issue{
		id: SharedCacheNotFoundId,
		mdMsg: `
# dyld shared cache not found

macOS ships its system libraries inside the dyld shared cache instead of as
individual files. None of the known cache locations exist on this machine.

## Things you can try
- Pass the cache explicitly with ` + "`--shared-cache-path`" + `.
- Add the location to ` + "`shared_cache_candidates`" + ` in your config file.
- Please file an issue with your macOS version so the path can be added.`,
	}

	extractionFailedIssue = &Issue{
		id: ExtractionFailedId,
		mdMsg: `
# Shared cache extraction failed

Extraction is performed by ` + "`dsc_extractor.bundle`" + ` from the Xcode
iOS platform SDK. Any error it reported is printed above.

## Things you can try
- Make sure Xcode and its command line tools are installed:
~~~
$ xcrun --sdk iphoneos --show-sdk-platform-path
~~~
- Check free space in the extraction directory (` + "`extract_dir`" + `).
- Extract once by hand and pass the result with ` + "`--runtime-root`" + `.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Invalid configuration

The config file could not be parsed or does not match the expected schema.

## Things you can try
- Check the CUE syntax at the position reported above.
- Remove keys the schema does not define.
- Run with an explicit empty config to confirm the defaults work:
~~~
$ dylibtree --config /dev/null path/to/binary
~~~`,
	}

	catalog = []*Issue{
		unsupportedFormatIssue,
		noArchitectureIssue,
		fileUnreadableIssue,
		runtimeRootNotFoundIssue,
		sharedCacheNotFoundIssue,
		extractionFailedIssue,
		configLoadFailedIssue,
	}
)

// Values returns every catalog entry in Id order.
func Values() []*Issue {
	return slices.Clone(catalog)
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	for _, i := range catalog {
		if i.id == id {
			return i
		}
	}
	return nil
}
