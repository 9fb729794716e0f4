// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the dylibtree command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dylibtree/dylibtree/internal/config"
	"github.com/dylibtree/dylibtree/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the parsed command-line flags. Only flags the user actually
// set override configuration.
type rootFlags struct {
	excludeAllDuplicates      bool
	includeSystemDependencies bool
	ignorePrefixes            []string
	sharedCachePath           string
	runtimeRoot               string
	depth                     int
	verbose                   bool
	configPath                string
}

// NewRootCommand builds the dylibtree command. It has no subcommands.
func NewRootCommand(app *App) *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "dylibtree [flags] BINARY",
		Short: "Print the shared library dependency tree of a Mach-O binary",
		Long: TitleStyle.Render("dylibtree") + SubtitleStyle.Render(" - shared library dependency tree for Mach-O binaries") + `

dylibtree reads the dylibs a binary links against, resolves @rpath,
@executable_path and @loader_path references the way dyld does, and prints
the whole closure as an indented tree. References that cannot be found are
marked instead of failing the run.

System libraries are printed as leaves unless ` + CmdStyle.Render("--include-system-dependencies") + `
is given, in which case they are resolved under the binary's platform root:
an extracted dyld shared cache for macOS, the newest simulator runtime for
simulator builds, or Xcode's device support symbols for iOS.

` + SubtitleStyle.Render("Examples:") + `
  dylibtree /Applications/App.app/Contents/MacOS/App
  dylibtree -e -p /usr/lib/swift/ ./build/tool
  dylibtree -i -d 2 ./Build/Products/Debug-iphonesimulator/App.app/App
  dylibtree -r ~/sdk/root ./tool`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.verbose = flags.verbose

			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return failed(err)
			}
			flags.applyTo(cmd.Flags(), cfg)
			app.verbose = cfg.Verbose

			if err := app.Tree(cmd.Context(), TreeRequest{Binary: args[0], Config: cfg}); err != nil {
				return failed(err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&flags.excludeAllDuplicates, "exclude-all-duplicates", "e", false, "do not print libraries that were already printed elsewhere in the tree")
	f.BoolVarP(&flags.includeSystemDependencies, "include-system-dependencies", "i", false, "resolve system libraries under the platform runtime root")
	f.StringArrayVarP(&flags.ignorePrefixes, "ignore-prefixes", "p", nil, "skip references starting with this prefix (repeatable)")
	f.StringVarP(&flags.sharedCachePath, "shared-cache-path", "s", "", "dyld shared cache to extract and use as the runtime root")
	f.StringVarP(&flags.runtimeRoot, "runtime-root", "r", "", "directory to use in place of / for absolute references")
	f.IntVarP(&flags.depth, "depth", "d", -1, "maximum depth to print, negative for unlimited")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "print debug logs to stderr")
	f.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/dylibtree/config.cue)")

	return cmd
}

// applyTo overrides cfg with every flag set on the command line.
func (f *rootFlags) applyTo(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("exclude-all-duplicates") {
		cfg.ExcludeAllDuplicates = f.excludeAllDuplicates
	}
	if fs.Changed("include-system-dependencies") {
		cfg.IncludeSystemDependencies = f.includeSystemDependencies
	}
	if fs.Changed("ignore-prefixes") {
		cfg.IgnorePrefixes = f.ignorePrefixes
	}
	if fs.Changed("shared-cache-path") {
		cfg.SharedCachePath = f.sharedCachePath
	}
	if fs.Changed("runtime-root") {
		cfg.RuntimeRoot = f.runtimeRoot
	}
	if fs.Changed("depth") {
		cfg.Depth = f.depth
	}
	if fs.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs dylibtree with os.Args and returns the process exit code.
func Main() int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return int(types.ExitFailure)
	}
	return run(context.Background(), app, os.Args[1:])
}

// Execute runs dylibtree and exits the process. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

func run(ctx context.Context, app *App, args []string) int {
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	return exitCode(fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.renderError),
	))
}
