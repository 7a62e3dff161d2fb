package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"
)

var version = semver.Version{
	Major: 0,
	Minor: 1,
	Patch: 0,
	Build: semver.Commit(),
}

var argsRoot struct {
	showVersion bool
	locked      bool
}

var cmdRoot = &cobra.Command{
	Use:   "vex",
	Short: "Root command for the vex toolchain",
	Long:  `Compile, run, format and manage dependencies for vex source files.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if argsRoot.showVersion {
			fmt.Printf("vex version %s\n", version.Short())
		}
		return nil
	},
}

func main() {
	level := slog.LevelInfo
	if os.Getenv("VEX_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// --version / -v short-circuits before cobra parses subcommands, matching
	// how earlier vex releases reported their version.
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			fmt.Printf("vex version %s\n", version.Short())
			return
		}
	}

	if err := Execute(); err != nil {
		log.Fatal(err)
	}
}

func Execute() error {
	cmdRoot.PersistentFlags().BoolVar(&argsRoot.showVersion, "show-version", false, "print version before running")
	cmdRoot.PersistentFlags().BoolVar(&argsRoot.locked, "locked", false, "require an up-to-date vex.lock, failing instead of re-resolving")

	cmdRoot.AddCommand(cmdBuild)
	cmdRoot.AddCommand(cmdRun)
	cmdRoot.AddCommand(cmdFmt)
	cmdRoot.AddCommand(cmdTest)
	cmdRoot.AddCommand(cmdLsp)
	cmdRoot.AddCommand(cmdVersion)

	cmdRoot.AddCommand(cmdPm)
	cmdPm.AddCommand(cmdPmAdd)
	cmdPm.AddCommand(cmdPmGet)
	cmdPm.AddCommand(cmdPmTidy)
	cmdPm.AddCommand(cmdPmWhy)
	cmdPm.AddCommand(cmdPmList)

	return cmdRoot.Execute()
}

// debugLog keeps the printf-style call sites used throughout the driver
// but routes through slog so verbosity is gated by a level, not an ad
// hoc env check at each call site.
func debugLog(format string, a ...interface{}) {
	slog.Debug(strings.TrimSuffix(fmt.Sprintf(format, a...), "\n"))
}
