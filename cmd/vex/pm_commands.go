package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vex-lang/vexc/internal/pm"
)

var cmdPm = &cobra.Command{
	Use:   "pm",
	Short: "Manage vex package dependencies",
}

var argsPmAdd struct {
	git  string
	path string
}

var cmdPmAdd = &cobra.Command{
	Use:   "add <name>[@version]",
	Short: "Add a dependency to vex.json",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, version := splitNameVersion(args[0])
		if version == "" {
			version = "latest"
		}

		manifest := loadOrInitManifest()
		if manifest.Dependencies == nil {
			manifest.Dependencies = make(map[string]pm.Dependency)
		}
		manifest.Dependencies[name] = pm.Dependency{
			Version: version,
			Git:     argsPmAdd.git,
			Path:    argsPmAdd.path,
		}

		if err := manifest.Save(manifestPathInCWD()); err != nil {
			fmt.Fprintf(os.Stderr, "add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added %s %s to %s\n", name, version, pm.ManifestFileName)
	},
}

// cmdPmGet resolves and fetches every dependency in vex.json, writing
// (or reusing) vex.lock — the day-to-day "install my dependencies" step.
var cmdPmGet = &cobra.Command{
	Use:   "get",
	Short: "Resolve and fetch dependencies from vex.json, writing vex.lock",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := openPmOrExit()
		defer mgr.Close()

		if err := mgr.Install(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "get failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Dependencies fetched; vex.lock written.")
	},
}

// cmdPmTidy drops any existing vex.lock and re-resolves from scratch,
// picking up newly added manifest entries and dropping stale ones.
var cmdPmTidy = &cobra.Command{
	Use:   "tidy",
	Short: "Re-resolve dependencies, discarding any existing vex.lock",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := openPmOrExit()
		defer mgr.Close()

		lockPath := filepath.Join(cwdOrExit(), pm.LockFileName)
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "tidy failed: could not remove stale %s: %v\n", pm.LockFileName, err)
			os.Exit(1)
		}
		if err := mgr.Install(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "tidy failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Dependencies re-resolved; vex.lock rewritten.")
	},
}

var cmdPmWhy = &cobra.Command{
	Use:   "why <package>",
	Short: "Explain which version of a dependency was resolved",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr := openPmOrExit()
		defer mgr.Close()

		resolvedVersion, err := mgr.Why(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s resolved to %s\n", args[0], resolvedVersion)
	},
}

var cmdPmList = &cobra.Command{
	Use:   "list",
	Short: "List every package in the local dependency cache",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := openPmOrExit()
		defer mgr.Close()

		packages, err := mgr.Cache.List(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
			os.Exit(1)
		}
		if len(packages) == 0 {
			fmt.Println("No packages cached.")
			return
		}
		for _, p := range packages {
			fmt.Printf("%s %s  %s\n", p.Name, p.Version, p.Path)
		}
	},
}

func init() {
	cmdPmAdd.Flags().StringVar(&argsPmAdd.git, "git", "", "git URL the dependency is fetched from")
	cmdPmAdd.Flags().StringVar(&argsPmAdd.path, "path", "", "local path to a workspace dependency")
}

func splitNameVersion(spec string) (name, version string) {
	if idx := strings.LastIndex(spec, "@"); idx > 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}

func cwdOrExit() string {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pm: %v\n", err)
		os.Exit(1)
	}
	return wd
}

func manifestPathInCWD() string {
	return filepath.Join(cwdOrExit(), pm.ManifestFileName)
}

func loadOrInitManifest() *pm.Manifest {
	path := manifestPathInCWD()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &pm.Manifest{Name: filepath.Base(cwdOrExit()), Version: "0.1.0"}
	}
	manifest, err := pm.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pm add: %v\n", err)
		os.Exit(1)
	}
	return manifest
}

func openPmOrExit() *pm.Manager {
	mgr, err := pm.Open(cwdOrExit())
	if err != nil {
		fmt.Fprintf(os.Stderr, "pm: %v\n", err)
		os.Exit(1)
	}
	return mgr
}
