package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vex-lang/vexc/internal/lsp"
)

var cmdBuild = &cobra.Command{
	Use:   "build <file>",
	Short: "Compile a vex source file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runBuild(args[0])
	},
}

var cmdRun = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile and run a vex source file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRun(args[0])
	},
}

var cmdFmt = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Format a vex source file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Formatting %s... (not implemented)\n", args[0])
	},
}

var cmdTest = &cobra.Command{
	Use:   "test [path]",
	Short: "Run tests in the specified path (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTest(args)
	},
}

var cmdLsp = &cobra.Command{
	Use:   "lsp",
	Short: "Start the Language Server Protocol server",
	Run: func(cmd *cobra.Command, args []string) {
		server := lsp.NewServer()
		if err := server.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "LSP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vex version %s\n", version.Short())
	},
}

func runBuild(filename string) {
	fmt.Printf("Building %s...\n", filename)

	tmpFile, err := compileToTemp(filename, argsRoot.locked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer os.Remove(tmpFile)

	// Determine output binary name
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	outName := strings.TrimSuffix(base, ext)

	// Find llc executable
	llcPath, err := findLLC()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Note: LLVM backend requires 'llc' (LLVM compiler) to be installed\n")
		fmt.Fprintf(os.Stderr, "  Install with: brew install llvm\n")
		fmt.Fprintf(os.Stderr, "  Or ensure llc is in your PATH\n")
		os.Exit(1)
	}

	// Apply LLVM optimizations if requested
	optimizationLevel := os.Getenv("VEX_OPT")
	if optimizationLevel == "" {
		optimizationLevel = "2" // Default to -O2
	}
	optimizedIRFile, err := optimizeLLVM(tmpFile, optimizationLevel)
	if err == nil && optimizedIRFile != tmpFile {
		// Use optimized IR file
		defer os.Remove(optimizedIRFile)
		tmpFile = optimizedIRFile
	}

	// Compile LLVM IR to object file
	objFile := tmpFile + ".o"

	// Add timeout for compilation
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	debugLog("Compiling LLVM IR to object file: %s -> %s\n", tmpFile, objFile)
	cmd := exec.CommandContext(ctx, llcPath, "-filetype=obj", "-mtriple=arm64-apple-darwin", "-o", objFile, tmpFile)
	var stderrBuf strings.Builder
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderrBuf
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			fmt.Fprintf(os.Stderr, "LLVM compilation timed out after 60s\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "LLVM compilation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "  llc path: %s\n", llcPath)
		if stderrBuf.Len() > 0 {
			fmt.Fprintf(os.Stderr, "\nllc error output:\n%s\n", stderrBuf.String())
		}
		// Also print the LLVM IR for debugging if it's small enough
		if irContent, err := os.ReadFile(tmpFile); err == nil && len(irContent) < 10000 {
			fmt.Fprintf(os.Stderr, "\nGenerated LLVM IR (for debugging):\n%s\n", string(irContent))
		}
		os.Exit(1)
	}
	debugLog("LLVM compilation successful\n")
	defer os.Remove(objFile)

	runtimeC, runtimeObj := locateRuntime(filename)

	if _, err := os.Stat(runtimeC); err == nil {
		if err := compileRuntime(ctx, runtimeC, runtimeObj); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer os.Remove(runtimeObj)
		cmd = linkWithRuntime(ctx, outName, objFile, runtimeObj)
	} else {
		fmt.Fprintf(os.Stderr, "Warning: runtime.c not found, linking without runtime library\n")
		cmd = exec.CommandContext(ctx, "clang", "-o", outName, objFile, "-lgc")
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			fmt.Fprintf(os.Stderr, "Linking timed out\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Linking failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Note: LLVM backend requires 'clang' to be installed\n")
		os.Exit(1)
	}
	debugLog("Linking successful\n")

	fmt.Printf("Build successful: %s\n", outName)
}

func runRun(filename string) {
	debugLog("runRun started for file: %s\n", filename)

	// Find llc executable
	llcPath, err := findLLC()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Note: LLVM backend requires 'llc' (LLVM compiler) to be installed\n")
		fmt.Fprintf(os.Stderr, "  Install with: brew install llvm\n")
		fmt.Fprintf(os.Stderr, "  Or ensure llc is in your PATH\n")
		os.Exit(1)
	}

	debugLog("Compiling to temp file...\n")
	tmpFile, err := compileToTemp(filename, argsRoot.locked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	debugLog("Compiled to temp file: %s\n", tmpFile)
	defer os.Remove(tmpFile)

	optimizationLevel := os.Getenv("VEX_OPT")
	if optimizationLevel == "" {
		optimizationLevel = "2"
	}
	debugLog("Applying optimizations (level %s)...\n", optimizationLevel)
	optimizedIRFile, err := optimizeLLVM(tmpFile, optimizationLevel)
	if err == nil && optimizedIRFile != tmpFile {
		defer os.Remove(optimizedIRFile)
		tmpFile = optimizedIRFile
	}
	debugLog("Optimization complete (or skipped)\n")

	objFile := tmpFile + ".o"

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	debugLog("Compiling LLVM IR to object file: %s -> %s\n", tmpFile, objFile)
	cmd := exec.CommandContext(ctx, llcPath, "-filetype=obj", "-mtriple=arm64-apple-darwin", "-o", objFile, tmpFile)
	var stderrBuf strings.Builder
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderrBuf
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			fmt.Fprintf(os.Stderr, "LLVM compilation timed out after 60s\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "LLVM compilation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "  llc path: %s\n", llcPath)
		if stderrBuf.Len() > 0 {
			fmt.Fprintf(os.Stderr, "\nllc error output:\n%s\n", stderrBuf.String())
		}
		if irContent, err := os.ReadFile(tmpFile); err == nil && len(irContent) < 10000 {
			fmt.Fprintf(os.Stderr, "\nGenerated LLVM IR (for debugging):\n%s\n", string(irContent))
		}
		os.Exit(1)
	}
	debugLog("LLVM compilation successful\n")
	defer os.Remove(objFile)

	runtimeC, runtimeObj := locateRuntime(filename)

	tmpBinary, err := os.CreateTemp("", "vex_bin_*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create temp binary: %v\n", err)
		os.Exit(1)
	}
	tmpBinary.Close()
	defer os.Remove(tmpBinary.Name())

	if _, err := os.Stat(runtimeC); err == nil {
		if err := compileRuntime(ctx, runtimeC, runtimeObj); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer os.Remove(runtimeObj)
		cmd = linkWithRuntime(ctx, tmpBinary.Name(), objFile, runtimeObj)
	} else {
		fmt.Fprintf(os.Stderr, "Warning: runtime.c not found, linking without runtime library\n")
		cmd = exec.CommandContext(ctx, "clang", "-o", tmpBinary.Name(), objFile, "-lgc")
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			fmt.Fprintf(os.Stderr, "Linking timed out\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Linking failed: %v\n", err)
		os.Exit(1)
	}
	debugLog("Linking successful\n")

	runCtx, runCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer runCancel()

	debugLog("Running binary: %s\n", tmpBinary.Name())
	cmd = exec.CommandContext(runCtx, tmpBinary.Name())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			fmt.Fprintf(os.Stderr, "Execution timed out after 60s\n")
			os.Exit(1)
		}
		os.Exit(1)
	}
	debugLog("Execution successful\n")
}

// locateRuntime finds runtime.c relative to the source file, falling
// back to a "runtime" directory relative to the current directory or
// the vex executable itself.
func locateRuntime(filename string) (runtimeC, runtimeObj string) {
	runtimeDir := filepath.Join(filepath.Dir(filename), "..", "runtime")
	if _, err := os.Stat(runtimeDir); os.IsNotExist(err) {
		runtimeDir = "runtime"
	}
	runtimeC = filepath.Join(runtimeDir, "runtime.c")

	if _, err := os.Stat(runtimeC); os.IsNotExist(err) {
		exePath, _ := os.Executable()
		if exePath != "" {
			exeDir := filepath.Dir(exePath)
			runtimeC = filepath.Join(exeDir, "..", "runtime", "runtime.c")
		}
	}
	return runtimeC, runtimeC + ".o"
}

// compileRuntime compiles runtime.c with Boehm GC support. Requires
// libgc-dev on Ubuntu or bdw-gc on Homebrew.
func compileRuntime(ctx context.Context, runtimeC, runtimeObj string) error {
	gcIncludePath := ""
	if brewPrefix := os.Getenv("HOMEBREW_PREFIX"); brewPrefix != "" {
		if _, err := os.Stat(brewPrefix + "/opt/bdw-gc/include/gc/gc.h"); err == nil {
			gcIncludePath = brewPrefix + "/opt/bdw-gc/include"
		} else if _, err := os.Stat(brewPrefix + "/include/gc/gc.h"); err == nil {
			gcIncludePath = brewPrefix + "/include"
		}
	} else {
		for _, prefix := range []string{"/opt/homebrew", "/usr/local"} {
			if _, err := os.Stat(prefix + "/opt/bdw-gc/include/gc/gc.h"); err == nil {
				gcIncludePath = prefix + "/opt/bdw-gc/include"
				break
			} else if _, err := os.Stat(prefix + "/include/gc/gc.h"); err == nil {
				gcIncludePath = prefix + "/include"
				break
			}
		}
	}

	compileArgs := []string{"-c", "-o", runtimeObj, runtimeC}
	if gcIncludePath != "" {
		compileArgs = append(compileArgs, "-I"+gcIncludePath)
	}

	debugLog("Compiling runtime: %s\n", runtimeC)
	cmd := exec.CommandContext(ctx, "clang", compileArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("runtime compilation timed out")
		}
		return fmt.Errorf("runtime compilation failed: %w (Boehm GC must be installed: libgc-dev on Ubuntu, bdw-gc on Homebrew)", err)
	}
	debugLog("Runtime compilation successful\n")
	return nil
}

// linkWithRuntime links objFile against the compiled runtime and the
// Boehm GC library into outName.
func linkWithRuntime(ctx context.Context, outName, objFile, runtimeObj string) *exec.Cmd {
	linkArgs := []string{"-o", outName, objFile, runtimeObj, "-lgc"}
	if brewPrefix := os.Getenv("HOMEBREW_PREFIX"); brewPrefix != "" {
		linkArgs = append(linkArgs, "-L"+brewPrefix+"/lib")
	} else {
		for _, prefix := range []string{"/opt/homebrew", "/usr/local"} {
			if _, err := os.Stat(prefix + "/lib/libgc.a"); err == nil {
				linkArgs = append(linkArgs, "-L"+prefix+"/lib")
				break
			}
		}
	}
	linkArgs = append(linkArgs, "-pthread")
	debugLog("Linking binary: %s\n", outName)
	return exec.CommandContext(ctx, "clang", linkArgs...)
}
