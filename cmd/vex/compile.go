package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/borrow"
	"github.com/vex-lang/vexc/internal/codegen/llvm"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/parser"
	"github.com/vex-lang/vexc/internal/pm"
	"github.com/vex-lang/vexc/internal/types"
	"github.com/vex-lang/vexc/internal/visibility"
)

// findLLC finds the llc executable, checking PATH first, then common installation locations.
func findLLC() (string, error) {
	// First, try to find llc in PATH
	if path, err := exec.LookPath("llc"); err == nil {
		return path, nil
	}

	// If not in PATH, check common Homebrew locations
	brewPrefix := os.Getenv("HOMEBREW_PREFIX")
	if brewPrefix == "" {
		// Try common Homebrew prefixes
		for _, prefix := range []string{"/opt/homebrew", "/usr/local"} {
			llcPath := filepath.Join(prefix, "opt/llvm/bin/llc")
			if _, err := os.Stat(llcPath); err == nil {
				return llcPath, nil
			}
		}
	} else {
		// Check HOMEBREW_PREFIX location
		llcPath := filepath.Join(brewPrefix, "opt/llvm/bin/llc")
		if _, err := os.Stat(llcPath); err == nil {
			return llcPath, nil
		}
	}

	return "", fmt.Errorf("llc not found in PATH or common installation locations")
}

// findOpt finds the opt executable (LLVM optimizer), checking PATH first, then common installation locations.
func findOpt() (string, error) {
	// First, try to find opt in PATH
	if path, err := exec.LookPath("opt"); err == nil {
		return path, nil
	}

	// If not in PATH, check common Homebrew locations
	brewPrefix := os.Getenv("HOMEBREW_PREFIX")
	if brewPrefix == "" {
		// Try common Homebrew prefixes
		for _, prefix := range []string{"/opt/homebrew", "/usr/local"} {
			optPath := filepath.Join(prefix, "opt/llvm/bin/opt")
			if _, err := os.Stat(optPath); err == nil {
				return optPath, nil
			}
		}
	} else {
		// Check HOMEBREW_PREFIX location
		optPath := filepath.Join(brewPrefix, "opt/llvm/bin/opt")
		if _, err := os.Stat(optPath); err == nil {
			return optPath, nil
		}
	}

	return "", fmt.Errorf("opt not found in PATH or common installation locations")
}

// optimizeLLVM applies LLVM optimization passes to the IR file.
// Returns the path to the optimized IR file, or the original file if optimization fails.
func optimizeLLVM(irFile string, optimizationLevel string) (string, error) {
	debugLog("Starting LLVM optimization for %s (level %s)\n", irFile, optimizationLevel)
	// Find opt tool
	optPath, err := findOpt()
	if err != nil {
		debugLog("opt not found, skipping optimization\n")
		// Optimization is optional - if opt is not found, just return original file
		return irFile, nil
	}

	// Create temp file for optimized IR
	optFile := irFile + ".opt"

	// Build optimization pipeline based on level
	var pipeline string
	switch optimizationLevel {
	case "0", "none":
		// No optimizations
		return irFile, nil
	case "1", "s":
		// Basic optimizations
		pipeline = "default<O1>"
	case "2", "default":
		// Standard optimizations
		pipeline = "default<O2>"
	case "3", "z":
		// Aggressive optimizations
		pipeline = "default<O3>"
	default:
		// Default to -O2
		pipeline = "default<O2>"
	}

	// Run opt with the selected passes
	// Use new pass manager syntax: -passes='pipeline'
	args := []string{"-S", "-o", optFile, "-passes=" + pipeline, irFile}

	// Add timeout for optimization
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	debugLog("Running opt command: %s %v\n", optPath, args)
	cmd := exec.CommandContext(ctx, optPath, args...)
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			debugLog("Optimization timed out\n")
		} else {
			debugLog("Optimization failed: %v\n", err)
		}
		// Optimization failed - return original file
		// This is non-fatal, so we just log and continue
		if os.Getenv("VEX_DEBUG_OPT") != "" {
			fmt.Fprintf(os.Stderr, "Warning: LLVM optimization failed: %v\n", err)
			if stderrBuf.Len() > 0 {
				fmt.Fprintf(os.Stderr, "opt error output: %s\n", stderrBuf.String())
			}
		}
		return irFile, nil
	}

	debugLog("Optimization successful: %s\n", optFile)
	// Return optimized file
	return optFile, nil
}

// formatter is a global formatter instance for diagnostics.
var formatter = diag.NewFormatter()

// formatDiagnostic formats and prints a diagnostic to stderr with Rust-style formatting.
func formatDiagnostic(d diag.Diagnostic) {
	// Ensure primary span is set if we have LabeledSpans but no primary Span
	if len(d.LabeledSpans) > 0 && !d.Span.IsValid() {
		// Find primary span
		for _, ls := range d.LabeledSpans {
			if ls.Style == "primary" {
				d.Span = ls.Span
				break
			}
		}
		// If no primary found, use first span
		if !d.Span.IsValid() && len(d.LabeledSpans) > 0 {
			d.Span = d.LabeledSpans[0].Span
		}
	}

	formatter.Format(d)
}

// dependencySearchPaths resolves the project's third-party dependencies
// (via internal/pm, if a vex.json manifest is present next to filename)
// into extra module search roots for the type checker.
func dependencySearchPaths(filename string, locked bool) []string {
	dir := filepath.Dir(filename)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	if _, err := os.Stat(filepath.Join(absDir, pm.ManifestFileName)); err != nil {
		return nil
	}

	mgr, err := pm.Open(absDir)
	if err != nil {
		debugLog("pm: failed to open project at %s: %v\n", absDir, err)
		return nil
	}
	defer mgr.Close()

	paths, err := mgr.ResolveForBuild(context.Background(), locked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dependency resolution failed: %v\n", err)
		return nil
	}
	return paths.SourceDirectories()
}

func compileToTemp(filename string, locked bool) (string, error) {
	// Read file
	src, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("error reading file: %v", err)
	}

	// Parse
	p := parser.New(string(src), parser.WithFilename(filename))
	file := p.ParseFile()

	if len(p.Errors()) > 0 {
		for i, err := range p.Errors() {
			if i > 0 {
				fmt.Fprintf(os.Stderr, "\n")
			}
			// Convert parser error to diagnostic format
			diagSpan := diag.Span{
				Filename: err.Span.Filename,
				Line:     err.Span.Line,
				Column:   err.Span.Column,
				Start:    err.Span.Start,
				End:      err.Span.End,
			}

			code := err.Code
			if code == "" {
				code = diag.Code("PARSE_ERROR")
			}

			diagErr := diag.Diagnostic{
				Stage:    diag.StageParser,
				Severity: err.Severity,
				Code:     code,
				Message:  err.Message,
				Span:     diagSpan,
				Help:     err.Help,
				Notes:    err.Notes,
			}

			// Add primary labeled span
			if err.PrimaryLabel != "" && diagSpan.IsValid() {
				diagErr = diagErr.WithPrimarySpan(diagSpan, err.PrimaryLabel)
			} else if diagSpan.IsValid() {
				diagErr = diagErr.WithPrimarySpan(diagSpan, "")
			}

			// Add secondary labeled spans
			for _, sec := range err.SecondarySpans {
				secSpan := diag.Span{
					Filename: sec.Span.Filename,
					Line:     sec.Span.Line,
					Column:   sec.Span.Column,
					Start:    sec.Span.Start,
					End:      sec.Span.End,
				}
				if secSpan.IsValid() {
					diagErr = diagErr.WithSecondarySpan(secSpan, sec.Label)
				}
			}

			formatDiagnostic(diagErr)
		}
		return "", fmt.Errorf("parse failed")
	}

	// Visibility: every pub fn must be backed by a declared contract.
	visErrs := visibility.NewChecker().Check(file)
	if len(visErrs) > 0 {
		for i, err := range visErrs {
			if i > 0 {
				fmt.Fprintf(os.Stderr, "\n")
			}
			formatDiagnostic(err)
		}
		return "", fmt.Errorf("visibility check failed")
	}

	// Borrow/move/lifetime analysis runs on the parsed AST, ahead of
	// type checking, since it only needs syntactic ownership shape.
	borrowErrs := borrow.NewChecker().Check(file)
	if len(borrowErrs) > 0 {
		for i, err := range borrowErrs {
			if i > 0 {
				fmt.Fprintf(os.Stderr, "\n")
			}
			formatDiagnostic(err)
		}
		return "", fmt.Errorf("borrow check failed")
	}

	// Type Check
	checker := types.NewChecker()
	// Convert filename to absolute path for module resolution
	absFilename, err := filepath.Abs(filename)
	if err != nil {
		absFilename = filename // Fallback to original if abs fails
	}
	checker.ExtraSearchPaths = dependencySearchPaths(filename, locked)
	checker.CheckWithFilename(file, absFilename)

	if len(checker.Errors) > 0 {
		for i, err := range checker.Errors {
			if i > 0 {
				fmt.Fprintf(os.Stderr, "\n")
			}
			formatDiagnostic(err)
		}
		return "", fmt.Errorf("type check failed")
	}

	// Compile to LLVM IR directly from the checked AST.
	return compileToLLVM(file, checker)
}

// compileToLLVM generates textual LLVM IR directly from the checked AST
// (no intermediate SSA form: the generator keeps its own symbol tables
// keyed by name and walks the AST once, emitting IR text as it goes).
func compileToLLVM(file *ast.File, checker *types.Checker) (string, error) {
	debugLog("Running AST-to-LLVM codegen\n")

	typeInfo := make(map[ast.Node]types.Type, len(checker.ExprTypes))
	for expr, typ := range checker.ExprTypes {
		typeInfo[expr] = typ
	}

	llvmGen := llvm.NewGenerator()
	llvmGen.SetTypeInfo(typeInfo)
	llvmIR, err := llvmGen.Generate(file)
	if err != nil {
		if len(llvmGen.Errors) > 0 {
			for i, diagErr := range llvmGen.Errors {
				if i > 0 {
					fmt.Fprintf(os.Stderr, "\n")
				}
				formatDiagnostic(diagErr)
			}
		}
		return "", fmt.Errorf("codegen error: %v", err)
	}

	// Check for errors even if Generate didn't return an error
	if len(llvmGen.Errors) > 0 {
		for i, diagErr := range llvmGen.Errors {
			if i > 0 {
				fmt.Fprintf(os.Stderr, "\n")
			}
			formatDiagnostic(diagErr)
		}
		return "", fmt.Errorf("codegen failed with %d error(s)", len(llvmGen.Errors))
	}

	llvmIR = llvm.ApplyInlinePass(llvmIR)

	// Create temp file for LLVM IR
	tmpFile, err := os.CreateTemp("", "vex_*.ll")
	if err != nil {
		return "", fmt.Errorf("error creating temp file: %v", err)
	}
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(llvmIR); err != nil {
		return "", fmt.Errorf("error writing LLVM IR: %v", err)
	}

	// Debug: print IR to stderr for inspection
	if os.Getenv("VEX_DEBUG_IR") != "" {
		fmt.Fprintf(os.Stderr, "Generated LLVM IR:\n%s\n", llvmIR)
	}

	return tmpFile.Name(), nil
}
