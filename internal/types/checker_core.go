package types

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/parser"
	"github.com/vex-lang/vexc/internal/resolve"
)

// ModuleInfo represents information about a loaded module.
type ModuleInfo struct {
	Name     string    // Module name (e.g., "utils")
	File     *ast.File // Parsed AST of the module file
	FilePath string    // Full path to the module file
	Scope    *Scope    // Scope containing ONLY public symbols
}

// Checker performs semantic analysis on the AST: inference, coercion
// classification, trait bound verification and generic monomorphization
// (see checker_expr.go, checker_generics.go, checker_types.go).
type Checker struct {
	GlobalScope *Scope
	Env         *Environment // Tracks trait implementations
	Errors      []diag.Diagnostic

	// MethodTable maps type names to their methods.
	MethodTable map[string]map[string]*Function

	// Modules tracks loaded modules by their name.
	Modules map[string]*ModuleInfo
	// CurrentFile tracks the current file being checked (for relative
	// path resolution of `mod`/`use` declarations).
	CurrentFile string
	// LoadingModules tracks modules currently being loaded, for cycle
	// detection while resolving `mod` declarations.
	LoadingModules map[string]bool
	// Resolver loads stdlib and workspace modules referenced by `use`
	// declarations (see internal/resolve for path + platform selection).
	Resolver *resolve.Resolver

	// ExtraSearchPaths are additional module root directories to try
	// after the relative-to-file lookup fails, typically the fetched
	// source directories of third-party dependencies resolved by
	// internal/pm.
	ExtraSearchPaths []string

	// ExprTypes maps AST expressions to their resolved types; populated
	// by checkExpr and consumed by codegen's type-directed lowering.
	ExprTypes map[ast.Expr]Type

	// CurrentReturn/CurrentFnName track the enclosing function while
	// checking its body, for return-type verification.
	CurrentReturn Type
	CurrentFnName string
}

// NewChecker creates a new type checker with built-in types and functions
// registered in the global scope.
func NewChecker() *Checker {
	c := &Checker{
		GlobalScope:    NewScope(nil),
		Env:            NewEnvironment(),
		Errors:         []diag.Diagnostic{},
		MethodTable:    make(map[string]map[string]*Function),
		Modules:        make(map[string]*ModuleInfo),
		LoadingModules: make(map[string]bool),
		ExprTypes:      make(map[ast.Expr]Type),
	}

	c.GlobalScope.Insert("int", &Symbol{Name: "int", Type: TypeInt})
	c.GlobalScope.Insert("float", &Symbol{Name: "float", Type: TypeFloat})
	c.GlobalScope.Insert("bool", &Symbol{Name: "bool", Type: TypeBool})
	c.GlobalScope.Insert("string", &Symbol{Name: "string", Type: TypeString})

	c.GlobalScope.Insert("println", &Symbol{
		Name: "println",
		Type: &Function{
			Params: []Type{&Named{Name: "any"}},
			Return: TypeVoid,
		},
	})

	return c
}

// Check validates the types in the given file.
func (c *Checker) Check(file *ast.File) {
	c.CheckWithFilename(file, "")
}

// CheckWithFilename validates the types in the given file with a filename
// for relative module resolution.
func (c *Checker) CheckWithFilename(file *ast.File, filename string) {
	c.CurrentFile = filename
	if c.Resolver == nil {
		stdLib := filepath.Join(filepath.Dir(filename), "vex-libs", "std")
		c.Resolver = resolve.New(stdLib)
	}
	c.collectDecls(file)
	c.checkBodies(file)
}

// processModDecl loads the module named by a `mod name;` declaration,
// resolving it relative to the current file (or the workspace std lib for
// `mod std::x;`-style paths) and binding its exported symbols into a
// module-scoped environment stored in c.Modules.
func (c *Checker) processModDecl(decl *ast.ModDecl, file *ast.File) {
	if decl == nil || decl.Name == nil {
		return
	}
	name := decl.Name.Name
	if _, ok := c.Modules[name]; ok {
		return
	}
	if c.LoadingModules[name] {
		c.reportError("cyclic module dependency: "+name, decl.Span())
		return
	}
	c.LoadingModules[name] = true
	defer delete(c.LoadingModules, name)

	modFile, modPath, err := c.loadModuleFile(name)
	if err != nil {
		c.reportError(err.Error(), decl.Span())
		return
	}

	modChecker := NewChecker()
	modChecker.Resolver = c.Resolver
	modChecker.CheckWithFilename(modFile, modPath)

	exported := NewScope(nil)
	for symName, sym := range modChecker.GlobalScope.Symbols {
		if isExportedName(symName) {
			exported.Insert(symName, sym)
		}
	}

	c.Modules[name] = &ModuleInfo{
		Name:     name,
		File:     modFile,
		FilePath: modPath,
		Scope:    exported,
	}
}

// processUseDecl binds the symbols named in a `use a::b::{c, d};` (or
// aliased `use a::b as c;`) declaration into the current global scope,
// pulling them from an already-loaded module.
func (c *Checker) processUseDecl(decl *ast.UseDecl) {
	if decl == nil || len(decl.Path) == 0 {
		return
	}

	segments := make([]string, len(decl.Path))
	for i, seg := range decl.Path {
		segments[i] = seg.Name
	}
	modName := segments[0]

	info, ok := c.Modules[modName]
	if !ok {
		modFile, modPath, err := c.loadModuleFile(modName)
		if err != nil {
			c.reportError(err.Error(), decl.Span())
			return
		}
		modChecker := NewChecker()
		modChecker.Resolver = c.Resolver
		modChecker.CheckWithFilename(modFile, modPath)

		exported := NewScope(nil)
		for symName, sym := range modChecker.GlobalScope.Symbols {
			if isExportedName(symName) {
				exported.Insert(symName, sym)
			}
		}
		info = &ModuleInfo{Name: modName, File: modFile, FilePath: modPath, Scope: exported}
		c.Modules[modName] = info
	}

	bindName := modName
	if decl.Alias != nil {
		bindName = decl.Alias.Name
	}

	if len(segments) == 1 {
		// `use modname;` or `use modname as alias;` binds the whole
		// module's exported scope under bindName via a Named indirection
		// table entry per symbol, so qualified lookups still work.
		for symName, sym := range info.Scope.Symbols {
			c.GlobalScope.Insert(bindName+"::"+symName, sym)
		}
		return
	}

	// `use mod::symbol;` binds the individual symbol directly.
	symName := segments[len(segments)-1]
	if sym := info.Scope.Lookup(symName); sym != nil {
		c.GlobalScope.Insert(bindName, sym)
	} else {
		c.reportError("module "+modName+" has no exported symbol "+symName, decl.Span())
	}
}

// loadModuleFile resolves a module name to its parsed AST, trying the
// stdlib resolver first (§4.6's stdlib-prefix rule) and falling back to a
// path relative to the current file (the relative-import rule).
func (c *Checker) loadModuleFile(name string) (*ast.File, string, error) {
	if c.Resolver != nil && c.Resolver.IsStdlibModule(name) {
		if f, err := c.Resolver.Load(name); err == nil {
			p, _ := c.Resolver.ResolveFilePath(name)
			return f, p, nil
		}
	}

	candidates := []string{filepath.Join(filepath.Dir(c.CurrentFile), name+".vx")}
	for _, root := range c.ExtraSearchPaths {
		candidates = append(candidates, filepath.Join(root, name+".vx"))
	}

	var lastErr error
	for _, candidate := range candidates {
		src, err := os.ReadFile(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		p := parser.New(string(src), parser.WithFilename(candidate))
		file := p.ParseFile()
		if len(p.Errors()) > 0 {
			return nil, "", fmt.Errorf("module %s: %d parse error(s)", name, len(p.Errors()))
		}
		return file, candidate, nil
	}
	return nil, "", fmt.Errorf("module %s not found (tried %d location(s)): %w", name, len(candidates), lastErr)
}

// isExportedName reports whether a top-level declaration is visible
// outside its defining file (exported names start with an uppercase
// letter, matching the convention `pub` declarations are given by the
// parser/checker_decl.go when registering symbols).
func isExportedName(name string) bool {
	if name == "" {
		return false
	}
	return name[0] >= 'A' && name[0] <= 'Z'
}
