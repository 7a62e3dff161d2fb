package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/parser"
)

// Resolver loads and caches parsed modules reachable from `use` paths,
// selecting platform-specific file variants where they exist.
type Resolver struct {
	StdLibPath string
	Target     Target

	cache map[string]*ast.File
}

// New creates a Resolver rooted at stdLibPath (typically vex-libs/std),
// targeting the host platform.
func New(stdLibPath string) *Resolver {
	return &Resolver{
		StdLibPath: stdLibPath,
		Target:     CurrentTarget(),
		cache:      make(map[string]*ast.File),
	}
}

// WithTarget overrides the resolver's platform/arch, for cross-compilation.
func (r *Resolver) WithTarget(t Target) *Resolver {
	r.Target = t
	return r
}

// IsStdlibModule reports whether modulePath refers to the standard library,
// i.e. it is "std" or begins with "std::" or "std/".
func (r *Resolver) IsStdlibModule(modulePath string) bool {
	return modulePath == "std" ||
		strings.HasPrefix(modulePath, "std::") ||
		strings.HasPrefix(modulePath, "std/")
}

// Load resolves modulePath to a file on disk, parses it, and caches the
// result. Subsequent calls with the same path return the cached file.
func (r *Resolver) Load(modulePath string) (*ast.File, error) {
	if cached, ok := r.cache[modulePath]; ok {
		return cached, nil
	}

	filePath, err := r.ResolveFilePath(modulePath)
	if err != nil {
		return nil, fmt.Errorf("resolve module %s: %w", modulePath, err)
	}

	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", modulePath, err)
	}

	p := parser.New(string(src), parser.WithFilename(filePath))
	file := p.ParseFile()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse module %s: %d error(s)", modulePath, len(p.Errors()))
	}
	if file == nil {
		return nil, fmt.Errorf("parse module %s: produced no AST", modulePath)
	}

	r.cache[modulePath] = file
	return file, nil
}

// IsLoaded reports whether modulePath has already been resolved and cached.
func (r *Resolver) IsLoaded(modulePath string) bool {
	_, ok := r.cache[modulePath]
	return ok
}

// Cached returns a previously loaded module, if any.
func (r *Resolver) Cached(modulePath string) (*ast.File, bool) {
	f, ok := r.cache[modulePath]
	return f, ok
}

// ResolveFilePath maps a module path like "std", "std::io", or
// "std/http/client" to a concrete file under StdLibPath, applying platform
// file-selection rules to the final mod.vx.
func (r *Resolver) ResolveFilePath(modulePath string) (string, error) {
	normalized := strings.NewReplacer("::", "/").Replace(modulePath)
	parts := strings.Split(normalized, "/")
	if len(parts) > 0 && parts[0] == "std" {
		parts = parts[1:]
	}

	dir := r.StdLibPath
	for _, part := range parts {
		dir = filepath.Join(dir, part)
	}

	selected := SelectPlatformFile(filepath.Join(dir, "mod.vx"), r.Target)
	if _, err := os.Stat(selected); err != nil {
		return "", fmt.Errorf("module file not found: %s", selected)
	}
	return selected, nil
}

// SelectPlatformFile picks the most specific existing variant of base
// (which is expected to end in ".vx") for the given target, in priority
// order: {base}.{os}.{arch}.vx, {base}.{arch}.vx, {base}.{os}.vx, {base}.vx.
// If none of the specific variants exist on disk, the generic fallback path
// is returned even if it too is absent, so callers get a stable error.
func SelectPlatformFile(base string, target Target) string {
	withoutExt := strings.TrimSuffix(base, ".vx")

	candidates := []string{
		fmt.Sprintf("%s.%s.%s.vx", withoutExt, target.Platform, target.Arch),
		fmt.Sprintf("%s.%s.vx", withoutExt, target.Arch),
		fmt.Sprintf("%s.%s.vx", withoutExt, target.Platform),
	}
	fallback := withoutExt + ".vx"

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return fallback
}

// Exports lists the names of top-level functions declared in a loaded
// module, for quick "what does this module provide" queries without
// re-walking the whole checker pipeline.
func (r *Resolver) Exports(modulePath string) ([]string, error) {
	file, ok := r.cache[modulePath]
	if !ok {
		return nil, fmt.Errorf("module %s not loaded", modulePath)
	}

	var names []string
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FnDecl); ok && fn.Name != nil {
			names = append(names, fn.Name.Name)
		}
	}
	return names, nil
}
