package pm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DependencyPaths is the build-time view of resolved dependencies: each
// package's source directory, ready to hand to the module resolver as
// an additional search root.
type DependencyPaths struct {
	Packages map[string]string // package name -> source directory
}

// SourceDirectories lists every resolved package's source directory.
func (p *DependencyPaths) SourceDirectories() []string {
	dirs := make([]string, 0, len(p.Packages))
	for _, dir := range p.Packages {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Manager ties the manifest, lockfile, resolver, and cache together
// for a single project rooted at Dir.
type Manager struct {
	Dir   string
	Cache *Cache
}

// Open opens the package manager for a project rooted at dir, creating
// the on-disk cache (under dir/.vex/cache) if it doesn't yet exist.
func Open(dir string) (*Manager, error) {
	cache, err := OpenCache(filepath.Join(dir, ".vex", "cache"))
	if err != nil {
		return nil, err
	}
	return &Manager{Dir: dir, Cache: cache}, nil
}

func (m *Manager) Close() error { return m.Cache.Close() }

func (m *Manager) manifestPath() string { return filepath.Join(m.Dir, ManifestFileName) }
func (m *Manager) lockPath() string     { return filepath.Join(m.Dir, LockFileName) }

// ResolveForBuild returns the dependency source directories a build
// should use. If locked is true, vex.lock must already exist and
// validate cleanly (CI / reproducible-build mode); otherwise an
// existing valid lockfile is reused, a missing or stale one is
// regenerated from the manifest.
func (m *Manager) ResolveForBuild(ctx context.Context, locked bool) (*DependencyPaths, error) {
	if _, err := os.Stat(m.manifestPath()); os.IsNotExist(err) {
		return &DependencyPaths{Packages: map[string]string{}}, nil
	}

	manifest, err := Load(m.manifestPath())
	if err != nil {
		return nil, err
	}

	lockExists := fileExists(m.lockPath())

	if locked {
		if !lockExists {
			return nil, fmt.Errorf("%s not found; run 'vex pm get' without --locked to generate it", LockFileName)
		}
		lf, err := LoadLockFile(m.lockPath())
		if err != nil {
			return nil, err
		}
		if errs, _ := lf.Validate(m.Cache); len(errs) > 0 {
			return nil, fmt.Errorf("lock file validation failed:\n%s", joinLines(errs))
		}
		return m.linkLocked(lf)
	}

	if lockExists {
		lf, err := LoadLockFile(m.lockPath())
		if err == nil {
			if errs, _ := lf.Validate(m.Cache); len(errs) == 0 {
				return m.linkLocked(lf)
			}
		}
	}

	return m.resolveAndLink(ctx, manifest)
}

// Install fetches every dependency in the manifest, writing a fresh
// vex.lock. Called by `pm get` and implicitly by a plain `vex
// build` with no lockfile yet.
func (m *Manager) Install(ctx context.Context) error {
	manifest, err := Load(m.manifestPath())
	if err != nil {
		return err
	}
	_, err = m.resolveAndLink(ctx, manifest)
	return err
}

func (m *Manager) resolveAndLink(ctx context.Context, manifest *Manifest) (*DependencyPaths, error) {
	graph := NewDependencyGraph()
	resolved, err := graph.Resolve(manifest)
	if err != nil {
		return nil, err
	}
	if conflicts := graph.DetectConflicts(); len(conflicts) > 0 {
		return nil, fmt.Errorf("dependency conflicts:\n%s", joinLines(conflicts))
	}

	paths := &DependencyPaths{Packages: make(map[string]string, len(resolved))}

	for _, pkg := range resolved {
		dep, ok := manifest.Dependencies[pkg.Name]
		if !ok || dep.Git == "" {
			continue
		}

		repoPath, err := CloneRepository(ctx, dep.Git, filepath.Join(m.Cache.root, "git"))
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pkg.Name, err)
		}
		if err := CheckoutTag(ctx, repoPath, pkg.Version); err != nil {
			return nil, fmt.Errorf("checkout %s@%s: %w", pkg.Name, pkg.Version, err)
		}

		integrity, err := HashDirectory(repoPath)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", pkg.Name, err)
		}
		if err := m.Cache.RecordFetch(ctx, pkg.Name, pkg.Version, repoPath, integrity); err != nil {
			return nil, err
		}

		paths.Packages[pkg.Name] = sourceDir(repoPath)
	}

	lf, err := GenerateLockFile(resolved, m.Cache, time.Now())
	if err != nil {
		return nil, err
	}
	if err := lf.Save(m.lockPath()); err != nil {
		return nil, err
	}

	return paths, nil
}

func (m *Manager) linkLocked(lf *LockFile) (*DependencyPaths, error) {
	paths := &DependencyPaths{Packages: make(map[string]string, len(lf.Dependencies))}

	for name := range lf.Dependencies {
		gitCachePath := m.Cache.GitDir(name)
		if !dirExists(gitCachePath) {
			return nil, fmt.Errorf("package %q not in cache; run 'vex pm get'", name)
		}
		paths.Packages[name] = sourceDir(gitCachePath)
	}

	return paths, nil
}

// Why explains why a package is in the dependency graph by re-running
// resolution and reporting the version selected for it. Each run is
// tagged with a fresh id so its decisions can be correlated in logs
// across a `pm why` invocation that touches several packages.
func (m *Manager) Why(ctx context.Context, packageName string) (string, error) {
	runID := uuid.New()
	slog.Debug("pm why: resolving", "run_id", runID, "package", packageName)

	manifest, err := Load(m.manifestPath())
	if err != nil {
		return "", err
	}

	graph := NewDependencyGraph()
	resolved, err := graph.Resolve(manifest)
	if err != nil {
		return "", err
	}

	for _, pkg := range resolved {
		if pkg.Name == packageName {
			slog.Debug("pm why: resolved", "run_id", runID, "package", packageName, "version", pkg.Version)
			return pkg.Version, nil
		}
	}
	return "", fmt.Errorf("package %q is not a dependency of %s", packageName, manifest.Name)
}

func sourceDir(repoPath string) string {
	src := filepath.Join(repoPath, "src")
	if dirExists(src) {
		return src
	}
	return repoPath
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
