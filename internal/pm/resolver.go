package pm

import (
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
)

// PackageVersion names one dependency and the version selected for it.
type PackageVersion struct {
	Name    string
	Version string
}

// ResolvedPackage is a dependency already known to the graph (typically
// because its manifest was fetched in an earlier resolution pass),
// together with its own transitive requirements.
type ResolvedPackage struct {
	Name         string
	Version      string
	Dependencies []PackageVersion
}

// DependencyGraph performs Minimum Version Selection: each package's
// chosen version is the maximum of every version requested for it
// anywhere in the graph, provided all requesters agree on major version.
type DependencyGraph struct {
	packages map[string]ResolvedPackage
	resolved map[string]string
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		packages: make(map[string]ResolvedPackage),
		resolved: make(map[string]string),
	}
}

// AddPackage registers a package's own transitive dependencies so that
// Resolve can walk them during the MVS pass.
func (g *DependencyGraph) AddPackage(pkg ResolvedPackage) {
	g.packages[pkg.Name] = pkg
}

// Resolve walks the dependency graph reachable from manifest, selecting
// the maximum requested version for every package encountered. Returns
// the resolved set sorted by package name for a stable lockfile diff.
func (g *DependencyGraph) Resolve(manifest *Manifest) ([]PackageVersion, error) {
	type want struct{ name, version string }
	var toVisit []want
	for name, dep := range manifest.Dependencies {
		toVisit = append(toVisit, want{name, dep.Version})
	}

	visited := make(map[string]bool)

	for len(toVisit) > 0 {
		n := len(toVisit) - 1
		w := toVisit[n]
		toVisit = toVisit[:n]

		if visited[w.name] {
			if existing, ok := g.resolved[w.name]; ok {
				selected, err := selectHigherVersion(existing, w.version)
				if err != nil {
					return nil, fmt.Errorf("package %s: %w", w.name, err)
				}
				g.resolved[w.name] = selected
			}
			continue
		}

		visited[w.name] = true
		g.resolved[w.name] = w.version

		if pkg, ok := g.packages[w.name]; ok {
			for _, dep := range pkg.Dependencies {
				toVisit = append(toVisit, want{dep.Name, dep.Version})
			}
		}
	}

	result := make([]PackageVersion, 0, len(g.resolved))
	for name, version := range g.resolved {
		result = append(result, PackageVersion{Name: name, Version: version})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DetectConflicts reports every edge in the graph whose resolved
// version is incompatible with what the requester asked for.
func (g *DependencyGraph) DetectConflicts() []string {
	var conflicts []string
	for name, pkg := range g.packages {
		if _, ok := g.resolved[name]; !ok {
			continue
		}
		for _, dep := range pkg.Dependencies {
			depResolved, ok := g.resolved[dep.Name]
			if !ok {
				continue
			}
			if !versionsCompatible(dep.Version, depResolved) {
				conflicts = append(conflicts, fmt.Sprintf(
					"version conflict for %s: %s requires %s, but %s is resolved",
					dep.Name, name, dep.Version, depResolved))
			}
		}
	}
	return conflicts
}

// GetResolved returns the version selected for name, if any.
func (g *DependencyGraph) GetResolved(name string) (string, bool) {
	v, ok := g.resolved[name]
	return v, ok
}

// selectHigherVersion returns the higher of two requested versions for
// the same package, erroring out on a major-version mismatch (MVS never
// silently bridges a breaking change).
func selectHigherVersion(v1, v2 string) (string, error) {
	c1, c2 := canonical(v1), canonical(v2)
	if !semver.IsValid(c1) || !semver.IsValid(c2) {
		return "", fmt.Errorf("invalid semver: %s / %s", v1, v2)
	}
	if semver.Major(c1) != semver.Major(c2) {
		return "", fmt.Errorf("incompatible versions: %s and %s (major version mismatch)", v1, v2)
	}
	if semver.Compare(c1, c2) >= 0 {
		return v1, nil
	}
	return v2, nil
}

// versionsCompatible reports whether resolved satisfies requested: same
// major version and resolved >= requested. "latest" always satisfies.
func versionsCompatible(requested, resolved string) bool {
	if requested == "latest" {
		return true
	}
	req, res := canonical(requested), canonical(resolved)
	if !semver.IsValid(req) || !semver.IsValid(res) {
		return false
	}
	return semver.Major(req) == semver.Major(res) && semver.Compare(res, req) >= 0
}

// canonical prefixes a bare "1.2.3" version with "v" since
// golang.org/x/mod/semver requires the leading v that vex.json
// manifests (following the Rust original's convention) omit.
func canonical(v string) string {
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}
