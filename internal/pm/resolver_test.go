package pm_test

import (
	"testing"

	"github.com/vex-lang/vexc/internal/pm"
)

func TestResolveSimpleManifest(t *testing.T) {
	manifest := &pm.Manifest{
		Name: "demo",
		Dependencies: map[string]pm.Dependency{
			"collections": {Version: "1.0.0"},
			"net":         {Version: "0.9.0"},
		},
	}

	graph := pm.NewDependencyGraph()
	resolved, err := graph.Resolve(manifest)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved packages, got %d", len(resolved))
	}

	versions := map[string]string{}
	for _, pv := range resolved {
		versions[pv.Name] = pv.Version
	}
	if versions["collections"] != "1.0.0" || versions["net"] != "0.9.0" {
		t.Fatalf("got %+v", versions)
	}
}

func TestResolveSelectsMaxRequestedVersion(t *testing.T) {
	manifest := &pm.Manifest{
		Name: "demo",
		Dependencies: map[string]pm.Dependency{
			"collections": {Version: "1.0.0"},
		},
	}

	graph := pm.NewDependencyGraph()
	graph.AddPackage(pm.ResolvedPackage{
		Name:    "collections",
		Version: "1.0.0",
	})
	// A transitive requester asking for a higher, compatible version.
	graph.AddPackage(pm.ResolvedPackage{
		Name:    "demo-helper",
		Version: "1.0.0",
		Dependencies: []pm.PackageVersion{
			{Name: "collections", Version: "1.5.0"},
		},
	})
	manifest.Dependencies["demo-helper"] = pm.Dependency{Version: "1.0.0"}

	resolved, err := graph.Resolve(manifest)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, ok := versionOf(resolved, "collections")
	if !ok {
		t.Fatalf("collections missing from resolved set: %+v", resolved)
	}
	if got != "1.5.0" {
		t.Fatalf("expected MVS to select 1.5.0, got %s", got)
	}
}

func TestResolveMajorVersionMismatchIsConflict(t *testing.T) {
	manifest := &pm.Manifest{
		Name: "demo",
		Dependencies: map[string]pm.Dependency{
			"collections": {Version: "1.0.0"},
			"helper":      {Version: "1.0.0"},
		},
	}

	graph := pm.NewDependencyGraph()
	graph.AddPackage(pm.ResolvedPackage{
		Name:    "helper",
		Version: "1.0.0",
		Dependencies: []pm.PackageVersion{
			{Name: "collections", Version: "2.0.0"},
		},
	})

	if _, err := graph.Resolve(manifest); err == nil {
		t.Fatalf("expected major-version mismatch to fail resolution")
	}
}

func TestDetectConflictsFlagsIncompatibleResolution(t *testing.T) {
	manifest := &pm.Manifest{
		Name: "demo",
		Dependencies: map[string]pm.Dependency{
			"collections": {Version: "1.5.0"},
			"helper":      {Version: "1.0.0"},
		},
	}

	graph := pm.NewDependencyGraph()
	graph.AddPackage(pm.ResolvedPackage{
		Name:    "helper",
		Version: "1.0.0",
		Dependencies: []pm.PackageVersion{
			{Name: "collections", Version: "1.9.0"},
		},
	})

	resolved, err := graph.Resolve(manifest)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ := versionOf(resolved, "collections")
	if got != "1.9.0" {
		t.Fatalf("expected MVS winner 1.9.0, got %s", got)
	}

	if conflicts := graph.DetectConflicts(); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts once MVS has resolved upward, got %v", conflicts)
	}
}

func versionOf(pvs []pm.PackageVersion, name string) (string, bool) {
	for _, pv := range pvs {
		if pv.Name == name {
			return pv.Version, true
		}
	}
	return "", false
}
