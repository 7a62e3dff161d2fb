package pm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vex-lang/vexc/internal/pm"
)

func TestLockFileSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, pm.LockFileName)

	lf := pm.NewLockFile(time.Unix(0, 0))
	lf.AddPackage("collections", pm.LockedPackage{
		Version:   "1.0.0",
		Resolved:  "https://collections/archive/1.0.0.tar.gz",
		Integrity: "sha256:deadbeef",
	}, time.Unix(100, 0))

	if err := lf.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := pm.LoadLockFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pkg, ok := loaded.Dependencies["collections"]
	if !ok {
		t.Fatalf("expected collections in loaded lockfile")
	}
	if pkg.Version != "1.0.0" || pkg.Integrity != "sha256:deadbeef" {
		t.Fatalf("got %+v", pkg)
	}
}

func TestLockFileRemovePackage(t *testing.T) {
	lf := pm.NewLockFile(time.Unix(0, 0))
	lf.AddPackage("net", pm.LockedPackage{Version: "0.1.0"}, time.Unix(1, 0))

	if !lf.RemovePackage("net", time.Unix(2, 0)) {
		t.Fatalf("expected RemovePackage to report the package was present")
	}
	if lf.RemovePackage("net", time.Unix(3, 0)) {
		t.Fatalf("expected a second removal to report absence")
	}
	if _, ok := lf.Dependencies["net"]; ok {
		t.Fatalf("net should no longer be locked")
	}
}

func TestGenerateAndValidateLockFile(t *testing.T) {
	cacheDir := t.TempDir()
	cache, err := pm.OpenCache(cacheDir)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	gitDir := cache.GitDir("collections")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(gitDir, "lib.vx"), []byte("fn identity(x) { return x; }"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	resolved := []pm.PackageVersion{{Name: "collections", Version: "1.0.0"}}
	lf, err := pm.GenerateLockFile(resolved, cache, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("generate lockfile: %v", err)
	}

	pkg, ok := lf.Dependencies["collections"]
	if !ok {
		t.Fatalf("expected collections in generated lockfile")
	}
	if pkg.Integrity == "sha256:unknown" {
		t.Fatalf("expected a real integrity hash for a populated cache dir")
	}

	if errs, err := lf.Validate(cache); err != nil || len(errs) != 0 {
		t.Fatalf("expected clean validation, got errs=%v err=%v", errs, err)
	}

	// Tampering with the cached source should be caught on the next validate.
	if err := os.WriteFile(filepath.Join(gitDir, "lib.vx"), []byte("fn identity(x) { return 0; }"), 0o644); err != nil {
		t.Fatalf("write tampered source: %v", err)
	}
	errs, err := lf.Validate(cache)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(errs) == 0 {
		t.Fatalf("expected integrity mismatch to be reported after tampering")
	}

	if err := cache.RecordFetch(context.Background(), "collections", "1.0.0", gitDir, pkg.Integrity); err != nil {
		t.Fatalf("record fetch: %v", err)
	}
	list, err := cache.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "collections" {
		t.Fatalf("got %+v", list)
	}
}
