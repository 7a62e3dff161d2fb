package pm

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const LockFileName = "vex.lock"

// LockedPackage pins one resolved dependency to an exact version,
// source location, and content hash.
type LockedPackage struct {
	Version    string            `json:"version"`
	Resolved   string            `json:"resolved"`
	Integrity  string            `json:"integrity"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// LockFile is the parsed form of vex.lock: every dependency's exact
// resolution, frozen so repeated builds are reproducible.
type LockFile struct {
	Version      int                      `json:"version"`
	LockTime     string                   `json:"lockTime"`
	Dependencies map[string]LockedPackage `json:"dependencies"`
}

// NewLockFile creates an empty lockfile. lockTime is supplied by the
// caller (pm never calls time.Now() internally, keeping resolution
// deterministic and testable).
func NewLockFile(lockTime time.Time) *LockFile {
	return &LockFile{
		Version:      1,
		LockTime:     lockTime.UTC().Format(time.RFC3339),
		Dependencies: make(map[string]LockedPackage),
	}
}

// LoadLockFile reads and parses a lockfile from path.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lockfile: %w", err)
	}
	var lf LockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &lf, nil
}

// Save writes the lockfile to path as indented JSON.
func (lf *LockFile) Save(path string) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lockfile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GenerateLockFile builds a lockfile from a resolved dependency set,
// hashing each package's cached git checkout for integrity.
func GenerateLockFile(resolved []PackageVersion, cache *Cache, now time.Time) (*LockFile, error) {
	lf := NewLockFile(now)

	for _, pkg := range resolved {
		integrity := "sha256:unknown"
		if dir := cache.GitDir(pkg.Name); dirExists(dir) {
			hash, err := HashDirectory(dir)
			if err != nil {
				return nil, fmt.Errorf("hash %s: %w", pkg.Name, err)
			}
			integrity = "sha256:" + hash
		}

		lf.Dependencies[pkg.Name] = LockedPackage{
			Version:   pkg.Version,
			Resolved:  fmt.Sprintf("https://%s/archive/%s.tar.gz", pkg.Name, pkg.Version),
			Integrity: integrity,
		}
	}

	return lf, nil
}

// Validate checks every locked package's cached checkout against its
// recorded integrity hash, returning one message per mismatch.
func (lf *LockFile) Validate(cache *Cache) ([]string, error) {
	var errs []string
	for name, locked := range lf.Dependencies {
		dir := cache.GitDir(name)
		if !dirExists(dir) {
			errs = append(errs, fmt.Sprintf("package not in cache: %s", name))
			continue
		}

		expected := locked.Integrity
		if len(expected) > len("sha256:") && expected[:7] == "sha256:" {
			expected = expected[7:]
		}

		actual, err := HashDirectory(dir)
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to hash %s: %v", name, err))
			continue
		}
		if expected != "unknown" && actual != expected {
			errs = append(errs, fmt.Sprintf("integrity mismatch for %s: expected %s, got %s", name, expected, actual))
		}
	}
	return errs, nil
}

// AddPackage records or replaces a locked dependency and bumps LockTime.
func (lf *LockFile) AddPackage(name string, pkg LockedPackage, now time.Time) {
	lf.Dependencies[name] = pkg
	lf.LockTime = now.UTC().Format(time.RFC3339)
}

// RemovePackage drops a locked dependency, reporting whether it was present.
func (lf *LockFile) RemovePackage(name string, now time.Time) bool {
	if _, ok := lf.Dependencies[name]; !ok {
		return false
	}
	delete(lf.Dependencies, name)
	lf.LockTime = now.UTC().Format(time.RFC3339)
	return true
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
