// Package pm implements the vex package manager: manifest parsing,
// Minimum Version Selection over the dependency graph, lockfile
// generation with content-integrity hashes, and a local SQLite-backed
// cache index of fetched git sources.
package pm

import (
	"encoding/json"
	"fmt"
	"os"
)

const ManifestFileName = "vex.json"

// Dependency is a single entry of a manifest's "dependencies" map. It
// unmarshals from either a bare version string ("v1.2.3") or a detailed
// object ({"version": "...", "git": "...", "path": "..."}).
type Dependency struct {
	Version string `json:"version"`
	Git     string `json:"git,omitempty"`
	Path    string `json:"path,omitempty"`
}

func (d *Dependency) UnmarshalJSON(data []byte) error {
	var simple string
	if err := json.Unmarshal(data, &simple); err == nil {
		d.Version = simple
		return nil
	}

	var detailed struct {
		Version string `json:"version"`
		Git     string `json:"git,omitempty"`
		Path    string `json:"path,omitempty"`
	}
	if err := json.Unmarshal(data, &detailed); err != nil {
		return fmt.Errorf("dependency entry must be a version string or an object: %w", err)
	}
	d.Version = detailed.Version
	d.Git = detailed.Git
	d.Path = detailed.Path
	return nil
}

func (d Dependency) MarshalJSON() ([]byte, error) {
	if d.Git == "" && d.Path == "" {
		return json.Marshal(d.Version)
	}
	return json.Marshal(struct {
		Version string `json:"version"`
		Git     string `json:"git,omitempty"`
		Path    string `json:"path,omitempty"`
	}{d.Version, d.Git, d.Path})
}

// Manifest is the parsed form of vex.json: a package's own version and
// the dependencies it requires.
type Manifest struct {
	Name         string                `json:"name"`
	Version      string                `json:"version"`
	Dependencies map[string]Dependency `json:"dependencies,omitempty"`
}

// Load reads and parses a manifest file from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: missing required field \"name\"", path)
	}
	return &m, nil
}

// Save writes the manifest to path as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
