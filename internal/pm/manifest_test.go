package pm_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/vex-lang/vexc/internal/pm"
)

func TestDependencyUnmarshalBareVersion(t *testing.T) {
	var d pm.Dependency
	if err := json.Unmarshal([]byte(`"1.2.3"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Version != "1.2.3" || d.Git != "" || d.Path != "" {
		t.Fatalf("got %+v", d)
	}
}

func TestDependencyUnmarshalDetailed(t *testing.T) {
	var d pm.Dependency
	src := `{"version": "2.0.0", "git": "https://example.com/x/y.git"}`
	if err := json.Unmarshal([]byte(src), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Version != "2.0.0" || d.Git != "https://example.com/x/y.git" {
		t.Fatalf("got %+v", d)
	}
}

func TestDependencyMarshalRoundTrip(t *testing.T) {
	bare := pm.Dependency{Version: "1.0.0"}
	data, err := json.Marshal(bare)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"1.0.0"` {
		t.Fatalf("expected bare string encoding, got %s", data)
	}

	detailed := pm.Dependency{Version: "1.0.0", Git: "https://example.com/a/b.git"}
	data, err = json.Marshal(detailed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back pm.Dependency
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if back != detailed {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, detailed)
	}
}

func TestManifestLoadMissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, pm.ManifestFileName)
	writeFile(t, path, `{"version": "1.0.0"}`)

	if _, err := pm.Load(path); err == nil {
		t.Fatalf("expected error for manifest with missing name")
	}
}

func TestManifestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, pm.ManifestFileName)

	m := &pm.Manifest{
		Name:    "demo",
		Version: "0.1.0",
		Dependencies: map[string]pm.Dependency{
			"collections": {Version: "1.2.0"},
			"net":         {Version: "0.9.0", Git: "https://example.com/vex/net.git"},
		},
	}
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := pm.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != m.Name || loaded.Version != m.Version {
		t.Fatalf("got %+v", loaded)
	}
	if len(loaded.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(loaded.Dependencies))
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
