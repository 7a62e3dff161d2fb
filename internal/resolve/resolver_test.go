package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFilePathBasicAndNested(t *testing.T) {
	dir := t.TempDir()

	mustMkdirAll(t, filepath.Join(dir))
	mustWriteFile(t, filepath.Join(dir, "mod.vx"), "fn main() {}\n")

	ioDir := filepath.Join(dir, "io")
	mustMkdirAll(t, ioDir)
	mustWriteFile(t, filepath.Join(ioDir, "mod.vx"), "fn read() {}\n")

	r := New(dir)

	path, err := r.ResolveFilePath("std")
	if err != nil {
		t.Fatalf("resolve std: %v", err)
	}
	if filepath.Base(path) != "mod.vx" {
		t.Errorf("expected mod.vx, got %s", path)
	}

	path, err = r.ResolveFilePath("std::io")
	if err != nil {
		t.Fatalf("resolve std::io: %v", err)
	}
	if filepath.Dir(path) != ioDir {
		t.Errorf("expected dir %s, got %s", ioDir, filepath.Dir(path))
	}
}

func TestSelectPlatformFilePriority(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "net.vx")

	mustWriteFile(t, base, "generic")
	mustWriteFile(t, filepath.Join(dir, "net.linux.vx"), "linux")
	mustWriteFile(t, filepath.Join(dir, "net.x64.vx"), "x64")
	mustWriteFile(t, filepath.Join(dir, "net.linux.x64.vx"), "linux-x64")

	target := Target{Platform: Linux, Arch: X64}
	selected := SelectPlatformFile(base, target)
	if filepath.Base(selected) != "net.linux.x64.vx" {
		t.Errorf("expected most specific variant, got %s", selected)
	}

	os.Remove(filepath.Join(dir, "net.linux.x64.vx"))
	selected = SelectPlatformFile(base, target)
	if filepath.Base(selected) != "net.x64.vx" {
		t.Errorf("expected arch variant, got %s", selected)
	}
}

func TestIsStdlibModule(t *testing.T) {
	r := New("vex-libs/std")
	cases := map[string]bool{
		"std":           true,
		"std::io":       true,
		"std/http":      true,
		"mypkg::widget": false,
	}
	for path, want := range cases {
		if got := r.IsStdlibModule(path); got != want {
			t.Errorf("IsStdlibModule(%q) = %v, want %v", path, got, want)
		}
	}
}

func mustMkdirAll(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
