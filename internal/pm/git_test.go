package pm_test

import (
	"testing"

	"github.com/vex-lang/vexc/internal/pm"
)

func TestRepoNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/vex-lang/collections.git": "vex-lang/collections",
		"https://github.com/vex-lang/collections":     "vex-lang/collections",
		"git@github.com:vex-lang/collections.git":     "git@github.com:vex-lang/collections",
	}
	for url, want := range cases {
		got, err := pm.RepoNameFromURL(url)
		if err != nil {
			t.Fatalf("%s: %v", url, err)
		}
		if got != want {
			t.Errorf("%s: got %q, want %q", url, got, want)
		}
	}
}

func TestRepoNameFromURLRejectsBareName(t *testing.T) {
	if _, err := pm.RepoNameFromURL("collections"); err == nil {
		t.Fatalf("expected an error for a URL with no owner/repo segments")
	}
}
