package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("EXTCORE_TEST_DIR", "/srv/modules")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"home", "~/modules", filepath.Join(home, "modules")},
		{"bare home", "~", home},
		{"env", "${EXTCORE_TEST_DIR}/a", "/srv/modules/a"},
		{"absolute", "/opt/x", "/opt/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.in)
			if err != nil {
				t.Fatalf("Expand(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("relative becomes absolute", func(t *testing.T) {
		got, err := Expand("rel/dir")
		if err != nil {
			t.Fatal(err)
		}
		if !filepath.IsAbs(got) {
			t.Errorf("expected absolute path, got %q", got)
		}
	})
}

func TestExpandAll(t *testing.T) {
	got, err := ExpandAll([]string{"/a", "/b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("unexpected result %v", got)
	}
}
