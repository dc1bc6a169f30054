package file

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"GL1902.TXT", "GL1901.TXT", "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "GL1900.TXT"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := Resolve(dir, "GL*.TXT")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{
		filepath.Join(dir, "GL1901.TXT"),
		filepath.Join(dir, "GL1902.TXT"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_NoMatches(t *testing.T) {
	got, err := Resolve(t.TempDir(), "*.TXT")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v want empty", got)
	}
}

func TestResolve_BadPattern(t *testing.T) {
	if _, err := Resolve(t.TempDir(), "["); err == nil {
		t.Fatal("want error for malformed pattern")
	}
}
