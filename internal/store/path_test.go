package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverPath(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	storeDir := filepath.Join(root, "a", ".swarm", "tickets")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	dbFile := filepath.Join(storeDir, "tickets.db")
	if err := os.WriteFile(dbFile, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}

	found, ok := DiscoverPath(nested, DefaultSubpath)
	if !ok {
		t.Fatal("expected to discover the store from a nested descendant directory")
	}
	abs, _ := filepath.Abs(dbFile)
	if found != abs {
		t.Errorf("found %q, want %q", found, abs)
	}
}

func TestDiscoverPathNotFound(t *testing.T) {
	root := t.TempDir()
	if _, ok := DiscoverPath(root, DefaultSubpath); ok {
		t.Error("expected no discovery in a bare temp directory")
	}
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	t.Run("flag wins", func(t *testing.T) {
		got := ResolvePath("/explicit/path.db", "/env/path.db", root)
		if got != "/explicit/path.db" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("env wins when no flag is given", func(t *testing.T) {
		got := ResolvePath("", "/env/path.db", root)
		if got != "/env/path.db" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("falls back when nothing discoverable", func(t *testing.T) {
		got := ResolvePath("", "", root)
		if got != DefaultFallback {
			t.Errorf("got %q, want %q", got, DefaultFallback)
		}
	})
}
