package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, "data.txt"), []byte("test data content"), 0644)
	os.WriteFile(filepath.Join(dir, "lib.js"), []byte("var lib = 1;"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "notes.txt"), []byte("notes"), 0644)
	os.MkdirAll(filepath.Join(dir, ".git"), 0755)
	os.WriteFile(filepath.Join(dir, ".git", "HEAD.txt"), []byte("ref"), 0644)

	return NewFS(dir)
}

func TestFS_List(t *testing.T) {
	fs := newTestFS(t)

	result, err := fs.List(".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := make(map[string]bool)
	for _, entry := range result {
		names[entry["name"].(string)] = true
	}
	if len(result) != 3 || !names["data.txt"] || !names["lib.js"] || !names["sub"] {
		t.Errorf("expected data.txt, lib.js, sub; got %v", names)
	}
}

func TestFS_ReadTruncates(t *testing.T) {
	fs := newTestFS(t)
	fs.MaxFileSize = 4

	content, err := fs.Read("data.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "test\n... [truncated]" {
		t.Errorf("content = %q", content)
	}
}

func TestFS_Glob(t *testing.T) {
	fs := newTestFS(t)

	matches, err := fs.Glob("*/*.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0] != filepath.Join("sub", "notes.txt") {
		t.Errorf("matches = %v, want [sub/notes.txt] without .git", matches)
	}
}

func TestFS_OutsideRoot(t *testing.T) {
	fs := newTestFS(t)

	for _, path := range []string{"../secret", "/etc/passwd", "sub/../../x"} {
		if _, err := fs.Read(path); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Read(%q): err = %v, want ErrOutsideRoot", path, err)
		}
		if fs.Exists(path) {
			t.Errorf("Exists(%q) = true outside the root", path)
		}
	}
}

func TestFS_FromCells(t *testing.T) {
	fs := newTestFS(t)
	e, err := New(Options{FS: fs})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		code string
		want string
	}{
		{code: `fs.exists("data.txt")`, want: "true"},
		{code: `fs.read("data.txt")`, want: "test data content"},
		{code: `fs.list().length`, want: "3"},
		{code: `fs.glob("*.js")[0]`, want: "lib.js"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, val, err := e.Process(tt.code)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if val == nil || val.Raw().String() != tt.want {
				t.Errorf("got %v, want %s", val, tt.want)
			}
		})
	}

	// Errors are thrown into JavaScript
	_, _, err = e.Process(`fs.read("missing.txt")`)
	var exc *Exception
	if !errors.As(err, &exc) {
		t.Fatalf("expected a JavaScript exception, got %v", err)
	}
	if !strings.Contains(exc.Error(), "missing.txt") {
		t.Errorf("exception %q does not name the file", exc.Error())
	}

	// The binding survives a reset
	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, val, _ := e.Process(`typeof fs.read`); val == nil || val.Raw().String() != "function" {
		t.Error("fs is gone after reset")
	}
}
