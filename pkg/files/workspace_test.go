package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := NewWorkspace(root, 16, 1)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	return ws, ws.Root()
}

func TestWorkspaceReadWrite(t *testing.T) {
	ws, root := newWorkspace(t)
	if err := ws.Write("notes.txt", "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ws.Read("/notes.txt")
	if err != nil || got != "hello" {
		t.Fatalf("read: %v out=%q", err, got)
	}
	if _, err := os.Stat(filepath.Join(root, "notes.txt")); err != nil {
		t.Fatalf("expected file in root: %v", err)
	}
}

func TestWorkspaceRejectsEscapes(t *testing.T) {
	ws, _ := newWorkspace(t)
	for _, p := range []string{"../outside.txt", "a/../../outside.txt", "../../etc/passwd"} {
		if _, err := ws.Read(p); !errors.Is(err, ErrOutsideWorkspace) {
			t.Fatalf("read %q: expected ErrOutsideWorkspace, got %v", p, err)
		}
		if err := ws.Write(p, "x"); !errors.Is(err, ErrOutsideWorkspace) {
			t.Fatalf("write %q: expected ErrOutsideWorkspace, got %v", p, err)
		}
	}
	if _, err := ws.List(".."); !errors.Is(err, ErrOutsideWorkspace) {
		t.Fatalf("list outside root should be denied, got %v", err)
	}
}

func TestWorkspaceSizeLimit(t *testing.T) {
	ws, root := newWorkspace(t)
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Repeat("x", 32)), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := ws.Read("big.txt"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if err := ws.Write("big2.txt", strings.Repeat("y", 32)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge on write, got %v", err)
	}
	if _, err := ws.Read(""); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}

func TestWorkspaceList(t *testing.T) {
	ws, root := newWorkspace(t)
	mustMkdir(t, filepath.Join(root, "src", "deep", "deeper"))
	mustMkdir(t, filepath.Join(root, "node_modules"))
	mustMkdir(t, filepath.Join(root, ".git"))
	mustWrite(t, filepath.Join(root, "README.md"))
	mustWrite(t, filepath.Join(root, "src", "main.go"))
	mustWrite(t, filepath.Join(root, "src", "deep", "deeper", "x.go"))

	entries, err := ws.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected README.md and src only, got %+v", entries)
	}
	var src *Entry
	for i := range entries {
		if entries[i].Name == "src" {
			src = &entries[i]
		}
	}
	if src == nil || src.Type != "directory" || src.Path != "/src" {
		t.Fatalf("unexpected src entry %+v", src)
	}
	var deep *Entry
	for i := range src.Children {
		if src.Children[i].Name == "deep" {
			deep = &src.Children[i]
		}
	}
	if deep == nil {
		t.Fatalf("expected deep directory under src")
	}
	if len(deep.Children) != 0 {
		t.Fatalf("listing should stop at max depth, got %+v", deep.Children)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
