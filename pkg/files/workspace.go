package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrOutsideWorkspace = errors.New("access denied")
	ErrTooLarge         = errors.New("file too large")
	ErrPathRequired     = errors.New("file path required")
)

// Entry is one node of a directory listing.
type Entry struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Type     string     `json:"type"`
	Size     int64      `json:"size,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
	Children []Entry    `json:"children,omitempty"`
}

// Workspace confines file access to a root directory.
type Workspace struct {
	root        string
	maxFileSize int64
	maxDepth    int
}

func NewWorkspace(root string, maxFileSize int64, maxDepth int) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Workspace{root: filepath.Clean(abs), maxFileSize: maxFileSize, maxDepth: maxDepth}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a workspace-relative path to an absolute one and refuses
// anything that escapes the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	full := filepath.Join(w.root, filepath.FromSlash(rel))
	if full != w.root && !strings.HasPrefix(full, w.root+string(os.PathSeparator)) {
		return "", ErrOutsideWorkspace
	}
	return full, nil
}

// List walks dir (workspace-relative, "" for the root) up to the configured
// depth, skipping hidden entries and node_modules.
func (w *Workspace) List(dir string) ([]Entry, error) {
	full, err := w.Resolve(dir)
	if err != nil {
		return nil, err
	}
	return w.list(full, 0)
}

func (w *Workspace) list(dir string, depth int) ([]Entry, error) {
	if depth > w.maxDepth {
		return []Entry{}, nil
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	for _, item := range items {
		name := item.Name()
		if strings.HasPrefix(name, ".") || name == "node_modules" {
			continue
		}
		full := filepath.Join(dir, name)
		info, err := item.Info()
		if err != nil {
			continue
		}
		switch {
		case info.IsDir():
			children, err := w.list(full, depth+1)
			if err != nil {
				children = []Entry{}
			}
			entries = append(entries, Entry{Name: name, Path: w.relative(full), Type: "directory", Children: children})
		case info.Mode().IsRegular():
			mod := info.ModTime()
			entries = append(entries, Entry{Name: name, Path: w.relative(full), Type: "file", Size: info.Size(), Modified: &mod})
		}
	}
	return entries, nil
}

func (w *Workspace) relative(full string) string {
	rel, err := filepath.Rel(w.root, full)
	if err != nil {
		return full
	}
	return "/" + filepath.ToSlash(rel)
}

func (w *Workspace) Read(rel string) (string, error) {
	if rel == "" {
		return "", ErrPathRequired
	}
	full, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
		return "", ErrTooLarge
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *Workspace) Write(rel, content string) error {
	if rel == "" {
		return ErrPathRequired
	}
	full, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	if w.maxFileSize > 0 && int64(len(content)) > w.maxFileSize {
		return ErrTooLarge
	}
	return os.WriteFile(full, []byte(content), 0o644)
}
