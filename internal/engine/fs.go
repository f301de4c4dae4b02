package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dop251/goja"
)

// FSGlobal is the global through which cells read files.
const FSGlobal = "fs"

// ErrOutsideRoot is returned for paths that escape the FS root.
var ErrOutsideRoot = errors.New("path is outside the notebook directory")

// FS gives interpreted code read-only access to the files under Root.
type FS struct {
	Root string

	// MaxFileSize caps fs.read; longer files are truncated (0 = no limit)
	MaxFileSize int64

	// Exclude lists directory names hidden from fs.list and fs.glob
	Exclude []string
}

// NewFS returns an FS rooted at root with the usual noise directories
// hidden.
func NewFS(root string) *FS {
	return &FS{
		Root:        root,
		MaxFileSize: 1 << 20,
		Exclude:     []string{".git", "node_modules", ".gokernel"},
	}
}

// resolve maps a cell-supplied path to a file under Root.
func (f *FS) resolve(path string) (string, error) {
	root, err := filepath.Abs(f.Root)
	if err != nil {
		return "", err
	}
	resolved := path
	if !filepath.IsAbs(path) {
		resolved = filepath.Join(root, path)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return resolved, nil
}

func (f *FS) hidden(name string) bool {
	return slices.Contains(f.Exclude, name)
}

// Read returns a file's content, truncated to MaxFileSize.
func (f *FS) Read(path string) (string, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	file, err := os.Open(resolved)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var r io.Reader = file
	if f.MaxFileSize > 0 {
		r = io.LimitReader(file, f.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if f.MaxFileSize > 0 && int64(len(data)) > f.MaxFileSize {
		return string(data[:f.MaxFileSize]) + "\n... [truncated]", nil
	}
	return string(data), nil
}

// List describes the entries of a directory as {name, isDir, size}.
func (f *FS) List(path string) ([]map[string]any, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && f.hidden(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, map[string]any{
			"name":  entry.Name(),
			"isDir": entry.IsDir(),
			"size":  info.Size(),
		})
	}
	return result, nil
}

// Glob returns the paths under Root matching pattern, relative to Root.
func (f *FS) Glob(pattern string) ([]string, error) {
	resolved, err := f.resolve(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(resolved)
	if err != nil {
		return nil, err
	}

	root, _ := filepath.Abs(f.Root)
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(root, m)
		if err != nil {
			continue
		}
		if slices.ContainsFunc(strings.Split(rel, string(filepath.Separator)), f.hidden) {
			continue
		}
		result = append(result, rel)
	}
	return result, nil
}

// Exists reports whether path names an existing file or directory.
func (f *FS) Exists(path string) bool {
	resolved, err := f.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

// install binds the fs object into vm. Errors surface in JavaScript as
// thrown GoErrors.
func (f *FS) install(vm *goja.Runtime) error {
	obj := vm.NewObject()
	pathArg := func(call goja.FunctionCall, name string) string {
		if goja.IsUndefined(call.Argument(0)) {
			if name == "list" {
				return "."
			}
			panic(vm.NewTypeError("fs.%s requires a path", name))
		}
		return call.Argument(0).String()
	}
	throwing := func(v any, err error) goja.Value {
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(v)
	}

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"read": func(call goja.FunctionCall) goja.Value {
			return throwing(f.Read(pathArg(call, "read")))
		},
		"list": func(call goja.FunctionCall) goja.Value {
			return throwing(f.List(pathArg(call, "list")))
		},
		"glob": func(call goja.FunctionCall) goja.Value {
			return throwing(f.Glob(pathArg(call, "glob")))
		},
		"exists": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(f.Exists(pathArg(call, "exists")))
		},
	}
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			return fmt.Errorf("failed to set %s.%s: %w", FSGlobal, name, err)
		}
	}
	return vm.Set(FSGlobal, obj)
}
