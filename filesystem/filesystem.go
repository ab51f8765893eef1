package filesystem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error constants for better error handling
var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrNotFile           = fmt.Errorf("filesystem: not a regular file")
	ErrNotDirectory      = fmt.Errorf("filesystem: not a directory")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

// Entry is one immediate child of a listed directory.
type Entry struct {
	Name   string
	Size   uint64
	IsFile bool
}

// Filesystem gives access to a single directory tree. Every path is
// slash separated and relative to that tree; "" and "." name its top.
type Filesystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ListDirectory(ctx context.Context, path string) ([]Entry, error)

	GetAbsolutePath(path string) (string, error)
	Close() error
}

type localFileSystem struct {
	base string
	root *os.Root
}

// NewLocalFileSystem opens base as the top of a Filesystem. Lookups can not
// leave base, symlinks included.
func NewLocalFileSystem(base string) (Filesystem, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, abs)
		}
		return nil, err
	}

	return &localFileSystem{base: abs, root: root}, nil
}

// ListDirectory implements Filesystem. Only regular files and directories are
// listed, symlinks by their target when it stays inside the root; directories
// report a size of 0. Entries are sorted by name.
func (filesystem *localFileSystem) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	name, err := ValidatePath(path)
	if err != nil {
		return nil, err
	}

	return withContext(ctx, func() ([]Entry, error) {
		dir, err := filesystem.root.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
			}
			return nil, err
		}
		defer closeFile(dir)

		info, err := dir.Stat()
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
		}

		dirEntries, err := dir.ReadDir(-1)
		if err != nil {
			return nil, err
		}

		entries := make([]Entry, 0, len(dirEntries))
		for _, dirEntry := range dirEntries {
			var info fs.FileInfo
			if dirEntry.Type()&fs.ModeSymlink != 0 {
				// dangling links and links leaving the root fail here
				info, err = filesystem.root.Stat(filepath.Join(name, dirEntry.Name()))
				if err != nil {
					continue
				}
			} else {
				info, err = dirEntry.Info()
				if err != nil {
					// removed since ReadDir
					if errors.Is(err, fs.ErrNotExist) {
						continue
					}
					return nil, err
				}
			}

			switch {
			case info.IsDir():
				entries = append(entries, Entry{Name: dirEntry.Name()})
			case info.Mode().IsRegular():
				entries = append(entries, Entry{
					Name:   dirEntry.Name(),
					Size:   uint64(info.Size()),
					IsFile: true,
				})
			}
		}

		slices.SortFunc(entries, func(a, b Entry) int {
			return cmp.Compare(a.Name, b.Name)
		})

		return entries, nil
	})
}

// ReadFile implements Filesystem.
func (filesystem *localFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	name, err := ValidatePath(path)
	if err != nil {
		return nil, err
	}

	return withContext(ctx, func() ([]byte, error) {
		file, err := filesystem.root.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, err
		}
		defer closeFile(file)

		info, err := file.Stat()
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s", ErrNotFile, path)
		}

		return io.ReadAll(file)
	})
}

// GetAbsolutePath implements Filesystem.
func (filesystem *localFileSystem) GetAbsolutePath(path string) (string, error) {
	name, err := ValidatePath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(filesystem.base, name), nil
}

func (filesystem *localFileSystem) Close() error {
	return filesystem.root.Close()
}

// ValidatePath turns a slash separated relative path into an OS path name.
// Absolute paths, ".." elements and NUL bytes are rejected.
func ValidatePath(path string) (string, error) {
	if path == "" || path == "." {
		return ".", nil
	}

	if strings.ContainsRune(path, 0) || strings.HasPrefix(path, "/") || filepath.IsAbs(path) || filepath.VolumeName(path) != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	for _, elem := range strings.Split(path, "/") {
		if elem == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}

	return filepath.FromSlash(path), nil
}

// withContext runs fn and gives up waiting once ctx is done. fn keeps
// running in the background until the blocked call returns.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func closeFile(file *os.File) {
	if err := file.Close(); err != nil {
		slog.Error("closing file error", "error", err)
	}
}
