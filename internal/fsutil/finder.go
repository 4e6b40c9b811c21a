// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// FindFilesNamed recursively searches the given root path for files whose base
// name exactly matches one of the provided names. It returns paths relative to
// the root so callers can report locations independent of where the tree lives.
func FindFilesNamed(rootPath string, names ...string) ([]string, error) {
	if len(names) == 0 {
		panic("names must not be empty")
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := wanted[d.Name()]; ok {
			rel, relErr := filepath.Rel(rootPath, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, rel)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
