package extract

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// setupFileNames are the manifest files that can drive an installation.
var setupFileNames = []string{
	"requirements.txt",
	"environment.yml",
	"setup.py",
	"pyproject.toml",
	"Pipfile",
	"tox.ini",
	"conda-requirements.txt",
	"requirements.in",
}

// FindSetupFiles walks the tree and buckets manifest files by kind. Any file
// whose name starts with "requirements" is folded into the requirements.txt
// bucket. Paths are relative to dir.
func FindSetupFiles(dir string) (map[string][]string, error) {
	known := make(map[string]struct{}, len(setupFileNames))
	for _, n := range setupFileNames {
		known[n] = struct{}{}
	}

	found := make(map[string][]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		name := d.Name()
		if _, ok := known[name]; ok {
			found[name] = append(found[name], rel)
		} else if strings.HasPrefix(name, "requirements") {
			found["requirements.txt"] = append(found["requirements.txt"], rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s for setup files", dir)
	}
	return found, nil
}

// FindVersionFiles walks the tree for files that may declare a version: the
// conventional python module files, any .py file containing a __version__
// line, and *.version files. Paths are relative to dir.
func FindVersionFiles(dir string) ([]string, error) {
	versionNames := map[string]struct{}{
		"version.py":     {},
		"__init__.py":    {},
		"__pkginfo__.py": {},
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".py"):
			if _, ok := versionNames[name]; ok {
				files = append(files, rel)
				return nil
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil
			}
			if bytes.Contains(content, []byte("__version__")) {
				files = append(files, rel)
			}
		case strings.HasSuffix(name, ".version"):
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s for version files", dir)
	}
	return files, nil
}
