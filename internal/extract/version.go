package extract

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	versionAssignRx = regexp.MustCompile(`(__version__|VERSION)\s*=\s*["']?([\d\w.]+)["']?`)
	setupVersionRx  = regexp.MustCompile(`version\s*=\s*["']([\d.]+)["']`)
	majorMinorRx    = regexp.MustCompile(`\b(\d+\.\d+)\b`)
)

// VersionAssignment scrapes a __version__ or VERSION assignment out of
// python source text. Empty when none is present.
func VersionAssignment(content string) string {
	if m := versionAssignRx.FindStringSubmatch(content); m != nil {
		return m[2]
	}
	return ""
}

// MajorMinor reduces a version-ish string to its first major.minor pair.
func MajorMinor(s string) string {
	if m := majorMinorRx.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// SetupPyVersion scrapes a literal version argument out of setup.py text.
func SetupPyVersion(content string) string {
	if m := setupVersionRx.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// PyprojectVersion reads the version a pyproject.toml declares, preferring
// the poetry table over the project table.
func PyprojectVersion(data []byte) string {
	var project struct {
		Tool struct {
			Poetry struct {
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
		Project struct {
			Version string `toml:"version"`
		} `toml:"project"`
	}
	if toml.Unmarshal(data, &project) != nil {
		return ""
	}
	if project.Tool.Poetry.Version != "" {
		return project.Tool.Poetry.Version
	}
	return project.Project.Version
}

// VersionCandidate walks the tree collecting version declarations and
// returns the last one found, mirroring a plain directory walk. Sources, in
// per-file precedence: a version key in .travis.yml, VERSION marker files,
// assignments in the conventional python module files, pyproject.toml, and
// a version argument in setup.py.
func VersionCandidate(dir string) (string, error) {
	moduleFiles := map[string]struct{}{
		"version.py":     {},
		"__init__.py":    {},
		"__version__.py": {},
		"__pkginfo__.py": {},
	}

	var cand string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		lower := strings.ToLower(name)
		_, isModuleFile := moduleFiles[name]
		if name != ".travis.yml" && lower != "version" && lower != ".version" &&
			!isModuleFile && name != "pyproject.toml" && name != "setup.py" {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		switch {
		case name == ".travis.yml":
			var travis struct {
				Version any `yaml:"version"`
			}
			if yaml.Unmarshal(data, &travis) == nil && travis.Version != nil {
				cand = fmt.Sprintf("%v", travis.Version)
			}
		case lower == "version" || lower == ".version":
			if v := strings.TrimSpace(string(data)); v != "" {
				cand = v
			}
		case isModuleFile:
			if v := VersionAssignment(string(data)); v != "" {
				cand = v
			}
		case name == "pyproject.toml":
			if v := PyprojectVersion(data); v != "" {
				cand = v
			}
		case name == "setup.py":
			if v := SetupPyVersion(string(data)); v != "" {
				cand = v
			}
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "scanning %s for version declarations", dir)
	}
	return cand, nil
}

// RepoVersion determines the version a checked-out tree declares, reduced
// to major.minor. Empty when no declaration is found.
func RepoVersion(dir string) (string, error) {
	cand, err := VersionCandidate(dir)
	if err != nil {
		return "", err
	}
	return MajorMinor(cand), nil
}
