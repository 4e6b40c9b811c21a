package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vk/taskbed/internal/fsutil"
)

var (
	looseVersionRx   = regexp.MustCompile(`\b(\d+\.\d+(?:\.\d+)?)\b`)
	pythonRequiresRx = regexp.MustCompile(`python_requires\s*=\s*['"](.+?)['"]`)
	classifierRx     = regexp.MustCompile(`Programming Language :: Python :: (\d+\.\d+)`)
)

// PythonVersion determines which python a tree targets. Candidates come
// from markdown files anywhere in the tree and from setup.py, .travis.yml
// and pyproject.toml at the root; the highest plausible version wins.
// Returns "" when nothing plausible is found.
func PythonVersion(dir string) (string, error) {
	var candidates []string

	mdFiles, err := fsutil.FindFilesByExtension(dir, ".md")
	if err != nil {
		return "", errors.Wrapf(err, "scanning %s for markdown files", dir)
	}
	for _, f := range mdFiles {
		data, readErr := os.ReadFile(f)
		if readErr != nil {
			continue
		}
		candidates = append(candidates, looseVersions(string(data))...)
	}

	if data, readErr := os.ReadFile(filepath.Join(dir, "setup.py")); readErr == nil {
		candidates = append(candidates, pythonFromSetupPy(string(data))...)
	}
	if data, readErr := os.ReadFile(filepath.Join(dir, ".travis.yml")); readErr == nil {
		candidates = append(candidates, pythonFromTravis(data)...)
	}
	if data, readErr := os.ReadFile(filepath.Join(dir, "pyproject.toml")); readErr == nil {
		candidates = append(candidates, pythonFromPyproject(data)...)
	}

	return MaxPythonVersion(candidates), nil
}

// looseVersions finds anything shaped like a version number in free text.
func looseVersions(content string) []string {
	var out []string
	for _, m := range looseVersionRx.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}
	return out
}

func pythonFromSetupPy(content string) []string {
	var out []string
	if m := pythonRequiresRx.FindStringSubmatch(content); m != nil {
		out = append(out, looseVersions(m[1])...)
	}
	for _, m := range classifierRx.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}
	return out
}

func pythonFromTravis(data []byte) []string {
	var travis struct {
		Python any `yaml:"python"`
	}
	if err := yaml.Unmarshal(data, &travis); err != nil {
		return nil
	}

	switch v := travis.Python.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s := yamlScalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func pythonFromPyproject(data []byte) []string {
	var project struct {
		Tool struct {
			Poetry struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &project); err != nil {
		return nil
	}
	if constraint, ok := project.Tool.Poetry.Dependencies["python"].(string); ok {
		return looseVersions(constraint)
	}
	return nil
}

// yamlScalarString renders a YAML scalar as text. Travis python entries are
// often unquoted and decode as numbers.
func yamlScalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	}
	return ""
}

// MaxPythonVersion picks the highest plausible python version from the
// candidates. Plausible means integer components in the 3.5 through 3.12
// range; anything else is noise picked up from free text.
func MaxPythonVersion(versions []string) string {
	var best []int
	for _, v := range versions {
		parts, ok := parseVersionParts(v)
		if !ok {
			continue
		}
		if parts[0] != 3 || parts[1] < 5 || parts[1] > 12 {
			continue
		}
		if best == nil || lessVersionParts(best, parts) {
			best = parts
		}
	}

	if best == nil {
		return ""
	}
	rendered := make([]string, len(best))
	for i, p := range best {
		rendered[i] = strconv.Itoa(p)
	}
	return strings.Join(rendered, ".")
}

// parseVersionParts parses "3.8" or "3.8.1" into integer parts.
func parseVersionParts(v string) ([]int, bool) {
	fields := strings.Split(v, ".")
	if len(fields) < 2 || len(fields) > 3 {
		return nil, false
	}
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		parts[i] = n
	}
	return parts, true
}

// lessVersionParts compares versions component-wise, a shorter version
// ranking below its patch-qualified form.
func lessVersionParts(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
