package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	installRequiresRx = regexp.MustCompile(`(?s)install_requires\s*=\s*\[(.*?)\]`)
	testingExtrasRx   = regexp.MustCompile(`(?s)extras_require\s*=\s*\{.*?["']testing["']\s*:\s*\[(.*?)\]`)
	validPackageRx    = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*\s*(?:[=<>!~]=.*)?$`)
)

// IsValidPackageName reports whether a requirement line looks like a package
// spec rather than an option, URL, or leftover syntax fragment.
func IsValidPackageName(pkg string) bool {
	return validPackageRx.MatchString(pkg)
}

// ParseRequirementsTxt reads a requirements file, dropping comments, blank
// lines and environment-marker suffixes.
func ParseRequirementsTxt(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var packages []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		if line != "" {
			packages = append(packages, line)
		}
	}
	return packages, nil
}

// ParseEnvironmentYML extracts the conda dependency list, including the
// packages nested under a pip entry.
func ParseEnvironmentYML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var env struct {
		Dependencies []any `yaml:"dependencies"`
	}
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	var packages []string
	for _, dep := range env.Dependencies {
		switch v := dep.(type) {
		case string:
			packages = append(packages, v)
		case map[string]any:
			pip, ok := v["pip"].([]any)
			if !ok {
				continue
			}
			for _, p := range pip {
				if s, ok := p.(string); ok {
					packages = append(packages, s)
				}
			}
		}
	}
	return packages, nil
}

// ParseSetupPy scrapes install_requires and the testing extras out of a
// setup.py. setup.py is executable code, so this is a textual best effort.
func ParseSetupPy(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	content := string(data)

	var packages []string
	if m := installRequiresRx.FindStringSubmatch(content); m != nil {
		packages = append(packages, splitQuotedList(m[1])...)
	}
	if m := testingExtrasRx.FindStringSubmatch(content); m != nil {
		packages = append(packages, splitQuotedList(m[1])...)
	}
	return packages, nil
}

// splitQuotedList turns the source text of a python list literal into its
// string items.
func splitQuotedList(list string) []string {
	var items []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		item = strings.Trim(item, `"'`)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ParsePyprojectTOML extracts poetry dependencies and dev-dependencies as
// pip-style specs. Caret constraints become >= bounds and the python entry
// itself is dropped.
func ParsePyprojectTOML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var project struct {
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &project); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	var packages []string
	packages = append(packages, poetryDeps(project.Tool.Poetry.Dependencies)...)
	packages = append(packages, poetryDeps(project.Tool.Poetry.DevDependencies)...)

	out := packages[:0]
	for _, p := range packages {
		if strings.HasPrefix(p, "python==") {
			continue
		}
		out = append(out, strings.Replace(p, "==^", ">=", 1))
	}
	return out, nil
}

// poetryDeps renders a poetry dependency table as "name==constraint" specs,
// sorted for deterministic output.
func poetryDeps(deps map[string]any) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var packages []string
	for _, name := range names {
		switch v := deps[name].(type) {
		case string:
			packages = append(packages, name+"=="+v)
		case map[string]any:
			if ver, ok := v["version"].(string); ok {
				packages = append(packages, name+"=="+ver)
			} else {
				packages = append(packages, name)
			}
		default:
			packages = append(packages, name)
		}
	}
	return packages
}

// RequiredPackages aggregates package requirements from every manifest in
// the tree, deduplicated in discovery order. Manifests that fail to parse
// are skipped. Requirements files under docs trees are ignored.
func RequiredPackages(dir string) ([]string, error) {
	found, err := FindSetupFiles(dir)
	if err != nil {
		return nil, err
	}

	var all []string
	for _, kind := range []string{"requirements.txt", "environment.yml", "setup.py", "pyproject.toml"} {
		for _, rel := range found[kind] {
			if kind == "requirements.txt" && strings.Contains(rel, "docs") {
				continue
			}
			full := filepath.Join(dir, rel)
			var packages []string
			var parseErr error
			switch kind {
			case "requirements.txt":
				packages, parseErr = ParseRequirementsTxt(full)
			case "environment.yml":
				packages, parseErr = ParseEnvironmentYML(full)
			case "setup.py":
				packages, parseErr = ParseSetupPy(full)
			case "pyproject.toml":
				packages, parseErr = ParsePyprojectTOML(full)
			}
			if parseErr != nil {
				continue
			}
			all = append(all, packages...)
		}
	}

	seen := make(map[string]struct{}, len(all))
	var unique []string
	for _, pkg := range all {
		if _, dup := seen[pkg]; dup || !IsValidPackageName(pkg) {
			continue
		}
		seen[pkg] = struct{}{}
		cleaned := strings.ReplaceAll(strings.SplitN(pkg, "#", 2)[0], " ", "")
		if cleaned != "" {
			unique = append(unique, cleaned)
		}
	}
	return unique, nil
}
