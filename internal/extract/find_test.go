package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskbed/internal/testutil"
)

func TestFindSetupFiles(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"setup.py":                 "from setuptools import setup",
		"requirements.txt":         "numpy",
		"requirements-dev.txt":     "pytest",
		"docs/requirements.txt":    "sphinx",
		"sub/pyproject.toml":       "[tool.poetry]",
		"environment.yml":          "dependencies: []",
		"tox.ini":                  "[tox]",
		"unrelated/config.json":    "{}",
		"unrelated/requirement.md": "notes",
	})

	found, err := FindSetupFiles(root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"requirements.txt",
		"requirements-dev.txt",
		filepath.Join("docs", "requirements.txt"),
	}, found["requirements.txt"], "requirements variants fold into one bucket")

	assert.Equal(t, []string{"setup.py"}, found["setup.py"])
	assert.Equal(t, []string{filepath.Join("sub", "pyproject.toml")}, found["pyproject.toml"])
	assert.Equal(t, []string{"environment.yml"}, found["environment.yml"])
	assert.Equal(t, []string{"tox.ini"}, found["tox.ini"])
	assert.NotContains(t, found, "config.json")
}

func TestFindVersionFiles(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"pkg/version.py":     "__version__ = '1.2.3'",
		"pkg/__init__.py":    "",
		"pkg/__pkginfo__.py": "numversion = (2, 8)",
		"pkg/core.py":        "__version__ = '1.2.3'\nx = 1",
		"pkg/other.py":       "x = 1",
		"release.version":    "1.2",
		"README.md":          "__version__ mentioned here",
	})

	files, err := FindVersionFiles(root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join("pkg", "version.py"),
		filepath.Join("pkg", "__init__.py"),
		filepath.Join("pkg", "__pkginfo__.py"),
		filepath.Join("pkg", "core.py"),
		"release.version",
	}, files)
}
