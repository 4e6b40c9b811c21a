package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeHost serves raw file contents keyed by "<repo>/<commit>/<path>".
func newFakeHost(t *testing.T, files map[string]string) *Fetcher {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.URL.Path[1:]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, content)
	}))
	t.Cleanup(server.Close)
	return &Fetcher{Client: server.Client(), BaseURL: server.URL}
}

func TestModuleName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "requests", ModuleName("psf/requests"))
	assert.Equal(t, "scikit_learn", ModuleName("scikit-learn/scikit-learn"))
	assert.Equal(t, "flask", ModuleName("flask"))
}

func TestCandidatePathsOrder(t *testing.T) {
	t.Parallel()

	paths := CandidatePaths("pylint-dev/astroid")

	require.Len(t, paths, 7)
	assert.Equal(t, "astroid/__init__.py", paths[0])
	assert.Equal(t, "VERSION", paths[6])
}

func TestRawFile(t *testing.T) {
	t.Parallel()

	fetcher := newFakeHost(t, map[string]string{
		"psf/requests/abc123/setup.py": "version='2.31.0'",
	})

	t.Run("returns content when the file exists", func(t *testing.T) {
		t.Parallel()

		body, found, err := fetcher.RawFile(context.Background(), "psf/requests", "abc123", "setup.py")

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "version='2.31.0'", string(body))
	})

	t.Run("reports a missing file without an error", func(t *testing.T) {
		t.Parallel()

		_, found, err := fetcher.RawFile(context.Background(), "psf/requests", "abc123", "nope.txt")

		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRawFileUnexpectedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	fetcher := &Fetcher{Client: server.Client(), BaseURL: server.URL}

	_, _, err := fetcher.RawFile(context.Background(), "a/b", "c", "d")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	t.Run("reads the module __init__", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeHost(t, map[string]string{
			"psf/requests/abc123/requests/__init__.py": "__version__ = \"2.31.0\"\n",
		})

		version, err := fetcher.Version(context.Background(), "psf/requests", "abc123")

		require.NoError(t, err)
		assert.Equal(t, "2.31", version)
	})

	t.Run("prefers the module file over setup.py", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeHost(t, map[string]string{
			"psf/requests/abc123/requests/__init__.py": "__version__ = '2.31.0'\n",
			"psf/requests/abc123/setup.py":             "setup(version='9.9.9')\n",
		})

		version, err := fetcher.Version(context.Background(), "psf/requests", "abc123")

		require.NoError(t, err)
		assert.Equal(t, "2.31", version)
	})

	t.Run("falls through to pyproject.toml", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeHost(t, map[string]string{
			"pylint-dev/astroid/def456/pyproject.toml": "[project]\nname = \"astroid\"\nversion = \"3.0.1\"\n",
		})

		version, err := fetcher.Version(context.Background(), "pylint-dev/astroid", "def456")

		require.NoError(t, err)
		assert.Equal(t, "3.0", version)
	})

	t.Run("reads a bare VERSION file", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeHost(t, map[string]string{
			"a/b/c/VERSION": "1.4.2\n",
		})

		version, err := fetcher.Version(context.Background(), "a/b", "c")

		require.NoError(t, err)
		assert.Equal(t, "1.4", version)
	})

	t.Run("resolves nothing when no candidate exists", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeHost(t, map[string]string{})

		version, err := fetcher.Version(context.Background(), "a/b", "c")

		require.NoError(t, err)
		assert.Empty(t, version)
	})
}
