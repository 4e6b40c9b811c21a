// Package github resolves repository versions straight from the code host,
// for instances processed without a local checkout.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/extract"
)

// defaultBaseURL serves raw file contents addressed by repository and commit.
const defaultBaseURL = "https://raw.githubusercontent.com"

// Fetcher retrieves candidate version files over HTTP. The zero value is not
// usable; construct it with NewFetcher, or fill both fields in tests.
type Fetcher struct {
	Client  *http.Client
	BaseURL string
}

// NewFetcher returns a fetcher that reuses connections across requests.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		BaseURL: defaultBaseURL,
	}
}

// ModuleName guesses the importable module a repository ships: the
// repository name with dashes flattened to underscores.
func ModuleName(repo string) string {
	name := repo
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		name = repo[i+1:]
	}
	return strings.ReplaceAll(name, "-", "_")
}

// CandidatePaths lists the files that usually declare a version, most
// authoritative first.
func CandidatePaths(repo string) []string {
	mod := ModuleName(repo)
	return []string{
		mod + "/__init__.py",
		mod + "/version.py",
		mod + "/_version.py",
		"version.py",
		"setup.py",
		"pyproject.toml",
		"VERSION",
	}
}

// RawFile fetches one file at a commit. A missing file is reported through
// the boolean, not as an error.
func (f *Fetcher) RawFile(ctx context.Context, repo, commit, filePath string) ([]byte, bool, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", f.BaseURL, repo, commit, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("fetching %s: unexpected status %q", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, true, nil
}

// Version resolves the version a repository declared at a commit. All
// candidate files are fetched concurrently and the first declaration in
// CandidatePaths order wins. Empty when no candidate declares one.
func (f *Fetcher) Version(ctx context.Context, repo, commit string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	paths := CandidatePaths(repo)
	candidates := make([]string, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, p := range paths {
		group.Go(func() error {
			body, found, err := f.RawFile(groupCtx, repo, commit, p)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			candidates[i] = versionFromFile(p, body)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	for i, cand := range candidates {
		if v := extract.MajorMinor(cand); v != "" {
			logger.Debug("Resolved version from code host", "repo", repo, "commit", commit, "path", paths[i], "version", v)
			return v, nil
		}
	}
	return "", nil
}

// versionFromFile extracts a raw version declaration from one candidate
// file, dispatching on what kind of file the path names.
func versionFromFile(path string, body []byte) string {
	switch {
	case strings.HasSuffix(path, ".py") && path != "setup.py":
		return extract.VersionAssignment(string(body))
	case path == "setup.py":
		if v := extract.SetupPyVersion(string(body)); v != "" {
			return v
		}
		return extract.VersionAssignment(string(body))
	case path == "pyproject.toml":
		return extract.PyprojectVersion(body)
	default:
		return strings.TrimSpace(string(body))
	}
}
