// Package testbed manages the working areas instances are checked out
// into: one cached clone per repository under a shared root, plus
// per-instance scratch directories for validation runs.
package testbed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/shell"
)

// runner is the slice of the shell runner the workspace needs.
type runner interface {
	Run(ctx context.Context, cmd shell.Command) (*shell.Result, error)
}

// Workspace is a directory of repository checkouts shared by workers.
type Workspace struct {
	root  string
	run   runner
	locks *keyedLocks
}

// NewWorkspace returns a workspace rooted at the given directory.
func NewWorkspace(run runner, root string) *Workspace {
	return &Workspace{root: root, run: run, locks: newKeyedLocks()}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// RepoDir returns the directory a repository clones into.
func (w *Workspace) RepoDir(repo string) string {
	return filepath.Join(w.root, strings.ReplaceAll(repo, "/", "__"))
}

// CloneURL returns the HTTPS clone URL for an owner/name repository.
func CloneURL(repo string) string {
	return "https://github.com/" + repo + ".git"
}

// Checkout ensures the repository is cloned under the root and
// force-checks-out the commit, returning the checkout directory. Safe for
// concurrent use; callers sharing a repository serialize on its clone.
func (w *Workspace) Checkout(ctx context.Context, repo, commit string) (string, error) {
	if repo == "" || commit == "" {
		return "", fmt.Errorf("checkout needs a repository and a commit, got %q@%q", repo, commit)
	}
	logger := ctxlog.FromContext(ctx).With("repo", repo)

	unlock := w.locks.acquire(repo)
	defer unlock()

	if err := os.MkdirAll(w.root, 0755); err != nil {
		return "", fmt.Errorf("creating workspace root: %w", err)
	}

	dir := w.RepoDir(repo)
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		logger.Debug("Cloning repository.", "dir", dir)
		if _, err := w.run.Run(ctx, shell.Command{Name: "git", Args: []string{"clone", CloneURL(repo), dir}}); err != nil {
			return "", fmt.Errorf("cloning %s: %w", repo, err)
		}
	}

	logger.Debug("Checking out commit.", "commit", commit)
	if _, err := w.run.Run(ctx, shell.Command{Name: "git", Args: []string{"checkout", "-f", commit}, Dir: dir}); err != nil {
		// The commit may postdate the cached clone; refresh once and retry.
		if _, fetchErr := w.run.Run(ctx, shell.Command{Name: "git", Args: []string{"fetch", "--all"}, Dir: dir}); fetchErr != nil {
			return "", fmt.Errorf("fetching %s: %w", repo, fetchErr)
		}
		if _, err := w.run.Run(ctx, shell.Command{Name: "git", Args: []string{"checkout", "-f", commit}, Dir: dir}); err != nil {
			return "", fmt.Errorf("checking out %s@%s: %w", repo, commit, err)
		}
	}
	return dir, nil
}

// Scratch creates (or reuses) a named scratch directory under the root.
func (w *Workspace) Scratch(id string) (string, error) {
	dir := filepath.Join(w.root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating scratch dir for %s: %w", id, err)
	}
	return dir, nil
}

// RemoveScratch deletes a named scratch directory.
func (w *Workspace) RemoveScratch(id string) error {
	return os.RemoveAll(filepath.Join(w.root, id))
}
