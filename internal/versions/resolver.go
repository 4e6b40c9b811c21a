package versions

import (
	"context"

	"github.com/vk/taskbed/internal/conda"
	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/extract"
	"github.com/vk/taskbed/internal/github"
	"github.com/vk/taskbed/internal/instance"
	"github.com/vk/taskbed/internal/testbed"
)

// BuildResolver reads the version out of a local checkout. When the tree
// declares nothing and a conda environment is configured, it falls back to
// importing the package inside that environment.
type BuildResolver struct {
	Workspace *testbed.Workspace
	Conda     *conda.Manager
	CondaEnv  string
}

func (r *BuildResolver) Resolve(ctx context.Context, inst *instance.Instance) (string, error) {
	dir, err := r.Workspace.Checkout(ctx, inst.Repo, inst.SetupCommit())
	if err != nil {
		return "", err
	}

	version, err := extract.RepoVersion(dir)
	if err != nil {
		return "", err
	}
	if version != "" {
		return version, nil
	}

	if r.Conda == nil || r.CondaEnv == "" {
		return "", nil
	}
	probed, err := r.Conda.ProbeVersion(ctx, r.CondaEnv, github.ModuleName(inst.Repo))
	if err != nil {
		// The package may simply not be installed in the probe env.
		ctxlog.FromContext(ctx).Debug("Version probe failed.", "instanceID", inst.ID, "error", err)
		return "", nil
	}
	return extract.MajorMinor(probed), nil
}

// GitHubResolver reads the version from the code host without a checkout.
type GitHubResolver struct {
	Fetcher *github.Fetcher
}

func (r *GitHubResolver) Resolve(ctx context.Context, inst *instance.Instance) (string, error) {
	return r.Fetcher.Version(ctx, inst.Repo, inst.SetupCommit())
}
