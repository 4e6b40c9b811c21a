// Package conda drives a conda installation: creating, removing, listing
// and running commands inside named environments. Activation never sources
// shell scripts; everything goes through `conda run` with plain argv.
package conda

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/taskbed/internal/shell"
)

// runner is the slice of the shell runner the manager needs.
type runner interface {
	Run(ctx context.Context, cmd shell.Command) (*shell.Result, error)
}

// Manager operates the conda binary of a given installation root, or the
// one on PATH when no root is configured.
type Manager struct {
	bin string
	run runner
}

// NewManager returns a manager for the installation rooted at condaRoot.
// An empty root means the conda from PATH.
func NewManager(run runner, condaRoot string) *Manager {
	bin := "conda"
	if condaRoot != "" {
		bin = filepath.Join(condaRoot, "bin", "conda")
	}
	return &Manager{bin: bin, run: run}
}

// Bin returns the conda binary the manager invokes.
func (m *Manager) Bin() string {
	return m.bin
}

// CreateEnv creates a fresh environment, pinned to a python version when
// one is given.
func (m *Manager) CreateEnv(ctx context.Context, name, pythonVersion string) error {
	args := []string{"create", "-n", name, "-y"}
	if pythonVersion != "" {
		args = append(args, "python="+pythonVersion)
	}
	if _, err := m.run.Run(ctx, shell.Command{Name: m.bin, Args: args}); err != nil {
		return fmt.Errorf("creating env %q: %w", name, err)
	}
	return nil
}

// CreateEnvFromFile builds an environment from an environment.yml, under
// the given name regardless of the name the file declares.
func (m *Manager) CreateEnvFromFile(ctx context.Context, name, file string) error {
	args := []string{"env", "create", "-f", file, "-n", name}
	if _, err := m.run.Run(ctx, shell.Command{Name: m.bin, Args: args}); err != nil {
		return fmt.Errorf("creating env %q from %s: %w", name, file, err)
	}
	return nil
}

// RemoveEnv deletes an environment and everything installed in it.
func (m *Manager) RemoveEnv(ctx context.Context, name string) error {
	args := []string{"env", "remove", "-n", name, "-y"}
	if _, err := m.run.Run(ctx, shell.Command{Name: m.bin, Args: args}); err != nil {
		return fmt.Errorf("removing env %q: %w", name, err)
	}
	return nil
}

// EnvExists reports whether an environment with the given name is known to
// the installation.
func (m *Manager) EnvExists(ctx context.Context, name string) (bool, error) {
	envs, err := m.envs(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range envs {
		if filepath.Base(p) == name {
			return true, nil
		}
	}
	return false, nil
}

// Python returns the interpreter path inside an environment.
func (m *Manager) Python(ctx context.Context, name string) (string, error) {
	envs, err := m.envs(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range envs {
		if filepath.Base(p) == name {
			return filepath.Join(p, "bin", "python"), nil
		}
	}
	return "", fmt.Errorf("env %q not found", name)
}

// envs lists the environment prefixes the installation knows about.
func (m *Manager) envs(ctx context.Context) ([]string, error) {
	res, err := m.run.Run(ctx, shell.Command{Name: m.bin, Args: []string{"env", "list", "--json"}})
	if err != nil {
		return nil, fmt.Errorf("listing envs: %w", err)
	}

	var listing struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &listing); err != nil {
		return nil, fmt.Errorf("parsing env listing: %w", err)
	}
	return listing.Envs, nil
}

// RunIn executes a command inside an environment, in the given working
// directory.
func (m *Manager) RunIn(ctx context.Context, env, dir string, argv ...string) (*shell.Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command for env %q", env)
	}
	args := append([]string{"run", "--no-capture-output", "-n", env, "--"}, argv...)
	return m.run.Run(ctx, shell.Command{Name: m.bin, Args: args, Dir: dir})
}

// ProbeVersion imports a module inside an environment and reads its
// __version__ attribute. Fallback for trees whose version never appears in
// a file extraction can reach.
func (m *Manager) ProbeVersion(ctx context.Context, env, module string) (string, error) {
	code := fmt.Sprintf("import %s; print(getattr(%s, '__version__', ''))", module, module)
	res, err := m.RunIn(ctx, env, "", "python", "-c", code)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
