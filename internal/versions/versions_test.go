package versions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskbed/internal/config"
	"github.com/vk/taskbed/internal/instance"
)

// mapResolver resolves versions from a fixed table and fails on demand.
type mapResolver struct {
	versions map[string]string
	failOn   string
}

func (r *mapResolver) Resolve(ctx context.Context, inst *instance.Instance) (string, error) {
	if inst.ID == r.failOn {
		return "", errors.New("host unreachable")
	}
	return r.versions[inst.ID], nil
}

func writeDataset(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunWritesResolvedInstancesOnly(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := t.TempDir()
	input := writeDataset(t, dir, "astropy-tasks.json",
		`[{"instance_id": "astropy-1", "repo": "astropy/astropy", "base_commit": "aaa"},
		  {"instance_id": "astropy-2", "repo": "astropy/astropy", "base_commit": "bbb"},
		  {"instance_id": "astropy-3", "repo": "astropy/astropy", "base_commit": "ccc"}]`)
	resolver := &mapResolver{
		versions: map[string]string{"astropy-1": "5.1", "astropy-3": "5.2"},
		failOn:   "astropy-2",
	}
	cfg := &config.Versions{InstancesPath: input, OutputDir: filepath.Join(dir, "out"), NumWorkers: 2}

	// Act
	outputs, err := Run(context.Background(), cfg, resolver)

	// Assert
	require.NoError(t, err, "an unresolvable instance must not fail the run")
	require.Len(t, outputs, 1)
	assert.Equal(t, filepath.Join(dir, "out", "astropy-tasks_versions.json"), outputs[0])

	written, err := instance.Load(outputs[0])
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, "astropy-1", written[0].ID)
	assert.Equal(t, "5.1", written[0].Version)
	assert.Equal(t, "astropy-3", written[1].ID)
	assert.Equal(t, "5.2", written[1].Version)
}

func TestRunCollapsesChainedExtensions(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := t.TempDir()
	input := writeDataset(t, dir, "flask-tasks.jsonl.all",
		`{"instance_id": "flask-1", "repo": "pallets/flask", "base_commit": "aaa"}`)
	resolver := &mapResolver{versions: map[string]string{"flask-1": "2.0"}}
	cfg := &config.Versions{InstancesPath: input, OutputDir: dir, NumWorkers: 1}

	// Act
	outputs, err := Run(context.Background(), cfg, resolver)

	// Assert
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, filepath.Join(dir, "flask-tasks_versions.json"), outputs[0])
}

func TestRunBatchContinuesPastFailures(t *testing.T) {
	t.Parallel()

	// Arrange
	tasks := t.TempDir()
	writeDataset(t, tasks, "a-tasks.json", `[{"instance_id": "a-1", "repo": "o/a", "base_commit": "x"}]`)
	writeDataset(t, tasks, "broken.json", `{{{`)
	writeDataset(t, tasks, "z-tasks.json", `[{"instance_id": "z-1", "repo": "o/z", "base_commit": "y"}]`)
	writeDataset(t, tasks, "README.md", "not a dataset")
	resolver := &mapResolver{versions: map[string]string{"a-1": "1.0", "z-1": "9.9"}}
	out := t.TempDir()
	cfg := &config.Versions{PathTasks: tasks, OutputDir: out, NumWorkers: 1}

	// Act
	outputs, err := Run(context.Background(), cfg, resolver)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
	require.Len(t, outputs, 2, "the batch must continue past the broken file")
	assert.FileExists(t, filepath.Join(out, "a-tasks_versions.json"))
	assert.FileExists(t, filepath.Join(out, "z-tasks_versions.json"))
}

func TestRunEmptyTaskDirectory(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg := &config.Versions{PathTasks: t.TempDir(), OutputDir: t.TempDir(), NumWorkers: 1}

	// Act
	outputs, err := Run(context.Background(), cfg, &mapResolver{})

	// Assert
	require.NoError(t, err)
	assert.Empty(t, outputs)
}
