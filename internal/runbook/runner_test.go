package runbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskbed/internal/config"
)

// fakeExecutor records the configurations it receives and hands back fixed
// artifact paths.
type fakeExecutor struct {
	calls       []string
	versions    []*config.Versions
	validates   []*config.Validate
	versionsErr error
}

func (f *fakeExecutor) RunVersions(ctx context.Context, cfg *config.Versions) (string, error) {
	f.calls = append(f.calls, "versions")
	f.versions = append(f.versions, cfg)
	if f.versionsErr != nil {
		return "", f.versionsErr
	}
	return "out/astropy_versions.json", nil
}

func (f *fakeExecutor) RunValidate(ctx context.Context, cfg *config.Validate) (string, error) {
	f.calls = append(f.calls, "validate")
	f.validates = append(f.validates, cfg)
	return "logs/report.json", nil
}

func TestExecuteResolvesReferencesBetweenRuns(t *testing.T) {
	t.Parallel()

	// Arrange
	book, err := loadString(t, `
run "validate" "astropy" {
  instances_path = run.versions.astropy.output_file
  log_dir        = "logs"
  temp_dir       = "/tmp/astropy"
}

run "versions" "astropy" {
  instances_path   = "tasks/astropy.json"
  retrieval_method = "github"
  output_dir       = "out"
  num_workers      = 4
}
`)
	require.NoError(t, err)
	exec := &fakeExecutor{}

	// Act
	execErr := Execute(context.Background(), book, exec)

	// Assert
	require.NoError(t, execErr)
	assert.Equal(t, []string{"versions", "validate"}, exec.calls)

	require.Len(t, exec.versions, 1)
	assert.Equal(t, "tasks/astropy.json", exec.versions[0].InstancesPath)
	assert.Equal(t, 4, exec.versions[0].NumWorkers)

	require.Len(t, exec.validates, 1)
	assert.Equal(t, "out/astropy_versions.json", exec.validates[0].InstancesPath,
		"the reference must resolve to the artifact the versions run produced")
	assert.Equal(t, config.DefaultTestCmd, exec.validates[0].TestCmd,
		"runbook configurations pass through the same defaulting as CLI ones")
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	// Arrange
	book, err := loadString(t, `
run "versions" "astropy" {
  instances_path   = "tasks/astropy.json"
  retrieval_method = "github"
  output_dir       = "out"
}

run "validate" "astropy" {
  instances_path = run.versions.astropy.output_file
  log_dir        = "logs"
  temp_dir       = "/tmp/astropy"
}
`)
	require.NoError(t, err)
	exec := &fakeExecutor{versionsErr: errors.New("host unreachable")}

	// Act
	execErr := Execute(context.Background(), book, exec)

	// Assert
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), `run "versions.astropy"`)
	assert.Equal(t, []string{"versions"}, exec.calls, "dependents of a failed run must not start")
}

func TestExecuteRejectsBadConfiguration(t *testing.T) {
	t.Parallel()

	// Arrange: retrieval_method build without a testbed.
	book, err := loadString(t, `
run "versions" "astropy" {
  instances_path   = "tasks/astropy.json"
  retrieval_method = "build"
  output_dir       = "out"
}
`)
	require.NoError(t, err)
	exec := &fakeExecutor{}

	// Act
	execErr := Execute(context.Background(), book, exec)

	// Assert
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "testbed and path_conda")
	assert.Empty(t, exec.calls)
}

func TestExecuteRejectsUnknownResultFields(t *testing.T) {
	t.Parallel()

	// Arrange
	book, err := loadString(t, `
run "versions" "astropy" {
  instances_path   = "tasks/astropy.json"
  retrieval_method = "github"
  output_dir       = "out"
}

run "validate" "astropy" {
  instances_path = run.versions.astropy.no_such_field
  log_dir        = "logs"
  temp_dir       = "/tmp/astropy"
}
`)
	require.NoError(t, err)
	exec := &fakeExecutor{}

	// Act
	execErr := Execute(context.Background(), book, exec)

	// Assert
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), `decoding run "validate.astropy"`)
}
