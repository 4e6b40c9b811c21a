package shell

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskbed/internal/testutil"
)

func TestRunner_CapturesStdout(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, nil)

	res, err := r.Run(context.Background(), Command{Name: "echo", Args: []string{"hello"}})
	require.NoError(t, err)

	assert.Equal(t, "hello\n", res.Stdout)
	assert.Zero(t, res.ExitCode)
}

func TestRunner_FailureCarriesStderr(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, nil)

	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken pipe >&2; exit 3"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunner_ExtraEnvReachesCommand(t *testing.T) {
	t.Parallel()

	r := NewRunner(Environ(map[string]string{"TASKBED_TEST_VAR": "from-base"}), nil)

	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo $TASKBED_TEST_VAR $TASKBED_CMD_VAR"},
		Env:  []string{"TASKBED_CMD_VAR=from-cmd"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-base from-cmd\n", res.Stdout)
}

func TestRunner_WorkingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRunner(nil, nil)

	res, err := r.Run(context.Background(), Command{Name: "pwd", Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, strings.TrimSpace(res.Stdout))
}

func TestRunner_TimeoutInterrupts(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, nil)

	_, err := r.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"10"},
		Timeout: 50 * time.Millisecond,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, nil)

	_, err := r.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunner_TranscriptRecordsInvocations(t *testing.T) {
	t.Parallel()

	buf := &testutil.SafeBuffer{}
	r := NewRunner(nil, buf)

	_, err := r.Run(context.Background(), Command{Name: "echo", Args: []string{"first"}})
	require.NoError(t, err)
	_, _ = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 1"}})

	log := buf.String()
	assert.Contains(t, log, "$ echo first")
	assert.Contains(t, log, "first\n")
	assert.Contains(t, log, "exit 0 in")
	assert.Contains(t, log, "$ sh -c exit 1")
	assert.Contains(t, log, "exit 1 in")
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "git", Command{Name: "git"}.String())
	assert.Equal(t, "git checkout -f abc", Command{Name: "git", Args: []string{"checkout", "-f", "abc"}}.String())
}
