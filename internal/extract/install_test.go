package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallCommands(t *testing.T) {
	t.Parallel()

	cmds, ok := InstallCommands("requirements.txt", "requirements-dev.txt")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"pip", "install", "-r", "requirements-dev.txt"}}, cmds)

	cmds, ok = InstallCommands("setup.py", "setup.py")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"pip", "install", "-e", "."}}, cmds)

	cmds, ok = InstallCommands("requirements.in", "requirements.in")
	require.True(t, ok)
	assert.Len(t, cmds, 2, "pip-compile runs before pip-sync")

	_, ok = InstallCommands("Makefile", "Makefile")
	assert.False(t, ok)
}
