package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion_Shells(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			completionCmd.SetOut(&buf)
			defer completionCmd.SetOut(nil)

			require.NoError(t, completionCmd.RunE(completionCmd, []string{shell}))
			assert.Contains(t, buf.String(), "bealink")
		})
	}
}

func TestCompletion_RejectsUnknownShell(t *testing.T) {
	err := completionCmd.Args(completionCmd, []string{"tcsh"})
	assert.Error(t, err)
}

func TestCompletion_DeviceCommandsComplete(t *testing.T) {
	for _, c := range []string{"sleep", "shutdown", "display"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		assert.NotNil(t, cmd.ValidArgsFunction, c)
	}
}
