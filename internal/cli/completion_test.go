package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCompletion(t *testing.T, shell string) string {
	t.Helper()
	var buf bytes.Buffer
	completionCmd.SetOut(&buf)
	t.Cleanup(func() { completionCmd.SetOut(nil) })

	require.NoError(t, completionCmd.RunE(completionCmd, []string{shell}))
	return buf.String()
}

func TestCompletion_Bash(t *testing.T) {
	out := runCompletion(t, "bash")
	assert.Contains(t, out, "# bash completion for sshscre")
	assert.Contains(t, out, "__start_sshscre")
}

func TestCompletion_Zsh(t *testing.T) {
	out := runCompletion(t, "zsh")
	assert.Contains(t, out, "#compdef sshscre")
}

func TestCompletion_Fish(t *testing.T) {
	out := runCompletion(t, "fish")
	assert.Contains(t, out, "complete -c sshscre")
}

func TestCompletion_PowerShell(t *testing.T) {
	out := runCompletion(t, "powershell")
	assert.Contains(t, out, "sshscre")
}

func TestCompletion_UnknownShell(t *testing.T) {
	err := completionCmd.RunE(completionCmd, []string{"tcsh"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown shell: tcsh")
}
