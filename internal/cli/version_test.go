package cli

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v, c, d string) {
	t.Helper()
	oldVersion, oldCommit, oldDate := version, commit, date
	SetVersionInfo(v, c, d)
	t.Cleanup(func() {
		version, commit, date = oldVersion, oldCommit, oldDate
		versionShort = false
	})
}

func TestVersionOutput(t *testing.T) {
	withVersion(t, "1.2.3", "abc1234", "2026-01-08T12:00:00Z")

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)
	versionShort = false
	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	assert.Contains(t, out, "bealink v1.2.3")
	assert.Contains(t, out, "commit: abc1234")
	assert.Contains(t, out, "built: 2026-01-08T12:00:00Z")
	assert.Contains(t, out, "go: "+runtime.Version())
	assert.Contains(t, out, "os/arch: "+runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionOutput_Short(t *testing.T) {
	withVersion(t, "1.2.3", "abc1234", "today")

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)
	versionShort = true
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "1.2.3\n", buf.String())
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"dev", "dev"},
		{"1.0.0", "v1.0.0"},
		{"v1.0.0", "v1.0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in))
	}
}

func TestGetVersion(t *testing.T) {
	withVersion(t, "2.0.0", "x", "y")
	require.Equal(t, "2.0.0", GetVersion())
}
