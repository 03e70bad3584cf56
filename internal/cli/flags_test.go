package cli

import (
	"testing"
	"time"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"seconds", "5s", 5 * time.Second, false},
		{"millis", "500ms", 500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"garbage", "soon", 0, true},
		{"bare number", "5", 0, true},
		{"zero", "0s", 0, true},
		{"negative", "-1s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeout(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newFlagCmd(flags *DeviceFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	AddDeviceFlags(cmd, flags)
	return cmd
}

func TestAnyDeviceFlagSet(t *testing.T) {
	var flags DeviceFlags
	cmd := newFlagCmd(&flags)
	require.NoError(t, cmd.ParseFlags(nil))
	assert.False(t, anyDeviceFlagSet(cmd))

	cmd = newFlagCmd(&flags)
	require.NoError(t, cmd.ParseFlags([]string{"--mac", "aa-bb-cc-11-22-33"}))
	assert.True(t, anyDeviceFlagSet(cmd))
	assert.Equal(t, "aa-bb-cc-11-22-33", flags.MAC)
}

func TestApplyDeviceFlags_OnlyChanged(t *testing.T) {
	var flags DeviceFlags
	cmd := newFlagCmd(&flags)
	require.NoError(t, cmd.ParseFlags([]string{"--host", "office-laptop", "--mac", ""}))

	in := device.Input{ID: "id-1", Name: "Office", Hostname: "office-pc", MAC: "AABBCC112233"}
	got := applyDeviceFlags(cmd, in, flags)

	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Office", got.Name)
	assert.Equal(t, "office-laptop", got.Hostname)
	assert.Empty(t, got.MAC)
}
