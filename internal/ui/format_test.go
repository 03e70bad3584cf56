package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", FormatDuration(50*time.Millisecond))
	assert.Equal(t, "1.2s", FormatDuration(1200*time.Millisecond))
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{300 * time.Microsecond, "<1ms"},
		{time.Millisecond, "1ms"},
		{42 * time.Millisecond, "42ms"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLatency(tt.in))
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "never", FormatAge(time.Time{}, now))
	assert.Equal(t, "just now", FormatAge(now.Add(-200*time.Millisecond), now))
	assert.Equal(t, "3s ago", FormatAge(now.Add(-3*time.Second), now))
	assert.Equal(t, "2m ago", FormatAge(now.Add(-150*time.Second), now))
	assert.Equal(t, "1h ago", FormatAge(now.Add(-90*time.Minute), now))
}
