// Package state holds the per-device view the coordinator publishes: the
// device record merged with its resolved address, health and action flag.
package state

import (
	"time"

	"github.com/rileyhilliard/bealink/internal/device"
)

// Health is the outcome of the most recent probe. Latency is only set when
// Online is true.
type Health struct {
	Online    bool
	Latency   time.Duration
	CheckedAt time.Time
}

// Offline is the health of a device that could not be probed.
func Offline(at time.Time) Health {
	return Health{CheckedAt: at}
}

// normalized zeroes the latency of an offline result and stamps a missing
// check time.
func (h Health) normalized() Health {
	if !h.Online {
		h.Latency = 0
	}
	if h.CheckedAt.IsZero() {
		h.CheckedAt = time.Now()
	}
	return h
}

// View is one device's merged state. Values returned by Store are copies.
type View struct {
	Device device.Device

	ResolvedIP string
	ResolvedAt time.Time
	Resolving  bool
	// ResolveErr is the last failure message, cleared on success.
	ResolveErr string
	// Attempts counts finished resolutions; AttemptedAt is when the last one ended.
	Attempts    int
	AttemptedAt time.Time

	Health Health

	// Action names the command in flight, empty when idle.
	Action string
}

// ActionInProgress reports whether a command is running against the device.
func (v View) ActionInProgress() bool {
	return v.Action != ""
}

// Address is the cached resolved IP, else the hostname when it is a literal
// IPv4 address, else empty.
func (v View) Address() string {
	if v.ResolvedIP != "" {
		return v.ResolvedIP
	}
	if device.IsIPv4Literal(v.Device.Hostname) {
		return v.Device.Hostname
	}
	return ""
}

// NeedsResolution reports whether the device has a hostname that only
// discovery can turn into an address.
func (v View) NeedsResolution() bool {
	h := v.Device.Hostname
	return h != "" && v.ResolvedIP == "" && !device.IsIPv4Literal(h)
}
