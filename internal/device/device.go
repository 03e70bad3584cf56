// Package device defines the persisted device record and the validation
// applied when a user adds or edits one.
package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/mac"
	"github.com/rileyhilliard/bealink/internal/util"
)

// UnknownName is shown for a device with no name, hostname or MAC.
const UnknownName = "Unknown device"

// Device is a machine the user controls. Hostname may be an mDNS instance
// name or a literal IPv4 address; MAC is stored normalized (12 hex digits).
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Hostname string `json:"hostname,omitempty"`
	MAC      string `json:"mac,omitempty"`
}

// DisplayName falls back from name to hostname to formatted MAC.
func (d Device) DisplayName() string {
	if n := strings.TrimSpace(d.Name); n != "" {
		return n
	}
	if h := strings.TrimSpace(d.Hostname); h != "" {
		return h
	}
	if d.MAC != "" {
		return mac.Display(d.MAC)
	}
	return UnknownName
}

// HasMAC reports whether the stored MAC is usable for wake.
func (d Device) HasMAC() bool {
	return mac.IsValid(d.MAC)
}

var ipv4Re = regexp.MustCompile(`^(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}$`)

// IsIPv4Literal reports whether s is a dotted-quad IPv4 address.
func IsIPv4Literal(s string) bool {
	return ipv4Re.MatchString(s)
}

// Input is what the user typed into the add/edit form.
type Input struct {
	ID       string
	Name     string
	Hostname string
	MAC      string
}

// Prepare validates input against the existing devices and returns the
// record to persist. An empty input.ID means a new device.
func Prepare(in Input, existing []Device) (Device, error) {
	hostname := strings.TrimSpace(in.Hostname)
	rawMAC := strings.TrimSpace(in.MAC)

	if hostname == "" && rawMAC == "" {
		return Device{}, errors.New(errors.ErrValidation,
			"Hostname or MAC address required",
			"Provide --host, --mac, or both")
	}

	var norm string
	if rawMAC != "" {
		var ok bool
		norm, ok = mac.Normalize(rawMAC)
		if !ok {
			return Device{}, errors.New(errors.ErrValidation,
				"Invalid MAC address format: "+rawMAC,
				"Use six hex byte pairs, e.g. AA:BB:CC:11:22:33")
		}
	}

	if hostname != "" {
		for _, d := range existing {
			if d.ID != in.ID && strings.EqualFold(d.Hostname, hostname) {
				return Device{}, errors.New(errors.ErrValidation,
					"A device with hostname "+hostname+" already exists",
					"Edit "+d.DisplayName()+" instead of adding a second entry")
			}
		}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		if hostname != "" {
			name = hostname
		} else {
			name = mac.Display(norm)
		}
	}

	return Device{
		ID:       in.ID,
		Name:     name,
		Hostname: hostname,
		MAC:      norm,
	}, nil
}

// FromDevice builds an edit form prefilled with d.
func FromDevice(d Device) Input {
	return Input{
		ID:       d.ID,
		Name:     d.Name,
		Hostname: d.Hostname,
		MAC:      mac.Display(d.MAC),
	}
}

// minPrefix is the shortest id prefix Match accepts.
const minPrefix = 4

// Match picks the device ref names: an exact id, then a display name
// (case-insensitive), then a unique id prefix.
func Match(devices []Device, ref string) (Device, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Device{}, errors.New(errors.ErrValidation, "Device name or id required", "")
	}

	for _, d := range devices {
		if d.ID == ref {
			return d, nil
		}
	}

	var byName []Device
	for _, d := range devices {
		if strings.EqualFold(d.DisplayName(), ref) {
			byName = append(byName, d)
		}
	}
	switch len(byName) {
	case 1:
		return byName[0], nil
	case 0:
	default:
		return Device{}, ambiguous(ref, byName)
	}

	if len(ref) >= minPrefix {
		var byPrefix []Device
		for _, d := range devices {
			if strings.HasPrefix(d.ID, ref) {
				byPrefix = append(byPrefix, d)
			}
		}
		switch len(byPrefix) {
		case 1:
			return byPrefix[0], nil
		case 0:
		default:
			return Device{}, ambiguous(ref, byPrefix)
		}
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.DisplayName())
	}
	suggestion := "Run 'bealink device list' to see configured devices"
	if similar := util.SuggestSimilar(ref, names, 3); len(similar) > 0 {
		suggestion = "Did you mean: " + util.JoinOrNone(similar) + "?"
	}
	return Device{}, errors.New(errors.ErrDevice, "No device named "+ref, suggestion)
}

func ambiguous(ref string, matches []Device) error {
	ids := make([]string, 0, len(matches))
	for _, d := range matches {
		ids = append(ids, d.ID)
	}
	return errors.New(errors.ErrDevice,
		fmt.Sprintf("%q matches %d %s", ref, len(matches), util.Pluralize(len(matches), "device", "devices")),
		"Use one of the ids: "+util.JoinOrNone(ids))
}
