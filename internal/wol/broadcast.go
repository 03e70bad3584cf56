package wol

import (
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// AutoBroadcast is the wake.broadcast setting that targets the directed
// broadcast address of every active IPv4 interface.
const AutoBroadcast = "auto"

// Targets expands a wake.broadcast setting into concrete addresses:
// empty means DefaultBroadcast, "auto" enumerates interfaces (falling back
// to DefaultBroadcast when none qualify), anything else is a comma list.
func Targets(setting string) []string {
	setting = strings.TrimSpace(setting)
	switch {
	case setting == "":
		return []string{DefaultBroadcast}
	case strings.EqualFold(setting, AutoBroadcast):
		addrs, err := InterfaceBroadcasts()
		if err != nil || len(addrs) == 0 {
			return []string{DefaultBroadcast}
		}
		return addrs
	}

	var out []string
	for _, part := range strings.Split(setting, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{DefaultBroadcast}
	}
	return out
}

// InterfaceBroadcasts returns the directed broadcast address of every
// interface that is up, broadcast-capable and not loopback.
func InterfaceBroadcasts() ([]string, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || !hasFlag(iface.Flags, "broadcast") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			bcast, ok := directedBroadcast(a.Addr)
			if !ok || seen[bcast] {
				continue
			}
			seen[bcast] = true
			out = append(out, bcast)
		}
	}
	return out, nil
}

// directedBroadcast computes the broadcast address of an IPv4 CIDR.
func directedBroadcast(cidr string) (string, bool) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", false
	}
	ip4 := ip.To4()
	if ip4 == nil || len(ipnet.Mask) != net.IPv4len {
		return "", false
	}
	ones, _ := ipnet.Mask.Size()
	if ones >= 31 {
		return "", false
	}

	out := make(net.IP, net.IPv4len)
	for i := range ip4 {
		out[i] = ip4[i] | ^ipnet.Mask[i]
	}
	return out.String(), true
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
