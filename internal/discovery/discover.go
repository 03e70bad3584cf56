package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// Instance is one advertised agent seen while browsing.
type Instance struct {
	Name  string
	Host  string
	Port  int
	Addrs []string
}

// Discover browses for the full timeout and returns every instance seen,
// sorted by name. Finding nothing is not an error.
func (r *Resolver) Discover(ctx context.Context, timeout time.Duration) ([]Instance, error) {
	if timeout <= 0 {
		timeout = r.timeout
	}

	handle, err := r.lock.Acquire("discover")
	if err != nil {
		return nil, r.fail("agents", fmt.Errorf("%w: %v", ErrDiscoveryStart, err))
	}
	defer handle.Release()

	b, err := r.newBrowser()
	if err != nil {
		return nil, r.fail("agents", fmt.Errorf("%w: %v", ErrDiscoveryStart, err))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	entries := make(chan *zeroconf.ServiceEntry, 16)
	defer func() {
		cancel()
		r.drain(entries)
	}()

	if err := b.Browse(ctx, r.service, r.domain, entries); err != nil {
		return nil, r.fail("agents", fmt.Errorf("%w: %v", ErrDiscoveryStart, err))
	}

	seen := make(map[string]*Instance)
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return sortedInstances(seen), nil
			}
			merge(seen, e)
		case <-ctx.Done():
			return sortedInstances(seen), nil
		}
	}
}

func merge(seen map[string]*Instance, e *zeroconf.ServiceEntry) {
	if e == nil || e.Instance == "" {
		return
	}
	key := strings.ToLower(e.Instance)
	inst, ok := seen[key]
	if !ok {
		inst = &Instance{Name: e.Instance}
		seen[key] = inst
	}
	if e.HostName != "" {
		inst.Host = strings.TrimSuffix(e.HostName, ".")
	}
	if e.Port != 0 {
		inst.Port = e.Port
	}
	for _, ip := range append(append([]net.IP{}, e.AddrIPv4...), e.AddrIPv6...) {
		addr := ip.String()
		if !contains(inst.Addrs, addr) {
			inst.Addrs = append(inst.Addrs, addr)
		}
	}
}

func sortedInstances(seen map[string]*Instance) []Instance {
	out := make([]Instance, 0, len(seen))
	for _, inst := range seen {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
