package discovery

import (
	"context"

	"github.com/grandcat/zeroconf"
)

// Browser is the subset of *zeroconf.Resolver used here. Both calls return
// immediately and stream entries until ctx is done, then close entries.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// BrowserFactory opens an independent discovery session.
type BrowserFactory func() (Browser, error)

// ZeroconfBrowser opens a fresh zeroconf resolver bound to all multicast
// capable interfaces.
func ZeroconfBrowser() (Browser, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return r, nil
}
