// Package testing provides test doubles for the discovery package.
package testing

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// FakeInstance is an advertised service instance.
type FakeInstance struct {
	Name string
	Host string
	Port int
	IPv4 []net.IP
	IPv6 []net.IP
	// Delay before the instance shows up in a browse.
	Delay time.Duration
}

// FakeBrowser is a fake mDNS network with canned instances. Open returns a
// client satisfying discovery.Browser; FakeBrowser itself also satisfies it
// through one shared client. Sessions close their entries channel once ctx
// is done, and like a zeroconf resolver a client is shut down when any of
// its sessions ends: later sessions on it start but never see an entry.
type FakeBrowser struct {
	mu sync.Mutex

	Instances []FakeInstance

	// Configuration
	BrowseErr    error
	LookupErr    error
	LookupDelay  time.Duration
	NoLookupAddr bool

	// Call tracking
	BrowseCalls []string
	LookupCalls []string

	active    int
	maxActive int
	opened    int
	shared    *FakeClient
	wg        sync.WaitGroup
}

// FakeClient is one client opened on a FakeBrowser.
type FakeClient struct {
	net *FakeBrowser

	mu     sync.Mutex
	closed bool
}

// Open returns a fresh client, like zeroconf.NewResolver.
func (f *FakeBrowser) Open() *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &FakeClient{net: f}
}

// Opened returns the number of clients handed out by Open.
func (f *FakeBrowser) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeBrowser) sharedClient() *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shared == nil {
		f.shared = &FakeClient{net: f}
	}
	return f.shared
}

// Browse runs a browse on the shared client.
func (f *FakeBrowser) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return f.sharedClient().Browse(ctx, service, domain, entries)
}

// Lookup runs a lookup on the shared client.
func (f *FakeBrowser) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return f.sharedClient().Lookup(ctx, instance, service, domain, entries)
}

// Closed reports whether a session on c has ended.
func (c *FakeClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeClient) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// NewFakeBrowser creates a browser advertising the given instances.
func NewFakeBrowser(instances ...FakeInstance) *FakeBrowser {
	return &FakeBrowser{Instances: instances}
}

func (f *FakeBrowser) entry(inst FakeInstance, service, domain string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(inst.Name, service, domain)
	e.HostName = inst.Host
	e.Port = inst.Port
	e.AddrIPv4 = inst.IPv4
	e.AddrIPv6 = inst.IPv6
	return e
}

func (f *FakeBrowser) start() {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	f.wg.Add(1)
}

func (f *FakeBrowser) stop(c *FakeClient, entries chan<- *zeroconf.ServiceEntry) {
	c.shutdown()
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	f.wg.Done()
	close(entries)
}

// Browse streams every instance after its delay.
func (c *FakeClient) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	f := c.net
	dead := c.Closed()
	f.mu.Lock()
	f.BrowseCalls = append(f.BrowseCalls, service)
	instances := append([]FakeInstance(nil), f.Instances...)
	err := f.BrowseErr
	f.mu.Unlock()

	if err != nil {
		return err
	}

	f.start()
	go func() {
		defer f.stop(c, entries)
		if dead {
			<-ctx.Done()
			return
		}
		began := time.Now()
		for _, inst := range instances {
			if wait := inst.Delay - time.Since(began); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
			}
			select {
			case entries <- f.entry(inst, service, domain):
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return nil
}

// Lookup answers for an instance by exact name (case-insensitive).
func (c *FakeClient) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	f := c.net
	dead := c.Closed()
	f.mu.Lock()
	f.LookupCalls = append(f.LookupCalls, instance)
	instances := append([]FakeInstance(nil), f.Instances...)
	err := f.LookupErr
	delay := f.LookupDelay
	noAddr := f.NoLookupAddr
	f.mu.Unlock()

	if err != nil {
		return err
	}

	f.start()
	go func() {
		defer f.stop(c, entries)
		if dead {
			<-ctx.Done()
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		for _, inst := range instances {
			if !strings.EqualFold(inst.Name, instance) || noAddr {
				continue
			}
			select {
			case entries <- f.entry(inst, service, domain):
			case <-ctx.Done():
				return
			}
			break
		}
		<-ctx.Done()
	}()
	return nil
}

// Active returns the number of sessions still running.
func (f *FakeBrowser) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// MaxActive returns the peak number of concurrent sessions.
func (f *FakeBrowser) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// BrowseCount returns the number of Browse calls.
func (f *FakeBrowser) BrowseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.BrowseCalls)
}

// LookupCount returns the number of Lookup calls.
func (f *FakeBrowser) LookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.LookupCalls)
}

// Wait blocks until every session has closed.
func (f *FakeBrowser) Wait() {
	f.wg.Wait()
}
