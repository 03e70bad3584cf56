// Package discovery maps logical hostnames to IP addresses by browsing for
// the agent's DNS-SD service over mDNS.
package discovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/lock"
	"github.com/rileyhilliard/bealink/internal/logger"
)

const (
	DefaultService = "_http._tcp"
	DefaultDomain  = "local."
	DefaultTimeout = 7 * time.Second

	// drainGrace bounds how long teardown waits for a session to close its
	// entries channel after cancellation.
	drainGrace = 500 * time.Millisecond
)

// Options configure a Resolver. Zero values take the defaults above.
type Options struct {
	Service string
	Domain  string
	Timeout time.Duration
}

// Resolver resolves hostnames through discovery sessions. Each Resolve call
// opens its own session, so concurrent calls do not share state.
type Resolver struct {
	service    string
	domain     string
	timeout    time.Duration
	lock       lock.Multicast
	newBrowser BrowserFactory
	log        logger.Logger
	grace      time.Duration
}

// NewResolver creates a resolver. A nil factory uses ZeroconfBrowser.
func NewResolver(opts Options, mlock lock.Multicast, newBrowser BrowserFactory, log logger.Logger) *Resolver {
	if opts.Service == "" {
		opts.Service = DefaultService
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if mlock == nil {
		mlock = lock.NewRefCounted(lock.Hooks{})
	}
	if newBrowser == nil {
		newBrowser = ZeroconfBrowser
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Resolver{
		service:    opts.Service,
		domain:     opts.Domain,
		timeout:    opts.Timeout,
		lock:       mlock,
		newBrowser: newBrowser,
		log:        log,
		grace:      drainGrace,
	}
}

// TrimHostname strips surrounding space, a trailing dot and a ".local"
// suffix.
func TrimHostname(hostname string) string {
	h := strings.TrimSpace(hostname)
	h = strings.TrimSuffix(h, ".")
	if len(h) >= len(".local") && strings.EqualFold(h[len(h)-len(".local"):], ".local") {
		h = h[:len(h)-len(".local")]
	}
	return strings.TrimSuffix(h, ".")
}

// Resolve returns the address of the service instance named hostname.
// A dotted-quad literal is returned unchanged without touching the network.
// timeout <= 0 uses the configured default and bounds browse and lookup
// together. The multicast lock is released and the session stopped before
// Resolve returns, on every path.
func (r *Resolver) Resolve(ctx context.Context, hostname string, timeout time.Duration) (string, error) {
	target := TrimHostname(hostname)
	if target == "" {
		return "", errors.New(errors.ErrValidation, "Hostname is empty", "")
	}
	if device.IsIPv4Literal(target) {
		return target, nil
	}
	if timeout <= 0 {
		timeout = r.timeout
	}

	handle, err := r.lock.Acquire("resolve " + target)
	if err != nil {
		return "", r.fail(target, fmt.Errorf("%w: %v", ErrDiscoveryStart, err))
	}
	defer handle.Release()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, err := r.newBrowser()
	if err != nil {
		return "", r.fail(target, fmt.Errorf("%w: %v", ErrDiscoveryStart, err))
	}

	start := time.Now()
	instance, err := r.browse(ctx, b, target)
	if err != nil {
		return "", r.fail(target, err)
	}
	r.log.Debug("discovery: %q matched instance %q after %s", target, instance, time.Since(start).Round(time.Millisecond))

	// A zeroconf client closes its sockets when a session ends, so the
	// lookup runs on a client of its own.
	lb, err := r.newBrowser()
	if err != nil {
		return "", r.fail(target, fmt.Errorf("%w: %v", ErrDiscoveryStart, err))
	}
	ip, err := r.lookup(ctx, lb, instance)
	if err != nil {
		return "", r.fail(target, err)
	}
	r.log.Debug("discovery: %q resolved to %s in %s", target, ip, time.Since(start).Round(time.Millisecond))
	return ip, nil
}

// browse returns the first instance whose name matches target, exactly or
// as a prefix, ignoring case. Browsing stops at the first match.
func (r *Resolver) browse(ctx context.Context, b Browser, target string) (string, error) {
	bctx, stop := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry, 8)
	defer func() {
		stop()
		r.drain(entries)
	}()

	if err := b.Browse(bctx, r.service, r.domain, entries); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscoveryStart, err)
	}

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return "", sessionEnded(ctx, ErrNotFound)
			}
			if e != nil && matches(e.Instance, target) {
				return e.Instance, nil
			}
		case <-ctx.Done():
			return "", sessionEnded(ctx, ErrNotFound)
		}
	}
}

// lookup resolves one instance to an address, preferring IPv4. There is no
// fallback to other matches; the caller retries the whole resolution.
func (r *Resolver) lookup(ctx context.Context, b Browser, instance string) (string, error) {
	lctx, stop := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry, 4)
	defer func() {
		stop()
		r.drain(entries)
	}()

	if err := b.Lookup(lctx, instance, r.service, r.domain, entries); err != nil {
		return "", fmt.Errorf("%w: lookup %q: %v", ErrNotFound, instance, err)
	}

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return "", sessionEnded(ctx, ErrNotFound)
			}
			if ip := pickAddress(e); ip != "" {
				return ip, nil
			}
		case <-ctx.Done():
			return "", sessionEnded(ctx, ErrNotFound)
		}
	}
}

// drain consumes entries until the session closes the channel, or the
// grace period expires.
func (r *Resolver) drain(entries <-chan *zeroconf.ServiceEntry) {
	timer := time.NewTimer(r.grace)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-entries:
			if !ok {
				return
			}
		case <-timer.C:
			r.log.Debug("discovery: session did not close within %s", r.grace)
			return
		}
	}
}

func (r *Resolver) fail(target string, cause error) error {
	r.log.Debug("discovery: %q: %v", target, cause)
	suggestion := "Check the agent is running on " + target + " and advertising " + r.service
	if stderrors.Is(cause, ErrDiscoveryStart) {
		suggestion = "Check that a multicast-capable network interface is up"
	}
	return errors.WrapWithCode(cause, errors.ErrResolve, "Could not resolve hostname: "+target, suggestion)
}

func sessionEnded(ctx context.Context, otherwise error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return otherwise
}

func matches(instance, target string) bool {
	inst := strings.ToLower(instance)
	t := strings.ToLower(target)
	return inst == t || strings.HasPrefix(inst, t)
}

func pickAddress(e *zeroconf.ServiceEntry) string {
	if e == nil {
		return ""
	}
	if ip := firstIP(e.AddrIPv4); ip != "" {
		return ip
	}
	return firstIP(e.AddrIPv6)
}

func firstIP(ips []net.IP) string {
	for _, ip := range ips {
		if ip != nil && !ip.IsUnspecified() {
			return ip.String()
		}
	}
	return ""
}
