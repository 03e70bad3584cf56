// Package coordinator owns the live view of every device. It keeps the view
// collection in step with the persisted device list, resolves hostnames in
// the background, runs the health monitor and dispatches user commands.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/health"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/state"
)

// Repository is the persisted device collection.
type Repository interface {
	List(ctx context.Context) ([]device.Device, error)
	Insert(ctx context.Context, d device.Device) (device.Device, error)
	Update(ctx context.Context, d device.Device) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (<-chan []device.Device, func(), error)
}

// Resolver turns a hostname into an address.
type Resolver interface {
	Resolve(ctx context.Context, hostname string, timeout time.Duration) (string, error)
}

// Commander talks to the agent running on a device.
type Commander interface {
	Ping(ctx context.Context, ip string) (time.Duration, error)
	Sleep(ctx context.Context, ip string) (string, error)
	Shutdown(ctx context.Context, ip string) (string, error)
	ToggleMonitor(ctx context.Context, ip string) (string, error)
	PushClipboard(ctx context.Context, ip, content string) (string, error)
	PullClipboard(ctx context.Context, ip string) (string, error)
}

// Waker sends a Wake-on-LAN packet.
type Waker interface {
	Send(ctx context.Context, macAddr, broadcast string) error
}

// Options tunes background work.
type Options struct {
	// ResolveTimeout bounds one resolution; zero uses the resolver default.
	ResolveTimeout time.Duration
	// RetryInterval re-resolves unresolved hostnames; zero disables retries.
	RetryInterval time.Duration
	Health        health.Options
	// Broadcast is the wake target setting: empty, "auto", or a comma list.
	Broadcast string
}

// task is one in-flight resolution.
type task struct {
	hostname string
	cancel   context.CancelFunc
}

// Coordinator is constructed once per process with its collaborators.
type Coordinator struct {
	repo     Repository
	resolver Resolver
	agent    Commander
	waker    Waker
	opts     Options
	log      logger.Logger

	state   *state.Store
	monitor *health.Monitor

	mu       sync.Mutex
	inflight map[string]*task
	ctx      context.Context
	cancel   context.CancelFunc
	unsub    func()
	started  bool
	closed   bool
	tasks    sync.WaitGroup
}

// New creates a coordinator. Nothing runs until Start.
func New(repo Repository, resolver Resolver, agent Commander, waker Waker, opts Options, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Noop()
	}
	st := state.NewStore(log)
	return &Coordinator{
		repo:     repo,
		resolver: resolver,
		agent:    agent,
		waker:    waker,
		opts:     opts,
		log:      log,
		state:    st,
		monitor:  health.New(agent, st, opts.Health, log),
		inflight: make(map[string]*task),
	}
}

// Start loads the device list, starts resolving every hostname that needs
// it, and launches the health monitor, the device watcher and the retry
// loop. The first device list is applied before Start returns.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New(errors.ErrDevice, "Coordinator already started", "")
	}
	ctx, cancel := context.WithCancel(ctx)
	updates, unsub, err := c.repo.Subscribe(ctx)
	if err != nil {
		c.mu.Unlock()
		cancel()
		return err
	}
	c.ctx = ctx
	c.cancel = cancel
	c.unsub = unsub
	c.started = true
	c.tasks.Add(1)
	c.mu.Unlock()

	select {
	case devices, ok := <-updates:
		if ok {
			c.apply(ctx, devices)
		}
	case <-ctx.Done():
	}

	go c.watchDevices(ctx, updates)

	c.spawn(func() { c.monitor.Run(ctx) })
	if c.opts.RetryInterval > 0 {
		c.spawn(func() { c.retryLoop(ctx) })
	}
	return nil
}

// Close cancels every background task and waits for each to clean up,
// including stopping discovery sessions and releasing the multicast lock.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.started || c.closed {
		c.closed = true
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel, unsub := c.cancel, c.unsub
	c.mu.Unlock()

	cancel()
	unsub()
	c.tasks.Wait()
}

// spawn runs fn as a tracked task unless the coordinator is closing.
func (c *Coordinator) spawn(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn()
	}()
	return true
}

func (c *Coordinator) watchDevices(ctx context.Context, updates <-chan []device.Device) {
	defer c.tasks.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case devices, ok := <-updates:
			if !ok {
				return
			}
			c.apply(ctx, devices)
		}
	}
}

// apply reconciles the view collection with devices and adjusts resolution
// work to match. New or re-addressed devices that need no resolution are
// probed right away instead of waiting for the next health cycle.
func (c *Coordinator) apply(ctx context.Context, devices []device.Device) {
	diff := c.state.Reconcile(devices)
	if len(diff.Added)+len(diff.HostnameChanged)+len(diff.Removed) > 0 {
		c.log.Debug("coordinator: %d added, %d hostname changed, %d removed",
			len(diff.Added), len(diff.HostnameChanged), len(diff.Removed))
	}

	for _, id := range diff.Removed {
		c.cancelResolve(id)
	}
	for _, id := range diff.HostnameChanged {
		c.cancelResolve(id)
		if !c.ResolveDevice(id) {
			c.probe(ctx, id)
		}
	}
	for _, id := range diff.Added {
		if !c.ResolveDevice(id) {
			c.probe(ctx, id)
		}
	}
}

func (c *Coordinator) probe(ctx context.Context, id string) {
	c.spawn(func() {
		if v, ok := c.state.Get(id); ok {
			c.monitor.ProbeOne(ctx, v)
		}
	})
}

func (c *Coordinator) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, v := range c.state.Snapshot() {
			if v.NeedsResolution() && !v.Resolving {
				c.ResolveDevice(v.Device.ID)
			}
		}
	}
}

// ResolveDevice starts a background resolution of the device's hostname.
// It returns false without doing anything when the device needs no
// resolution or one is already in flight.
func (c *Coordinator) ResolveDevice(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.closed {
		return false
	}
	if _, busy := c.inflight[id]; busy {
		return false
	}
	v, ok := c.state.Get(id)
	if !ok || !v.NeedsResolution() {
		return false
	}
	c.startResolveLocked(id, v)
	return true
}

// Reresolve drops the device's cached address and looks its hostname up
// again. It returns false when the device is unknown, has no hostname to
// look up, or already has a resolution in flight.
func (c *Coordinator) Reresolve(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.closed {
		return false
	}
	if _, busy := c.inflight[id]; busy {
		return false
	}
	v, ok := c.state.Get(id)
	if !ok || v.Device.Hostname == "" || device.IsIPv4Literal(v.Device.Hostname) {
		return false
	}
	if v.ResolvedIP != "" {
		c.state.ClearResolved(id)
		c.log.Debug("coordinator: dropped cached address %s for %s", v.ResolvedIP, v.Device.Hostname)
	}
	c.startResolveLocked(id, v)
	return true
}

// startResolveLocked launches the resolution task. c.mu must be held.
func (c *Coordinator) startResolveLocked(id string, v state.View) {
	ctx, cancel := context.WithCancel(c.ctx)
	t := &task{hostname: v.Device.Hostname, cancel: cancel}
	c.inflight[id] = t
	c.state.SetResolving(id, true)

	c.tasks.Add(1)
	go c.resolve(ctx, id, t)
}

// cancelResolve stops the device's in-flight resolution, if any. The
// abandoned task no longer owns the device's resolving flag.
func (c *Coordinator) cancelResolve(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.inflight[id]
	if !ok {
		return
	}
	t.cancel()
	delete(c.inflight, id)
	c.state.SetResolving(id, false)
}

func (c *Coordinator) resolve(ctx context.Context, id string, t *task) {
	defer c.tasks.Done()
	defer t.cancel()
	defer c.finish(id, t)

	ip, err := c.resolver.Resolve(ctx, t.hostname, c.opts.ResolveTimeout)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		c.log.Debug("coordinator: resolve %s failed: %s", t.hostname, errors.Message(err))
		if c.state.SetResolveFailed(id, t.hostname, errors.Message(err)) {
			c.state.Error(id, "Could not resolve hostname: "+t.hostname)
		}
	} else if c.state.SetResolved(id, t.hostname, ip) {
		c.log.Info("coordinator: %s resolved to %s", t.hostname, ip)
	}

	if v, ok := c.state.Get(id); ok {
		c.monitor.ProbeOne(ctx, v)
	}
}

// finish clears the resolving flag if t still owns the device.
func (c *Coordinator) finish(id string, t *task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] != t {
		return
	}
	delete(c.inflight, id)
	c.state.SetResolving(id, false)
}

// Resolving reports whether a resolution is in flight for the device.
func (c *Coordinator) Resolving(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

// WaitSettled blocks until the device has no resolution in flight, has been
// through at least one resolution attempt when it needs one, and has a
// health record no older than its last attempt.
func (c *Coordinator) WaitSettled(ctx context.Context, id string) error {
	changes, cancel := c.state.Subscribe()
	defer cancel()

	for {
		v, ok := c.state.Get(id)
		if !ok {
			return unknownDevice(id)
		}
		if settled(v) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
}

func settled(v state.View) bool {
	if v.Resolving {
		return false
	}
	if v.Attempts == 0 && v.NeedsResolution() {
		return false
	}
	checked := v.Health.CheckedAt
	return !checked.IsZero() && !checked.Before(v.AttemptedAt)
}

// Views returns a snapshot of every device view, sorted by name.
func (c *Coordinator) Views() []state.View {
	return c.state.Snapshot()
}

// View returns one device view.
func (c *Coordinator) View(id string) (state.View, bool) {
	return c.state.Get(id)
}

// Changes returns a coalescing change signal and its cancel func.
func (c *Coordinator) Changes() (<-chan struct{}, func()) {
	return c.state.Subscribe()
}

// Notices is the single-consumer queue of user-facing messages.
func (c *Coordinator) Notices() <-chan state.Notice {
	return c.state.Notices()
}

// Find looks a device up by id, display name or id prefix.
func (c *Coordinator) Find(ctx context.Context, ref string) (device.Device, error) {
	devices, err := c.repo.List(ctx)
	if err != nil {
		return device.Device{}, err
	}
	return device.Match(devices, ref)
}

// AddOrUpdateDevice validates in against the stored devices and saves it.
// An empty in.ID adds a new device.
func (c *Coordinator) AddOrUpdateDevice(ctx context.Context, in device.Input) (device.Device, error) {
	existing, err := c.repo.List(ctx)
	if err != nil {
		return device.Device{}, err
	}

	d, err := device.Prepare(in, existing)
	if err != nil {
		c.state.Error(in.ID, errors.Message(err))
		return device.Device{}, err
	}

	if d.ID == "" {
		d, err = c.repo.Insert(ctx, d)
		if err != nil {
			c.state.Error("", errors.Message(err))
			return device.Device{}, err
		}
		c.state.Info(d.ID, "Device added: "+d.DisplayName())
		return d, nil
	}

	if err := c.repo.Update(ctx, d); err != nil {
		c.state.Error(d.ID, errors.Message(err))
		return device.Device{}, err
	}
	c.state.Info(d.ID, "Device updated: "+d.DisplayName())
	return d, nil
}

// DeleteDevice removes a device. Its view and any in-flight resolution go
// away when the store publishes the new list.
func (c *Coordinator) DeleteDevice(ctx context.Context, id string) error {
	name := id
	if v, ok := c.state.Get(id); ok {
		name = v.Device.DisplayName()
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		c.state.Error(id, errors.Message(err))
		return err
	}
	c.state.Info(id, "Device "+name+" deleted")
	return nil
}

func unknownDevice(id string) error {
	return errors.New(errors.ErrDevice, "Unknown device "+id, "Run 'bealink device list' to see configured devices")
}
