// Package health runs the periodic liveness probe across every device.
//
// Each cycle works on a point-in-time snapshot. Devices with an address get
// one bounded probe each, run concurrently; devices without one are marked
// offline. Every result is merged on its own as soon as it arrives.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/state"
)

const (
	DefaultInterval      = 3 * time.Second
	DefaultTimeout       = 2800 * time.Millisecond
	DefaultMaxConcurrent = 64
)

// Prober checks one address. agent.Client satisfies it.
type Prober interface {
	Ping(ctx context.Context, ip string) (time.Duration, error)
}

// Target is where results are read from and merged into. *state.Store
// satisfies it.
type Target interface {
	Snapshot() []state.View
	SetProbeResult(id, addr string, h state.Health) bool
}

// Options configure a Monitor. Zero values take the defaults above.
type Options struct {
	Interval      time.Duration
	Timeout       time.Duration
	MaxConcurrent int
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	Probed      int
	Online      int
	Unaddressed int
	Duration    time.Duration
}

// Monitor owns the probe loop.
type Monitor struct {
	prober   Prober
	target   Target
	interval time.Duration
	timeout  time.Duration
	sem      chan struct{}
	log      logger.Logger

	cycles atomic.Uint64
}

// New creates a monitor.
func New(prober Prober, target Target, opts Options, log logger.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Monitor{
		prober:   prober,
		target:   target,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		sem:      make(chan struct{}, opts.MaxConcurrent),
		log:      log,
	}
}

// Run probes immediately and then once per interval until ctx is done.
// Cycles never overlap; a cycle that overruns the interval delays the next.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		res := m.Cycle(ctx)
		m.log.Debug("health: cycle %d probed %d, %d online, %d without address (%s)",
			m.cycles.Load(), res.Probed, res.Online, res.Unaddressed, res.Duration.Round(time.Millisecond))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Cycles returns the number of completed cycles.
func (m *Monitor) Cycles() uint64 {
	return m.cycles.Load()
}

// Cycle runs one probe pass and waits for every probe to merge.
func (m *Monitor) Cycle(ctx context.Context) CycleResult {
	start := time.Now()
	views := m.target.Snapshot()

	var (
		wg     sync.WaitGroup
		probed atomic.Int64
		online atomic.Int64
		res    CycleResult
	)

	for _, v := range views {
		addr := v.Address()
		if addr == "" {
			res.Unaddressed++
			m.target.SetProbeResult(v.Device.ID, "", state.Offline(time.Now()))
			continue
		}

		wg.Add(1)
		go func(id, addr string) {
			defer wg.Done()

			select {
			case m.sem <- struct{}{}:
				defer func() { <-m.sem }()
			case <-ctx.Done():
				return
			}

			h := m.probe(ctx, addr)
			probed.Add(1)
			if h.Online {
				online.Add(1)
			}
			m.target.SetProbeResult(id, addr, h)
		}(v.Device.ID, addr)
	}

	wg.Wait()
	m.cycles.Add(1)

	res.Probed = int(probed.Load())
	res.Online = int(online.Load())
	res.Duration = time.Since(start)
	return res
}

// ProbeOne probes a single view outside the cycle and merges the result.
func (m *Monitor) ProbeOne(ctx context.Context, v state.View) state.Health {
	addr := v.Address()
	if addr == "" {
		h := state.Offline(time.Now())
		m.target.SetProbeResult(v.Device.ID, "", h)
		return h
	}
	h := m.probe(ctx, addr)
	m.target.SetProbeResult(v.Device.ID, addr, h)
	return h
}

func (m *Monitor) probe(ctx context.Context, addr string) state.Health {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	_, err := m.prober.Ping(pctx, addr)
	elapsed := time.Since(start)

	if err != nil {
		m.log.Debug("health: %s offline: %v", addr, err)
		return state.Offline(time.Now())
	}
	return state.Health{Online: true, Latency: elapsed, CheckedAt: time.Now()}
}
