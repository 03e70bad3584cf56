package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber answers pings from a table keyed by address.
type fakeProber struct {
	mu       sync.Mutex
	delay    map[string]time.Duration
	fail     map[string]error
	calls    map[string]int
	inflight int
	peak     int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		delay: make(map[string]time.Duration),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (p *fakeProber) Ping(ctx context.Context, ip string) (time.Duration, error) {
	p.mu.Lock()
	p.calls[ip]++
	p.inflight++
	if p.inflight > p.peak {
		p.peak = p.inflight
	}
	delay, err := p.delay[ip], p.fail[ip]
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return delay, nil
}

func (p *fakeProber) callCount(ip string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[ip]
}

func newStore(devs ...device.Device) *state.Store {
	s := state.NewStore(nil)
	s.Reconcile(devs)
	return s
}

func TestCycle_MixedReachability(t *testing.T) {
	s := newStore(
		device.Device{ID: "1", Name: "a", Hostname: "10.0.0.1"},
		device.Device{ID: "2", Name: "b", Hostname: "10.0.0.2"},
		device.Device{ID: "3", Name: "c", Hostname: "10.0.0.3"},
		device.Device{ID: "4", Name: "d", Hostname: "10.0.0.4"},
	)
	p := newFakeProber()
	p.fail["10.0.0.3"] = errors.New("dial tcp 10.0.0.3:8088: connect: connection refused")

	m := New(p, s, Options{}, logger.NewBufferLogger())
	res := m.Cycle(context.Background())

	assert.Equal(t, 4, res.Probed)
	assert.Equal(t, 3, res.Online)
	for _, id := range []string{"1", "2", "4"} {
		v, _ := s.Get(id)
		assert.True(t, v.Health.Online, id)
	}
	v, _ := s.Get("3")
	assert.False(t, v.Health.Online)
	assert.Zero(t, v.Health.Latency)
	assert.Equal(t, uint64(1), m.Cycles())
}

func TestCycle_UsesResolvedAddress(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "office", Hostname: "office-pc"})
	s.SetResolved("1", "office-pc", "192.168.1.50")
	p := newFakeProber()
	p.delay["192.168.1.50"] = 3 * time.Millisecond

	New(p, s, Options{}, nil).Cycle(context.Background())

	assert.Equal(t, 1, p.callCount("192.168.1.50"))
	v, _ := s.Get("1")
	assert.True(t, v.Health.Online)
	assert.GreaterOrEqual(t, v.Health.Latency, 3*time.Millisecond)
}

func TestCycle_NoAddressForcedOffline(t *testing.T) {
	s := newStore(
		device.Device{ID: "1", Name: "office", Hostname: "office-pc"},
		device.Device{ID: "2", Name: "attic", MAC: "AABBCC112233"},
	)
	s.SetProbeResult("1", "", state.Health{Online: true, Latency: time.Millisecond})
	p := newFakeProber()

	res := New(p, s, Options{}, nil).Cycle(context.Background())

	assert.Equal(t, 0, res.Probed)
	assert.Equal(t, 2, res.Unaddressed)
	v, _ := s.Get("1")
	assert.False(t, v.Health.Online)
	assert.Zero(t, v.Health.Latency)
}

func TestCycle_LostAddressGoesOfflineNextCycle(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "office", Hostname: "office-pc"})
	s.SetResolved("1", "office-pc", "192.168.1.50")
	m := New(newFakeProber(), s, Options{}, nil)

	m.Cycle(context.Background())
	v, _ := s.Get("1")
	require.True(t, v.Health.Online)

	s.ClearResolved("1")
	v, _ = s.Get("1")
	assert.True(t, v.Health.Online, "not before the next cycle")

	m.Cycle(context.Background())
	v, _ = s.Get("1")
	assert.False(t, v.Health.Online)
	assert.Zero(t, v.Health.Latency)
}

func TestCycle_SlowProbeDoesNotDelayOthers(t *testing.T) {
	s := newStore(
		device.Device{ID: "fast", Name: "fast", Hostname: "10.0.0.1"},
		device.Device{ID: "slow", Name: "slow", Hostname: "10.0.0.2"},
	)
	p := newFakeProber()
	p.delay["10.0.0.2"] = 500 * time.Millisecond
	m := New(p, s, Options{Timeout: time.Second}, nil)

	done := make(chan CycleResult, 1)
	go func() { done <- m.Cycle(context.Background()) }()

	require.Eventually(t, func() bool {
		v, _ := s.Get("fast")
		return v.Health.Online
	}, 200*time.Millisecond, 5*time.Millisecond)

	slow, _ := s.Get("slow")
	assert.True(t, slow.Health.CheckedAt.IsZero(), "slow probe still running")

	res := <-done
	assert.Equal(t, 2, res.Online)
}

func TestCycle_TimeoutBoundsProbe(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "hung", Hostname: "10.0.0.9"})
	p := newFakeProber()
	p.delay["10.0.0.9"] = time.Hour
	m := New(p, s, Options{Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	m.Cycle(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	v, _ := s.Get("1")
	assert.False(t, v.Health.Online)
}

func TestCycle_MaxConcurrent(t *testing.T) {
	var devs []device.Device
	p := newFakeProber()
	for i := 0; i < 10; i++ {
		ip := "10.0.1." + string(rune('0'+i))
		devs = append(devs, device.Device{ID: ip, Name: ip, Hostname: ip})
		p.delay[ip] = 20 * time.Millisecond
	}
	s := newStore(devs...)

	res := New(p, s, Options{MaxConcurrent: 3}, nil).Cycle(context.Background())

	assert.Equal(t, 10, res.Online)
	assert.LessOrEqual(t, p.peak, 3)
}

func TestCycle_RemovedMidCycle(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "a", Hostname: "10.0.0.1"})
	p := newFakeProber()
	p.delay["10.0.0.1"] = 50 * time.Millisecond
	m := New(p, s, Options{}, nil)

	done := make(chan struct{})
	go func() {
		m.Cycle(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	s.Reconcile(nil)
	<-done

	assert.Equal(t, 0, s.Len())
}

func TestCycle_DropsResultForChangedAddress(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "office", Hostname: "office-pc"})
	s.SetResolved("1", "office-pc", "10.0.0.1")
	p := newFakeProber()
	p.delay["10.0.0.1"] = 50 * time.Millisecond
	m := New(p, s, Options{}, nil)

	done := make(chan struct{})
	go func() {
		m.Cycle(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	s.SetResolved("1", "office-pc", "10.0.0.2")
	<-done

	v, _ := s.Get("1")
	assert.True(t, v.Health.CheckedAt.IsZero(), "result for the old address is dropped")
}

func TestRun_ProbesImmediatelyAndOnInterval(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "a", Hostname: "10.0.0.1"})
	p := newFakeProber()
	m := New(p, s, Options{Interval: 30 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return m.Cycles() >= 1 }, 200*time.Millisecond, time.Millisecond)
	require.Eventually(t, func() bool { return m.Cycles() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestProbeOne(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "a", Hostname: "office-pc"})
	m := New(newFakeProber(), s, Options{}, nil)

	v, _ := s.Get("1")
	h := m.ProbeOne(context.Background(), v)
	assert.False(t, h.Online, "no address yet")

	s.SetResolved("1", "office-pc", "10.0.0.7")
	v, _ = s.Get("1")
	h = m.ProbeOne(context.Background(), v)
	assert.True(t, h.Online)

	v, _ = s.Get("1")
	assert.True(t, v.Health.Online)
}

func TestProbeFailuresLoggedAtDebugOnly(t *testing.T) {
	s := newStore(device.Device{ID: "1", Name: "a", Hostname: "10.0.0.1"})
	p := newFakeProber()
	p.fail["10.0.0.1"] = errors.New("connection refused")
	log := logger.NewBufferLogger()

	New(p, s, Options{}, log).Cycle(context.Background())

	assert.True(t, log.Contains("10.0.0.1 offline"))
	assert.False(t, log.HasLevel("warn"))
	assert.False(t, log.HasLevel("error"))
}
