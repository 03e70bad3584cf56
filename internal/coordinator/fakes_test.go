package coordinator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/bealink/internal/agent"
	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/health"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/state"
	"github.com/rileyhilliard/bealink/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu       sync.Mutex
	addrs    map[string]string
	gate     chan struct{}
	calls    []string
	canceled []string
	active   int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{addrs: make(map[string]string)}
}

func (f *fakeResolver) set(hostname, ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs[hostname] = ip
}

// hold makes Resolve block until the returned func is called.
func (f *fakeResolver) hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeResolver) Resolve(ctx context.Context, hostname string, _ time.Duration) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, hostname)
	f.active++
	gate := f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.canceled = append(f.canceled, hostname)
			f.mu.Unlock()
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ip, ok := f.addrs[hostname]; ok {
		return ip, nil
	}
	return "", errors.New(errors.ErrResolve, "Could not resolve hostname: "+hostname, "")
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeResolver) Canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

func (f *fakeResolver) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type agentCall struct {
	Op      string
	IP      string
	Content string
}

type fakeAgent struct {
	mu      sync.Mutex
	offline map[string]bool
	bodies  map[string]string
	errs    map[string]error
	calls   []agentCall
	gate    chan struct{}
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		offline: make(map[string]bool),
		bodies:  make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (f *fakeAgent) setOffline(ip string, off bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline[ip] = off
}

func (f *fakeAgent) reply(op, body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[op] = body
	f.errs[op] = err
}

func (f *fakeAgent) hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeAgent) Ping(_ context.Context, ip string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline[ip] {
		return 0, &agent.RequestError{Kind: agent.KindTransport, Reason: agent.FailRefused, URL: "http://" + ip + ":8088/ping"}
	}
	return time.Millisecond, nil
}

func (f *fakeAgent) run(ctx context.Context, op, ip, content string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, agentCall{Op: op, IP: ip, Content: content})
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[op], f.errs[op]
}

func (f *fakeAgent) Sleep(ctx context.Context, ip string) (string, error) {
	return f.run(ctx, "sleep", ip, "")
}

func (f *fakeAgent) Shutdown(ctx context.Context, ip string) (string, error) {
	return f.run(ctx, "shutdown", ip, "")
}

func (f *fakeAgent) ToggleMonitor(ctx context.Context, ip string) (string, error) {
	return f.run(ctx, "monitor", ip, "")
}

func (f *fakeAgent) PushClipboard(ctx context.Context, ip, content string) (string, error) {
	return f.run(ctx, "clip", ip, content)
}

func (f *fakeAgent) PullClipboard(ctx context.Context, ip string) (string, error) {
	return f.run(ctx, "getclip", ip, "")
}

func (f *fakeAgent) Calls() []agentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agentCall(nil), f.calls...)
}

type wakeCall struct {
	MAC       string
	Broadcast string
}

type fakeWaker struct {
	mu   sync.Mutex
	fail map[string]error
	sent []wakeCall
}

func newFakeWaker() *fakeWaker {
	return &fakeWaker{fail: make(map[string]error)}
}

func (f *fakeWaker) Send(_ context.Context, macAddr, broadcast string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[broadcast]; err != nil {
		return err
	}
	f.sent = append(f.sent, wakeCall{MAC: macAddr, Broadcast: broadcast})
	return nil
}

func (f *fakeWaker) Sent() []wakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wakeCall(nil), f.sent...)
}

type harness struct {
	repo     *store.Repository
	resolver *fakeResolver
	agent    *fakeAgent
	waker    *fakeWaker
	log      *logger.BufferLogger
	c        *Coordinator
}

func testOptions() Options {
	return Options{
		ResolveTimeout: time.Second,
		Health:         health.Options{Interval: time.Hour, Timeout: time.Second},
	}
}

// newHarness builds a coordinator over a temp database and fakes. It is not
// started; seed devices first, then call start.
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	repo, err := store.Open(filepath.Join(t.TempDir(), "devices.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	h := &harness{
		repo:     repo,
		resolver: newFakeResolver(),
		agent:    newFakeAgent(),
		waker:    newFakeWaker(),
		log:      logger.NewBufferLogger(),
	}
	h.c = New(repo, h.resolver, h.agent, h.waker, opts, h.log)
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) seed(t *testing.T, d device.Device) device.Device {
	t.Helper()
	saved, err := h.repo.Insert(context.Background(), d)
	require.NoError(t, err)
	return saved
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.c.Start(context.Background()))
}

func (h *harness) settle(t *testing.T, id string) state.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, h.c.WaitSettled(ctx, id))
	v, ok := h.c.View(id)
	require.True(t, ok)
	return v
}

// drain returns every queued notice without blocking.
func drain(c *Coordinator) []state.Notice {
	var out []state.Notice
	for {
		select {
		case n := <-c.Notices():
			out = append(out, n)
		default:
			return out
		}
	}
}

func messages(notices []state.Notice) []string {
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Message)
	}
	return out
}
