package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/discovery"
	disctesting "github.com/rileyhilliard/bealink/internal/discovery/testing"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_ResolvesAndProbes(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	h.resolver.set("office-pc", "10.0.0.7")

	h.start(t)
	v := h.settle(t, d.ID)

	assert.Equal(t, "10.0.0.7", v.ResolvedIP)
	assert.Equal(t, 1, v.Attempts)
	assert.False(t, v.Resolving)
	assert.True(t, v.Health.Online)
	assert.Equal(t, []string{"office-pc"}, h.resolver.Calls())
}

func TestStart_LiteralAddressSkipsResolution(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Media", Hostname: "192.168.1.50"})

	h.start(t)
	v := h.settle(t, d.ID)

	assert.Empty(t, h.resolver.Calls())
	assert.Equal(t, "192.168.1.50", v.Address())
	assert.True(t, v.Health.Online)
}

func TestStart_Twice(t *testing.T) {
	h := newHarness(t, testOptions())
	h.start(t)

	err := h.c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDevice))
}

func TestResolveFailure_PostsNotice(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})

	h.start(t)
	v := h.settle(t, d.ID)

	assert.Empty(t, v.ResolvedIP)
	assert.Contains(t, v.ResolveErr, "office-pc")
	assert.False(t, v.Health.Online)
	assert.Contains(t, messages(drain(h.c)), "Could not resolve hostname: office-pc")
}

func TestResolveDevice_AtMostOneInFlight(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	release := h.resolver.hold()
	defer release()

	h.start(t)
	require.Eventually(t, func() bool { return h.resolver.Active() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.False(t, h.c.ResolveDevice(d.ID), "a second request while one is pending is a no-op")
	}
	assert.True(t, h.c.Resolving(d.ID))
	v, _ := h.c.View(d.ID)
	assert.True(t, v.Resolving)

	h.resolver.set("office-pc", "10.0.0.7")
	release()
	v = h.settle(t, d.ID)

	assert.Equal(t, "10.0.0.7", v.ResolvedIP)
	assert.Len(t, h.resolver.Calls(), 1)
	assert.False(t, h.c.Resolving(d.ID))
}

func TestResolveDevice_ResolvedDeviceIsNoop(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	h.resolver.set("office-pc", "10.0.0.7")

	h.start(t)
	h.settle(t, d.ID)

	assert.False(t, h.c.ResolveDevice(d.ID))
	assert.False(t, h.c.ResolveDevice("missing"))
}

func TestReresolve_DropsCachedAddressAndLooksUpAgain(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	lit := h.seed(t, device.Device{Name: "Lab", Hostname: "10.0.0.9"})
	h.resolver.set("office-pc", "10.0.0.7")

	h.start(t)
	v := h.settle(t, d.ID)
	require.Equal(t, "10.0.0.7", v.ResolvedIP)

	h.resolver.set("office-pc", "10.0.0.8")
	release := h.resolver.hold()
	defer release()
	require.True(t, h.c.Reresolve(d.ID))
	assert.False(t, h.c.Reresolve(d.ID), "one resolution at a time")
	v, _ = h.c.View(d.ID)
	assert.Empty(t, v.ResolvedIP, "cached address is dropped up front")
	assert.True(t, v.Resolving)

	release()
	v = h.settle(t, d.ID)

	assert.Equal(t, "10.0.0.8", v.ResolvedIP)
	assert.Len(t, h.resolver.Calls(), 2)
	assert.False(t, h.c.Reresolve(lit.ID), "address literals are never looked up")
	assert.False(t, h.c.Reresolve("missing"))
}

func TestHostnameChange_CancelsAndReresolves(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	release := h.resolver.hold()

	h.start(t)
	require.Eventually(t, func() bool { return h.resolver.Active() == 1 }, time.Second, time.Millisecond)

	in := device.FromDevice(d)
	in.Hostname = "office-laptop"
	_, err := h.c.AddOrUpdateDevice(context.Background(), in)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.resolver.Canceled()) == 1 && len(h.resolver.Calls()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"office-pc"}, h.resolver.Canceled())
	assert.Equal(t, "office-laptop", h.resolver.Calls()[1])

	h.resolver.set("office-laptop", "10.0.0.8")
	release()
	v := h.settle(t, d.ID)
	assert.Equal(t, "10.0.0.8", v.ResolvedIP)
	assert.Equal(t, "office-laptop", v.Device.Hostname)
}

func TestHostnameChange_ToLiteralProbesAtOnce(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	h.resolver.set("office-pc", "10.0.0.7")

	h.start(t)
	h.settle(t, d.ID)

	in := device.FromDevice(d)
	in.Hostname = "10.0.0.9"
	_, err := h.c.AddOrUpdateDevice(context.Background(), in)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, _ := h.c.View(d.ID)
		return v.Device.Hostname == "10.0.0.9" && v.Health.Online && !v.Resolving
	}, 2*time.Second, 5*time.Millisecond)

	v, _ := h.c.View(d.ID)
	assert.Empty(t, v.ResolvedIP, "cached address is dropped with the old hostname")
	assert.Equal(t, "10.0.0.9", v.Address())
}

func TestDeleteDevice_CancelsResolution(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	release := h.resolver.hold()
	defer release()

	h.start(t)
	require.Eventually(t, func() bool { return h.resolver.Active() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.c.DeleteDevice(context.Background(), d.ID))

	require.Eventually(t, func() bool { return h.resolver.Active() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"office-pc"}, h.resolver.Canceled())
	assert.False(t, h.c.Resolving(d.ID))
	require.Eventually(t, func() bool { return len(h.c.Views()) == 0 }, time.Second, time.Millisecond)
	assert.Contains(t, messages(drain(h.c)), "Device Office deleted")
}

func TestRetryLoop_ResolvesLater(t *testing.T) {
	opts := testOptions()
	opts.RetryInterval = 30 * time.Millisecond
	h := newHarness(t, opts)
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})

	h.start(t)
	v := h.settle(t, d.ID)
	require.Empty(t, v.ResolvedIP)

	h.resolver.set("office-pc", "10.0.0.7")
	require.Eventually(t, func() bool {
		v, _ := h.c.View(d.ID)
		return v.ResolvedIP == "10.0.0.7" && v.Health.Online
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, len(h.resolver.Calls()), 2)
}

func TestRetryLoop_Disabled(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})

	h.start(t)
	h.settle(t, d.ID)
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, h.resolver.Calls(), 1)
}

func TestClose_StopsDiscoveryAndReleasesLock(t *testing.T) {
	h := newHarness(t, testOptions())
	h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	h.seed(t, device.Device{Name: "Laptop", Hostname: "laptop"})

	mlock := lock.NewRefCounted(lock.Hooks{})
	browser := disctesting.NewFakeBrowser()
	resolver := discovery.NewResolver(discovery.Options{Timeout: time.Minute}, mlock,
		func() (discovery.Browser, error) { return browser.Open(), nil }, nil)
	c := New(h.repo, resolver, h.agent, h.waker, testOptions(), nil)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return mlock.Held() == 2 }, time.Second, time.Millisecond)

	c.Close()

	assert.Equal(t, 0, mlock.Held())
	assert.Equal(t, 0, browser.Active())
	assert.False(t, c.ResolveDevice("anything"))
}

func TestClose_Idempotent(t *testing.T) {
	h := newHarness(t, testOptions())
	h.start(t)

	assert.NotPanics(t, func() {
		h.c.Close()
		h.c.Close()
	})

	unstarted := New(h.repo, h.resolver, h.agent, h.waker, testOptions(), nil)
	assert.NotPanics(t, unstarted.Close)
}

func TestWaitSettled_UnknownAndCanceled(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})
	release := h.resolver.hold()
	defer release()
	h.start(t)

	err := h.c.WaitSettled(context.Background(), "missing")
	assert.True(t, errors.IsCode(err, errors.ErrDevice))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.c.WaitSettled(ctx, d.ID), context.DeadlineExceeded)
}

func TestAddOrUpdateDevice(t *testing.T) {
	h := newHarness(t, testOptions())
	h.start(t)
	ctx := context.Background()

	added, err := h.c.AddOrUpdateDevice(ctx, device.Input{Hostname: "192.168.1.50", MAC: "aa-bb-cc-11-22-33"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "192.168.1.50", added.Name)
	assert.Equal(t, "AABBCC112233", added.MAC)

	require.Eventually(t, func() bool {
		_, ok := h.c.View(added.ID)
		return ok
	}, time.Second, time.Millisecond)

	in := device.FromDevice(added)
	in.Name = "Media"
	updated, err := h.c.AddOrUpdateDevice(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, added.ID, updated.ID)

	_, err = h.c.AddOrUpdateDevice(ctx, device.Input{Hostname: "192.168.1.50"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = h.c.AddOrUpdateDevice(ctx, device.Input{MAC: "nope"})
	require.Error(t, err)

	msgs := messages(drain(h.c))
	assert.Contains(t, msgs, "Device added: 192.168.1.50")
	assert.Contains(t, msgs, "Device updated: Media")
	assert.Contains(t, msgs, "A device with hostname 192.168.1.50 already exists")
	assert.Contains(t, msgs, "Invalid MAC address format: nope")
}

func TestDeleteDevice_Unknown(t *testing.T) {
	h := newHarness(t, testOptions())
	h.start(t)

	err := h.c.DeleteDevice(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDevice))
}

func TestFind(t *testing.T) {
	h := newHarness(t, testOptions())
	d := h.seed(t, device.Device{Name: "Office", Hostname: "office-pc"})

	got, err := h.c.Find(context.Background(), "office")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = h.c.Find(context.Background(), "garage")
	assert.True(t, errors.IsCode(err, errors.ErrDevice))
}
