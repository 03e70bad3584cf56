// Package testing provides test doubles for the lock package.
package testing

import (
	"sync"

	"github.com/rileyhilliard/bealink/internal/lock"
)

// AcquireCall records a call to Acquire.
type AcquireCall struct {
	Owner   string
	Success bool
}

// FakeLock is a recording Multicast lock.
type FakeLock struct {
	mu sync.Mutex

	// Configuration
	ShouldFail bool
	FailError  error

	// Call tracking
	AcquireCalls []AcquireCall
	Releases     int

	held int
}

// NewFakeLock creates a fake lock that succeeds by default.
func NewFakeLock() *FakeLock {
	return &FakeLock{}
}

// Acquire records the call and increments the count unless configured to fail.
func (f *FakeLock) Acquire(owner string) (lock.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ShouldFail {
		f.AcquireCalls = append(f.AcquireCalls, AcquireCall{Owner: owner})
		if f.FailError != nil {
			return nil, f.FailError
		}
		return nil, lock.ErrUnavailable
	}

	f.AcquireCalls = append(f.AcquireCalls, AcquireCall{Owner: owner, Success: true})
	f.held++
	return &fakeHandle{lock: f}, nil
}

// SetFail configures the fake to fail acquisition.
func (f *FakeLock) SetFail(err error) *FakeLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShouldFail = true
	f.FailError = err
	return f
}

// Held returns the current reference count.
func (f *FakeLock) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

// AcquireCount returns how many times Acquire was called.
func (f *FakeLock) AcquireCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.AcquireCalls)
}

// ReleaseCount returns how many handles were released.
func (f *FakeLock) ReleaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Releases
}

type fakeHandle struct {
	lock *FakeLock
	once sync.Once
}

func (h *fakeHandle) Release() {
	h.once.Do(func() {
		h.lock.mu.Lock()
		defer h.lock.mu.Unlock()
		h.lock.held--
		h.lock.Releases++
	})
}
