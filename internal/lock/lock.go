// Package lock implements the reference-counted multicast lock that
// discovery sessions hold while listening for mDNS traffic.
//
// The first acquisition runs the Enable hook and the last release runs the
// Disable hook. Every Acquire returns a Handle whose Release is idempotent,
// so a deferred Release always balances the count.
package lock

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Multicast is the interface discovery depends on.
type Multicast interface {
	Acquire(owner string) (Handle, error)
}

// Handle is one acquisition of a Multicast lock.
type Handle interface {
	Release()
}

// Hooks toggle multicast reception on platforms that gate it. Both are
// optional.
type Hooks struct {
	Enable  func() error
	Disable func()
}

// RefCounted is a Multicast lock that tracks its holders.
type RefCounted struct {
	mu      sync.Mutex
	hooks   Hooks
	nextID  uint64
	holders map[uint64]HolderInfo
}

// NewRefCounted creates an unheld lock.
func NewRefCounted(hooks Hooks) *RefCounted {
	return &RefCounted{
		hooks:   hooks,
		holders: make(map[uint64]HolderInfo),
	}
}

// Acquire increments the reference count. The Enable hook runs on the
// 0 to 1 transition; if it fails the count is left unchanged.
func (l *RefCounted) Acquire(owner string) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.holders) == 0 && l.hooks.Enable != nil {
		if err := l.hooks.Enable(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	l.nextID++
	id := l.nextID
	l.holders[id] = HolderInfo{Owner: owner, Acquired: time.Now()}
	return &handle{lock: l, id: id}, nil
}

func (l *RefCounted) release(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.holders[id]; !ok {
		return
	}
	delete(l.holders, id)
	if len(l.holders) == 0 && l.hooks.Disable != nil {
		l.hooks.Disable()
	}
}

// Held returns the current reference count.
func (l *RefCounted) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders)
}

// Holders lists outstanding acquisitions, oldest first.
func (l *RefCounted) Holders() []HolderInfo {
	l.mu.Lock()
	out := make([]HolderInfo, 0, len(l.holders))
	for _, h := range l.holders {
		out = append(out, h)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Acquired.Before(out[j].Acquired) })
	return out
}

type handle struct {
	lock *RefCounted
	id   uint64
	once sync.Once
}

// Release decrements the count once; later calls do nothing.
func (h *handle) Release() {
	h.once.Do(func() { h.lock.release(h.id) })
}
