package state

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/logger"
)

// Store is the shared view collection. Each row has its own mutex, so
// writers to different devices never block each other, and writers to the
// same device merge field by field.
type Store struct {
	mu   sync.RWMutex
	rows map[string]*row

	version atomic.Uint64

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int

	notices chan Notice
	log     logger.Logger
}

type row struct {
	mu      sync.Mutex
	view    View
	removed bool
}

// NewStore creates an empty store.
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.Noop()
	}
	return &Store{
		rows:    make(map[string]*row),
		subs:    make(map[int]chan struct{}),
		notices: make(chan Notice, NoticeBuffer),
		log:     log,
	}
}

// Diff is what Reconcile changed.
type Diff struct {
	Added           []string
	HostnameChanged []string
	Removed         []string
}

// Reconcile makes the store match devices. Existing rows keep their
// resolved address, health and action; a row whose hostname changed loses
// its cached address.
func (s *Store) Reconcile(devices []device.Device) Diff {
	var diff Diff

	s.mu.Lock()
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		seen[d.ID] = true
		r, ok := s.rows[d.ID]
		if !ok {
			s.rows[d.ID] = &row{view: View{Device: d}}
			diff.Added = append(diff.Added, d.ID)
			continue
		}

		r.mu.Lock()
		if !strings.EqualFold(strings.TrimSpace(r.view.Device.Hostname), strings.TrimSpace(d.Hostname)) {
			r.view.ResolvedIP = ""
			r.view.ResolvedAt = time.Time{}
			r.view.ResolveErr = ""
			r.view.Attempts = 0
			r.view.AttemptedAt = time.Time{}
			diff.HostnameChanged = append(diff.HostnameChanged, d.ID)
		}
		r.view.Device = d
		r.mu.Unlock()
	}

	for id, r := range s.rows {
		if seen[id] {
			continue
		}
		r.mu.Lock()
		r.removed = true
		r.mu.Unlock()
		delete(s.rows, id)
		diff.Removed = append(diff.Removed, id)
	}
	s.mu.Unlock()

	sort.Strings(diff.Added)
	sort.Strings(diff.HostnameChanged)
	sort.Strings(diff.Removed)

	s.changed()
	return diff
}

// update applies fn to one row under its lock. It returns false when the
// device is unknown or was removed concurrently.
func (s *Store) update(id string, fn func(v *View) bool) bool {
	s.mu.RLock()
	r, ok := s.rows[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	if r.removed {
		r.mu.Unlock()
		return false
	}
	applied := fn(&r.view)
	r.mu.Unlock()

	if applied {
		s.changed()
	}
	return applied
}

// SetResolving marks a resolution as started or finished.
func (s *Store) SetResolving(id string, resolving bool) bool {
	return s.update(id, func(v *View) bool {
		v.Resolving = resolving
		return true
	})
}

// SetResolved caches ip for a device, but only while its hostname is still
// hostname. A result for a hostname the user has since edited is dropped.
func (s *Store) SetResolved(id, hostname, ip string) bool {
	return s.update(id, func(v *View) bool {
		if !strings.EqualFold(v.Device.Hostname, hostname) {
			return false
		}
		now := time.Now()
		v.ResolvedIP = ip
		v.ResolvedAt = now
		v.ResolveErr = ""
		v.Attempts++
		v.AttemptedAt = now
		return true
	})
}

// SetResolveFailed records a failed resolution for hostname.
func (s *Store) SetResolveFailed(id, hostname, reason string) bool {
	return s.update(id, func(v *View) bool {
		if !strings.EqualFold(v.Device.Hostname, hostname) {
			return false
		}
		v.ResolveErr = reason
		v.Attempts++
		v.AttemptedAt = time.Now()
		return true
	})
}

// ClearResolved drops the cached address.
func (s *Store) ClearResolved(id string) bool {
	return s.update(id, func(v *View) bool {
		v.ResolvedIP = ""
		v.ResolvedAt = time.Time{}
		return true
	})
}

// setHealth replaces the health fields only.
func (s *Store) setHealth(id string, h Health) bool {
	h = h.normalized()
	return s.update(id, func(v *View) bool {
		v.Health = h
		return true
	})
}

// SetProbeResult merges a probe of addr, dropping it when the device's
// address has changed since the probe was issued. addr is empty for a
// device that had no address.
func (s *Store) SetProbeResult(id, addr string, h Health) bool {
	h = h.normalized()
	return s.update(id, func(v *View) bool {
		if v.Address() != addr {
			return false
		}
		v.Health = h
		return true
	})
}

// SetAction sets the in-flight command name; empty clears it.
func (s *Store) SetAction(id, action string) bool {
	return s.update(id, func(v *View) bool {
		v.Action = action
		return true
	})
}

// TryStartAction sets action only if no other command is in flight.
func (s *Store) TryStartAction(id, action string) bool {
	return s.update(id, func(v *View) bool {
		if v.Action != "" {
			return false
		}
		v.Action = action
		return true
	})
}

// Get returns a copy of one row.
func (s *Store) Get(id string) (View, bool) {
	s.mu.RLock()
	r, ok := s.rows[id]
	s.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return View{}, false
	}
	return r.view, true
}

// Snapshot returns copies of every row sorted by display name, then id.
func (s *Store) Snapshot() []View {
	s.mu.RLock()
	rows := make([]*row, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	s.mu.RUnlock()

	out := make([]View, 0, len(rows))
	for _, r := range rows {
		r.mu.Lock()
		if !r.removed {
			out = append(out, r.view)
		}
		r.mu.Unlock()
	}

	SortViews(out)
	return out
}

// SortViews orders views by display name (case-insensitive), then id.
func SortViews(views []View) {
	sort.SliceStable(views, func(i, j int) bool {
		a := strings.ToLower(views[i].Device.DisplayName())
		b := strings.ToLower(views[j].Device.DisplayName())
		if a != b {
			return a < b
		}
		return views[i].Device.ID < views[j].Device.ID
	})
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Subscribe returns a channel that receives a signal after changes. Signals
// coalesce: a slow reader sees one pending signal, then reads Snapshot.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) changed() {
	s.version.Add(1)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Post queues a notice without blocking. When the queue is full the notice
// is dropped and logged.
func (s *Store) Post(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	select {
	case s.notices <- n:
	default:
		s.log.Warn("notice queue full, dropped: %s", n.Message)
	}
}

// Info posts an informational notice.
func (s *Store) Info(deviceID, msg string) {
	s.Post(Notice{Level: LevelInfo, DeviceID: deviceID, Message: msg})
}

// Error posts an error notice.
func (s *Store) Error(deviceID, msg string) {
	s.Post(Notice{Level: LevelError, DeviceID: deviceID, Message: msg})
}

// Notices is the single-consumer notice queue.
func (s *Store) Notices() <-chan Notice {
	return s.notices
}
