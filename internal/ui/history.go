package ui

import (
	"sync"
	"time"

	"github.com/rileyhilliard/bealink/internal/state"
)

// DefaultHistorySize is the number of probe samples kept per device.
const DefaultHistorySize = 40

// LatencyHistory keeps recent probe results per device for sparklines.
// A sample is recorded only when the device's health check time moves, so
// redraws between probes do not duplicate points.
type LatencyHistory struct {
	mu      sync.RWMutex
	size    int
	devices map[string]*deviceHistory
}

type deviceHistory struct {
	samples *ringBuffer
	last    time.Time
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewLatencyHistory creates a history keeping size samples per device.
func NewLatencyHistory(size int) *LatencyHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &LatencyHistory{size: size, devices: make(map[string]*deviceHistory)}
}

// Observe records v's latest probe if it is new. Offline results are stored
// as -1.
func (h *LatencyHistory) Observe(v state.View) {
	checked := v.Health.CheckedAt
	if checked.IsZero() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dh, ok := h.devices[v.Device.ID]
	if !ok {
		dh = &deviceHistory{samples: newRingBuffer(h.size)}
		h.devices[v.Device.ID] = dh
	}
	if !checked.After(dh.last) {
		return
	}
	dh.last = checked

	sample := -1.0
	if v.Health.Online {
		sample = float64(v.Health.Latency) / float64(time.Millisecond)
	}
	dh.samples.push(sample)
}

// Last returns up to count samples for id, oldest first.
func (h *LatencyHistory) Last(id string, count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dh, ok := h.devices[id]
	if !ok {
		return nil
	}
	return dh.samples.getLast(count)
}

// Prune drops devices not in keep.
func (h *LatencyHistory) Prune(keep []state.View) {
	ids := make(map[string]bool, len(keep))
	for _, v := range keep {
		ids[v.Device.ID] = true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.devices {
		if !ids[id] {
			delete(h.devices, id)
		}
	}
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer) getLast(count int) []float64 {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]float64, count)
	// head is the next write position; the newest value is at head-1.
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}
