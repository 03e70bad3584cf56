package lock

import (
	"fmt"
	"time"
)

// HolderInfo describes one outstanding acquisition.
type HolderInfo struct {
	Owner    string    `json:"owner"`
	Acquired time.Time `json:"acquired"`
}

// Age returns how long the holder has had the lock.
func (i HolderInfo) Age() time.Duration {
	return time.Since(i.Acquired)
}

// String returns a human-readable description of the holder.
func (i HolderInfo) String() string {
	return fmt.Sprintf("%s (held %s)", i.Owner, i.Age().Round(time.Millisecond))
}
