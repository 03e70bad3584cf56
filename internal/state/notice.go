package state

import "time"

// Level classifies a notice for display.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notice is a one-shot user-facing message.
type Notice struct {
	Level    Level
	DeviceID string
	Message  string
	At       time.Time
}

// NoticeBuffer is the capacity of the notice queue.
const NoticeBuffer = 64
