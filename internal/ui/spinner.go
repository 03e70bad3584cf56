package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames are shared by the CLI spinner and the watch dashboard.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// Spinner shows an animated line while a one-shot command waits on the
// network, then replaces it with a final status line.
type Spinner struct {
	mu           sync.Mutex
	label        string
	frame        int
	startTime    time.Time
	stopChan     chan struct{}
	doneChan     chan struct{}
	out          io.Writer
	animate      bool
	running      bool
	lastRendered string
}

// NewSpinner creates a spinner writing to out. When animate is false (not a
// terminal) only the final line is written.
func NewSpinner(out io.Writer, label string, animate bool) *Spinner {
	return &Spinner{label: label, out: out, animate: animate}
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.startTime = time.Now()
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	if !s.animate {
		close(s.doneChan)
		return
	}
	s.render()
	go s.loop()
}

// SetLabel updates the label shown while spinning.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

// Success stops the spinner and prints msg with the success symbol.
func (s *Spinner) Success(msg string) {
	s.finish(SuccessStyle().Render(SymbolSuccess), msg)
}

// Fail stops the spinner and prints msg with the failure symbol.
func (s *Spinner) Fail(msg string) {
	s.finish(ErrorStyle().Render(SymbolFail), msg)
}

// Stop halts the animation and clears the line without a final message.
func (s *Spinner) Stop() {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// Elapsed returns the time since Start.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

func (s *Spinner) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()

	<-done
}

func (s *Spinner) finish(symbol, msg string) {
	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()

	timing := ""
	if !s.startTime.IsZero() {
		timing = " " + MutedStyle().Render(FormatDuration(time.Since(s.startTime)))
	}
	fmt.Fprintf(s.out, "%s %s%s\n", symbol, msg, timing)
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(SpinnerFrames.FPS)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(SpinnerFrames.Frames)
			s.mu.Unlock()
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	style := lipgloss.NewStyle().Foreground(ColorInfo)
	line := fmt.Sprintf("%s %s...", style.Render(SpinnerFrames.Frames[s.frame]), s.label)
	s.clear()
	fmt.Fprint(s.out, "\r"+line)
	s.lastRendered = line
}

// clear blanks the previously rendered line. Callers hold s.mu.
func (s *Spinner) clear() {
	if s.lastRendered == "" {
		return
	}
	width := lipgloss.Width(s.lastRendered)
	fmt.Fprint(s.out, "\r"+strings.Repeat(" ", width)+"\r")
	s.lastRendered = ""
}
