package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message on one line until stopped
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration
	noColor  bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner; interval defaults to 100ms
func NewSpinner(w io.Writer, message string, interval time.Duration, noColor bool) *Spinner {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Spinner{w: w, message: message, interval: interval, noColor: noColor}
}

// Start begins animating. Calling Start on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate(s.stop, s.done)
}

// Stop halts the animation and clears the line. Safe to call repeatedly.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	fmt.Fprint(s.w, "\r\033[K")
}

func (s *Spinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	c := paint(s.noColor, color.FgCyan)
	for i := 0; ; i = (i + 1) % len(frames) {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Fprintf(s.w, "\r%s %s", frames[i], s.message)
		}
	}
}

// Spin runs fn behind a spinner and reports how it went
func Spin(w io.Writer, message string, noColor bool, fn func() error) error {
	s := NewSpinner(w, message, 0, noColor)
	s.Start()
	err := fn()
	s.Stop()
	if err != nil {
		Message{Level: LevelError, Title: message + " failed", NoColor: noColor}.Write(w)
		return err
	}
	Success(w, noColor, "%s", message)
	return nil
}
