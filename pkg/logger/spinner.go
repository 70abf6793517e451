package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// SpinnerDots are the default spinner frames
var SpinnerDots = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single console line while a blocking step runs. Without
// colour (no terminal, --no-color) it prints nothing until it stops.
type Spinner struct {
	mu       sync.Mutex
	active   bool
	message  string
	frames   []string
	interval time.Duration
	out      io.Writer
	stop     chan struct{}
	done     chan struct{}
}

// NewSpinner creates a spinner writing to the default logger's console
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   SpinnerDots,
		interval: 100 * time.Millisecond,
	}
}

// Start begins the animation; calling it twice has no effect
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	out, noColor := Console()
	if noColor {
		return
	}
	s.active = true
	s.out = out
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.animate()
}

func (s *Spinner) animate() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		msg := s.message
		s.mu.Unlock()
		fmt.Fprintf(s.out, "\r%s %s", paint(false, colorKey, s.frames[i%len(s.frames)]), msg)

		select {
		case <-s.stop:
			fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", len(msg)+4))
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the animation and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	s.mu.Unlock()
	<-s.done
}

// Active reports whether the spinner is animating
func (s *Spinner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// UpdateMessage replaces the text shown next to the spinner
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn behind a spinner and logs its outcome
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()
	err := fn()
	spinner.Stop()

	if err != nil {
		Errorf("%s failed: %v", message, err)
	} else {
		Successf("%s completed", message)
	}
	return err
}
