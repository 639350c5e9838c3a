package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// BatchProgress reports the progress of a batch one outcome at a time.
// On a terminal it redraws a single bar; otherwise it prints one line per
// package. Observe may be called from the goroutine running the batch.
type BatchProgress struct {
	total  int
	done   int
	failed int
	width  int
	mu     sync.Mutex
	writer io.Writer
}

// NewBatchProgress creates a progress display for total packages.
func NewBatchProgress(total int) *BatchProgress {
	return &BatchProgress{
		total:  total,
		width:  30,
		writer: os.Stdout,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *BatchProgress) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Observe records one outcome and redraws.
func (p *BatchProgress) Observe(o inventory.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.done > p.total {
		p.total = p.done
	}
	if o.Kind == inventory.OutcomeFailed {
		p.failed++
	}

	if !writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "%s %s %s\n", outcomeMark(o.Kind), o.Action, o.Name)
		return
	}

	filled := 0
	if p.total > 0 {
		filled = p.done * p.width / p.total
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", p.width-filled)
	fmt.Fprintf(p.writer, "\r[%s] %d/%d %-44s", bar, p.done, p.total, truncate(o.Name, 44))
}

// Finish ends the display with a one-line result.
func (p *BatchProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writerIsTTY(p.writer) {
		fmt.Fprintln(p.writer)
	}
	fmt.Fprintf(p.writer, "%d/%d processed, %d failed\n", p.done, p.total, p.failed)
}

func outcomeMark(kind inventory.OutcomeKind) string {
	switch kind {
	case inventory.OutcomeApplied:
		return "✓"
	case inventory.OutcomeFailed:
		return "✗"
	default:
		return "-"
	}
}

// Spinner displays an animated spinner while the device is queried.
type Spinner struct {
	message string
	running bool
	chars   []string
	mu      sync.Mutex
	writer  io.Writer
	done    chan struct{}
}

// NewSpinner creates a new spinner with a message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		writer:  os.Stdout,
		done:    make(chan struct{}),
	}
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the spinner animation. On a non-TTY writer the message is
// printed once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		idx := 0
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.writer, "\r%s  %s", s.chars[idx], s.message)
				s.mu.Unlock()
				idx = (idx + 1) % len(s.chars)
			case <-s.done:
				return
			}
		}
	}()
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.done)

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
	}
}

// StopWithMessage stops the spinner and displays a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
