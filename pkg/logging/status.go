package logging

import (
	"strings"
	"sync"
)

// StatusLine is an io.Writer that keeps only the newest complete log
// line. The GUI polls it for its one-line status display, so history
// is someone else's job (the server log file).
type StatusLine struct {
	mu   sync.Mutex
	line string
}

// Status receives a copy of every INFO+ server log record.
var Status = &StatusLine{}

// Write implements io.Writer for use as a slog handler sink.
func (s *StatusLine) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	s.mu.Lock()
	s.line = line
	s.mu.Unlock()
	return len(p), nil
}

// Last returns the newest captured line.
func (s *StatusLine) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line
}
