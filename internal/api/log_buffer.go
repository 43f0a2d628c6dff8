package api

import (
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Console log levels
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogEntry is one captured log line
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// LogBuffer keeps the most recent console log lines for GET /api/logs
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	cap     int
	now     func() time.Time
}

// NewLogBuffer creates a log buffer with the given capacity
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &LogBuffer{
		entries: make([]LogEntry, 0, capacity),
		cap:     capacity,
		now:     time.Now,
	}
}

// Add appends a line, dropping the oldest once full
func (lb *LogBuffer) Add(level, message string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	entry := LogEntry{Timestamp: lb.now(), Level: level, Message: message}
	if len(lb.entries) >= lb.cap {
		copy(lb.entries, lb.entries[1:])
		lb.entries[len(lb.entries)-1] = entry
	} else {
		lb.entries = append(lb.entries, entry)
	}
}

// Entries returns the captured lines, oldest first, optionally filtered by level
func (lb *LogBuffer) Entries(levels []string) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	levelSet := make(map[string]bool, len(levels))
	for _, l := range levels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			levelSet[l] = true
		}
	}

	result := make([]LogEntry, 0, len(lb.entries))
	for _, e := range lb.entries {
		if len(levelSet) == 0 || levelSet[e.Level] {
			result = append(result, e)
		}
	}
	return result
}

// logWriter feeds std log output into a LogBuffer
type logWriter struct {
	buf *LogBuffer
}

func (lw *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Strip the std log date/time prefix "2006/01/02 15:04:05 "
		if len(line) > 20 && line[4] == '/' && line[7] == '/' && line[10] == ' ' {
			line = line[20:]
		}
		lw.buf.Add(parseLevel(line))
	}
	return len(p), nil
}

// parseLevel reads the WARN:/ERROR: prefix the console writes on problem lines.
func parseLevel(line string) (string, string) {
	switch {
	case strings.HasPrefix(line, "ERROR: "):
		return LogLevelError, strings.TrimPrefix(line, "ERROR: ")
	case strings.HasPrefix(line, "WARN: "):
		return LogLevelWarn, strings.TrimPrefix(line, "WARN: ")
	default:
		return LogLevelInfo, line
	}
}

// InstallLogCapture tees the std logger into buf while still writing to the
// previous output.
func InstallLogCapture(buf *LogBuffer) io.Writer {
	multi := io.MultiWriter(&logWriter{buf: buf}, log.Writer())
	log.SetOutput(multi)
	log.SetFlags(log.LstdFlags)
	return multi
}
