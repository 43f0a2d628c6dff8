package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jetsetgo/warehouse-console/internal/config"
)

// Notification levels
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Notification is a single toast message
type Notification struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is zero for sticky notifications that stay until dismissed.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Dismissed bool      `json:"dismissed,omitempty"`
}

// Text joins title and message the way a one-line toast shows them.
func (n Notification) Text() string {
	parts := make([]string, 0, 2)
	if n.Title != "" {
		parts = append(parts, n.Title)
	}
	if n.Message != "" {
		parts = append(parts, n.Message)
	}
	return strings.Join(parts, " | ")
}

// Center is a thread-safe ring buffer of notifications
type Center struct {
	mu      sync.RWMutex
	entries []Notification
	cap     int
	cfg     config.NotificationConfig
	now     func() time.Time

	subMu sync.RWMutex
	subs  []func(Notification)
}

// NewCenter creates a notification center with the configured capacity and delays
func NewCenter(cfg config.NotificationConfig) *Center {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 100
	}
	return &Center{
		entries: make([]Notification, 0, capacity),
		cap:     capacity,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Subscribe registers fn to receive every new notification.
func (c *Center) Subscribe(fn func(Notification)) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

// Notify adds a toast that hides after the level's default delay.
func (c *Center) Notify(level, title, message string) Notification {
	return c.NotifyFor(level, title, message, c.delayFor(level))
}

// NotifyFor adds a toast with an explicit auto-hide delay; zero keeps it until dismissed.
func (c *Center) NotifyFor(level, title, message string, delay time.Duration) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: now,
	}
	if delay > 0 {
		n.ExpiresAt = now.Add(delay)
	}

	c.mu.Lock()
	if len(c.entries) >= c.cap {
		// Shift everything left by 1, drop oldest
		copy(c.entries, c.entries[1:])
		c.entries[len(c.entries)-1] = n
	} else {
		c.entries = append(c.entries, n)
	}
	c.mu.Unlock()

	logLine(level, n.Text())

	c.subMu.RLock()
	subs := c.subs
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(n)
	}
	return n
}

func (c *Center) delayFor(level string) time.Duration {
	switch level {
	case LevelSuccess:
		return c.cfg.SuccessDelay
	case LevelError:
		return c.cfg.ErrorDelay
	default:
		return c.cfg.AutoHideDelay
	}
}

// Active returns the notifications still visible at now, oldest first
func (c *Center) Active(now time.Time) []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Notification, 0)
	for _, n := range c.entries {
		if n.Dismissed {
			continue
		}
		if !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt) {
			continue
		}
		result = append(result, n)
	}
	return result
}

// Entries returns all entries, optionally filtered by level
func (c *Center) Entries(levels []string) []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]Notification, len(c.entries))
		copy(result, c.entries)
		return result
	}

	levelSet := make(map[string]bool)
	for _, l := range levels {
		levelSet[strings.ToLower(l)] = true
	}

	result := make([]Notification, 0)
	for _, n := range c.entries {
		if levelSet[n.Level] {
			result = append(result, n)
		}
	}
	return result
}

// Dismiss hides a notification; it reports whether the ID was found.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].ID == id {
			c.entries[i].Dismissed = true
			return true
		}
	}
	return false
}

// Clear removes all entries
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
}

// LogInfo logs an info message without raising a toast
func (c *Center) LogInfo(format string, args ...interface{}) {
	logLine(LevelInfo, fmt.Sprintf(format, args...))
}

// LogWarn logs a warning message without raising a toast
func (c *Center) LogWarn(format string, args ...interface{}) {
	logLine(LevelWarning, fmt.Sprintf(format, args...))
}

// LogError logs an error message without raising a toast
func (c *Center) LogError(format string, args ...interface{}) {
	logLine(LevelError, fmt.Sprintf(format, args...))
}

func logLine(level, msg string) {
	switch level {
	case LevelError:
		log.Printf("ERROR: %s", msg)
	case LevelWarning:
		log.Printf("WARN: %s", msg)
	default:
		log.Println(msg)
	}
}
