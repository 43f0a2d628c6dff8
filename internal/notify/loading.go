package notify

import "sync"

// Loading is the global loading indicator. It stays visible while at least one
// operation holds it.
type Loading struct {
	mu       sync.Mutex
	holders  int
	onChange func(visible bool)
}

// NewLoading creates a hidden indicator. onChange may be nil.
func NewLoading(onChange func(visible bool)) *Loading {
	return &Loading{onChange: onChange}
}

// SetOnChange replaces the visibility callback.
func (l *Loading) SetOnChange(fn func(visible bool)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Begin shows the indicator and returns its release func. Calling the release
// more than once has no further effect, so it is safe to defer.
func (l *Loading) Begin() (release func()) {
	l.mu.Lock()
	l.holders++
	shown := l.holders == 1
	fn := l.onChange
	l.mu.Unlock()

	if shown && fn != nil {
		fn(true)
	}

	var once sync.Once
	return func() {
		once.Do(l.end)
	}
}

func (l *Loading) end() {
	l.mu.Lock()
	if l.holders > 0 {
		l.holders--
	}
	hidden := l.holders == 0
	fn := l.onChange
	l.mu.Unlock()

	if hidden && fn != nil {
		fn(false)
	}
}

// Visible reports whether any operation currently holds the indicator.
func (l *Loading) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holders > 0
}
