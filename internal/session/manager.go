// Package session owns the single console login: the token and user
// profile, their persistence, the warning/expiry timer pair and the role
// permission table.
//
// A session is either fully present (token and user) or absent. Every arm of
// the timers cancels the previous pair, and callbacks from a cancelled pair
// are fenced off by a generation counter.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/records"
	"github.com/jetsetgo/warehouse-console/internal/storage"
)

var (
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrForbidden        = errors.New("permission denied")
	ErrRejected         = errors.New("login rejected")
	ErrMalformedSession = errors.New("malformed persisted session")
)

// Caller performs one remote API call.
type Caller interface {
	Call(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// User is the profile returned by the login endpoint.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
}

// DisplayName is the name used in greetings.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Name
}

// NewUser projects the login reply's user object.
func NewUser(r records.Row) User {
	return User{
		ID:       r.String("id"),
		Username: r.String("username"),
		Role:     r.String("role"),
		Name:     r.String("name"),
	}
}

// Manager holds the console session.
type Manager struct {
	cfg     config.SessionConfig
	gw      Caller
	durable storage.Store
	tab     storage.Store
	center  *notify.Center

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) Timer

	mu          sync.Mutex
	token       string
	user        *User
	remember    bool
	generation  uint64
	warnTimer   Timer
	expiryTimer Timer
	lastProbe   time.Time
	onWarning   func()
	onLoggedOut func()
}

// NewManager creates a logged-out manager. durable survives restarts; tab
// lives as long as the process.
func NewManager(cfg config.SessionConfig, gw Caller, durable, tab storage.Store, center *notify.Center) *Manager {
	return &Manager{
		cfg:     cfg,
		gw:      gw,
		durable: durable,
		tab:     tab,
		center:  center,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
}

// OnWarning registers the callback run when the warning timer fires.
func (m *Manager) OnWarning(fn func()) {
	m.mu.Lock()
	m.onWarning = fn
	m.mu.Unlock()
}

// OnLoggedOut registers the callback run whenever the session ends.
func (m *Manager) OnLoggedOut(fn func()) {
	m.mu.Lock()
	m.onLoggedOut = fn
	m.mu.Unlock()
}

// IsLoggedIn reports whether both token and user are present.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != "" && m.user != nil
}

// User returns the logged-in profile.
func (m *Manager) User() (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// Token returns the current session token, empty when logged out.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// HasPermission checks the user's role against the permission table.
func (m *Manager) HasPermission(permission string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return false
	}
	return RoleAllowed(m.user.Role, permission)
}

// RequireAuth returns ErrNotLoggedIn when there is no session.
func (m *Manager) RequireAuth() error {
	if !m.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	return nil
}

// RequirePermission is RequireAuth plus a role check; a refusal is toasted.
func (m *Manager) RequirePermission(permission string) error {
	if err := m.RequireAuth(); err != nil {
		return err
	}
	if !m.HasPermission(permission) {
		m.center.Notify(notify.LevelError, "Permission denied", "You do not have permission to perform this action.")
		return fmt.Errorf("%w: %s", ErrForbidden, permission)
	}
	return nil
}

// Login authenticates against the remote service. A failed attempt leaves
// any existing session as it was.
func (m *Manager) Login(ctx context.Context, username, password string, rememberMe bool) error {
	resp, err := m.gw.Call(ctx, gateway.Request{
		Endpoint: config.EndpointLogin,
		Method:   gateway.MethodPost,
		Payload:  gateway.Payload{"username": username, "password": password},
	})
	if err != nil {
		m.center.Notify(notify.LevelError, "Login failed", "Network error, please try again later.")
		return fmt.Errorf("login: %w", err)
	}

	token := resp.String("sessionToken")
	user := NewUser(resp.Object("user"))
	if !resp.Succeeded() || token == "" || user.Username == "" {
		msg := resp.Message()
		if msg == "" {
			msg = "Invalid username or password."
		}
		m.center.Notify(notify.LevelError, "Login failed", msg)
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	m.mu.Lock()
	m.token = token
	m.user = &user
	m.remember = rememberMe
	m.lastProbe = m.now()
	m.armLocked()
	m.mu.Unlock()

	m.persist(ctx, token, user, rememberMe)
	m.center.Notify(notify.LevelSuccess, "Signed in", fmt.Sprintf("Welcome back, %s!", user.DisplayName()))
	return nil
}

// persist writes the session to one store and clears it from the other.
func (m *Manager) persist(ctx context.Context, token string, user User, rememberMe bool) {
	data, err := json.Marshal(user)
	if err != nil {
		m.center.LogError("Failed to encode user profile: %v", err)
		return
	}

	target, other := m.tab, m.durable
	if rememberMe {
		target, other = m.durable, m.tab
	}
	if err := other.Delete(ctx, config.KeySessionToken, config.KeyUserInfo); err != nil {
		m.center.LogWarn("Failed to clear stale session: %v", err)
	}
	if err := target.Set(ctx, config.KeySessionToken, token); err != nil {
		m.center.LogError("Failed to save session token: %v", err)
		return
	}
	if err := target.Set(ctx, config.KeyUserInfo, string(data)); err != nil {
		m.center.LogError("Failed to save user profile: %v", err)
		return
	}
	if rememberMe {
		err = m.durable.Set(ctx, config.KeyRememberMe, "true")
	} else {
		err = m.durable.Delete(ctx, config.KeyRememberMe)
	}
	if err != nil {
		m.center.LogWarn("Failed to update remember flag: %v", err)
	}
}

// Logout tells the remote service (best effort), then always clears the
// local session and fires the logged-out hook.
func (m *Manager) Logout(ctx context.Context) {
	if token := m.Token(); token != "" {
		if _, err := m.gw.Call(ctx, gateway.Request{
			Endpoint: config.EndpointLogout,
			Method:   gateway.MethodPost,
			Token:    token,
		}); err != nil {
			m.center.LogWarn("Logout request failed: %v", err)
		}
	}

	m.clear(ctx)
	m.center.Notify(notify.LevelInfo, "Signed out", "You have been signed out.")
	m.loggedOut()
}

// Call performs a gateway call carrying the current token. A reply with
// code AUTH_REQUIRED ends the session.
func (m *Manager) Call(ctx context.Context, endpoint, method string, payload gateway.Payload) (*gateway.Response, error) {
	token := m.Token()
	resp, err := m.gw.Call(ctx, gateway.Request{
		Endpoint: endpoint,
		Method:   method,
		Token:    token,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}
	if resp.Code() == gateway.CodeAuthRequired {
		m.reject(ctx, token)
	}
	return resp, nil
}

// reject ends the session the server refused. A newer session started while
// the request was in flight is left alone.
func (m *Manager) reject(ctx context.Context, token string) {
	m.mu.Lock()
	stale := token == "" || m.token != token
	m.mu.Unlock()
	if stale {
		return
	}
	m.center.LogWarn("Session rejected by server")
	m.clear(ctx)
	m.loggedOut()
}

// Validate probes the remote service with the current token. Success
// rearms the timers; AUTH_REQUIRED ends the session; other failures are
// treated as transient.
func (m *Manager) Validate(ctx context.Context) bool {
	if m.Token() == "" {
		return false
	}
	resp, err := m.Call(ctx, config.EndpointDashboard, gateway.MethodGet, nil)
	if err != nil {
		m.center.LogWarn("Session validation failed: %v", err)
		return false
	}
	if !resp.Succeeded() {
		return false
	}

	m.mu.Lock()
	if m.token != "" {
		m.armLocked()
	}
	m.mu.Unlock()
	return true
}

// Touch records user activity. It probes the session at most once per
// activity window and reports whether a probe ran.
func (m *Manager) Touch(ctx context.Context) bool {
	m.mu.Lock()
	now := m.now()
	if m.token == "" || (!m.lastProbe.IsZero() && now.Sub(m.lastProbe) < m.cfg.ActivityWindow) {
		m.mu.Unlock()
		return false
	}
	m.lastProbe = now
	m.mu.Unlock()

	m.Validate(ctx)
	return true
}

// Extend rearms the timers after the user accepts the warning prompt.
func (m *Manager) Extend() error {
	m.mu.Lock()
	if m.token == "" || m.user == nil {
		m.mu.Unlock()
		return ErrNotLoggedIn
	}
	m.armLocked()
	m.mu.Unlock()

	m.center.Notify(notify.LevelSuccess, "Session extended", "Your session has been extended.")
	return nil
}

// Restore loads a persisted session, durable store first, and validates
// it. Malformed data is discarded.
func (m *Manager) Restore(ctx context.Context) bool {
	token, user, remember, err := m.load(ctx)
	if err != nil {
		if errors.Is(err, ErrMalformedSession) {
			m.center.LogWarn("Discarding persisted session: %v", err)
			m.clear(ctx)
		} else {
			m.center.LogError("Failed to load persisted session: %v", err)
		}
		return false
	}
	if token == "" {
		return false
	}

	m.mu.Lock()
	m.token = token
	m.user = &user
	m.remember = remember
	m.lastProbe = m.now()
	m.armLocked()
	m.mu.Unlock()

	m.center.LogInfo("Restored session for %s", user.Username)
	m.Validate(ctx)
	return m.IsLoggedIn()
}

func (m *Manager) load(ctx context.Context) (string, User, bool, error) {
	remember, _, err := m.durable.Get(ctx, config.KeyRememberMe)
	if err != nil {
		return "", User{}, false, err
	}

	for _, s := range []storage.Store{m.durable, m.tab} {
		token, okToken, err := s.Get(ctx, config.KeySessionToken)
		if err != nil {
			return "", User{}, false, err
		}
		raw, okUser, err := s.Get(ctx, config.KeyUserInfo)
		if err != nil {
			return "", User{}, false, err
		}
		if !okToken && !okUser {
			continue
		}
		if token == "" || !okUser {
			return "", User{}, false, fmt.Errorf("%w: partial session", ErrMalformedSession)
		}
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return "", User{}, false, fmt.Errorf("%w: %v", ErrMalformedSession, err)
		}
		if user.Username == "" {
			return "", User{}, false, fmt.Errorf("%w: user without username", ErrMalformedSession)
		}
		return token, user, s == m.durable && remember == "true", nil
	}
	return "", User{}, false, nil
}

// clear drops the in-memory session, the timers and every persisted copy.
func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.remember = false
	m.lastProbe = time.Time{}
	m.stopLocked()
	m.mu.Unlock()

	if err := m.durable.Delete(ctx, config.KeySessionToken, config.KeyUserInfo, config.KeyRememberMe); err != nil {
		m.center.LogWarn("Failed to clear durable session: %v", err)
	}
	if err := m.tab.Delete(ctx, config.KeySessionToken, config.KeyUserInfo); err != nil {
		m.center.LogWarn("Failed to clear tab session: %v", err)
	}
}

func (m *Manager) loggedOut() {
	m.mu.Lock()
	fn := m.onLoggedOut
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// armLocked replaces the timer pair. Caller holds m.mu.
func (m *Manager) armLocked() {
	m.stopLocked()
	gen := m.generation

	warnAfter := m.cfg.WarningDelay()
	m.warnTimer = m.afterFunc(warnAfter, func() { m.warn(gen) })
	m.expiryTimer = m.afterFunc(m.cfg.Timeout, func() { m.expire(gen) })
}

// stopLocked cancels the timer pair and invalidates its callbacks.
func (m *Manager) stopLocked() {
	m.generation++
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
}

func (m *Manager) warn(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.token == "" {
		m.mu.Unlock()
		return
	}
	fn := m.onWarning
	m.mu.Unlock()

	m.center.NotifyFor(notify.LevelWarning, "Session warning",
		"Your session is about to expire. Save your work and sign in again.", 0)
	if fn != nil {
		fn()
	}
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.token == "" {
		m.mu.Unlock()
		return
	}
	m.stopLocked()
	m.mu.Unlock()

	m.center.Notify(notify.LevelInfo, "Session expired", "Your session has expired. Please sign in again.")
	m.Logout(context.Background())
}
