// Package login drives the login page: input validation, the single login
// in flight, the failed-attempt lockout and the remembered username.
package login

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/storage"
)

var (
	ErrLocked = errors.New("login locked after too many attempts")
	ErrBusy   = errors.New("login already in progress")
)

// Form field names
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// Authenticator is the part of the session manager the login page uses.
type Authenticator interface {
	Login(ctx context.Context, username, password string, rememberMe bool) error
	IsLoggedIn() bool
	Call(ctx context.Context, endpoint, method string, payload gateway.Payload) (*gateway.Response, error)
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Result is the outcome of a submitted login form.
type Result struct {
	OK          bool
	FieldErrors map[string]string
}

// Controller handles login form submissions.
type Controller struct {
	cfg     config.LoginConfig
	auth    Authenticator
	durable storage.Store
	center  *notify.Center
	loading *notify.Loading

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) Timer

	mu          sync.Mutex
	busy        bool
	attempts    int
	lockedUntil time.Time
	lockTimer   Timer
}

// NewController creates the login controller.
func NewController(cfg config.LoginConfig, auth Authenticator, durable storage.Store, center *notify.Center, loading *notify.Loading) *Controller {
	return &Controller{
		cfg:     cfg,
		auth:    auth,
		durable: durable,
		center:  center,
		loading: loading,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
}

// Validate checks the inputs before any request is made.
func (c *Controller) Validate(username, password string) map[string]string {
	errs := make(map[string]string)
	username = strings.TrimSpace(username)

	switch {
	case username == "":
		errs[FieldUsername] = "Please enter a username"
	case len([]rune(username)) < c.cfg.UsernameMinLength:
		errs[FieldUsername] = "Username must be at least " + strconv.Itoa(c.cfg.UsernameMinLength) + " characters"
	}

	switch {
	case password == "":
		errs[FieldPassword] = "Please enter a password"
	case len([]rune(password)) < c.cfg.PasswordMinLength:
		errs[FieldPassword] = "Password must be at least " + strconv.Itoa(c.cfg.PasswordMinLength) + " characters"
	}
	return errs
}

// Submit validates and performs a login. Field errors come back in the
// result without contacting the remote service.
func (c *Controller) Submit(ctx context.Context, username, password string, rememberMe bool) (Result, error) {
	if c.Locked() {
		return Result{}, ErrLocked
	}

	username = strings.TrimSpace(username)
	if errs := c.Validate(username, password); len(errs) > 0 {
		return Result{FieldErrors: errs}, nil
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	release := c.loading.Begin()
	err := c.auth.Login(ctx, username, password, rememberMe)
	release()

	if err != nil {
		c.failed()
		return Result{}, err
	}

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	if rememberMe {
		err = c.durable.Set(ctx, config.KeyUsername, username)
	} else {
		err = c.durable.Delete(ctx, config.KeyUsername)
	}
	if err != nil {
		c.center.LogWarn("Failed to update remembered username: %v", err)
	}
	return Result{OK: true}, nil
}

func (c *Controller) failed() {
	c.mu.Lock()
	c.attempts++
	if c.attempts < c.cfg.MaxAttempts {
		c.mu.Unlock()
		return
	}
	c.lockedUntil = c.now().Add(c.cfg.Lockout)
	if c.lockTimer != nil {
		c.lockTimer.Stop()
	}
	c.lockTimer = c.afterFunc(c.cfg.Lockout, c.unlock)
	c.mu.Unlock()

	c.center.Notify(notify.LevelError, "Login failed", "Too many login attempts, please try again later.")
}

func (c *Controller) unlock() {
	c.mu.Lock()
	c.attempts = 0
	c.lockedUntil = time.Time{}
	c.lockTimer = nil
	c.mu.Unlock()
	c.center.LogInfo("Login form unlocked")
}

// Locked reports whether the form is disabled.
func (c *Controller) Locked() bool {
	_, locked := c.LockRemaining()
	return locked
}

// LockRemaining returns how long the form stays disabled.
func (c *Controller) LockRemaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lockedUntil.IsZero() {
		return 0, false
	}
	return c.lockedUntil.Sub(c.now()), true
}

// Attempts is the number of consecutive failures.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// SetRemember reacts to the remember-me box; unchecking it forgets the
// username at once.
func (c *Controller) SetRemember(ctx context.Context, remember bool) error {
	if remember {
		return nil
	}
	if err := c.durable.Delete(ctx, config.KeyUsername); err != nil {
		return fmt.Errorf("forget username: %w", err)
	}
	return nil
}

// Remembered returns the username to prefill when remember-me is on.
func (c *Controller) Remembered(ctx context.Context) (string, bool) {
	flag, _, err := c.durable.Get(ctx, config.KeyRememberMe)
	if err != nil || flag != "true" {
		return "", false
	}
	name, ok, err := c.durable.Get(ctx, config.KeyUsername)
	if err != nil || !ok || name == "" {
		return "", false
	}
	return name, true
}

// ProbeSystem asks the remote service to initialise itself. The outcome is
// only logged.
func (c *Controller) ProbeSystem(ctx context.Context) {
	resp, err := c.auth.Call(ctx, config.EndpointInit, gateway.MethodGet, nil)
	if err != nil {
		c.center.LogWarn("System init check failed (ignored): %v", err)
		return
	}
	if resp.Succeeded() {
		c.center.LogInfo("System initialised")
	}
}

// LoggedIn reports whether a session already exists, in which case the
// login page sends the visitor to the dashboard.
func (c *Controller) LoggedIn() bool {
	return c.auth.IsLoggedIn()
}
