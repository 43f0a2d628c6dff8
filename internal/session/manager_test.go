package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/storage"
)

type reply struct {
	body string
	err  error
}

type fakeGateway struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []gateway.Request
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{replies: make(map[string]reply)}
}

func (f *fakeGateway) set(endpoint, body string) {
	f.mu.Lock()
	f.replies[endpoint] = reply{body: body}
	f.mu.Unlock()
}

func (f *fakeGateway) fail(endpoint string, err error) {
	f.mu.Lock()
	f.replies[endpoint] = reply{err: err}
	f.mu.Unlock()
}

func (f *fakeGateway) Call(_ context.Context, req gateway.Request) (*gateway.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	r, ok := f.replies[req.Endpoint]
	f.mu.Unlock()
	if !ok {
		return gateway.Decode([]byte(`{"success":true}`))
	}
	if r.err != nil {
		return nil, r.err
	}
	return gateway.Decode([]byte(r.body))
}

func (f *fakeGateway) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Endpoint == endpoint {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		next.fn()
	}
	c.now = target
}

type fixture struct {
	m       *Manager
	gw      *fakeGateway
	clock   *fakeClock
	center  *notify.Center
	durable *storage.MemoryStore
	tab     *storage.MemoryStore

	warnings   int
	loggedOuts int
}

const loginOK = `{"success":true,"sessionToken":"tok-1","user":{"id":7,"username":"alice","role":"manager"}}`

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gw:      newFakeGateway(),
		clock:   &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		center:  notify.NewCenter(config.Default().Notification),
		durable: storage.NewMemoryStore(),
		tab:     storage.NewMemoryStore(),
	}
	f.m = NewManager(config.Default().Session, f.gw, f.durable, f.tab, f.center)
	f.m.now = func() time.Time { return f.clock.now }
	f.m.afterFunc = f.clock.AfterFunc
	f.m.OnWarning(func() { f.warnings++ })
	f.m.OnLoggedOut(func() { f.loggedOuts++ })
	return f
}

func (f *fixture) login(t *testing.T, remember bool) {
	t.Helper()
	f.gw.set(config.EndpointLogin, loginOK)
	if err := f.m.Login(context.Background(), "alice", "secret1", remember); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
}

func (f *fixture) lastNotification(t *testing.T) notify.Notification {
	t.Helper()
	entries := f.center.Entries(nil)
	if len(entries) == 0 {
		t.Fatal("no notifications")
	}
	return entries[len(entries)-1]
}

func TestLoginStoresServerProfile(t *testing.T) {
	f := newFixture(t)
	f.login(t, true)

	if !f.m.IsLoggedIn() {
		t.Fatal("expected logged in")
	}
	user, _ := f.m.User()
	want := User{ID: "7", Username: "alice", Role: "manager"}
	if user != want {
		t.Errorf("user = %+v, want %+v", user, want)
	}
	if tok, ok, _ := f.durable.Get(context.Background(), config.KeySessionToken); !ok || tok != "tok-1" {
		t.Errorf("durable token = %q", tok)
	}
	if _, ok, _ := f.tab.Get(context.Background(), config.KeySessionToken); ok {
		t.Error("remember me should not write the tab store")
	}
	if n := f.lastNotification(t); n.Message != "Welcome back, alice!" {
		t.Errorf("toast = %q", n.Message)
	}

	req := f.gw.calls[0]
	if req.Method != gateway.MethodPost || req.Payload["username"] != "alice" || req.Token != "" {
		t.Errorf("login request = %+v", req)
	}
}

func TestLoginWithoutRememberUsesTabStore(t *testing.T) {
	f := newFixture(t)
	f.durable.Set(context.Background(), config.KeyRememberMe, "true")
	f.login(t, false)

	if _, ok, _ := f.tab.Get(context.Background(), config.KeyUserInfo); !ok {
		t.Error("tab store should hold the user")
	}
	if _, ok, _ := f.durable.Get(context.Background(), config.KeyRememberMe); ok {
		t.Error("remember flag should be cleared")
	}
}

func TestFailedLoginKeepsPriorSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, false)

	f.gw.set(config.EndpointLogin, `{"success":false,"message":"Wrong password"}`)
	err := f.m.Login(context.Background(), "bob", "nope123", false)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if f.m.Token() != "tok-1" {
		t.Errorf("token = %q, prior session should be untouched", f.m.Token())
	}
	if user, _ := f.m.User(); user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}
	if n := f.lastNotification(t); n.Level != notify.LevelError || n.Message != "Wrong password" {
		t.Errorf("toast = %+v", n)
	}
}

func TestLoginRejectsIncompleteSuccess(t *testing.T) {
	f := newFixture(t)
	f.gw.set(config.EndpointLogin, `{"success":true,"user":{"username":"alice"}}`)

	if err := f.m.Login(context.Background(), "alice", "secret1", false); !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if f.m.IsLoggedIn() {
		t.Fatal("partial session must not be stored")
	}
}

func TestLoginNetworkError(t *testing.T) {
	f := newFixture(t)
	f.gw.fail(config.EndpointLogin, errors.New("dial tcp: refused"))

	err := f.m.Login(context.Background(), "alice", "secret1", false)
	if err == nil || errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if n := f.lastNotification(t); n.Message != "Network error, please try again later." {
		t.Errorf("toast = %q", n.Message)
	}
}

func TestIdleTimeoutLogsOutOnce(t *testing.T) {
	f := newFixture(t)
	f.login(t, true)

	f.clock.Advance(24 * time.Minute)
	if f.warnings != 0 {
		t.Fatal("warning fired early")
	}
	f.clock.Advance(time.Minute)
	if f.warnings != 1 {
		t.Fatalf("warnings = %d, want 1", f.warnings)
	}
	if !f.m.IsLoggedIn() {
		t.Fatal("warning must not end the session")
	}

	f.clock.Advance(5 * time.Minute)
	if f.m.IsLoggedIn() {
		t.Fatal("expected logout at timeout")
	}
	f.clock.Advance(2 * time.Hour)
	if f.loggedOuts != 1 {
		t.Errorf("logged-out transitions = %d, want 1", f.loggedOuts)
	}
	if f.gw.count(config.EndpointLogout) != 1 {
		t.Errorf("logout calls = %d", f.gw.count(config.EndpointLogout))
	}
	if _, ok, _ := f.durable.Get(context.Background(), config.KeySessionToken); ok {
		t.Error("persisted token should be cleared")
	}
}

func TestExtendCancelsPreviousTimers(t *testing.T) {
	f := newFixture(t)
	f.login(t, false)

	f.clock.Advance(20 * time.Minute)
	if err := f.m.Extend(); err != nil {
		t.Fatalf("Extend() failed: %v", err)
	}
	f.clock.Advance(15 * time.Minute)
	if !f.m.IsLoggedIn() || f.warnings != 0 {
		t.Fatalf("old timer pair fired: loggedIn=%v warnings=%d", f.m.IsLoggedIn(), f.warnings)
	}
	f.clock.Advance(15 * time.Minute)
	if f.m.IsLoggedIn() || f.loggedOuts != 1 || f.warnings != 1 {
		t.Fatalf("loggedIn=%v loggedOuts=%d warnings=%d", f.m.IsLoggedIn(), f.loggedOuts, f.warnings)
	}
}

func TestExtendRequiresSession(t *testing.T) {
	f := newFixture(t)
	if err := f.m.Extend(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v", err)
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"manager", true},
		{"operator", true},
		{"viewer", false},
		{"", false},
	}
	for _, tt := range tests {
		f := newFixture(t)
		f.gw.set(config.EndpointLogin, `{"success":true,"sessionToken":"t","user":{"username":"u","role":"`+tt.role+`"}}`)
		if err := f.m.Login(context.Background(), "u", "secret1", false); err != nil {
			t.Fatalf("Login() failed: %v", err)
		}
		if got := f.m.HasPermission(PermInventoryManage); got != tt.want {
			t.Errorf("role %q: inventory.manage = %v, want %v", tt.role, got, tt.want)
		}
	}

	f := newFixture(t)
	if f.m.HasPermission(PermInventoryManage) {
		t.Error("no session must grant nothing")
	}
	if RoleAllowed("manager", "reports.export") {
		t.Error("unknown keys grant nothing")
	}
	if !RoleAllowed("admin", "reports.export") {
		t.Error("admin is granted everything")
	}
}

func TestRequirePermissionToastsRefusal(t *testing.T) {
	f := newFixture(t)
	if err := f.m.RequirePermission(PermUsersManage); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v", err)
	}

	f.login(t, false)
	if err := f.m.RequirePermission(PermUsersManage); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if n := f.lastNotification(t); n.Title != "Permission denied" {
		t.Errorf("toast = %+v", n)
	}
	if err := f.m.RequirePermission(PermProductsManage); err != nil {
		t.Errorf("manager should manage products: %v", err)
	}
}

func TestAuthRequiredClearsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, true)
	f.gw.set(config.EndpointProducts, `{"success":false,"code":"AUTH_REQUIRED","message":"expired"}`)

	resp, err := f.m.Call(context.Background(), config.EndpointProducts, gateway.MethodGet, nil)
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if !resp.Failed() {
		t.Error("response should be returned to the caller")
	}
	if f.m.IsLoggedIn() || f.loggedOuts != 1 {
		t.Fatalf("loggedIn=%v loggedOuts=%d", f.m.IsLoggedIn(), f.loggedOuts)
	}
	if got := f.gw.calls[len(f.gw.calls)-1].Token; got != "tok-1" {
		t.Errorf("call token = %q", got)
	}
}

func TestValidateTransientFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, false)

	f.gw.fail(config.EndpointDashboard, errors.New("timeout"))
	if f.m.Validate(context.Background()) {
		t.Fatal("Validate() should report failure")
	}
	f.gw.set(config.EndpointDashboard, `{"success":false,"message":"sheet busy"}`)
	if f.m.Validate(context.Background()) {
		t.Fatal("Validate() should report failure")
	}
	if !f.m.IsLoggedIn() {
		t.Fatal("transient failures must keep the session")
	}
}

func TestTouchProbesOncePerWindow(t *testing.T) {
	f := newFixture(t)
	f.login(t, false)
	f.gw.set(config.EndpointDashboard, `{"success":true}`)

	f.clock.Advance(10 * time.Second)
	if f.m.Touch(context.Background()) {
		t.Fatal("probe inside the window")
	}
	f.clock.Advance(time.Minute)
	if !f.m.Touch(context.Background()) {
		t.Fatal("expected a probe after the window")
	}
	if f.m.Touch(context.Background()) {
		t.Fatal("second probe inside the new window")
	}
	if got := f.gw.count(config.EndpointDashboard); got != 1 {
		t.Errorf("dashboard probes = %d, want 1", got)
	}

	// The successful probe at 1m10s rearmed the timers.
	f.clock.Advance(29 * time.Minute)
	if !f.m.IsLoggedIn() {
		t.Fatal("rearmed session expired early")
	}
}

func TestTouchWithoutSession(t *testing.T) {
	f := newFixture(t)
	if f.m.Touch(context.Background()) {
		t.Fatal("no probe without a session")
	}
}

func TestRestoreDiscardsMalformedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.durable.Set(ctx, config.KeySessionToken, "tok-9")
	f.durable.Set(ctx, config.KeyUserInfo, "{not json")

	if f.m.Restore(ctx) {
		t.Fatal("malformed session restored")
	}
	if _, ok, _ := f.durable.Get(ctx, config.KeySessionToken); ok {
		t.Error("malformed data should be discarded")
	}
	if f.gw.count(config.EndpointDashboard) != 0 {
		t.Error("no validation for a discarded session")
	}
}

func TestRestoreValidatesTabSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tab.Set(ctx, config.KeySessionToken, "tok-2")
	f.tab.Set(ctx, config.KeyUserInfo, `{"id":"3","username":"carol","role":"operator"}`)
	f.gw.set(config.EndpointDashboard, `{"success":true}`)

	if !f.m.Restore(ctx) {
		t.Fatal("Restore() failed")
	}
	if user, _ := f.m.User(); user.Username != "carol" {
		t.Errorf("user = %+v", user)
	}
	if f.gw.count(config.EndpointDashboard) != 1 {
		t.Error("restored session should be validated")
	}
}

func TestRestoreRejectedByServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.durable.Set(ctx, config.KeySessionToken, "tok-old")
	f.durable.Set(ctx, config.KeyUserInfo, `{"username":"dave","role":"admin"}`)
	f.gw.set(config.EndpointDashboard, `{"success":false,"code":"AUTH_REQUIRED"}`)

	if f.m.Restore(ctx) {
		t.Fatal("rejected session reported as restored")
	}
	if f.loggedOuts != 1 {
		t.Errorf("loggedOuts = %d", f.loggedOuts)
	}
}

func TestLogoutAlwaysClears(t *testing.T) {
	f := newFixture(t)
	f.login(t, true)
	f.gw.fail(config.EndpointLogout, errors.New("offline"))

	f.m.Logout(context.Background())
	if f.m.IsLoggedIn() || f.loggedOuts != 1 {
		t.Fatalf("loggedIn=%v loggedOuts=%d", f.m.IsLoggedIn(), f.loggedOuts)
	}
	if n := f.lastNotification(t); n.Title != "Signed out" {
		t.Errorf("toast = %+v", n)
	}
	f.clock.Advance(time.Hour)
	if f.loggedOuts != 1 {
		t.Error("timers must be cancelled by logout")
	}
}
