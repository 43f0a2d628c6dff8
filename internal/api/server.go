// Package api serves the warehouse console: server-rendered pages for the
// seven tabs, the create and delete flows, login and change password, a
// small JSON API and the websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/login"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/pages"
	"github.com/jetsetgo/warehouse-console/internal/session"
	"github.com/jetsetgo/warehouse-console/internal/storage"
	"github.com/jetsetgo/warehouse-console/internal/store"
	"github.com/jetsetgo/warehouse-console/internal/views"
)

// Server represents the console HTTP server
type Server struct {
	config  *config.Config
	gw      *gateway.Client
	center  *notify.Center
	loading *notify.Loading
	sess    *session.Manager
	pages   *pages.Controller
	login   *login.Controller
	hub     *Hub
	logs    *LogBuffer
	tmpl    *template.Template
	mux     *http.ServeMux
	srv     *http.Server
}

// NewServer wires the console together. durable holds remember-me state
// across restarts; tab holds the session of a console run without it.
func NewServer(cfg *config.Config, durable, tab storage.Store, logs *LogBuffer) *Server {
	if logs == nil {
		logs = NewLogBuffer(500)
	}
	center := notify.NewCenter(cfg.Notification)
	loading := notify.NewLoading(nil)
	gw := gateway.New(&cfg.Backend)
	sess := session.NewManager(cfg.Session, gw, durable, tab, center)

	s := &Server{
		config:  cfg,
		gw:      gw,
		center:  center,
		loading: loading,
		sess:    sess,
		pages:   pages.New(sess, store.New(50), loading, center, cfg.Login),
		login:   login.NewController(cfg.Login, sess, durable, center, loading),
		hub:     NewHub(cfg.Server.WSPingInterval),
		logs:    logs,
		tmpl:    template.Must(template.New("console").Funcs(templateFuncs).Parse(webUI)),
		mux:     http.NewServeMux(),
	}

	s.wireEvents()
	s.setupRoutes()
	return s
}

// wireEvents forwards console state changes to the open browser tabs.
func (s *Server) wireEvents() {
	s.center.Subscribe(func(n notify.Notification) {
		s.hub.Broadcast(EventNotification, n)
	})
	s.loading.SetOnChange(func(visible bool) {
		s.hub.Broadcast(EventLoading, visible)
	})
	s.sess.OnWarning(func() {
		s.hub.Broadcast(EventSessionWarning, map[string]any{
			"message":    "Your session is about to expire.",
			"expires_in": s.config.Session.WarningLead.String(),
		})
	})
	s.sess.OnLoggedOut(func() {
		s.pages.Store().Clear()
		s.hub.Broadcast(EventRedirect, "/login")
	})
	s.hub.OnMessage(func(e Event) {
		if e.Type == MessageActivity {
			s.sess.Touch(context.Background())
		}
	})
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Health and status
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/fetches", s.requireAPI(s.handleFetches))

	// Login
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /login/remember", s.handleRemember)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	// Session
	s.mux.HandleFunc("POST /session/extend", s.requireAPI(s.handleExtend))
	s.mux.HandleFunc("POST /api/activity", s.handleActivity)

	// Notifications
	s.mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	s.mux.HandleFunc("POST /api/notifications/{id}/dismiss", s.handleDismiss)

	// Account
	s.mux.HandleFunc("GET /account/password", s.requirePage(s.handlePasswordPage))
	s.mux.HandleFunc("POST /account/password", s.requirePage(s.handlePassword))

	// Tabs and mutations
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /{page}", s.requirePage(s.handlePage))
	s.mux.HandleFunc("GET /{resource}/new", s.requirePage(s.handleNewForm))
	s.mux.HandleFunc("POST /{resource}", s.requirePage(s.handleCreate))
	s.mux.HandleFunc("POST /{resource}/delete", s.requirePage(s.handleDelete))

	// Event stream
	s.mux.HandleFunc("GET /ws", s.hub.ServeWS)
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Restore picks up a persisted session and preloads the dropdown lists.
func (s *Server) Restore(ctx context.Context) bool {
	if !s.sess.Restore(ctx) || !s.sess.IsLoggedIn() {
		return false
	}
	s.pages.Preload(ctx)
	return true
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects the browser tabs and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requirePage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sess.IsLoggedIn() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (s *Server) requireAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sess.IsLoggedIn() {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"error":   "not logged in",
			})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: Failed to write response: %v", err)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns console status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "running",
		"logged_in": s.sess.IsLoggedIn(),
		"loading":   s.loading.Visible(),
		"backend":   s.gw.Status(),
		"clients":   s.hub.Clients(),
	}
	if user, ok := s.sess.User(); ok {
		status["user"] = user
	}
	writeJSON(w, http.StatusOK, status)
}

// handleLogs returns captured console log lines, ?level=warn,error filters
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if q := r.URL.Query().Get("level"); q != "" {
		levels = strings.Split(q, ",")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": s.logs.Entries(levels),
	})
}

func (s *Server) handleFetches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fetches": s.pages.Store().History().Entries(),
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.login.LoggedIn() {
		http.Redirect(w, r, "/"+views.PageDashboard, http.StatusSeeOther)
		return
	}
	go s.login.ProbeSystem(context.WithoutCancel(r.Context()))

	v := views.Login{}
	if name, ok := s.login.Remembered(r.Context()); ok {
		v.Username = name
		v.Remember = true
	}
	s.render(w, http.StatusOK, s.loginData(v))
}

func (s *Server) loginData(v views.Login) pageData {
	if left, locked := s.login.LockRemaining(); locked {
		v.Locked = true
		v.LockedFor = left.Round(time.Second).String()
	}
	return pageData{Title: "Sign in", Login: &v}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get(login.FieldUsername)
	remember := r.PostForm.Get("remember") != ""
	v := views.Login{Username: strings.TrimSpace(username), Remember: remember}

	res, err := s.login.Submit(r.Context(), username, r.PostForm.Get(login.FieldPassword), remember)
	switch {
	case errors.Is(err, login.ErrLocked):
		s.render(w, http.StatusTooManyRequests, s.loginData(v))
		return
	case errors.Is(err, login.ErrBusy):
		s.render(w, http.StatusConflict, s.loginData(v))
		return
	case err != nil:
		// The session manager has already raised the toast.
		s.render(w, http.StatusUnauthorized, s.loginData(v))
		return
	case !res.OK:
		v.UsernameError = res.FieldErrors[login.FieldUsername]
		v.PasswordError = res.FieldErrors[login.FieldPassword]
		s.render(w, http.StatusUnprocessableEntity, s.loginData(v))
		return
	}

	s.pages.Preload(r.Context())
	http.Redirect(w, r, "/"+views.PageDashboard, http.StatusSeeOther)
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	remember := r.FormValue("remember") == "true"
	if err := s.login.SetRemember(r.Context(), remember); err != nil {
		s.center.LogWarn("%v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sess.Logout(r.Context())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Extend(); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	probed := s.sess.Touch(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"probed":    probed,
		"logged_in": s.sess.IsLoggedIn(),
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": s.center.Active(time.Now()),
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.center.Dismiss(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "notification not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+views.PageDashboard, http.StatusSeeOther)
}

// handlePage renders one tab. Every visit refetches the list and counts as
// user activity.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := r.PathValue("page")
	if !views.IsPage(page) {
		http.NotFound(w, r)
		return
	}
	s.sess.Touch(r.Context())

	data, ok := s.tabData(w, r, page)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, data)
}

// tabData loads the page's content. It returns false after redirecting to
// the login page.
func (s *Server) tabData(w http.ResponseWriter, r *http.Request, page string) (pageData, bool) {
	data := s.baseData(page)

	if page == views.PageDashboard {
		d, err := s.pages.Dashboard(r.Context())
		if s.lostSession(w, r, err) {
			return data, false
		}
		if err == nil {
			v := views.RenderDashboard(d)
			data.Dashboard = &v
		} else {
			data.Error = "The dashboard could not be loaded."
		}
		return data, true
	}

	_, err := s.pages.Load(r.Context(), page)
	if s.lostSession(w, r, err) {
		return data, false
	}
	// A failed or superseded fetch still shows the cached rows.
	table, _ := views.TableFor(page, s.pages.Store().Rows(page), s.pages.CanManage(page))
	pageNum, size := s.pagination(r.URL.Query())
	table = table.Paginate(pageNum, size)
	data.Table = &table
	return data, true
}

func (s *Server) lostSession(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, session.ErrNotLoggedIn) || !s.sess.IsLoggedIn() {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return true
	}
	return false
}

// pagination reads ?page= and ?size=, bounded by the configured maximum.
func (s *Server) pagination(q url.Values) (int, int) {
	pageNum, err := strconv.Atoi(q.Get("page"))
	if err != nil || pageNum < 1 {
		pageNum = 1
	}
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil || size < 1 {
		size = s.config.Pagination.DefaultPageSize
	}
	if limit := s.config.Pagination.MaxPageSize; limit > 0 && size > limit {
		size = limit
	}
	return pageNum, size
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	if _, ok := views.FormFor(resource, views.FormInput{}); !ok {
		http.NotFound(w, r)
		return
	}
	if !s.pages.CanManage(resource) {
		s.center.Notify(notify.LevelError, "Permission denied", "")
		http.Redirect(w, r, "/"+resource, http.StatusSeeOther)
		return
	}
	s.renderForm(w, r, resource, http.StatusOK, views.FormInput{}, "")
}

// renderForm shows the modal create form over the cached table.
func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, resource string, status int, in views.FormInput, formErr string) {
	st := s.pages.Store()
	in.Products = st.Rows(config.EndpointProducts)
	in.Suppliers = st.Rows(config.EndpointSuppliers)
	in.Customers = st.Rows(config.EndpointCustomers)

	form, _ := views.FormFor(resource, in)
	form.Error = formErr

	data := s.baseData(resource)
	table, _ := views.TableFor(resource, st.Rows(resource), s.pages.CanManage(resource))
	pageNum, size := s.pagination(r.URL.Query())
	table = table.Paginate(pageNum, size)
	data.Table = &table
	data.Form = &form
	s.render(w, status, data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	if _, ok := views.FormFor(resource, views.FormInput{}); !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	err := s.pages.Create(r.Context(), resource, r.PostForm)
	if err == nil {
		http.Redirect(w, r, "/"+resource, http.StatusSeeOther)
		return
	}
	if s.lostSession(w, r, err) {
		return
	}

	in := views.FormInput{Values: flatten(r.PostForm)}
	var verrs pages.ValidationErrors
	var appErr *pages.AppError
	switch {
	case errors.As(err, &verrs):
		in.Errors = verrs.Fields()
		s.renderForm(w, r, resource, http.StatusUnprocessableEntity, in, "")
	case errors.Is(err, session.ErrForbidden):
		http.Redirect(w, r, "/"+resource, http.StatusSeeOther)
	case errors.As(err, &appErr):
		s.renderForm(w, r, resource, http.StatusOK, in, appErr.Message)
	default:
		s.renderForm(w, r, resource, http.StatusBadGateway, in, "Network error, please try again later.")
	}
}

// handleDelete asks for confirmation first. The confirmation page posts
// back with confirm=yes, or confirm=no to cancel.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	key := r.PostForm.Get("key")

	confirm := r.PostForm.Get("confirm")
	if confirm == "" {
		res, ok := pages.Lookup(resource)
		if !ok || res.ReadOnly() {
			http.NotFound(w, r)
			return
		}
		if key == "" {
			http.Error(w, pages.ErrMissingKey.Error(), http.StatusBadRequest)
			return
		}
		data, ok := s.tabData(w, r, resource)
		if !ok {
			return
		}
		data.Confirm = &confirmView{
			Resource: resource,
			Key:      key,
			Message:  fmt.Sprintf("Are you sure you want to delete %s %s?", res.Noun, key),
		}
		s.render(w, http.StatusOK, data)
		return
	}

	err := s.pages.Delete(r.Context(), resource, key, confirm == "yes")
	switch {
	case err == nil, errors.Is(err, pages.ErrDeclined):
	case errors.Is(err, pages.ErrUnknownResource), errors.Is(err, pages.ErrReadOnly):
		http.NotFound(w, r)
		return
	case errors.Is(err, pages.ErrMissingKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case s.lostSession(w, r, err):
		return
	}
	http.Redirect(w, r, "/"+resource, http.StatusSeeOther)
}

func (s *Server) handlePasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.passwordData(views.Password{}))
}

func (s *Server) passwordData(v views.Password) pageData {
	user, _ := s.sess.User()
	v.IsAdmin = user.Role == session.RoleAdmin
	data := s.baseData("")
	data.Title = "Change password"
	data.Password = &v
	return data
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	res, err := s.pages.ChangePassword(r.Context(), pages.PasswordChange{
		OldPassword:    r.PostForm.Get("oldPassword"),
		NewPassword:    r.PostForm.Get("newPassword"),
		TargetUserID:   r.PostForm.Get("targetUserId"),
		TargetUsername: r.PostForm.Get("targetUsername"),
	})
	if s.lostSession(w, r, err) {
		return
	}

	var verrs pages.ValidationErrors
	switch {
	case err == nil && res.OK:
		s.render(w, http.StatusOK, s.passwordData(views.Password{Message: res.Message}))
	case err == nil:
		s.render(w, http.StatusOK, s.passwordData(views.Password{Error: res.Message}))
	case errors.Is(err, session.ErrForbidden):
		s.render(w, http.StatusForbidden, s.passwordData(views.Password{Error: "Only administrators can reset another user's password"}))
	case errors.As(err, &verrs):
		s.render(w, http.StatusUnprocessableEntity, s.passwordData(views.Password{Error: verrs[0].Message}))
	default:
		s.render(w, http.StatusBadGateway, s.passwordData(views.Password{Error: "Failed to change password, please try again later"}))
	}
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}
