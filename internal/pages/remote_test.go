package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/session"
	"github.com/jetsetgo/warehouse-console/internal/storage"
	"github.com/jetsetgo/warehouse-console/internal/store"
)

type request struct {
	endpoint string
	method   string
	form     url.Values
}

// sheet is an in-memory stand-in for the spreadsheet API.
type sheet struct {
	t    *testing.T
	role string

	mu        sync.Mutex
	requests  []request
	products  []map[string]string
	inventory map[string]int
	outbound  []map[string]string
	failures  map[string]string
	statuses  map[string]int
	nextID    int
}

func newSheet(t *testing.T, role string) *sheet {
	return &sheet{
		t:         t,
		role:      role,
		inventory: map[string]int{"P-1": 50},
		products:  []map[string]string{{"商品ID": "P-1", "商品名稱": "Bolt", "成本價": "1.5", "售價": "2"}},
		failures:  make(map[string]string),
		statuses:  make(map[string]int),
	}
}

func (s *sheet) failWith(endpoint, method, message string) {
	s.mu.Lock()
	s.failures[endpoint+" "+method] = message
	s.mu.Unlock()
}

func (s *sheet) breakEndpoint(endpoint string, status int) {
	s.mu.Lock()
	s.statuses[endpoint] = status
	s.mu.Unlock()
}

func (s *sheet) log() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *sheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("ParseForm: %v", err)
	}
	endpoint := r.URL.Query().Get("apiPath")
	method := r.PostForm.Get("_method")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request{endpoint: endpoint, method: method, form: r.PostForm})

	if status, ok := s.statuses[endpoint]; ok {
		w.WriteHeader(status)
		return
	}
	if msg, ok := s.failures[endpoint+" "+method]; ok {
		writeJSON(w, map[string]any{"success": false, "message": msg})
		return
	}

	fields := func() map[string]string {
		row := make(map[string]string)
		for k := range r.PostForm {
			if k != "_method" && k != "sessionToken" {
				row[k] = r.PostForm.Get(k)
			}
		}
		return row
	}

	switch endpoint + " " + method {
	case "login POST":
		writeJSON(w, map[string]any{
			"success":      true,
			"sessionToken": "tok-" + r.PostForm.Get("username"),
			"user":         map[string]any{"id": 1, "username": r.PostForm.Get("username"), "role": s.role},
		})
	case "products GET":
		writeJSON(w, map[string]any{"success": true, "data": s.products})
	case "products POST":
		row := fields()
		if row["商品ID"] == "" {
			s.nextID++
			row["商品ID"] = "AUTO-" + strconv.Itoa(s.nextID)
		}
		s.products = append(s.products, row)
		writeJSON(w, map[string]any{"success": true})
	case "products DELETE":
		id := r.PostForm.Get("商品ID")
		kept := s.products[:0]
		for _, p := range s.products {
			if p["商品ID"] != id {
				kept = append(kept, p)
			}
		}
		s.products = kept
		writeJSON(w, map[string]any{"success": true})
	case "inventory GET":
		rows := []map[string]any{}
		for id, qty := range s.inventory {
			rows = append(rows, map[string]any{"商品ID": id, "當前庫存": qty, "最低庫存": 10})
		}
		writeJSON(w, rows)
	case "outbound GET":
		writeJSON(w, map[string]any{"items": s.outbound})
	case "outbound POST":
		row := fields()
		qty, _ := strconv.Atoi(row["出貨數量"])
		s.inventory[row["商品ID"]] -= qty
		row["出貨單號"] = fmt.Sprintf("OUT-%d", len(s.outbound)+1)
		s.outbound = append(s.outbound, row)
		writeJSON(w, map[string]any{"success": true})
	case "suppliers GET":
		writeJSON(w, map[string]any{"result": []map[string]string{{"供應商ID": "S-1", "供應商名稱": "Acme"}}})
	case "customers GET":
		writeJSON(w, []map[string]string{{"客戶ID": "C-1", "客戶名稱": "Globex"}})
	case "dashboard GET":
		writeJSON(w, map[string]any{
			"success":           true,
			"summary":           map[string]any{"totalProducts": len(s.products), "totalInventory": 50, "lowStockItems": 1},
			"monthlyStats":      map[string]any{"inboundCount": 2, "outboundCount": 3},
			"recentInbound":     []map[string]any{{"商品名稱": "Bolt", "進貨數量": 20}},
			"recentOutbound":    []map[string]any{},
			"lowStockInventory": []map[string]any{{"商品ID": "P-9", "當前庫存": 1, "最低庫存": 5}},
		})
	case "users POST":
		writeJSON(w, map[string]any{"success": true, "message": "Password changed"})
	default:
		writeJSON(w, map[string]any{"success": true})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type fixture struct {
	sheet   *sheet
	ctrl    *Controller
	sess    *session.Manager
	center  *notify.Center
	loading *notify.Loading
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()
	sh := newSheet(t, role)
	srv := httptest.NewServer(sh)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Backend.Endpoint = srv.URL
	center := notify.NewCenter(cfg.Notification)
	loading := notify.NewLoading(nil)
	gw := gateway.New(&cfg.Backend)
	sess := session.NewManager(cfg.Session, gw, storage.NewMemoryStore(), storage.NewMemoryStore(), center)
	t.Cleanup(func() { sess.Logout(context.Background()) })

	if err := sess.Login(context.Background(), "alice", "secret1", false); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	return &fixture{
		sheet:   sh,
		ctrl:    New(sess, store.New(20), loading, center, cfg.Login),
		sess:    sess,
		center:  center,
		loading: loading,
	}
}

// since returns the requests sent after the first n.
func (f *fixture) since(n int) []request {
	return f.sheet.log()[n:]
}

func (f *fixture) lastNotification(t *testing.T) notify.Notification {
	t.Helper()
	entries := f.center.Entries(nil)
	if len(entries) == 0 {
		t.Fatal("no notifications")
	}
	return entries[len(entries)-1]
}
