package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jetsetgo/warehouse-console/internal/config"
)

type captured struct {
	method string
	query  url.Values
	form   url.Values
	ctype  string
	reqID  string
}

func newRemote(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.query = r.URL.Query()
		got.ctype = r.Header.Get("Content-Type")
		got.reqID = r.Header.Get("X-Request-ID")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		got.form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestCallUsesVerbOverride(t *testing.T) {
	srv, got := newRemote(t, http.StatusOK, `{"success":true}`)
	c := New(&config.BackendConfig{Endpoint: srv.URL + "/exec", VerbOverride: true})

	resp, err := c.Call(context.Background(), Request{
		Endpoint: "products",
		Method:   MethodDelete,
		Token:    "tok-1",
		Payload: Payload{
			"商品ID":  "ABC-001",
			"cost":  decimal.RequireFromString("10.50"),
			"qty":   5,
			"meta":  map[string]any{"a": 1},
			"empty": nil,
		},
	})
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatal("expected success:true")
	}

	if got.method != http.MethodPost {
		t.Errorf("transport method = %s, want POST", got.method)
	}
	if got.query.Get("path") != "api" || got.query.Get("apiPath") != "products" {
		t.Errorf("query = %v", got.query)
	}
	if got.ctype != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", got.ctype)
	}
	if got.reqID == "" {
		t.Error("missing X-Request-ID")
	}

	want := map[string]string{
		"_method":      "DELETE",
		"sessionToken": "tok-1",
		"商品ID":         "ABC-001",
		"cost":         "10.5",
		"qty":          "5",
		"meta":         `{"a":1}`,
	}
	for k, v := range want {
		if got.form.Get(k) != v {
			t.Errorf("form[%s] = %q, want %q", k, got.form.Get(k), v)
		}
	}
	if _, ok := got.form["empty"]; ok {
		t.Error("nil field should be skipped")
	}
}

func TestCallWithoutTokenOmitsField(t *testing.T) {
	srv, got := newRemote(t, http.StatusOK, `{"success":true}`)
	c := New(&config.BackendConfig{Endpoint: srv.URL, VerbOverride: true})

	if _, err := c.Call(context.Background(), Request{Endpoint: "init"}); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if _, ok := got.form["sessionToken"]; ok {
		t.Error("sessionToken should be absent without a session")
	}
	if got.form.Get("_method") != "GET" {
		t.Errorf("default verb = %q, want GET", got.form.Get("_method"))
	}
}

func TestCallConventionalVerbs(t *testing.T) {
	srv, got := newRemote(t, http.StatusOK, `[]`)
	c := New(&config.BackendConfig{Endpoint: srv.URL, VerbOverride: false})

	if _, err := c.Call(context.Background(), Request{
		Endpoint: "inventory",
		Method:   MethodGet,
		Token:    "tok",
		Payload:  Payload{"q": "bolt"},
	}); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if got.method != http.MethodGet {
		t.Errorf("method = %s, want GET", got.method)
	}
	if got.query.Get("q") != "bolt" || got.query.Get("sessionToken") != "tok" {
		t.Errorf("query = %v", got.query)
	}
	if _, ok := got.query["_method"]; ok {
		t.Error("no verb override expected")
	}

	if _, err := c.Call(context.Background(), Request{
		Endpoint: "inbound",
		Method:   MethodDelete,
		Payload:  Payload{"進貨單號": "IN-1"},
	}); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if got.method != http.MethodDelete || got.form.Get("進貨單號") != "IN-1" {
		t.Errorf("delete = %s %v", got.method, got.form)
	}
}

func TestCallTransportError(t *testing.T) {
	srv, _ := newRemote(t, http.StatusBadGateway, `upstream down`)
	c := New(&config.BackendConfig{Endpoint: srv.URL, VerbOverride: true})

	_, err := c.Call(context.Background(), Request{Endpoint: "dashboard"})
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", terr.StatusCode)
	}
	if st := c.Status(); st.Connected || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestCallLeavesFailureToCaller(t *testing.T) {
	srv, _ := newRemote(t, http.StatusOK, `{"success":false,"message":"duplicate","code":"DUP"}`)
	c := New(&config.BackendConfig{Endpoint: srv.URL, VerbOverride: true})

	resp, err := c.Call(context.Background(), Request{Endpoint: "products", Method: MethodPost})
	if err != nil {
		t.Fatalf("application failure must not be an error: %v", err)
	}
	if !resp.Failed() || resp.Message() != "duplicate" || resp.Code() != "DUP" {
		t.Errorf("resp = failed %v msg %q code %q", resp.Failed(), resp.Message(), resp.Code())
	}
	if !c.Status().Connected {
		t.Error("a 200 reply means the remote is reachable")
	}
}

func TestCallInvalidJSON(t *testing.T) {
	srv, _ := newRemote(t, http.StatusOK, `<html>oops</html>`)
	c := New(&config.BackendConfig{Endpoint: srv.URL, VerbOverride: true})

	if _, err := c.Call(context.Background(), Request{Endpoint: "products"}); err == nil {
		t.Fatal("expected decode error")
	}
}
