// Package gateway talks to the remote spreadsheet API.
//
// Every call targets one URL; the sub-resource is selected with the apiPath
// query parameter. Against the spreadsheet backend the transport is always a
// simple form POST and the logical verb travels in the _method field, which
// keeps browsers and proxies from issuing a CORS preflight.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jetsetgo/warehouse-console/internal/config"
)

// Logical verbs understood by the remote service.
const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodDelete = http.MethodDelete
)

// Payload is a flat set of request fields.
type Payload map[string]any

// Request is one logical API call.
type Request struct {
	Endpoint string
	Method   string
	Token    string
	Payload  Payload
}

// TransportError is a non-2xx reply from the remote service.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote service returned HTTP %d", e.StatusCode)
}

// Status represents the remote connection status
type Status struct {
	Connected bool      `json:"connected"`
	LastError string    `json:"last_error,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
}

// Client sends requests to the remote service
type Client struct {
	config *config.BackendConfig
	client *http.Client
	mu     sync.Mutex

	connected bool
	lastError error
	lastSeen  time.Time
}

// New creates a gateway client. A zero timeout leaves the transport default.
func New(cfg *config.BackendConfig) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Call performs req and decodes the JSON reply. It does not look at the
// success field.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = MethodGet
	}

	form, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	if req.Token != "" {
		form.Set("sessionToken", req.Token)
	}

	httpReq, err := c.buildRequest(ctx, req.Endpoint, method, form)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.setError(err)
		return nil, fmt.Errorf("%s %s: %w", method, req.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.setError(err)
		return nil, fmt.Errorf("read %s reply: %w", req.Endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
		c.setError(terr)
		return nil, terr
	}

	// Successfully reached the remote service
	c.mu.Lock()
	c.connected = true
	c.lastError = nil
	c.lastSeen = time.Now()
	c.mu.Unlock()

	decoded, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s reply: %w", req.Endpoint, err)
	}
	return decoded, nil
}

func (c *Client) buildRequest(ctx context.Context, endpoint, method string, form url.Values) (*http.Request, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid backend endpoint: %w", err)
	}
	q := u.Query()
	q.Set("path", "api")
	q.Set("apiPath", endpoint)

	if c.config.VerbOverride {
		form.Set("_method", method)
		u.RawQuery = q.Encode()
		return newFormRequest(ctx, http.MethodPost, u.String(), form)
	}

	if method == http.MethodGet {
		for k, vs := range form {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}

	u.RawQuery = q.Encode()
	return newFormRequest(ctx, method, u.String(), form)
}

func newFormRequest(ctx context.Context, method, target string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// Status returns the current connection status
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}

	return Status{
		Connected: c.connected,
		LastError: errStr,
		LastSeen:  c.lastSeen,
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.connected = false
	c.lastError = err
	c.mu.Unlock()
}

// encodePayload flattens fields to form values. Nil values are skipped and
// object-valued fields travel as JSON text.
func encodePayload(p Payload) (url.Values, error) {
	form := url.Values{}
	for k, v := range p {
		s, ok, err := formValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if ok {
			form.Set(k, s)
		}
	}
	return form, nil
}

func formValue(v any) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case decimal.Decimal:
		return t.String(), true, nil
	case json.Number:
		return t.String(), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case int:
		return strconv.Itoa(t), true, nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}
}
