// Package pages implements the console's page controllers: list fetches
// into the resource store, create and delete mutations, the dashboard, the
// change-password form and the startup preload.
//
// Every network-bound operation holds the loading indicator and releases it
// on every return path.
package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/records"
	"github.com/jetsetgo/warehouse-console/internal/session"
	"github.com/jetsetgo/warehouse-console/internal/store"
)

const networkError = "Network error, please try again later."

// Session is what the controllers need from the session manager.
type Session interface {
	Call(ctx context.Context, endpoint, method string, payload gateway.Payload) (*gateway.Response, error)
	RequireAuth() error
	RequirePermission(permission string) error
	HasPermission(permission string) bool
	User() (session.User, bool)
}

// Controller drives every page.
type Controller struct {
	sess    Session
	store   *store.Store
	loading *notify.Loading
	center  *notify.Center
	login   config.LoginConfig
}

// New creates the page controller.
func New(sess Session, st *store.Store, loading *notify.Loading, center *notify.Center, login config.LoginConfig) *Controller {
	return &Controller{
		sess:    sess,
		store:   st,
		loading: loading,
		center:  center,
		login:   login,
	}
}

// Store returns the resource cache.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Load fetches the resource list into the store. A fetch overtaken by a
// newer one returns ErrSuperseded and leaves the store alone.
func (c *Controller) Load(ctx context.Context, resource string) ([]records.Row, error) {
	if _, ok := Lookup(resource); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	if err := c.sess.RequireAuth(); err != nil {
		return nil, err
	}

	release := c.loading.Begin()
	defer release()

	return c.fetch(ctx, resource, false)
}

func (c *Controller) fetch(ctx context.Context, resource string, quiet bool) ([]records.Row, error) {
	fetchCtx, ticket := c.store.Begin(ctx, resource)

	resp, err := c.sess.Call(fetchCtx, resource, gateway.MethodGet, nil)
	if err != nil {
		if !c.store.Current(ticket) {
			c.store.Finish(ticket, "")
			return nil, ErrSuperseded
		}
		c.store.Finish(ticket, err.Error())
		if !quiet {
			c.center.Notify(notify.LevelError, "Failed to load "+resource, networkError)
		}
		return nil, fmt.Errorf("load %s: %w", resource, err)
	}

	if resp.Failed() {
		c.store.Finish(ticket, resp.Message())
		if resp.Code() == gateway.CodeAuthRequired {
			return nil, session.ErrNotLoggedIn
		}
		appErr := &AppError{Op: "load " + resource, Message: messageOr(resp, "Failed to load "+resource)}
		if !quiet {
			c.center.Notify(notify.LevelError, "Failed to load "+resource, appErr.Message)
		}
		return nil, appErr
	}

	rows := resp.List().Rows
	applied := c.store.Apply(ticket, rows)
	c.store.Finish(ticket, "")
	if !applied {
		return nil, ErrSuperseded
	}
	return rows, nil
}

// Create validates the submitted form, posts it and reloads whatever the
// mutation affects. Validation failures return ValidationErrors without
// contacting the remote service.
func (c *Controller) Create(ctx context.Context, resource string, form url.Values) error {
	res, ok := Lookup(resource)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	if res.ReadOnly() {
		return fmt.Errorf("%w: %s", ErrReadOnly, resource)
	}
	if err := c.sess.RequirePermission(res.Permission); err != nil {
		return err
	}

	payload, verrs := res.Parse(form)
	if len(verrs) > 0 {
		return verrs
	}

	release := c.loading.Begin()
	defer release()

	resp, err := c.sess.Call(ctx, resource, gateway.MethodPost, payload)
	if err != nil {
		c.center.Notify(notify.LevelError, "Failed to add "+res.Noun, networkError)
		return fmt.Errorf("create %s: %w", res.Noun, err)
	}
	if resp.Failed() {
		appErr := &AppError{Op: "create " + res.Noun, Message: messageOr(resp, "Failed to add "+res.Noun)}
		c.center.Notify(notify.LevelError, "Failed to add "+res.Noun, appErr.Message)
		return appErr
	}

	c.center.Notify(notify.LevelSuccess, "Saved", "")
	c.reload(ctx, res.Reloads...)
	return nil
}

// Delete removes one record by its key, sent in the request body. Without
// confirmation it returns ErrDeclined and sends nothing. A success:false
// reply does not reload the list.
func (c *Controller) Delete(ctx context.Context, resource, key string, confirmed bool) error {
	res, ok := Lookup(resource)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	if res.ReadOnly() {
		return fmt.Errorf("%w: %s", ErrReadOnly, resource)
	}
	if key == "" {
		return ErrMissingKey
	}
	if !confirmed {
		return ErrDeclined
	}
	if err := c.sess.RequirePermission(res.Permission); err != nil {
		return err
	}

	release := c.loading.Begin()
	defer release()

	resp, err := c.sess.Call(ctx, resource, gateway.MethodDelete, gateway.Payload{res.Key: key})
	if err != nil {
		c.center.Notify(notify.LevelError, "Failed to delete "+res.Noun, networkError)
		return fmt.Errorf("delete %s: %w", res.Noun, err)
	}
	if resp.Failed() {
		appErr := &AppError{Op: "delete " + res.Noun, Message: messageOr(resp, "Failed to delete "+res.Noun)}
		c.center.Notify(notify.LevelError, "Failed to delete "+res.Noun, appErr.Message)
		return appErr
	}

	c.center.Notify(notify.LevelSuccess, "Deleted", "")
	c.reload(ctx, resource)
	return nil
}

// reload refreshes resources one after another; each failure has already
// been reported.
func (c *Controller) reload(ctx context.Context, resources ...string) {
	for _, r := range resources {
		if _, err := c.fetch(ctx, r, false); err != nil && !errors.Is(err, ErrSuperseded) {
			c.center.LogWarn("Reload of %s failed: %v", r, err)
		}
	}
}

// Preload fills the store with the lists the inbound and outbound forms
// draw their dropdowns from. Failures are logged and otherwise ignored.
func (c *Controller) Preload(ctx context.Context) {
	if c.sess.RequireAuth() != nil {
		return
	}

	var g errgroup.Group
	for _, r := range []string{config.EndpointProducts, config.EndpointSuppliers, config.EndpointCustomers} {
		g.Go(func() error {
			_, err := c.fetch(ctx, r, true)
			return err
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, ErrSuperseded) {
		c.center.LogWarn("Preload failed (ignored): %v", err)
	}
}

// CanManage reports whether the current user may mutate resource.
func (c *Controller) CanManage(resource string) bool {
	res, ok := Lookup(resource)
	if !ok || res.ReadOnly() {
		return false
	}
	return c.sess.HasPermission(res.Permission)
}

func messageOr(resp *gateway.Response, fallback string) string {
	if msg := resp.Message(); msg != "" {
		return msg
	}
	return fallback
}
