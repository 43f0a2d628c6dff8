package pages

import (
	"context"
	"fmt"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/records"
	"github.com/jetsetgo/warehouse-console/internal/session"
)

// Dashboard fetches the dashboard aggregate.
func (c *Controller) Dashboard(ctx context.Context) (records.Dashboard, error) {
	if err := c.sess.RequireAuth(); err != nil {
		return records.Dashboard{}, err
	}

	release := c.loading.Begin()
	defer release()

	resp, err := c.sess.Call(ctx, config.EndpointDashboard, gateway.MethodGet, nil)
	if err != nil {
		c.center.Notify(notify.LevelError, "Failed to load dashboard", networkError)
		return records.Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	if resp.Failed() {
		if resp.Code() == gateway.CodeAuthRequired {
			return records.Dashboard{}, session.ErrNotLoggedIn
		}
		appErr := &AppError{Op: "load dashboard", Message: messageOr(resp, "Failed to load dashboard data")}
		c.center.Notify(notify.LevelError, "Failed to load dashboard", appErr.Message)
		return records.Dashboard{}, appErr
	}

	return records.NewDashboard(
		resp.Object("summary"),
		resp.Object("monthlyStats"),
		resp.Rows("recentInbound"),
		resp.Rows("recentOutbound"),
		resp.Rows("lowStockInventory"),
	), nil
}
