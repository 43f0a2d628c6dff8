package views

import (
	"fmt"
	"strconv"

	"github.com/jetsetgo/warehouse-console/internal/records"
)

// Counter is a dashboard statistic.
type Counter struct {
	ID    string
	Label string
	Value int
}

// Activity is one line of the recent-activity feed.
type Activity struct {
	Icon string
	Text string
	Date string
}

// StockWarning is one low-stock card.
type StockWarning struct {
	Name   string
	Detail string
}

// Dashboard is the rendered dashboard.
type Dashboard struct {
	Counters      []Counter
	Activity      []Activity
	ActivityEmpty string
	LowStock      []StockWarning
	LowStockEmpty string
}

// RenderDashboard lays out counters, recent activity (inbound first, then
// outbound) and the low-stock list.
func RenderDashboard(d records.Dashboard) Dashboard {
	v := Dashboard{
		Counters: []Counter{
			{ID: "totalProducts", Label: "Total products", Value: d.TotalProducts},
			{ID: "totalInventory", Label: "Total inventory", Value: d.TotalInventory},
			{ID: "lowStockCount", Label: "Low stock items", Value: d.LowStockItems},
			{ID: "monthlyTransactions", Label: "Transactions this month", Value: d.MonthlyTransactions()},
		},
		ActivityEmpty: "No activity this month",
		LowStockEmpty: "No low stock items",
	}

	for _, m := range d.RecentInbound {
		v.Activity = append(v.Activity, Activity{
			Icon: "fa-truck",
			Text: fmt.Sprintf("Inbound %s × %s", m.Label(), m.Quantity),
			Date: formatDate(m.Date, dateTimeFormat),
		})
	}
	for _, m := range d.RecentOutbound {
		v.Activity = append(v.Activity, Activity{
			Icon: "fa-shipping-fast",
			Text: fmt.Sprintf("Outbound %s × %s", m.Label(), m.Quantity),
			Date: formatDate(m.Date, dateTimeFormat),
		})
	}

	for _, it := range d.LowStock {
		name := it.ProductName
		if name == "" {
			name = it.ProductID
		}
		if name == "" {
			name = "—"
		}
		v.LowStock = append(v.LowStock, StockWarning{
			Name:   name,
			Detail: "Stock: " + strconv.Itoa(it.CurrentStock) + " / Min: " + strconv.Itoa(it.MinStock),
		})
	}
	return v
}
