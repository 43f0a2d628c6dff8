package views

import "github.com/jetsetgo/warehouse-console/internal/config"

// PageDashboard is the landing tab.
const PageDashboard = config.EndpointDashboard

// Tab is one navigation entry.
type Tab struct {
	Page   string
	Label  string
	Icon   string
	Active bool
}

var tabs = []Tab{
	{Page: config.EndpointDashboard, Label: "Dashboard", Icon: "fa-tachometer-alt"},
	{Page: config.EndpointProducts, Label: "Products", Icon: "fa-box"},
	{Page: config.EndpointInventory, Label: "Inventory", Icon: "fa-warehouse"},
	{Page: config.EndpointInbound, Label: "Inbound", Icon: "fa-truck"},
	{Page: config.EndpointOutbound, Label: "Outbound", Icon: "fa-shipping-fast"},
	{Page: config.EndpointSuppliers, Label: "Suppliers", Icon: "fa-industry"},
	{Page: config.EndpointCustomers, Label: "Customers", Icon: "fa-users"},
}

// Tabs returns the navigation with active marked.
func Tabs(active string) []Tab {
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	for i := range out {
		out[i].Active = out[i].Page == active
	}
	return out
}

// IsPage reports whether page is one of the tabs.
func IsPage(page string) bool {
	for _, t := range tabs {
		if t.Page == page {
			return true
		}
	}
	return false
}

// Login is the rendered login page.
type Login struct {
	Username      string
	Remember      bool
	UsernameError string
	PasswordError string
	Locked        bool
	LockedFor     string
}

// Password is the rendered change-password form.
type Password struct {
	IsAdmin bool
	Message string
	Error   string
}
