// Package views turns records into view descriptions. Every function here is
// pure and total: a row with no fields renders as blanks and zeros.
package views

import (
	"strconv"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/records"
)

// Cell classes
const (
	ClassDanger  = "text-danger"
	ClassSuccess = "text-success"
)

const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02 15:04:05"
)

// Cell is one table cell.
type Cell struct {
	Text  string
	Class string
}

// Action is a row-level delete. Field is the identifying column sent in the
// request body.
type Action struct {
	Label    string
	Resource string
	Field    string
	Value    string
}

// Row is one rendered record.
type Row struct {
	Cells  []Cell
	Delete *Action
}

// Pager describes the visible slice of a table.
type Pager struct {
	Page  int
	Size  int
	Total int
	Pages int
}

// HasPrev reports whether an earlier page exists.
func (p Pager) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a later page exists.
func (p Pager) HasNext() bool { return p.Page < p.Pages }

// Table is a rendered resource list.
type Table struct {
	Resource    string
	Title       string
	Columns     []string
	Rows        []Row
	Empty       string
	CreateLabel string
	CanCreate   bool
	Pager       Pager
}

// Paginate returns the rows of the given 1-based page. Out-of-range pages
// clamp to the nearest valid one.
func (t Table) Paginate(page, size int) Table {
	total := len(t.Rows)
	if size <= 0 {
		size = total
	}
	pages := 1
	if size > 0 && total > 0 {
		pages = (total + size - 1) / size
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	out := t
	out.Rows = t.Rows[start:end]
	out.Pager = Pager{Page: page, Size: size, Total: total, Pages: pages}
	return out
}

func text(s string) Cell { return Cell{Text: s} }

func intCell(n int) Cell { return Cell{Text: strconv.Itoa(n)} }

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func deleteAction(resource, field, value string) *Action {
	if value == "" {
		return nil
	}
	return &Action{Label: "Delete", Resource: resource, Field: field, Value: value}
}

// ProductsTable renders the product catalogue.
func ProductsTable(rows []records.Row, canManage bool) Table {
	t := Table{
		Resource:    config.EndpointProducts,
		Title:       "Products",
		Columns:     []string{"Product ID", "Name", "Category", "Spec", "Cost", "Price"},
		Empty:       "No products",
		CreateLabel: "Add product",
		CanCreate:   canManage,
	}
	for _, p := range records.Map(rows, records.NewProduct) {
		cost, price := "", ""
		if p.HasCost {
			cost = p.CostPrice.String()
		}
		if p.HasPrice {
			price = p.SellingPrice.String()
		}
		r := Row{Cells: []Cell{text(p.ID), text(p.Name), text(p.Category), text(p.Spec), text(cost), text(price)}}
		if canManage {
			r.Delete = deleteAction(t.Resource, records.FieldProductID, p.ID)
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// InventoryTable renders stock levels. The current stock cell is flagged
// when it is below the minimum.
func InventoryTable(rows []records.Row) Table {
	t := Table{
		Resource: config.EndpointInventory,
		Title:    "Inventory",
		Columns:  []string{"Product ID", "Name", "Current stock", "Available", "Reserved", "Status", "Last updated"},
		Empty:    "No inventory records",
	}
	for _, it := range records.Map(rows, records.NewInventoryItem) {
		stock := intCell(it.CurrentStock)
		stock.Class = ClassSuccess
		if it.LowStock() {
			stock.Class = ClassDanger
		}
		t.Rows = append(t.Rows, Row{Cells: []Cell{
			text(it.ProductID),
			text(it.ProductName),
			stock,
			text(it.Available),
			text(it.Reserved),
			text(it.Status),
			text(formatDate(it.UpdatedAt, dateTimeFormat)),
		}})
	}
	return t
}

func movementRow(m records.Movement) []Cell {
	return []Cell{
		text(m.Number),
		text(m.ProductName),
		text(m.Party()),
		text(m.Quantity),
		text(m.UnitPrice),
		text(m.TotalAmount),
		text(formatDate(m.Date, dateFormat)),
	}
}

// InboundTable renders goods receipts.
func InboundTable(rows []records.Row, canManage bool) Table {
	t := Table{
		Resource:    config.EndpointInbound,
		Title:       "Inbound",
		Columns:     []string{"Inbound No.", "Product", "Supplier", "Quantity", "Unit price", "Total", "Date"},
		Empty:       "No inbound records",
		CreateLabel: "Add inbound",
		CanCreate:   canManage,
	}
	for _, m := range records.Map(rows, records.NewInbound) {
		r := Row{Cells: movementRow(m)}
		if canManage {
			r.Delete = deleteAction(t.Resource, records.FieldInboundNo, m.Number)
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// OutboundTable renders shipments.
func OutboundTable(rows []records.Row, canManage bool) Table {
	t := Table{
		Resource:    config.EndpointOutbound,
		Title:       "Outbound",
		Columns:     []string{"Outbound No.", "Product", "Customer", "Quantity", "Unit price", "Total", "Date"},
		Empty:       "No outbound records",
		CreateLabel: "Add outbound",
		CanCreate:   canManage,
	}
	for _, m := range records.Map(rows, records.NewOutbound) {
		r := Row{Cells: movementRow(m)}
		if canManage {
			r.Delete = deleteAction(t.Resource, records.FieldOutboundNo, m.Number)
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

func contactTable(resource, title, idColumn, nameColumn, idField, createLabel string, contacts []records.Contact, canManage bool) Table {
	t := Table{
		Resource:    resource,
		Title:       title,
		Columns:     []string{idColumn, nameColumn, "Contact", "Phone", "Address"},
		Empty:       "No " + resource,
		CreateLabel: createLabel,
		CanCreate:   canManage,
	}
	for _, c := range contacts {
		r := Row{Cells: []Cell{text(c.ID), text(c.Name), text(c.Person), text(c.Phone), text(c.Address)}}
		if canManage {
			r.Delete = deleteAction(resource, idField, c.ID)
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// SuppliersTable renders suppliers.
func SuppliersTable(rows []records.Row, canManage bool) Table {
	return contactTable(config.EndpointSuppliers, "Suppliers", "Supplier ID", "Supplier",
		records.FieldSupplierID, "Add supplier", records.Map(rows, records.NewSupplier), canManage)
}

// CustomersTable renders customers.
func CustomersTable(rows []records.Row, canManage bool) Table {
	return contactTable(config.EndpointCustomers, "Customers", "Customer ID", "Customer",
		records.FieldCustomerID, "Add customer", records.Map(rows, records.NewCustomer), canManage)
}

// TableFor dispatches on the resource name.
func TableFor(resource string, rows []records.Row, canManage bool) (Table, bool) {
	switch resource {
	case config.EndpointProducts:
		return ProductsTable(rows, canManage), true
	case config.EndpointInventory:
		return InventoryTable(rows), true
	case config.EndpointInbound:
		return InboundTable(rows, canManage), true
	case config.EndpointOutbound:
		return OutboundTable(rows, canManage), true
	case config.EndpointSuppliers:
		return SuppliersTable(rows, canManage), true
	case config.EndpointCustomers:
		return CustomersTable(rows, canManage), true
	}
	return Table{}, false
}
