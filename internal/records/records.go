package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// Spreadsheet column names used by the remote service.
const (
	FieldProductID     = "商品ID"
	FieldProductName   = "商品名稱"
	FieldCategory      = "商品分類"
	FieldSpec          = "規格"
	FieldUnit          = "單位"
	FieldCostPrice     = "成本價"
	FieldSellingPrice  = "售價"
	FieldMinStock      = "最低庫存"
	FieldMaxStock      = "最高庫存"
	FieldNotes         = "備註"
	FieldCurrentStock  = "當前庫存"
	FieldAvailable     = "可用庫存"
	FieldReserved      = "預留庫存"
	FieldStatus        = "狀態"
	FieldUpdatedAt     = "最後更新日期"
	FieldInboundNo     = "進貨單號"
	FieldInboundQty    = "進貨數量"
	FieldInboundDate   = "進貨日期"
	FieldOutboundNo    = "出貨單號"
	FieldOutboundQty   = "出貨數量"
	FieldOutboundDate  = "出貨日期"
	FieldUnitPrice     = "單價"
	FieldTotalAmount   = "總金額"
	FieldSupplierID    = "供應商ID"
	FieldSupplierName  = "供應商名稱"
	FieldCustomerID    = "客戶ID"
	FieldCustomerName  = "客戶名稱"
	FieldContactPerson = "聯絡人"
	FieldPhone         = "電話"
	FieldAddress       = "地址"
)

// Product is a catalogue entry.
type Product struct {
	ID           string
	Name         string
	Category     string
	Spec         string
	Unit         string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	HasCost      bool
	HasPrice     bool
	MinStock     int
	MaxStock     int
	Notes        string
}

// NewProduct projects a product row.
func NewProduct(r Row) Product {
	return Product{
		ID:           r.String(FieldProductID),
		Name:         r.String(FieldProductName),
		Category:     r.String(FieldCategory),
		Spec:         r.String(FieldSpec),
		Unit:         r.String(FieldUnit),
		CostPrice:    r.Decimal(FieldCostPrice),
		SellingPrice: r.Decimal(FieldSellingPrice),
		HasCost:      r.Has(FieldCostPrice),
		HasPrice:     r.Has(FieldSellingPrice),
		MinStock:     r.Int(FieldMinStock),
		MaxStock:     r.Int(FieldMaxStock),
		Notes:        r.String(FieldNotes),
	}
}

// InventoryItem is the stock level of one product.
type InventoryItem struct {
	ProductID    string
	ProductName  string
	CurrentStock int
	MinStock     int
	Available    string
	Reserved     string
	Status       string
	UpdatedAt    time.Time
}

// NewInventoryItem projects an inventory row.
func NewInventoryItem(r Row) InventoryItem {
	return InventoryItem{
		ProductID:    r.String(FieldProductID),
		ProductName:  r.String(FieldProductName),
		CurrentStock: r.Int(FieldCurrentStock),
		MinStock:     r.Int(FieldMinStock),
		Available:    r.String(FieldAvailable),
		Reserved:     r.String(FieldReserved),
		Status:       r.String(FieldStatus),
		UpdatedAt:    r.Time(FieldUpdatedAt),
	}
}

// LowStock reports whether the current quantity is below the minimum threshold.
func (i InventoryItem) LowStock() bool {
	return i.CurrentStock < i.MinStock
}

// Movement is a single inbound receipt or outbound shipment.
type Movement struct {
	Number      string
	ProductID   string
	ProductName string
	PartyID     string
	PartyName   string
	Quantity    string
	UnitPrice   string
	TotalAmount string
	Date        time.Time
	Notes       string
}

// Party returns the counterparty's name, falling back to its ID.
func (m Movement) Party() string {
	if m.PartyName != "" {
		return m.PartyName
	}
	return m.PartyID
}

// Label is the product shown in activity feeds.
func (m Movement) Label() string {
	if m.ProductName != "" {
		return m.ProductName
	}
	return m.ProductID
}

// NewInbound projects an inbound row.
func NewInbound(r Row) Movement {
	return Movement{
		Number:      r.String(FieldInboundNo),
		ProductID:   r.String(FieldProductID),
		ProductName: r.String(FieldProductName),
		PartyID:     r.String(FieldSupplierID),
		PartyName:   r.String(FieldSupplierName),
		Quantity:    r.String(FieldInboundQty),
		UnitPrice:   r.String(FieldUnitPrice),
		TotalAmount: r.String(FieldTotalAmount),
		Date:        r.Time(FieldInboundDate),
		Notes:       r.String(FieldNotes),
	}
}

// NewOutbound projects an outbound row.
func NewOutbound(r Row) Movement {
	return Movement{
		Number:      r.String(FieldOutboundNo),
		ProductID:   r.String(FieldProductID),
		ProductName: r.String(FieldProductName),
		PartyID:     r.String(FieldCustomerID),
		PartyName:   r.String(FieldCustomerName),
		Quantity:    r.String(FieldOutboundQty),
		UnitPrice:   r.String(FieldUnitPrice),
		TotalAmount: r.String(FieldTotalAmount),
		Date:        r.Time(FieldOutboundDate),
		Notes:       r.String(FieldNotes),
	}
}

// Contact is a supplier or a customer.
type Contact struct {
	ID      string
	Name    string
	Person  string
	Phone   string
	Address string
	Notes   string
}

// NewSupplier projects a supplier row.
func NewSupplier(r Row) Contact {
	return Contact{
		ID:      r.String(FieldSupplierID),
		Name:    r.String(FieldSupplierName),
		Person:  r.String(FieldContactPerson),
		Phone:   r.String(FieldPhone),
		Address: r.String(FieldAddress),
		Notes:   r.String(FieldNotes),
	}
}

// NewCustomer projects a customer row.
func NewCustomer(r Row) Contact {
	return Contact{
		ID:      r.String(FieldCustomerID),
		Name:    r.String(FieldCustomerName),
		Person:  r.String(FieldContactPerson),
		Phone:   r.String(FieldPhone),
		Address: r.String(FieldAddress),
		Notes:   r.String(FieldNotes),
	}
}

// Dashboard aggregates the dashboard endpoint's response.
type Dashboard struct {
	TotalProducts  int
	TotalInventory int
	LowStockItems  int
	InboundCount   int
	OutboundCount  int
	RecentInbound  []Movement
	RecentOutbound []Movement
	LowStock       []InventoryItem
}

// MonthlyTransactions is inbound plus outbound for the current month.
func (d Dashboard) MonthlyTransactions() int {
	return d.InboundCount + d.OutboundCount
}

// NewDashboard assembles the dashboard from the response's parts.
func NewDashboard(summary, monthly Row, inbound, outbound, low []Row) Dashboard {
	d := Dashboard{
		TotalProducts:  summary.Int("totalProducts"),
		TotalInventory: summary.Int("totalInventory"),
		LowStockItems:  summary.Int("lowStockItems"),
		InboundCount:   monthly.Int("inboundCount"),
		OutboundCount:  monthly.Int("outboundCount"),
	}
	for _, r := range inbound {
		d.RecentInbound = append(d.RecentInbound, NewInbound(r))
	}
	for _, r := range outbound {
		d.RecentOutbound = append(d.RecentOutbound, NewOutbound(r))
	}
	for _, r := range low {
		d.LowStock = append(d.LowStock, NewInventoryItem(r))
	}
	return d
}

// Map applies project to every row.
func Map[T any](rows []Row, project func(Row) T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, project(r))
	}
	return out
}
