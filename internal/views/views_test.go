package views

import (
	"testing"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/records"
)

func TestTablesAreTotal(t *testing.T) {
	empty := []records.Row{{}}
	for _, resource := range []string{
		config.EndpointProducts,
		config.EndpointInventory,
		config.EndpointInbound,
		config.EndpointOutbound,
		config.EndpointSuppliers,
		config.EndpointCustomers,
	} {
		table, ok := TableFor(resource, empty, true)
		if !ok {
			t.Fatalf("TableFor(%s) not found", resource)
		}
		if len(table.Rows) != 1 {
			t.Fatalf("%s: rows = %d", resource, len(table.Rows))
		}
		row := table.Rows[0]
		if len(row.Cells) != len(table.Columns) {
			t.Errorf("%s: %d cells for %d columns", resource, len(row.Cells), len(table.Columns))
		}
		for i, c := range row.Cells {
			if c.Text != "" && c.Text != "0" {
				t.Errorf("%s: cell %d = %q, want blank or zero", resource, i, c.Text)
			}
		}
		if row.Delete != nil {
			t.Errorf("%s: delete offered for a row without a key", resource)
		}
	}

	if _, ok := TableFor("users", nil, true); ok {
		t.Error("unknown resource should not render")
	}
}

func TestProductsTable(t *testing.T) {
	rows := []records.Row{{
		"商品ID": "P-001", "商品名稱": "Widget", "商品分類": "Tools",
		"成本價": 10, "售價": "15.5",
	}}

	table := ProductsTable(rows, true)
	cells := table.Rows[0].Cells
	want := []string{"P-001", "Widget", "Tools", "", "10", "15.5"}
	for i, w := range want {
		if cells[i].Text != w {
			t.Errorf("cell %d = %q, want %q", i, cells[i].Text, w)
		}
	}
	del := table.Rows[0].Delete
	if del == nil || del.Field != "商品ID" || del.Value != "P-001" || del.Resource != "products" {
		t.Errorf("delete = %+v", del)
	}

	readOnly := ProductsTable(rows, false)
	if readOnly.CanCreate || readOnly.Rows[0].Delete != nil {
		t.Error("users without the permission get no actions")
	}
}

func TestInventoryHighlightsLowStock(t *testing.T) {
	rows := []records.Row{
		{"商品ID": "A", "當前庫存": "2", "最低庫存": 5, "最後更新日期": "2024-05-01T10:00:00Z"},
		{"商品ID": "B", "當前庫存": 45, "最低庫存": 5},
	}
	table := InventoryTable(rows)

	if c := table.Rows[0].Cells[2]; c.Text != "2" || c.Class != ClassDanger {
		t.Errorf("low row = %+v", c)
	}
	if c := table.Rows[1].Cells[2]; c.Text != "45" || c.Class != ClassSuccess {
		t.Errorf("ok row = %+v", c)
	}
	if got := table.Rows[0].Cells[6].Text; got != "2024-05-01 10:00:00" {
		t.Errorf("updated = %q", got)
	}
}

func TestMovementTableFallsBackToPartyID(t *testing.T) {
	table := OutboundTable([]records.Row{{"出貨單號": "OUT-9", "客戶ID": "C7", "出貨數量": 5}}, true)
	cells := table.Rows[0].Cells
	if cells[2].Text != "C7" || cells[3].Text != "5" {
		t.Errorf("cells = %+v", cells)
	}
	if d := table.Rows[0].Delete; d == nil || d.Field != "出貨單號" {
		t.Errorf("delete = %+v", d)
	}
}

func TestPaginate(t *testing.T) {
	table := Table{}
	for i := 0; i < 25; i++ {
		table.Rows = append(table.Rows, Row{})
	}

	tests := []struct {
		page, size     int
		wantPage, rows int
		pages          int
	}{
		{1, 10, 1, 10, 3},
		{3, 10, 3, 5, 3},
		{9, 10, 3, 5, 3},
		{0, 10, 1, 10, 3},
		{1, 0, 1, 25, 1},
	}
	for _, tt := range tests {
		got := table.Paginate(tt.page, tt.size)
		if got.Pager.Page != tt.wantPage || len(got.Rows) != tt.rows || got.Pager.Pages != tt.pages {
			t.Errorf("Paginate(%d,%d) = page %d rows %d pages %d", tt.page, tt.size, got.Pager.Page, len(got.Rows), got.Pager.Pages)
		}
	}

	if p := (Table{}).Paginate(1, 10).Pager; p.Pages != 1 || p.HasNext() || p.HasPrev() {
		t.Errorf("empty pager = %+v", p)
	}
}

func TestRenderDashboard(t *testing.T) {
	d := records.Dashboard{
		TotalProducts: 12,
		InboundCount:  3,
		OutboundCount: 4,
		RecentInbound: []records.Movement{{ProductName: "Widget", Quantity: "10",
			Date: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}},
		RecentOutbound: []records.Movement{{ProductID: "P-2", Quantity: "5"}},
		LowStock:       []records.InventoryItem{{CurrentStock: 1, MinStock: 5}},
	}

	v := RenderDashboard(d)
	if v.Counters[0].Value != 12 || v.Counters[3].Value != 7 {
		t.Errorf("counters = %+v", v.Counters)
	}
	if len(v.Activity) != 2 || v.Activity[0].Text != "Inbound Widget × 10" || v.Activity[1].Text != "Outbound P-2 × 5" {
		t.Errorf("activity = %+v", v.Activity)
	}
	if v.Activity[0].Date != "2024-05-01 09:30:00" || v.Activity[1].Date != "" {
		t.Errorf("dates = %q %q", v.Activity[0].Date, v.Activity[1].Date)
	}
	if len(v.LowStock) != 1 || v.LowStock[0].Name != "—" || v.LowStock[0].Detail != "Stock: 1 / Min: 5" {
		t.Errorf("low stock = %+v", v.LowStock)
	}

	blank := RenderDashboard(records.Dashboard{})
	if len(blank.Activity) != 0 || blank.ActivityEmpty == "" || blank.LowStockEmpty == "" {
		t.Errorf("blank = %+v", blank)
	}
}

func TestInboundFormOptionsFromCache(t *testing.T) {
	form := InboundForm(FormInput{
		Products:  []records.Row{{"商品ID": "P1", "商品名稱": "Widget"}, {"商品名稱": "no id"}},
		Suppliers: []records.Row{{"供應商ID": "S1"}},
		Values:    map[string]string{"進貨數量": "3"},
		Errors:    map[string]string{"單價": "Unit price must be 0 or more"},
	})

	if got := form.Fields[0].Options; len(got) != 1 || got[0] != (Option{Value: "P1", Label: "Widget"}) {
		t.Errorf("product options = %+v", got)
	}
	if got := form.Fields[1].Options; len(got) != 1 || got[0].Label != "S1" {
		t.Errorf("supplier options = %+v", got)
	}
	if form.Fields[2].Value != "3" || form.Fields[3].Error == "" {
		t.Errorf("fields = %+v", form.Fields)
	}
}

func TestProductFormAutoID(t *testing.T) {
	if !ProductForm(FormInput{}).Fields[0].Checked {
		t.Error("auto-generate is on by default")
	}
	resubmitted := ProductForm(FormInput{Values: map[string]string{"商品ID": "abc"}})
	if resubmitted.Fields[0].Checked || resubmitted.Fields[1].Value != "abc" {
		t.Errorf("fields = %+v", resubmitted.Fields[:2])
	}
	if _, ok := FormFor(config.EndpointInventory, FormInput{}); ok {
		t.Error("inventory has no create form")
	}
}

func TestTabs(t *testing.T) {
	got := Tabs("inbound")
	if len(got) != 7 {
		t.Fatalf("tabs = %d", len(got))
	}
	active := 0
	for _, tab := range got {
		if tab.Active {
			active++
			if tab.Page != "inbound" {
				t.Errorf("active = %s", tab.Page)
			}
		}
	}
	if active != 1 || !IsPage("customers") || IsPage("users") {
		t.Error("tab lookup broken")
	}
}
