package pages

import (
	"net/url"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/records"
	"github.com/jetsetgo/warehouse-console/internal/session"
)

// Resource describes one list page and its mutations.
type Resource struct {
	Name       string
	Noun       string
	Key        string
	Permission string
	// Reloads lists what a successful create refreshes, the resource itself first.
	Reloads []string
	Parse   func(url.Values) (gateway.Payload, ValidationErrors)
}

// ReadOnly reports whether the resource has no create or delete.
func (r Resource) ReadOnly() bool {
	return r.Parse == nil
}

var resources = map[string]Resource{
	config.EndpointProducts: {
		Name:       config.EndpointProducts,
		Noun:       "product",
		Key:        records.FieldProductID,
		Permission: session.PermProductsManage,
		Reloads:    []string{config.EndpointProducts},
		Parse:      ParseProduct,
	},
	config.EndpointInventory: {
		Name:       config.EndpointInventory,
		Noun:       "inventory",
		Permission: session.PermInventoryManage,
	},
	config.EndpointInbound: {
		Name:       config.EndpointInbound,
		Noun:       "inbound record",
		Key:        records.FieldInboundNo,
		Permission: session.PermInboundManage,
		Reloads:    []string{config.EndpointInbound, config.EndpointInventory},
		Parse:      ParseInbound,
	},
	config.EndpointOutbound: {
		Name:       config.EndpointOutbound,
		Noun:       "outbound record",
		Key:        records.FieldOutboundNo,
		Permission: session.PermOutboundManage,
		Reloads:    []string{config.EndpointOutbound, config.EndpointInventory},
		Parse:      ParseOutbound,
	},
	config.EndpointSuppliers: {
		Name:       config.EndpointSuppliers,
		Noun:       "supplier",
		Key:        records.FieldSupplierID,
		Permission: session.PermSuppliersManage,
		Reloads:    []string{config.EndpointSuppliers},
		Parse:      ParseSupplier,
	},
	config.EndpointCustomers: {
		Name:       config.EndpointCustomers,
		Noun:       "customer",
		Key:        records.FieldCustomerID,
		Permission: session.PermCustomersManage,
		Reloads:    []string{config.EndpointCustomers},
		Parse:      ParseCustomer,
	},
}

// Lookup returns the resource registered under name.
func Lookup(name string) (Resource, bool) {
	r, ok := resources[name]
	return r, ok
}
