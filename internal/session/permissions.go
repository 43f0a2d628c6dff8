package session

// Permission keys checked by the console.
const (
	PermUsersManage     = "users.manage"
	PermProductsManage  = "products.manage"
	PermInventoryManage = "inventory.manage"
	PermInboundManage   = "inbound.manage"
	PermOutboundManage  = "outbound.manage"
	PermSuppliersManage = "suppliers.manage"
	PermCustomersManage = "customers.manage"
	PermReportsView     = "reports.view"
)

// RoleAdmin is granted every permission.
const RoleAdmin = "admin"

var permissions = map[string][]string{
	PermUsersManage:     {"admin"},
	PermProductsManage:  {"admin", "manager"},
	PermInventoryManage: {"admin", "manager", "operator"},
	PermInboundManage:   {"admin", "manager", "operator"},
	PermOutboundManage:  {"admin", "manager", "operator"},
	PermSuppliersManage: {"admin", "manager"},
	PermCustomersManage: {"admin", "manager"},
	PermReportsView:     {"admin", "manager", "operator"},
}

// RoleAllowed reports whether role holds permission. Unknown keys grant nothing.
func RoleAllowed(role, permission string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, r := range permissions[permission] {
		if r == role {
			return true
		}
	}
	return false
}
