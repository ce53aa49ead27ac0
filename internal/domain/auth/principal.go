package auth

// Kind discriminates the principal variants.
type Kind int

const (
	// KindAnonymous is an unauthenticated caller.
	KindAnonymous Kind = iota
	// KindCustomer is a storefront customer authenticated by session token.
	KindCustomer
	// KindAdmin is a back-office actor authenticated by API key.
	KindAdmin
)

// Principal identifies the authenticated caller of a request. It replaces
// ad-hoc role probing with one explicit value checked per operation.
type Principal struct {
	Kind Kind
	// CustomerID is set only for KindCustomer.
	CustomerID string
	// AdminName is the API key name, set only for KindAdmin.
	AdminName string
}

// Anonymous is the principal of an unauthenticated request.
var Anonymous = Principal{Kind: KindAnonymous}

// CustomerPrincipal builds the principal for an authenticated customer.
func CustomerPrincipal(customerID string) Principal {
	return Principal{Kind: KindCustomer, CustomerID: customerID}
}

// AdminPrincipal builds the principal for an authenticated admin actor.
func AdminPrincipal(name string) Principal {
	return Principal{Kind: KindAdmin, AdminName: name}
}

// CanManageOrders reports whether the caller may perform admin order
// operations (status updates, unrestricted listing).
func (p Principal) CanManageOrders() bool {
	return p.Kind == KindAdmin
}

// CanManageStore reports whether the caller may mutate store configuration.
func (p Principal) CanManageStore() bool {
	return p.Kind == KindAdmin
}

// CanActFor reports whether the caller may read or mutate data belonging to
// the given customer.
func (p Principal) CanActFor(customerID string) bool {
	switch p.Kind {
	case KindAdmin:
		return true
	case KindCustomer:
		return customerID != "" && p.CustomerID == customerID
	default:
		return false
	}
}
