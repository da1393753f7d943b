package model

// Account is a signed-in identity account.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Tenant is one directory tenant an account belongs to.
type Tenant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Subscription is one cloud subscription visible to a signed-in account.
type Subscription struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	TenantID    string `json:"tenantId"`

	// Loaded is set once this subscription's servers have been fetched
	// successfully. A failed fetch leaves it false.
	Loaded bool `json:"loaded"`
}

// Server is one connectable cloud-hosted server.
type Server struct {
	Name           string `json:"name"`
	FullName       string `json:"fullName"`
	ResourceGroup  string `json:"resourceGroup,omitempty"`
	SubscriptionID string `json:"subscriptionId"`
	Location       string `json:"location,omitempty"`
}

// GroupSubscriptionsByTenant buckets subscriptions by tenant ID, preserving
// the input order within each bucket. Tenants with no subscriptions produce
// no bucket.
func GroupSubscriptionsByTenant(subs []Subscription) map[string][]Subscription {
	groups := make(map[string][]Subscription)
	for _, sub := range subs {
		groups[sub.TenantID] = append(groups[sub.TenantID], sub)
	}
	return groups
}
