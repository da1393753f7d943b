package model

// InputMode selects which field set of the dialog is active.
type InputMode string

const (
	InputModeParameters       InputMode = "parameters"
	InputModeConnectionString InputMode = "connectionString"
	InputModeAzureBrowse      InputMode = "azureBrowse"
)

// AsyncStatus tracks one remote resource's load state.
type AsyncStatus string

const (
	StatusNotStarted AsyncStatus = "notStarted"
	StatusLoading    AsyncStatus = "loading"
	StatusLoaded     AsyncStatus = "loaded"
	StatusError      AsyncStatus = "error"
)

// RecoveryKind tags the active recovery sub-dialog.
type RecoveryKind string

const (
	RecoveryNone      RecoveryKind = ""
	RecoveryTrustCert RecoveryKind = "trustCertificate"
	RecoveryFirewall  RecoveryKind = "addFirewallRule"
)

// RecoveryDialog describes the active recovery sub-flow, if any. At most one
// recovery dialog is active at a time; clearing it restores normal connect
// availability.
type RecoveryDialog struct {
	Kind RecoveryKind `json:"kind"`

	// Message is the provider error that triggered the recovery.
	Message string `json:"message,omitempty"`

	// Firewall-specific fields.
	ClientIP   string   `json:"clientIp,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Tenants    []Tenant `json:"tenants,omitempty"`
}

// ListedProfile is one saved or recently used connection.
type ListedProfile struct {
	Profile *ConnectionProfile `json:"profile"`
	Recent  bool               `json:"recent"`
}

// DialogSession is the single mutable state of one open connection dialog.
// It is owned by the dialog controller; every other component sees read
// snapshots only.
type DialogSession struct {
	ID        string
	Profile   *ConnectionProfile
	InputMode InputMode
	Schema    *FormSchema

	Saved  []ListedProfile
	Recent []ListedProfile

	ConnectionStatus   AsyncStatus
	SubscriptionStatus AsyncStatus
	ServerStatus       AsyncStatus

	FormError string
	Recovery  RecoveryDialog

	Accounts      []Account
	Tenants       []Tenant
	Subscriptions []Subscription
	Servers       []Server

	// EditingExisting is set when the dialog was opened on a saved connection,
	// so a successful connect replaces the old profile and its session node.
	EditingExisting bool
	OriginalName    string
}

// SessionSnapshot is the read-only view returned to the host UI after every
// action.
type SessionSnapshot struct {
	ID                 string             `json:"id"`
	Profile            map[string]any     `json:"profile"`
	InputMode          InputMode          `json:"inputMode"`
	Schema             *FormSchema        `json:"schema"`
	Saved              []ListedProfile    `json:"saved"`
	Recent             []ListedProfile    `json:"recent"`
	ConnectionStatus   AsyncStatus        `json:"connectionStatus"`
	SubscriptionStatus AsyncStatus        `json:"subscriptionStatus"`
	ServerStatus       AsyncStatus        `json:"serverStatus"`
	FormError          string             `json:"formError,omitempty"`
	Recovery           RecoveryDialog     `json:"recovery"`
	Accounts           []Account          `json:"accounts,omitempty"`
	Subscriptions      []Subscription     `json:"subscriptions,omitempty"`
	Servers            []Server           `json:"servers,omitempty"`

	// SubscriptionsByTenant is the browse view's tenant grouping of the
	// subscription list. Tenants with no subscriptions have no entry.
	SubscriptionsByTenant map[string][]Subscription `json:"subscriptionsByTenant,omitempty"`
}

// Snapshot deep-copies the session into a render view. The snapshot does not
// alias any mutable session state.
func (s *DialogSession) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:                 s.ID,
		Profile:            s.Profile.Values(),
		InputMode:          s.InputMode,
		Schema:             s.Schema.Clone(),
		ConnectionStatus:   s.ConnectionStatus,
		SubscriptionStatus: s.SubscriptionStatus,
		ServerStatus:       s.ServerStatus,
		FormError:          s.FormError,
		Recovery:           s.Recovery,
		Accounts:           append([]Account(nil), s.Accounts...),
		Subscriptions:      append([]Subscription(nil), s.Subscriptions...),
		Servers:            append([]Server(nil), s.Servers...),
	}
	for _, lp := range s.Saved {
		snap.Saved = append(snap.Saved, ListedProfile{Profile: lp.Profile.Clone(), Recent: lp.Recent})
	}
	for _, lp := range s.Recent {
		snap.Recent = append(snap.Recent, ListedProfile{Profile: lp.Profile.Clone(), Recent: lp.Recent})
	}
	snap.Recovery.Tenants = append([]Tenant(nil), s.Recovery.Tenants...)
	if len(snap.Subscriptions) > 0 {
		snap.SubscriptionsByTenant = GroupSubscriptionsByTenant(snap.Subscriptions)
	}
	return snap
}
