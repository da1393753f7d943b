// Package store persists saved connection profiles, their credentials, and
// the recently-used connection list.
package store

import (
	"context"

	"github.com/bbrooks37/vscode-mssql/model"
)

// Profiles are keyed by profile name; saving under an existing name replaces
// the stored profile. Passwords never live inside the persisted profile
// payload: when savePassword is set the password is written to the credential
// side table, otherwise any stored credential for that name is removed.
type ConnectionStore interface {
	// LoadAll returns every saved profile and, when includeRecents is set,
	// the recently-used list (most recent first). Stored passwords are not
	// included; use LookupPassword.
	LoadAll(ctx context.Context, includeRecents bool) (saved, recent []model.ListedProfile, err error)

	// LookupPassword returns the stored password for the named profile, or
	// empty when none is stored.
	LookupPassword(ctx context.Context, profileName string) (string, error)

	// Save persists the profile under its profile name.
	Save(ctx context.Context, profile *model.ConnectionProfile) error

	// RemoveProfile deletes the named profile and its stored credential.
	RemoveProfile(ctx context.Context, profileName string) error

	// AddRecent prepends the profile to the recently-used list, dropping any
	// earlier entry for the same server and database.
	AddRecent(ctx context.Context, profile *model.ConnectionProfile) error

	// RemoveRecent deletes matching entries from the recently-used list.
	RemoveRecent(ctx context.Context, profile *model.ConnectionProfile) error
}

// maxRecents caps the recently-used list.
const maxRecents = 10

// recentKey identifies a recent entry by its connection target.
func recentKey(p *model.ConnectionProfile) string {
	return p.GetString(model.FieldServer) + "|" + p.GetString(model.FieldDatabase) + "|" + p.GetString(model.FieldUser)
}
