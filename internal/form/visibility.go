package form

import (
	"context"

	"github.com/bbrooks37/vscode-mssql/model"
)

// TenantCounter reports how many tenants the given account can see. The
// controller backs this with its tenant cache so the lookup is synchronous in
// the common case. A lookup failure is treated as zero tenants.
type TenantCounter func(ctx context.Context, accountID string) (int, error)

// Fields whose visibility depends on the authentication mode.
var (
	sqlLoginFields = []string{model.FieldUser, model.FieldPassword, model.FieldSavePassword}
	azureMFAFields = []string{model.FieldAccountID, model.FieldTenantID}
)

// ApplyVisibility recomputes the Hidden flag of every field from the current
// input mode and profile values. It must run after every field edit and after
// every input-mode change; it mutates the schema in place.
//
// Connection-string mode uses a disjoint fixed two-field view and bypasses
// these rules entirely.
func ApplyVisibility(
	ctx context.Context,
	schema *model.FormSchema,
	profile *model.ConnectionProfile,
	mode model.InputMode,
	tenants TenantCounter,
) {
	if mode == model.InputModeConnectionString {
		return
	}

	// Every field not named below is visible.
	for _, spec := range schema.Fields {
		spec.Hidden = false
	}

	auth := profile.AuthType()

	if auth != model.AuthSqlLogin {
		hide(schema, sqlLoginFields)
	}

	if auth != model.AuthAzureMFA {
		hide(schema, azureMFAFields)
		return
	}

	// Azure MFA: hide the tenant picker when the account has exactly one
	// tenant. A failed lookup counts as zero tenants, keeping it visible.
	if accountID := profile.GetString(model.FieldAccountID); accountID != "" && tenants != nil {
		n, err := tenants(ctx, accountID)
		if err == nil && n == 1 {
			hide(schema, []string{model.FieldTenantID})
		}
	}
}

func hide(schema *model.FormSchema, keys []string) {
	for _, key := range keys {
		if spec, ok := schema.Fields[key]; ok {
			spec.Hidden = true
		}
	}
}
