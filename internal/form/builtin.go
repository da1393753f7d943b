package form

import (
	"fmt"

	"github.com/bbrooks37/vscode-mssql/model"
)

// Field names shown in the main section of the dialog, in display order.
// Everything else described by the capability source lands in the advanced
// panel.
var mainFieldOrder = []string{
	model.FieldServer,
	model.FieldTrustServerCert,
	model.FieldAuthType,
	model.FieldUser,
	model.FieldPassword,
	model.FieldSavePassword,
	model.FieldAccountID,
	model.FieldTenantID,
	model.FieldDatabase,
	model.FieldEncrypt,
	model.FieldProfileName,
}

// Advanced fields surfaced above the grouped advanced panel.
var topAdvancedOrder = []string{
	"port",
	"applicationIntent",
	"connectTimeout",
	"multiSubnetFailover",
}

// requiredWhenAuth returns a validator that requires a non-empty value while
// the profile uses the given authentication type.
func requiredWhenAuth(auth, label string) model.Validator {
	return func(value any, profile *model.ConnectionProfile) model.ValidationResult {
		if profile.AuthType() != auth {
			return model.ValidationResult{Valid: true}
		}
		if s, _ := value.(string); s == "" {
			return model.ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("%s is required", label),
			}
		}
		return model.ValidationResult{Valid: true}
	}
}

// requiredAlways returns a validator that requires a non-empty value.
func requiredAlways(label string) model.Validator {
	return func(value any, _ *model.ConnectionProfile) model.ValidationResult {
		if s, _ := value.(string); s == "" {
			return model.ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("%s is required", label),
			}
		}
		return model.ValidationResult{Valid: true}
	}
}

// builtinValidators are the hard-coded validators attached to remote-described
// fields after compilation.
var builtinValidators = map[string]model.Validator{
	model.FieldServer: requiredWhenAuth(model.AuthSqlLogin, "Server"),
	model.FieldUser:   requiredWhenAuth(model.AuthSqlLogin, "User name"),
}

// builtinFields returns the fixed fields appended after the remote-described
// ones. Account and tenant dropdown options are filled in by the controller
// once identity accounts are loaded.
func builtinFields() []*model.FieldSpec {
	return []*model.FieldSpec{
		{
			Key:      model.FieldProfileName,
			Label:    "Profile name",
			Kind:     model.FieldKindText,
			Required: false,
		},
		{
			Key:   model.FieldSavePassword,
			Label: "Save password",
			Kind:  model.FieldKindCheckbox,
		},
		{
			Key:      model.FieldAccountID,
			Label:    "Azure account",
			Kind:     model.FieldKindDropdown,
			Required: true,
			Validate: requiredWhenAuth(model.AuthAzureMFA, "Azure account"),
			Buttons:  []model.ActionButton{{ID: model.ActionSignIn, Label: "Sign in"}},
		},
		{
			Key:      model.FieldTenantID,
			Label:    "Azure tenant",
			Kind:     model.FieldKindDropdown,
			Required: true,
			Validate: requiredWhenAuth(model.AuthAzureMFA, "Azure tenant"),
		},
		{
			Key:      model.FieldConnectionString,
			Label:    "Connection string",
			Kind:     model.FieldKindMultiline,
			Required: true,
			Validate: requiredAlways("Connection string"),
		},
	}
}
