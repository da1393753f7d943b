package form

import (
	"reflect"
	"sort"
	"testing"

	"github.com/bbrooks37/vscode-mssql/model"
)

func TestActiveFields_ConnectionStringMode(t *testing.T) {
	schema := compiledSchema(t)
	active := ActiveFields(schema, model.InputModeConnectionString)
	sort.Strings(active)
	want := []string{model.FieldConnectionString, model.FieldProfileName}
	if !reflect.DeepEqual(active, want) {
		t.Errorf("active = %v, want %v", active, want)
	}
}

func TestValidateForm_SqlLoginRequiresServerAndUser(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthSqlLogin)

	invalid := ValidateForm(schema, model.InputModeParameters, p)
	sort.Strings(invalid)
	if !reflect.DeepEqual(invalid, []string{model.FieldServer, model.FieldUser}) {
		t.Errorf("invalid = %v, want [server user]", invalid)
	}

	p.Set(model.FieldServer, "db.example.com")
	p.Set(model.FieldUser, "alice")
	if invalid := ValidateForm(schema, model.InputModeParameters, p); len(invalid) != 0 {
		t.Errorf("invalid = %v, want none", invalid)
	}
}

func TestValidateForm_HiddenFieldForcedValid(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthAzureMFA)
	p.Set(model.FieldServer, "db.example.com")

	// accountId is required under MFA; hiding it must suppress the failure.
	schema.Fields[model.FieldAccountID].Hidden = true
	schema.Fields[model.FieldTenantID].Hidden = true

	invalid := ValidateForm(schema, model.InputModeParameters, p)
	for _, key := range invalid {
		if key == model.FieldAccountID || key == model.FieldTenantID {
			t.Errorf("hidden %s reported invalid", key)
		}
	}

	v := schema.Fields[model.FieldAccountID].Validation
	if v == nil || !v.Valid {
		t.Errorf("hidden accountId validation = %+v, want forced valid", v)
	}
}

func TestValidateForm_ConnectionStringMode(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()

	invalid := ValidateForm(schema, model.InputModeConnectionString, p)
	if !reflect.DeepEqual(invalid, []string{model.FieldConnectionString}) {
		t.Errorf("invalid = %v, want [connectionString]", invalid)
	}

	// Parameter fields never participate, even when empty.
	p.Set(model.FieldConnectionString, "Server=db;User=sa")
	p.Set(model.FieldAuthType, model.AuthSqlLogin)
	if invalid := ValidateForm(schema, model.InputModeConnectionString, p); len(invalid) != 0 {
		t.Errorf("invalid = %v, want none", invalid)
	}
}

func TestValidateField_OutsideActiveSetIgnored(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthSqlLogin)

	ValidateField(schema, model.InputModeConnectionString, model.FieldServer, p)
	if schema.Fields[model.FieldServer].Validation != nil {
		t.Error("server validated while outside the connection-string active set")
	}

	ValidateField(schema, model.InputModeParameters, model.FieldServer, p)
	v := schema.Fields[model.FieldServer].Validation
	if v == nil || v.Valid {
		t.Errorf("server validation = %+v, want invalid", v)
	}
}

func TestClearValidation(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthSqlLogin)
	ValidateForm(schema, model.InputModeParameters, p)

	ClearValidation(schema)
	for key, spec := range schema.Fields {
		if spec.Validation != nil {
			t.Errorf("%s still carries validation state", key)
		}
	}
}
