package form

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/model"
)

func compiledSchema(t *testing.T) *model.FormSchema {
	t.Helper()
	c := NewCompiler(zap.NewNop())
	return c.Compile(model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			descriptor(model.FieldServer, model.ValueKindString),
			descriptor(model.FieldUser, model.ValueKindString),
			descriptor(model.FieldPassword, model.ValueKindPassword),
			descriptor(model.FieldDatabase, model.ValueKindString),
		},
	})
}

func fixedTenants(n int) TenantCounter {
	return func(context.Context, string) (int, error) { return n, nil }
}

func TestApplyVisibility_SqlLoginShowsCredentials(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthSqlLogin)

	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, nil)

	for _, key := range []string{model.FieldUser, model.FieldPassword, model.FieldSavePassword} {
		if schema.Fields[key].Hidden {
			t.Errorf("%s hidden under SqlLogin", key)
		}
	}
	for _, key := range []string{model.FieldAccountID, model.FieldTenantID} {
		if !schema.Fields[key].Hidden {
			t.Errorf("%s visible under SqlLogin", key)
		}
	}
}

func TestApplyVisibility_IntegratedHidesBoth(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthIntegrated)

	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, nil)

	for _, key := range []string{
		model.FieldUser, model.FieldPassword, model.FieldSavePassword,
		model.FieldAccountID, model.FieldTenantID,
	} {
		if !schema.Fields[key].Hidden {
			t.Errorf("%s visible under Integrated", key)
		}
	}
	if schema.Fields[model.FieldServer].Hidden {
		t.Error("server hidden under Integrated")
	}
}

func TestApplyVisibility_SingleTenantHidesPicker(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthAzureMFA)
	p.Set(model.FieldAccountID, "acc-1")

	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, fixedTenants(1))
	if !schema.Fields[model.FieldTenantID].Hidden {
		t.Error("tenantId visible with exactly one tenant")
	}

	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, fixedTenants(2))
	if schema.Fields[model.FieldTenantID].Hidden {
		t.Error("tenantId hidden with two tenants")
	}
}

func TestApplyVisibility_TenantLookupFailureKeepsPickerVisible(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthAzureMFA)
	p.Set(model.FieldAccountID, "acc-1")

	failing := func(context.Context, string) (int, error) {
		return 0, errors.New("broker unreachable")
	}
	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, failing)

	if schema.Fields[model.FieldTenantID].Hidden {
		t.Error("tenantId hidden after failed tenant lookup")
	}
}

func TestApplyVisibility_ConnectionStringModeBypasses(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthIntegrated)

	// Establish hidden state in parameters mode first.
	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, nil)
	before := schema.Fields[model.FieldUser].Hidden

	// Connection-string mode must not recompute anything.
	p.Set(model.FieldAuthType, model.AuthSqlLogin)
	ApplyVisibility(context.Background(), schema, p, model.InputModeConnectionString, nil)

	if schema.Fields[model.FieldUser].Hidden != before {
		t.Error("connection-string mode recomputed visibility")
	}
}

func TestApplyVisibility_ReentryRestoresFields(t *testing.T) {
	schema := compiledSchema(t)
	p := model.NewConnectionProfile()

	p.Set(model.FieldAuthType, model.AuthIntegrated)
	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, nil)
	if !schema.Fields[model.FieldUser].Hidden {
		t.Fatal("user visible under Integrated")
	}

	p.Set(model.FieldAuthType, model.AuthSqlLogin)
	ApplyVisibility(context.Background(), schema, p, model.InputModeParameters, nil)
	if schema.Fields[model.FieldUser].Hidden {
		t.Error("user stayed hidden after switching back to SqlLogin")
	}
}
