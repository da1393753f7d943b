package form

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/model"
)

type recordingSink struct {
	skipped []string
}

func (r *recordingSink) OnSchemaDiagnostic(field, _, _ string) {
	r.skipped = append(r.skipped, field)
}

func descriptor(name, kind string) model.OptionDescriptor {
	return model.OptionDescriptor{Name: name, DisplayName: name, ValueKind: kind}
}

func TestCompile_SkipsMalformedDescriptors(t *testing.T) {
	sink := &recordingSink{}
	c := NewCompiler(zap.NewNop(), sink)

	schema := c.Compile(model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			descriptor("server", model.ValueKindString),
			{DisplayName: "nameless", ValueKind: model.ValueKindString},
			descriptor("weird", "matrix"),
			descriptor("server", model.ValueKindString),
			descriptor("database", model.ValueKindString),
		},
	})

	if _, ok := schema.Fields["server"]; !ok {
		t.Error("server field missing")
	}
	if _, ok := schema.Fields["database"]; !ok {
		t.Error("database field missing")
	}
	if _, ok := schema.Fields["weird"]; ok {
		t.Error("unrecognized value kind compiled anyway")
	}

	want := []string{"", "weird", "server"}
	if !reflect.DeepEqual(sink.skipped, want) {
		t.Errorf("skipped = %v, want %v", sink.skipped, want)
	}
}

func TestCompile_BuiltinOverridesDescriptor(t *testing.T) {
	c := NewCompiler(zap.NewNop())

	schema := c.Compile(model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			descriptor(model.FieldConnectionString, model.ValueKindString),
		},
	})

	spec := schema.Fields[model.FieldConnectionString]
	if spec.Kind != model.FieldKindMultiline {
		t.Errorf("Kind = %q, want multiline (built-in definition wins)", spec.Kind)
	}
	if spec.Validate == nil {
		t.Error("built-in validator missing")
	}
}

func TestCompile_AttachesBuiltinValidators(t *testing.T) {
	c := NewCompiler(zap.NewNop())
	schema := c.Compile(model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			descriptor(model.FieldServer, model.ValueKindString),
			descriptor(model.FieldUser, model.ValueKindString),
		},
	})

	for _, key := range []string{model.FieldServer, model.FieldUser} {
		if schema.Fields[key].Validate == nil {
			t.Errorf("%s has no validator", key)
		}
	}

	p := model.NewConnectionProfile()
	p.Set(model.FieldAuthType, model.AuthSqlLogin)
	result := schema.Fields[model.FieldServer].Validate(nil, p)
	if result.Valid {
		t.Error("empty server valid under SqlLogin")
	}
	p.Set(model.FieldAuthType, model.AuthIntegrated)
	result = schema.Fields[model.FieldServer].Validate(nil, p)
	if !result.Valid {
		t.Error("empty server invalid under Integrated")
	}
}

func TestCompile_CategoryDropdown(t *testing.T) {
	c := NewCompiler(zap.NewNop())
	schema := c.Compile(model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			{Name: "applicationIntent", DisplayName: "Application intent", ValueKind: model.ValueKindCategory,
				CategoryValues: []model.CategoryValue{
					{Name: "ReadWrite", DisplayName: "Read write"},
					{Name: "ReadOnly"},
				}},
		},
	})

	opts := schema.Fields["applicationIntent"].Options
	want := []model.FieldOption{
		{Label: "Read write", Value: "ReadWrite"},
		{Label: "ReadOnly", Value: "ReadOnly"},
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("options = %v, want %v", opts, want)
	}
}

func TestCompile_PartitionsBuckets(t *testing.T) {
	c := NewCompiler(zap.NewNop())
	schema := c.Compile(model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			descriptor(model.FieldServer, model.ValueKindString),
			descriptor(model.FieldDatabase, model.ValueKindString),
			{Name: "connectTimeout", DisplayName: "Connect timeout", ValueKind: model.ValueKindNumber, Category: "initialization"},
			{Name: "maxPoolSize", DisplayName: "Max pool size", ValueKind: model.ValueKindNumber, Category: "pooling"},
			{Name: "packetSize", DisplayName: "Packet size", ValueKind: model.ValueKindNumber, Category: "custom"},
		},
		CategoryLabels: map[string]string{"pooling": "Pooling"},
	})

	inMain := func(key string) bool {
		for _, k := range schema.MainFields {
			if k == key {
				return true
			}
		}
		return false
	}
	if !inMain(model.FieldServer) || !inMain(model.FieldDatabase) {
		t.Errorf("MainFields = %v, want server and database present", schema.MainFields)
	}
	if inMain("connectTimeout") {
		t.Error("connectTimeout landed in main fields")
	}

	if !reflect.DeepEqual(schema.TopAdvanced, []string{"connectTimeout"}) {
		t.Errorf("TopAdvanced = %v, want [connectTimeout]", schema.TopAdvanced)
	}

	var cats []string
	for _, g := range schema.AdvancedGroups {
		cats = append(cats, g.Category)
	}
	// Seed categories keep their fixed order; unknown ones append after.
	if !reflect.DeepEqual(cats, []string{"pooling", "custom"}) {
		t.Errorf("group categories = %v, want [pooling custom]", cats)
	}
	for _, g := range schema.AdvancedGroups {
		switch g.Category {
		case "pooling":
			if g.Label != "Pooling" {
				t.Errorf("pooling label = %q, want Pooling", g.Label)
			}
		case "custom":
			if g.Label != "custom" {
				t.Errorf("custom label = %q, want the raw category ID", g.Label)
			}
		}
	}

	// The connection-string built-in never enters the advanced panel.
	for _, key := range schema.TopAdvanced {
		if key == model.FieldConnectionString {
			t.Error("connectionString in TopAdvanced")
		}
	}
	for _, g := range schema.AdvancedGroups {
		for _, key := range g.Fields {
			if key == model.FieldConnectionString {
				t.Error("connectionString in an advanced group")
			}
		}
	}
}

func TestCompile_EmptyDocumentStillHasBuiltins(t *testing.T) {
	c := NewCompiler(zap.NewNop())
	schema := c.Compile(model.CapabilityDocument{})

	for _, key := range []string{
		model.FieldProfileName,
		model.FieldSavePassword,
		model.FieldAccountID,
		model.FieldTenantID,
		model.FieldConnectionString,
	} {
		if _, ok := schema.Fields[key]; !ok {
			t.Errorf("built-in field %s missing", key)
		}
	}
}
