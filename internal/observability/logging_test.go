package observability

import (
	"testing"

	"github.com/bbrooks37/vscode-mssql/model"
)

func TestRedactProfile(t *testing.T) {
	profile := model.ProfileFromValues(map[string]any{
		model.FieldServer:           "prod.example.com",
		model.FieldUser:             "alice",
		model.FieldPassword:         "hunter2",
		model.FieldConnectionString: "Server=prod;Password=hunter2",
		"accessToken":               "eyJhbGciOi",
	})

	values := RedactProfile(profile)

	for _, key := range []string{model.FieldPassword, model.FieldConnectionString, "accessToken"} {
		if values[key] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", key, values[key])
		}
	}
	if values[model.FieldServer] != "prod.example.com" {
		t.Errorf("server = %v, want untouched value", values[model.FieldServer])
	}
	if values[model.FieldUser] != "alice" {
		t.Errorf("user = %v, want untouched value", values[model.FieldUser])
	}

	// The source profile keeps its raw values.
	if profile.GetString(model.FieldPassword) != "hunter2" {
		t.Errorf("redaction mutated the profile: password = %q", profile.GetString(model.FieldPassword))
	}
}

func TestRedactProfileNil(t *testing.T) {
	if got := RedactProfile(nil); got != nil {
		t.Errorf("RedactProfile(nil) = %v, want nil", got)
	}
}
