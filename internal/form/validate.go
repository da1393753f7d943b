package form

import "github.com/bbrooks37/vscode-mssql/model"

// ActiveFields returns the field keys that participate in the given input
// mode. Connection-string mode exposes only the connection string and the
// profile name; every other mode exposes the whole compiled schema.
func ActiveFields(schema *model.FormSchema, mode model.InputMode) []string {
	if mode == model.InputModeConnectionString {
		var active []string
		for _, key := range []string{model.FieldConnectionString, model.FieldProfileName} {
			if _, ok := schema.Fields[key]; ok {
				active = append(active, key)
			}
		}
		return active
	}

	active := make([]string, 0, len(schema.Fields))
	active = append(active, schema.MainFields...)
	active = append(active, schema.TopAdvanced...)
	for _, g := range schema.AdvancedGroups {
		active = append(active, g.Fields...)
	}
	return active
}

// ValidateField validates a single field by name, storing the result on the
// spec. Fields outside the active set, without a spec, or without a validator
// are left untouched.
func ValidateField(schema *model.FormSchema, mode model.InputMode, key string, profile *model.ConnectionProfile) {
	if !inActiveSet(schema, mode, key) {
		return
	}
	spec := schema.Fields[key]
	if spec == nil || spec.Validate == nil {
		return
	}
	result := spec.Validate(profile.Get(key), profile)
	spec.Validation = &result
}

// ValidateForm validates the whole active field set and returns the keys that
// failed. A hidden field is forced valid without invoking its validator; a
// field with no validator is always valid.
func ValidateForm(schema *model.FormSchema, mode model.InputMode, profile *model.ConnectionProfile) []string {
	var invalid []string
	for _, key := range ActiveFields(schema, mode) {
		spec := schema.Fields[key]
		if spec == nil {
			continue
		}
		if spec.Hidden {
			spec.Validation = &model.ValidationResult{Valid: true}
			continue
		}
		if spec.Validate == nil {
			continue
		}
		result := spec.Validate(profile.Get(key), profile)
		spec.Validation = &result
		if !result.Valid {
			invalid = append(invalid, key)
		}
	}
	return invalid
}

// ClearValidation removes validation marks from every field.
func ClearValidation(schema *model.FormSchema) {
	for _, spec := range schema.Fields {
		spec.Validation = nil
	}
}

func inActiveSet(schema *model.FormSchema, mode model.InputMode, key string) bool {
	for _, k := range ActiveFields(schema, mode) {
		if k == key {
			return true
		}
	}
	return false
}
