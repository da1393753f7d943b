// Package model contains the shared data types for the connection dialog
// engine: field specifications, connection profiles, the dialog session, and
// the error envelope exchanged with the host UI.
package model

// FieldKind is the rendering kind of a compiled form field.
type FieldKind string

const (
	FieldKindText      FieldKind = "text"
	FieldKindMultiline FieldKind = "multiline"
	FieldKindPassword  FieldKind = "password"
	FieldKindCheckbox  FieldKind = "checkbox"
	FieldKindDropdown  FieldKind = "dropdown"
)

// Well-known field keys. The schema compiler is the only place that turns
// untrusted descriptor names into keys; everything downstream works with this
// closed set plus whatever extra keys the capability source described.
const (
	FieldServer           = "server"
	FieldDatabase         = "database"
	FieldUser             = "user"
	FieldPassword         = "password"
	FieldSavePassword     = "savePassword"
	FieldAuthType         = "authenticationType"
	FieldProfileName      = "profileName"
	FieldAccountID        = "accountId"
	FieldTenantID         = "tenantId"
	FieldConnectionString = "connectionString"
	FieldTrustServerCert  = "trustServerCertificate"
	FieldEncrypt          = "encrypt"
)

// Authentication type values carried in the authenticationType field.
const (
	AuthSqlLogin   = "SqlLogin"
	AuthAzureMFA   = "AzureMFA"
	AuthIntegrated = "Integrated"
)

// Action button IDs understood by the controller's button registry.
const (
	ActionSignIn       = "azureSignIn"
	ActionRefreshToken = "refreshToken"
)

// ValidationResult is the outcome of running a field validator.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Validator checks a single field value against the rest of the profile.
// Validators never mutate the profile.
type Validator func(value any, profile *ConnectionProfile) ValidationResult

// FieldOption is one dropdown choice.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ActionButton is a button rendered next to a field. It carries only an ID;
// the controller maps IDs to handlers.
type ActionButton struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FieldSpec is the compiled description of one editable connection parameter.
// Specs are created once when the dialog opens and mutated in place as
// visibility, options, and validation state change.
type FieldSpec struct {
	Key           string            `json:"key"`
	Label         string            `json:"label"`
	Description   string            `json:"description,omitempty"`
	Kind          FieldKind         `json:"kind"`
	Required      bool              `json:"required"`
	Hidden        bool              `json:"hidden"`
	Advanced      bool              `json:"advanced"`
	Category      string            `json:"category,omitempty"`
	CategoryLabel string            `json:"categoryLabel,omitempty"`
	Options       []FieldOption     `json:"options,omitempty"`
	Buttons       []ActionButton    `json:"buttons,omitempty"`
	Validation    *ValidationResult `json:"validation,omitempty"`

	// Validate is nil for fields with no constraint; such fields are always
	// considered valid.
	Validate Validator `json:"-"`
}

// FieldGroup is one ordered group of advanced fields.
type FieldGroup struct {
	Category string   `json:"category"`
	Label    string   `json:"label"`
	Fields   []string `json:"fields"`
}

// FormSchema is the result of compiling the capability descriptors plus the
// built-in fields: the field-spec map and the three display buckets.
type FormSchema struct {
	Fields         map[string]*FieldSpec `json:"fields"`
	MainFields     []string              `json:"mainFields"`
	TopAdvanced    []string              `json:"topAdvanced"`
	AdvancedGroups []FieldGroup          `json:"advancedGroups"`
}

// Clone returns a deep copy of the schema. Snapshots handed to the renderer
// must not alias the session's mutable specs.
func (s *FormSchema) Clone() *FormSchema {
	if s == nil {
		return nil
	}
	out := &FormSchema{
		Fields:      make(map[string]*FieldSpec, len(s.Fields)),
		MainFields:  append([]string(nil), s.MainFields...),
		TopAdvanced: append([]string(nil), s.TopAdvanced...),
	}
	for k, f := range s.Fields {
		c := *f
		c.Options = append([]FieldOption(nil), f.Options...)
		c.Buttons = append([]ActionButton(nil), f.Buttons...)
		if f.Validation != nil {
			v := *f.Validation
			c.Validation = &v
		}
		out.Fields[k] = &c
	}
	for _, g := range s.AdvancedGroups {
		out.AdvancedGroups = append(out.AdvancedGroups, FieldGroup{
			Category: g.Category,
			Label:    g.Label,
			Fields:   append([]string(nil), g.Fields...),
		})
	}
	return out
}

// OptionDescriptor is one raw connection-parameter descriptor as returned by
// the remote capability source. Treated as untrusted input.
type OptionDescriptor struct {
	Name           string            `json:"name"`
	DisplayName    string            `json:"displayName"`
	Description    string            `json:"description"`
	Required       bool              `json:"required"`
	ValueKind      string            `json:"valueType"`
	Category       string            `json:"groupName"`
	CategoryValues []CategoryValue   `json:"categoryValues"`
	DefaultValue   string            `json:"defaultValue,omitempty"`
	Extra          map[string]string `json:"-"`
}

// CategoryValue is one allowed value for a category-kind descriptor.
type CategoryValue struct {
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

// CapabilityDocument is the full payload fetched from the capability source.
type CapabilityDocument struct {
	Options        []OptionDescriptor `json:"connectionOptions"`
	CategoryLabels map[string]string  `json:"groupDisplayNames"`
}

// Descriptor value kinds recognized by the schema compiler.
const (
	ValueKindString   = "string"
	ValueKindNumber   = "number"
	ValueKindBoolean  = "boolean"
	ValueKindPassword = "password"
	ValueKindCategory = "category"
)
