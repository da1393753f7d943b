// Package form compiles the remote capability document into an editable form
// schema and evaluates visibility and validation over it.
package form

import (
	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/model"
)

// DiagnosticSink receives schema compilation diagnostics. Implementations may
// record metrics or telemetry; field values never pass through here.
type DiagnosticSink interface {
	OnSchemaDiagnostic(field, valueKind, reason string)
}

// Compiler turns capability option descriptors into a FormSchema.
type Compiler struct {
	logger *zap.Logger
	diags  []DiagnosticSink
}

// NewCompiler creates a Compiler. The logger is required; sinks are optional.
func NewCompiler(logger *zap.Logger, sinks ...DiagnosticSink) *Compiler {
	return &Compiler{logger: logger, diags: sinks}
}

// Compile maps every descriptor to a FieldSpec, appends the built-in fields,
// and partitions the result into display buckets. A malformed descriptor is
// skipped with a diagnostic; compilation never fails as a whole.
func (c *Compiler) Compile(doc model.CapabilityDocument) *model.FormSchema {
	schema := &model.FormSchema{
		Fields: make(map[string]*model.FieldSpec, len(doc.Options)+5),
	}

	var order []string
	for _, opt := range doc.Options {
		spec, ok := c.compileDescriptor(opt, doc.CategoryLabels)
		if !ok {
			continue
		}
		if _, dup := schema.Fields[spec.Key]; dup {
			c.skip(opt, "duplicate field name")
			continue
		}
		schema.Fields[spec.Key] = spec
		order = append(order, spec.Key)
	}

	// Hard-coded validators for remote-described fields.
	for key, v := range builtinValidators {
		if spec, ok := schema.Fields[key]; ok {
			spec.Validate = v
		}
	}

	for _, spec := range builtinFields() {
		if _, dup := schema.Fields[spec.Key]; dup {
			// The capability source already described this field; the
			// built-in definition wins so its validator is attached.
			c.logger.Debug("built-in field overrides descriptor", zap.String("field", spec.Key))
		} else {
			order = append(order, spec.Key)
		}
		schema.Fields[spec.Key] = spec
	}

	c.partition(schema, order, doc.CategoryLabels)
	return schema
}

// compileDescriptor maps one untrusted descriptor into a FieldSpec. Returns
// false when the descriptor cannot be mapped.
func (c *Compiler) compileDescriptor(opt model.OptionDescriptor, labels map[string]string) (*model.FieldSpec, bool) {
	if opt.Name == "" {
		c.skip(opt, "missing name")
		return nil, false
	}

	spec := &model.FieldSpec{
		Key:         opt.Name,
		Label:       opt.DisplayName,
		Description: opt.Description,
		Required:    opt.Required,
		Category:    opt.Category,
	}
	if spec.Label == "" {
		spec.Label = opt.Name
	}
	if label, ok := labels[opt.Category]; ok {
		spec.CategoryLabel = label
	} else {
		spec.CategoryLabel = opt.Category
	}

	switch opt.ValueKind {
	case model.ValueKindBoolean:
		spec.Kind = model.FieldKindCheckbox
	case model.ValueKindString, model.ValueKindNumber:
		spec.Kind = model.FieldKindText
	case model.ValueKindPassword:
		spec.Kind = model.FieldKindPassword
	case model.ValueKindCategory:
		spec.Kind = model.FieldKindDropdown
		for _, cv := range opt.CategoryValues {
			label := cv.DisplayName
			if label == "" {
				label = cv.Name
			}
			spec.Options = append(spec.Options, model.FieldOption{Label: label, Value: cv.Name})
		}
	default:
		c.skip(opt, "unrecognized value kind")
		return nil, false
	}

	return spec, true
}

// skip records a recoverable schema error for one descriptor.
func (c *Compiler) skip(opt model.OptionDescriptor, reason string) {
	c.logger.Warn("skipping connection option",
		zap.String("field", opt.Name),
		zap.String("value_kind", opt.ValueKind),
		zap.String("reason", reason),
	)
	for _, sink := range c.diags {
		sink.OnSchemaDiagnostic(opt.Name, opt.ValueKind, reason)
	}
}

// partition assigns every compiled field to the main, top-advanced, or
// grouped-advanced bucket.
func (c *Compiler) partition(schema *model.FormSchema, order []string, labels map[string]string) {
	placed := make(map[string]bool)

	for _, key := range mainFieldOrder {
		if _, ok := schema.Fields[key]; ok {
			schema.MainFields = append(schema.MainFields, key)
			placed[key] = true
		}
	}
	// The connection-string field belongs to its own fixed view, never to the
	// advanced panel.
	placed[model.FieldConnectionString] = true

	for _, key := range topAdvancedOrder {
		if _, ok := schema.Fields[key]; ok && !placed[key] {
			schema.TopAdvanced = append(schema.TopAdvanced, key)
			schema.Fields[key].Advanced = true
			placed[key] = true
		}
	}

	var advanced []string
	for _, key := range order {
		if placed[key] {
			continue
		}
		schema.Fields[key].Advanced = true
		advanced = append(advanced, key)
	}

	schema.AdvancedGroups = groupAdvanced(schema, advanced, labels)
}
