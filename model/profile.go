package model

// ConnectionProfile is the connection under edit: a mapping of field key to
// value. At most one of {connectionString, structured parameter fields}
// carries meaningful values at a time; the clean transform clears the other
// set before a connect attempt.
type ConnectionProfile struct {
	values map[string]any
}

// NewConnectionProfile returns an empty profile.
func NewConnectionProfile() *ConnectionProfile {
	return &ConnectionProfile{values: make(map[string]any)}
}

// ProfileFromValues builds a profile from a raw value map. The map is copied.
func ProfileFromValues(values map[string]any) *ConnectionProfile {
	p := NewConnectionProfile()
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Clone returns a deep copy. Edits to the copy never reach the original,
// which is how a saved connection is protected until the edit is confirmed.
func (p *ConnectionProfile) Clone() *ConnectionProfile {
	out := NewConnectionProfile()
	if p == nil {
		return out
	}
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// Get returns the raw value for a field key, or nil.
func (p *ConnectionProfile) Get(key string) any {
	if p == nil {
		return nil
	}
	return p.values[key]
}

// Set writes a field value.
func (p *ConnectionProfile) Set(key string, value any) {
	p.values[key] = value
}

// Clear removes a field value entirely.
func (p *ConnectionProfile) Clear(key string) {
	delete(p.values, key)
}

// Keys returns all field keys currently carrying a value.
func (p *ConnectionProfile) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	return keys
}

// Values returns a copy of the underlying value map, for persistence and for
// read snapshots.
func (p *ConnectionProfile) Values() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// GetString returns the value for key coerced to a string; nil and non-string
// values yield "".
func (p *ConnectionProfile) GetString(key string) string {
	s, _ := p.Get(key).(string)
	return s
}

// GetBool returns the value for key coerced to a bool.
func (p *ConnectionProfile) GetBool(key string) bool {
	b, _ := p.Get(key).(bool)
	return b
}

// AuthType returns the profile's authentication type, defaulting to
// integrated auth when unset.
func (p *ConnectionProfile) AuthType() string {
	if s := p.GetString(FieldAuthType); s != "" {
		return s
	}
	return AuthIntegrated
}

// HasConnectionString reports whether the profile carries a non-empty
// connection string. Used to recompute the input mode when loading a saved
// connection.
func (p *ConnectionProfile) HasConnectionString() bool {
	return p.GetString(FieldConnectionString) != ""
}

// DisplayName returns the profile name, falling back to "server / database" style
// identification when no explicit name is set.
func (p *ConnectionProfile) DisplayName() string {
	if name := p.GetString(FieldProfileName); name != "" {
		return name
	}
	server := p.GetString(FieldServer)
	db := p.GetString(FieldDatabase)
	if db == "" {
		return server
	}
	return server + "/" + db
}
