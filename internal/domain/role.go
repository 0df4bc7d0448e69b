package domain

// Role describes one named AI participant: who it is, how it is
// prompted, and which generation strategy applies to it.
// Roles are immutable once defined and owned by the registry.
type Role struct {
	ID                 RoleID
	Name               string
	Description        string
	SystemPrompt       string
	Capability         Capability
	DefaultTemperature float32
}

func (r Role) Validate() error {
	if r.ID == "" {
		return &ValidationError{Msg: "role id is required"}
	}
	if r.Name == "" {
		return &ValidationError{Msg: "role name is required"}
	}
	if !r.Capability.Valid() {
		return &ValidationError{Msg: "unknown capability: " + string(r.Capability)}
	}
	return nil
}
