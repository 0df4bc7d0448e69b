// Package registry holds the catalog of AI participant roles. The
// catalog is read-only after construction and safe to share across
// sessions.
package registry

import (
	"inkwell/internal/domain"
)

type Registry struct {
	roles map[domain.RoleID]domain.Role
	order []domain.RoleID
}

// New builds a registry from a role list. Duplicate or invalid roles
// are a ValidationError.
func New(roles []domain.Role) (*Registry, error) {
	r := &Registry{roles: make(map[domain.RoleID]domain.Role, len(roles))}
	for _, role := range roles {
		if err := role.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.roles[role.ID]; exists {
			return nil, &domain.ValidationError{Msg: "duplicate role id: " + string(role.ID)}
		}
		r.roles[role.ID] = role
		r.order = append(r.order, role.ID)
	}
	return r, nil
}

// Get returns the role for id, or a NotFoundError.
func (r *Registry) Get(id domain.RoleID) (domain.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return domain.Role{}, &domain.NotFoundError{Kind: "role", ID: string(id)}
	}
	return role, nil
}

// ByCapability returns every role carrying the given tag, in catalog order.
func (r *Registry) ByCapability(c domain.Capability) []domain.Role {
	var out []domain.Role
	for _, id := range r.order {
		if role := r.roles[id]; role.Capability == c {
			out = append(out, role)
		}
	}
	return out
}

// All returns the catalog in declaration order.
func (r *Registry) All() []domain.Role {
	out := make([]domain.Role, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.roles[id])
	}
	return out
}
