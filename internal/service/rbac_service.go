package service

import "github.com/swiftfix/backoffice/internal/domain"

// RoleAuthorizer answers whether an actual role satisfies a required
// set.
type RoleAuthorizer interface {
	HasRole(actual domain.Role, required ...domain.Role) bool
}

// OrderedRoleAuthorizer compares positions in the role privilege order
// rather than names, so a higher role automatically satisfies any gate
// a lower role would pass.
type OrderedRoleAuthorizer struct{}

func NewRoleAuthorizer() *OrderedRoleAuthorizer { return &OrderedRoleAuthorizer{} }

// HasRole reports whether actual is at least as privileged as the
// least-strict role in the required set. An empty set admits nobody.
func (a *OrderedRoleAuthorizer) HasRole(actual domain.Role, required ...domain.Role) bool {
	if !actual.Valid() {
		return false
	}
	for _, req := range required {
		if actual.AtLeast(req) {
			return true
		}
	}
	return false
}
