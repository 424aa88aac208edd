package service

import (
	"testing"

	"github.com/swiftfix/backoffice/internal/domain"
)

func TestHasRole(t *testing.T) {
	authz := NewRoleAuthorizer()

	tests := []struct {
		name     string
		actual   domain.Role
		required []domain.Role
		want     bool
	}{
		{"admin meets admin", domain.RoleAdmin, []domain.Role{domain.RoleAdmin}, true},
		{"admin meets employee", domain.RoleAdmin, []domain.Role{domain.RoleEmployee}, true},
		{"manager meets manager", domain.RoleManager, []domain.Role{domain.RoleManager}, true},
		{"manager fails admin", domain.RoleManager, []domain.Role{domain.RoleAdmin}, false},
		{"employee fails manager", domain.RoleEmployee, []domain.Role{domain.RoleManager}, false},
		{"any of several", domain.RoleManager, []domain.Role{domain.RoleAdmin, domain.RoleManager}, true},
		{"empty requirement", domain.RoleAdmin, nil, false},
		{"unknown actual", domain.Role("ROOT"), []domain.Role{domain.RoleEmployee}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authz.HasRole(tt.actual, tt.required...); got != tt.want {
				t.Fatalf("HasRole(%s, %v) = %v, want %v", tt.actual, tt.required, got, tt.want)
			}
		})
	}
}
