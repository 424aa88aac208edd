package domain

// Role is the back-office permission level. Roles form a strict total
// order: ADMIN outranks MANAGER, which outranks EMPLOYEE.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// roleOrder lists roles by privilege, index 0 being the most privileged.
var roleOrder = []Role{RoleAdmin, RoleManager, RoleEmployee}

// Rank returns the position of the role in the privilege order. Unknown
// roles rank below every defined role.
func (r Role) Rank() int {
	for i, role := range roleOrder {
		if r == role {
			return i
		}
	}
	return len(roleOrder)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r.Rank() < len(roleOrder)
}

// AtLeast reports whether r is at least as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() <= other.Rank()
}

// ParseRole maps a stored or submitted value onto a defined role.
func ParseRole(v string) (Role, bool) {
	r := Role(v)
	return r, r.Valid()
}
