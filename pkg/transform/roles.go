package transform

import "github.com/Gobusters/ectolinq"

// Roles ranks Harvest role tags when picking a person's primary role.
type Roles struct {
	// Priority roles win over anything else, in list order.
	Priority []string
	// Departments are tried next, in the order the person lists them.
	Departments []string
}

// PrimaryRole returns the first priority role the person holds, else their
// first department role, else their first role.
func (r Roles) PrimaryRole(roles []string) string {
	for _, role := range r.Priority {
		if ectolinq.Contains(roles, role) {
			return role
		}
	}
	for _, role := range roles {
		if ectolinq.Contains(r.Departments, role) {
			return role
		}
	}
	if len(roles) == 0 {
		return ""
	}
	return roles[0]
}
