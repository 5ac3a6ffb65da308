package auth

// Principal is a resolved, non-deleted identity without credential material.
type Principal struct {
	ID       string
	Username string
	Email    string
	Role     Role
}

// NewPrincipal builds a principal from a stored user.
func NewPrincipal(u *User) Principal {
	return Principal{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// Authorize checks the principal's role against the exact set of allowed
// roles. There is no hierarchy: a Manager does not satisfy {Admin}, and an
// Admin does not satisfy {Manager}. An empty set admits any principal.
func Authorize(p Principal, allowed ...Role) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if p.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
