package domain

// RedirectMap maps a role to its default landing path.
type RedirectMap map[Role]string

// DefaultRedirects is the landing table consulted by login.
func DefaultRedirects() RedirectMap {
	return RedirectMap{
		RoleSuperAdmin: "/super-admin/dashboard",
		RoleEmployer:   "/employer/dashboard",
		RoleEmployee:   "/employee/dashboard",
		RoleContractor: "/contractor/dashboard",
	}
}

// PathFor returns the landing path for role and whether one is defined.
func (m RedirectMap) PathFor(role Role) (string, bool) {
	path, ok := m[role]
	return path, ok && path != ""
}

// With returns a copy of m with overrides applied.
func (m RedirectMap) With(overrides map[Role]string) RedirectMap {
	out := make(RedirectMap, len(m)+len(overrides))
	for role, path := range m {
		out[role] = path
	}
	for role, path := range overrides {
		out[role] = path
	}
	return out
}
