package auth

// IsValidRole checks if the name is one of the predefined valid roles
func IsValidRole(name RoleName) bool {
	switch name {
	case RoleStandard, RoleModerator, RoleAdministrator:
		return true
	default:
		return false
	}
}

// AllRoles returns the closed set of role names
func AllRoles() []RoleName {
	return []RoleName{
		RoleStandard,
		RoleModerator,
		RoleAdministrator,
	}
}

// ParseRole safely parses a string into a RoleName
func ParseRole(roleStr string) (RoleName, bool) {
	role := RoleName(roleStr)
	return role, IsValidRole(role)
}

// ResolveRoleNames maps requested role names onto the closed set. Unrecognized
// names downgrade to the standard role; they are returned separately so strict
// callers can surface a role-not-found warning instead of silently accepting
// the downgrade. An empty request resolves to the standard role.
func ResolveRoleNames(requested []string) (resolved []RoleName, unknown []string) {
	if len(requested) == 0 {
		return []RoleName{RoleStandard}, nil
	}

	seen := map[RoleName]bool{}
	for _, name := range requested {
		role, ok := ParseRole(name)
		if !ok {
			unknown = append(unknown, name)
			role = RoleStandard
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		resolved = append(resolved, role)
	}

	return resolved, unknown
}
