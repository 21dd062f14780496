package userpool

import "strings"

// Role is the site-wide permission level derived from group memberships.
type Role string

const (
	// RoleGuest is the floor for any authenticated user with no groups.
	RoleGuest Role = "guest"
	// RoleBand can manage its own gigs and press material.
	RoleBand Role = "band"
	// RoleEditor can edit any published content.
	RoleEditor Role = "editor"
	// RoleManager can manage bands and schedule content.
	RoleManager Role = "manager"
	// RoleAdmin can do everything, including user administration.
	RoleAdmin Role = "admin"
)

var roleHierarchy = map[Role]int{
	RoleGuest:   0,
	RoleBand:    1,
	RoleEditor:  2,
	RoleManager: 3,
	RoleAdmin:   4,
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []Role {
	return []Role{
		RoleGuest,
		RoleBand,
		RoleEditor,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role type, case-insensitively.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// RoleFromGroups returns the highest role named by the given groups. Groups
// that do not map to a role are ignored; no recognizable group means guest.
func RoleFromGroups(groups []string) Role {
	best := RoleGuest
	for _, group := range groups {
		role, ok := ParseRole(group)
		if !ok {
			continue
		}
		if roleHierarchy[role] > roleHierarchy[best] {
			best = role
		}
	}
	return best
}
