package entities

import "fmt"

// Permission is the access level a user holds on a collection.
// Levels are totally ordered: View < AddBooks < Edit < Admin.
type Permission int

const (
	// PermissionView allows reading the collection and its books
	PermissionView Permission = iota
	// PermissionAddBooks allows adding books to the collection
	PermissionAddBooks
	// PermissionEdit allows modifying collection metadata
	PermissionEdit
	// PermissionAdmin allows full control including grant management
	PermissionAdmin
)

// permissionNames is the persistence vocabulary for permission levels
var permissionNames = map[Permission]string{
	PermissionView:     "view",
	PermissionAddBooks: "add_books",
	PermissionEdit:     "edit",
	PermissionAdmin:    "admin",
}

// Rank returns the integer rank of the permission (0-3)
func (p Permission) Rank() int {
	return int(p)
}

// Satisfies reports whether a holder of p meets the required level
func (p Permission) Satisfies(required Permission) bool {
	return p.Rank() >= required.Rank()
}

// Valid reports whether p is one of the four defined levels
func (p Permission) Valid() bool {
	_, ok := permissionNames[p]
	return ok
}

// String returns the persistence string for the permission level
func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("permission(%d)", int(p))
}

// ParsePermission converts a stored string into a Permission.
// Unknown strings are an error: defaulting to any level on corrupt
// data would silently widen or narrow access.
func ParsePermission(s string) (Permission, error) {
	for p, name := range permissionNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown permission %q", s)
}
