package entities

import (
	"fmt"
	"time"
)

// Grant is an explicit permission record for a user on a collection.
// At most one grant exists per (collection, user) pair, and never for
// the collection's owner: owner rights are implicit.
type Grant struct {
	CollectionID      int64      // Collection the grant applies to
	UserID            int64      // Grantee user ID
	Username          string     // Grantee username (denormalized for display)
	Permission        Permission // Granted access level
	GrantedBy         int64      // User who issued the grant
	GrantedByUsername string     // Granter username, empty if the account was deleted
	GrantedAt         time.Time  // When the grant was issued or last replaced
}

// Validate checks that the grant has the required fields
func (g *Grant) Validate() error {
	if g.CollectionID <= 0 {
		return fmt.Errorf("grant collection ID is required")
	}
	if g.UserID <= 0 {
		return fmt.Errorf("grant user ID is required")
	}
	if !g.Permission.Valid() {
		return fmt.Errorf("grant permission is invalid")
	}
	return nil
}
