package entities

import (
	"fmt"
	"time"
)

// Collection is a named, ownable grouping of books with a visibility flag
type Collection struct {
	ID            int64     // Unique collection ID
	Name          string    // Display name, unique per owner
	Description   string    // Optional description
	OwnerID       int64     // User who owns the collection
	OwnerUsername string    // Owner's username (denormalized for display)
	IsPublic      bool      // Whether the collection is publicly visible
	CreatedAt     time.Time // Creation timestamp
	UpdatedAt     time.Time // Last modification timestamp (touched by membership changes)
	BookCount     int       // Total number of books in the collection
	BookIDs       []int64   // Member book IDs, newest first; bounded preview on list results
}

// Validate checks that the collection has the required fields
func (c *Collection) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if c.OwnerID <= 0 {
		return fmt.Errorf("collection owner is required")
	}
	return nil
}

// CollectionPatch describes a partial update to a collection.
// A nil field leaves the current value unchanged; a non-nil pointer
// sets the field, so an empty description can be set intentionally.
type CollectionPatch struct {
	Name        *string
	Description *string
	IsPublic    *bool
}

// Empty reports whether the patch changes nothing
func (p *CollectionPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsPublic == nil
}

// Validate checks patch fields that are present
func (p *CollectionPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	return nil
}
