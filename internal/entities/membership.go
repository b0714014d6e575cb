package entities

import "time"

// Membership is a (collection, book) association recording who added
// the book and when. At most one row exists per pair.
type Membership struct {
	CollectionID    int64     // Collection the book belongs to
	BookID          int64     // Member book ID
	Title           string    // Book title (denormalized for display)
	Author          string    // Book author, may be empty
	FileType        string    // Book file format (epub, pdf, ...)
	AddedAt         time.Time // When the book was added
	AddedBy         *int64    // Adding user, nil if the account was since deleted
	AddedByUsername string    // Adder username, empty when AddedBy is nil
}

// AddedByUser reports whether the membership was added by the given user.
// Rows whose adder account was deleted belong to nobody.
func (m *Membership) AddedByUser(userID int64) bool {
	return m.AddedBy != nil && *m.AddedBy == userID
}

// ContributorStat counts how many books a user added to a collection
type ContributorStat struct {
	Username   string // Contributor username, empty if the account was deleted
	BooksAdded int    // Number of membership rows added by the contributor
}

// RecentAddition is a membership row summarized for statistics views
type RecentAddition struct {
	Title           string
	Author          string
	AddedAt         time.Time
	AddedByUsername string
}

// CollectionStats aggregates a collection's contents for reporting.
// Contributors is populated only for owner or admin requesters.
type CollectionStats struct {
	Name            string
	Description     string
	OwnerUsername   string
	CreatedAt       time.Time
	TotalBooks      int
	FileTypes       map[string]int
	RecentAdditions []RecentAddition
	Contributors    []ContributorStat
}
