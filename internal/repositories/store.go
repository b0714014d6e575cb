package repositories

import "context"

// RepoSet bundles the repositories that share one consistency domain.
// A RepoSet handed to an InTx callback is bound to that transaction;
// the Store itself is a RepoSet whose repositories auto-commit.
type RepoSet interface {
	Collections() CollectionRepository
	Grants() GrantRepository
	Memberships() MembershipRepository
	Users() UserRepository
	Books() BookRepository
}

// Store opens transactions over the collection relations.
//
// Every check-then-act sequence (uniqueness check before create,
// permission check before mutate, existence check before insert) must
// run inside a single InTx call so that concurrent callers cannot
// interleave between the check and the write.
type Store interface {
	RepoSet

	// InTx runs fn inside one transaction at an isolation level that
	// prevents write skew, committing on nil and rolling back on error.
	InTx(ctx context.Context, fn func(repos RepoSet) error) error
}
