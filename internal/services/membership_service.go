package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/infrastructure/metrics"
	"github.com/kitahara/bunko/internal/repositories"
	"github.com/kitahara/bunko/internal/services/authorization"
)

// MembershipServiceInterface defines the interface for collection membership
type MembershipServiceInterface interface {
	AddBook(ctx context.Context, collectionID, bookID, actorID int64) error
	RemoveBook(ctx context.Context, collectionID, bookID, actorID int64) error
	IsMember(ctx context.Context, collectionID, bookID, requesterID int64) (bool, error)
	ListBooks(ctx context.Context, collectionID, requesterID int64) ([]*entities.Membership, error)
}

// MembershipService manages which books belong to which collection.
// Mutations refresh the collection's updated_at so discovery ordering
// reflects recent activity.
type MembershipService struct {
	store       repositories.Store
	logger      *zap.Logger
	instruments *metrics.Instruments
}

// NewMembershipService creates a new MembershipService
func NewMembershipService(store repositories.Store, logger *zap.Logger, instruments *metrics.Instruments) *MembershipService {
	return &MembershipService{
		store:       store,
		logger:      logger,
		instruments: instruments,
	}
}

// AddBook adds a book to the collection. Requires effective ADD_BOOKS.
// The catalog existence check, the duplicate check, and the insert
// share one transaction. A duplicate is a caller error, not an upsert.
func (s *MembershipService) AddBook(ctx context.Context, collectionID, bookID, actorID int64) (err error) {
	defer s.observe("memberships.add", time.Now(), &err)

	err = s.store.InTx(ctx, func(repos repositories.RepoSet) error {
		resolver := authorization.NewResolver(repos, s.instruments)
		allowed, err := resolver.Has(ctx, collectionID, actorID, entities.PermissionAddBooks)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrForbidden
		}

		exists, err := repos.Books().Exists(ctx, bookID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNoSuchBook
		}

		if err := repos.Memberships().Add(ctx, collectionID, bookID, actorID); err != nil {
			return err
		}

		return repos.Collections().Touch(ctx, collectionID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("added book to collection",
		zap.Int64("collection_id", collectionID),
		zap.Int64("book_id", bookID),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

// RemoveBook removes a book from the collection. Authorized for
// holders of effective ADD_BOOKS, or for the user recorded as the
// row's adder: whoever added a book may always retract it, even after
// losing all other access to the collection.
func (s *MembershipService) RemoveBook(ctx context.Context, collectionID, bookID, actorID int64) (err error) {
	defer s.observe("memberships.remove", time.Now(), &err)

	err = s.store.InTx(ctx, func(repos repositories.RepoSet) error {
		resolver := authorization.NewResolver(repos, s.instruments)
		allowed, err := resolver.Has(ctx, collectionID, actorID, entities.PermissionAddBooks)
		if err != nil {
			return err
		}

		if !allowed {
			adder, err := repos.Memberships().GetAdder(ctx, collectionID, bookID)
			if err != nil {
				// A missing collection or row looks the same as a
				// plain denial to an unauthorized actor
				if errors.Is(err, repositories.ErrNotMember) {
					return ErrForbidden
				}
				return err
			}
			if adder == nil || *adder != actorID {
				return ErrForbidden
			}
		}

		if err := repos.Memberships().Remove(ctx, collectionID, bookID); err != nil {
			return err
		}

		return repos.Collections().Touch(ctx, collectionID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("removed book from collection",
		zap.Int64("collection_id", collectionID),
		zap.Int64("book_id", bookID),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

// IsMember reports whether the book is in the collection. Requesters
// without effective VIEW get false, not an error: membership of a
// private collection must not leak through error shapes.
func (s *MembershipService) IsMember(ctx context.Context, collectionID, bookID, requesterID int64) (member bool, err error) {
	defer s.observe("memberships.contains", time.Now(), &err)

	resolver := authorization.NewResolver(s.store, s.instruments)
	allowed, err := resolver.Has(ctx, collectionID, requesterID, entities.PermissionView)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	return s.store.Memberships().Exists(ctx, collectionID, bookID)
}

// ListBooks retrieves the collection's membership rows, most recently
// added first. Requires effective VIEW.
func (s *MembershipService) ListBooks(ctx context.Context, collectionID, requesterID int64) (memberships []*entities.Membership, err error) {
	defer s.observe("memberships.list", time.Now(), &err)

	resolver := authorization.NewResolver(s.store, s.instruments)
	allowed, err := resolver.Has(ctx, collectionID, requesterID, entities.PermissionView)
	if err != nil {
		return nil, err
	}
	if !allowed {
		// Distinguish a missing collection for the caller's logs
		if _, aerr := s.store.Collections().GetAccess(ctx, collectionID); aerr != nil {
			return nil, aerr
		}
		return nil, ErrForbidden
	}

	return s.store.Memberships().ListByCollection(ctx, collectionID)
}

func (s *MembershipService) observe(operation string, start time.Time, err *error) {
	s.instruments.ObserveOperation(operation, start, *err)
}
