package authorization

import (
	"context"
	"errors"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/infrastructure/metrics"
	"github.com/kitahara/bunko/internal/repositories"
)

// ResolverInterface defines the interface for permission resolution
type ResolverInterface interface {
	Effective(ctx context.Context, collectionID, userID int64) (entities.Permission, bool, error)
	Has(ctx context.Context, collectionID, userID int64, required entities.Permission) (bool, error)
}

// Resolver computes a user's effective permission for a collection.
// It is the only component that implements the precedence order;
// everything else asks it before touching state.
//
// Results are never cached. Every call re-reads the authoritative
// rows, since a stale authorization decision is a security defect.
//
// A userID of 0 denotes an anonymous requester: never an owner, never
// a grantee, entitled to VIEW only on public collections.
type Resolver struct {
	repos       repositories.RepoSet
	instruments *metrics.Instruments
}

// NewResolver creates a Resolver over the given repository set. Pass
// the set handed to an InTx callback to resolve inside that
// transaction, or the store itself for auto-commit reads.
func NewResolver(repos repositories.RepoSet, instruments *metrics.Instruments) *Resolver {
	return &Resolver{repos: repos, instruments: instruments}
}

// Effective resolves the user's permission in strict precedence order:
// owner, explicit grant, public fallback. ok is false when the user
// has no access at all. Returns repositories.ErrNotFound when the
// collection does not exist, so callers that must distinguish a
// missing collection from a denied one can.
func (r *Resolver) Effective(ctx context.Context, collectionID, userID int64) (entities.Permission, bool, error) {
	access, err := r.repos.Collections().GetAccess(ctx, collectionID)
	if err != nil {
		return 0, false, err
	}

	// Owner rights are implicit and take precedence over any stored
	// grant row, stray or otherwise.
	if userID != 0 && access.OwnerID == userID {
		return entities.PermissionAdmin, true, nil
	}

	level, err := r.repos.Grants().GetLevel(ctx, collectionID, userID)
	if err == nil {
		return level, true, nil
	}
	if !errors.Is(err, repositories.ErrNoGrant) {
		return 0, false, err
	}

	// Public visibility grants VIEW exactly, never more
	if access.IsPublic {
		return entities.PermissionView, true, nil
	}

	return 0, false, nil
}

// Has reports whether the user's effective permission satisfies the
// required level. A missing collection resolves to false, not an
// error, matching the "no permission" outcome.
func (r *Resolver) Has(ctx context.Context, collectionID, userID int64, required entities.Permission) (bool, error) {
	level, ok, err := r.Effective(ctx, collectionID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		r.instruments.ObserveCheck(false)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	allowed := ok && level.Satisfies(required)
	r.instruments.ObserveCheck(allowed)
	return allowed, nil
}
