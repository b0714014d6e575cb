package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/infrastructure/metrics"
	"github.com/kitahara/bunko/internal/repositories"
	"github.com/kitahara/bunko/internal/services/authorization"
)

// CollectionServiceInterface defines the interface for collection CRUD
type CollectionServiceInterface interface {
	Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (int64, error)
	Get(ctx context.Context, id, requesterID int64) (*entities.Collection, error)
	Update(ctx context.Context, id, actorID int64, patch *entities.CollectionPatch) error
	Delete(ctx context.Context, id, actorID int64) error
}

// CollectionService manages collection records. Every mutation runs
// its permission check and its write inside one transaction.
type CollectionService struct {
	store       repositories.Store
	logger      *zap.Logger
	instruments *metrics.Instruments
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(store repositories.Store, logger *zap.Logger, instruments *metrics.Instruments) *CollectionService {
	return &CollectionService{
		store:       store,
		logger:      logger,
		instruments: instruments,
	}
}

// Create creates a collection owned by ownerID. The per-owner name
// uniqueness check and the insert share one transaction; the unique
// index backstops the race between two concurrent creates.
func (s *CollectionService) Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (id int64, err error) {
	defer s.observe("collections.create", time.Now(), &err)

	collection := &entities.Collection{Name: name, OwnerID: ownerID}
	if verr := collection.Validate(); verr != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, verr)
	}

	err = s.store.InTx(ctx, func(repos repositories.RepoSet) error {
		taken, err := repos.Collections().NameTaken(ctx, ownerID, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return repositories.ErrNameConflict
		}

		id, err = repos.Collections().Create(ctx, ownerID, name, description, isPublic)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("created collection",
		zap.Int64("collection_id", id),
		zap.Int64("owner_id", ownerID),
		zap.String("name", name),
		zap.Bool("is_public", isPublic),
	)
	return id, nil
}

// Get retrieves a collection if the requester may see it: public,
// owner, or holder of any explicit grant. An existing collection the
// requester cannot see yields ErrForbidden, distinct from ErrNotFound,
// so logs stay truthful; the transport collapses the two.
func (s *CollectionService) Get(ctx context.Context, id, requesterID int64) (collection *entities.Collection, err error) {
	defer s.observe("collections.get", time.Now(), &err)

	resolver := authorization.NewResolver(s.store, s.instruments)
	_, ok, err := resolver.Effective(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("collection access denied",
			zap.Int64("collection_id", id),
			zap.Int64("user_id", requesterID),
		)
		return nil, ErrForbidden
	}

	return s.store.Collections().GetByID(ctx, id)
}

// Update applies a partial update. Requires effective EDIT. Renames
// re-check per-owner uniqueness inside the same transaction.
func (s *CollectionService) Update(ctx context.Context, id, actorID int64, patch *entities.CollectionPatch) (err error) {
	defer s.observe("collections.update", time.Now(), &err)

	if patch == nil || patch.Empty() {
		return nil
	}
	if verr := patch.Validate(); verr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, verr)
	}

	err = s.store.InTx(ctx, func(repos repositories.RepoSet) error {
		access, err := repos.Collections().GetAccess(ctx, id)
		if err != nil {
			return err
		}

		resolver := authorization.NewResolver(repos, s.instruments)
		allowed, err := resolver.Has(ctx, id, actorID, entities.PermissionEdit)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrForbidden
		}

		if patch.Name != nil {
			taken, err := repos.Collections().NameTaken(ctx, access.OwnerID, *patch.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return repositories.ErrNameConflict
			}
		}

		return repos.Collections().Update(ctx, id, patch)
	})
	if err != nil {
		return err
	}

	s.logger.Info("updated collection",
		zap.Int64("collection_id", id),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

// Delete removes a collection. Requires owner or effective ADMIN. The
// collection row and all its grant and membership rows go in one
// transaction; no orphaned child rows survive.
func (s *CollectionService) Delete(ctx context.Context, id, actorID int64) (err error) {
	defer s.observe("collections.delete", time.Now(), &err)

	err = s.store.InTx(ctx, func(repos repositories.RepoSet) error {
		resolver := authorization.NewResolver(repos, s.instruments)
		level, ok, err := resolver.Effective(ctx, id, actorID)
		if err != nil {
			return err
		}
		if !ok || !level.Satisfies(entities.PermissionAdmin) {
			return ErrForbidden
		}

		return repos.Collections().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("deleted collection",
		zap.Int64("collection_id", id),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

func (s *CollectionService) observe(operation string, start time.Time, err *error) {
	s.instruments.ObserveOperation(operation, start, *err)
}
