package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/infrastructure/metrics"
	"github.com/kitahara/bunko/internal/repositories"
	"github.com/kitahara/bunko/internal/services/authorization"
	"github.com/kitahara/bunko/pkg/cache"
)

const (
	// searchResultLimit caps search results regardless of scope
	searchResultLimit = 50

	// accessiblePreviewLimit bounds the book ID preview on accessible listings
	accessiblePreviewLimit = 10

	// publicPreviewLimit bounds the book ID preview on public listings and search
	publicPreviewLimit = 5

	// contributorLimit bounds the contributor breakdown in stats
	contributorLimit = 10
)

// DiscoveryServiceInterface defines the interface for read-only collection queries
type DiscoveryServiceInterface interface {
	ListOwned(ctx context.Context, userID int64) ([]*entities.Collection, error)
	ListAccessible(ctx context.Context, userID int64) ([]*entities.Collection, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*entities.Collection, error)
	Search(ctx context.Context, query string, userID int64, publicOnly bool) ([]*entities.Collection, error)
	Stats(ctx context.Context, collectionID, requesterID int64) (*entities.CollectionStats, error)
}

// DiscoveryService answers read-only queries over collections. Public
// listings may be served from a short-TTL cache; per-user results and
// permission decisions never are.
type DiscoveryService struct {
	store       repositories.Store
	logger      *zap.Logger
	instruments *metrics.Instruments
	cache       cache.Cache // optional, public listings only
	cacheTTL    time.Duration
}

// NewDiscoveryService creates a new DiscoveryService without caching
func NewDiscoveryService(store repositories.Store, logger *zap.Logger, instruments *metrics.Instruments) *DiscoveryService {
	return &DiscoveryService{
		store:       store,
		logger:      logger,
		instruments: instruments,
	}
}

// NewDiscoveryServiceWithCache creates a DiscoveryService that caches
// public listing pages for cacheTTL
func NewDiscoveryServiceWithCache(store repositories.Store, logger *zap.Logger, instruments *metrics.Instruments, c cache.Cache, cacheTTL time.Duration) *DiscoveryService {
	return &DiscoveryService{
		store:       store,
		logger:      logger,
		instruments: instruments,
		cache:       c,
		cacheTTL:    cacheTTL,
	}
}

// ListOwned retrieves the user's own collections, any visibility,
// ordered by updated_at descending
func (s *DiscoveryService) ListOwned(ctx context.Context, userID int64) (collections []*entities.Collection, err error) {
	defer s.observe("discovery.owned", time.Now(), &err)

	return s.store.Collections().ListByOwner(ctx, userID)
}

// ListAccessible retrieves every collection the user can see: owned,
// public, and explicitly granted, de-duplicated, owned first
func (s *DiscoveryService) ListAccessible(ctx context.Context, userID int64) (collections []*entities.Collection, err error) {
	defer s.observe("discovery.accessible", time.Now(), &err)

	return s.store.Collections().ListAccessible(ctx, userID, accessiblePreviewLimit)
}

// ListPublic retrieves public collections ordered by created_at
// descending with pagination
func (s *DiscoveryService) ListPublic(ctx context.Context, limit, offset int) (collections []*entities.Collection, err error) {
	defer s.observe("discovery.public", time.Now(), &err)

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset cannot be negative", ErrInvalidInput)
	}

	key := fmt.Sprintf("public:%d:%d", limit, offset)
	if s.cache != nil {
		if cached, found := s.cache.Get(ctx, key); found {
			if collections, ok := cached.([]*entities.Collection); ok {
				return collections, nil
			}
		}
	}

	collections, err = s.store.Collections().ListPublic(ctx, limit, offset, publicPreviewLimit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, collections, s.cacheTTL)
	}

	return collections, nil
}

// likeEscaper protects LIKE metacharacters in user queries so a
// literal % or _ matches itself instead of acting as a wildcard.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches the query case-insensitively against collection names
// and descriptions, scoped to public collections or to the user's
// accessible set, capped at searchResultLimit
func (s *DiscoveryService) Search(ctx context.Context, query string, userID int64, publicOnly bool) (collections []*entities.Collection, err error) {
	defer s.observe("discovery.search", time.Now(), &err)

	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	return s.store.Collections().Search(ctx, pattern, userID, publicOnly, searchResultLimit, publicPreviewLimit)
}

// Stats aggregates a collection's contents. Requires effective VIEW;
// the contributor breakdown is included only for owner or ADMIN.
func (s *DiscoveryService) Stats(ctx context.Context, collectionID, requesterID int64) (stats *entities.CollectionStats, err error) {
	defer s.observe("discovery.stats", time.Now(), &err)

	resolver := authorization.NewResolver(s.store, s.instruments)
	level, ok, err := resolver.Effective(ctx, collectionID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	stats, err = s.store.Collections().Stats(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if level.Satisfies(entities.PermissionAdmin) {
		contributors, err := s.store.Memberships().Contributors(ctx, collectionID, contributorLimit)
		if err != nil {
			return nil, err
		}
		stats.Contributors = contributors
	}

	return stats, nil
}

func (s *DiscoveryService) observe(operation string, start time.Time, err *error) {
	s.instruments.ObserveOperation(operation, start, *err)
}
