package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/repositories"
)

// In-memory fake store for service tests. It implements the full
// Store contract over maps; InTx just runs the callback against the
// same state, which is enough for single-goroutine tests.

type pairKey struct {
	collectionID int64
	userID       int64
}

type membKey struct {
	collectionID int64
	bookID       int64
}

type memStore struct {
	nextID      int64
	collections map[int64]*entities.Collection
	grants      map[pairKey]*entities.Grant
	memberships map[membKey]*entities.Membership
	users       map[int64]string
	books       map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		collections: make(map[int64]*entities.Collection),
		grants:      make(map[pairKey]*entities.Grant),
		memberships: make(map[membKey]*entities.Membership),
		users:       make(map[int64]string),
		books:       make(map[int64]bool),
	}
}

func (m *memStore) addUser(id int64, username string) {
	m.users[id] = username
}

func (m *memStore) addBook(id int64) {
	m.books[id] = true
}

func (m *memStore) addCollection(ownerID int64, name string, isPublic bool) int64 {
	id, _ := m.Collections().Create(context.Background(), ownerID, name, "", isPublic)
	return id
}

func (m *memStore) addGrant(collectionID, userID int64, level entities.Permission) {
	m.grants[pairKey{collectionID, userID}] = &entities.Grant{
		CollectionID: collectionID,
		UserID:       userID,
		Permission:   level,
		GrantedAt:    time.Now(),
	}
}

func (m *memStore) Collections() repositories.CollectionRepository { return &memCollections{m} }
func (m *memStore) Grants() repositories.GrantRepository           { return &memGrants{m} }
func (m *memStore) Memberships() repositories.MembershipRepository { return &memMemberships{m} }
func (m *memStore) Users() repositories.UserRepository             { return &memUsers{m} }
func (m *memStore) Books() repositories.BookRepository             { return &memBooks{m} }

func (m *memStore) InTx(ctx context.Context, fn func(repos repositories.RepoSet) error) error {
	return fn(m)
}

type memCollections struct{ s *memStore }

func (r *memCollections) Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (int64, error) {
	id := r.s.nextID
	r.s.nextID++
	now := time.Now()
	r.s.collections[id] = &entities.Collection{
		ID:            id,
		Name:          name,
		Description:   description,
		OwnerID:       ownerID,
		OwnerUsername: r.s.users[ownerID],
		IsPublic:      isPublic,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id, nil
}

func (r *memCollections) GetByID(ctx context.Context, id int64) (*entities.Collection, error) {
	c, ok := r.s.collections[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *c
	for key := range r.s.memberships {
		if key.collectionID == id {
			out.BookCount++
			out.BookIDs = append(out.BookIDs, key.bookID)
		}
	}
	return &out, nil
}

func (r *memCollections) GetAccess(ctx context.Context, id int64) (*repositories.CollectionAccess, error) {
	c, ok := r.s.collections[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &repositories.CollectionAccess{OwnerID: c.OwnerID, IsPublic: c.IsPublic}, nil
}

func (r *memCollections) NameTaken(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error) {
	for id, c := range r.s.collections {
		if c.OwnerID == ownerID && c.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCollections) Update(ctx context.Context, id int64, patch *entities.CollectionPatch) error {
	c, ok := r.s.collections[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		c.IsPublic = *patch.IsPublic
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memCollections) Touch(ctx context.Context, id int64) error {
	c, ok := r.s.collections[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memCollections) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.collections[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.collections, id)
	for key := range r.s.grants {
		if key.collectionID == id {
			delete(r.s.grants, key)
		}
	}
	for key := range r.s.memberships {
		if key.collectionID == id {
			delete(r.s.memberships, key)
		}
	}
	return nil
}

func (r *memCollections) ListByOwner(ctx context.Context, ownerID int64) ([]*entities.Collection, error) {
	var out []*entities.Collection
	for _, c := range r.s.collections {
		if c.OwnerID == ownerID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memCollections) ListAccessible(ctx context.Context, userID int64, previewLimit int) ([]*entities.Collection, error) {
	var owned, other []*entities.Collection
	for id, c := range r.s.collections {
		_, granted := r.s.grants[pairKey{id, userID}]
		switch {
		case c.OwnerID == userID:
			copied := *c
			owned = append(owned, &copied)
		case c.IsPublic || granted:
			copied := *c
			other = append(other, &copied)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].UpdatedAt.After(owned[j].UpdatedAt) })
	sort.Slice(other, func(i, j int) bool { return other[i].UpdatedAt.After(other[j].UpdatedAt) })
	return append(owned, other...), nil
}

func (r *memCollections) ListPublic(ctx context.Context, limit, offset, previewLimit int) ([]*entities.Collection, error) {
	var out []*entities.Collection
	for _, c := range r.s.collections {
		if c.IsPublic {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// likeUnescaper reverses the service layer's LIKE escaping so the fake
// compares literal substrings the way the database would.
var likeUnescaper = strings.NewReplacer(`\\`, `\`, `\%`, `%`, `\_`, `_`)

func (r *memCollections) Search(ctx context.Context, pattern string, userID int64, publicOnly bool, limit, previewLimit int) ([]*entities.Collection, error) {
	// Strip the single wrapping wildcard on each side, then unescape
	needle := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	needle = strings.ToLower(likeUnescaper.Replace(needle))
	var out []*entities.Collection
	for id, c := range r.s.collections {
		if !strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Description), needle) {
			continue
		}
		_, granted := r.s.grants[pairKey{id, userID}]
		if publicOnly {
			if !c.IsPublic {
				continue
			}
		} else if !c.IsPublic && c.OwnerID != userID && !granted {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	// Each scope orders like its listing
	sort.Slice(out, func(i, j int) bool {
		if publicOnly {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		iOwned, jOwned := out[i].OwnerID == userID, out[j].OwnerID == userID
		if iOwned != jOwned {
			return iOwned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memCollections) Stats(ctx context.Context, id int64) (*entities.CollectionStats, error) {
	c, ok := r.s.collections[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	stats := &entities.CollectionStats{
		Name:          c.Name,
		Description:   c.Description,
		OwnerUsername: c.OwnerUsername,
		CreatedAt:     c.CreatedAt,
		FileTypes:     make(map[string]int),
	}
	for key, m := range r.s.memberships {
		if key.collectionID != id {
			continue
		}
		stats.TotalBooks++
		if m.FileType != "" {
			stats.FileTypes[m.FileType]++
		}
	}
	return stats, nil
}

type memGrants struct{ s *memStore }

func (r *memGrants) Upsert(ctx context.Context, grant *entities.Grant) error {
	copied := *grant
	copied.GrantedAt = time.Now()
	r.s.grants[pairKey{grant.CollectionID, grant.UserID}] = &copied
	return nil
}

func (r *memGrants) Delete(ctx context.Context, collectionID, userID int64) error {
	key := pairKey{collectionID, userID}
	if _, ok := r.s.grants[key]; !ok {
		return repositories.ErrNoGrant
	}
	delete(r.s.grants, key)
	return nil
}

func (r *memGrants) GetLevel(ctx context.Context, collectionID, userID int64) (entities.Permission, error) {
	g, ok := r.s.grants[pairKey{collectionID, userID}]
	if !ok {
		return 0, repositories.ErrNoGrant
	}
	return g.Permission, nil
}

func (r *memGrants) ListByCollection(ctx context.Context, collectionID int64) ([]*entities.Grant, error) {
	var out []*entities.Grant
	for key, g := range r.s.grants {
		if key.collectionID == collectionID {
			copied := *g
			copied.Username = r.s.users[g.UserID]
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

type memMemberships struct{ s *memStore }

func (r *memMemberships) Add(ctx context.Context, collectionID, bookID, addedBy int64) error {
	key := membKey{collectionID, bookID}
	if _, ok := r.s.memberships[key]; ok {
		return repositories.ErrAlreadyMember
	}
	adder := addedBy
	r.s.memberships[key] = &entities.Membership{
		CollectionID: collectionID,
		BookID:       bookID,
		AddedAt:      time.Now(),
		AddedBy:      &adder,
	}
	return nil
}

func (r *memMemberships) Remove(ctx context.Context, collectionID, bookID int64) error {
	key := membKey{collectionID, bookID}
	if _, ok := r.s.memberships[key]; !ok {
		return repositories.ErrNotMember
	}
	delete(r.s.memberships, key)
	return nil
}

func (r *memMemberships) GetAdder(ctx context.Context, collectionID, bookID int64) (*int64, error) {
	m, ok := r.s.memberships[membKey{collectionID, bookID}]
	if !ok {
		return nil, repositories.ErrNotMember
	}
	return m.AddedBy, nil
}

func (r *memMemberships) Exists(ctx context.Context, collectionID, bookID int64) (bool, error) {
	_, ok := r.s.memberships[membKey{collectionID, bookID}]
	return ok, nil
}

func (r *memMemberships) ListByCollection(ctx context.Context, collectionID int64) ([]*entities.Membership, error) {
	var out []*entities.Membership
	for key, m := range r.s.memberships {
		if key.collectionID == collectionID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

func (r *memMemberships) Contributors(ctx context.Context, collectionID int64, limit int) ([]entities.ContributorStat, error) {
	counts := make(map[string]int)
	for key, m := range r.s.memberships {
		if key.collectionID != collectionID {
			continue
		}
		username := ""
		if m.AddedBy != nil {
			username = r.s.users[*m.AddedBy]
		}
		counts[username]++
	}
	var out []entities.ContributorStat
	for username, n := range counts {
		out = append(out, entities.ContributorStat{Username: username, BooksAdded: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BooksAdded > out[j].BooksAdded })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) Exists(ctx context.Context, userID int64) (bool, error) {
	_, ok := r.s.users[userID]
	return ok, nil
}

type memBooks struct{ s *memStore }

func (r *memBooks) Exists(ctx context.Context, bookID int64) (bool, error) {
	return r.s.books[bookID], nil
}
