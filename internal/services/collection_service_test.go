package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/repositories"
)

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

func newCollectionService(store repositories.Store) *CollectionService {
	return NewCollectionService(store, zap.NewNop(), nil)
}

func TestCollectionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates collection", func(t *testing.T) {
		store := newMemStore()
		store.addUser(1, "alice")
		svc := newCollectionService(store)

		id, err := svc.Create(ctx, 1, "to-read", "queue", false)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if id == 0 {
			t.Error("Create() returned zero ID")
		}

		c := store.collections[id]
		if c == nil {
			t.Fatal("collection not stored")
		}
		if c.Name != "to-read" || c.Description != "queue" || c.OwnerID != 1 || c.IsPublic {
			t.Errorf("stored collection = %+v", c)
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		store := newMemStore()
		svc := newCollectionService(store)

		_, err := svc.Create(ctx, 1, "", "", false)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Create() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("rejects duplicate name for same owner", func(t *testing.T) {
		store := newMemStore()
		store.addUser(1, "alice")
		svc := newCollectionService(store)

		if _, err := svc.Create(ctx, 1, "to-read", "", false); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_, err := svc.Create(ctx, 1, "to-read", "", true)
		if !errors.Is(err, repositories.ErrNameConflict) {
			t.Errorf("Create() error = %v, want ErrNameConflict", err)
		}
	})

	t.Run("same name allowed for different owners", func(t *testing.T) {
		store := newMemStore()
		store.addUser(1, "alice")
		store.addUser(2, "bob")
		svc := newCollectionService(store)

		if _, err := svc.Create(ctx, 1, "to-read", "", false); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := svc.Create(ctx, 2, "to-read", "", false); err != nil {
			t.Errorf("Create() error = %v, want nil", err)
		}
	})
}

func TestCollectionService_Get(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addUser(1, "alice")
	store.addUser(2, "bob")
	store.addUser(3, "carol")

	privateID := store.addCollection(1, "private", false)
	publicID := store.addCollection(1, "public", true)
	store.addGrant(privateID, 2, entities.PermissionView)

	svc := newCollectionService(store)

	tests := []struct {
		name         string
		collectionID int64
		requesterID  int64
		wantErr      error
	}{
		{name: "owner reads private", collectionID: privateID, requesterID: 1},
		{name: "grantee reads private", collectionID: privateID, requesterID: 2},
		{name: "stranger denied on private", collectionID: privateID, requesterID: 3, wantErr: ErrForbidden},
		{name: "anonymous denied on private", collectionID: privateID, requesterID: 0, wantErr: ErrForbidden},
		{name: "stranger reads public", collectionID: publicID, requesterID: 3},
		{name: "anonymous reads public", collectionID: publicID, requesterID: 0},
		{name: "missing collection", collectionID: 999, requesterID: 1, wantErr: repositories.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := svc.Get(ctx, tt.collectionID, tt.requesterID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if c.ID != tt.collectionID {
				t.Errorf("Get() ID = %d, want %d", c.ID, tt.collectionID)
			}
		})
	}
}

func TestCollectionService_Update(t *testing.T) {
	ctx := context.Background()

	setup := func() (*memStore, int64) {
		store := newMemStore()
		store.addUser(1, "alice")
		store.addUser(2, "bob")
		id := store.addCollection(1, "shelf", false)
		return store, id
	}

	t.Run("nil patch is a no-op", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 2, nil); err != nil {
			t.Errorf("Update() error = %v, want nil", err)
		}
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 2, &entities.CollectionPatch{}); err != nil {
			t.Errorf("Update() error = %v, want nil", err)
		}
	})

	t.Run("owner renames", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 1, &entities.CollectionPatch{Name: strptr("stack")}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if store.collections[id].Name != "stack" {
			t.Errorf("name = %q, want stack", store.collections[id].Name)
		}
	})

	t.Run("edit grantee updates", func(t *testing.T) {
		store, id := setup()
		store.addGrant(id, 2, entities.PermissionEdit)
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 2, &entities.CollectionPatch{IsPublic: boolptr(true)}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !store.collections[id].IsPublic {
			t.Error("IsPublic not updated")
		}
	})

	t.Run("add_books grantee denied", func(t *testing.T) {
		store, id := setup()
		store.addGrant(id, 2, entities.PermissionAddBooks)
		svc := newCollectionService(store)
		err := svc.Update(ctx, id, 2, &entities.CollectionPatch{Name: strptr("stack")})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Update() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unset description survives other field updates", func(t *testing.T) {
		store, id := setup()
		store.collections[id].Description = "keep me"
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 1, &entities.CollectionPatch{Name: strptr("stack")}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if store.collections[id].Description != "keep me" {
			t.Errorf("description = %q, want untouched", store.collections[id].Description)
		}
	})

	t.Run("explicit empty description clears", func(t *testing.T) {
		store, id := setup()
		store.collections[id].Description = "old"
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 1, &entities.CollectionPatch{Description: strptr("")}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if store.collections[id].Description != "" {
			t.Errorf("description = %q, want empty", store.collections[id].Description)
		}
	})

	t.Run("rename rejects empty name", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		err := svc.Update(ctx, id, 1, &entities.CollectionPatch{Name: strptr("")})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Update() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("rename into sibling name conflicts", func(t *testing.T) {
		store, id := setup()
		store.addCollection(1, "stack", false)
		svc := newCollectionService(store)
		err := svc.Update(ctx, id, 1, &entities.CollectionPatch{Name: strptr("stack")})
		if !errors.Is(err, repositories.ErrNameConflict) {
			t.Errorf("Update() error = %v, want ErrNameConflict", err)
		}
	})

	t.Run("rename to own current name is allowed", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		if err := svc.Update(ctx, id, 1, &entities.CollectionPatch{Name: strptr("shelf")}); err != nil {
			t.Errorf("Update() error = %v, want nil", err)
		}
	})

	t.Run("missing collection", func(t *testing.T) {
		store, _ := setup()
		svc := newCollectionService(store)
		err := svc.Update(ctx, 999, 1, &entities.CollectionPatch{Name: strptr("stack")})
		if !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestCollectionService_Delete(t *testing.T) {
	ctx := context.Background()

	setup := func() (*memStore, int64) {
		store := newMemStore()
		store.addUser(1, "alice")
		store.addUser(2, "bob")
		store.addBook(100)
		id := store.addCollection(1, "shelf", false)
		store.addGrant(id, 2, entities.PermissionEdit)
		_ = store.Memberships().Add(ctx, id, 100, 1)
		return store, id
	}

	t.Run("owner deletes and children cascade", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		if err := svc.Delete(ctx, id, 1); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, ok := store.collections[id]; ok {
			t.Error("collection row survived delete")
		}
		if len(store.grants) != 0 {
			t.Error("grant rows survived delete")
		}
		if len(store.memberships) != 0 {
			t.Error("membership rows survived delete")
		}
	})

	t.Run("edit grantee denied", func(t *testing.T) {
		store, id := setup()
		svc := newCollectionService(store)
		err := svc.Delete(ctx, id, 2)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Delete() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("admin grantee deletes", func(t *testing.T) {
		store, id := setup()
		store.addGrant(id, 2, entities.PermissionAdmin)
		svc := newCollectionService(store)
		if err := svc.Delete(ctx, id, 2); err != nil {
			t.Errorf("Delete() error = %v, want nil", err)
		}
	})

	t.Run("missing collection", func(t *testing.T) {
		store, _ := setup()
		svc := newCollectionService(store)
		err := svc.Delete(ctx, 999, 1)
		if !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})
}
