// Package storetest opens migrated throwaway content stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"academy/contentsync/internal/content"
	"academy/contentsync/internal/store"
)

// Open returns a migrated SQLite store in t's temp dir, closed on cleanup.
func Open(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := store.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store.New(db)
}

// Seed inserts a resource and returns its id.
func Seed(t testing.TB, s *store.Store, res store.Resource) string {
	t.Helper()
	var id string
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		id, err = tx.InsertResource(context.Background(), content.Kind(res.Type), res.Fields)
		return err
	})
	if err != nil {
		t.Fatalf("seed resource: %v", err)
	}
	return id
}

// Link inserts a relationship.
func Link(t testing.TB, s *store.Store, parentID, childID string, position float64) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertRelationship(context.Background(), store.Relationship{ParentID: parentID, ChildID: childID, Position: position})
	})
	if err != nil {
		t.Fatalf("link %s -> %s: %v", parentID, childID, err)
	}
}
