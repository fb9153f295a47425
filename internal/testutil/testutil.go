// Package testutil provides shared test helpers for setting up vaults,
// databases, and initialized stores.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/itemstore"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// SeedTypes is the type set used by store-level tests.
func SeedTypes() []models.TypeDefinition {
	return []models.TypeDefinition{
		{Name: "issues", Base: models.BaseTasks},
		{Name: "docs", Base: models.BaseDocuments},
	}
}

// SeedStatuses is the workflow used by store-level tests. The first
// entry is the default; done and dropped are closed.
func SeedStatuses() []models.Status {
	return []models.Status{
		{Name: "open"},
		{Name: "in_progress"},
		{Name: "done", Closed: true},
		{Name: "dropped", Closed: true},
	}
}

// TestStore builds a fully initialized store over a fresh vault and
// database with the default seeds.
func TestStore(t *testing.T) *itemstore.Store {
	t.Helper()
	_, files := TestVault(t)
	db := TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := itemstore.New(files, db, SeedTypes(), SeedStatuses(), logger, nil)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return store
}
