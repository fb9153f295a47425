package registry

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/models"
)

func testDB(t *testing.T) *index.DB {
	t.Helper()
	f, err := os.CreateTemp("", "dagaz-registry-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := index.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seededTypes(t *testing.T, db *index.DB) *Types {
	t.Helper()
	types := NewTypes(db)
	err := types.Seed([]models.TypeDefinition{
		{Name: "issues", Base: models.BaseTasks},
		{Name: "docs", Base: models.BaseDocuments},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return types
}

func TestTypes_SeedRegistersBuiltins(t *testing.T) {
	types := seededTypes(t, testDB(t))

	for _, name := range []string{"issues", "docs", "sessions", "dailies"} {
		if _, ok := types.Lookup(name); !ok {
			t.Errorf("type %q missing after seed", name)
		}
	}
	if len(types.All()) != 4 {
		t.Errorf("All() = %d types, want 4", len(types.All()))
	}
}

func TestTypes_SeedIdempotentAndExistingWins(t *testing.T) {
	db := testDB(t)
	types := seededTypes(t, db)

	// Register a user type, then re-seed with a conflicting definition:
	// the stored one must survive.
	if err := types.Register(models.TypeDefinition{Name: "meetings", Base: models.BaseSessions, Description: "original"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fresh := NewTypes(db)
	err := fresh.Seed([]models.TypeDefinition{
		{Name: "meetings", Base: models.BaseTasks, Description: "overwritten"},
	})
	if err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	def, ok := fresh.Lookup("meetings")
	if !ok {
		t.Fatal("meetings missing after re-seed")
	}
	if def.Base != models.BaseSessions || def.Description != "original" {
		t.Errorf("stored definition was overwritten by seed: %+v", def)
	}
}

func TestTypes_RegisterValidation(t *testing.T) {
	types := seededTypes(t, testDB(t))

	if err := types.Register(models.TypeDefinition{Name: "bad", Base: "widgets"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown base error = %v, want ErrValidation", err)
	}
	if err := types.Register(models.TypeDefinition{Name: "has-dash", Base: models.BaseTasks}); err == nil {
		t.Error("type name with dash should be rejected")
	}
	if err := types.Register(models.TypeDefinition{Name: "sessions", Base: models.BaseSessions}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("builtin register error = %v, want ErrConflict", err)
	}
}

func TestTypes_RegisterDuplicateConflicts(t *testing.T) {
	types := seededTypes(t, testDB(t))

	if err := types.Register(models.TypeDefinition{Name: "meetings", Base: models.BaseSessions}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Re-registering must not overwrite: a new base would change the
	// id-allocation policy for items already written.
	err := types.Register(models.TypeDefinition{Name: "meetings", Base: models.BaseTasks})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("duplicate register error = %v, want ErrAlreadyExists", err)
	}
	def, ok := types.Lookup("meetings")
	if !ok || def.Base != models.BaseSessions {
		t.Errorf("definition after rejected re-register = %+v, want original base", def)
	}
}

func TestTypes_Delete(t *testing.T) {
	types := seededTypes(t, testDB(t))

	_ = types.Register(models.TypeDefinition{Name: "meetings", Base: models.BaseSessions})

	deleted, err := types.Delete("meetings")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("expected Delete to report true")
	}
	if _, ok := types.Lookup("meetings"); ok {
		t.Error("deleted type still in cache")
	}

	deleted, err = types.Delete("meetings")
	if err != nil {
		t.Fatalf("Delete (repeat): %v", err)
	}
	if deleted {
		t.Error("second delete should report false")
	}

	if _, err := types.Delete("dailies"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("builtin delete error = %v, want ErrConflict", err)
	}
}

func TestStatuses_SeedOrderAndDefault(t *testing.T) {
	db := testDB(t)
	statuses := NewStatuses(db)
	err := statuses.Seed([]models.Status{
		{Name: "open"},
		{Name: "in_progress"},
		{Name: "done", Closed: true},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	def, ok := statuses.Default()
	if !ok || def.Name != "open" {
		t.Errorf("default = %+v, want open", def)
	}

	all := statuses.All()
	if len(all) != 3 || all[0].Name != "open" || all[2].Name != "done" {
		t.Errorf("All() = %+v, want seed order", all)
	}
	if !all[2].Closed {
		t.Error("done should be closed")
	}

	st, ok := statuses.Resolve("in_progress")
	if !ok {
		t.Fatal("in_progress missing")
	}
	back, ok := statuses.ByID(st.ID)
	if !ok || back.Name != "in_progress" {
		t.Errorf("ByID round trip = %+v", back)
	}

	if _, ok := statuses.Resolve("bogus"); ok {
		t.Error("unknown status resolved")
	}
}

func TestStatuses_SeedIdempotent(t *testing.T) {
	db := testDB(t)
	seeds := []models.Status{{Name: "open"}, {Name: "done", Closed: true}}

	first := NewStatuses(db)
	if err := first.Seed(seeds); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	second := NewStatuses(db)
	if err := second.Seed(seeds); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if len(second.All()) != 2 {
		t.Errorf("re-seed duplicated statuses: %+v", second.All())
	}

	if err := NewStatuses(db).Seed([]models.Status{{Name: ""}}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty name error = %v, want ErrValidation", err)
	}
}
