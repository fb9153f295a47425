package itemstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

func defaultTypes() []models.TypeDefinition {
	return []models.TypeDefinition{
		{Name: "issues", Base: models.BaseTasks},
		{Name: "docs", Base: models.BaseDocuments},
	}
}

func defaultStatuses() []models.Status {
	return []models.Status{
		{Name: "open"},
		{Name: "in_progress"},
		{Name: "done", Closed: true},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv builds an initialized store and returns its vault dir for
// tests that re-open the same files.
func testEnv(t *testing.T) (*Store, string) {
	t.Helper()
	vaultDir := t.TempDir()
	files, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	db := openDB(t)
	store := New(files, db, defaultTypes(), defaultStatuses(), testLogger(), nil)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return store, vaultDir
}

func openDB(t *testing.T) *index.DB {
	t.Helper()
	f, err := os.CreateTemp("", "dagaz-store-test-*.db")
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

func mustCreate(t *testing.T, s *Store, draft models.Draft) *models.Item {
	t.Helper()
	it, err := s.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return it
}

func TestCreateGetRoundTrip(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	created := mustCreate(t, store, models.Draft{
		Type:        "issues",
		Title:       "Login bug",
		Description: "expired refresh token",
		Content:     "Session expires too early.",
		Priority:    models.PriorityHigh,
		Tags:        []string{"auth", "backend"},
		Related:     []string{"docs-1"},
		StartDate:   "2026-03-01",
	})
	if created.Type != "issues" || created.ID != "1" {
		t.Fatalf("created = %s-%s, want issues-1", created.Type, created.ID)
	}

	got, err := store.Get(ctx, "issues", "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for a just-created item")
	}
	if got.Title != created.Title || got.Description != created.Description ||
		got.Content != created.Content || got.Priority != created.Priority ||
		got.Status != created.Status || got.StartDate != created.StartDate {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, created)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "auth" {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) || !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Errorf("timestamps changed across the file round trip")
	}
}

func TestCreateDefaults(t *testing.T) {
	store, _ := testEnv(t)

	it := mustCreate(t, store, models.Draft{Type: "issues", Title: "Defaults", Content: "x"})
	if it.Priority != models.PriorityMedium {
		t.Errorf("priority = %q, want medium", it.Priority)
	}
	if it.Status != "open" {
		t.Errorf("status = %q, want the first seeded status", it.Status)
	}
}

func TestCreateNormalizesDraftCollections(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	created := mustCreate(t, store, models.Draft{
		Type:    "issues",
		Title:   "Dup tags",
		Content: "  body with padding  \n",
		Tags:    []string{"auth", "auth", " bug ", ""},
		Related: []string{"docs-1", "docs-1"},
	})

	wantTags := []string{"auth", "bug"}
	if len(created.Tags) != len(wantTags) {
		t.Fatalf("created tags = %v, want %v", created.Tags, wantTags)
	}
	for i := range wantTags {
		if created.Tags[i] != wantTags[i] {
			t.Errorf("created tags[%d] = %q, want %q", i, created.Tags[i], wantTags[i])
		}
	}
	if len(created.Related) != 1 || created.Related[0] != "docs-1" {
		t.Errorf("created related = %v, want one docs-1", created.Related)
	}
	if created.Content != "body with padding" {
		t.Errorf("created content = %q, want trimmed", created.Content)
	}

	// The returned item must be what a read parses back.
	got, err := store.Get(ctx, "issues", "1")
	if err != nil || got == nil {
		t.Fatalf("Get = (%v, %v)", got, err)
	}
	if len(got.Tags) != len(created.Tags) || got.Content != created.Content ||
		len(got.Related) != len(created.Related) {
		t.Errorf("read back:\n got %+v\nwant %+v", got, created)
	}

	// Updates normalize the same way.
	dups := []string{"infra", "infra"}
	updated, err := store.Update(ctx, "issues", "1", models.Patch{Tags: &dups})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "infra" {
		t.Errorf("updated tags = %v, want [infra]", updated.Tags)
	}
}

func TestCreateValidation(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	cases := []models.Draft{
		{Type: "issues", Content: "x"},                                               // no title
		{Type: "issues", Title: "t"},                                                 // task base requires content
		{Type: "issues", Title: "t", Content: "x", Priority: "urgent"},               // bad priority
		{Type: "issues", Title: "t", Content: "x", StartDate: "tomorrow"},            // bad date
		{Type: "issues", Title: "t", Content: "x", StartTime: "9am"},                 // bad time
		{Type: "issues", Title: "t", Content: "x", Related: []string{"no/such/ref"}}, // bad ref
	}
	for i, d := range cases {
		if _, err := store.Create(ctx, d); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}

	if _, err := store.Create(ctx, models.Draft{Type: "widgets", Title: "t", Content: "x"}); !errors.Is(err, apperr.ErrUnknownType) {
		t.Errorf("unknown type err = %v, want ErrUnknownType", err)
	}
	if _, err := store.Create(ctx, models.Draft{Type: "issues", Title: "t", Content: "x", Status: "bogus"}); !errors.Is(err, apperr.ErrUnknownStatus) {
		t.Errorf("unknown status err = %v, want ErrUnknownStatus", err)
	}
}

func TestSequentialIDs_Concurrent(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	const workers = 10
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			it, err := store.Create(ctx, models.Draft{
				Type: "issues", Title: "Task " + strconv.Itoa(n), Content: "body",
			})
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids <- it.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	for n := 1; n <= workers; n++ {
		if !seen[strconv.Itoa(n)] {
			t.Errorf("id %d never allocated", n)
		}
	}
}

func TestSessionAndDailyIDs(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 5, 14, 30, 45, 123e6, time.UTC)
	store.now = func() time.Time { return fixed }

	session := mustCreate(t, store, models.Draft{Type: "sessions", Title: "Pairing"})
	if session.ID != "2026-03-05-14.30.45.123" {
		t.Errorf("session id = %q", session.ID)
	}

	daily := mustCreate(t, store, models.Draft{Type: "dailies", Title: "Daily"})
	if daily.ID != "2026-03-05" {
		t.Errorf("daily id = %q", daily.ID)
	}
	if daily.StartDate != "2026-03-05" {
		t.Errorf("daily start date = %q, want its own id", daily.StartDate)
	}

	// Same calendar date is occupied.
	if _, err := store.Create(ctx, models.Draft{Type: "dailies", Title: "Again"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate daily err = %v, want ErrConflict", err)
	}

	// An explicit date picks the slot.
	other := mustCreate(t, store, models.Draft{Type: "dailies", Title: "Planned", StartDate: "2026-03-09"})
	if other.ID != "2026-03-09" {
		t.Errorf("explicit daily id = %q", other.ID)
	}

	// The date cannot be patched away from the id.
	moved := "2026-03-10"
	if _, err := store.Update(ctx, "dailies", "2026-03-09", models.Patch{StartDate: &moved}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("daily start_date move err = %v, want ErrValidation", err)
	}
	same := "2026-03-09"
	if _, err := store.Update(ctx, "dailies", "2026-03-09", models.Patch{StartDate: &same}); err != nil {
		t.Errorf("no-op daily start_date patch: %v", err)
	}
}

func TestUpdatePatchSemantics(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	clock := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	mustCreate(t, store, models.Draft{
		Type: "issues", Title: "Original", Description: "desc",
		Content: "body", Tags: []string{"auth"},
	})

	// Absent fields stay; supplied fields change; zero pointers clear.
	newTitle := "Renamed"
	emptyDesc := ""
	status := "done"
	got, err := store.Update(ctx, "issues", "1", models.Patch{
		Title:       &newTitle,
		Description: &emptyDesc,
		Status:      &status,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Renamed" || got.Description != "" || got.Status != "done" {
		t.Errorf("patched item = %+v", got)
	}
	if got.Content != "body" || len(got.Tags) != 1 {
		t.Errorf("unpatched fields changed: %+v", got)
	}

	// Monotonic updated_at against a frozen clock.
	first := got.UpdatedAt
	got, err = store.Update(ctx, "issues", "1", models.Patch{Title: &newTitle})
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if !got.UpdatedAt.After(first) {
		t.Errorf("updated_at = %v, want after %v", got.UpdatedAt, first)
	}

	// A patch cannot clear below the validation floor.
	empty := ""
	if _, err := store.Update(ctx, "issues", "1", models.Patch{Title: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("clearing title err = %v, want ErrValidation", err)
	}
	bogus := "bogus"
	if _, err := store.Update(ctx, "issues", "1", models.Patch{Status: &bogus}); !errors.Is(err, apperr.ErrUnknownStatus) {
		t.Errorf("bogus status err = %v, want ErrUnknownStatus", err)
	}

	// An empty status pointer falls back to the default.
	got, err = store.Update(ctx, "issues", "1", models.Patch{Status: &empty})
	if err != nil {
		t.Fatalf("empty status Update: %v", err)
	}
	if got.Status != "open" {
		t.Errorf("status = %q, want the default", got.Status)
	}

	// Absent items are a hard error on update.
	if _, err := store.Update(ctx, "issues", "99", models.Patch{Title: &newTitle}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing item err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	mustCreate(t, store, models.Draft{Type: "issues", Title: "Bye", Content: "x"})

	deleted, err := store.Delete(ctx, "issues", "1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("first delete should report true")
	}

	deleted, err = store.Delete(ctx, "issues", "1")
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if deleted {
		t.Error("second delete should report false")
	}

	it, err := store.Get(ctx, "issues", "1")
	if err != nil || it != nil {
		t.Errorf("Get after delete = (%v, %v), want (nil, nil)", it, err)
	}
}

func TestGetSoftNotFound(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	it, err := store.Get(ctx, "widgets", "1")
	if err != nil || it != nil {
		t.Errorf("unknown type Get = (%v, %v), want (nil, nil)", it, err)
	}
	it, err = store.Get(ctx, "issues", "42")
	if err != nil || it != nil {
		t.Errorf("missing id Get = (%v, %v), want (nil, nil)", it, err)
	}
	if _, err := store.Get(ctx, "issues", "../escape"); !errors.Is(err, apperr.ErrInvalidID) {
		t.Errorf("bad id err = %v, want ErrInvalidID", err)
	}
}

func TestRawNotFound(t *testing.T) {
	store, _ := testEnv(t)
	if _, err := store.Raw(context.Background(), "issues", "9"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Raw err = %v, want ErrNotFound", err)
	}
}

func TestSearchCriteriaThroughFacade(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	mustCreate(t, store, models.Draft{
		Type: "issues", Title: "Tagged", Content: "x", Tags: []string{"auth", "backend"},
	})
	mustCreate(t, store, models.Draft{
		Type: "issues", Title: "Partial", Content: "x", Tags: []string{"auth"},
	})
	done := "done"
	if _, err := store.Update(ctx, "issues", "2", models.Patch{Status: &done}); err != nil {
		t.Fatal(err)
	}

	// Tag intersection.
	items, err := store.Search(ctx, models.SearchCriteria{Tags: []string{"auth", "backend"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Tagged" {
		t.Errorf("items = %+v, want only the fully tagged item", items)
	}

	// Closed statuses drop out unless opted in.
	items, _ = store.Search(ctx, models.SearchCriteria{Tags: []string{"auth"}})
	if len(items) != 1 {
		t.Errorf("closed item leaked into default search: %+v", items)
	}
	items, _ = store.Search(ctx, models.SearchCriteria{Tags: []string{"auth"}, IncludeClosed: true})
	if len(items) != 2 {
		t.Errorf("include_closed matched %d, want 2", len(items))
	}
}

func TestRelatedEdges(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	mustCreate(t, store, models.Draft{Type: "issues", Title: "Target", Content: "x"})
	mustCreate(t, store, models.Draft{
		Type: "issues", Title: "Source", Content: "x", Related: []string{"issues-1", "docs-5"},
	})

	outgoing, incoming, err := store.Related(ctx, "issues", "2")
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(outgoing) != 2 {
		t.Errorf("outgoing = %+v, want 2 edges", outgoing)
	}
	if len(incoming) != 0 {
		t.Errorf("incoming = %+v, want none", incoming)
	}

	// Backlink view, including a target that does not exist yet.
	_, incoming, _ = store.Related(ctx, "issues", "1")
	if len(incoming) != 1 || incoming[0].SourceID != "2" {
		t.Errorf("backlinks = %+v", incoming)
	}
	_, incoming, _ = store.Related(ctx, "docs", "5")
	if len(incoming) != 1 {
		t.Errorf("dangling target backlinks = %+v, want the edge kept", incoming)
	}
}

func TestRebuildFromVault(t *testing.T) {
	store, vaultDir := testEnv(t)
	ctx := context.Background()

	mustCreate(t, store, models.Draft{Type: "issues", Title: "One", Content: "x", Tags: []string{"auth"}})
	mustCreate(t, store, models.Draft{Type: "issues", Title: "Two", Content: "x"})
	mustCreate(t, store, models.Draft{Type: "docs", Title: "Doc", Content: "x"})

	wantCounts, err := store.db.CountByType()
	if err != nil {
		t.Fatal(err)
	}

	// Same vault, brand new database: Initialize must detect the lost
	// cache and rebuild it from the files.
	files, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt := New(files, openDB(t), defaultTypes(), defaultStatuses(), testLogger(), nil)
	if err := rebuilt.Initialize(ctx); err != nil {
		t.Fatalf("Initialize (rebuild): %v", err)
	}

	gotCounts, err := rebuilt.db.CountByType()
	if err != nil {
		t.Fatal(err)
	}
	for typ, n := range wantCounts {
		if gotCounts[typ] != n {
			t.Errorf("rebuilt count[%s] = %d, want %d", typ, gotCounts[typ], n)
		}
	}

	needs, _ := rebuilt.db.NeedsRebuild()
	if needs {
		t.Error("rebuild flag should clear after a full pass")
	}

	// Content survives: tag search works against the rebuilt index.
	items, err := rebuilt.Search(ctx, models.SearchCriteria{Tags: []string{"auth"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "One" {
		t.Errorf("rebuilt search = %+v", items)
	}
}

func TestNotReadyFailFast(t *testing.T) {
	vaultDir := t.TempDir()
	files, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	store := New(files, openDB(t), defaultTypes(), defaultStatuses(), testLogger(), nil)
	ctx := context.Background()

	if _, err := store.Create(ctx, models.Draft{Type: "issues", Title: "t", Content: "x"}); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("Create before Initialize err = %v, want ErrNotReady", err)
	}
	if _, err := store.Get(ctx, "issues", "1"); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("Get before Initialize err = %v, want ErrNotReady", err)
	}
	if _, err := store.Search(ctx, models.SearchCriteria{}); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("Search before Initialize err = %v, want ErrNotReady", err)
	}

	// Initialize is memoized: a second call shares the first outcome.
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("repeat Initialize: %v", err)
	}
	if _, err := store.Create(ctx, models.Draft{Type: "issues", Title: "t", Content: "x"}); err != nil {
		t.Errorf("Create after Initialize: %v", err)
	}
}

func TestEventsEmitted(t *testing.T) {
	vaultDir := t.TempDir()
	files, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var events []string
	record := func(kind, typ, id string) {
		mu.Lock()
		events = append(events, kind+":"+typ+"-"+id)
		mu.Unlock()
	}

	store := New(files, openDB(t), defaultTypes(), defaultStatuses(), testLogger(), record)
	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	mustCreate(t, store, models.Draft{Type: "issues", Title: "Evented", Content: "x"})
	title := "Renamed"
	if _, err := store.Update(ctx, "issues", "1", models.Patch{Title: &title}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Delete(ctx, "issues", "1"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"created:issues-1", "updated:issues-1", "deleted:issues-1"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestListByType(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	mustCreate(t, store, models.Draft{Type: "issues", Title: "A", Content: "x"})
	mustCreate(t, store, models.Draft{Type: "issues", Title: "B", Content: "x"})
	mustCreate(t, store, models.Draft{Type: "docs", Title: "C", Content: "x"})

	items, err := store.ListByType(ctx, "issues")
	if err != nil {
		t.Fatalf("ListByType: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("issues = %d, want 2", len(items))
	}

	if _, err := store.ListByType(ctx, "widgets"); !errors.Is(err, apperr.ErrUnknownType) {
		t.Errorf("unknown type err = %v, want ErrUnknownType", err)
	}
}

func TestTagLifecycle(t *testing.T) {
	store, _ := testEnv(t)
	ctx := context.Background()

	mustCreate(t, store, models.Draft{Type: "issues", Title: "Tagged", Content: "x", Tags: []string{"infra"}})

	tags, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "infra" {
		t.Fatalf("tags = %+v", tags)
	}

	deleted, err := store.DeleteTag(ctx, "infra")
	if err != nil || !deleted {
		t.Fatalf("DeleteTag = (%v, %v)", deleted, err)
	}

	// The file keeps its tag list; the item itself is untouched.
	it, err := store.Get(ctx, "issues", "1")
	if err != nil || it == nil {
		t.Fatalf("Get after tag delete = (%v, %v)", it, err)
	}
	if len(it.Tags) != 1 || it.Tags[0] != "infra" {
		t.Errorf("item tags = %v, want the file untouched", it.Tags)
	}
}
