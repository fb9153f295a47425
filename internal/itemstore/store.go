// Package itemstore orchestrates item CRUD: it validates drafts against
// the registries, allocates ids, writes the item files (the source of
// truth), and keeps the search index in lockstep. Reads always come from
// the files; the index only supplies identity and ranking.
package itemstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/codec"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/itemid"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/registry"
	"github.com/starford/dagaz/internal/storage"
)

// EventFunc receives item change notifications. kind is one of
// "created", "updated", "deleted".
type EventFunc func(kind, typ, id string)

// Store is the item store facade. Construction is cheap and does no
// I/O; Initialize must succeed before any other method is usable.
type Store struct {
	files    storage.Provider
	db       *index.DB
	types    *registry.Types
	statuses *registry.Statuses
	logger   *slog.Logger
	events   EventFunc

	seedTypes    []models.TypeDefinition
	seedStatuses []models.Status

	initOnce sync.Once
	initErr  error
	ready    atomic.Bool

	now func() time.Time
}

// New allocates a store. seedTypes and seedStatuses come from
// configuration and are applied by Initialize. events may be nil.
func New(files storage.Provider, db *index.DB, seedTypes []models.TypeDefinition,
	seedStatuses []models.Status, logger *slog.Logger, events EventFunc) *Store {
	return &Store{
		files:        files,
		db:           db,
		types:        registry.NewTypes(db),
		statuses:     registry.NewStatuses(db),
		logger:       logger,
		events:       events,
		seedTypes:    seedTypes,
		seedStatuses: seedStatuses,
		now:          time.Now,
	}
}

// Initialize seeds the registries, decides whether the index needs a
// full rebuild, and runs it. Idempotent and memoized: concurrent and
// repeat calls share one outcome. Every other public method fails fast
// with ErrNotReady until Initialize has succeeded.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.initialize(ctx)
		if s.initErr == nil {
			s.ready.Store(true)
		}
	})
	return s.initErr
}

func (s *Store) initialize(ctx context.Context) error {
	if err := s.statuses.Seed(s.seedStatuses); err != nil {
		return fmt.Errorf("itemstore: seed statuses: %w", err)
	}
	if err := s.types.Seed(s.seedTypes); err != nil {
		return fmt.Errorf("itemstore: seed types: %w", err)
	}

	// A fresh index alongside a populated vault means the cache was
	// lost; persist the flag first so an interrupted rebuild retries.
	if s.db.Fresh() {
		files, err := s.files.List("")
		if err != nil {
			return fmt.Errorf("itemstore: scan vault: %w", err)
		}
		if len(files) > 0 {
			if err := s.db.SetNeedsRebuild(true); err != nil {
				return err
			}
		}
	}

	needs, err := s.db.NeedsRebuild()
	if err != nil {
		return err
	}
	if needs {
		if err := s.rebuild(ctx); err != nil {
			return err
		}
	}
	return nil
}

// rebuild replays every vault file through the same sync path normal
// writes use. Corrupt files are logged and skipped; the flag clears
// only after every type completes.
func (s *Store) rebuild(ctx context.Context) error {
	s.logger.Info("itemstore: rebuilding index from vault")
	for _, def := range s.types.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		files, err := s.files.List(itemid.Dir(def.Name))
		if err != nil {
			return fmt.Errorf("itemstore: rebuild %s: %w", def.Name, err)
		}
		for _, f := range files {
			data, err := s.files.Read(f.Path)
			if err != nil {
				s.logger.Warn("rebuild: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
				continue
			}
			if err := s.db.IndexFile(f.Path, data); err != nil {
				s.logger.Warn("rebuild: skipped file", slog.String("path", f.Path), slog.String("error", err.Error()))
			}
		}
	}
	if err := s.db.SetNeedsRebuild(false); err != nil {
		return err
	}
	s.logger.Info("itemstore: rebuild complete")
	return nil
}

// Types exposes the type registry.
func (s *Store) Types() *registry.Types { return s.types }

// Statuses exposes the status registry.
func (s *Store) Statuses() *registry.Statuses { return s.statuses }

func (s *Store) guard() error {
	if !s.ready.Load() {
		return fmt.Errorf("itemstore: %w", apperr.ErrNotReady)
	}
	return nil
}

// Create validates a draft, allocates an id per the type's base
// category, writes the file, and syncs the index.
func (s *Store) Create(ctx context.Context, draft models.Draft) (*models.Item, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	def, ok := s.types.Lookup(draft.Type)
	if !ok {
		return nil, fmt.Errorf("itemstore: type %q: %w", draft.Type, apperr.ErrUnknownType)
	}
	if draft.Priority == "" {
		draft.Priority = models.PriorityMedium
	}
	if err := validateDraft(def, draft); err != nil {
		return nil, err
	}

	status, err := s.resolveStatus(draft.Status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id, err := s.allocateID(def, &draft, now)
	if err != nil {
		return nil, err
	}

	it := &models.Item{
		Type:        def.Name,
		ID:          id,
		Title:       draft.Title,
		Description: draft.Description,
		Content:     draft.Content,
		Priority:    draft.Priority,
		Status:      status.Name,
		StatusID:    status.ID,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		StartTime:   draft.StartTime,
		Tags:        draft.Tags,
		Related:     draft.Related,
		CreatedAt:   now.UTC().Truncate(time.Second),
		UpdatedAt:   now.UTC().Truncate(time.Second),
	}

	if err := s.write(def, it); err != nil {
		return nil, err
	}
	s.emit("created", it.Type, it.ID)
	return it, nil
}

// allocateID picks the allocation policy from the base category. The
// sequence policy is one atomic statement; the dailies policy checks
// the authoritative store (the file) for an occupied date.
func (s *Store) allocateID(def models.TypeDefinition, draft *models.Draft, now time.Time) (string, error) {
	switch def.Base {
	case models.BaseSessions:
		return itemid.SessionID(now), nil
	case models.BaseDailies:
		id, err := itemid.DailyID(draft.StartDate, now)
		if err != nil {
			return "", err
		}
		exists, err := s.files.Exists(itemid.Path(def, id))
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("itemstore: %s for %s already exists: %w", def.Name, id, apperr.ErrConflict)
		}
		// The daily's schedule field mirrors its identity.
		draft.StartDate = id
		return id, nil
	default:
		n, err := s.db.NextSequence(def.Name)
		if err != nil {
			return "", err
		}
		return itemid.Sequential(n), nil
	}
}

// Get reads and parses the item file. The index is never consulted for
// content. A missing or unparsable file is a soft not-found: (nil, nil).
func (s *Store) Get(ctx context.Context, typ, id string) (*models.Item, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if err := itemid.Validate(id); err != nil {
		return nil, err
	}
	def, ok := s.types.Lookup(typ)
	if !ok {
		return nil, nil
	}
	return s.readFile(def, id)
}

func (s *Store) readFile(def models.TypeDefinition, id string) (*models.Item, error) {
	rel := itemid.Path(def, id)
	exists, err := s.files.Exists(rel)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	data, err := s.files.Read(rel)
	if err != nil {
		return nil, err
	}
	it, err := codec.Parse(data)
	if err != nil {
		// Corrupt files read as absent so bulk scans stay robust.
		s.logger.Warn("itemstore: unparsable item file", slog.String("path", rel), slog.String("error", err.Error()))
		return nil, nil
	}
	it.Type = def.Name
	it.ID = id
	if st, ok := s.statuses.Resolve(it.Status); ok {
		it.StatusID = st.ID
	} else if st, ok := s.statuses.Default(); ok {
		it.Status = st.Name
		it.StatusID = st.ID
	}
	return it, nil
}

// Update merges a patch over the current item, rewrites the file, and
// resyncs the index. A nil patch field leaves the value unchanged; a
// non-nil pointer to a zero value clears fields where clearing is
// allowed.
func (s *Store) Update(ctx context.Context, typ, id string, patch models.Patch) (*models.Item, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx, typ, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("itemstore: %s-%s: %w", typ, id, apperr.ErrNotFound)
	}
	def, _ := s.types.Lookup(typ)

	// A daily's date is its id and its file path; letting a patch move
	// start_date would silently split identity from schedule.
	if def.Base == models.BaseDailies && patch.StartDate != nil && *patch.StartDate != cur.ID {
		return nil, fmt.Errorf("itemstore: start_date of a %s is fixed by its id: %w",
			def.Name, apperr.ErrValidation)
	}

	applyPatch(cur, patch)
	if cur.Priority == "" {
		cur.Priority = models.PriorityMedium
	}
	if err := validateItem(def, cur); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		status, err := s.resolveStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		cur.Status = status.Name
		cur.StatusID = status.ID
	}

	// updated_at is monotonic even against a fast clock or a file
	// hand-edited into the future.
	now := s.now().UTC().Truncate(time.Second)
	if !now.After(cur.UpdatedAt) {
		now = cur.UpdatedAt.Add(time.Second)
	}
	cur.UpdatedAt = now

	if err := s.write(def, cur); err != nil {
		return nil, err
	}
	s.emit("updated", cur.Type, cur.ID)
	return cur, nil
}

// Delete removes the file, then the index row, tag junctions, and
// source-side edges. Deleting an absent item returns (false, nil), so a
// second delete is a no-op rather than an error.
func (s *Store) Delete(ctx context.Context, typ, id string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	if err := itemid.Validate(id); err != nil {
		return false, err
	}
	def, ok := s.types.Lookup(typ)
	if !ok {
		return false, nil
	}
	rel := itemid.Path(def, id)
	exists, err := s.files.Exists(rel)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := s.files.Delete(rel); err != nil {
		return false, err
	}
	// The file removal is authoritative; index cleanup failing leaves
	// only a stale cache row for the rebuild to clear.
	if err := s.db.DeleteItem(typ, id); err != nil {
		s.logger.Warn("itemstore: index cleanup failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
	s.emit("deleted", typ, id)
	return true, nil
}

// Search runs one dynamic index query, then re-hydrates every hit from
// its file. Rows whose file has vanished or stopped parsing are skipped.
func (s *Store) Search(ctx context.Context, c models.SearchCriteria) ([]*models.Item, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	refs, err := s.db.SearchItems(c)
	if err != nil {
		return nil, err
	}
	items := make([]*models.Item, 0, len(refs))
	for _, ref := range refs {
		it, err := s.Get(ctx, ref.Type, ref.ID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// ListByType parses every file in the type's directory. Corrupt files
// are logged and skipped so one bad file cannot abort the scan.
func (s *Store) ListByType(ctx context.Context, typ string) ([]*models.Item, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	def, ok := s.types.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("itemstore: type %q: %w", typ, apperr.ErrUnknownType)
	}
	files, err := s.files.List(itemid.Dir(def.Name))
	if err != nil {
		return nil, err
	}
	var items []*models.Item
	for _, f := range files {
		_, id, ok := itemid.FromPath(f.Path)
		if !ok {
			continue
		}
		it, err := s.readFile(def, id)
		if err != nil {
			return nil, err
		}
		if it == nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Raw returns the item file bytes exactly as stored.
func (s *Store) Raw(ctx context.Context, typ, id string) ([]byte, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if err := itemid.Validate(id); err != nil {
		return nil, err
	}
	def, ok := s.types.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("itemstore: type %q: %w", typ, apperr.ErrUnknownType)
	}
	rel := itemid.Path(def, id)
	exists, err := s.files.Exists(rel)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("itemstore: %s-%s: %w", typ, id, apperr.ErrNotFound)
	}
	return s.files.Read(rel)
}

// Related returns the item's outgoing edges and its backlinks. Incoming
// sources are not checked for liveness; callers resolve via Get.
func (s *Store) Related(ctx context.Context, typ, id string) (outgoing, incoming []models.Edge, err error) {
	if err := s.guard(); err != nil {
		return nil, nil, err
	}
	if err := itemid.Validate(id); err != nil {
		return nil, nil, err
	}
	outgoing, err = s.db.Outgoing(typ, id)
	if err != nil {
		return nil, nil, err
	}
	incoming, err = s.db.Incoming(typ, id)
	if err != nil {
		return nil, nil, err
	}
	return outgoing, incoming, nil
}

// ListTags returns every registered tag with its usage count.
func (s *Store) ListTags(ctx context.Context) ([]models.TagCount, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.db.ListTags()
}

// DeleteTag removes a tag and its junction rows. Item files keep their
// tag lists; the next sync of an item re-registers the tag.
func (s *Store) DeleteTag(ctx context.Context, name string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	return s.db.DeleteTag(name)
}

// FullTextSearch is ranked search over the index shadow table.
func (s *Store) FullTextSearch(ctx context.Context, q string, types []string, limit, offset int) ([]index.SearchHit, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.db.SearchFTS(q, types, limit, offset)
}

// Suggest returns distinct titles completing the query's last word.
func (s *Store) Suggest(ctx context.Context, q string, types []string, limit int) ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.db.Suggest(q, types, limit)
}

// Count returns the total full-text match count.
func (s *Store) Count(ctx context.Context, q string, types []string) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	return s.db.CountFTS(q, types)
}

// write generates the canonical file form, writes it atomically, and
// replays it through the index sync path. The item is normalized to the
// codec's canonical shape first, so the value returned to the caller is
// field-for-field what a subsequent read parses back.
func (s *Store) write(def models.TypeDefinition, it *models.Item) error {
	it.Tags = codec.Dedupe(it.Tags)
	it.Related = codec.Dedupe(it.Related)
	it.Content = strings.TrimSpace(it.Content)
	data, err := codec.Generate(it)
	if err != nil {
		return err
	}
	rel := itemid.Path(def, it.ID)
	if err := s.files.Write(rel, data); err != nil {
		return err
	}
	if err := s.db.IndexFile(rel, data); err != nil {
		return err
	}
	return nil
}

func (s *Store) resolveStatus(name string) (models.Status, error) {
	if name == "" {
		st, ok := s.statuses.Default()
		if !ok {
			return models.Status{}, fmt.Errorf("itemstore: no statuses configured: %w", apperr.ErrUnknownStatus)
		}
		return st, nil
	}
	st, ok := s.statuses.Resolve(name)
	if !ok {
		return models.Status{}, fmt.Errorf("itemstore: status %q: %w", name, apperr.ErrUnknownStatus)
	}
	return st, nil
}

func (s *Store) emit(kind, typ, id string) {
	if s.events != nil {
		s.events(kind, typ, id)
	}
}

// applyPatch merges non-nil patch fields over the item. Status is
// handled by the caller because it needs registry resolution.
func applyPatch(it *models.Item, p models.Patch) {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Content != nil {
		it.Content = *p.Content
	}
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	if p.StartDate != nil {
		it.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		it.EndDate = *p.EndDate
	}
	if p.StartTime != nil {
		it.StartTime = *p.StartTime
	}
	if p.Tags != nil {
		it.Tags = *p.Tags
	}
	if p.Related != nil {
		it.Related = *p.Related
	}
}

var dateRule = validation.Date("2006-01-02")
var timeRule = validation.Date("15:04")

// validateDraft checks the caller-supplied fields for create.
func validateDraft(def models.TypeDefinition, d models.Draft) error {
	contentRequired := def.Base == models.BaseTasks || def.Base == models.BaseDocuments
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.Content, validation.Required.When(contentRequired)),
		validation.Field(&d.Priority, validation.In(models.PriorityLow, models.PriorityMedium, models.PriorityHigh)),
		validation.Field(&d.StartDate, dateRule),
		validation.Field(&d.EndDate, dateRule),
		validation.Field(&d.StartTime, timeRule),
	)
	if err != nil {
		return fmt.Errorf("itemstore: %v: %w", err, apperr.ErrValidation)
	}
	return validateRefs(d.Related)
}

// validateItem re-checks the merged result of an update, so a patch
// cannot clear title or content below the validation floor.
func validateItem(def models.TypeDefinition, it *models.Item) error {
	contentRequired := def.Base == models.BaseTasks || def.Base == models.BaseDocuments
	err := validation.ValidateStruct(it,
		validation.Field(&it.Title, validation.Required),
		validation.Field(&it.Content, validation.Required.When(contentRequired)),
		validation.Field(&it.Priority, validation.In(models.PriorityLow, models.PriorityMedium, models.PriorityHigh)),
		validation.Field(&it.StartDate, dateRule),
		validation.Field(&it.EndDate, dateRule),
		validation.Field(&it.StartTime, timeRule),
	)
	if err != nil {
		return fmt.Errorf("itemstore: %v: %w", err, apperr.ErrValidation)
	}
	return validateRefs(it.Related)
}

func validateRefs(refs []string) error {
	for _, ref := range refs {
		if _, _, ok := itemid.ParseRef(ref); !ok {
			return fmt.Errorf("itemstore: malformed reference %q: %w", ref, apperr.ErrValidation)
		}
	}
	return nil
}
