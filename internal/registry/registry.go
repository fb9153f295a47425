// Package registry provides the type and status lookup services. Both
// are backed by index tables with a full in-memory cache; the cache is
// reloaded after every mutating call and on Reload, which is the whole
// invalidation contract.
package registry

import (
	"fmt"
	"sync"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/itemid"
	"github.com/starford/dagaz/internal/models"
)

// validBases is the closed set of base categories.
var validBases = map[string]bool{
	models.BaseTasks:     true,
	models.BaseDocuments: true,
	models.BaseSessions:  true,
	models.BaseDailies:   true,
}

// Builtin type names that are always registered and cannot be deleted.
var builtinTypes = map[string]bool{
	models.BaseSessions: true,
	models.BaseDailies:  true,
}

// Types maps type names to their definitions.
type Types struct {
	db *index.DB

	mu     sync.RWMutex
	byName map[string]models.TypeDefinition
	order  []string
}

// NewTypes creates an empty registry; call Reload (or Seed) before use.
func NewTypes(db *index.DB) *Types {
	return &Types{db: db, byName: map[string]models.TypeDefinition{}}
}

// Seed registers the built-in pseudo-types plus the configured defs,
// then loads the cache. Existing definitions win over seeds, so user
// registrations survive restarts.
func (t *Types) Seed(defs []models.TypeDefinition) error {
	existing, err := t.db.ListTypes()
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, def := range existing {
		present[def.Name] = true
	}
	all := append([]models.TypeDefinition{
		{Name: models.BaseSessions, Base: models.BaseSessions, Description: "time-boxed work sessions"},
		{Name: models.BaseDailies, Base: models.BaseDailies, Description: "one item per calendar day"},
	}, defs...)
	for _, def := range all {
		if present[def.Name] {
			continue
		}
		if err := validateDef(def); err != nil {
			return err
		}
		if err := t.db.UpsertType(def); err != nil {
			return err
		}
	}
	return t.Reload()
}

// Reload replaces the cache from the types table.
func (t *Types) Reload() error {
	defs, err := t.db.ListTypes()
	if err != nil {
		return err
	}
	byName := make(map[string]models.TypeDefinition, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
		order = append(order, def.Name)
	}
	t.mu.Lock()
	t.byName = byName
	t.order = order
	t.mu.Unlock()
	return nil
}

// Lookup returns the definition for a type name.
func (t *Types) Lookup(name string) (models.TypeDefinition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.byName[name]
	return def, ok
}

// All returns every definition in name order.
func (t *Types) All() []models.TypeDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.TypeDefinition, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// Register persists a new definition and reloads the cache. An existing
// name is a conflict rather than an overwrite: replacing a definition
// could change its base category and with it the id-allocation policy of
// items already on disk.
func (t *Types) Register(def models.TypeDefinition) error {
	if err := validateDef(def); err != nil {
		return err
	}
	if builtinTypes[def.Name] {
		return fmt.Errorf("registry: type %q is built in: %w", def.Name, apperr.ErrConflict)
	}
	if _, exists := t.Lookup(def.Name); exists {
		return fmt.Errorf("registry: type %q: %w", def.Name, apperr.ErrAlreadyExists)
	}
	if err := t.db.UpsertType(def); err != nil {
		return err
	}
	return t.Reload()
}

// Delete removes a user-defined type and reloads the cache. Built-ins
// cannot be deleted; an absent type returns (false, nil).
func (t *Types) Delete(name string) (bool, error) {
	if builtinTypes[name] {
		return false, fmt.Errorf("registry: type %q is built in: %w", name, apperr.ErrConflict)
	}
	deleted, err := t.db.DeleteType(name)
	if err != nil {
		return false, err
	}
	if deleted {
		if err := t.Reload(); err != nil {
			return true, err
		}
	}
	return deleted, nil
}

func validateDef(def models.TypeDefinition) error {
	if err := itemid.ValidateType(def.Name); err != nil {
		return err
	}
	if !validBases[def.Base] {
		return fmt.Errorf("registry: unknown base %q for type %q: %w",
			def.Base, def.Name, apperr.ErrValidation)
	}
	return nil
}

// Statuses maps workflow state names to their numeric ids. The first
// seeded status is the default for items created without one.
type Statuses struct {
	db *index.DB

	mu     sync.RWMutex
	all    []models.Status
	byName map[string]models.Status
	byID   map[int64]models.Status
}

// NewStatuses creates an empty registry; call Seed or Reload before use.
func NewStatuses(db *index.DB) *Statuses {
	return &Statuses{db: db, byName: map[string]models.Status{}, byID: map[int64]models.Status{}}
}

// Seed inserts the configured statuses in order (idempotent) and loads
// the cache.
func (s *Statuses) Seed(seeds []models.Status) error {
	for n, st := range seeds {
		if st.Name == "" {
			return fmt.Errorf("registry: empty status name: %w", apperr.ErrValidation)
		}
		if err := s.db.InsertStatus(st.Name, st.Closed, n); err != nil {
			return err
		}
	}
	return s.Reload()
}

// Reload replaces the cache from the statuses table.
func (s *Statuses) Reload() error {
	all, err := s.db.ListStatuses()
	if err != nil {
		return err
	}
	byName := make(map[string]models.Status, len(all))
	byID := make(map[int64]models.Status, len(all))
	for _, st := range all {
		byName[st.Name] = st
		byID[st.ID] = st
	}
	s.mu.Lock()
	s.all = all
	s.byName = byName
	s.byID = byID
	s.mu.Unlock()
	return nil
}

// Resolve maps a status name to its definition.
func (s *Statuses) Resolve(name string) (models.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byName[name]
	return st, ok
}

// ByID maps a numeric status id back to its definition.
func (s *Statuses) ByID(id int64) (models.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[id]
	return st, ok
}

// Default returns the first seeded status.
func (s *Statuses) Default() (models.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.all) == 0 {
		return models.Status{}, false
	}
	return s.all[0], true
}

// All returns every status in seed order.
func (s *Statuses) All() []models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Status, len(s.all))
	copy(out, s.all)
	return out
}
