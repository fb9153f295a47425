// Package itemid derives item identities and vault file paths.
//
// Three allocation policies exist, selected by the type's base category:
// sequence-based decimal ids (tasks, documents), millisecond timestamp ids
// (sessions), and calendar-date ids (dailies). The file path is a pure
// function of (type definition, id); sequence allocation itself lives in
// the index package because it needs the database.
package itemid

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Ext is the file extension shared by every item file.
const Ext = ".md"

const (
	sessionLayout = "2006-01-02-15.04.05.000"
	dateLayout    = "2006-01-02"
)

// Validate rejects ids that could influence path construction: empty
// strings, dot navigation, and any character outside letters, digits,
// '-', '_', '.'. Path separators, null bytes, and '%' all fall outside
// that allowlist. It runs before any I/O.
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("itemid: empty id: %w", apperr.ErrInvalidID)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("itemid: id %q: %w", id, apperr.ErrInvalidID)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("itemid: id %q contains %q: %w", id, r, apperr.ErrInvalidID)
		}
	}
	return nil
}

// ValidateType rejects type names that are empty or contain characters
// outside letters, digits, '_'. Dashes are excluded on purpose: they
// keep "type-id" references and "{type}-{id}.md" filenames unambiguous.
func ValidateType(name string) error {
	if name == "" {
		return fmt.Errorf("itemid: empty type: %w", apperr.ErrInvalidID)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_':
		default:
			return fmt.Errorf("itemid: type %q contains %q: %w", name, r, apperr.ErrInvalidID)
		}
	}
	return nil
}

// Sequential formats an allocated per-type sequence number as a decimal id.
func Sequential(n int64) string {
	return strconv.FormatInt(n, 10)
}

// SessionID formats t as a timestamp id at millisecond precision.
// Collisions are accepted as practically impossible at this resolution;
// no check is performed.
func SessionID(t time.Time) string {
	return t.Format(sessionLayout)
}

// DailyID returns the calendar-date id for a daily item: the supplied
// start date when present, otherwise today in local time.
func DailyID(startDate string, now time.Time) (string, error) {
	if startDate == "" {
		return now.Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, startDate); err != nil {
		return "", fmt.Errorf("itemid: daily date %q: %w", startDate, apperr.ErrInvalidID)
	}
	return startDate, nil
}

// Path returns the vault-relative file path for an item. Sessions nest
// under a date subdirectory taken from the id's leading characters and
// dailies nest under their date id; every other base stores flat in the
// type's directory. Callers validate the id first.
func Path(def models.TypeDefinition, id string) string {
	file := def.Name + "-" + id + Ext
	switch def.Base {
	case models.BaseSessions:
		if len(id) >= len(dateLayout) {
			return path.Join(def.Name, id[:len(dateLayout)], file)
		}
		return path.Join(def.Name, file)
	case models.BaseDailies:
		return path.Join(def.Name, id, file)
	default:
		return path.Join(def.Name, file)
	}
}

// Dir returns the vault-relative directory that holds a type's items.
func Dir(typeName string) string {
	return typeName
}

// FromPath maps a vault-relative file path back to its (type, id). The
// type is the leading path element and the filename must carry the
// "{type}-{id}.md" form. ok is false for anything else, so foreign files
// inside the vault are skipped rather than misread.
func FromPath(rel string) (typ, id string, ok bool) {
	rel = path.Clean(filepath.ToSlash(rel))
	if !strings.HasSuffix(rel, Ext) {
		return "", "", false
	}
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	typ = parts[0]
	stem := strings.TrimSuffix(parts[len(parts)-1], Ext)
	if !strings.HasPrefix(stem, typ+"-") {
		return "", "", false
	}
	id = strings.TrimPrefix(stem, typ+"-")
	if ValidateType(typ) != nil || Validate(id) != nil {
		return "", "", false
	}
	return typ, id, true
}

// Ref builds the "type-id" reference form used in related lists.
func Ref(typ, id string) string {
	return typ + "-" + id
}

// ParseRef splits a "type-id" reference at its first dash. Type names
// cannot contain dashes (ValidateType), so the first dash always ends
// the type.
func ParseRef(ref string) (typ, id string, ok bool) {
	i := strings.Index(ref, "-")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}
