package itemid

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

func TestValidate_Accepts(t *testing.T) {
	for _, id := range []string{"1", "42", "2026-08-21", "2026-08-21-10.30.05.123", "some_doc.v2"} {
		if err := Validate(id); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", id, err)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []string{
		"",
		".",
		"..",
		"a/b",
		"a\\b",
		"..%2f..%2fetc",
		"id%41",
		"id\x00",
		"id with space",
		"id!",
	}
	for _, id := range cases {
		err := Validate(id)
		if err == nil {
			t.Errorf("Validate(%q) = nil, want error", id)
			continue
		}
		if !errors.Is(err, apperr.ErrInvalidID) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestValidateType(t *testing.T) {
	if err := ValidateType("issues"); err != nil {
		t.Errorf("issues: %v", err)
	}
	if err := ValidateType("meeting_notes"); err != nil {
		t.Errorf("meeting_notes: %v", err)
	}
	for _, name := range []string{"", "my-type", "a/b", "a.b"} {
		if ValidateType(name) == nil {
			t.Errorf("ValidateType(%q) = nil, want error", name)
		}
	}
}

func TestSessionID_Format(t *testing.T) {
	ts := time.Date(2026, 8, 21, 14, 30, 5, 123_000_000, time.Local)
	got := SessionID(ts)
	if got != "2026-08-21-14.30.05.123" {
		t.Errorf("SessionID = %q", got)
	}
	if err := Validate(got); err != nil {
		t.Errorf("session id should validate: %v", err)
	}
}

func TestDailyID(t *testing.T) {
	now := time.Date(2026, 8, 21, 9, 0, 0, 0, time.Local)

	id, err := DailyID("", now)
	if err != nil {
		t.Fatalf("DailyID: %v", err)
	}
	if id != "2026-08-21" {
		t.Errorf("default id = %q", id)
	}

	id, err = DailyID("2024-01-01", now)
	if err != nil {
		t.Fatalf("DailyID: %v", err)
	}
	if id != "2024-01-01" {
		t.Errorf("supplied id = %q", id)
	}

	if _, err := DailyID("not-a-date", now); !errors.Is(err, apperr.ErrInvalidID) {
		t.Errorf("bad date = %v, want ErrInvalidID", err)
	}
}

func TestPath_ByBase(t *testing.T) {
	cases := []struct {
		def  models.TypeDefinition
		id   string
		want string
	}{
		{models.TypeDefinition{Name: "issues", Base: models.BaseTasks}, "7", "issues/issues-7.md"},
		{models.TypeDefinition{Name: "docs", Base: models.BaseDocuments}, "12", "docs/docs-12.md"},
		{models.TypeDefinition{Name: "sessions", Base: models.BaseSessions}, "2026-08-21-14.30.05.123", "sessions/2026-08-21/sessions-2026-08-21-14.30.05.123.md"},
		{models.TypeDefinition{Name: "dailies", Base: models.BaseDailies}, "2024-01-01", "dailies/2024-01-01/dailies-2024-01-01.md"},
	}
	for _, c := range cases {
		if got := Path(c.def, c.id); got != c.want {
			t.Errorf("Path(%s, %s) = %q, want %q", c.def.Name, c.id, got, c.want)
		}
	}
}

func TestFromPath_RoundTrip(t *testing.T) {
	defs := []models.TypeDefinition{
		{Name: "issues", Base: models.BaseTasks},
		{Name: "sessions", Base: models.BaseSessions},
		{Name: "dailies", Base: models.BaseDailies},
	}
	ids := []string{"3", "2026-08-21-14.30.05.123", "2024-01-01"}
	for i, def := range defs {
		p := Path(def, ids[i])
		typ, id, ok := FromPath(p)
		if !ok {
			t.Errorf("FromPath(%q) not ok", p)
			continue
		}
		if typ != def.Name || id != ids[i] {
			t.Errorf("FromPath(%q) = (%q, %q)", p, typ, id)
		}
	}
}

func TestFromPath_RejectsForeign(t *testing.T) {
	cases := []string{
		"README.md",               // no type directory
		"issues/notes.txt",        // wrong extension
		"issues/other-3.md",       // filename prefix does not match dir
		"issues/issues-bad id.md", // invalid id
	}
	for _, p := range cases {
		if _, _, ok := FromPath(p); ok {
			t.Errorf("FromPath(%q) ok, want skip", p)
		}
	}
}

func TestRefRoundTrip(t *testing.T) {
	ref := Ref("issues", "42")
	if ref != "issues-42" {
		t.Fatalf("Ref = %q", ref)
	}
	typ, id, ok := ParseRef(ref)
	if !ok || typ != "issues" || id != "42" {
		t.Errorf("ParseRef(%q) = (%q, %q, %v)", ref, typ, id, ok)
	}

	// Session refs keep their dashes on the id side.
	typ, id, ok = ParseRef("sessions-2026-08-21-14.30.05.123")
	if !ok || typ != "sessions" || id != "2026-08-21-14.30.05.123" {
		t.Errorf("session ref = (%q, %q, %v)", typ, id, ok)
	}

	for _, bad := range []string{"", "noid-", "-nope", "plain"} {
		if _, _, ok := ParseRef(bad); ok {
			t.Errorf("ParseRef(%q) ok, want false", bad)
		}
	}
}
