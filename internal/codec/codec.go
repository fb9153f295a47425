// Package codec serializes items to and from their on-disk Markdown form:
// a YAML frontmatter block between --- fences followed by the body text.
//
// Parse is strict about the metadata an item cannot live without (a
// frontmatter block with a non-empty title); files that fail it are
// treated as corrupt by callers, which is how missing-vs-broken stays a
// soft not-found at the store layer.
package codec

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/dagaz/internal/models"
)

// frontmatter is the on-disk metadata block. Field order is emission
// order, so Generate output is deterministic byte-for-byte.
type frontmatter struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Priority    string   `yaml:"priority"`
	Status      string   `yaml:"status"`
	StartDate   string   `yaml:"start_date,omitempty"`
	EndDate     string   `yaml:"end_date,omitempty"`
	StartTime   string   `yaml:"start_time,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Related     []string `yaml:"related,omitempty"`
	CreatedAt   string   `yaml:"created_at,omitempty"`
	UpdatedAt   string   `yaml:"updated_at,omitempty"`
}

const delim = "---"

// Parse extracts an item from raw file bytes. The returned item carries
// everything the file holds; Type and StatusID are resolved by the
// caller (from the path and the status registry respectively).
func Parse(data []byte) (*models.Item, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(fm.Title) == "" {
		return nil, fmt.Errorf("codec: missing title")
	}

	priority := fm.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	return &models.Item{
		ID:          fm.ID,
		Title:       fm.Title,
		Description: fm.Description,
		Content:     strings.TrimSpace(body),
		Priority:    priority,
		Status:      fm.Status,
		StartDate:   fm.StartDate,
		EndDate:     fm.EndDate,
		StartTime:   fm.StartTime,
		Tags:        Dedupe(fm.Tags),
		Related:     Dedupe(fm.Related),
		CreatedAt:   parseTime(fm.CreatedAt),
		UpdatedAt:   parseTime(fm.UpdatedAt),
	}, nil
}

// Generate renders an item into its canonical file form. The output is
// stable: Generate(Parse(Generate(item))) equals Generate(item).
func Generate(it *models.Item) ([]byte, error) {
	fm := frontmatter{
		ID:          it.ID,
		Title:       it.Title,
		Description: it.Description,
		Priority:    it.Priority,
		Status:      it.Status,
		StartDate:   it.StartDate,
		EndDate:     it.EndDate,
		StartTime:   it.StartTime,
		Tags:        Dedupe(it.Tags),
		Related:     Dedupe(it.Related),
		CreatedAt:   formatTime(it.CreatedAt),
		UpdatedAt:   formatTime(it.UpdatedAt),
	}
	meta, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(meta)
	buf.WriteString(delim + "\n")
	if body := strings.TrimSpace(it.Content); body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates the YAML block between leading --- fences
// from the body. A missing or unterminated block is a hard error here:
// item files are machine-written and always carry metadata.
func splitFrontmatter(data []byte) (frontmatter, string, error) {
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, "", fmt.Errorf("codec: no frontmatter block")
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, "", fmt.Errorf("codec: unterminated frontmatter block")
	}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return fm, "", fmt.Errorf("codec: parse frontmatter: %w", err)
	}
	body := string(rest[idx+1+len(delim):])
	return fm, body, nil
}

// Dedupe enforces set semantics while preserving insertion order.
// Blank entries are dropped and surrounding whitespace is trimmed.
func Dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// parseTime reads a timestamp leniently so hand-edited files survive a
// sync; anything unreadable becomes the zero time rather than an error.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
