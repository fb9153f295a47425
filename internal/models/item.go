// Package models defines the domain types for dagaz.
package models

import "time"

// Item priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Base categories a type definition can declare. The base governs id
// allocation and which fields are required.
const (
	BaseTasks     = "tasks"
	BaseDocuments = "documents"
	BaseSessions  = "sessions"
	BaseDailies   = "dailies"
)

// Item is the unit of content: one Markdown file in the vault plus a
// derived row in the search index. Uniqueness is scoped to (Type, ID).
type Item struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	StatusID    int64     `json:"status_id"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	Tags        []string  `json:"tags"`
	Related     []string  `json:"related"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TypeDefinition maps a type name to its base category.
type TypeDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Base        string `json:"base" yaml:"base"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Status is a workflow state. Closed states are excluded from default
// search results unless the caller opts in.
type Status struct {
	ID     int64  `json:"id"`
	Name   string `json:"name" yaml:"name"`
	Closed bool   `json:"closed" yaml:"closed"`
}

// Draft carries the caller-supplied fields for item creation. The id is
// never part of a draft; allocation policy belongs to the store.
type Draft struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content"`
	Priority    string   `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Related     []string `json:"related,omitempty"`
}

// Patch is a partial item update. A nil field means "leave unchanged";
// a non-nil pointer to a zero value clears the field where clearing is
// allowed (description, dates, start_time, tags, related).
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	StartDate   *string   `json:"start_date,omitempty"`
	EndDate     *string   `json:"end_date,omitempty"`
	StartTime   *string   `json:"start_time,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Related     *[]string `json:"related,omitempty"`
}

// SearchCriteria describes one dynamic index query. All filters are
// optional; multiple tags intersect.
type SearchCriteria struct {
	Query         string   `json:"query,omitempty"`
	Types         []string `json:"types,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Status        string   `json:"status,omitempty"`
	IncludeClosed bool     `json:"include_closed,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	StartFrom     string   `json:"start_from,omitempty"`
	StartTo       string   `json:"start_to,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
}

// Edge is a directed relationship between two items.
type Edge struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

// TagCount pairs a tag name with its current usage count.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
