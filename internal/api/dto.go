package api

import (
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/models"
)

// CreateItemRequest is the request body for creating an item. The id is
// allocated server-side per the type's base category.
type CreateItemRequest = models.Draft

// UpdateItemRequest is the request body for patching an item. Absent
// fields stay unchanged; explicit empty values clear where allowed.
type UpdateItemRequest = models.Patch

// Item is the full item response type (aliased from the domain layer).
type Item = models.Item

// ItemListResponse wraps item listings and criteria search results.
type ItemListResponse struct {
	Items []*models.Item `json:"items" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps ranked full-text hits.
type SearchResponse struct {
	Results []index.SearchHit `json:"results" validate:"required"`
	Total   int               `json:"total" example:"7" validate:"required"`
}

// SuggestResponse wraps title completions.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions" validate:"required"`
}

// RelatedResponse carries both edge directions for one item.
type RelatedResponse struct {
	Outgoing []models.Edge `json:"outgoing" validate:"required"`
	Incoming []models.Edge `json:"incoming" validate:"required"`
}

// TypeListResponse wraps registered type definitions.
type TypeListResponse struct {
	Types []models.TypeDefinition `json:"types" validate:"required"`
}

// TagListResponse wraps tags with usage counts.
type TagListResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}
