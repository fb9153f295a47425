package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/itemstore"
	"github.com/starford/dagaz/internal/models"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Handler holds API route handlers.
type Handler struct {
	store *itemstore.Store
}

// NewHandler creates a new Handler.
func NewHandler(store *itemstore.Store) *Handler {
	return &Handler{store: store}
}

func itemKey(r *http.Request) (typ, id string) {
	return chi.URLParam(r, "type"), chi.URLParam(r, "id")
}

// CreateItem handles POST /api/items.
//
//	@Summary		Create a new item; the id is allocated server-side
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateItemRequest	true	"Item draft"
//	@Success		201		{object}	Item
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	it, err := h.store.Create(r.Context(), draft)
	if err != nil {
		writeError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// GetItem handles GET /api/items/{type}/{id}.
//
//	@Summary		Get one item; content comes from its file
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	Item
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{type}/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	typ, id := itemKey(r)
	it, err := h.store.Get(r.Context(), typ, id)
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	if it == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// UpdateItem handles PATCH /api/items/{type}/{id}.
//
//	@Summary		Patch an item; absent fields stay unchanged
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateItemRequest	true	"Patch"
//	@Success		200		{object}	Item
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{type}/{id} [patch]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	typ, id := itemKey(r)
	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	it, err := h.store.Update(r.Context(), typ, id, patch)
	if err != nil {
		writeError(w, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// DeleteItem handles DELETE /api/items/{type}/{id}.
//
//	@Summary		Delete an item
//	@Tags			items
//	@Success		204	"Item deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{type}/{id} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	typ, id := itemKey(r)
	deleted, err := h.store.Delete(r.Context(), typ, id)
	if err != nil {
		writeError(w, "delete item", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchItems handles GET /api/items: the criteria search. Every hit is
// re-hydrated from its file before it is returned.
//
//	@Summary		Filtered item search over the index
//	@Tags			items
//	@Produce		json
//	@Param			q				query	string	false	"Full-text query"
//	@Param			type			query	[]string	false	"Type filter (repeatable)"
//	@Param			tag				query	[]string	false	"Tag filter (repeatable, intersects)"
//	@Param			status			query	string	false	"Status name"
//	@Param			include_closed	query	bool	false	"Include closed statuses"
//	@Param			priority		query	string	false	"Priority filter"
//	@Param			start_from		query	string	false	"Start date lower bound (YYYY-MM-DD)"
//	@Param			start_to		query	string	false	"Start date upper bound (YYYY-MM-DD)"
//	@Param			limit			query	int		false	"Page size"
//	@Param			offset			query	int		false	"Page offset"
//	@Success		200				{object}	ItemListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [get]
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	criteria := models.SearchCriteria{
		Query:         q.Get("q"),
		Types:         q["type"],
		Tags:          q["tag"],
		Status:        q.Get("status"),
		IncludeClosed: q.Get("include_closed") == "true",
		Priority:      q.Get("priority"),
		StartFrom:     q.Get("start_from"),
		StartTo:       q.Get("start_to"),
		Limit:         limit,
		Offset:        offset,
	}
	items, err := h.store.Search(r.Context(), criteria)
	if err != nil {
		writeError(w, "search items", err)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// ListByType handles GET /api/items/{type}: a full directory scan.
//
//	@Summary		List every item of one type
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	ItemListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{type} [get]
func (h *Handler) ListByType(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	items, err := h.store.ListByType(r.Context(), typ)
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// Related handles GET /api/items/{type}/{id}/related.
//
//	@Summary		Outgoing references and backlinks for one item
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	RelatedResponse
//	@Security		BearerAuth
//	@Router			/items/{type}/{id}/related [get]
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	typ, id := itemKey(r)
	outgoing, incoming, err := h.store.Related(r.Context(), typ, id)
	if err != nil {
		writeError(w, "related", err)
		return
	}
	if outgoing == nil {
		outgoing = []models.Edge{}
	}
	if incoming == nil {
		incoming = []models.Edge{}
	}
	writeJSON(w, http.StatusOK, RelatedResponse{Outgoing: outgoing, Incoming: incoming})
}

// Search handles GET /api/search: ranked full-text search.
//
//	@Summary		Ranked full-text search with snippets
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			type	query		[]string	false	"Type filter (repeatable)"
//	@Param			limit	query		int		false	"Max results"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	hits, err := h.store.FullTextSearch(r.Context(), q.Get("q"), q["type"], limit, offset)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	total, err := h.store.Count(r.Context(), q.Get("q"), q["type"])
	if err != nil {
		writeError(w, "search count", err)
		return
	}
	if hits == nil {
		hits = []index.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits, Total: total})
}

// Suggest handles GET /api/search/suggest: title completions for the
// query's last word. An empty query suggests nothing.
//
//	@Summary		Suggest titles completing the last query word
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Partial query"
//	@Param			type	query		[]string	false	"Type filter (repeatable)"
//	@Param			limit	query		int		false	"Max suggestions"
//	@Success		200		{object}	SuggestResponse
//	@Security		BearerAuth
//	@Router			/search/suggest [get]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	titles, err := h.store.Suggest(r.Context(), q.Get("q"), q["type"], limit)
	if err != nil {
		writeError(w, "suggest", err)
		return
	}
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Suggestions: titles})
}

// ListTypes handles GET /api/types.
//
//	@Summary		List registered item types
//	@Tags			types
//	@Produce		json
//	@Success		200	{object}	TypeListResponse
//	@Security		BearerAuth
//	@Router			/types [get]
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TypeListResponse{Types: h.store.Types().All()})
}

// CreateType handles POST /api/types.
//
//	@Summary		Register a new item type
//	@Tags			types
//	@Accept			json
//	@Success		201	{object}	models.TypeDefinition
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/types [post]
func (h *Handler) CreateType(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var def models.TypeDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.store.Types().Register(def); err != nil {
		writeError(w, "create type", err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// DeleteType handles DELETE /api/types/{name}.
//
//	@Summary		Delete a user-defined item type
//	@Tags			types
//	@Success		204	"Type deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/types/{name} [delete]
func (h *Handler) DeleteType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	deleted, err := h.store.Types().Delete(name)
	if err != nil {
		writeError(w, "delete type", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTags handles GET /api/tags.
//
//	@Summary		List tags with usage counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	if tags == nil {
		tags = []models.TagCount{}
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// DeleteTag handles DELETE /api/tags/{name}. Items that used the tag
// are never modified.
//
//	@Summary		Delete a tag and its item links
//	@Tags			tags
//	@Success		204	"Tag deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{name} [delete]
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	deleted, err := h.store.DeleteTag(r.Context(), name)
	if err != nil {
		writeError(w, "delete tag", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
