package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/itemstore"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(store *itemstore.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Items CRUD and criteria search.
	r.Post("/items", h.CreateItem)
	r.Get("/items", h.SearchItems)
	r.Get("/items/{type}", h.ListByType)
	r.Get("/items/{type}/{id}", h.GetItem)
	r.Patch("/items/{type}/{id}", h.UpdateItem)
	r.Delete("/items/{type}/{id}", h.DeleteItem)
	r.Get("/items/{type}/{id}/raw", h.RawItem)
	r.Get("/items/{type}/{id}/related", h.Related)

	// Full-text search.
	r.Get("/search", h.Search)
	r.Get("/search/suggest", h.Suggest)

	// Type registry.
	r.Get("/types", h.ListTypes)
	r.Post("/types", h.CreateType)
	r.Delete("/types/{name}", h.DeleteType)

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Delete("/tags/{name}", h.DeleteTag)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
