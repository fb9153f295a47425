package api

import (
	"fmt"
	"net/http"
)

// RawItem handles GET /api/items/{type}/{id}/raw: the item file exactly
// as stored, frontmatter included, for editors and exports.
//
//	@Summary		Download the raw Markdown of an item
//	@Tags			items
//	@Produce		text/markdown
//	@Success		200	{string}	string	"Raw item Markdown"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{type}/{id}/raw [get]
func (h *Handler) RawItem(w http.ResponseWriter, r *http.Request) {
	typ, id := itemKey(r)
	data, err := h.store.Raw(r.Context(), typ, id)
	if err != nil {
		writeError(w, "raw item", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", typ+"-"+id+".md"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
