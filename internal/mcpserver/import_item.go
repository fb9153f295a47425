package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dagaz/internal/codec"
	"github.com/starford/dagaz/internal/models"
)

// importItem accepts raw Markdown in the canonical item format, parses
// it through the same codec the store uses, and creates the item under
// a freshly allocated id. Any id present in the frontmatter is ignored.
func (s *Server) importItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	parsed, err := codec.Parse([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid item markdown: %v", err)), nil
	}

	draft := models.Draft{
		Type:        typ,
		Title:       parsed.Title,
		Description: parsed.Description,
		Content:     parsed.Content,
		Priority:    parsed.Priority,
		Status:      parsed.Status,
		StartDate:   parsed.StartDate,
		EndDate:     parsed.EndDate,
		StartTime:   parsed.StartTime,
		Tags:        parsed.Tags,
		Related:     parsed.Related,
	}

	it, err := s.store.Create(ctx, draft)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %s-%s", it.Type, it.ID)), nil
}
