// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes dagaz item tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/itemstore"
	"github.com/starford/dagaz/internal/models"
)

// Server wraps the MCP server with dagaz tools.
type Server struct {
	mcp   *server.MCPServer
	store *itemstore.Store
}

// New creates a new MCP server with all dagaz tools registered.
func New(store *itemstore.Store) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Full-text search through item titles, descriptions, content, and tags. "+
			"Supports quoted phrases, field:value scopes, AND/OR, and parentheses."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("types", mcp.Description("Optional comma-separated type filter (e.g. issues,docs)")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("read_item",
		mcp.WithDescription("Read the raw Markdown of one item, frontmatter included."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Item type (e.g. issues)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id within the type")),
	), s.readItem)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a new item. The id is allocated automatically from the "+
			"type's base category. Read the contract first via the get_item_contract tool "+
			"or the dagaz://item-format resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Registered item type")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("content", mcp.Description("Markdown body text")),
		mcp.WithString("priority", mcp.Description("low, medium, or high")),
		mcp.WithString("status", mcp.Description("Workflow status name")),
		mcp.WithString("tags", mcp.Description("Comma-separated tag list")),
		mcp.WithString("start_date", mcp.Description("YYYY-MM-DD")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("update_item",
		mcp.WithDescription("Patch an item. Only the supplied fields change; the rest stay as they are."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Item type")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("patch", mcp.Required(), mcp.Description(
			`JSON object of fields to change, e.g. {"status":"done","tags":["auth"]}`)),
	), s.updateItem)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete an item and its index entries. Idempotent."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Item type")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("import_item",
		mcp.WithDescription("Import raw Markdown in the canonical item format. The frontmatter "+
			"is parsed through the same codec the store uses; a fresh id is allocated."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Registered item type to import into")),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Raw Markdown with YAML frontmatter")),
	), s.importItem)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the canonical dagaz item format contract. "+
			"Call this before creating or importing items to ensure correct structure."),
	), s.getItemContract)

	// Resource: item format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://item-format", "Item Format Contract",
			mcp.WithResourceDescription("Canonical Markdown item format that all items follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readItemFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	types := splitCSV(req.GetString("types", ""))
	hits, err := s.store.FullTextSearch(ctx, q, types, 20, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, id, errResult := itemKey(req)
	if errResult != nil {
		return errResult, nil
	}
	data, err := s.store.Raw(ctx, typ, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s-%s", typ, id)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	draft := models.Draft{
		Type:      typ,
		Title:     title,
		Content:   req.GetString("content", ""),
		Priority:  req.GetString("priority", ""),
		Status:    req.GetString("status", ""),
		Tags:      splitCSV(req.GetString("tags", "")),
		StartDate: req.GetString("start_date", ""),
	}
	it, err := s.store.Create(ctx, draft)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s-%s", it.Type, it.ID)), nil
}

func (s *Server) updateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, id, errResult := itemKey(req)
	if errResult != nil {
		return errResult, nil
	}
	raw, err := req.RequireString("patch")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var patch models.Patch
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid patch JSON: %v", err)), nil
	}
	it, err := s.store.Update(ctx, typ, id, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s-%s", it.Type, it.ID)), nil
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, id, errResult := itemKey(req)
	if errResult != nil {
		return errResult, nil
	}
	deleted, err := s.store.Delete(ctx, typ, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !deleted {
		return mcp.NewToolResultText(fmt.Sprintf("already absent: %s-%s", typ, id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s-%s", typ, id)), nil
}

func (s *Server) getItemContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ItemFormatContract), nil
}

func (s *Server) readItemFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://item-format",
			MIMEType: "text/markdown",
			Text:     ItemFormatContract,
		},
	}, nil
}

func itemKey(req mcp.CallToolRequest) (typ, id string, errResult *mcp.CallToolResult) {
	typ, err := req.RequireString("type")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	id, err = req.RequireString("id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return typ, id, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
