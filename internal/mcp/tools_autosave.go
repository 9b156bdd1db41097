package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"blockeditor/internal/domain"
)

func (s *Server) registerAutosaveTools() {
	// ── autosave_post ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("autosave_post",
		mcp.WithDescription("Store an autosave of unsaved edits without touching the saved post. Omitted fields are taken from the post."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Edited title (optional)")),
		mcp.WithString("excerpt", mcp.Description("Edited excerpt (optional)")),
		mcp.WithString("blocks", mcp.Description("JSON array of edited blocks (optional)")),
	), s.handleAutosavePost)

	// ── get_autosave ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_autosave",
		mcp.WithDescription("Get the latest autosave of a post"),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleGetAutosave)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleAutosavePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	p, err := s.getPostForTool(args)
	if err != nil {
		return nil, err
	}

	a := &domain.Autosave{PostID: p.ID, Title: p.Title, Excerpt: p.Excerpt, Blocks: p.Blocks}
	if v := optionalString(args, "title"); v != nil {
		a.Title = *v
	}
	if v := optionalString(args, "excerpt"); v != nil {
		a.Excerpt = *v
	}
	blocks, ok, err := parseBlocksArg(args, "blocks")
	if err != nil {
		return nil, err
	}
	if ok {
		a.Blocks = blocks
	}

	if err := s.autosaves.WriteAutosave(ctx, a); err != nil {
		return nil, err
	}
	return jsonResult(a)
}

func (s *Server) handleGetAutosave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postID, err := requireString(req.GetArguments(), "postId")
	if err != nil {
		return nil, err
	}
	a, err := s.autosaves.Latest(postID)
	if errors.Is(err, domain.ErrNotFound) {
		return textResult(fmt.Sprintf("Post %s has no autosave", postID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get autosave: %w", err)
	}
	return jsonResult(a)
}
