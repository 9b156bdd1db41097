package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"blockeditor/internal/service"
)

func (s *Server) registerTemplateTools() {
	// ── check_template ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("check_template",
		mcp.WithDescription("Report whether a post's blocks match its post type template"),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleCheckTemplate)

	// ── sync_template ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sync_template",
		mcp.WithDescription("Reshape a post's blocks into its post type template. Matching blocks are kept, the rest are replaced or dropped."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
		mcp.WithBoolean("apply", mcp.Description("Save the result to the post (default false: preview only)")),
	), s.handleSyncTemplate)

	// ── list_templates ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List post type templates"),
	), s.handleListTemplates)

	// ── list_block_types ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_block_types",
		mcp.WithDescription("List registered block types with their attribute schemas"),
	), s.handleListBlockTypes)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleCheckTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.getPostForTool(req.GetArguments())
	if err != nil {
		return nil, err
	}
	matches, err := s.templates.Check(p.Blocks, p.PostType)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{
		"postId":   p.ID,
		"postType": p.PostType,
		"matches":  matches,
	})
}

func (s *Server) handleSyncTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	p, err := s.getPostForTool(args)
	if err != nil {
		return nil, err
	}
	blocks, err := s.templates.Synchronize(p.Blocks, p.PostType)
	if err != nil {
		return nil, err
	}

	if apply, _ := args["apply"].(bool); !apply {
		return jsonResult(blocks)
	}
	updated, err := s.posts.UpdatePost(ctx, p.ID, service.UpdatePostInput{Blocks: &blocks})
	if err != nil {
		return nil, fmt.Errorf("apply template: %w", err)
	}
	return jsonResult(summarizePost(*updated))
}

func (s *Server) handleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.templates.List())
}

func (s *Server) handleListBlockTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.blockTypes.List())
}
