package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"blockeditor/internal/service"
)

func (s *Server) registerPostTools() {
	// ── list_posts ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List posts with a block outline, optionally filtered by post type"),
		mcp.WithString("postType", mcp.Description("Filter by post type (optional)")),
	), s.handleListPosts)

	// ── get_post ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Get a post with its full block tree"),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleGetPost)

	// ── create_post ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Create an auto-draft post. Posts of a templated type start with the template's blocks."),
		mcp.WithString("postType", mcp.Description("Post type, e.g. post, page, book"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Initial title (optional)")),
		mcp.WithString("excerpt", mcp.Description("Initial excerpt (optional)")),
	), s.handleCreatePost)

	// ── update_post_blocks ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_post_blocks",
		mcp.WithDescription("Replace a post's block tree and optionally its title, excerpt or status. Locked templates reject trees that break them."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
		mcp.WithString("blocks",
			mcp.Description("JSON array of blocks [{name, attributes?, innerBlocks?}, ...] (optional)"),
		),
		mcp.WithString("title", mcp.Description("New title (optional)")),
		mcp.WithString("excerpt", mcp.Description("New excerpt (optional)")),
		mcp.WithString("status", mcp.Description("auto-draft, draft or publish (optional)")),
	), s.handleUpdatePostBlocks)

	// ── delete_post (destructive) ──────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_post",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a post and all of its autosaves."),
		mcp.WithString("postId", mcp.Description("Post ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeletePost)
}

func boolPtr(v bool) *bool { return &v }

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postType, _ := req.GetArguments()["postType"].(string)
	posts, err := s.posts.ListPosts(postType)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	summaries := make([]postSummary, len(posts))
	for i, p := range posts {
		summaries[i] = summarizePost(p)
	}
	return jsonResult(summaries)
}

func (s *Server) handleGetPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.getPostForTool(req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(p)
}

func (s *Server) handleCreatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	postType, err := requireString(args, "postType")
	if err != nil {
		return nil, err
	}
	title, _ := args["title"].(string)
	excerpt, _ := args["excerpt"].(string)

	p, err := s.posts.CreatePost(ctx, service.CreatePostInput{PostType: postType, Title: title, Excerpt: excerpt})
	if err != nil {
		return nil, err
	}
	return jsonResult(p)
}

func (s *Server) handleUpdatePostBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	postID, err := requireString(args, "postId")
	if err != nil {
		return nil, err
	}

	input := service.UpdatePostInput{
		Title:   optionalString(args, "title"),
		Excerpt: optionalString(args, "excerpt"),
		Status:  optionalString(args, "status"),
	}
	blocks, ok, err := parseBlocksArg(args, "blocks")
	if err != nil {
		return nil, err
	}
	if ok {
		input.Blocks = &blocks
	}

	p, err := s.posts.UpdatePost(ctx, postID, input)
	if err != nil {
		return nil, err
	}
	return jsonResult(summarizePost(*p))
}

func (s *Server) handleDeletePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postID, err := requireString(req.GetArguments(), "postId")
	if err != nil {
		return nil, err
	}
	// An open session must not autosave the post back after deletion.
	// Close fails with service.ErrNoSession when the post is not open.
	_ = s.sessions.Close(postID)
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	return textResult(fmt.Sprintf("Post %s deleted", postID)), nil
}
