package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"blockeditor/internal/domain"
	"blockeditor/internal/editor"
	"blockeditor/internal/service"
)

func (s *Server) registerSessionTools() {
	// ── open_post ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_post",
		mcp.WithDescription("Open a post for editing. Edits stay pending until save_post and are autosaved after the autosave interval. Opening an open post returns its current session."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleOpenPost)

	// ── edit_post ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("edit_post",
		mcp.WithDescription("Apply pending edits to an open post. Locked templates reject block trees that break them."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Edited title (optional)")),
		mcp.WithString("excerpt", mcp.Description("Edited excerpt (optional)")),
		mcp.WithString("blocks", mcp.Description("JSON array of blocks replacing the edited tree (optional)")),
	), s.handleEditPost)

	// ── save_post ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_post",
		mcp.WithDescription("Save the pending edits of an open post. Auto-drafts become drafts."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleSavePost)

	// ── sync_post_template ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sync_post_template",
		mcp.WithDescription("Reshape the edited blocks of an open post into its post type template. The result is pending until save_post."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleSyncPostTemplate)

	// ── close_post ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("close_post",
		mcp.WithDescription("Close an open post and stop its autosave timer. Edits that were neither saved nor autosaved are discarded."),
		mcp.WithString("postId", mcp.Description("Post ID"), mcp.Required()),
	), s.handleClosePost)

	// ── list_open_posts ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_open_posts",
		mcp.WithDescription("List the IDs of posts open for editing"),
	), s.handleListOpenPosts)
}

// sessionView is the tool representation of an editing session.
type sessionView struct {
	PostID          string       `json:"postId"`
	Post            domain.Post  `json:"post"`
	State           editor.State `json:"state"`
	AutosavePending bool         `json:"autosavePending"`
}

func viewSession(sess *service.EditingSession) sessionView {
	p := sess.EditedPost()
	return sessionView{
		PostID:          p.ID,
		Post:            p,
		State:           sess.State(),
		AutosavePending: sess.Monitor().Pending(),
	}
}

// sessionForTool returns the open session named by the postId argument.
func (s *Server) sessionForTool(args map[string]any) (*service.EditingSession, error) {
	postID, err := requireString(args, "postId")
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(postID)
	if errors.Is(err, service.ErrNoSession) {
		return nil, fmt.Errorf("post %s is not open for editing; call open_post first", postID)
	}
	return sess, err
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleOpenPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postID, err := requireString(req.GetArguments(), "postId")
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Open(ctx, postID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("post %s not found", postID)
	}
	if err != nil {
		return nil, fmt.Errorf("open post: %w", err)
	}
	return jsonResult(viewSession(sess))
}

func (s *Server) handleEditPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.sessionForTool(args)
	if err != nil {
		return nil, err
	}

	blocks, ok, err := parseBlocksArg(args, "blocks")
	if err != nil {
		return nil, err
	}
	if ok {
		if err := sess.ResetBlocks(blocks); err != nil {
			return nil, err
		}
	}
	edits := editor.Edits{Title: optionalString(args, "title"), Excerpt: optionalString(args, "excerpt")}
	if edits.Title != nil || edits.Excerpt != nil {
		sess.EditPost(edits)
	}
	return jsonResult(viewSession(sess))
}

func (s *Server) handleSavePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := sess.Save(ctx); err != nil {
		return nil, err
	}
	return jsonResult(viewSession(sess))
}

func (s *Server) handleSyncPostTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req.GetArguments())
	if err != nil {
		return nil, err
	}
	sess.SynchronizeTemplate()
	return jsonResult(viewSession(sess))
}

func (s *Server) handleClosePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req.GetArguments())
	if err != nil {
		return nil, err
	}
	st := sess.State()
	postID := sess.EditedPost().ID
	if err := s.sessions.Close(postID); err != nil {
		return nil, err
	}
	if st.IsDirty && st.IsAutosaveable {
		return textResult(fmt.Sprintf("Post %s closed; unsaved edits discarded", postID)), nil
	}
	return textResult(fmt.Sprintf("Post %s closed", postID)), nil
}

func (s *Server) handleListOpenPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sessions.IDs())
}
