package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("draft_from_template",
		mcp.WithPromptDescription("Guide through drafting a new post that follows its post type template"),
		mcp.WithArgument("postType",
			mcp.ArgumentDescription("Post type to draft, e.g. book"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What the post is about"),
			mcp.RequiredArgument(),
		),
	), s.handleDraftFromTemplatePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("repair_post",
		mcp.WithPromptDescription("Check a post against its template and repair it without losing content"),
		mcp.WithArgument("postId",
			mcp.ArgumentDescription("Post to repair"),
			mcp.RequiredArgument(),
		),
	), s.handleRepairPostPrompt)
}

func (s *Server) handleDraftFromTemplatePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	postType := req.Params.Arguments["postType"]
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Draft a %s about: %s", postType, topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Draft a new "%s" post about "%s". Follow these steps:

1. Use create_post with postType "%s". The post starts with the template's blocks.
2. Use get_post to read the seeded block tree and list_block_types for each block's attributes.
3. Fill in attributes of the existing blocks only. Keep block names, order and nesting unchanged.
4. Save the result with update_post_blocks, then confirm with check_template.

While iterating, store intermediate versions with autosave_post instead of saving.`, postType, topic, postType),
				},
			},
		},
	}, nil
}

func (s *Server) handleRepairPostPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	postID := req.Params.Arguments["postId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Repair post %s", postID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Repair post %s so it follows its template:

1. Run check_template. If it matches, stop.
2. Run sync_template without apply to preview the reshaped tree.
3. Compare it with get_post. Blocks at mismatching positions are replaced by empty ones, so move their content into the preview first.
4. Save with update_post_blocks (or sync_template with apply=true when nothing would be lost).`, postID),
				},
			},
		},
	}, nil
}
