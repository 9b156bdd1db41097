package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── blockeditor://templates ────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"blockeditor://templates",
		"Post Type Templates",
		mcp.WithMIMEType("application/json"),
	), s.handleTemplatesResource)

	// ── blockeditor://post/{postId}/blocks ─────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"blockeditor://post/{postId}/blocks",
			"Blocks of a Post",
		),
		s.handlePostBlocksResource,
	)
}

func (s *Server) handleTemplatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.templates.List(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "blockeditor://templates",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePostBlocksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	postID := extractPostIDFromURI(uri)
	if postID == "" {
		return nil, fmt.Errorf("could not extract postId from URI: %s", uri)
	}

	p, err := s.posts.GetPost(postID)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(p.Blocks, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractPostIDFromURI extracts the post ID from "blockeditor://post/{id}/blocks".
func extractPostIDFromURI(uri string) string {
	const prefix = "blockeditor://post/"
	const suffix = "/blocks"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
