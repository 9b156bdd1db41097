package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"blockeditor/internal/blocktype"
	"blockeditor/internal/domain"
	"blockeditor/internal/service"
)

// Server is the MCP server for the block editor.
// It exposes tools, resources, and prompts so AI agents can edit posts.
type Server struct {
	mcp *server.MCPServer
	log *zap.Logger

	// Services (injected from app layer)
	posts      *service.PostService
	templates  *service.TemplateService
	autosaves  *service.AutosaveService
	sessions   *service.SessionRegistry
	blockTypes *blocktype.Registry
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Posts      *service.PostService
	Templates  *service.TemplateService
	Autosaves  *service.AutosaveService
	Sessions   *service.SessionRegistry // nil creates one over Posts
	BlockTypes *blocktype.Registry
	Logger     *zap.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:        log.Named("mcp"),
		posts:      deps.Posts,
		templates:  deps.Templates,
		autosaves:  deps.Autosaves,
		sessions:   deps.Sessions,
		blockTypes: deps.BlockTypes,
	}
	if s.sessions == nil {
		s.sessions = service.NewSessionRegistry(deps.Posts, log)
	}

	s.mcp = server.NewMCPServer(
		"blockeditor-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerPostTools()
	s.registerTemplateTools()
	s.registerAutosaveTools()
	s.registerSessionTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// requireString returns a non-empty string argument.
func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// optionalString returns a pointer to a string argument, or nil when absent.
func optionalString(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// getPostForTool retrieves the post named by the postId argument.
func (s *Server) getPostForTool(args map[string]any) (*domain.Post, error) {
	postID, err := requireString(args, "postId")
	if err != nil {
		return nil, err
	}
	p, err := s.posts.GetPost(postID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("post %s not found", postID)
	}
	return p, err
}
