package app

import (
	"context"
	"os/signal"
	"syscall"

	mcpserver "blockeditor/internal/mcp"
)

// ServeMCP runs the app as a standalone MCP server on stdin/stdout.
// Template watching and scheduled pruning run until the server exits or the
// process is interrupted.
func (a *App) ServeMCP(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcpSrv := mcpserver.New(mcpserver.Deps{
		Posts:      a.posts,
		Templates:  a.templates,
		Autosaves:  a.autosaves,
		Sessions:   a.sessions,
		BlockTypes: a.blockTypes,
		Logger:     a.log,
	})

	errc := make(chan error, 1)
	go func() { errc <- mcpSrv.ServeStdio() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		a.log.Info("interrupted, stopping MCP server")
		return nil
	}
}
