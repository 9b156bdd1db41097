package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"blockeditor/internal/attrparse"
	"blockeditor/internal/blocktype"
	"blockeditor/internal/config"
	"blockeditor/internal/domain"
	"blockeditor/internal/service"
	"blockeditor/internal/storage"
	"blockeditor/internal/template"
)

// App wires storage, block types, templates and services together.
type App struct {
	cfg config.Config
	log *zap.Logger

	db         *storage.DB
	blockTypes *blocktype.Registry
	templates  *service.TemplateService
	autosaves  *service.AutosaveService
	posts      *service.PostService
	sessions   *service.SessionRegistry
}

// Options selects the background work Startup begins.
type Options struct {
	Watch    bool // reload templates on file change
	Schedule bool // run scheduled autosave pruning

	// Clock drives autosave timers and timestamps. Nil uses the wall clock.
	Clock clockwork.Clock
}

// Startup opens the database, loads block types and templates and starts the
// requested background work. Call Shutdown when done.
func Startup(ctx context.Context, cfg config.Config, opts Options, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	a.blockTypes = blocktype.NewRegistry()
	if err := a.blockTypes.RegisterCore(); err != nil {
		a.Shutdown(ctx)
		return nil, err
	}
	if cfg.BlockTypesFile != "" {
		n, err := a.blockTypes.LoadFile(cfg.BlockTypesFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("block types file not found", zap.String("path", cfg.BlockTypesFile))
		case err != nil:
			a.Shutdown(ctx)
			return nil, err
		default:
			log.Info("block types loaded", zap.Int("count", n))
		}
	}

	emitter := service.LogEmitter{Log: log.Named("events")}
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	synchronizer := template.NewSynchronizer(a.blockTypes, attrparse.New(), blocktype.NewFactory(a.blockTypes), log.Named("sync"))

	a.templates = service.NewTemplateService(cfg.TemplatesDir, synchronizer, emitter, log)
	if err := a.templates.Load(); err != nil {
		a.Shutdown(ctx)
		return nil, err
	}
	a.autosaves = service.NewAutosaveService(
		storage.NewAutosaveStore(db),
		service.AutosaveOptions{Keep: cfg.AutosaveKeep, MaxAge: cfg.PruneMaxAge},
		clk, emitter, log,
	)
	a.posts = service.NewPostService(storage.NewPostStore(db), a.templates, a.autosaves, emitter, clk, cfg.AutosaveInterval, log)
	a.sessions = service.NewSessionRegistry(a.posts, log)

	if opts.Watch && cfg.WatchTemplates {
		if err := a.templates.Watch(ctx); err != nil {
			log.Warn("template watch disabled", zap.Error(err))
		}
	}
	if opts.Schedule && cfg.PruneSchedule != "" {
		if err := a.autosaves.StartSchedule(cfg.PruneSchedule); err != nil {
			a.Shutdown(ctx)
			return nil, err
		}
	}
	return a, nil
}

// Shutdown disposes open editing sessions, stops background work, waits for
// in-flight autosaves and closes the database.
func (a *App) Shutdown(ctx context.Context) {
	if a.sessions != nil {
		a.sessions.CloseAll()
	}
	if a.templates != nil {
		a.templates.Stop()
	}
	if a.autosaves != nil {
		a.autosaves.Stop()
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		a.autosaves.WaitRunning(waitCtx)
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
		a.db = nil
	}
}

// Posts returns the post service.
func (a *App) Posts() *service.PostService { return a.posts }

// Templates returns the template service.
func (a *App) Templates() *service.TemplateService { return a.templates }

// Autosaves returns the autosave service.
func (a *App) Autosaves() *service.AutosaveService { return a.autosaves }

// Sessions returns the registry of open editing sessions.
func (a *App) Sessions() *service.SessionRegistry { return a.sessions }

// ── Operator commands ──────────────────────────────────────

// CheckResult is the outcome of checking one post against its template.
type CheckResult struct {
	PostID   string   `json:"postId"`
	PostType string   `json:"postType"`
	Matches  bool     `json:"matches"`
	Outline  []string `json:"outline"`
}

// CheckPost checks a stored post against its post type template.
func (a *App) CheckPost(postID string) (*CheckResult, error) {
	p, err := a.posts.GetPost(postID)
	if err != nil {
		return nil, err
	}
	matches, err := a.templates.Check(p.Blocks, p.PostType)
	if err != nil {
		return nil, err
	}
	return &CheckResult{PostID: p.ID, PostType: p.PostType, Matches: matches, Outline: domain.Names(p.Blocks)}, nil
}

// SyncPost reshapes a stored post into its template. With apply the result
// is saved; otherwise it is only returned.
func (a *App) SyncPost(ctx context.Context, postID string, apply bool) ([]domain.Block, error) {
	p, err := a.posts.GetPost(postID)
	if err != nil {
		return nil, err
	}
	blocks, err := a.templates.Synchronize(p.Blocks, p.PostType)
	if err != nil {
		return nil, err
	}
	if apply {
		if _, err := a.posts.UpdatePost(ctx, postID, service.UpdatePostInput{Blocks: &blocks}); err != nil {
			return nil, err
		}
		a.log.Info("post synchronized with template", zap.String("post", postID), zap.String("postType", p.PostType))
	}
	return blocks, nil
}

// PruneAutosaves runs one expiry pass over all autosaves.
func (a *App) PruneAutosaves() (int, error) {
	return a.autosaves.PruneExpired()
}
