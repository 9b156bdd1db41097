package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"blockeditor/internal/autosave"
	"blockeditor/internal/domain"
	"blockeditor/internal/editor"
	"blockeditor/internal/template"
)

// ─────────────────────────────────────────────────────────────
// Post Service: business logic for posts and editing sessions
// ─────────────────────────────────────────────────────────────

// PostService manages posts and opens them for editing.
// It implements editor.PostSaver.
type PostService struct {
	store     domain.PostStore
	templates *TemplateService
	autosaves *AutosaveService
	emitter   EventEmitter
	clock     clockwork.Clock
	interval  time.Duration
	log       *zap.Logger
}

// NewPostService creates a PostService. interval is the autosave interval of
// sessions opened through OpenForEditing.
func NewPostService(
	store domain.PostStore,
	templates *TemplateService,
	autosaves *AutosaveService,
	emitter EventEmitter,
	clk clockwork.Clock,
	interval time.Duration,
	log *zap.Logger,
) *PostService {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{
		store:     store,
		templates: templates,
		autosaves: autosaves,
		emitter:   emitter,
		clock:     clk,
		interval:  interval,
		log:       log.Named("posts"),
	}
}

// ── CRUD ───────────────────────────────────────────────────

type CreatePostInput struct {
	PostType string `json:"postType"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
}

// CreatePost creates an auto-draft. When the post type has a template the
// post starts with the template's blocks.
func (s *PostService) CreatePost(ctx context.Context, input CreatePostInput) (*domain.Post, error) {
	p := &domain.Post{
		ID:       uuid.New().String(),
		PostType: input.PostType,
		Title:    input.Title,
		Excerpt:  input.Excerpt,
		Status:   domain.PostStatusAutoDraft,
		Blocks:   []domain.Block{},
	}
	if blocks, err := s.templates.Synchronize(nil, input.PostType); err == nil {
		p.Blocks = blocks
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := s.store.CreatePost(p); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.emitter.Emit(ctx, EventPostSaved, p.ID)
	return p, nil
}

// GetPost returns a post by ID.
func (s *PostService) GetPost(id string) (*domain.Post, error) {
	return s.store.GetPost(id)
}

// ListPosts returns posts of postType, or all posts when it is empty.
func (s *PostService) ListPosts(postType string) ([]domain.Post, error) {
	return s.store.ListPosts(postType)
}

type UpdatePostInput struct {
	Title   *string         `json:"title,omitempty"`
	Excerpt *string         `json:"excerpt,omitempty"`
	Status  *string         `json:"status,omitempty"`
	Blocks  *[]domain.Block `json:"blocks,omitempty"`
}

// UpdatePost applies input to a stored post. A block tree that breaks an
// "all"-locked template fails with editor.ErrTemplateLocked.
func (s *PostService) UpdatePost(ctx context.Context, id string, input UpdatePostInput) (*domain.Post, error) {
	p, err := s.store.GetPost(id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		p.Title = *input.Title
	}
	if input.Excerpt != nil {
		p.Excerpt = *input.Excerpt
	}
	if input.Status != nil {
		status := domain.PostStatus(*input.Status)
		switch status {
		case domain.PostStatusAutoDraft, domain.PostStatusDraft, domain.PostStatusPublish:
		default:
			return nil, fmt.Errorf("invalid post status %q", *input.Status)
		}
		p.Status = status
	}
	if input.Blocks != nil {
		if ptt, ok := s.templates.Get(p.PostType); ok && ptt.Lock == domain.TemplateLockAll &&
			!template.DoBlocksMatchTemplate(*input.Blocks, ptt.Blocks) {
			return nil, fmt.Errorf("update post %s: %w", id, editor.ErrTemplateLocked)
		}
		p.Blocks = *input.Blocks
	}
	if err := s.SavePost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SavePost persists p as is.
func (s *PostService) SavePost(ctx context.Context, p *domain.Post) error {
	if err := s.store.UpdatePost(p); err != nil {
		return fmt.Errorf("save post: %w", err)
	}
	s.emitter.Emit(ctx, EventPostSaved, p.ID)
	return nil
}

// DeletePost removes a post and its autosaves.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	if err := s.store.DeletePost(id); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventPostDeleted, id)
	return nil
}

// ── Editing ────────────────────────────────────────────────

// EditingSession is an editor session with its autosave monitor bound.
type EditingSession struct {
	*editor.Session
	monitor *autosave.Monitor
}

// Monitor returns the session's autosave monitor.
func (e *EditingSession) Monitor() *autosave.Monitor {
	return e.monitor
}

// Close disarms the autosave monitor. The session itself stays readable.
// Calling it again is a no-op.
func (e *EditingSession) Close() {
	e.monitor.Dispose()
}

// OpenForEditing loads a post with its template and latest autosave and
// starts an editing session whose monitor autosaves on the service clock.
func (s *PostService) OpenForEditing(ctx context.Context, id string) (*EditingSession, error) {
	p, err := s.store.GetPost(id)
	if err != nil {
		return nil, err
	}
	var last *domain.Autosave
	if a, err := s.autosaves.Latest(id); err == nil {
		last = a
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("open post %s: %w", id, err)
	}

	ptt, _ := s.templates.Get(p.PostType)
	log := s.log.With(zap.String("post", id))
	sess := editor.Open(*p, editor.Options{
		Template:         ptt,
		Synchronizer:     s.templates.Synchronizer(),
		LastAutosave:     last,
		AutosaveInterval: s.interval,
		Saver:            s,
		Autosaver:        s.autosaves,
		Logger:           log,
	})

	// Timer callbacks outlive the request that opened the session.
	actionCtx := context.WithoutCancel(ctx)
	mon := autosave.NewMonitor(s.clock, sess.State().AutosaveInterval, func() {
		if err := sess.Autosave(actionCtx); err != nil {
			log.Warn("scheduled autosave failed", zap.Error(err))
		}
	}, sess.AutosaveFlags(), log)
	return &EditingSession{Session: sess, monitor: autosave.Bind(sess, mon)}, nil
}
