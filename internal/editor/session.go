// Package editor holds the in-memory editing session of a single post.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"blockeditor/internal/autosave"
	"blockeditor/internal/domain"
	"blockeditor/internal/template"
)

var (
	// ErrTemplateLocked is returned when an edit would break a locked template.
	ErrTemplateLocked = errors.New("template locked")
	// ErrAutosaveInFlight is returned when an autosave is already running.
	ErrAutosaveInFlight = errors.New("autosave already in progress")
)

// PostSaver persists a user-initiated save.
type PostSaver interface {
	SavePost(ctx context.Context, p *domain.Post) error
}

// AutosaveWriter persists an autosave snapshot.
type AutosaveWriter interface {
	WriteAutosave(ctx context.Context, a *domain.Autosave) error
}

// State is the observable editor state.
type State struct {
	IsDirty          bool          `json:"isDirty"`
	IsAutosaveable   bool          `json:"isAutosaveable"`
	IsAutosaving     bool          `json:"isAutosaving"`
	IsSaving         bool          `json:"isSaving"`
	AutosaveInterval time.Duration `json:"autosaveInterval"`
	TemplateValid    bool          `json:"templateValid"`
}

// Edits are pending changes to post fields. Nil fields are left alone.
type Edits struct {
	Title   *string `json:"title,omitempty"`
	Excerpt *string `json:"excerpt,omitempty"`
}

// Options configures a Session.
type Options struct {
	Template         *domain.PostTypeTemplate
	Synchronizer     *template.Synchronizer
	LastAutosave     *domain.Autosave
	AutosaveInterval time.Duration
	Saver            PostSaver
	Autosaver        AutosaveWriter
	Logger           *zap.Logger
}

// Session is one post open for editing. All methods are safe for concurrent
// use; subscribers are notified after every change, outside the lock.
type Session struct {
	mu   sync.Mutex
	post domain.Post // last persisted version

	title   string
	excerpt string
	blocks  []domain.Block

	baseline      snapshot
	lastAutosave  *snapshot
	templateValid bool
	saving        bool
	autosaving    bool

	tmpl         *domain.PostTypeTemplate
	synchronizer *template.Synchronizer
	interval     time.Duration
	saver        PostSaver
	autosaver    AutosaveWriter
	log          *zap.Logger

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// Open starts a session for post. A new post whose blocks do not match its
// post type template is synchronized with the template before editing
// starts; existing posts are left as stored and flagged by TemplateValid.
func Open(post domain.Post, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	interval := opts.AutosaveInterval
	if interval <= 0 {
		interval = autosave.DefaultInterval
	}
	s := &Session{
		post:         post,
		title:        post.Title,
		excerpt:      post.Excerpt,
		blocks:       post.Blocks,
		tmpl:         opts.Template,
		synchronizer: opts.Synchronizer,
		interval:     interval,
		saver:        opts.Saver,
		autosaver:    opts.Autosaver,
		log:          log.With(zap.String("post", post.ID)),
		listeners:    make(map[int]func()),
	}

	s.templateValid = s.matchesTemplate(s.blocks)
	if !s.templateValid && post.IsNew() && s.synchronizer != nil {
		s.blocks = s.synchronizer.SynchronizeBlocksWithTemplate(s.blocks, s.tmpl.Blocks)
		s.templateValid = true
		s.log.Debug("synchronized new post with template", zap.String("postType", post.PostType))
	}
	s.baseline = snapshotOf(s.title, s.excerpt, s.blocks)

	if a := opts.LastAutosave; a != nil {
		snap := snapshotOf(a.Title, a.Excerpt, a.Blocks)
		s.lastAutosave = &snap
	}
	return s
}

// ── Selectors ──────────────────────────────────────────────

// State returns the current editor state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// AutosaveFlags implements autosave.Source.
func (s *Session) AutosaveFlags() autosave.Flags {
	st := s.State()
	return autosave.Flags{
		IsDirty:        st.IsDirty,
		IsAutosaveable: st.IsAutosaveable,
		IsAutosaving:   st.IsAutosaving,
	}
}

// Blocks returns the edited block tree.
func (s *Session) Blocks() []domain.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Block(nil), s.blocks...)
}

// EditedPost returns the persisted post with the pending edits applied.
func (s *Session) EditedPost() domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editedLocked()
}

func (s *Session) editedLocked() domain.Post {
	p := s.post
	p.Title = s.title
	p.Excerpt = s.excerpt
	p.Blocks = append([]domain.Block(nil), s.blocks...)
	return p
}

func (s *Session) stateLocked() State {
	current := snapshotOf(s.title, s.excerpt, s.blocks)
	saveable := !s.saving && (s.title != "" || s.excerpt != "" || !isContentEmpty(s.blocks))
	autosaveable := saveable && (s.lastAutosave == nil || *s.lastAutosave != current)
	return State{
		IsDirty:          current != s.baseline,
		IsAutosaveable:   autosaveable,
		IsAutosaving:     s.autosaving,
		IsSaving:         s.saving,
		AutosaveInterval: s.interval,
		TemplateValid:    s.templateValid,
	}
}

func (s *Session) matchesTemplate(blocks []domain.Block) bool {
	if s.tmpl == nil {
		return true
	}
	return template.DoBlocksMatchTemplate(blocks, s.tmpl.Blocks)
}

// ── Actions ────────────────────────────────────────────────

// EditPost applies field edits.
func (s *Session) EditPost(e Edits) {
	s.mu.Lock()
	if e.Title != nil {
		s.title = *e.Title
	}
	if e.Excerpt != nil {
		s.excerpt = *e.Excerpt
	}
	s.mu.Unlock()
	s.notify()
}

// ResetBlocks replaces the edited block tree. With an "all" template lock a
// tree that no longer matches the template is rejected.
func (s *Session) ResetBlocks(blocks []domain.Block) error {
	s.mu.Lock()
	valid := s.matchesTemplate(blocks)
	if !valid && s.tmpl != nil && s.tmpl.Lock == domain.TemplateLockAll {
		s.mu.Unlock()
		return fmt.Errorf("reset blocks: %w", ErrTemplateLocked)
	}
	s.blocks = append([]domain.Block(nil), blocks...)
	s.templateValid = valid
	s.mu.Unlock()
	s.notify()
	return nil
}

// SynchronizeTemplate forces the edited tree into the template's shape.
// It is a no-op without a template.
func (s *Session) SynchronizeTemplate() {
	s.mu.Lock()
	if s.tmpl == nil || s.synchronizer == nil {
		s.mu.Unlock()
		return
	}
	s.blocks = s.synchronizer.SynchronizeBlocksWithTemplate(s.blocks, s.tmpl.Blocks)
	s.templateValid = true
	s.mu.Unlock()
	s.notify()
}

// Save persists the edited post and clears the dirty state. Auto-drafts are
// promoted to drafts.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil
	}
	s.saving = true
	edited := s.editedLocked()
	if edited.Status == domain.PostStatusAutoDraft || edited.Status == "" {
		edited.Status = domain.PostStatusDraft
	}
	saved := snapshotOf(edited.Title, edited.Excerpt, edited.Blocks)
	s.mu.Unlock()
	s.notify()

	err := s.saver.SavePost(ctx, &edited)

	s.mu.Lock()
	s.saving = false
	if err == nil {
		s.post = edited
		s.baseline = saved
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Warn("save failed", zap.Error(err))
		return fmt.Errorf("save post: %w", err)
	}
	return nil
}

// Autosave stores a snapshot of the pending edits. Dirtiness is kept: only
// Save clears it.
func (s *Session) Autosave(ctx context.Context) error {
	s.mu.Lock()
	if s.autosaving {
		s.mu.Unlock()
		return ErrAutosaveInFlight
	}
	s.autosaving = true
	edited := s.editedLocked()
	snap := snapshotOf(edited.Title, edited.Excerpt, edited.Blocks)
	s.mu.Unlock()
	s.notify()

	err := s.autosaver.WriteAutosave(ctx, &domain.Autosave{
		PostID:  edited.ID,
		Title:   edited.Title,
		Excerpt: edited.Excerpt,
		Blocks:  edited.Blocks,
	})

	s.mu.Lock()
	s.autosaving = false
	if err == nil {
		s.lastAutosave = &snap
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Warn("autosave failed", zap.Error(err))
		return fmt.Errorf("autosave post: %w", err)
	}
	s.log.Debug("autosaved")
	return nil
}

// ── Subscriptions ──────────────────────────────────────────

// Subscribe registers fn to run after every state change.
func (s *Session) Subscribe(fn func()) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Session) notify() {
	s.listenersMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
