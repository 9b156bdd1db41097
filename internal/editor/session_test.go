package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/goleak"

	"blockeditor/internal/attrparse"
	"blockeditor/internal/autosave"
	"blockeditor/internal/blocktype"
	"blockeditor/internal/domain"
	"blockeditor/internal/template"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingStore struct {
	mu        sync.Mutex
	saved     []domain.Post
	autosaves []domain.Autosave
	fail      error
	during    func()
}

func (r *recordingStore) SavePost(_ context.Context, p *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saved = append(r.saved, *p)
	return nil
}

func (r *recordingStore) WriteAutosave(_ context.Context, a *domain.Autosave) error {
	if r.during != nil {
		r.during()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.autosaves = append(r.autosaves, *a)
	return nil
}

func (r *recordingStore) autosaveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.autosaves)
}

var bookTemplate = &domain.PostTypeTemplate{
	PostType: "book",
	Blocks: domain.Template{
		{Name: "core/image"},
		{Name: "core/paragraph", Attributes: map[string]any{"placeholder": "Add a book description"}},
		{Name: "core/list", Attributes: map[string]any{"values": "<li>Chapter one</li>"}},
	},
}

func newSynchronizer(t *testing.T) *template.Synchronizer {
	t.Helper()
	reg := blocktype.NewRegistry()
	if err := reg.RegisterCore(); err != nil {
		t.Fatal(err)
	}
	return template.NewSynchronizer(reg, attrparse.New(), blocktype.NewFactory(reg), nil)
}

func openSession(t *testing.T, post domain.Post, tmpl *domain.PostTypeTemplate, store *recordingStore) *Session {
	t.Helper()
	return Open(post, Options{
		Template:         tmpl,
		Synchronizer:     newSynchronizer(t),
		AutosaveInterval: 10 * time.Second,
		Saver:            store,
		Autosaver:        store,
	})
}

func strPtr(s string) *string { return &s }

func TestOpen_NewPostIsSynchronizedWithTemplate(t *testing.T) {
	s := openSession(t, domain.Post{ID: "p1", PostType: "book", Status: domain.PostStatusAutoDraft}, bookTemplate, &recordingStore{})

	blocks := s.Blocks()
	if !template.DoBlocksMatchTemplate(blocks, bookTemplate.Blocks) {
		t.Fatalf("new post not synchronized: %v", domain.Names(blocks))
	}
	if _, ok := blocks[2].Attributes["values"].([]any); !ok {
		t.Errorf("list values not parsed into children: %T", blocks[2].Attributes["values"])
	}
	st := s.State()
	if st.IsDirty {
		t.Error("template setup should not dirty the post")
	}
	if !st.TemplateValid {
		t.Error("expected TemplateValid after synchronization")
	}
}

func TestOpen_ExistingPostKeepsItsBlocks(t *testing.T) {
	post := domain.Post{
		ID: "p1", PostType: "book", Status: domain.PostStatusDraft,
		Blocks: []domain.Block{{ClientID: "q", Name: "core/quote"}},
	}
	s := openSession(t, post, bookTemplate, &recordingStore{})

	if got := domain.Names(s.Blocks()); len(got) != 1 || got[0] != "core/quote" {
		t.Fatalf("existing post rewritten on open: %v", got)
	}
	if s.State().TemplateValid {
		t.Fatal("expected TemplateValid=false for mismatching post")
	}

	s.SynchronizeTemplate()
	if !s.State().TemplateValid || !template.DoBlocksMatchTemplate(s.Blocks(), bookTemplate.Blocks) {
		t.Fatal("SynchronizeTemplate did not restore the template shape")
	}
	if !s.State().IsDirty {
		t.Error("explicit synchronization should dirty the post")
	}
}

func TestSession_DirtyAndAutosaveable(t *testing.T) {
	store := &recordingStore{}
	s := openSession(t, domain.Post{ID: "p1", Status: domain.PostStatusDraft}, nil, store)

	if st := s.State(); st.IsDirty || st.IsAutosaveable {
		t.Fatalf("fresh empty post: %+v", st)
	}

	s.EditPost(Edits{Title: strPtr("Draft title")})
	if st := s.State(); !st.IsDirty || !st.IsAutosaveable {
		t.Fatalf("after edit: %+v", st)
	}

	if err := s.Autosave(context.Background()); err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	st := s.State()
	if !st.IsDirty {
		t.Error("autosave must not clear dirtiness")
	}
	if st.IsAutosaveable {
		t.Error("edits equal to the last autosave should not be autosaveable")
	}
	if len(store.autosaves) != 1 || store.autosaves[0].Title != "Draft title" {
		t.Fatalf("autosaves = %+v", store.autosaves)
	}

	s.EditPost(Edits{Excerpt: strPtr("more")})
	if !s.State().IsAutosaveable {
		t.Error("new edits after an autosave should be autosaveable")
	}
}

func TestSession_LoneEmptyParagraphIsNotSaveable(t *testing.T) {
	s := openSession(t, domain.Post{ID: "p1", Status: domain.PostStatusDraft}, nil, &recordingStore{})
	if err := s.ResetBlocks([]domain.Block{{Name: "core/paragraph", Attributes: map[string]any{"content": ""}}}); err != nil {
		t.Fatal(err)
	}
	st := s.State()
	if !st.IsDirty {
		t.Error("expected dirty after inserting a block")
	}
	if st.IsAutosaveable {
		t.Error("a lone empty paragraph should not be autosaveable")
	}
}

func TestSession_SaveClearsDirty(t *testing.T) {
	store := &recordingStore{}
	s := openSession(t, domain.Post{ID: "p1", Status: domain.PostStatusAutoDraft}, nil, store)
	s.EditPost(Edits{Title: strPtr("Title")})

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.State().IsDirty {
		t.Error("dirty after save")
	}
	if len(store.saved) != 1 || store.saved[0].Status != domain.PostStatusDraft {
		t.Fatalf("saved = %+v", store.saved)
	}
	if s.EditedPost().Status != domain.PostStatusDraft {
		t.Error("session post not promoted to draft")
	}

	store.fail = errors.New("disk full")
	s.EditPost(Edits{Title: strPtr("Other")})
	if err := s.Save(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if st := s.State(); !st.IsDirty || st.IsSaving {
		t.Errorf("failed save should leave the post dirty and not saving: %+v", st)
	}
}

func TestSession_LockedTemplateRejectsShapeChanges(t *testing.T) {
	locked := *bookTemplate
	locked.Lock = domain.TemplateLockAll
	s := openSession(t, domain.Post{ID: "p1", Status: domain.PostStatusAutoDraft}, &locked, &recordingStore{})

	err := s.ResetBlocks([]domain.Block{{Name: "core/paragraph"}})
	if !errors.Is(err, ErrTemplateLocked) {
		t.Fatalf("expected ErrTemplateLocked, got %v", err)
	}

	// Attribute-only changes keep the shape and are allowed.
	blocks := s.Blocks()
	blocks[1].Attributes = map[string]any{"content": "A story"}
	if err := s.ResetBlocks(blocks); err != nil {
		t.Fatalf("shape-preserving edit rejected: %v", err)
	}
}

func TestSession_NotifiesSubscribers(t *testing.T) {
	s := openSession(t, domain.Post{ID: "p1"}, nil, &recordingStore{})
	calls := 0
	unsubscribe := s.Subscribe(func() { calls++ })

	s.EditPost(Edits{Title: strPtr("a")})
	if calls != 1 {
		t.Fatalf("calls = %d after one edit", calls)
	}
	unsubscribe()
	s.EditPost(Edits{Title: strPtr("b")})
	if calls != 1 {
		t.Fatalf("listener called after unsubscribe")
	}
}

// TestSession_MonitorLifecycle drives the autosave monitor from real session
// state on a fake clock.
func TestSession_MonitorLifecycle(t *testing.T) {
	store := &recordingStore{}
	s := openSession(t, domain.Post{ID: "p1", Status: domain.PostStatusDraft}, nil, store)
	clk := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	autosaved := make(chan error, 1)
	mon := autosave.Bind(s, autosave.NewMonitor(clk, s.State().AutosaveInterval, func() {
		autosaved <- s.Autosave(context.Background())
	}, s.AutosaveFlags(), nil))
	defer mon.Dispose()

	if mon.Pending() {
		t.Fatal("armed before any edit")
	}

	s.EditPost(Edits{Title: strPtr("hello")})
	if !mon.Pending() {
		t.Fatal("expected pending autosave after edit")
	}

	var pendingDuringAutosave atomic.Bool
	store.during = func() { pendingDuringAutosave.Store(mon.Pending()) }
	clk.Advance(10 * time.Second)

	select {
	case err := <-autosaved:
		if err != nil {
			t.Fatalf("Autosave: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("autosave did not run after the interval")
	}
	if n := store.autosaveCount(); n != 1 {
		t.Fatalf("autosaves = %d, want 1", n)
	}
	if pendingDuringAutosave.Load() {
		t.Error("timer armed while autosaving")
	}
	if mon.Pending() {
		t.Error("timer re-armed although edits match the autosave")
	}

	s.EditPost(Edits{Title: strPtr("hello again")})
	if !mon.Pending() {
		t.Fatal("expected re-arm after a new edit")
	}
	mon.Dispose()
	clk.Advance(time.Minute)
	if n := store.autosaveCount(); n != 1 {
		t.Errorf("autosave ran after teardown: %d", n)
	}
}
