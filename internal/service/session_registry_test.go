package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"blockeditor/internal/editor"
	"blockeditor/internal/service"
)

func TestSessionRegistry_OpenSharesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := service.NewSessionRegistry(f.posts, nil)
	defer reg.CloseAll()

	a, err := f.posts.CreatePost(ctx, service.CreatePostInput{PostType: "page"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.posts.CreatePost(ctx, service.CreatePostInput{PostType: "book"})
	if err != nil {
		t.Fatal(err)
	}

	first, err := reg.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	again, err := reg.Open(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("second Open created a new session")
	}
	if _, err := reg.Open(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	got, err := reg.Get(a.ID)
	if err != nil || got != first {
		t.Fatalf("Get = %p, %v; want %p", got, err, first)
	}
	want := []string{a.ID, b.ID}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}
	if diff := cmp.Diff(want, reg.IDs()); diff != "" {
		t.Errorf("IDs (-want +got):\n%s", diff)
	}

	if _, err := reg.Open(ctx, "missing"); err == nil {
		t.Error("expected error opening an unknown post")
	}
	if _, err := reg.Get("missing"); !errors.Is(err, service.ErrNoSession) {
		t.Errorf("Get unknown: %v", err)
	}
}

func TestSessionRegistry_CloseDisposesMonitor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := service.NewSessionRegistry(f.posts, nil)
	defer reg.CloseAll()

	p, err := f.posts.CreatePost(ctx, service.CreatePostInput{PostType: "page"})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := reg.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	title := "Unsaved"
	sess.EditPost(editor.Edits{Title: &title})
	if !sess.Monitor().Pending() {
		t.Fatal("expected armed monitor after edit")
	}

	if err := reg.Close(p.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sess.Monitor().Pending() {
		t.Error("monitor still armed after Close")
	}
	if err := reg.Close(p.ID); !errors.Is(err, service.ErrNoSession) {
		t.Errorf("second close: %v", err)
	}

	f.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if _, err := f.autosaves.Latest(p.ID); err == nil {
		t.Error("autosave ran after the session was closed")
	}

	reopened, err := reg.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reopened == sess {
		t.Error("closed session was reused")
	}
}

func TestSessionRegistry_CloseAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := service.NewSessionRegistry(f.posts, nil)

	var sessions []*service.EditingSession
	for range 3 {
		p, err := f.posts.CreatePost(ctx, service.CreatePostInput{PostType: "page"})
		if err != nil {
			t.Fatal(err)
		}
		sess, err := reg.Open(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		title := "draft " + p.ID
		sess.EditPost(editor.Edits{Title: &title})
		sessions = append(sessions, sess)
	}

	if n := reg.CloseAll(); n != 3 {
		t.Errorf("CloseAll closed %d sessions, want 3", n)
	}
	for i, sess := range sessions {
		if sess.Monitor().Pending() {
			t.Errorf("session %d still armed after CloseAll", i)
		}
	}
	if len(reg.IDs()) != 0 {
		t.Errorf("IDs after CloseAll = %v", reg.IDs())
	}
	if _, err := reg.Open(ctx, sessions[0].EditedPost().ID); !errors.Is(err, service.ErrSessionsClosed) {
		t.Errorf("Open after CloseAll: %v", err)
	}
	if n := reg.CloseAll(); n != 0 {
		t.Errorf("second CloseAll closed %d", n)
	}
}
