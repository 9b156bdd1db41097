package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blockeditor/internal/domain"
	"blockeditor/internal/editor"
	"blockeditor/internal/service"
)

func TestAutosaveService_KeepsNewestN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		if err := f.autosaves.WriteAutosave(ctx, &domain.Autosave{PostID: "p1", Title: title}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := f.autosaves.List("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Title != "c" || list[1].Title != "b" {
		t.Fatalf("list = %+v", list)
	}
	if n := len(f.emitter.Names()); n != 3 {
		t.Errorf("emitted %d events, want 3", n)
	}
}

func TestAutosaveService_PruneExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.autosaves.WriteAutosave(ctx, &domain.Autosave{PostID: "p1", Title: "old"}); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(2 * time.Hour)
	if err := f.autosaves.WriteAutosave(ctx, &domain.Autosave{PostID: "p1", Title: "new"}); err != nil {
		t.Fatal(err)
	}

	n, err := f.autosaves.PruneExpired()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	a, err := f.autosaves.Latest("p1")
	if err != nil || a.Title != "new" {
		t.Fatalf("latest = %+v, %v", a, err)
	}
}

// blockingStore holds writes for one post until release is closed.
type blockingStore struct {
	domain.AutosaveStore
	post    string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore(post string) *blockingStore {
	return &blockingStore{post: post, entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStore) CreateAutosave(a *domain.Autosave) error {
	if a.PostID != b.post {
		return nil
	}
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil
}

func TestAutosaveService_OneWritePerPost(t *testing.T) {
	store := newBlockingStore("p1")
	svc := service.NewAutosaveService(store, service.AutosaveOptions{}, nil, &service.MockEmitter{}, nil)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- svc.WriteAutosave(ctx, &domain.Autosave{PostID: "p1"}) }()
	<-store.entered

	err := svc.WriteAutosave(ctx, &domain.Autosave{PostID: "p1"})
	if !errors.Is(err, editor.ErrAutosaveInFlight) {
		t.Fatalf("expected ErrAutosaveInFlight, got %v", err)
	}

	close(store.release)
	if err := <-errc; err != nil {
		t.Fatalf("first write: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	svc.WaitRunning(waitCtx)
}

func TestAutosaveService_WaitRunningTracksInFlightWrites(t *testing.T) {
	store := newBlockingStore("p1")
	svc := service.NewAutosaveService(store, service.AutosaveOptions{}, nil, &service.MockEmitter{}, nil)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- svc.WriteAutosave(ctx, &domain.Autosave{PostID: "p1"}) }()
	<-store.entered

	if err := svc.WriteAutosave(ctx, &domain.Autosave{PostID: "p2"}); err != nil {
		t.Fatalf("write for another post: %v", err)
	}

	waited := make(chan struct{})
	go func() {
		svc.WaitRunning(ctx)
		close(waited)
	}()
	select {
	case <-waited:
		t.Fatal("WaitRunning returned while a write was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(store.release)
	if err := <-errc; err != nil {
		t.Fatalf("first write: %v", err)
	}
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("WaitRunning did not return after the write finished")
	}

	if err := svc.WriteAutosave(ctx, &domain.Autosave{PostID: "p1"}); err != nil {
		t.Fatalf("write after the previous one finished: %v", err)
	}
}

func TestAutosaveService_WaitRunningHonorsContext(t *testing.T) {
	store := newBlockingStore("p1")
	svc := service.NewAutosaveService(store, service.AutosaveOptions{}, nil, &service.MockEmitter{}, nil)

	errc := make(chan error, 1)
	go func() { errc <- svc.WriteAutosave(context.Background(), &domain.Autosave{PostID: "p1"}) }()
	<-store.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	svc.WaitRunning(ctx)
	if ctx.Err() == nil {
		t.Fatal("WaitRunning returned before the context expired")
	}

	close(store.release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
}

func TestAutosaveService_Schedule(t *testing.T) {
	f := newFixture(t)
	if err := f.autosaves.StartSchedule("not a schedule"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := f.autosaves.StartSchedule("@every 1h"); err != nil {
		t.Fatalf("StartSchedule: %v", err)
	}
	f.autosaves.Stop()
	f.autosaves.Stop()
}
