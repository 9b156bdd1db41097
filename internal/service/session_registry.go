package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoSession is returned for a post that is not open for editing.
	ErrNoSession = errors.New("post is not open for editing")
	// ErrSessionsClosed is returned by Open after CloseAll.
	ErrSessionsClosed = errors.New("editing sessions closed")
)

// ─────────────────────────────────────────────────────────────
// Session Registry: open editing sessions keyed by post ID
// ─────────────────────────────────────────────────────────────

// SessionRegistry keeps at most one editing session per post, so every
// caller editing a post shares its pending edits and autosave timer.
type SessionRegistry struct {
	posts *PostService
	log   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*EditingSession
	closed   bool
}

// NewSessionRegistry creates a SessionRegistry opening sessions through posts.
func NewSessionRegistry(posts *PostService, log *zap.Logger) *SessionRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionRegistry{
		posts:    posts,
		log:      log.Named("sessions"),
		sessions: make(map[string]*EditingSession),
	}
}

// Open returns the session of postID, opening one if none exists.
func (r *SessionRegistry) Open(ctx context.Context, postID string) (*EditingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrSessionsClosed
	}
	if sess, ok := r.sessions[postID]; ok {
		return sess, nil
	}
	sess, err := r.posts.OpenForEditing(ctx, postID)
	if err != nil {
		return nil, err
	}
	r.sessions[postID] = sess
	r.log.Debug("session opened", zap.String("post", postID))
	return sess, nil
}

// Get returns the open session of postID.
func (r *SessionRegistry) Get(postID string) (*EditingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[postID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, postID)
	}
	return sess, nil
}

// IDs returns the post IDs with an open session, sorted.
func (r *SessionRegistry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close disposes the session of postID and forgets it. Pending edits that
// were not saved or autosaved are dropped.
func (r *SessionRegistry) Close(postID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[postID]
	delete(r.sessions, postID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, postID)
	}
	sess.Close()
	r.log.Debug("session closed", zap.String("post", postID))
	return nil
}

// CloseAll disposes every open session and rejects later opens. It returns
// the number of sessions closed.
func (r *SessionRegistry) CloseAll() int {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*EditingSession)
	r.closed = true
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	if len(sessions) > 0 {
		r.log.Info("closed editing sessions", zap.Int("count", len(sessions)))
	}
	return len(sessions)
}
