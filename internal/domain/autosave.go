package domain

import "time"

// Autosave is a non-user-initiated snapshot of a post's unsaved edits.
type Autosave struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"createdAt"`
}

type AutosaveStore interface {
	CreateAutosave(a *Autosave) error
	LatestAutosave(postID string) (*Autosave, error)
	ListAutosaves(postID string) ([]Autosave, error)
	DeleteAutosavesByPost(postID string) error
	PruneAutosaves(postID string, keep int) (int, error)
	PruneAutosavesOlderThan(cutoff time.Time) (int, error)
}
