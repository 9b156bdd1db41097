package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

type PostStatus string

const (
	PostStatusAutoDraft PostStatus = "auto-draft"
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublish   PostStatus = "publish"
)

// Post is an editable document made of a block tree.
type Post struct {
	ID        string     `json:"id"`
	PostType  string     `json:"postType"`
	Title     string     `json:"title"`
	Excerpt   string     `json:"excerpt"`
	Status    PostStatus `json:"status"`
	Blocks    []Block    `json:"blocks"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsNew reports whether the post has never been saved by a user.
func (p *Post) IsNew() bool {
	return p.Status == PostStatusAutoDraft
}

type PostStore interface {
	CreatePost(p *Post) error
	GetPost(id string) (*Post, error)
	ListPosts(postType string) ([]Post, error)
	UpdatePost(p *Post) error
	DeletePost(id string) error
}
