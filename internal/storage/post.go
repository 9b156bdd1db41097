package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blockeditor/internal/domain"
)

// PostStore implements domain.PostStore using SQLite.
type PostStore struct {
	db *DB
}

func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) CreatePost(p *domain.Post) error {
	blocksJSON, err := encodeBlocks(p.Blocks)
	if err != nil {
		return err
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err = s.db.Conn().Exec(
		`INSERT INTO posts (id, post_type, title, excerpt, status, blocks_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PostType, p.Title, p.Excerpt, p.Status, blocksJSON, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostStore) GetPost(id string) (*domain.Post, error) {
	p := &domain.Post{}
	var blocksJSON string
	err := s.db.Conn().QueryRow(
		`SELECT id, post_type, title, excerpt, status, blocks_json, created_at, updated_at FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.PostType, &p.Title, &p.Excerpt, &p.Status, &blocksJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get post %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if p.Blocks, err = decodeBlocks(blocksJSON); err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return p, nil
}

// ListPosts returns posts of postType, or all posts when postType is empty.
func (s *PostStore) ListPosts(postType string) ([]domain.Post, error) {
	query := `SELECT id, post_type, title, excerpt, status, blocks_json, created_at, updated_at FROM posts`
	var args []any
	if postType != "" {
		query += ` WHERE post_type = ?`
		args = append(args, postType)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		var blocksJSON string
		if err := rows.Scan(&p.ID, &p.PostType, &p.Title, &p.Excerpt, &p.Status, &blocksJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Blocks, err = decodeBlocks(blocksJSON); err != nil {
			return nil, fmt.Errorf("list posts: %s: %w", p.ID, err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostStore) UpdatePost(p *domain.Post) error {
	blocksJSON, err := encodeBlocks(p.Blocks)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	res, err := s.db.Conn().Exec(
		`UPDATE posts SET post_type = ?, title = ?, excerpt = ?, status = ?, blocks_json = ?, updated_at = ? WHERE id = ?`,
		p.PostType, p.Title, p.Excerpt, p.Status, blocksJSON, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "update post", p.ID)
}

// DeletePost removes a post together with its autosaves.
func (s *PostStore) DeletePost(id string) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM autosaves WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("delete autosaves: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if err := requireAffected(res, "delete post", id); err != nil {
		return err
	}
	return tx.Commit()
}

func requireAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, domain.ErrNotFound)
	}
	return nil
}

func encodeBlocks(blocks []domain.Block) (string, error) {
	if blocks == nil {
		blocks = []domain.Block{}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return "", fmt.Errorf("encode blocks: %w", err)
	}
	return string(data), nil
}

func decodeBlocks(data string) ([]domain.Block, error) {
	var blocks []domain.Block
	if err := json.Unmarshal([]byte(data), &blocks); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return blocks, nil
}
