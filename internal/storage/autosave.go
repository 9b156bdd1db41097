package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blockeditor/internal/domain"
)

// AutosaveStore keeps autosave snapshots in SQLite, newest first per post.
type AutosaveStore struct {
	db *DB
}

func NewAutosaveStore(db *DB) *AutosaveStore {
	return &AutosaveStore{db: db}
}

// CreateAutosave inserts a snapshot. ID and CreatedAt are filled in when empty.
func (s *AutosaveStore) CreateAutosave(a *domain.Autosave) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	blocksJSON, err := encodeBlocks(a.Blocks)
	if err != nil {
		return err
	}
	_, err = s.db.Conn().Exec(
		`INSERT INTO autosaves (id, post_id, title, excerpt, blocks_json, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM autosaves WHERE post_id = ?))`,
		a.ID, a.PostID, a.Title, a.Excerpt, blocksJSON, a.CreatedAt, a.PostID,
	)
	if err != nil {
		return fmt.Errorf("insert autosave: %w", err)
	}
	return nil
}

// LatestAutosave returns the newest snapshot for a post.
func (s *AutosaveStore) LatestAutosave(postID string) (*domain.Autosave, error) {
	a := &domain.Autosave{}
	var blocksJSON string
	err := s.db.Conn().QueryRow(
		`SELECT id, post_id, title, excerpt, blocks_json, created_at FROM autosaves
		 WHERE post_id = ? ORDER BY seq DESC LIMIT 1`, postID,
	).Scan(&a.ID, &a.PostID, &a.Title, &a.Excerpt, &blocksJSON, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest autosave for %s: %w", postID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest autosave: %w", err)
	}
	if a.Blocks, err = decodeBlocks(blocksJSON); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAutosaves returns all snapshots for a post, newest first.
func (s *AutosaveStore) ListAutosaves(postID string) ([]domain.Autosave, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, post_id, title, excerpt, blocks_json, created_at FROM autosaves
		 WHERE post_id = ? ORDER BY seq DESC`, postID,
	)
	if err != nil {
		return nil, fmt.Errorf("list autosaves: %w", err)
	}
	defer rows.Close()

	var out []domain.Autosave
	for rows.Next() {
		var a domain.Autosave
		var blocksJSON string
		if err := rows.Scan(&a.ID, &a.PostID, &a.Title, &a.Excerpt, &blocksJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan autosave: %w", err)
		}
		if a.Blocks, err = decodeBlocks(blocksJSON); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AutosaveStore) DeleteAutosavesByPost(postID string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM autosaves WHERE post_id = ?`, postID)
	return err
}

// PruneAutosaves keeps the newest keep snapshots of a post and deletes the rest.
func (s *AutosaveStore) PruneAutosaves(postID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Conn().Exec(
		`DELETE FROM autosaves WHERE post_id = ? AND id NOT IN (
			SELECT id FROM autosaves WHERE post_id = ? ORDER BY seq DESC LIMIT ?
		)`, postID, postID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune autosaves: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneAutosavesOlderThan deletes every snapshot created before cutoff,
// except the newest snapshot of each post.
func (s *AutosaveStore) PruneAutosavesOlderThan(cutoff time.Time) (int, error) {
	// Collect IDs first and close the cursor before writing
	rows, err := s.db.Conn().Query(
		`SELECT a.id, a.created_at FROM autosaves a
		 WHERE a.seq < (SELECT MAX(b.seq) FROM autosaves b WHERE b.post_id = a.post_id)`,
	)
	if err != nil {
		return 0, fmt.Errorf("scan old autosaves: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan old autosaves: %w", err)
		}
		if createdAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.Conn().Exec(`DELETE FROM autosaves WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete autosave %s: %w", id, err)
		}
	}
	return len(ids), nil
}
